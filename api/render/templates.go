// Package render serves HTML pages from an optional template directory. Pages without a
// template fall back to the JSON envelope.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-backend/api/cookies"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/gorilla/csrf"
)

type flashSource interface {
	Flashes(w http.ResponseWriter, r *http.Request) []cookies.Flash
}

// PageData is what every template receives.
type PageData struct {
	Data      any
	Flashes   []cookies.Flash
	CSRFField template.HTML
	CSRFToken string
}

// Templates caches one parsed template per page file, each parsed together with the shared
// layout files (names starting with "_").
type Templates struct {
	mu      sync.RWMutex
	cache   map[string]*template.Template
	funcs   template.FuncMap
	flashes flashSource
}

func New(flashes flashSource) *Templates {
	return &Templates{
		cache: make(map[string]*template.Template),
		funcs: template.FuncMap{
			"money": money.Format,
			"prevPage": func(page int) int {
				return page - 1
			},
			"nextPage": func(page int) int {
				return page + 1
			},
		},
		flashes: flashes,
	}
}

// Load parses every *.html page in dir. An empty dir leaves the cache empty.
func (t *Templates) Load(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return err
	}
	var layouts, pages []string
	for _, file := range files {
		if strings.HasPrefix(filepath.Base(file), "_") {
			layouts = append(layouts, file)
			continue
		}
		pages = append(pages, file)
	}

	parsed := make(map[string]*template.Template, len(pages))
	for _, file := range pages {
		name := strings.TrimSuffix(filepath.Base(file), ".html")
		tmpl, err := template.New(filepath.Base(file)).Funcs(t.funcs).ParseFiles(append([]string{file}, layouts...)...)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", file, err)
		}
		parsed[name] = tmpl
	}

	t.mu.Lock()
	t.cache = parsed
	t.mu.Unlock()
	return nil
}

// Render executes the page template. It reports ok=false when no template exists for name.
func (t *Templates) Render(w http.ResponseWriter, r *http.Request, name string, data any) (bool, error) {
	t.mu.RLock()
	tmpl := t.cache[name]
	t.mu.RUnlock()
	if tmpl == nil {
		return false, nil
	}

	page := PageData{
		Data:      data,
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
	}
	if t.flashes != nil {
		page.Flashes = t.flashes.Flashes(w, r)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		return true, err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return true, err
}
