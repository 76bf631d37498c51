package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

type migrationFile struct {
	version string
	name    string
	file    string
}

// listMigrations returns the .sql files in dir in lexical (and therefore version) order.
// Files that do not match the naming scheme come back with an empty version.
func listMigrations(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		f := migrationFile{file: e.Name()}
		if m := sqlFileRe.FindStringSubmatch(e.Name()); m != nil {
			f.version, f.name = m[1], m[2]
		}
		files = append(files, f)
	}
	return files, nil
}

// ValidateDir checks every migration in dir and reports all problems at once: filenames,
// duplicate versions or names, and the goose Up/Down and StatementBegin/End markers.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	files, err := listMigrations(dir)
	if err != nil {
		return err
	}

	var problems error
	versions := map[string]string{}
	names := map[string]string{}
	for _, f := range files {
		if f.version == "" {
			problems = multierr.Append(problems, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", f.file))
			continue
		}
		if prev, ok := versions[f.version]; ok {
			problems = multierr.Append(problems, fmt.Errorf("duplicate migration version %s in %q and %q", f.version, prev, f.file))
		}
		versions[f.version] = f.file
		if prev, ok := names[f.name]; ok {
			problems = multierr.Append(problems, fmt.Errorf("duplicate migration name %q in %q and %q", f.name, prev, f.file))
		}
		names[f.name] = f.file

		b, err := os.ReadFile(filepath.Join(dir, f.file))
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("read file %q: %w", f.file, err))
			continue
		}
		problems = multierr.Append(problems, checkMarkers(f.file, string(b)))
	}

	return problems
}

func checkMarkers(name, txt string) error {
	up := strings.Index(txt, "-- +goose Up")
	down := strings.Index(txt, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	case down < 0:
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	case down < up:
		return fmt.Errorf("migration %q has its Down section before Up", name)
	}
	begins := strings.Count(txt, "-- +goose StatementBegin")
	ends := strings.Count(txt, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("migration %q has %d StatementBegin but %d StatementEnd markers", name, begins, ends)
	}
	return nil
}
