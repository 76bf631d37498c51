package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryCents reads an optional currency amount such as "12.50". Malformed input is
// ignored, matching how the storefront filters treat bad price bounds.
func ParseQueryCents(r *http.Request, key string) *int64 {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	cents, err := money.ParseCents(raw)
	if err != nil || cents < 0 {
		return nil
	}
	return &cents
}

// URLParamUUID parses a chi route parameter as a uuid.
func URLParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "Not found.").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// FormInt reads an integer form value, falling back to defaultVal when absent or malformed.
func FormInt(raw string, defaultVal int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultVal
	}
	return value
}

// FormCents reads an optional currency form value. Blank is nil; malformed input is a
// validation error naming the field.
func FormCents(form url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return nil, nil
	}
	cents, err := money.ParseCents(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Please enter a valid amount.").
			WithDetails(map[string]any{"field": key})
	}
	return &cents, nil
}

// FormOptionalInt reads an optional integer form value. Blank is nil.
func FormOptionalInt(form url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please enter a whole number.").
			WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// FormOptionalString is nil when the key is absent from the form, otherwise the trimmed value.
func FormOptionalString(form url.Values, key string) *string {
	if _, ok := form[key]; !ok {
		return nil
	}
	value := strings.TrimSpace(form.Get(key))
	return &value
}
