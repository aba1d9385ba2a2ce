// Package validators turns request parameters into typed values, reporting
// problems as validation errors keyed by the offending field.
package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
)

func fieldError(field, message string, extra ...any) error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			details[k] = extra[i+1]
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// query reads and parses one query parameter. present is false when the
// parameter is absent or blank.
func query[T any](r *http.Request, key, kind string, parse func(string) (T, error)) (v T, present bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return v, false, nil
	}
	if v, err = parse(raw); err != nil {
		return v, true, fieldError(key, key+" must be "+kind)
	}
	return v, true, nil
}

// ParseQueryInt returns def when absent and rejects values outside [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	v, ok, err := query(r, key, "an integer", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return def, nil
	case v < min || v > max:
		return 0, fieldError(key, key+" is out of range", "min", min, "max", max)
	}
	return v, nil
}

// ParseQueryFloat returns nil when the parameter is absent.
func ParseQueryFloat(r *http.Request, key string) (*float64, error) {
	v, ok, err := query(r, key, "a number", func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func ParseQueryBool(r *http.Request, key string, def bool) (bool, error) {
	v, ok, err := query(r, key, "a boolean", strconv.ParseBool)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// ParseUUIDParam reads a chi route parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, fieldError(name, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fieldError(name, name+" must be a UUID")
	}
	return id, nil
}
