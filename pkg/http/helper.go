package http

import (
	"net/http"
	"time"

	apperrors "reservd/pkg/errors"
)

// ParseTimeParam parses an optional RFC3339 query parameter. A missing
// parameter yields a nil time and no error.
func ParseTimeParam(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter, must be RFC3339")
	}
	utc := parsed.UTC()
	return &utc, nil
}
