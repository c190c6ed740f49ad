package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/store"
)

// ParseJSON decodes JSON from the request body into the destination.
// An empty body decodes to the zero value.
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParsePathStringOrError extracts a string path parameter and writes error on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return "", false
	}
	return val, true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryOptionalBool returns nil when the parameter is absent
func ParseQueryOptionalBool(r *http.Request, key string) (*bool, error) {
	if r.URL.Query().Get(key) == "" {
		return nil, nil
	}
	val, err := ParseQueryBool(r, key, false)
	if err != nil {
		return nil, err
	}
	return &val, nil
}

// ParseQueryList splits a comma separated query parameter, dropping empty items
func ParseQueryList(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseQueryDate parses a YYYY-MM-DD or RFC 3339 query parameter
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date for query param %s: %s", key, raw)
}

// ParsePage reads pageNumber and pageSize, defaulting to 1 and 10
func ParsePage(r *http.Request) (store.Page, error) {
	number, err := ParseQueryInt(r, "pageNumber", 1)
	if err != nil {
		return store.Page{}, err
	}
	size, err := ParseQueryInt(r, "pageSize", 10)
	if err != nil {
		return store.Page{}, err
	}
	if number < 1 || size < 1 || size > 100 {
		return store.Page{}, fmt.Errorf("pageNumber must be >= 1 and pageSize between 1 and 100")
	}
	return store.Page{Number: number, Size: size}, nil
}
