package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// maxBodyBytes bounds request bodies. Nothing legitimate comes close.
const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

// requestValues is a uniform view over a JSON object or form body.
// Values are exposed as strings the way form submission would carry
// them; numeric JSON values are converted.
type requestValues struct {
	values map[string]string
	has    map[string]bool
}

// parseRequestBody reads a JSON or form-encoded body. An empty body
// yields an empty set of values.
func parseRequestBody(r *http.Request) (*requestValues, error) {
	rv := &requestValues{
		values: make(map[string]string),
		has:    make(map[string]bool),
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, errBadBody
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			return rv, nil
		}
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, errBadBody
		}
		for k, v := range raw {
			rv.set(k, jsonValueToString(v))
		}
		return rv, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errBadBody
	}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			rv.set(k, vs[0])
		}
	}
	return rv, nil
}

func jsonValueToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func (rv *requestValues) set(key, value string) {
	rv.values[key] = value
	rv.has[key] = true
}

// Get returns the value for key, empty when absent.
func (rv *requestValues) Get(key string) string {
	return rv.values[key]
}

// Has reports whether the key appeared in the body at all, which is how
// partial updates distinguish "not supplied" from "supplied empty".
func (rv *requestValues) Has(key string) bool {
	return rv.has[key]
}

// Int64 parses the value as an integer ID; zero when absent or invalid.
func (rv *requestValues) Int64(key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(rv.Get(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryInt64 parses an int64 query parameter; zero when absent or invalid.
func queryInt64(r *http.Request, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
