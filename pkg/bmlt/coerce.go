package bmlt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// record wraps one loosely typed response row and collects the first
// coercion failure so deserializers read top to bottom.
type record struct {
	kind string
	m    map[string]any
	err  error
}

func newRecord(kind string, m map[string]any) *record {
	return &record{kind: kind, m: m}
}

func (r *record) fail(key, format string, args ...any) {
	if r.err != nil {
		return
	}
	r.err = NewResponseError(
		fmt.Sprintf("%s: field %q: %s", r.kind, key, fmt.Sprintf(format, args...)), 0, nil)
}

func (r *record) lookup(key string, required bool) (any, bool) {
	v, ok := r.m[key]
	if !ok || v == nil {
		if required {
			r.fail(key, "missing required field")
		}
		return nil, false
	}
	return v, true
}

func (r *record) str(key string, required bool) string {
	v, ok := r.lookup(key, required)
	if !ok {
		return ""
	}
	s, ok := toString(v)
	if !ok {
		r.fail(key, "cannot convert %T to string", v)
	}
	return s
}

// firstStr returns the first present key's value.
func (r *record) firstStr(keys ...string) string {
	for _, k := range keys {
		if _, ok := r.m[k]; ok {
			return r.str(k, false)
		}
	}
	return ""
}

func (r *record) int64(key string, required bool) int64 {
	v, ok := r.lookup(key, required)
	if !ok {
		return 0
	}
	n, ok := toInt64(v)
	if !ok {
		r.fail(key, "cannot convert %v to integer", v)
	}
	return n
}

// optInt64 treats "" and "0" as absent, matching how the server fills
// unset parent/world ids.
func (r *record) optInt64(key string) *int64 {
	v, ok := r.lookup(key, false)
	if !ok {
		return nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		r.fail(key, "cannot convert %v to integer", v)
		return nil
	}
	if n == 0 {
		return nil
	}
	return &n
}

func (r *record) float(key string) float64 {
	f := r.optFloat(key)
	if f == nil {
		return 0
	}
	return *f
}

func (r *record) optFloat(key string) *float64 {
	v, ok := r.lookup(key, false)
	if !ok {
		return nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(key, "cannot convert %v to number", v)
		return nil
	}
	return &f
}

func (r *record) boolean(key string, def bool) bool {
	v, ok := r.lookup(key, false)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no", "":
			return false
		}
	default:
		if n, ok := toInt64(t); ok {
			return n != 0
		}
	}
	r.fail(key, "cannot convert %v to bool", v)
	return def
}

// list accepts a comma separated string or an array.
func (r *record) list(key string) []string {
	v, ok := r.lookup(key, false)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return splitList(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := toString(e)
			if !ok {
				r.fail(key, "cannot convert element %v to string", e)
				return nil
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return splitList(strings.Join(t, ","))
	}
	r.fail(key, "expected list, got %T", v)
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		return 0, false
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// rows turns a decoded JSON array into records, dropping non-object rows.
func rows(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
