package bmlt

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params holds request parameters. Values are scalars (string, bool, ints,
// floats) or slices of them; nil and "" are dropped when encoded.
type Params map[string]any

// Clone returns a shallow copy; nil yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies src over p and returns p.
func (p Params) Merge(src Params) Params {
	for k, v := range src {
		p[k] = v
	}
	return p
}

// Encode renders the query string. Keys are sorted; slices use the
// key[]=v convention the BMLT server expects.
func (p Params) Encode() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals, key := encodeValue(k, p[k])
		ek := url.QueryEscape(key)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func encodeValue(key string, v any) ([]string, string) {
	switch t := v.(type) {
	case nil:
		return nil, key
	case string:
		if t == "" {
			return nil, key
		}
		return []string{t}, key
	case []string:
		return nonEmpty(t), key + "[]"
	case []int:
		out := make([]string, 0, len(t))
		for _, n := range t {
			out = append(out, strconv.Itoa(n))
		}
		return out, key + "[]"
	case []int64:
		out := make([]string, 0, len(t))
		for _, n := range t {
			out = append(out, strconv.FormatInt(n, 10))
		}
		return out, key + "[]"
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := scalarString(e); s != "" {
				out = append(out, s)
			}
		}
		return out, key + "[]"
	default:
		s := scalarString(t)
		if s == "" {
			return nil, key
		}
		return []string{s}, key
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case Weekday:
		return strconv.Itoa(int(t))
	case VenueType:
		return strconv.Itoa(int(t))
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
