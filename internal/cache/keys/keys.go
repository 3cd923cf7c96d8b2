package keys

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "bmlt"

var punctSpace = regexp.MustCompile(`\s*([=&,\[\]])\s*`)

// Response keys one cached BMLT answer. cell is "" for searches without a
// location. The readable part of query is truncated; the hash covers all of it.
func Response(endpoint, cell, query string) string {
	if cell == "" {
		cell = "-"
	}
	q := normalizeQuery(query)
	safe := sanitizeForKey(q)

	const maxQueryTextLen = 120
	if len(safe) > maxQueryTextLen {
		safe = safe[:maxQueryTextLen]
	}
	sum := xxhash.Sum64String(endpoint + "|" + q)
	return fmt.Sprintf("%s:%s:%s:q=%s:h=%016x", prefix, sanitizeForKey(endpoint), cell, safe, sum)
}

// CellIndex keys the list of response keys stored for one H3 cell.
func CellIndex(res int, cell string) string {
	return fmt.Sprintf("%s:cellidx:%d:%s", prefix, res, cell)
}

func normalizeQuery(s string) string {
	if s == "" {
		return ""
	}
	s = collapseASCIIWhitespace(strings.TrimSpace(s))
	return punctSpace.ReplaceAllString(s, "$1")
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case isSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == '&' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if isSpace(r) {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
