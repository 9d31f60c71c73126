// Package keys builds the cache keys for geo service responses.
package keys

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "geo"

// Request returns the key for a GET of path with the given query. Argument
// order and surrounding whitespace do not change the key.
func Request(endpoint, path string, query url.Values) string {
	argText := normalizeQuery(query)
	argSafe := sanitizeForKey(argText)

	const maxArgTextLen = 160
	if len(argSafe) > maxArgTextLen {
		argSafe = argSafe[:maxArgTextLen]
	}

	sum := xxhash.Sum64String(path + "?" + argText)

	return fmt.Sprintf("%s:%s:%s:q=%s:f=%016x", prefix, sanitizeSegment(endpoint), sanitizeSegment(path), argSafe, sum)
}

// Record returns the key of a stored record body. Record writes and change
// events delete this key, so it carries no query hash.
func Record(layer, id string) string {
	return fmt.Sprintf("%s:record:%s:%s", prefix, sanitizeSegment(strings.TrimSpace(layer)), sanitizeSegment(strings.TrimSpace(id)))
}

// Layer returns the key of a layer description.
func Layer(name string) string {
	return fmt.Sprintf("%s:layer:%s", prefix, sanitizeSegment(strings.TrimSpace(name)))
}

// Context returns the key of a context lookup quantized to an H3 cell.
func Context(res int, cell string) string {
	return fmt.Sprintf("%s:context:r%d:%s", prefix, res, cell)
}

// normalizeQuery renders the query as k=v pairs sorted by key with values
// whitespace-collapsed; repeated values keep their order.
func normalizeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	ks := make([]string, 0, len(q))
	for k := range q {
		ks = append(ks, k)
	}
	slices.Sort(ks)

	var b strings.Builder
	for _, k := range ks {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(strings.TrimSpace(k))
			b.WriteByte('=')
			b.WriteString(collapseASCIIWhitespace(v))
		}
	}
	return b.String()
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
		case isASCIISpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
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

// sanitizeSegment is sanitizeForKey without '=' so segments cannot be
// mistaken for the q= and f= parts.
func sanitizeSegment(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case isASCIISpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
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
		if isASCIISpace(r) {
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

func isASCIISpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
