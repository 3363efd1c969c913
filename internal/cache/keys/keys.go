// Package keys builds shared-tier cache keys for index and geometry documents.
package keys

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const defaultNamespace = "regions"

// DocKey returns "<ns>:doc:<readable path>:u=<xxhash of normalized url>".
// The readable part is truncated; the hash keeps keys distinct.
func DocKey(namespace, rawURL string) string {
	ns := sanitize(strings.TrimSpace(namespace))
	if ns == "" {
		ns = defaultNamespace
	}
	norm := normalizeURL(rawURL)
	readable := sanitize(readablePart(norm))

	const maxReadableLen = 160
	if len(readable) > maxReadableLen {
		readable = readable[:maxReadableLen]
	}

	sum := xxhash.Sum64String(norm)
	return fmt.Sprintf("%s:doc:%s:u=%016x", ns, readable, sum)
}

// lowercases scheme and host, drops fragments; path and query are kept as-is
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

func readablePart(norm string) string {
	u, err := url.Parse(norm)
	if err != nil || u.Host == "" {
		return norm
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return u.Host
	}
	return p
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		case r == '/':
			out = ':'
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

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
