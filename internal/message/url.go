package message

import (
	"errors"
	"net/url"
	"strings"
)

var (
	errURLRequired = errors.New("required")
	errURLAbsolute = errors.New("must be an absolute http(s) URL")
)

// NormalizeURL makes a URL strictly RFC 3986 compliant. Each path segment is
// decoded and re-encoded on its own, and the query is rebuilt pair by pair in
// the original order. Applying it twice gives the same result as once.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errURLAbsolute
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errURLAbsolute
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	b.WriteString(normalizePath(u.EscapedPath()))
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(normalizeQuery(u.RawQuery))
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(encodeComponent(u.Fragment))
	}
	return b.String(), nil
}

func normalizePath(escaped string) string {
	segments := strings.Split(escaped, "/")
	for i, seg := range segments {
		if dec, err := url.PathUnescape(seg); err == nil {
			seg = dec
		}
		segments[i] = encodeComponent(seg)
	}
	return strings.Join(segments, "/")
}

func normalizeQuery(raw string) string {
	pairs := strings.Split(raw, "&")
	out := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, value, hasValue := strings.Cut(pair, "=")
		enc := encodeComponent(queryUnescape(key))
		if hasValue {
			enc += "=" + encodeComponent(queryUnescape(value))
		}
		out = append(out, enc)
	}
	return strings.Join(out, "&")
}

func queryUnescape(s string) string {
	if dec, err := url.QueryUnescape(s); err == nil {
		return dec
	}
	return s
}

const upperhex = "0123456789ABCDEF"

// encodeComponent percent-encodes everything outside the RFC 3986 unreserved set.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
