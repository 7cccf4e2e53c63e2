package http

import (
	"strings"

	"checkin/internal/core"
)

type cookiePair struct {
	name  string
	value string
}

// parseJar splits a "a=1; b=2" jar into ordered pairs. Later duplicates
// overwrite earlier ones in place.
func parseJar(jar string) []cookiePair {
	var pairs []cookiePair
	for _, part := range strings.Split(jar, ";") {
		name, value, ok := splitPair(part)
		if !ok {
			continue
		}
		pairs = setPair(pairs, name, value)
	}
	return pairs
}

func splitPair(s string) (name, value string, ok bool) {
	s = strings.TrimSpace(s)
	name, value, found := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func setPair(pairs []cookiePair, name, value string) []cookiePair {
	for i := range pairs {
		if pairs[i].name == name {
			pairs[i].value = value
			return pairs
		}
	}
	return append(pairs, cookiePair{name: name, value: value})
}

func formatJar(pairs []cookiePair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.name)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// MergeSetCookies folds Set-Cookie header values into jar. Only the leading
// name=value of each header is kept; attributes such as Path or HttpOnly are
// dropped. A later cookie with the same name replaces the earlier value but
// keeps its position.
func MergeSetCookies(jar string, setCookies []string) string {
	if len(setCookies) == 0 {
		return jar
	}
	pairs := parseJar(jar)
	for _, header := range setCookies {
		first, _, _ := strings.Cut(header, ";")
		name, value, ok := splitPair(first)
		if !ok {
			continue
		}
		pairs = setPair(pairs, name, value)
	}
	return formatJar(pairs)
}

// mergeCookieHeader appends jar to the captured Cookie header, or sets it
// when the capture had none. An empty jar leaves headers untouched.
func mergeCookieHeader(headers map[string]string, jar string) {
	if jar == "" {
		return
	}
	key := core.HeaderKey(headers, "Cookie")
	if key == "" {
		headers["Cookie"] = jar
		return
	}
	if existing := strings.TrimSpace(headers[key]); existing != "" {
		headers[key] = existing + "; " + jar
		return
	}
	headers[key] = jar
}
