// Package expr resolves ${path} references against a variable map.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Evaluate resolves expr against ctx.
//
// Non-string values pass through unchanged. A string that is exactly
// "${path}" returns the resolved value itself (preserving its type); a
// string containing one or more ${path} occurrences mixed with literal
// text has each occurrence substituted with the string form of the
// resolved value. Unresolved paths degrade to the original text (for an
// exact match) or empty string (inside a mixed template) — Evaluate never
// fails.
func Evaluate(value interface{}, ctx map[string]interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}

	if path, ok := exactPath(s); ok {
		if v, found := nestedGet(ctx, path); found {
			return v
		}
		return s
	}

	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		path := rest[start+2 : end]
		if v, found := nestedGet(ctx, path); found {
			b.WriteString(toString(v))
		}
		rest = rest[end+1:]
	}
	return b.String()
}

// exactPath reports whether s is exactly "${path}" and returns path.
func exactPath(s string) (string, bool) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	if strings.Count(s, "${") != 1 {
		return "", false
	}
	return s[2 : len(s)-1], true
}

// NestedGet traverses m along the dot-separated path. Intermediate members
// must be map[string]interface{} (or the untyped equivalent produced by
// JSON decoding); a missing or non-map intermediate yields found = false.
func NestedGet(m map[string]interface{}, path string) (interface{}, bool) {
	return nestedGet(m, path)
}

func nestedGet(m map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, p := range parts {
		asMap, ok := asStringMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := asMap[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// NestedSet sets value at the dot-separated path within m, creating
// intermediate maps as needed.
func NestedSet(m map[string]interface{}, path string, value interface{}) {
	if path == "" {
		return
	}
	parts := strings.Split(path, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
