// Package template expands {{ name }} placeholders in custom suite cases.
//
// Placeholders may be written with or without a leading dot and with or
// without inner spaces: {{ suffix }}, {{.suffix}} and {{ .suffix }} are the
// same variable. Expansion walks strings, maps and slices as decoded from
// YAML; every other value is returned unchanged.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Vars maps placeholder names to their replacement text.
type Vars map[string]string

// MissingError lists the placeholders that had no value.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing template variables: %s", strings.Join(e.Names, ", "))
}

// Expand replaces every placeholder in value. Maps and slices are copied,
// never modified in place.
func Expand(value any, vars Vars) (any, error) {
	missing := map[string]bool{}
	out := expand(value, vars, missing)
	if len(missing) > 0 {
		return nil, &MissingError{Names: sortedKeys(missing)}
	}
	return out, nil
}

// ExpandString is Expand for a single string.
func ExpandString(s string, vars Vars) (string, error) {
	missing := map[string]bool{}
	out := expandString(s, vars, missing)
	if len(missing) > 0 {
		return "", &MissingError{Names: sortedKeys(missing)}
	}
	return out, nil
}

// Variables returns the sorted placeholder names used anywhere in value.
func Variables(value any) []string {
	found := map[string]bool{}
	collect(value, found)
	return sortedKeys(found)
}

// HasPlaceholders reports whether value uses any placeholder.
func HasPlaceholders(value any) bool {
	return len(Variables(value)) > 0
}

func expand(value any, vars Vars, missing map[string]bool) any {
	switch v := value.(type) {
	case string:
		return expandString(v, vars, missing)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = expand(val, vars, missing)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = expand(val, vars, missing)
		}
		return out
	default:
		return value
	}
}

func expandString(s string, vars Vars, missing map[string]bool) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := vars[name]
		if !ok {
			missing[name] = true
			return match
		}
		return val
	})
}

func collect(value any, found map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, m := range placeholderPattern.FindAllStringSubmatch(v, -1) {
			found[m[1]] = true
		}
	case map[string]any:
		for _, val := range v {
			collect(val, found)
		}
	case []any:
		for _, val := range v {
			collect(val, found)
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
