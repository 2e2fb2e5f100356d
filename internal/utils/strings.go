// Package utils holds small helpers shared by the program emitter.
package utils

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a string from CamelCase to snake_case.
func ToSnakeCase(s string) string {
	var res strings.Builder
	res.Grow(len(s) + 5)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := rune(s[i-1])
				var next rune
				if i < len(s)-1 {
					next = rune(s[i+1])
				}

				if (!unicode.IsUpper(prev) && prev != '_') ||
					(unicode.IsUpper(prev) && next != 0 && !unicode.IsUpper(next) && next != '_') {
					res.WriteRune('_')
				}
			}
			res.WriteRune(unicode.ToLower(r))
		} else {
			res.WriteRune(r)
		}
	}
	return res.String()
}

// NormalizeIdentifier converts the name of an identifier (module name, function name or function
// input parameter name) to a valid one: only letters, digits, and underscores are allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	result := make([]rune, 0, len(name)+1)
	if name[0] >= '0' && name[0] <= '9' {
		result = append(result, '_')
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}
