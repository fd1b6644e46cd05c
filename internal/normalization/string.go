package normalization

import "strings"

// ParseInputString lowercases and trims user-supplied identifiers such as
// emails so lookups are case-insensitive.
func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func ParseInputStringPtr(input *string) *string {
	if input == nil {
		return nil
	}
	normalized := ParseInputString(*input)
	return &normalized
}
