package common

import "strconv"

// AtoiDefault parses value as an int, returning def for empty or malformed
// input. Pagination handlers use it for page and limit query params.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
