package validate

import "strings"

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// PositiveIDs reports whether every id is a valid database identifier.
func PositiveIDs(ids ...int64) bool {
	for _, id := range ids {
		if id <= 0 {
			return false
		}
	}
	return true
}
