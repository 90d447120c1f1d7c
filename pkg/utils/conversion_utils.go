package utils

import (
	"fmt"
	"strconv"
)

// StrToInt64 converts a string to an int64.
func StrToInt64(s string) (int64, error) {
	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse '%s' as int64: %w", s, err)
	}
	return num, nil
}

// StrToPositiveID parses a path or query identifier, rejecting zero and negatives.
func StrToPositiveID(s string) (int64, error) {
	id, err := StrToInt64(s)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}
