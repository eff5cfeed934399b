package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	maxPageSize = 50
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

// parseDate accepts an empty value as "no date".
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLimit returns 0 for an empty value and clamps anything above
// maxPageSize.
func parseLimit(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, errInvalidLimit
	}
	return min(limit, maxPageSize), nil
}

func formatDate(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.UTC().Format(dateLayout)
	return &formatted
}
