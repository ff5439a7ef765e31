package utils

import "errors"

var (
	ErrInvalidDate        = errors.New("invalid date format, expected ISO-8601 (RFC 3339)")
	ErrDateRangeOrder     = errors.New("start_date must be before or equal to end_date")
	ErrInvalidGranularity = errors.New("granularity must be one of: hour, day, week")
	ErrInvalidIP          = errors.New("invalid IP address")
	ErrInvalidSort        = errors.New("sort must be one of: row_count, collection, name")
	ErrInvalidOrder       = errors.New("order must be asc or desc")
	ErrLimitOutOfRange    = errors.New("limit out of range")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCountOverflow      = errors.New("count exceeds 64-bit integer range")
)
