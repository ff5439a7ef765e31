package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"directus-usage-tracker/analytics"
	"directus-usage-tracker/utils"
)

const (
	limitMin = 1
	limitMax = 100

	defaultCollectionsLimit = 50
	defaultActivityLimit    = 10
	defaultIPsLimit         = 10

	// Window applied when no start_date/end_date is given.
	defaultWindow = 7 * 24 * time.Hour
)

// parseDateRange reads start_date/end_date, defaulting to the last
// seven days. Validation happens before any query executes.
func parseDateRange(r *http.Request) (time.Time, time.Time, *apiError) {
	now := time.Now().UTC()
	start := now.Add(-defaultWindow)
	end := now

	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := utils.ParseDate(raw)
		if err != nil {
			return start, end, &apiError{
				Status:  http.StatusBadRequest,
				Code:    CodeInvalidQuery,
				Message: "invalid start_date",
				Details: err.Error(),
			}
		}
		start = t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := utils.ParseDate(raw)
		if err != nil {
			return start, end, &apiError{
				Status:  http.StatusBadRequest,
				Code:    CodeInvalidQuery,
				Message: "invalid end_date",
				Details: err.Error(),
			}
		}
		end = t
	}

	if err := utils.ValidateDateRange(start, end); err != nil {
		return start, end, &apiError{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidDateRange,
			Message: err.Error(),
			Details: map[string]string{
				"start_date": start.Format(time.RFC3339),
				"end_date":   end.Format(time.RFC3339),
			},
		}
	}
	return start, end, nil
}

// parseLimit validates the limit parameter against [1, 100].
func parseLimit(r *http.Request, def int) (int, *apiError) {
	raw := r.URL.Query().Get("limit")
	n, err := utils.ParseLimit(raw, def, limitMin, limitMax)
	if err != nil {
		// Out-of-range values report the parsed number; only input that
		// is not a number at all echoes the raw string.
		var provided any = raw
		if parsed, convErr := strconv.Atoi(raw); convErr == nil {
			provided = parsed
		}
		return 0, &apiError{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidQuery,
			Message: fmt.Sprintf("limit must be between %d and %d", limitMin, limitMax),
			Details: map[string]any{"provided": provided, "min": limitMin, "max": limitMax},
		}
	}
	return n, nil
}

// parseActivityFilter assembles the aggregation filter from the query
// string.
func parseActivityFilter(r *http.Request, defLimit int) (analytics.ActivityFilter, *apiError) {
	start, end, apiErr := parseDateRange(r)
	if apiErr != nil {
		return analytics.ActivityFilter{}, apiErr
	}
	limit, apiErr := parseLimit(r, defLimit)
	if apiErr != nil {
		return analytics.ActivityFilter{}, apiErr
	}

	q := r.URL.Query()
	f := analytics.ActivityFilter{
		Start:       start,
		End:         end,
		Collections: utils.ParseCSV(q.Get("collections")),
		Actions:     utils.ParseCSV(q.Get("actions")),
		IPs:         utils.ParseCSV(q.Get("ip_addresses")),
		Limit:       limit,
	}

	for _, ip := range f.IPs {
		if err := utils.ValidateIP(ip); err != nil {
			return analytics.ActivityFilter{}, &apiError{
				Status:  http.StatusBadRequest,
				Code:    CodeInvalidIP,
				Message: err.Error(),
			}
		}
	}
	return f, nil
}

// sortedJoin normalizes a filter list for cache keys: equivalent sets in
// different order must produce the same key.
func sortedJoin(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// activityCacheKey derives the deterministic cache key for a filter.
func activityCacheKey(namespace string, f analytics.ActivityFilter) string {
	parts := []string{
		f.Start.UTC().Format(time.RFC3339),
		f.End.UTC().Format(time.RFC3339),
		"c=" + sortedJoin(f.Collections),
		"a=" + sortedJoin(f.Actions),
		"i=" + sortedJoin(f.IPs),
		fmt.Sprintf("l=%d", f.Limit),
	}
	return namespace + ":" + strings.Join(parts, "|")
}
