package model

// DateRange bounds an activity query window, inclusive on both ends.
type DateRange struct {
	Start string `json:"start" example:"2025-01-13T00:00:00Z"`
	End   string `json:"end" example:"2025-01-20T23:59:59Z"`
}

// CollectionBreakdown is one by-collection bucket of the activity stats.
type CollectionBreakdown struct {
	Collection string  `json:"collection" example:"articles"`
	Count      int64   `json:"count" example:"10234"`
	Percentage float64 `json:"percentage" example:"66.3"`
}

// ActionBreakdown is one by-action bucket of the activity stats.
type ActionBreakdown struct {
	Action     string  `json:"action" example:"create"`
	Count      int64   `json:"count" example:"3456"`
	Percentage float64 `json:"percentage" example:"22.4"`
}

// IPBreakdown is one per-IP bucket of GET /activity/ips.
type IPBreakdown struct {
	IP         string  `json:"ip" example:"203.0.113.7"`
	Count      int64   `json:"count" example:"512"`
	Percentage float64 `json:"percentage" example:"12.5"`
}

// ActivityStatistics aggregates the audit log over a date window.
type ActivityStatistics struct {
	TotalRequests int64                 `json:"total_requests"`
	UniqueUsers   int64                 `json:"unique_users"`
	UniqueIPs     int64                 `json:"unique_ips"`
	DateRange     DateRange             `json:"date_range"`
	ByCollection  []CollectionBreakdown `json:"by_collection"`
	ByAction      []ActionBreakdown     `json:"by_action"`
	QueryTimeMs   int64                 `json:"query_time_ms"`
	Cached        bool                  `json:"cached"`
	Timestamp     string                `json:"timestamp"`
}

// IPsResponse is the payload of GET /activity/ips.
type IPsResponse struct {
	IPs         []IPBreakdown `json:"ips"`
	QueryTimeMs int64         `json:"query_time_ms"`
	Cached      bool          `json:"cached"`
	Timestamp   string        `json:"timestamp"`
}

// TimeseriesPoint is one bucket of the activity trend chart.
type TimeseriesPoint struct {
	Period string `json:"period" example:"2025-01-13"`
	Count  int64  `json:"count" example:"420"`
}

// TimeseriesResponse is the payload of GET /activity/timeseries.
type TimeseriesResponse struct {
	Timeseries  []TimeseriesPoint `json:"timeseries"`
	Granularity string            `json:"granularity" example:"day"`
	DateRange   DateRange         `json:"date_range"`
	QueryTimeMs int64             `json:"query_time_ms"`
	Cached      bool              `json:"cached"`
	Timestamp   string            `json:"timestamp"`
}
