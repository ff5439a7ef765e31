package model

// CollectionUsage is the per-collection row-count snapshot shown on the
// dashboard. Recomputed on every cache miss.
type CollectionUsage struct {
	Collection  string `json:"collection" example:"articles"`
	RowCount    int64  `json:"row_count" example:"15432"`
	IsSystem    bool   `json:"is_system" example:"false"`
	Icon        string `json:"icon,omitempty" example:"article"`
	Color       string `json:"color,omitempty" example:"#2196F3"`
	DisplayName string `json:"display_name,omitempty" example:"Articles"`
}

// CollectionsResponse is the payload of GET /collections.
type CollectionsResponse struct {
	Data             []CollectionUsage `json:"data"`
	TotalCollections int               `json:"total_collections"`
	TotalRows        int64             `json:"total_rows"`
	QueryTimeMs      int64             `json:"query_time_ms"`
	Cached           bool              `json:"cached"`
	Timestamp        string            `json:"timestamp"`
}

// CollectionResponse is the payload of GET /collections/{collection}.
type CollectionResponse struct {
	Data        CollectionUsage `json:"data"`
	QueryTimeMs int64           `json:"query_time_ms"`
	Cached      bool            `json:"cached"`
	Timestamp   string          `json:"timestamp"`
}
