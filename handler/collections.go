package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"directus-usage-tracker/cache"
	"directus-usage-tracker/model"
	"directus-usage-tracker/utils"

	"github.com/gorilla/mux"
)

var collectionSorts = map[string]bool{
	"row_count":  true,
	"collection": true,
	"name":       true,
}

// GetCollections handles GET /collections
// @Summary List collection usage
// @Description Row counts for every collection, optionally including Directus system tables
// @Tags Collections
// @Produce json
// @Param include_system query bool false "Include directus_ system collections"
// @Param sort query string false "Sort key" Enums(row_count, collection, name) default(row_count)
// @Param order query string false "Sort order" Enums(asc, desc) default(desc)
// @Param limit query int false "Maximum collections returned (1-100)" default(50)
// @Success 200 {object} model.CollectionsResponse
// @Failure 400 {object} ErrorResponse "Invalid query parameter"
// @Failure 500 {object} ErrorResponse "Database error"
// @Router /collections [get]
func (h *UsageHandler) GetCollections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	includeSystem := q.Get("include_system") == "true" || q.Get("include_system") == "1"

	sortKey := q.Get("sort")
	if sortKey == "" {
		sortKey = "row_count"
	}
	if !collectionSorts[sortKey] {
		sendAPIError(w, &apiError{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidQuery,
			Message: utils.ErrInvalidSort.Error(),
			Details: map[string]string{"provided": sortKey},
		})
		return
	}

	order := q.Get("order")
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		sendAPIError(w, &apiError{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidQuery,
			Message: utils.ErrInvalidOrder.Error(),
			Details: map[string]string{"provided": order},
		})
		return
	}

	limit, apiErr := parseLimit(r, defaultCollectionsLimit)
	if apiErr != nil {
		sendAPIError(w, apiErr)
		return
	}

	key := fmt.Sprintf("%s:list|sys=%t|sort=%s|order=%s|limit=%d",
		cache.NamespaceCollections, includeSystem, sortKey, order, limit)

	if payload, ok := h.cache.Get(r.Context(), key); ok {
		var resp model.CollectionsResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			SendJSON(w, http.StatusOK, resp)
			return
		}
	}

	queryStart := time.Now()
	usages, err := h.agg.ListCollections(r.Context(), includeSystem)
	if err != nil {
		sendDatabaseError(w, err)
		return
	}

	sortCollections(usages, sortKey, order)
	if len(usages) > limit {
		usages = usages[:limit]
	}

	var totalRows int64
	for _, u := range usages {
		totalRows += u.RowCount
	}

	resp := model.CollectionsResponse{
		Data:             usages,
		TotalCollections: len(usages),
		TotalRows:        totalRows,
		QueryTimeMs:      time.Since(queryStart).Milliseconds(),
		Cached:           false,
		Timestamp:        nowTimestamp(),
	}

	if payload, err := json.Marshal(resp); err == nil {
		h.cache.Set(r.Context(), key, payload, 0)
	}
	SendJSON(w, http.StatusOK, resp)
}

// GetCollection handles GET /collections/{collection}
// @Summary Single collection usage
// @Tags Collections
// @Produce json
// @Param collection path string true "Collection name"
// @Success 200 {object} model.CollectionResponse
// @Failure 404 {object} ErrorResponse "Unknown collection"
// @Failure 500 {object} ErrorResponse "Database error"
// @Router /collections/{collection} [get]
func (h *UsageHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]

	key := cache.NamespaceCollections + ":one|" + collection
	if payload, ok := h.cache.Get(r.Context(), key); ok {
		var resp model.CollectionResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			SendJSON(w, http.StatusOK, resp)
			return
		}
	}

	queryStart := time.Now()
	usage, err := h.agg.CollectionUsage(r.Context(), collection)
	if err != nil {
		if errors.Is(err, utils.ErrCollectionNotFound) {
			SendError(w, http.StatusNotFound, CodeNotFound,
				fmt.Sprintf("collection %q not found", collection), nil)
			return
		}
		sendDatabaseError(w, err)
		return
	}

	resp := model.CollectionResponse{
		Data:        usage,
		QueryTimeMs: time.Since(queryStart).Milliseconds(),
		Cached:      false,
		Timestamp:   nowTimestamp(),
	}
	if payload, err := json.Marshal(resp); err == nil {
		h.cache.Set(r.Context(), key, payload, 0)
	}
	SendJSON(w, http.StatusOK, resp)
}

func sortCollections(usages []model.CollectionUsage, sortKey, order string) {
	less := func(i, j int) bool {
		switch sortKey {
		case "collection":
			return usages[i].Collection < usages[j].Collection
		case "name":
			if usages[i].DisplayName != usages[j].DisplayName {
				return usages[i].DisplayName < usages[j].DisplayName
			}
			return usages[i].Collection < usages[j].Collection
		default: // row_count
			if usages[i].RowCount != usages[j].RowCount {
				return usages[i].RowCount < usages[j].RowCount
			}
			return usages[i].Collection < usages[j].Collection
		}
	}
	if order == "desc" {
		sort.SliceStable(usages, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(usages, less)
}
