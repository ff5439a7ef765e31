package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"directus-usage-tracker/analytics"
	"directus-usage-tracker/cache"
	"directus-usage-tracker/config"
	"directus-usage-tracker/model"
	"directus-usage-tracker/utils"

	"github.com/gorilla/mux"
)

// stubAggregator fakes the query layer and counts invocations so tests
// can assert cache hits never reach the database.
type stubAggregator struct {
	collections []model.CollectionUsage
	usage       model.CollectionUsage
	usageErr    error
	stats       model.ActivityStatistics
	ips         []model.IPBreakdown
	points      []model.TimeseriesPoint
	err         error

	listCalls   int
	usageCalls  int
	statsCalls  int
	ipsCalls    int
	seriesCalls int
	lastFilter  analytics.ActivityFilter
}

func (s *stubAggregator) ListCollections(_ context.Context, _ bool) ([]model.CollectionUsage, error) {
	s.listCalls++
	return s.collections, s.err
}

func (s *stubAggregator) CollectionUsage(_ context.Context, _ string) (model.CollectionUsage, error) {
	s.usageCalls++
	return s.usage, s.usageErr
}

func (s *stubAggregator) ActivityStats(_ context.Context, f analytics.ActivityFilter) (model.ActivityStatistics, error) {
	s.statsCalls++
	s.lastFilter = f
	return s.stats, s.err
}

func (s *stubAggregator) TopIPs(_ context.Context, f analytics.ActivityFilter) ([]model.IPBreakdown, error) {
	s.ipsCalls++
	s.lastFilter = f
	return s.ips, s.err
}

func (s *stubAggregator) Timeseries(_ context.Context, _, _ time.Time, _ string) ([]model.TimeseriesPoint, error) {
	s.seriesCalls++
	return s.points, s.err
}

func testRouter(h *UsageHandler) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/usage-tracker").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")
	api.HandleFunc("/collections", h.GetCollections).Methods("GET")
	api.HandleFunc("/activity", h.GetActivity).Methods("GET")
	api.HandleFunc("/activity/ips", h.GetActivityIPs).Methods("GET")
	api.HandleFunc("/activity/timeseries", h.GetTimeseries).Methods("GET")
	api.HandleFunc("/activity/ips/{ip}", h.GetActivityByIP).Methods("GET")
	api.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
	api.HandleFunc("/activity/cache", h.ClearActivityCache).Methods("DELETE")
	api.HandleFunc("/collections/cache", h.ClearCollectionsCache).Methods("DELETE")
	api.HandleFunc("/collections/{collection}", h.GetCollection).Methods("GET")
	return r
}

func newTestHandler(t *testing.T, stub *stubAggregator, withCache bool) (*UsageHandler, *mux.Router) {
	t.Helper()
	cfg := config.Config{
		WebServer: config.WebServerConfig{BasePath: "/usage-tracker"},
		Cache: config.CacheConfig{
			Enabled: withCache, Backend: "memory",
			DefaultTTLMs: 300000, CollectionsTTLMs: 300000,
			ActivityTTLMs: 300000, TimeseriesTTLMs: 120000,
		},
	}
	var cacheSvc *cache.Service
	if withCache {
		store := cache.NewMemoryStore(time.Hour)
		t.Cleanup(func() { store.Close() })
		cacheSvc = cache.NewService(cfg.Cache, store)
	}
	h := NewUsageHandler(stub, cacheSvc, cfg)
	return h, testRouter(h)
}

func doRequest(r *mux.Router, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error envelope: %v", err)
	}
	if resp.Timestamp == "" {
		t.Error("Error envelope missing timestamp")
	}
	return resp
}

func TestGetCollectionsScenario(t *testing.T) {
	stub := &stubAggregator{collections: []model.CollectionUsage{
		{Collection: "articles", RowCount: 15432, DisplayName: "Articles"},
		{Collection: "users", RowCount: 543, DisplayName: "Users"},
		{Collection: "products", RowCount: 8901, DisplayName: "Products"},
	}}
	_, r := newTestHandler(t, stub, false)

	w := doRequest(r, "GET", "/usage-tracker/collections?sort=row_count&order=desc&limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp model.CollectionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("Got %d collections, want 2", len(resp.Data))
	}
	if resp.Data[0].Collection != "articles" || resp.Data[0].RowCount != 15432 {
		t.Errorf("First entry = %+v, want articles/15432", resp.Data[0])
	}
	if resp.Data[1].Collection != "products" || resp.Data[1].RowCount != 8901 {
		t.Errorf("Second entry = %+v, want products/8901", resp.Data[1])
	}
	if resp.TotalCollections != 2 {
		t.Errorf("TotalCollections = %d, want 2", resp.TotalCollections)
	}
	if resp.TotalRows != 24333 {
		t.Errorf("TotalRows = %d, want 24333", resp.TotalRows)
	}
	if resp.Cached {
		t.Error("Fresh query must report cached:false")
	}
}

func TestGetCollectionsValidation(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"limit_too_high", "limit=150", CodeInvalidQuery},
		{"limit_too_low", "limit=0", CodeInvalidQuery},
		{"limit_not_numeric", "limit=abc", CodeInvalidQuery},
		{"bad_sort", "sort=bogus", CodeInvalidQuery},
		{"bad_order", "order=sideways", CodeInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAggregator{}
			_, r := newTestHandler(t, stub, false)

			w := doRequest(r, "GET", "/usage-tracker/collections?"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Status = %d, want 400", w.Code)
			}
			resp := decodeError(t, w)
			if resp.Error.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
			if stub.listCalls != 0 {
				t.Error("Validation failure must not reach the query layer")
			}
		})
	}

	t.Run("limit_details", func(t *testing.T) {
		stub := &stubAggregator{}
		_, r := newTestHandler(t, stub, false)

		w := doRequest(r, "GET", "/usage-tracker/collections?limit=150")
		resp := decodeError(t, w)
		details, ok := resp.Error.Details.(map[string]any)
		if !ok {
			t.Fatalf("Details = %T, want object", resp.Error.Details)
		}
		// Out-of-range input reports the parsed number, not the raw string
		if details["provided"] != float64(150) || details["min"] != float64(1) || details["max"] != float64(100) {
			t.Errorf("Details = %v", details)
		}
	})

	t.Run("limit_details_non_numeric", func(t *testing.T) {
		stub := &stubAggregator{}
		_, r := newTestHandler(t, stub, false)

		w := doRequest(r, "GET", "/usage-tracker/collections?limit=abc")
		resp := decodeError(t, w)
		details, ok := resp.Error.Details.(map[string]any)
		if !ok {
			t.Fatalf("Details = %T, want object", resp.Error.Details)
		}
		if details["provided"] != "abc" {
			t.Errorf("Non-numeric input should echo the raw string, got %v", details["provided"])
		}
	})
}

func TestGetActivityDateValidation(t *testing.T) {
	stub := &stubAggregator{}
	_, r := newTestHandler(t, stub, false)

	t.Run("start_after_end", func(t *testing.T) {
		w := doRequest(r, "GET",
			"/usage-tracker/activity?start_date=2025-01-20T00:00:00Z&end_date=2025-01-13T00:00:00Z")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Status = %d, want 400", w.Code)
		}
		resp := decodeError(t, w)
		if resp.Error.Code != CodeInvalidDateRange {
			t.Errorf("Code = %s, want %s", resp.Error.Code, CodeInvalidDateRange)
		}
		if stub.statsCalls != 0 {
			t.Error("Invalid range must be rejected before any query runs")
		}
	})

	t.Run("malformed_date", func(t *testing.T) {
		w := doRequest(r, "GET", "/usage-tracker/activity?start_date=notadate")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Status = %d, want 400", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != CodeInvalidQuery {
			t.Errorf("Code = %s, want %s", resp.Error.Code, CodeInvalidQuery)
		}
	})
}

func TestActivityCaching(t *testing.T) {
	stub := &stubAggregator{stats: model.ActivityStatistics{TotalRequests: 42}}
	_, r := newTestHandler(t, stub, true)

	target := "/usage-tracker/activity?start_date=2025-01-13T00:00:00Z&end_date=2025-01-20T23:59:59Z"

	w1 := doRequest(r, "GET", target)
	if w1.Code != http.StatusOK {
		t.Fatalf("First request status = %d: %s", w1.Code, w1.Body.String())
	}
	var first model.ActivityStatistics
	json.Unmarshal(w1.Body.Bytes(), &first)
	if first.Cached {
		t.Error("First response must report cached:false")
	}

	w2 := doRequest(r, "GET", target)
	var second model.ActivityStatistics
	json.Unmarshal(w2.Body.Bytes(), &second)
	if !second.Cached {
		t.Error("Second identical request must report cached:true")
	}
	if second.TotalRequests != 42 {
		t.Errorf("Cached payload TotalRequests = %d, want 42", second.TotalRequests)
	}
	if stub.statsCalls != 1 {
		t.Errorf("Query layer invoked %d times across two calls, want exactly 1", stub.statsCalls)
	}
}

func TestActivityCacheKeyNormalization(t *testing.T) {
	base := analytics.ActivityFilter{
		Start: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		Limit: 10,
	}
	a := base
	a.Collections = []string{"articles", "posts"}
	b := base
	b.Collections = []string{"posts", "articles"}

	if activityCacheKey("ns", a) != activityCacheKey("ns", b) {
		t.Error("Order-equivalent filter sets must produce the same cache key")
	}

	c := base
	c.Collections = []string{"articles"}
	if activityCacheKey("ns", a) == activityCacheKey("ns", c) {
		t.Error("Different filter sets must produce different cache keys")
	}
}

func TestGetActivityByIP(t *testing.T) {
	t.Run("invalid_ip", func(t *testing.T) {
		stub := &stubAggregator{}
		_, r := newTestHandler(t, stub, false)

		w := doRequest(r, "GET", "/usage-tracker/activity/ips/not-an-ip")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Status = %d, want 400", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != CodeInvalidIP {
			t.Errorf("Code = %s, want %s", resp.Error.Code, CodeInvalidIP)
		}
	})

	t.Run("scopes_filter_to_path_ip", func(t *testing.T) {
		stub := &stubAggregator{}
		_, r := newTestHandler(t, stub, false)

		w := doRequest(r, "GET", "/usage-tracker/activity/ips/203.0.113.7?ip_addresses=9.9.9.9")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d: %s", w.Code, w.Body.String())
		}
		if len(stub.lastFilter.IPs) != 1 || stub.lastFilter.IPs[0] != "203.0.113.7" {
			t.Errorf("Filter IPs = %v, want the path IP only", stub.lastFilter.IPs)
		}
	})
}

func TestGetTimeseries(t *testing.T) {
	t.Run("invalid_granularity", func(t *testing.T) {
		stub := &stubAggregator{}
		_, r := newTestHandler(t, stub, false)

		w := doRequest(r, "GET", "/usage-tracker/activity/timeseries?granularity=month")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Status = %d, want 400", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != CodeInvalidGranularity {
			t.Errorf("Code = %s, want %s", resp.Error.Code, CodeInvalidGranularity)
		}
		if stub.seriesCalls != 0 {
			t.Error("Invalid granularity must not reach the query layer")
		}
	})

	t.Run("default_day", func(t *testing.T) {
		stub := &stubAggregator{points: []model.TimeseriesPoint{{Period: "2025-01-13", Count: 3}}}
		_, r := newTestHandler(t, stub, false)

		w := doRequest(r, "GET", "/usage-tracker/activity/timeseries")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d: %s", w.Code, w.Body.String())
		}
		var resp model.TimeseriesResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Granularity != "day" {
			t.Errorf("Granularity = %s, want day", resp.Granularity)
		}
		if len(resp.Timeseries) != 1 || resp.Timeseries[0].Count != 3 {
			t.Errorf("Timeseries = %+v", resp.Timeseries)
		}
	})
}

func TestGetCollectionNotFound(t *testing.T) {
	stub := &stubAggregator{usageErr: utils.ErrCollectionNotFound}
	_, r := newTestHandler(t, stub, false)

	w := doRequest(r, "GET", "/usage-tracker/collections/missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Code != CodeNotFound {
		t.Errorf("Code = %s, want %s", resp.Error.Code, CodeNotFound)
	}
}

func TestCacheClearEndpoints(t *testing.T) {
	stub := &stubAggregator{}
	h, r := newTestHandler(t, stub, true)
	ctx := context.Background()

	seed := func() {
		h.cache.Set(ctx, cache.NamespaceActivity+":stats|x", []byte("v"), time.Minute)
		h.cache.Set(ctx, cache.NamespaceTimeseries+":day|x", []byte("v"), time.Minute)
		h.cache.Set(ctx, cache.NamespaceCollections+":list|x", []byte("v"), time.Minute)
	}

	t.Run("activity_cache", func(t *testing.T) {
		seed()
		w := doRequest(r, "DELETE", "/usage-tracker/activity/cache")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d: %s", w.Code, w.Body.String())
		}
		var resp CacheClearResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if !resp.Success {
			t.Error("Expected success:true")
		}
		if h.cache.Has(ctx, cache.NamespaceActivity+":stats|x") {
			t.Error("Activity key should be cleared")
		}
		if h.cache.Has(ctx, cache.NamespaceTimeseries+":day|x") {
			t.Error("Timeseries key should be cleared with the activity cache")
		}
		if !h.cache.Has(ctx, cache.NamespaceCollections+":list|x") {
			t.Error("Collections key should survive an activity clear")
		}
	})

	t.Run("full_cache", func(t *testing.T) {
		seed()
		w := doRequest(r, "DELETE", "/usage-tracker/cache")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d: %s", w.Code, w.Body.String())
		}
		if h.cache.Has(ctx, cache.NamespaceCollections+":list|x") {
			t.Error("Full clear should remove collection keys too")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	stub := &stubAggregator{}
	_, r := newTestHandler(t, stub, false)

	w := doRequest(r, "GET", "/usage-tracker/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.Version != Version || resp.Endpoint != "/usage-tracker" {
		t.Errorf("Health = %+v", resp)
	}
}
