package analytics

import (
	"context"
	"fmt"
	"time"

	"directus-usage-tracker/model"

	"golang.org/x/sync/errgroup"
)

// ActivityFilter bounds an activity aggregation. The window is
// inclusive on both ends. Empty filter slices mean "no filter".
type ActivityFilter struct {
	Start       time.Time
	End         time.Time
	Collections []string
	Actions     []string
	IPs         []string
	Limit       int
}

const defaultBreakdownLimit = 10

func (f ActivityFilter) limit() int {
	if f.Limit <= 0 {
		return defaultBreakdownLimit
	}
	return f.Limit
}

// conds builds the shared WHERE conditions for the filter. Each
// sub-query calls this for a private builder so placeholder numbering
// stays consistent per statement.
func (s *Service) activityConds(f ActivityFilter) *condBuilder {
	b := newCondBuilder(s.dialect)
	ts := s.dialect.QuoteIdent(timestampColumn)
	b.cmp(ts, ">=", f.Start)
	b.cmp(ts, "<=", f.End)
	b.in("collection", f.Collections)
	b.in("action", f.Actions)
	b.in("ip", f.IPs)
	return b
}

// ActivityStats aggregates the audit log over the filter window. The
// five sub-queries run concurrently; any failure fails the whole call.
func (s *Service) ActivityStats(ctx context.Context, f ActivityFilter) (model.ActivityStatistics, error) {
	stats := model.ActivityStatistics{
		DateRange: model.DateRange{
			Start: f.Start.UTC().Format(time.RFC3339),
			End:   f.End.UTC().Format(time.RFC3339),
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b := s.activityConds(f)
		total, err := s.queryCount(gctx,
			"SELECT COUNT(*) FROM "+activityTable+b.where(), b.args)
		if err != nil {
			return fmt.Errorf("total requests: %w", err)
		}
		stats.TotalRequests = total
		return nil
	})

	g.Go(func() error {
		b := s.activityConds(f)
		userCol := s.dialect.QuoteIdent("user")
		b.notNull(userCol)
		users, err := s.queryCount(gctx,
			"SELECT COUNT(DISTINCT "+userCol+") FROM "+activityTable+b.where(), b.args)
		if err != nil {
			return fmt.Errorf("unique users: %w", err)
		}
		stats.UniqueUsers = users
		return nil
	})

	g.Go(func() error {
		b := s.activityConds(f)
		b.notNull("ip")
		ips, err := s.queryCount(gctx,
			"SELECT COUNT(DISTINCT ip) FROM "+activityTable+b.where(), b.args)
		if err != nil {
			return fmt.Errorf("unique ips: %w", err)
		}
		stats.UniqueIPs = ips
		return nil
	})

	g.Go(func() error {
		groups, err := s.groupedCounts(gctx, "collection", f)
		if err != nil {
			return fmt.Errorf("by collection: %w", err)
		}
		stats.ByCollection = make([]model.CollectionBreakdown, len(groups))
		for i, gr := range groups {
			stats.ByCollection[i] = model.CollectionBreakdown{Collection: gr.label, Count: gr.count}
		}
		return nil
	})

	g.Go(func() error {
		groups, err := s.groupedCounts(gctx, "action", f)
		if err != nil {
			return fmt.Errorf("by action: %w", err)
		}
		stats.ByAction = make([]model.ActionBreakdown, len(groups))
		for i, gr := range groups {
			stats.ByAction[i] = model.ActionBreakdown{Action: gr.label, Count: gr.count}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.ActivityStatistics{}, err
	}

	// Percentages are computed over the returned counts, so a truncated
	// top-N list still sums to ~100.
	var collTotal, actTotal int64
	for _, c := range stats.ByCollection {
		collTotal += c.Count
	}
	for i := range stats.ByCollection {
		stats.ByCollection[i].Percentage = percentage(stats.ByCollection[i].Count, collTotal)
	}
	for _, a := range stats.ByAction {
		actTotal += a.Count
	}
	for i := range stats.ByAction {
		stats.ByAction[i].Percentage = percentage(stats.ByAction[i].Count, actTotal)
	}

	return stats, nil
}

// TopIPs returns per-IP request counts over the filter window, highest
// first, truncated to the filter limit.
func (s *Service) TopIPs(ctx context.Context, f ActivityFilter) ([]model.IPBreakdown, error) {
	groups, err := s.groupedCounts(ctx, "ip", f)
	if err != nil {
		return nil, fmt.Errorf("top ips: %w", err)
	}
	var total int64
	for _, g := range groups {
		total += g.count
	}
	out := make([]model.IPBreakdown, len(groups))
	for i, g := range groups {
		out[i] = model.IPBreakdown{IP: g.label, Count: g.count, Percentage: percentage(g.count, total)}
	}
	return out, nil
}

type labelCount struct {
	label string
	count int64
}

// groupedCounts runs a grouped COUNT on column, NULLs excluded, sorted
// count-descending with the label as tiebreaker, truncated to top N.
func (s *Service) groupedCounts(ctx context.Context, column string, f ActivityFilter) ([]labelCount, error) {
	b := s.activityConds(f)
	b.notNull(column)
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) AS cnt FROM %s%s GROUP BY %s ORDER BY cnt DESC, %s ASC LIMIT %s",
		column, activityTable, b.where(), column, column, b.placeholder(f.limit()),
	)

	rows, err := s.conn.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []labelCount
	for rows.Next() {
		var label string
		var raw any
		if err := rows.Scan(&label, &raw); err != nil {
			return nil, err
		}
		count, err := coerceCount(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, labelCount{label: label, count: count})
	}
	return out, rows.Err()
}

// queryCount runs a single-value COUNT query and normalizes the result.
func (s *Service) queryCount(ctx context.Context, query string, args []any) (int64, error) {
	var raw any
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return 0, err
	}
	return coerceCount(raw)
}
