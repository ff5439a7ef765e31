package analytics

import (
	"context"
	"fmt"
	"time"

	"directus-usage-tracker/model"
)

// Granularities supported by Timeseries.
const (
	GranularityHour = "hour"
	GranularityDay  = "day"
	GranularityWeek = "week"
)

// ValidGranularity reports whether g is a supported bucket width.
func ValidGranularity(g string) bool {
	return g == GranularityHour || g == GranularityDay || g == GranularityWeek
}

// Timeseries groups activity counts into time buckets for trend charts.
// Buckets with no activity are omitted, matching the chart library's
// sparse input format.
func (s *Service) Timeseries(ctx context.Context, start, end time.Time, granularity string) ([]model.TimeseriesPoint, error) {
	bucket := s.dialect.BucketExpr(s.dialect.QuoteIdent(timestampColumn), granularity)

	b := newCondBuilder(s.dialect)
	ts := s.dialect.QuoteIdent(timestampColumn)
	b.cmp(ts, ">=", start)
	b.cmp(ts, "<=", end)

	query := fmt.Sprintf(
		"SELECT %s AS period, COUNT(*) FROM %s%s GROUP BY %s ORDER BY %s ASC",
		bucket, activityTable, b.where(), bucket, bucket,
	)

	rows, err := s.conn.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("timeseries: %w", err)
	}
	defer rows.Close()

	var points []model.TimeseriesPoint
	for rows.Next() {
		var period string
		var raw any
		if err := rows.Scan(&period, &raw); err != nil {
			return nil, fmt.Errorf("timeseries scan: %w", err)
		}
		count, err := coerceCount(raw)
		if err != nil {
			return nil, err
		}
		points = append(points, model.TimeseriesPoint{Period: period, Count: count})
	}
	return points, rows.Err()
}
