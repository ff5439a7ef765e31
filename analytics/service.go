// Package analytics runs the grouped COUNT aggregations behind the
// dashboard endpoints: per-collection row counts and audit-log activity
// statistics.
package analytics

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"directus-usage-tracker/db"
	"directus-usage-tracker/utils"
)

const (
	activityTable = "directus_activity"
	metaTable     = "directus_collections"
	systemPrefix  = "directus_"

	timestampColumn = "timestamp"
)

// maxExactFloat is the largest float64 that still represents every
// integer exactly (2^53). Aggregates above it are flagged, not rounded.
const maxExactFloat = float64(1 << 53)

// Service executes aggregation queries against the host database.
type Service struct {
	conn    *sql.DB
	dialect db.Dialect
}

func New(conn *sql.DB, dialect db.Dialect) *Service {
	return &Service{conn: conn, dialect: dialect}
}

// coerceCount normalizes an aggregate result to int64. Engines return
// 64-bit aggregates as int64, float64 or numeric strings depending on
// driver and column type.
func coerceCount(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", utils.ErrCountOverflow, n)
		}
		return int64(n), nil
	case float64:
		if math.Abs(n) >= maxExactFloat {
			return 0, fmt.Errorf("%w: %g", utils.ErrCountOverflow, n)
		}
		return int64(n), nil
	case []byte:
		return parseCountString(string(n))
	case string:
		return parseCountString(n)
	default:
		return 0, fmt.Errorf("unsupported count type %T", v)
	}
}

func parseCountString(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", utils.ErrCountOverflow, s)
		}
		return 0, fmt.Errorf("parse count %q: %w", s, err)
	}
	return n, nil
}

// round1 rounds to one decimal place, matching the dashboard's display
// precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percentage of count against total, defined as 0 when total is 0.
func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}

// condBuilder accumulates WHERE conditions with engine-correct
// placeholders. Not safe for concurrent use; each query builds its own.
type condBuilder struct {
	dialect db.Dialect
	conds   []string
	args    []any
}

func newCondBuilder(dialect db.Dialect) *condBuilder {
	return &condBuilder{dialect: dialect}
}

// placeholder appends arg and returns its bind marker.
func (b *condBuilder) placeholder(arg any) string {
	b.args = append(b.args, arg)
	return b.dialect.Placeholder(len(b.args))
}

func (b *condBuilder) cmp(column, op string, arg any) {
	b.conds = append(b.conds, fmt.Sprintf("%s %s %s", column, op, b.placeholder(arg)))
}

func (b *condBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	markers := make([]string, len(values))
	for i, v := range values {
		markers[i] = b.placeholder(v)
	}
	b.conds = append(b.conds, fmt.Sprintf("%s IN (%s)", column, strings.Join(markers, ", ")))
}

func (b *condBuilder) notNull(column string) {
	b.conds = append(b.conds, column+" IS NOT NULL")
}

func (b *condBuilder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}
