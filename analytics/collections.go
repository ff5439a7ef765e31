package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"directus-usage-tracker/model"
	"directus-usage-tracker/utils"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// rowCountConcurrency bounds the per-table COUNT fan-out so a large
// schema does not exhaust the connection pool.
const rowCountConcurrency = 4

// ListCollections discovers the host's tables and counts their rows.
// System collections (directus_ prefix) are filtered out unless
// includeSystem is set.
func (s *Service) ListCollections(ctx context.Context, includeSystem bool) ([]model.CollectionUsage, error) {
	tables, err := s.listTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	if !includeSystem {
		filtered := tables[:0]
		for _, t := range tables {
			if !strings.HasPrefix(t, systemPrefix) {
				filtered = append(filtered, t)
			}
		}
		tables = filtered
	}

	meta := s.collectionMeta(ctx)
	counts := s.RowCounts(ctx, tables)

	usages := make([]model.CollectionUsage, len(tables))
	for i, t := range tables {
		usages[i] = model.CollectionUsage{
			Collection:  t,
			RowCount:    counts[t],
			IsSystem:    strings.HasPrefix(t, systemPrefix),
			DisplayName: humanize(t),
		}
		if m, ok := meta[t]; ok {
			usages[i].Icon = m.icon
			usages[i].Color = m.color
		}
	}
	return usages, nil
}

// CollectionUsage returns the snapshot for a single collection, or
// utils.ErrCollectionNotFound when no such table exists.
func (s *Service) CollectionUsage(ctx context.Context, collection string) (model.CollectionUsage, error) {
	tables, err := s.listTables(ctx)
	if err != nil {
		return model.CollectionUsage{}, fmt.Errorf("list tables: %w", err)
	}
	found := false
	for _, t := range tables {
		if t == collection {
			found = true
			break
		}
	}
	if !found {
		return model.CollectionUsage{}, utils.ErrCollectionNotFound
	}

	count, err := s.countTable(ctx, collection)
	if err != nil {
		return model.CollectionUsage{}, fmt.Errorf("count %s: %w", collection, err)
	}

	usage := model.CollectionUsage{
		Collection:  collection,
		RowCount:    count,
		IsSystem:    strings.HasPrefix(collection, systemPrefix),
		DisplayName: humanize(collection),
	}
	if m, ok := s.collectionMeta(ctx)[collection]; ok {
		usage.Icon = m.icon
		usage.Color = m.color
	}
	return usage, nil
}

// RowCounts counts the rows of each table concurrently. A failing count
// degrades to 0 for that table only and never aborts the batch.
func (s *Service) RowCounts(ctx context.Context, tables []string) map[string]int64 {
	results := make([]int64, len(tables))

	var g errgroup.Group
	g.SetLimit(rowCountConcurrency)
	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			count, err := s.countTable(ctx, table)
			if err != nil {
				log.Warn().Err(err).Str("table", table).Msg("Row count failed, reporting 0")
				count = 0
			}
			results[i] = count
			return nil
		})
	}
	g.Wait() //nolint:errcheck // closures never return errors

	counts := make(map[string]int64, len(tables))
	for i, table := range tables {
		counts[table] = results[i]
	}
	return counts
}

func (s *Service) countTable(ctx context.Context, table string) (int64, error) {
	query := "SELECT COUNT(*) FROM " + s.dialect.QuoteIdent(table)
	return s.queryCount(ctx, query, nil)
}

func (s *Service) listTables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, s.dialect.TableListQuery())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

type collectionMeta struct {
	icon  string
	color string
}

// collectionMeta reads icon and color from directus_collections. The
// table may be absent (non-Directus schema); that just means no
// decoration.
func (s *Service) collectionMeta(ctx context.Context) map[string]collectionMeta {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT collection, icon, color FROM "+metaTable)
	if err != nil {
		log.Debug().Err(err).Msg("Collection metadata unavailable")
		return nil
	}
	defer rows.Close()

	meta := make(map[string]collectionMeta)
	for rows.Next() {
		var collection string
		var icon, color sql.NullString
		if err := rows.Scan(&collection, &icon, &color); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed collection metadata row")
			continue
		}
		meta[collection] = collectionMeta{icon: icon.String, color: color.String}
	}
	return meta
}

// humanize turns a table name into a display label: "blog_posts" ->
// "Blog Posts".
func humanize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
