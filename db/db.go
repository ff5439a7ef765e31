// Package db owns the connection to the host Directus database and the
// per-engine SQL dialect used by the aggregation queries.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"directus-usage-tracker/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

func driverName(engine Engine) string {
	switch engine {
	case EnginePostgres:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}

// Open connects to the host database described by cfg and returns the
// handle together with the matching dialect.
func Open(cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	engine, known := ParseEngine(cfg.Engine)
	if !known && cfg.Engine != "" {
		log.Warn().
			Str("configured", cfg.Engine).
			Str("using", engine.String()).
			Msg("Unrecognized database engine, falling back to sqlite dialect")
	}

	conn, err := sql.Open(driverName(engine), cfg.DSN)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s database: %w", engine, err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s database: %w", engine, err)
	}

	log.Info().
		Str("engine", engine.String()).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Connected to database")

	return conn, NewDialect(engine), nil
}
