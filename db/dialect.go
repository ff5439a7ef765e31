package db

import (
	"fmt"
	"strings"
)

// Engine identifies the SQL engine the host Directus instance runs on.
type Engine int

const (
	EngineSQLite Engine = iota
	EnginePostgres
	EngineMySQL
)

func (e Engine) String() string {
	switch e {
	case EnginePostgres:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// ParseEngine maps a configured engine name to an Engine. Unrecognized
// names fall back to the sqlite dialect, which uses the most portable
// expressions; ok reports whether the name was recognized.
func ParseEngine(name string) (engine Engine, ok bool) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return EnginePostgres, true
	case "mysql", "mariadb":
		return EngineMySQL, true
	case "sqlite", "sqlite3":
		return EngineSQLite, true
	default:
		return EngineSQLite, false
	}
}

// Dialect renders the engine-specific SQL fragments the aggregation
// queries need: identifier quoting, placeholder style and time-bucket
// expressions.
type Dialect struct {
	engine Engine
}

func NewDialect(engine Engine) Dialect {
	return Dialect{engine: engine}
}

func (d Dialect) Engine() Engine { return d.engine }

// Placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d.engine == EnginePostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdent quotes a table or column identifier. Embedded quotes are
// doubled so a hostile identifier cannot break out.
func (d Dialect) QuoteIdent(name string) string {
	if d.engine == EngineMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BucketExpr returns an expression that truncates column to the given
// granularity (hour, day or week) and formats it as the period label
// used in timeseries responses.
func (d Dialect) BucketExpr(column, granularity string) string {
	switch d.engine {
	case EnginePostgres:
		switch granularity {
		case "hour":
			return fmt.Sprintf("to_char(date_trunc('hour', %s), 'YYYY-MM-DD HH24:00')", column)
		case "week":
			return fmt.Sprintf("to_char(date_trunc('week', %s), 'YYYY-MM-DD')", column)
		default:
			return fmt.Sprintf("to_char(date_trunc('day', %s), 'YYYY-MM-DD')", column)
		}
	case EngineMySQL:
		switch granularity {
		case "hour":
			return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00')", column)
		case "week":
			// Monday of the record's week, matching date_trunc('week')
			return fmt.Sprintf("DATE_FORMAT(DATE_SUB(%s, INTERVAL WEEKDAY(%s) DAY), '%%Y-%%m-%%d')", column, column)
		default:
			return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", column)
		}
	default:
		switch granularity {
		case "hour":
			return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00', %s)", column)
		case "week":
			// Monday of the record's week; %w is 0=Sunday
			return fmt.Sprintf("date(%s, '-' || ((strftime('%%w', %s) + 6) %% 7) || ' days')", column, column)
		default:
			return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
		}
	}
}

// TableListQuery returns the schema-introspection query listing base
// table names, one text column per row.
func (d Dialect) TableListQuery() string {
	switch d.engine {
	case EnginePostgres:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	case EngineMySQL:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`
	default:
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}
}
