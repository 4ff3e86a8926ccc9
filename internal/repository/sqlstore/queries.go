package sqlstore

import "fmt"

// Dialect selects the SQL flavour and driver used by the store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case DialectSQLite, DialectPostgres:
		return Dialect(name), nil
	case "sqlite3":
		return DialectSQLite, nil
	case "pgx", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

type queries struct {
	insertSnapshot        string
	latestSnapshot        string
	deleteSnapshotsBefore string
	insertConversion      string
	listConversions       string
}

var sqliteQueries = queries{
	insertSnapshot: `
		INSERT INTO rate_snapshots (base_currency, rates, fetched_at)
		VALUES (?, ?, ?)
		RETURNING id
	`,
	latestSnapshot: `
		SELECT id, base_currency, rates, fetched_at
		FROM rate_snapshots
		WHERE base_currency = ? AND fetched_at > ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`,
	deleteSnapshotsBefore: `
		DELETE FROM rate_snapshots
		WHERE fetched_at < ?
	`,
	insertConversion: `
		INSERT INTO conversion_history (from_currency, to_currency, amount, result, rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
	listConversions: `
		SELECT id, from_currency, to_currency, amount, result, rate, created_at
		FROM conversion_history
		ORDER BY created_at DESC, id DESC
	`,
}

var postgresQueries = queries{
	insertSnapshot: `
		INSERT INTO rate_snapshots (base_currency, rates, fetched_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`,
	latestSnapshot: `
		SELECT id, base_currency, rates, fetched_at
		FROM rate_snapshots
		WHERE base_currency = $1 AND fetched_at > $2
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`,
	deleteSnapshotsBefore: `
		DELETE FROM rate_snapshots
		WHERE fetched_at < $1
	`,
	insertConversion: `
		INSERT INTO conversion_history (from_currency, to_currency, amount, result, rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
	listConversions: `
		SELECT id, from_currency, to_currency, amount, result, rate, created_at
		FROM conversion_history
		ORDER BY created_at DESC, id DESC
	`,
}

func queriesFor(d Dialect) queries {
	if d == DialectPostgres {
		return postgresQueries
	}
	return sqliteQueries
}
