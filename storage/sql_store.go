package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"  // driver: postgres
	_ "modernc.org/sqlite" // driver: sqlite

	"car-price-app/models"
	"car-price-app/utils"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLStore keeps reference listings and the optional estimate log in
// PostgreSQL or SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, waits for it to answer using retry, and
// makes sure the schema exists. A nil retry pings once.
func Open(ctx context.Context, driver, dsn string, retry *utils.RetryConfig) (*SQLStore, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("sql: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection so that ":memory:" databases are shared
		db.SetMaxOpenConns(1)
	}

	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	if err := retry.Do(ctx, driver+" ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := schemaPostgres
	if s.driver == DriverSQLite {
		schema = schemaSQLite
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schemaPostgres = `
	CREATE TABLE IF NOT EXISTS listings (
		id          SERIAL PRIMARY KEY,
		label       TEXT          NOT NULL,
		price       NUMERIC(12,2) NOT NULL,
		description TEXT          NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);

	CREATE TABLE IF NOT EXISTS estimates (
		id                TEXT PRIMARY KEY,
		year              TEXT NOT NULL DEFAULT '',
		mileage           TEXT NOT NULL DEFAULT '',
		engine_power      TEXT NOT NULL DEFAULT '',
		brand             TEXT NOT NULL DEFAULT '',
		fuel              TEXT NOT NULL DEFAULT '',
		gearbox           TEXT NOT NULL DEFAULT '',
		vehicle_condition TEXT NOT NULL DEFAULT '',
		location          TEXT NOT NULL DEFAULT '',
		log_price         DOUBLE PRECISION NOT NULL,
		base_price        DOUBLE PRECISION NOT NULL,
		multiplier        DOUBLE PRECISION NOT NULL,
		price             DOUBLE PRECISION NOT NULL,
		imputed           TEXT    NOT NULL DEFAULT '',
		comparables       INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL
	);
`

const schemaSQLite = `
	CREATE TABLE IF NOT EXISTS listings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		label       TEXT NOT NULL,
		price       REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);

	CREATE TABLE IF NOT EXISTS estimates (
		id                TEXT PRIMARY KEY,
		year              TEXT NOT NULL DEFAULT '',
		mileage           TEXT NOT NULL DEFAULT '',
		engine_power      TEXT NOT NULL DEFAULT '',
		brand             TEXT NOT NULL DEFAULT '',
		fuel              TEXT NOT NULL DEFAULT '',
		gearbox           TEXT NOT NULL DEFAULT '',
		vehicle_condition TEXT NOT NULL DEFAULT '',
		location          TEXT NOT NULL DEFAULT '',
		log_price         REAL NOT NULL,
		base_price        REAL NOT NULL,
		multiplier        REAL NOT NULL,
		price             REAL NOT NULL,
		imputed           TEXT    NOT NULL DEFAULT '',
		comparables       INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMP NOT NULL
	);
`

// SeedListings inserts listings only when the table is empty, so that
// rows edited by hand survive a restart. It reports how many rows were
// inserted.
func (s *SQLStore) SeedListings(ctx context.Context, listings []*models.Listing) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count listings: %w", s.driver, err)
	}
	if n > 0 || len(listings) == 0 {
		return 0, nil
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := s.insertBatch(ctx, listings[i:end]); err != nil {
			return 0, fmt.Errorf("%s: seed listings: %w", s.driver, err)
		}
	}
	return len(listings), nil
}

func (s *SQLStore) insertBatch(ctx context.Context, batch []*models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*3)

	for idx, l := range batch {
		base := idx * 3
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d)", base+1, base+2, base+3))
		valueArgs = append(valueArgs, l.Label, l.Price, l.Description)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (label, price, description)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := s.db.ExecContext(ctx, query, valueArgs...)
	return err
}

// FetchListings retrieves all stored listings in insertion order.
func (s *SQLStore) FetchListings(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, price, description
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch listings: %w", s.driver, err)
	}
	defer rows.Close()

	listings := []*models.Listing{}
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(&l.ID, &l.Label, &l.Price, &l.Description); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.driver, err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// WriteEstimate records one completed estimate. Writing the same id twice
// is a no-op.
func (s *SQLStore) WriteEstimate(ctx context.Context, e *models.Estimate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO estimates (
			id, year, mileage, engine_power, brand, fuel, gearbox,
			vehicle_condition, location, log_price, base_price, multiplier,
			price, imputed, comparables, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO NOTHING
	`,
		e.ID, string(e.Input.Year), string(e.Input.Mileage), string(e.Input.EnginePower),
		e.Input.Brand, e.Input.Fuel, e.Input.Gearbox, e.Input.VehicleCondition, e.Input.Location,
		e.LogPrice, e.BasePrice, e.Multiplier, e.Price,
		strings.Join(e.Imputed, "|"), len(e.Comparables), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: write estimate: %w", s.driver, err)
	}
	return nil
}

// CountEstimates returns the number of logged estimates.
func (s *SQLStore) CountEstimates(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM estimates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count estimates: %w", s.driver, err)
	}
	return n, nil
}

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
