package alerts

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore keeps alert state in a Postgres table, for deployments where
// the monitor runs on several hosts or the state file's host is itself being
// monitored. Each key maps to one row; the upsert keeps concurrent
// read-modify-write per key atomic on the database side.
type PostgresStore struct {
	db *sql.DB
}

const createAlertStateTable = `
CREATE TABLE IF NOT EXISTS alert_state (
	key           TEXT PRIMARY KEY,
	last_fired_at TIMESTAMPTZ NOT NULL
)`

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(createAlertStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create alert_state table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ShouldFire(key Key, cooldown time.Duration, now time.Time) (bool, error) {
	var last time.Time
	err := s.db.QueryRow(
		`SELECT last_fired_at FROM alert_state WHERE key = $1`, key.String(),
	).Scan(&last)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query alert_state: %w", err)
	}
	return now.Sub(last) >= cooldown, nil
}

func (s *PostgresStore) RecordFired(key Key, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO alert_state (key, last_fired_at) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET last_fired_at = EXCLUDED.last_fired_at`,
		key.String(), now,
	)
	if err != nil {
		return fmt.Errorf("upsert alert_state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(key Key) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM alert_state WHERE key = $1`, key.String())
	if err != nil {
		return false, fmt.Errorf("delete alert_state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
