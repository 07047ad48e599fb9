// Package clientdata persists the last good copy of remote data (exchange
// rate tables, account lists) in client_data.db so the service can degrade
// to stale data when the remote analytics service is unreachable.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache tables in client_data.db.
const (
	TableExchangeRate = "exchangerate"
	TableAccounts     = "accounts"
)

// TTLs added to time.Now() when storing.
const (
	TTLExchangeRate = time.Hour
	TTLAccounts     = 24 * time.Hour
)

// AllTables lists all tables in client_data.db for cleanup operations.
var AllTables = []string{TableExchangeRate, TableAccounts}

// Entry is a cached blob with its bookkeeping timestamps.
type Entry struct {
	Data      json.RawMessage
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable guards the table name interpolated into SQL.
func validateTable(table string) error {
	for _, t := range AllTables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("invalid table name: %s", table)
}

// Store upserts data as JSON with expiration = now + ttl.
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	now := r.now()
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (cache_key, data, stored_at, expires_at) VALUES (?, ?, ?, ?)",
		table,
	)
	if _, err := r.db.Exec(query, key, string(jsonData), now.Unix(), now.Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}
	return nil
}

// Get returns data regardless of expiration; nil, nil when absent.
// Stale data is the fallback when the remote service fails.
func (r *Repository) Get(table, key string) (json.RawMessage, error) {
	entry, err := r.Lookup(table, key)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Data, nil
}

// Lookup returns the entry with its timestamps; nil, nil when absent.
func (r *Repository) Lookup(table, key string) (*Entry, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data, stored_at, expires_at FROM %s WHERE cache_key = ?", table)

	var (
		data               string
		storedAt, expireAt int64
	)
	err := r.db.QueryRow(query, key).Scan(&data, &storedAt, &expireAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return &Entry{
		Data:      json.RawMessage(data),
		StoredAt:  time.Unix(storedAt, 0),
		ExpiresAt: time.Unix(expireAt, 0),
	}, nil
}

// DeleteExpiredBefore removes rows that expired before cutoff.
func (r *Repository) DeleteExpiredBefore(table string, cutoff time.Time) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)
	result, err := r.db.Exec(query, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// DeleteAllExpiredBefore runs DeleteExpiredBefore on every table.
func (r *Repository) DeleteAllExpiredBefore(cutoff time.Time) (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))
	for _, table := range AllTables {
		deleted, err := r.DeleteExpiredBefore(table, cutoff)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}
	return results, nil
}
