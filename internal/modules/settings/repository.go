// Package settings keeps the user's currency preferences: loaded from the
// remote service, mirrored locally in config.db, updated optimistically.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Keys of the local preference mirror.
const (
	KeyDefaultCurrency = "default_currency"
	KeyShowConverted   = "show_converted"
)

// Repository handles the settings table in config.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get returns a setting value, or nil when the key does not exist.
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting value.
func (r *Repository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetBool returns a boolean setting; ok is false when the key is missing
// or unparseable.
func (r *Repository) GetBool(key string) (value bool, ok bool, err error) {
	raw, err := r.Get(key)
	if err != nil || raw == nil {
		return false, false, err
	}
	b, parseErr := strconv.ParseBool(*raw)
	if parseErr != nil {
		r.log.Warn().Str("key", key).Str("value", *raw).Msg("Ignoring unparseable boolean setting")
		return false, false, nil
	}
	return b, true, nil
}

// SetBool stores a boolean setting.
func (r *Repository) SetBool(key string, value bool) error {
	return r.Set(key, strconv.FormatBool(value))
}
