package settings

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			description TEXT,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)
	return db
}

func TestRepository_GetMissing(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	value, err := repo.Get(KeyDefaultCurrency)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRepository_SetAndGet(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Set(KeyDefaultCurrency, "EUR"))
	require.NoError(t, repo.Set(KeyDefaultCurrency, "GBP"))

	value, err := repo.Get(KeyDefaultCurrency)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "GBP", *value)
}

func TestRepository_Bool(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	_, ok, err := repo.GetBool(KeyShowConverted)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetBool(KeyShowConverted, false))
	value, ok, err := repo.GetBool(KeyShowConverted)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, value)

	require.NoError(t, repo.Set(KeyShowConverted, "maybe"))
	_, ok, err = repo.GetBool(KeyShowConverted)
	require.NoError(t, err)
	assert.False(t, ok)
}
