package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE exchangerate (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, stored_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE accounts (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, stored_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func TestStoreAndGet(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	table := map[string]interface{}{"baseCurrency": "USD", "rates": map[string]float64{"EUR": 1.08}}
	require.NoError(t, repo.Store(TableExchangeRate, "table", table, TTLExchangeRate))

	raw, err := repo.Get(TableExchangeRate, "table")
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, "USD", parsed["baseCurrency"])
}

func TestStore_Upserts(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store(TableAccounts, "all", []int{1}, time.Hour))
	require.NoError(t, repo.Store(TableAccounts, "all", []int{1, 2}, time.Hour))

	raw, err := repo.Get(TableAccounts, "all")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(raw))
}

func TestGet_Missing(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	raw, err := repo.Get(TableAccounts, "missing")
	assert.NoError(t, err)
	assert.Nil(t, raw)
}

func TestGet_ReturnsExpiredEntry(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	require.NoError(t, repo.Store(TableExchangeRate, "table", map[string]int{"v": 1}, time.Hour))

	repo.now = func() time.Time { return base.Add(2 * time.Hour) }

	raw, err := repo.Get(TableExchangeRate, "table")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(raw))
}

func TestLookup_Timestamps(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	require.NoError(t, repo.Store(TableAccounts, "all", []string{}, TTLAccounts))

	entry, err := repo.Lookup(TableAccounts, "all")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, base.Unix(), entry.StoredAt.Unix())
	assert.Equal(t, base.Add(TTLAccounts).Unix(), entry.ExpiresAt.Unix())
}

func TestInvalidTable(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	assert.Error(t, repo.Store("settings; DROP TABLE accounts", "k", 1, time.Hour))
	_, err := repo.Get("nope", "k")
	assert.Error(t, err)
	_, err = repo.DeleteExpiredBefore("nope", time.Now())
	assert.Error(t, err)
}

func TestDeleteAllExpiredBefore(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	require.NoError(t, repo.Store(TableExchangeRate, "old", 1, time.Minute))
	require.NoError(t, repo.Store(TableExchangeRate, "new", 1, 48*time.Hour))
	require.NoError(t, repo.Store(TableAccounts, "old", 1, time.Minute))

	repo.now = func() time.Time { return base.Add(time.Hour) }

	results, err := repo.DeleteAllExpiredBefore(base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{TableExchangeRate: 1, TableAccounts: 1}, results)

	results, err = repo.DeleteAllExpiredBefore(base)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{TableExchangeRate: 0, TableAccounts: 0}, results)

	raw, err := repo.Get(TableExchangeRate, "new")
	require.NoError(t, err)
	assert.NotNil(t, raw)
}
