package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/postbacks")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPPort)
	assert.Equal(t, "keitaro_integration", cfg.ServiceName)
	assert.Equal(t, []string{"keitaro"}, cfg.PostbackKind)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 10*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 1<<20, cfg.MaxBodyBytes)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.ClickHouseDSN)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_SQLiteDoesNotNeedDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "/tmp/relay.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/relay.db", cfg.SQLitePath)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/postbacks")
	t.Setenv("POSTBACK_KINDS", " Keitaro , binom,,")
	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("ANALYTICS_BATCH_SIZE", "250")
	t.Setenv("FIBER_PREFORK", "true")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"keitaro", "binom"}, cfg.PostbackKind)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 250, cfg.AnalyticsBatchSize)
	assert.True(t, cfg.FiberPrefork)
	assert.Equal(t, int32(20), cfg.DBMaxConns, "invalid numbers fall back to the default")
}

func TestLoad_AnalyticsSettingsValidatedWhenEnabled(t *testing.T) {
	cases := map[string][2]string{
		"zero flush interval": {"ANALYTICS_FLUSH_EVERY", "0s"},
		"negative buffer":     {"ANALYTICS_BUFFER_SIZE", "-1"},
		"zero batch":          {"ANALYTICS_BATCH_SIZE", "0"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/postbacks")
			t.Setenv("CLICKHOUSE_DSN", "clickhouse://localhost:9000/default")
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}

func TestLoad_AnalyticsSettingsIgnoredWhenDisabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/postbacks")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("ANALYTICS_FLUSH_EVERY", "0s")

	_, err := Load()
	require.NoError(t, err)
}

func TestLoad_RequestTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/postbacks")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)

	t.Setenv("REQUEST_TIMEOUT", "-1s")
	_, err = Load()
	require.Error(t, err)
}

func TestKindEnabled(t *testing.T) {
	cfg := &Config{PostbackKind: []string{"keitaro"}}

	assert.True(t, cfg.KindEnabled("keitaro"))
	assert.True(t, cfg.KindEnabled("KEITARO"))
	assert.False(t, cfg.KindEnabled("binom"))
}
