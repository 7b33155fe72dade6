package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/config"
)

func TestNewPostgresRequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestNewRedisWithoutAddrIsDisabled(t *testing.T) {
	r := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop())

	assert.False(t, r.Enabled())
	assert.NoError(t, r.Ping(context.Background()))
	assert.NotPanics(t, r.Close)
}

func TestRunMigrationsWithoutPoolIsSkipped(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, "does-not-matter", zap.NewNop()))
}

func TestShippedMigrationsAreSQL(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Equal(t, ".sql", filepath.Ext(entry.Name()), entry.Name())
	}
}

func TestHistoryMigrationOrdersEntriesWithinATransaction(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "seq BIGSERIAL")
	assert.Contains(t, sql, "DEFAULT clock_timestamp()")
}
