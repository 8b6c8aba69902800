package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/migrations"
	"github.com/koopa0/system-design/14-monster-tcg/internal/testutils"
	"github.com/koopa0/system-design/14-monster-tcg/pkg/logger"
)

const latestVersion = 4

func TestMigrator(t *testing.T) {
	env := testutils.SetupPostgres(t)

	m, err := migrations.New(env.PostgresDSN, logger.Discard())
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(latestVersion), version)
	assert.False(t, dirty)

	// 已是最新版本時 Up 不報錯
	require.NoError(t, m.Up())

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(latestVersion-1), version)

	require.NoError(t, m.Reset())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	// 沒有可回滾的版本
	require.NoError(t, m.Reset())

	require.NoError(t, m.Up())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(latestVersion), version)
}

func TestCommand(t *testing.T) {
	t.Run("unknown", func(t *testing.T) {
		err := migrations.Command("postgres://unused", "sideways", logger.Discard())
		assert.ErrorIs(t, err, migrations.ErrUnknownCommand)
	})

	env := testutils.SetupPostgres(t)
	for _, cmd := range []string{
		migrations.CommandVersion,
		migrations.CommandDown,
		migrations.CommandUp,
		migrations.CommandReset,
		migrations.CommandUp,
	} {
		require.NoError(t, migrations.Command(env.PostgresDSN, cmd, logger.Discard()), cmd)
	}

	m, err := migrations.New(env.PostgresDSN, logger.Discard())
	require.NoError(t, err)
	defer m.Close()
	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(latestVersion), version)
}
