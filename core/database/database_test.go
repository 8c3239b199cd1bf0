package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := Config{User: "shop", Name: "starshop"}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, 10, cfg.MaxConnections)
}

func TestConfigNormalizeRequiresName(t *testing.T) {
	cfg := Config{User: "shop"}
	require.Error(t, cfg.Normalize())
}

func TestConfigDSNAndURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "shop", Password: "p@ss word", Name: "starshop", SSLMode: "disable"}

	assert.Equal(t, `user=shop password='p@ss word' host=db port=5433 dbname=starshop sslmode=disable`, cfg.DSN())
	assert.Equal(t, "postgres://shop:p%40ss%20word@db:5433/starshop?sslmode=disable", cfg.URL())
}

func TestSelectApplied(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "000003_c.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	files := listMigrationFiles(dir)
	require.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}, files)

	assert.Equal(t, []string{"000002_b.up.sql", "000003_c.up.sql"}, selectApplied(files, 1, 3))
	assert.Empty(t, selectApplied(files, 3, 3))
	assert.Equal(t, uint64(2), parseVersion("000002_b.up.sql"))
}
