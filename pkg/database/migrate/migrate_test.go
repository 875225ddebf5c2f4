package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_PairUp(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file name %q", name)
		}
	}

	// Every up migration has a matching down.
	assert.Equal(t, ups, downs)
}

func TestEmbeddedMigrations_CreateScores(t *testing.T) {
	data, err := fs.ReadFile(migrations, "migrations/000001_create_scores.up.sql")
	require.NoError(t, err)

	sql := string(data)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS scores")
	assert.Contains(t, sql, "player_key")
	assert.Contains(t, sql, "total_elapsed_ms")
	assert.Contains(t, sql, "counter_value")
}
