package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["version"])
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "beanboard")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(&RootOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":7070\"\n"), 0o600))

	cfg, err := loadConfig(&RootOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
}

func TestMigrate_RejectsSQLite(t *testing.T) {
	root := NewRootCommand()
	root.SetErr(&bytes.Buffer{})
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "up"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
