package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectError    bool
	}{
		{"help flag", []string{"--help"}, "registration backend for a single event", false},
		{"short help flag", []string{"-h"}, "registration backend for a single event", false},
		{"invalid flag", []string{"--invalid-flag"}, "unknown flag: --invalid-flag", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runRoot(t, tt.args...)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, output, tt.expectedOutput)
		})
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, flag := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "version", "healthcheck"} {
		assert.True(t, names[want], "expected subcommand %q", want)
	}
}

func TestLoadConfigFromFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
event:
  name: Gophercon
  hours: 6
`), 0o600))
	t.Setenv("EVENT_HOURS", "")

	newRootCommand()
	configPath = path
	logLevel = "debug"
	t.Cleanup(func() {
		configPath = ""
		logLevel = ""
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "Gophercon", cfg.Event.Name)
	assert.Equal(t, 6, cfg.Event.Hours)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
