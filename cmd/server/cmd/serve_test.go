package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandHelp(t *testing.T) {
	output, err := runRoot(t, "serve", "--help")
	require.NoError(t, err)

	for _, expected := range []string{
		"Start the attendance HTTP server",
		"--host",
		"--port",
		"server host address",
		"server port",
	} {
		assert.Contains(t, output, expected)
	}
}

func TestServeCommandFlagParsing(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{"valid host flag", []string{"--host", "127.0.0.1"}, false},
		{"valid port flag", []string{"--port", "9090"}, false},
		{"invalid port value", []string{"--port", "invalid"}, true},
		{"unknown flag", []string{"--unknown"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeCommand()
			err := cmd.ParseFlags(tt.args)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")

	_, err := runRoot(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := openBackend(config.DatabaseConfig{Driver: "memory"})
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		assert.Nil(t, store.migrations)
		assert.Nil(t, store.stats)
		assert.NoError(t, store.repo.Ping(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := openBackend(config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "participants.db"),
		})
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		_, err = store.repo.Create(ctx, participants.CreateParams{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)

		version, dirty, err := store.migrations.SchemaVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
		assert.False(t, dirty)
		assert.Equal(t, 1, store.stats.Stats().MaxOpenConnections)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := openBackend(config.DatabaseConfig{Driver: "postgres"})
		assert.Error(t, err)
	})
}

func TestWaitWithTimeout(t *testing.T) {
	assert.True(t, waitWithTimeout(func() {}, time.Second))

	block := make(chan struct{})
	defer close(block)
	assert.False(t, waitWithTimeout(func() { <-block }, 10*time.Millisecond))
}

type fakeServer struct {
	err error
}

func (f fakeServer) Shutdown(context.Context) error { return f.err }

func TestShutdownDrainsDispatches(t *testing.T) {
	tests := []struct {
		name      string
		serverErr error
	}{
		{"clean stop", nil},
		{"server shutdown timed out", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var drained atomic.Bool
			err := shutdown(fakeServer{err: tt.serverErr}, func() { drained.Store(true) },
				zerolog.Nop(), time.Second, time.Second)

			assert.True(t, drained.Load(), "in-flight emails must be awaited")
			if tt.serverErr != nil {
				assert.True(t, errors.Is(err, tt.serverErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
