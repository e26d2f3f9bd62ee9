// Package server_test contains unit tests for the server package.
package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irclight/unfurl/internal/config"
	"github.com/irclight/unfurl/internal/server"
)

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	// Port 0 lets the kernel pick a free port during the Run test.
	cfg.Server.Port = 0
	return cfg
}

// Build registers collectors on the process-wide Prometheus registry, so
// only this test performs a full successful build.
func TestBuildAndRun(t *testing.T) {
	cfg := defaultConfig(t)

	app, err := server.Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.NotNil(t, app.Scheduler())

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(runCtx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
}

func TestBuildConfigErrors(t *testing.T) {
	testCases := []struct {
		name          string
		configSetup   func(cfg *config.Config)
		expectedError string
	}{
		{
			name: "negative timeout",
			configSetup: func(cfg *config.Config) {
				cfg.Preview.Request.TimeoutMs = -1
			},
			expectedError: "timeout must be >= 0",
		},
		{
			name: "negative concurrency",
			configSetup: func(cfg *config.Config) {
				cfg.Preview.Request.Concurrency = -4
			},
			expectedError: "concurrency must be >= 0",
		},
		{
			name: "negative image cap",
			configSetup: func(cfg *config.Config) {
				cfg.Preview.Request.MaxImageSize = -1
			},
			expectedError: "max image bytes must be >= 0",
		},
		{
			name: "negative delay",
			configSetup: func(cfg *config.Config) {
				cfg.Preview.Request.DelayMs = -100
			},
			expectedError: "delay must be >= 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tc.configSetup(&cfg)

			app, err := server.Build(context.Background(), cfg)
			require.Error(t, err)
			assert.Nil(t, app)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}
