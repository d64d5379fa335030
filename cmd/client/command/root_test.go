package command

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeet-socket/yeet/internal/client"
	"github.com/yeet-socket/yeet/internal/config"
)

func TestApplyFlags(t *testing.T) {
	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--url", "ws://example:9000", "--max-attempts", "3", "-v"}))

	cfg := &config.Config{
		Client:   config.ClientConfig{URL: "ws://localhost:8080", Identity: "TOM", MaxAttempts: 30},
		LogLevel: "info",
	}
	var f flags
	f.url, _ = cmd.Flags().GetString("url")
	f.maxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	f.verbose, _ = cmd.Flags().GetBool("verbose")
	applyFlags(cmd, cfg, f)

	assert.Equal(t, "ws://example:9000", cfg.Client.URL)
	assert.Equal(t, "TOM", cfg.Client.Identity, "unset flags keep the configured value")
	assert.Equal(t, 3, cfg.Client.MaxAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestBackoffFromConfig(t *testing.T) {
	b := backoffFromConfig(config.ClientConfig{
		MaxAttempts: 5,
		BackoffBase: 100 * time.Millisecond,
		BackoffCap:  time.Second,
	})

	assert.Equal(t, 5, b.MaxAttempts)
	assert.Equal(t, 150*time.Millisecond, b.Delay(1))
	assert.Equal(t, time.Second, b.Delay(20))
}

func TestRun_UnreachableServerFails(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	record := filepath.Join(t.TempDir(), "session.cast")

	in, inW := io.Pipe()
	defer inW.Close()

	cmd := NewRootCommand()
	cmd.SetIn(in)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--url", "ws://127.0.0.1:1", "--max-attempts", "1", "--record", record})

	err := cmd.Execute()
	assert.ErrorIs(t, err, client.ErrRetryExhausted)
	assert.FileExists(t, record)
}

func TestRun_RejectsArguments(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
