package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:8080", cfg.BackendBaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 16*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 120, cfg.CatchUpCharsTick)
	assert.Equal(t, 3, cfg.SteadyCharsTick)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LUCENT_BACKEND_URL", "https://api.lucent.example")
	t.Setenv("LUCENT_SETTLE_DELAY", "1s")
	t.Setenv("LUCENT_CATCHUP_CHARS_PER_TICK", "240")
	t.Setenv("LUCENT_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "https://api.lucent.example", cfg.BackendBaseURL)
	assert.Equal(t, time.Second, cfg.SettleDelay)
	assert.Equal(t, 240, cfg.CatchUpCharsTick)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestBadEnvValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("LUCENT_SETTLE_DELAY", "not-a-duration")
	t.Setenv("LUCENT_STEADY_CHARS_PER_TICK", "three")

	cfg := Load()

	assert.Equal(t, 300*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 3, cfg.SteadyCharsTick)
}

func TestLoadFileOverlay(t *testing.T) {
	cfg := Load()

	overlay := `
backend_base_url: https://file.lucent.example
settle_delay: 2s
steady_chars_per_tick: 5
log_format: json
`
	require.NoError(t, LoadFile(strings.NewReader(overlay), cfg))

	assert.Equal(t, "https://file.lucent.example", cfg.BackendBaseURL)
	assert.Equal(t, 2*time.Second, cfg.SettleDelay)
	assert.Equal(t, 5, cfg.SteadyCharsTick)
	assert.Equal(t, "json", cfg.LogFormat)

	// Keys the file omits keep their prior values.
	assert.Equal(t, 120, cfg.CatchUpCharsTick)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileRejectsInvalidYAML(t *testing.T) {
	cfg := Load()
	assert.Error(t, LoadFile(strings.NewReader("backend_base_url: [unterminated"), cfg))
}
