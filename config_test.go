package lotterysim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lotterysim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, DefaultGameID, config.Game.ID)
	assert.Equal(t, DefaultFetchMaxAttempts, config.Fetch.MaxAttempts)
	assert.Equal(t, DefaultRetryPolicy(), config.Fetch.RetryPolicy())
	assert.Len(t, config.Sources, 3)
	assert.True(t, config.CircuitBreaker.Enabled)
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, DefaultServerAddr, config.Server.Addr)
}

func TestConfigManager_LoadConfig(t *testing.T) {
	t.Run("empty_file_uses_defaults", func(t *testing.T) {
		cm := NewConfigManager(nil)
		cm.SetConfigFile(writeConfig(t, ""))

		config, err := cm.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Game, config.Game)
		assert.Equal(t, DefaultConfig().Fetch, config.Fetch)
		assert.Equal(t, DefaultSources(), config.Sources)
	})

	t.Run("yaml_file", func(t *testing.T) {
		path := writeConfig(t, `
game:
  id: powerball
  multiplier: true
  quick_picks: 5
fetch:
  timeout: 10s
  max_attempts: 0
  backoff: 500ms
  backoff_multiplier: 2
  max_backoff: 8s
sources:
  powerball:
    url: https://example.com/powerball/
    amount_scale: 1000000
    markup_offset: 1
    jackpot_selector:
      element: span
      class_contains: jackpot
    draw_date_selector:
      element: time
      class_contains: next-draw
redis:
  enabled: true
  addr: redis:6379
  ttl: 1h
server:
  addr: ":9090"
`)
		cm := NewConfigManager(NewSilentLogger())
		cm.SetConfigFile(path)

		config, err := cm.LoadConfig()
		require.NoError(t, err)
		assert.Same(t, config, cm.GetConfig())

		assert.Equal(t, GamePowerball, config.Game.ID)
		assert.True(t, config.Game.Multiplier)
		assert.Equal(t, 5, config.Game.QuickPicks)

		policy := config.Fetch.RetryPolicy()
		assert.True(t, policy.Unbounded())
		assert.Equal(t, 500*time.Millisecond, policy.Backoff)
		assert.Equal(t, 2.0, policy.Multiplier)
		assert.Equal(t, 10*time.Second, config.Fetch.Timeout)

		source, err := config.Source(GamePowerball)
		require.NoError(t, err)
		assert.Equal(t, GamePowerball, source.Name, "name defaults to the key")
		assert.Equal(t, "https://example.com/powerball/", source.URL)
		assert.Equal(t, Selector{Element: "span", ClassContains: "jackpot"}, source.JackpotSelector)
		assert.Equal(t, 1, source.MarkupOffset)

		// other games keep their default sources
		cash5, err := config.Source(GameCash5)
		require.NoError(t, err)
		assert.Equal(t, DefaultSources()[GameCash5].URL, cash5.URL)

		assert.True(t, config.Redis.Enabled)
		assert.Equal(t, "redis:6379", config.Redis.Addr)
		assert.Equal(t, time.Hour, config.Redis.TTL)
		assert.Equal(t, DefaultRedisPoolSize, config.Redis.PoolSize)
		assert.Equal(t, ":9090", config.Server.Addr)
	})

	t.Run("env_override", func(t *testing.T) {
		path := writeConfig(t, "game:\n  id: cash5\n")
		t.Setenv("LOTTERYSIM_GAME_ID", "megamillions")
		t.Setenv("LOTTERYSIM_FETCH_MAX_ATTEMPTS", "7")

		cm := NewConfigManager(nil)
		cm.SetConfigFile(path)

		config, err := cm.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, GameMegaMillions, config.Game.ID)
		assert.Equal(t, 7, config.Fetch.MaxAttempts)
	})

	tests := []struct {
		name    string
		content string
	}{
		{"unknown_game", "game:\n  id: keno\n"},
		{"negative_quick_picks", "game:\n  quick_picks: -1\n"},
		{"zero_timeout", "fetch:\n  timeout: 0s\n"},
		{"too_many_attempts", "fetch:\n  max_attempts: 1000\n"},
		{"bad_source_url", "sources:\n  megamillions:\n    url: not-a-url\n"},
		{"bad_selector", "sources:\n  megamillions:\n    jackpot_selector:\n      element: \"\"\n"},
		{"bad_failure_ratio", "circuit_breaker:\n  failure_ratio: 1.5\n"},
		{"redis_without_addr", "redis:\n  enabled: true\n  addr: \"\"\n"},
		{"malformed_yaml", "game: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewConfigManager(nil)
			cm.SetConfigFile(writeConfig(t, tt.content))

			config, err := cm.LoadConfig()
			assert.Nil(t, config)
			assert.True(t, errors.Is(err, ErrConfigInvalid), "%v", err)
			assert.Nil(t, cm.GetConfig())
		})
	}
}

func TestConfig_Source(t *testing.T) {
	config := DefaultConfig()

	source, err := config.Source(GameCash5)
	require.NoError(t, err)
	assert.Equal(t, GameCash5, source.Name)

	_, err = config.Source("keno")
	assert.True(t, errors.Is(err, ErrUnknownGame))
}

func TestNewRedisClientFromConfig(t *testing.T) {
	client := NewRedisClientFromConfig(nil)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, DefaultRedisAddr, opts.Addr)
	assert.Equal(t, DefaultRedisPoolSize, opts.PoolSize)
}
