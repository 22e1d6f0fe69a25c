// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "patrol-events.log", cfg.Logger().EventLog)
	assert.Equal(t, 5*time.Minute, cfg.Schedule().Interval)
	assert.Equal(t, 30*time.Second, cfg.Schedule().Jitter)
	assert.Equal(t, 100, cfg.Artifacts().Capacity)
	assert.Equal(t, 0.5, cfg.Profiles().MobileRatio)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 30*time.Second, cfg.Session().NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Locate().Timeout)
	assert.Equal(t, []string{"Login", "LOGIN"}, cfg.Locate().DefaultTexts)
	assert.Equal(t, "https://api.telegram.org", cfg.Notify().Telegram.APIBase)
	assert.False(t, cfg.Notify().Telegram.Enabled())
	assert.Empty(t, cfg.Targets())

	assert.NoError(t, cfg.Validate(), "defaults must validate")
	assert.Error(t, cfg.RequireTargets(), "defaults carry no targets")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero interval", func(c *Config) { c.ScheduleCfg.Interval = 0 }, "schedule.interval must be a positive duration"},
		{"negative jitter", func(c *Config) { c.ScheduleCfg.Jitter = -time.Second }, "must not be negative"},
		{"zero capacity", func(c *Config) { c.ArtifactsCfg.Capacity = 0 }, "artifacts.capacity must be at least 1"},
		{"ratio above one", func(c *Config) { c.ProfilesCfg.MobileRatio = 1.5 }, "profiles.mobile_ratio must be between 0.0 and 1.0"},
		{"template without verb", func(c *Config) { c.SearchCfg.URLTemplate = "https://search.test/" }, "search.url_template"},
		{"missing release bound", func(c *Config) { c.SessionCfg.ReleaseTimeout = 0 }, "release_timeout must be a positive duration"},
		{"inverted scroll steps", func(c *Config) { c.InteractionCfg.ScrollMinStep = 900 }, "scroll_min_step <= scroll_max_step"},
		{"zero rate", func(c *Config) { c.NotifyCfg.RateLimit = 0 }, "notify.rate_limit must be positive"},
		{"proxy without scheme", func(c *Config) { c.NotifyCfg.Telegram.Proxy = "proxy.internal:3128" }, "notify.telegram.proxy is not a valid URL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("Target Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.TargetsCfg = nil
		cfg.TargetsCfg = append(cfg.TargetsCfg, targetsFixture()...)
		require.NoError(t, cfg.Validate())
		require.NoError(t, cfg.RequireTargets())

		dup := NewDefaultConfig()
		dup.TargetsCfg = append(targetsFixture(), targetsFixture()[0])
		err := dup.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate label")

		noDest := NewDefaultConfig()
		noDest.TargetsCfg = targetsFixture()
		noDest.TargetsCfg[0].Destination = " "
		err = noDest.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "destination is required")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
schedule:
  interval: 90s
artifacts:
  capacity: 3
targets:
  - label: demo
    destination: https://example.test
  - label: search
    destination: example.org
    query: example organisation
    match:
      texts: ["Sign in"]
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 90*time.Second, cfg.Schedule().Interval)
		assert.Equal(t, 3, cfg.Artifacts().Capacity)
		require.Len(t, cfg.Targets(), 2)
		assert.Equal(t, "demo", cfg.Targets()[0].Label)
		assert.False(t, cfg.Targets()[0].IsSearch())
		assert.True(t, cfg.Targets()[1].IsSearch())
		assert.Equal(t, []string{"Sign in"}, cfg.Targets()[1].Match.Texts)
		assert.Equal(t, "info", cfg.Logger().Level, "defaults still apply")
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("artifacts.capacity", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "artifacts.capacity must be at least 1")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		t.Setenv("PATROL_TELEGRAM_BOT_TOKEN", "123456:ABCDEFGHIJKLMNOP")
		t.Setenv("PATROL_TELEGRAM_CHAT_ID", "-1001")
		t.Setenv("PATROL_HISTORY_DATABASE_URL", "postgres://u:p@localhost/patrol")

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "123456:ABCDEFGHIJKLMNOP", cfg.Notify().Telegram.BotToken)
		assert.Equal(t, "-1001", cfg.Notify().Telegram.ChatID)
		assert.True(t, cfg.Notify().Telegram.Enabled())
		assert.Equal(t, "postgres://u:p@localhost/patrol", cfg.History().DatabaseURL)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		v := viper.New()
		SetDefaults(v)
		v.Set("artifacts.dir", "~/captures")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Artifacts().Dir, "~")
	})
}

func TestTargetHelpers(t *testing.T) {
	targets := targetsFixture()
	assert.Equal(t, "https://example.test", targets[0].URL())
	assert.Equal(t, "example.test", targets[0].Host())
	assert.Equal(t, "https://www.example.org", targets[1].URL())
	assert.Equal(t, "example.org", targets[1].Host())
}

func TestTelegramProxyURL(t *testing.T) {
	u, err := TelegramConfig{}.ProxyURL()
	require.NoError(t, err)
	assert.Nil(t, u, "no proxy configured")

	u, err = TelegramConfig{Proxy: "socks5://127.0.0.1:1080"}.ProxyURL()
	require.NoError(t, err)
	assert.Equal(t, "socks5", u.Scheme)
	assert.Equal(t, "127.0.0.1:1080", u.Host)

	_, err = TelegramConfig{Proxy: "/just/a/path"}.ProxyURL()
	assert.Error(t, err)
}
