// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Schedule() ScheduleConfig
	Targets() []schemas.Target
	Artifacts() ArtifactsConfig
	Profiles() ProfilesConfig
	Search() SearchConfig
	Browser() BrowserConfig
	Session() SessionConfig
	Locate() LocateConfig
	Interaction() InteractionConfig
	Notify() NotifyConfig
	History() HistoryConfig
	Metrics() MetricsConfig

	SetBrowserHeadless(bool)
	SetScheduleInterval(time.Duration)
	SetArtifactsCapacity(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	ScheduleCfg    ScheduleConfig    `mapstructure:"schedule" yaml:"schedule"`
	TargetsCfg     []schemas.Target  `mapstructure:"targets" yaml:"targets"`
	ArtifactsCfg   ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	ProfilesCfg    ProfilesConfig    `mapstructure:"profiles" yaml:"profiles"`
	SearchCfg      SearchConfig      `mapstructure:"search" yaml:"search"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	SessionCfg     SessionConfig     `mapstructure:"session" yaml:"session"`
	LocateCfg      LocateConfig      `mapstructure:"locate" yaml:"locate"`
	InteractionCfg InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	NotifyCfg      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
	HistoryCfg     HistoryConfig     `mapstructure:"history" yaml:"history"`
	MetricsCfg     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Schedule() ScheduleConfig       { return c.ScheduleCfg }
func (c *Config) Targets() []schemas.Target      { return c.TargetsCfg }
func (c *Config) Artifacts() ArtifactsConfig     { return c.ArtifactsCfg }
func (c *Config) Profiles() ProfilesConfig       { return c.ProfilesCfg }
func (c *Config) Search() SearchConfig           { return c.SearchCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Session() SessionConfig         { return c.SessionCfg }
func (c *Config) Locate() LocateConfig           { return c.LocateCfg }
func (c *Config) Interaction() InteractionConfig { return c.InteractionCfg }
func (c *Config) Notify() NotifyConfig           { return c.NotifyCfg }
func (c *Config) History() HistoryConfig         { return c.HistoryCfg }
func (c *Config) Metrics() MetricsConfig         { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)           { c.BrowserCfg.Headless = b }
func (c *Config) SetScheduleInterval(d time.Duration) { c.ScheduleCfg.Interval = d }
func (c *Config) SetArtifactsCapacity(n int)          { c.ArtifactsCfg.Capacity = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
	// EventLog is the append-only, one-line-per-event companion log.
	EventLog string `mapstructure:"event_log" yaml:"event_log"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ScheduleConfig controls the tick cadence and pacing between targets.
type ScheduleConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	Jitter        time.Duration `mapstructure:"jitter" yaml:"jitter"`
	TargetDelay   time.Duration `mapstructure:"target_delay" yaml:"target_delay"`
	TargetJitter  time.Duration `mapstructure:"target_jitter" yaml:"target_jitter"`
	NotifyOnStart bool          `mapstructure:"notify_on_start" yaml:"notify_on_start"`
}

// ArtifactsConfig configures where captures live and how many are kept.
type ArtifactsConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Capacity int    `mapstructure:"capacity" yaml:"capacity"`
}

// ProfilesConfig configures device profile selection.
type ProfilesConfig struct {
	// MobileRatio is the probability of picking a mobile profile.
	MobileRatio float64 `mapstructure:"mobile_ratio" yaml:"mobile_ratio"`
}

// SearchConfig configures the results page used for search targets.
type SearchConfig struct {
	// URLTemplate takes the escaped query through a single %s verb.
	URLTemplate string `mapstructure:"url_template" yaml:"url_template"`
}

// BrowserConfig holds settings for the headless browser.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string `mapstructure:"args" yaml:"args"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// SessionConfig bounds every suspension point of a visit.
type SessionConfig struct {
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	InteractTimeout   time.Duration `mapstructure:"interact_timeout" yaml:"interact_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	ReportTimeout     time.Duration `mapstructure:"report_timeout" yaml:"report_timeout"`
	ReleaseTimeout    time.Duration `mapstructure:"release_timeout" yaml:"release_timeout"`
}

// LocateConfig configures the element locator.
type LocateConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// DefaultTexts are tried for direct targets that do not configure their own.
	DefaultTexts []string `mapstructure:"default_texts" yaml:"default_texts"`
}

// InteractionConfig tunes the scripted interaction.
type InteractionConfig struct {
	ClickWait      time.Duration `mapstructure:"click_wait" yaml:"click_wait"`
	ScrollDuration time.Duration `mapstructure:"scroll_duration" yaml:"scroll_duration"`
	ScrollMinStep  int           `mapstructure:"scroll_min_step" yaml:"scroll_min_step"`
	ScrollMaxStep  int           `mapstructure:"scroll_max_step" yaml:"scroll_max_step"`
	MinDelay       time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	DelayJitter    time.Duration `mapstructure:"delay_jitter" yaml:"delay_jitter"`
	Dwell          time.Duration `mapstructure:"dwell" yaml:"dwell"`
	PlayMedia      bool          `mapstructure:"play_media" yaml:"play_media"`
}

// NotifyConfig configures the notification dispatcher and its transports.
type NotifyConfig struct {
	RateLimit float64        `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int            `mapstructure:"burst" yaml:"burst"`
	Timeout   time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Telegram  TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	NATS      NATSConfig     `mapstructure:"nats" yaml:"nats"`
}

// TelegramConfig holds the bot credentials. Both fields must be set for the
// transport to be enabled.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
	APIBase  string `mapstructure:"api_base" yaml:"api_base"`
	// Proxy routes Bot API calls through an HTTP or SOCKS5 proxy URL.
	Proxy           string `mapstructure:"proxy" yaml:"proxy"`
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// ProxyURL parses Proxy. It returns nil when no proxy is configured.
func (t TelegramConfig) ProxyURL() (*url.URL, error) {
	if strings.TrimSpace(t.Proxy) == "" {
		return nil, nil
	}
	u, err := url.Parse(t.Proxy)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q needs a scheme and host", t.Proxy)
	}
	return u, nil
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != "" && strings.TrimSpace(t.ChatID) != ""
}

// NATSConfig configures the NATS fan-out transport. An empty URL disables it.
type NATSConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
	Name    string `mapstructure:"name" yaml:"name"`
}

// HistoryConfig holds the visit history database connection details.
type HistoryConfig struct {
	DatabaseURL string        `mapstructure:"database_url" yaml:"database_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MetricsConfig configures the prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "patrol")
	v.SetDefault("logger.log_file", "patrol.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.event_log", "patrol-events.log")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Schedule --
	v.SetDefault("schedule.interval", "5m")
	v.SetDefault("schedule.jitter", "30s")
	v.SetDefault("schedule.target_delay", "2s")
	v.SetDefault("schedule.target_jitter", "4s")
	v.SetDefault("schedule.notify_on_start", true)

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "screenshots")
	v.SetDefault("artifacts.capacity", 100)

	// -- Profiles & Search --
	v.SetDefault("profiles.mobile_ratio", 0.5)
	v.SetDefault("search.url_template", "https://www.google.com/search?q=%s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)

	// -- Session --
	v.SetDefault("session.launch_timeout", "30s")
	v.SetDefault("session.navigation_timeout", "30s")
	v.SetDefault("session.interact_timeout", "60s")
	v.SetDefault("session.capture_timeout", "20s")
	v.SetDefault("session.report_timeout", "45s")
	v.SetDefault("session.release_timeout", "10s")

	// -- Locate --
	v.SetDefault("locate.timeout", "10s")
	v.SetDefault("locate.poll_interval", "250ms")
	v.SetDefault("locate.default_texts", []string{"Login", "LOGIN"})

	// -- Interaction --
	v.SetDefault("interaction.click_wait", "10s")
	v.SetDefault("interaction.scroll_duration", "8s")
	v.SetDefault("interaction.scroll_min_step", 200)
	v.SetDefault("interaction.scroll_max_step", 600)
	v.SetDefault("interaction.min_delay", "300ms")
	v.SetDefault("interaction.delay_jitter", "900ms")
	v.SetDefault("interaction.dwell", "5s")
	v.SetDefault("interaction.play_media", true)

	// -- Notify --
	v.SetDefault("notify.rate_limit", 1.0)
	v.SetDefault("notify.burst", 2)
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("notify.nats.subject", "patrol.sessions")
	v.SetDefault("notify.nats.name", "patrol")

	// -- History --
	v.SetDefault("history.timeout", "5s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets come from the environment rather than the config file.
	_ = v.BindEnv("notify.telegram.bot_token", "PATROL_TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("notify.telegram.chat_id", "PATROL_TELEGRAM_CHAT_ID")
	_ = v.BindEnv("notify.nats.url", "PATROL_NATS_URL")
	_ = v.BindEnv("history.database_url", "PATROL_HISTORY_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.ArtifactsCfg.Dir, &c.LoggerCfg.LogFile, &c.LoggerCfg.EventLog, &c.BrowserCfg.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.ScheduleCfg.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be a positive duration")
	}
	if c.ScheduleCfg.Jitter < 0 || c.ScheduleCfg.TargetDelay < 0 || c.ScheduleCfg.TargetJitter < 0 {
		return fmt.Errorf("schedule jitter and delays must not be negative")
	}
	if c.ArtifactsCfg.Capacity < 1 {
		return fmt.Errorf("artifacts.capacity must be at least 1")
	}
	if strings.TrimSpace(c.ArtifactsCfg.Dir) == "" {
		return fmt.Errorf("artifacts.dir is required")
	}
	if c.ProfilesCfg.MobileRatio < 0 || c.ProfilesCfg.MobileRatio > 1 {
		return fmt.Errorf("profiles.mobile_ratio must be between 0.0 and 1.0")
	}
	if strings.Count(c.SearchCfg.URLTemplate, "%s") != 1 {
		return fmt.Errorf("search.url_template must contain exactly one %%s")
	}
	if err := c.SessionCfg.Validate(); err != nil {
		return fmt.Errorf("session configuration invalid: %w", err)
	}
	if c.LocateCfg.Timeout <= 0 || c.LocateCfg.PollInterval <= 0 {
		return fmt.Errorf("locate.timeout and locate.poll_interval must be positive durations")
	}
	if c.InteractionCfg.ScrollMinStep < 0 || c.InteractionCfg.ScrollMaxStep < c.InteractionCfg.ScrollMinStep {
		return fmt.Errorf("interaction scroll steps must satisfy 0 <= scroll_min_step <= scroll_max_step")
	}
	if c.NotifyCfg.RateLimit <= 0 {
		return fmt.Errorf("notify.rate_limit must be positive")
	}
	if _, err := url.ParseRequestURI(c.NotifyCfg.Telegram.APIBase); err != nil {
		return fmt.Errorf("notify.telegram.api_base is not a valid URL: %w", err)
	}
	if _, err := c.NotifyCfg.Telegram.ProxyURL(); err != nil {
		return fmt.Errorf("notify.telegram.proxy is not a valid URL: %w", err)
	}
	if err := validateTargets(c.TargetsCfg); err != nil {
		return fmt.Errorf("targets invalid: %w", err)
	}
	return nil
}

// RequireTargets fails when there is nothing to visit. Commands that run
// sessions call it after Validate.
func (c *Config) RequireTargets() error {
	if len(c.TargetsCfg) == 0 {
		return fmt.Errorf("at least one target must be configured")
	}
	return nil
}

// Validate checks that every session step has a usable bound.
func (s *SessionConfig) Validate() error {
	steps := map[string]time.Duration{
		"launch_timeout":     s.LaunchTimeout,
		"navigation_timeout": s.NavigationTimeout,
		"interact_timeout":   s.InteractTimeout,
		"capture_timeout":    s.CaptureTimeout,
		"report_timeout":     s.ReportTimeout,
		"release_timeout":    s.ReleaseTimeout,
	}
	for name, d := range steps {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	return nil
}

func validateTargets(targets []schemas.Target) error {
	seen := make(map[string]struct{}, len(targets))
	for i, t := range targets {
		if strings.TrimSpace(t.Label) == "" {
			return fmt.Errorf("target %d: label is required", i)
		}
		if _, dup := seen[t.Label]; dup {
			return fmt.Errorf("target %q: duplicate label", t.Label)
		}
		seen[t.Label] = struct{}{}
		if strings.TrimSpace(t.Destination) == "" {
			return fmt.Errorf("target %q: destination is required", t.Label)
		}
		u, err := url.Parse(t.URL())
		if err != nil || u.Host == "" {
			return fmt.Errorf("target %q: destination %q is not a valid URL or domain", t.Label, t.Destination)
		}
	}
	return nil
}
