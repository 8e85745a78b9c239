package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Site          SiteConfig          `yaml:"site"`
	SelectorsFile string              `yaml:"selectors_file"`
	AutoScan      AutoScanConfig      `yaml:"auto_scan"`
	Rod           RodConfig           `yaml:"rod"`
	HTTP          HttpConfig          `yaml:"http"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Backoff       BackoffConfig       `yaml:"backoff"`
	Storage       StorageConfig       `yaml:"storage"`
	SettingsFile  string              `yaml:"settings_file"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type SiteConfig struct {
	Origin string `yaml:"origin"`
	Domain string `yaml:"domain"`
}

type AutoScanConfig struct {
	DurationS           int `yaml:"duration_s"`
	ScanIntervalMS      int `yaml:"scan_interval_ms"`
	ScrollIntervalMS    int `yaml:"scroll_interval_ms"`
	ScrollStepPX        int `yaml:"scroll_step_px"`
	StopAfterIdlePasses int `yaml:"stop_after_idle_passes"`
	MutationPollMS      int `yaml:"mutation_poll_ms"`
}

type RodConfig struct {
	ChromePath       string `yaml:"chrome_path"`
	Headless         bool   `yaml:"headless"`
	Stealth          bool   `yaml:"stealth"`
	UserDataDir      string `yaml:"user_data_dir"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	AcceptLanguage            string `yaml:"accept_language"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxRetries                int    `yaml:"max_retries"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type StorageConfig struct {
	// Driver is "sqlite", "mssql" or empty for no persistence.
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`
}

// Defaults returns a configuration that works without a config file.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Site.Origin == "" {
		c.Site.Origin = "https://www.facebook.com"
	}
	if c.Site.Domain == "" {
		c.Site.Domain = "facebook.com"
	}

	if c.AutoScan.DurationS == 0 {
		c.AutoScan.DurationS = 60
	}
	if c.AutoScan.ScanIntervalMS == 0 {
		c.AutoScan.ScanIntervalMS = 1500
	}
	if c.AutoScan.ScrollIntervalMS == 0 {
		c.AutoScan.ScrollIntervalMS = 1500
	}
	if c.AutoScan.ScrollStepPX == 0 {
		c.AutoScan.ScrollStepPX = 900
	}
	if c.AutoScan.MutationPollMS == 0 {
		c.AutoScan.MutationPollMS = 500
	}

	if c.Rod.PageTimeoutS == 0 {
		c.Rod.PageTimeoutS = 60
	}
	if c.Rod.WaitLoadTimeoutS == 0 {
		c.Rod.WaitLoadTimeoutS = 30
	}

	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if c.HTTP.AcceptLanguage == "" {
		c.HTTP.AcceptLanguage = "en-US,en;q=0.9"
	}
	if c.HTTP.ConnectTimeoutMS == 0 {
		c.HTTP.ConnectTimeoutMS = 10000
	}
	if c.HTTP.TotalTimeoutMS == 0 {
		c.HTTP.TotalTimeoutMS = 30000
	}
	if c.HTTP.MaxIdleConnections == 0 {
		c.HTTP.MaxIdleConnections = 10
	}
	if c.HTTP.MaxIdleConnectionsPerHost == 0 {
		c.HTTP.MaxIdleConnectionsPerHost = 2
	}
	if c.HTTP.IdleConnectionTimeoutS == 0 {
		c.HTTP.IdleConnectionTimeoutS = 90
	}

	if c.RateLimit.MaxConcurrentPerHost == 0 {
		c.RateLimit.MaxConcurrentPerHost = 1
	}
	if c.RateLimit.RPM == 0 {
		c.RateLimit.RPM = 30
	}

	if c.Backoff.MinMS == 0 {
		c.Backoff.MinMS = 500
	}
	if c.Backoff.MaxMS == 0 {
		c.Backoff.MaxMS = 8000
	}
	if c.Backoff.JitterPct == 0 {
		c.Backoff.JitterPct = 20
	}

	if c.Storage.CommandTimeoutMS == 0 {
		c.Storage.CommandTimeoutMS = 5000
	}
	if c.SettingsFile == "" {
		c.SettingsFile = "data/settings.json"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogMaxSizeMB == 0 {
		c.Observability.LogMaxSizeMB = 10
	}
	if c.Observability.LogMaxBackups == 0 {
		c.Observability.LogMaxBackups = 3
	}
	if c.Observability.LogMaxAgeDays == 0 {
		c.Observability.LogMaxAgeDays = 28
	}
}

// Validation
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Site.Origin, "http://") && !strings.HasPrefix(c.Site.Origin, "https://") {
		return fmt.Errorf("site.origin must be an http(s) URL")
	}
	if c.Site.Domain == "" {
		return fmt.Errorf("site.domain is required")
	}
	if c.AutoScan.DurationS <= 0 {
		return fmt.Errorf("auto_scan.duration_s must be > 0")
	}
	if c.AutoScan.ScanIntervalMS <= 0 {
		return fmt.Errorf("auto_scan.scan_interval_ms must be > 0")
	}
	if c.AutoScan.ScrollIntervalMS <= 0 {
		return fmt.Errorf("auto_scan.scroll_interval_ms must be > 0")
	}
	if c.AutoScan.ScrollStepPX < 0 {
		return fmt.Errorf("auto_scan.scroll_step_px must be >= 0")
	}
	if c.AutoScan.StopAfterIdlePasses < 0 {
		return fmt.Errorf("auto_scan.stop_after_idle_passes must be >= 0")
	}
	if c.AutoScan.MutationPollMS <= 0 {
		return fmt.Errorf("auto_scan.mutation_poll_ms must be > 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	switch c.Storage.Driver {
	case "":
	case "sqlite", "mssql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is set")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite', 'mssql' or empty")
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return fmt.Errorf("storage.command_timeout_ms must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Rod.PageTimeoutS <= 0 {
		return fmt.Errorf("rod.page_timeout_s must be > 0")
	}
	if c.Rod.WaitLoadTimeoutS <= 0 {
		return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// Getters
func (c *Config) GetAutoScanDuration() time.Duration {
	return time.Duration(c.AutoScan.DurationS) * time.Second
}

func (c *Config) GetScanInterval() time.Duration {
	return time.Duration(c.AutoScan.ScanIntervalMS) * time.Millisecond
}

func (c *Config) GetScrollInterval() time.Duration {
	return time.Duration(c.AutoScan.ScrollIntervalMS) * time.Millisecond
}

func (c *Config) GetMutationPollInterval() time.Duration {
	return time.Duration(c.AutoScan.MutationPollMS) * time.Millisecond
}

func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}
