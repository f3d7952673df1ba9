package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string
	StaticDir  string
	PagesDir   string

	DataDir      string
	TemplatesDir string

	RequestTimeout time.Duration

	SessionBackend      string // "in_memory" or "memcached"
	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	SessionCircuitEnabled          bool
	SessionCircuitFailureThreshold int
	SessionCircuitSuccessThreshold int
	SessionCircuitTimeout          time.Duration

	LoginRateLimitRPS   int
	LoginRateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	StructureBaseDir    string
	StructureManifest   string
	StructureBackupDir  string
	StructureIgnoreDirs []string
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
		PagesDir  string `yaml:"pages_dir"`
	} `yaml:"server"`

	Storage struct {
		DataDir      string `yaml:"data_dir"`
		TemplatesDir string `yaml:"templates_dir"`
	} `yaml:"storage"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Session struct {
		Backend string `yaml:"backend"`
		TTL     string `yaml:"ttl"`
		Cookie  struct {
			Name   string `yaml:"name"`
			Secure bool   `yaml:"secure"`
		} `yaml:"cookie"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"session"`

	Reliability struct {
		LoginRateLimitRPS   int `yaml:"login_rate_limit_rps"`
		LoginRateLimitBurst int `yaml:"login_rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Structure struct {
		BaseDir    string   `yaml:"base_dir"`
		Manifest   string   `yaml:"manifest"`
		BackupDir  string   `yaml:"backup_dir"`
		IgnoreDirs []string `yaml:"ignore_dirs"`
	} `yaml:"structure"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) relative to the
// working directory. PORT, DATA_DIR, SESSION_BACKEND and MEMCACHED_ADDRS override the file.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{
		TestingMode: false,
	}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.StaticDir = firstNonEmpty(fc.Server.StaticDir, "static")
	cfg.PagesDir = firstNonEmpty(fc.Server.PagesDir, "templates")

	cfg.DataDir = firstNonEmpty(os.Getenv("DATA_DIR"), fc.Storage.DataDir, filepath.Join("static", "data"))
	cfg.TemplatesDir = fc.Storage.TemplatesDir

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.SessionBackend = strings.ToLower(firstNonEmpty(os.Getenv("SESSION_BACKEND"), fc.Session.Backend, "in_memory"))
	cfg.SessionTTL = parseDuration(fc.Session.TTL, 24*time.Hour)
	cfg.SessionCookieName = firstNonEmpty(fc.Session.Cookie.Name, "session_id")
	cfg.SessionCookieSecure = fc.Session.Cookie.Secure

	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Session.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Session.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Session.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cb := fc.Session.CircuitBreaker
	cfg.SessionCircuitEnabled = cb.Enabled == nil || *cb.Enabled
	cfg.SessionCircuitFailureThreshold = cb.FailureThreshold
	if cfg.SessionCircuitFailureThreshold <= 0 {
		cfg.SessionCircuitFailureThreshold = 5
	}
	cfg.SessionCircuitSuccessThreshold = cb.SuccessThreshold
	if cfg.SessionCircuitSuccessThreshold <= 0 {
		cfg.SessionCircuitSuccessThreshold = 2
	}
	cfg.SessionCircuitTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.LoginRateLimitRPS = fc.Reliability.LoginRateLimitRPS
	if cfg.LoginRateLimitRPS <= 0 {
		cfg.LoginRateLimitRPS = 1
	}
	cfg.LoginRateLimitBurst = fc.Reliability.LoginRateLimitBurst
	if cfg.LoginRateLimitBurst <= 0 {
		cfg.LoginRateLimitBurst = 5
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.StructureBaseDir = firstNonEmpty(fc.Structure.BaseDir, ".")
	cfg.StructureManifest = firstNonEmpty(fc.Structure.Manifest, "structure.json")
	cfg.StructureBackupDir = fc.Structure.BackupDir
	cfg.StructureIgnoreDirs = fc.Structure.IgnoreDirs

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
// Used for parsing duration fields from YAML config with safe fallback to defaults.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.SessionBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("session.backend must be in_memory or memcached, got %q", cfg.SessionBackend)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	if strings.ContainsAny(cfg.StructureManifest, `/\`) {
		return fmt.Errorf("structure.manifest must be a file name, got %q", cfg.StructureManifest)
	}
	return nil
}
