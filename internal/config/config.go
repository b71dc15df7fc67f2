package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath       = "OTME_CONFIG"
	EnvDataDir          = "OTME_DATA_DIR"
	EnvWalletFile       = "OTME_WALLET_FILE"
	EnvWalletPassphrase = "OTME_WALLET_PASSPHRASE"
	EnvDispatchTimeout  = "OTME_DISPATCH_TIMEOUT"
	EnvRateLimitRPS     = "OTME_RATE_LIMIT_RPS"
	EnvRateLimitBurst   = "OTME_RATE_LIMIT_BURST"
	EnvRetryMaxAttempts = "OTME_RETRY_MAX_ATTEMPTS"
	EnvRetryBaseDelay   = "OTME_RETRY_BASE_DELAY"
	EnvRetryMaxDelay    = "OTME_RETRY_MAX_DELAY"
	EnvMetricsEnabled   = "OTME_METRICS_ENABLED"
	EnvLogLevel         = "OTME_LOG_LEVEL"
	EnvLogFormat        = "OTME_LOG_FORMAT"
)

// MaxRetryAttempts bounds retry.maxAttempts from any source.
const MaxRetryAttempts = 20

type Config struct {
	Client   ClientConfig
	Dispatch DispatchConfig
	Retry    RetryConfig
	Metrics  MetricsConfig
	Log      LogConfig
	// WalletPassphrase is never read from YAML.
	WalletPassphrase string
}

type ClientConfig struct {
	DataDir    string
	WalletFile string
}

type DispatchConfig struct {
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

func Default() Config {
	return Config{
		Client: ClientConfig{
			DataDir:    "otme-data",
			WalletFile: "wallet.sealed",
		},
		Dispatch: DispatchConfig{
			Timeout:        20 * time.Second,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   250 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			MaxJitter:   100 * time.Millisecond,
		},
		Metrics: MetricsConfig{Enabled: true},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// WalletPath joins the data dir and wallet file unless the file is absolute.
func (c Config) WalletPath() string {
	if filepath.IsAbs(c.Client.WalletFile) {
		return c.Client.WalletFile
	}
	return filepath.Join(c.Client.DataDir, c.Client.WalletFile)
}

func (c Config) Validate() error {
	var errs []error
	if c.Client.WalletFile == "" {
		errs = append(errs, errors.New("client.walletFile is required"))
	}
	if c.Dispatch.Timeout <= 0 {
		errs = append(errs, errors.New("dispatch.timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > MaxRetryAttempts {
		errs = append(errs, fmt.Errorf("retry.maxAttempts must be between 1 and %d", MaxRetryAttempts))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, fmt.Errorf("retry.maxDelay %s is below retry.baseDelay %s", c.Retry.MaxDelay, c.Retry.BaseDelay))
	}
	return errors.Join(errs...)
}

type fileConfig struct {
	Client struct {
		DataDir    string `yaml:"dataDir"`
		WalletFile string `yaml:"walletFile"`
	} `yaml:"client"`
	Dispatch struct {
		Timeout        time.Duration `yaml:"timeout"`
		RateLimitRPS   *float64      `yaml:"rateLimitRPS"`
		RateLimitBurst *int          `yaml:"rateLimitBurst"`
	} `yaml:"dispatch"`
	Retry struct {
		MaxAttempts int            `yaml:"maxAttempts"`
		BaseDelay   time.Duration  `yaml:"baseDelay"`
		MaxDelay    time.Duration  `yaml:"maxDelay"`
		MaxJitter   *time.Duration `yaml:"maxJitter"`
	} `yaml:"retry"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the first existing candidate file, merges it over the
// defaults and applies OTME_* overrides. An explicit path that is missing
// or malformed is an error; missing default candidates are not.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = envString(EnvConfigPath)
	}
	explicit := path != ""
	candidates := []string{path}
	if !explicit {
		candidates = []string{"otme.yaml", "configs/otme.yaml"}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", p, err)
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", p, err)
		}
		merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

func merge(dst *Config, src fileConfig) {
	if src.Client.DataDir != "" {
		dst.Client.DataDir = src.Client.DataDir
	}
	if src.Client.WalletFile != "" {
		dst.Client.WalletFile = src.Client.WalletFile
	}
	if src.Dispatch.Timeout != 0 {
		dst.Dispatch.Timeout = src.Dispatch.Timeout
	}
	if src.Dispatch.RateLimitRPS != nil {
		dst.Dispatch.RateLimitRPS = *src.Dispatch.RateLimitRPS
	}
	if src.Dispatch.RateLimitBurst != nil {
		dst.Dispatch.RateLimitBurst = *src.Dispatch.RateLimitBurst
	}
	if src.Retry.MaxAttempts != 0 {
		dst.Retry.MaxAttempts = src.Retry.MaxAttempts
	}
	if src.Retry.BaseDelay != 0 {
		dst.Retry.BaseDelay = src.Retry.BaseDelay
	}
	if src.Retry.MaxDelay != 0 {
		dst.Retry.MaxDelay = src.Retry.MaxDelay
	}
	if src.Retry.MaxJitter != nil {
		dst.Retry.MaxJitter = *src.Retry.MaxJitter
	}
	if src.Metrics.Enabled != nil {
		dst.Metrics.Enabled = *src.Metrics.Enabled
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := envString(EnvDataDir); v != "" {
		cfg.Client.DataDir = v
	}
	if v := envString(EnvWalletFile); v != "" {
		cfg.Client.WalletFile = v
	}
	cfg.WalletPassphrase = os.Getenv(EnvWalletPassphrase)
	cfg.Dispatch.Timeout = envDurationWithFallback(EnvDispatchTimeout, cfg.Dispatch.Timeout)
	cfg.Dispatch.RateLimitRPS = envFloatWithFallback(EnvRateLimitRPS, cfg.Dispatch.RateLimitRPS)
	cfg.Dispatch.RateLimitBurst = envIntWithFallback(EnvRateLimitBurst, cfg.Dispatch.RateLimitBurst)
	cfg.Retry.MaxAttempts = envBoundedIntWithFallback(EnvRetryMaxAttempts, cfg.Retry.MaxAttempts, 1, MaxRetryAttempts)
	cfg.Retry.BaseDelay = envDurationWithFallback(EnvRetryBaseDelay, cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = envDurationWithFallback(EnvRetryMaxDelay, cfg.Retry.MaxDelay)
	cfg.Metrics.Enabled = envBoolWithFallback(EnvMetricsEnabled, cfg.Metrics.Enabled)
	if v := envString(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := envString(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
}
