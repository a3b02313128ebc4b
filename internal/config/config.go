package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/adi/internal/utils"
)

// Config holds all server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Auth         AuthConfig         `yaml:"auth"`
	Survey       SurveyConfig       `yaml:"survey"`
	Verification VerificationConfig `yaml:"verification"`
	Analytics    AnalyticsConfig    `yaml:"analytics"`
	AI           AIConfig           `yaml:"ai"`
	Logging      LoggingConfig      `yaml:"logging"`
	Build        BuildInfo          `yaml:"-"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeout    string `yaml:"read_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
	StaticDir      string `yaml:"static_dir"`
	DevFrontendURL string `yaml:"dev_frontend_url"`
	EnableSeed     bool   `yaml:"enable_seed"`
}

// StorageConfig selects the record store. Driver is "memory" or "sqlite".
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
}

type SurveyConfig struct {
	RequireVerification bool `yaml:"require_verification"`
}

type VerificationConfig struct {
	CodeTTL     string `yaml:"code_ttl"`
	MaxAttempts int    `yaml:"max_attempts"`
	ExposeCode  bool   `yaml:"expose_code"` // dev only: return the code in the start response
}

type AnalyticsConfig struct {
	MaxRecords   int `yaml:"max_records"`
	TopCountries int `yaml:"top_countries"`
}

type AIConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Timeout   string `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// BuildInfo is stamped from the environment at deploy time.
type BuildInfo struct {
	Commit    string
	BuildTime string
}

const devSecret = "adi-dev-secret"

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  "15s",
			WriteTimeout: "60s",
		},
		Storage: StorageConfig{
			Driver:     "memory",
			SQLitePath: "data/adi.db",
		},
		Auth: AuthConfig{
			JWTSecret: devSecret,
			TokenTTL:  "720h",
		},
		Verification: VerificationConfig{
			CodeTTL:     "10m",
			MaxAttempts: 5,
		},
		Analytics: AnalyticsConfig{
			MaxRecords:   1000,
			TopCountries: 10,
		},
		AI: AIConfig{
			Model:     "gemini-2.0-flash",
			MaxTokens: 1024,
			Timeout:   "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Addr = utils.SafeEnv("ADI_ADDR", c.Server.Addr)
	c.Server.StaticDir = utils.SafeEnv("ADI_STATIC_DIR", c.Server.StaticDir)
	c.Server.DevFrontendURL = utils.SafeEnv("ADI_DEV_FRONTEND_URL", c.Server.DevFrontendURL)
	c.Server.EnableSeed = utils.SafeEnvBool("ADI_ENABLE_SEED", c.Server.EnableSeed)
	c.Auth.JWTSecret = utils.SafeEnv("ADI_JWT_SECRET", c.Auth.JWTSecret)
	c.Storage.Driver = utils.SafeEnv("ADI_STORAGE", c.Storage.Driver)
	if p := os.Getenv("ADI_SQLITE_PATH"); p != "" {
		c.Storage.SQLitePath = p
		// a database path alone is enough to pick sqlite
		if os.Getenv("ADI_STORAGE") == "" {
			c.Storage.Driver = "sqlite"
		}
	}
	c.Survey.RequireVerification = utils.SafeEnvBool("ADI_REQUIRE_VERIFICATION", c.Survey.RequireVerification)
	c.Verification.ExposeCode = utils.SafeEnvBool("ADI_EXPOSE_CODE", c.Verification.ExposeCode)
	c.AI.APIKey = utils.SafeEnv("GEMINI_API_KEY", c.AI.APIKey)
	c.Logging.Level = utils.SafeEnv("ADI_LOG_LEVEL", c.Logging.Level)
	c.Build.Commit = utils.SafeEnv("ADI_COMMIT", c.Build.Commit)
	c.Build.BuildTime = utils.SafeEnv("ADI_BUILD_TIME", c.Build.BuildTime)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) GetReadTimeout() time.Duration  { return parseDuration(c.Server.ReadTimeout, 15*time.Second) }
func (c *Config) GetWriteTimeout() time.Duration { return parseDuration(c.Server.WriteTimeout, 60*time.Second) }
func (c *Config) GetTokenTTL() time.Duration     { return parseDuration(c.Auth.TokenTTL, 30*24*time.Hour) }
func (c *Config) GetCodeTTL() time.Duration      { return parseDuration(c.Verification.CodeTTL, 10*time.Minute) }
func (c *Config) GetAITimeout() time.Duration    { return parseDuration(c.AI.Timeout, 60*time.Second) }

// AIEnabled reports whether narrative generation can be offered.
func (c *Config) AIEnabled() bool { return c.AI.APIKey != "" }

// UsesDevSecret reports whether tokens are signed with the built-in secret.
func (c *Config) UsesDevSecret() bool { return c.Auth.JWTSecret == devSecret }

var validDrivers = []string{"memory", "sqlite"}

var validLevels = []string{"debug", "info", "warn", "error"}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address not configured (set ADI_ADDR)")
	}
	if !oneOf(c.Storage.Driver, validDrivers) {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, validDrivers)
	}
	if c.Storage.Driver == "sqlite" && strings.TrimSpace(c.Storage.SQLitePath) == "" {
		return fmt.Errorf("sqlite storage requires a database path (set ADI_SQLITE_PATH)")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("jwt secret must not be empty")
	}
	if !oneOf(strings.ToLower(c.Logging.Level), validLevels) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, validLevels)
	}
	if c.Verification.MaxAttempts < 0 || c.Analytics.MaxRecords < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}
