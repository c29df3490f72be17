package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "APPROVALS"

	defaultSessionSecret = "dev-session-secret-change-in-production"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	Env      string `mapstructure:"env"` // "dev" | "prod"

	// DB
	DBDriver string `mapstructure:"db_driver"` // "sqlite" | "postgres" | "memory"
	DBPath   string `mapstructure:"db_path"`
	DBDSN    string `mapstructure:"db_dsn"`

	RequestTypes      []string `mapstructure:"-"`
	StrictTransitions bool     `mapstructure:"strict_transitions"`

	// Event fan-out; empty URL disables publishing.
	RedisURL     string `mapstructure:"redis_url"`
	RedisChannel string `mapstructure:"redis_channel"`

	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`

	Export ExportConfig `mapstructure:",squash"`

	// SeedDev creates an "admin" and an "approver" account at startup.
	SeedDev bool `mapstructure:"seed_dev"`
}

type ExportConfig struct {
	Driver      string `mapstructure:"export_driver"` // "fs" | "s3"
	Dir         string `mapstructure:"export_dir"`
	S3Bucket    string `mapstructure:"export_s3_bucket"`
	S3Region    string `mapstructure:"export_s3_region"`
	S3Endpoint  string `mapstructure:"export_s3_endpoint"`
	S3PathStyle bool   `mapstructure:"export_s3_path_style"`

	// IntervalHours is how often the snapshot exporter runs. 0 disables it.
	IntervalHours int `mapstructure:"export_interval_hours"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("env", "dev")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "./data/approvald.db")
	v.SetDefault("db_dsn", "")
	v.SetDefault("request_types", "A,B,C,D,E,F")
	v.SetDefault("strict_transitions", false)
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_channel", "approvals.history")
	v.SetDefault("session_secret", defaultSessionSecret)
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("export_driver", "fs")
	v.SetDefault("export_dir", "./data/exports")
	v.SetDefault("export_s3_bucket", "")
	v.SetDefault("export_s3_region", "us-east-1")
	v.SetDefault("export_s3_endpoint", "")
	v.SetDefault("export_s3_path_style", false)
	v.SetDefault("export_interval_hours", 0)
	v.SetDefault("seed_dev", false)
}

// Load reads, in increasing priority: defaults, approvald.yaml from the
// working directory or any of dirs, a .env file, and APPROVALS_* variables.
func Load(dirs ...string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("approvald")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.RequestTypes = stringList(v.Get("request_types"))
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		// fail-soft: treat unknown as dev
		c.Env = "dev"
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.Export.Driver = strings.ToLower(strings.TrimSpace(c.Export.Driver))
	if c.Export.IntervalHours < 0 {
		c.Export.IntervalHours = 0
	}
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	if len(c.RequestTypes) == 0 {
		return errors.New("request_types must name at least one type")
	}
	for _, rt := range c.RequestTypes {
		if strings.ContainsAny(rt, "0123456789") {
			return fmt.Errorf("request type %q must not contain digits", rt)
		}
	}

	switch c.DBDriver {
	case "sqlite", "memory":
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("db_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}

	switch c.Export.Driver {
	case "fs":
	case "s3":
		if c.Export.S3Bucket == "" {
			return errors.New("export_s3_bucket is required for the s3 export driver")
		}
	default:
		return fmt.Errorf("unsupported export_driver %q", c.Export.Driver)
	}

	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.Env == "prod" {
		if c.SessionSecret == defaultSessionSecret {
			return errors.New("session_secret must be changed from the default value in prod")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("session_secret must be at least 32 characters in prod")
		}
		if c.SeedDev {
			return errors.New("seed_dev is not allowed in prod")
		}
	}
	return nil
}

// stringList accepts either a YAML list or a comma separated string.
func stringList(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
