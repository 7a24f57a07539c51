package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Log struct {
		Level string
	}
	Ledger struct {
		// Driver selects the ledger backend: "file" or "sqlite".
		Driver     string
		Dir        string
		SqlitePath string
		TestMode   bool
	}
	Auth struct {
		JWTSecret       string
		Issuer          string
		TokenTTLMinutes int
		BcryptCost      int
	}
	Upload struct {
		Dir      string
		MaxBytes int64
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Redis struct {
		URL string
	}
	RateLimit struct {
		LoginPerMinute int
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// variables already set in the environment win over .env
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RIDESHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("ledger.driver", "file")
	v.SetDefault("ledger.dir", "data")
	v.SetDefault("ledger.sqlitepath", "data/registry.db")
	v.SetDefault("ledger.testmode", false)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "rideshare-registry")
	v.SetDefault("auth.tokenttlminutes", 15)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("upload.dir", "data/uploads")
	v.SetDefault("upload.maxbytes", 5<<20)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "licenses")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("ratelimit.loginperminute", 5)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	switch c.Ledger.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	return nil
}
