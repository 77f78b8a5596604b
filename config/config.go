package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	CookieName   string        `mapstructure:"cookie_name"`
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// TableConfig configures the data table pipeline. An empty Secret disables
// encrypted table-state tokens.
type TableConfig struct {
	Secret     string `mapstructure:"secret"`
	MaxPerPage int    `mapstructure:"max_per_page"`
}

type ImageKitConfig struct {
	PublicKey   string        `mapstructure:"public_key"`
	PrivateKey  string        `mapstructure:"private_key"`
	URLEndpoint string        `mapstructure:"url_endpoint"`
	Expire      time.Duration `mapstructure:"expire"`
}

// Enabled reports whether upload signing can be offered.
func (c ImageKitConfig) Enabled() bool {
	return c.PublicKey != "" && c.PrivateKey != ""
}

type AuthConfig struct {
	LoginRate  int `mapstructure:"login_rate"`
	LoginBurst int `mapstructure:"login_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Table    TableConfig    `mapstructure:"table"`
	ImageKit ImageKitConfig `mapstructure:"imagekit"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

const envPrefix = "STOCKLY"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("database.path", "./stockly.db")
	v.SetDefault("session.cookie_name", "stockly_session")
	v.SetDefault("session.ttl", 168*time.Hour)
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("table.secret", "")
	v.SetDefault("table.max_per_page", 100)
	v.SetDefault("imagekit.public_key", "")
	v.SetDefault("imagekit.private_key", "")
	v.SetDefault("imagekit.url_endpoint", "")
	v.SetDefault("imagekit.expire", 30*time.Minute)
	v.SetDefault("auth.login_rate", 5)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	cfg, err := decode(viper.New())
	if err != nil {
		panic(fmt.Sprintf("decoding default config: %v", err))
	}
	return cfg
}

// Load reads stockly.yaml (from path, or from "." and $HOME/.stockly when
// path is empty) and STOCKLY_* environment variables. A missing file is only
// an error when path was given explicitly.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stockly")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.stockly")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name must not be empty"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Table.Secret != "" && len(c.Table.Secret) < 16 {
		errs = append(errs, errors.New("table.secret must be at least 16 bytes"))
	}
	if c.Table.MaxPerPage < 10 {
		errs = append(errs, errors.New("table.max_per_page must be at least 10"))
	}
	if c.ImageKit.Expire <= 0 || c.ImageKit.Expire > time.Hour {
		errs = append(errs, errors.New("imagekit.expire must be within (0, 1h]"))
	}
	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst <= 0 {
		errs = append(errs, errors.New("auth.login_rate and auth.login_burst must be positive"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}
