// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Game     GameConfig     `mapstructure:"game"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShareBaseURL    string        `mapstructure:"share_base_url"`
	FrontendOrigins []string      `mapstructure:"frontend_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds the directory-wide master credential.
// An empty master password leaves master-guarded endpoints open.
type AdminConfig struct {
	MasterPassword string `mapstructure:"master_password"`
}

// GameConfig holds draw and credential settings.
type GameConfig struct {
	MinParticipants int `mapstructure:"min_participants"`
	MaxDrawAttempts int `mapstructure:"max_draw_attempts"`
	TokenBytes      int `mapstructure:"token_bytes"`
	GameIDLength    int `mapstructure:"game_id_length"`
	BcryptCost      int `mapstructure:"bcrypt_cost"`
}

// LengthRule bounds the length of a normalized string field.
type LengthRule struct {
	MinLength int `mapstructure:"min_length"`
	MaxLength int `mapstructure:"max_length"`
}

// RulesConfig holds input validation limits.
type RulesConfig struct {
	Title           LengthRule `mapstructure:"title"`
	AdminPassword   LengthRule `mapstructure:"admin_password"`
	PersonName      LengthRule `mapstructure:"person_name"`
	ParticipantName LengthRule `mapstructure:"participant_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Addr returns the listen address for the HTTP server.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, SERVER_PORT, ADMIN_MASTER_PASSWORD
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server mode %q", c.Server.Mode)
	}
	if c.Game.MinParticipants < 2 {
		return fmt.Errorf("game.min_participants must be at least 2, got %d", c.Game.MinParticipants)
	}
	if c.Game.MaxDrawAttempts < 1 {
		return fmt.Errorf("game.max_draw_attempts must be positive, got %d", c.Game.MaxDrawAttempts)
	}
	if c.Game.TokenBytes < 8 {
		return fmt.Errorf("game.token_bytes must be at least 8, got %d", c.Game.TokenBytes)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.share_base_url", "http://localhost:5173")
	v.SetDefault("server.frontend_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Database defaults
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "secretfriend")
	v.SetDefault("database.name", "secretfriend")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("admin.master_password", "")

	// Game defaults
	v.SetDefault("game.min_participants", 3)
	v.SetDefault("game.max_draw_attempts", 1000)
	v.SetDefault("game.token_bytes", 16)
	v.SetDefault("game.game_id_length", 6)
	v.SetDefault("game.bcrypt_cost", 10)

	// Validation rules
	v.SetDefault("rules.title.min_length", 1)
	v.SetDefault("rules.title.max_length", 80)
	v.SetDefault("rules.admin_password.min_length", 4)
	v.SetDefault("rules.admin_password.max_length", 64)
	v.SetDefault("rules.person_name.min_length", 1)
	v.SetDefault("rules.person_name.max_length", 50)
	v.SetDefault("rules.participant_name.min_length", 1)
	v.SetDefault("rules.participant_name.max_length", 50)

	v.SetDefault("log.level", "info")
}

// Default returns the configuration produced by the built-in defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// IsMaster checks a master password against the configured one.
// When no master password is configured every caller is accepted.
func (c *Config) IsMaster(password string) bool {
	if c.Admin.MasterPassword == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(c.Admin.MasterPassword)) == 1
}
