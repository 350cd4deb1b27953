package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Bank      BankConfig      `mapstructure:"bank"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// BankConfig names the ledger identities and interest settings.
type BankConfig struct {
	SelfIdentity     string        `mapstructure:"self_identity"`
	VaultIdentity    string        `mapstructure:"vault_identity"`
	ReserveIdentity  string        `mapstructure:"reserve_identity"`
	InterestRateBps  int64         `mapstructure:"interest_rate_bps"` // used only when none is persisted
	InterestInterval time.Duration `mapstructure:"interest_interval"`
	TargetFloat      int64         `mapstructure:"target_float"`
}

// TransferConfig points at the asset-transfer service that carries out
// outbound coin movements.
type TransferConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Secret       string        `mapstructure:"secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// NotifierConfig holds the shared secret the asset-transfer service signs
// deposit notifications with.
type NotifierConfig struct {
	Secret string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// Validate checks the settings the bank cannot run without.
func (c *Config) Validate() error {
	b := c.Bank
	if b.SelfIdentity == "" || b.VaultIdentity == "" || b.ReserveIdentity == "" {
		return errors.New("bank identities must not be empty")
	}
	if b.SelfIdentity == b.VaultIdentity || b.SelfIdentity == b.ReserveIdentity || b.VaultIdentity == b.ReserveIdentity {
		return errors.New("bank identities must be distinct")
	}
	if b.InterestRateBps < 0 {
		return fmt.Errorf("bank.interest_rate_bps must not be negative, got %d", b.InterestRateBps)
	}
	if b.InterestInterval <= 0 {
		return errors.New("bank.interest_interval must be positive")
	}
	if b.TargetFloat < 0 {
		return fmt.Errorf("bank.target_float must not be negative, got %d", b.TargetFloat)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: BANK_.
// Nested keys use underscore: BANK_DATABASE_HOST, BANK_BANK_VAULT_IDENTITY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "coin_bank")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "coin-bank")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("bank.self_identity", "banker")
	v.SetDefault("bank.vault_identity", "bank_vault")
	v.SetDefault("bank.reserve_identity", "reserve")
	v.SetDefault("bank.interest_rate_bps", 1000)
	v.SetDefault("bank.interest_interval", "1h")
	v.SetDefault("bank.target_float", 1000000)
	v.SetDefault("transfer.endpoint", "http://localhost:8888/v1/transfers")
	v.SetDefault("transfer.secret", "")
	v.SetDefault("transfer.timeout", "10s")
	v.SetDefault("transfer.poll_interval", "5s")
	v.SetDefault("notifier.secret", "")
	v.SetDefault("rate_limit.limit", 120)
	v.SetDefault("rate_limit.window", "1m")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// BANK_DATABASE_HOST -> database.host
	v.SetEnvPrefix("BANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// a missing file is fine, env vars can carry everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
