package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CHATFLOW_STORE_REDIS_ADDR for store.redis.addr.
const EnvPrefix = "CHATFLOW"

// Store types.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	Workflows string      `mapstructure:"workflows"`
	Directory string      `mapstructure:"directory"`
	Store     StoreConfig `mapstructure:"store"`
	HTTP      HTTPConfig  `mapstructure:"http"`
	Bot       BotConfig   `mapstructure:"bot"`
	Log       LogConfig   `mapstructure:"log"`
}

type StoreConfig struct {
	Type          string      `mapstructure:"type"`
	Dir           string      `mapstructure:"dir"`
	EncryptionKey string      `mapstructure:"encryption_key"`
	Redis         RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr        string `mapstructure:"addr"`
	CallbackURL string `mapstructure:"callback_url"`
}

type BotConfig struct {
	ID        string `mapstructure:"id"`
	RemapSelf bool   `mapstructure:"remap_self"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"workflows":            "workflows",
	"directory":            "",
	"store.type":           StoreMemory,
	"store.dir":            ".chatflow",
	"store.encryption_key": "",
	"store.redis.addr":     "localhost:6379",
	"store.redis.password": "",
	"store.redis.db":       0,
	"store.redis.prefix":   "chatflow:",
	"store.redis.ttl":      time.Duration(0),
	"http.addr":            ":8080",
	"http.callback_url":    "",
	"bot.id":               "bot",
	"bot.remap_self":       true,
	"log.level":            "info",
	"log.format":           "text",
}

// FlagKeys maps CLI flag names to configuration keys.
var FlagKeys = map[string]string{
	"workflows":    "workflows",
	"directory":    "directory",
	"store":        "store.type",
	"store-dir":    "store.dir",
	"redis-addr":   "store.redis.addr",
	"addr":         "http.addr",
	"callback-url": "http.callback_url",
	"bot-id":       "bot.id",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag of fs named in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads file (if not empty) into v and decodes the result.
// Precedence: flags, environment, file, defaults.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file store")
		}
	default:
		return fmt.Errorf("unknown store.type %q (want memory, file or redis)", c.Store.Type)
	}
	if _, err := c.Store.Key(); err != nil {
		return err
	}
	if c.Bot.ID == "" {
		return errors.New("bot.id is required")
	}
	return nil
}

// Key decodes the base64 encryption key. It returns nil when encryption is
// not configured.
func (s StoreConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
