package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/adapters/file"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/adapters/redis"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
)

// NewLogger builds the process logger. It writes to stderr so stdout stays
// free for the console platform.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWith(os.Stderr, level, cfg.Format), nil
}

// Store is a KVStore that can also enumerate keys.
type Store interface {
	ports.KVStore
	ports.KeyLister
}

// NewStore creates the configured store, sealed with AES-GCM when an
// encryption key is set.
func NewStore(cfg config.StoreConfig) (Store, error) {
	var store Store
	switch cfg.Type {
	case config.StoreMemory, "":
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Dir)
	case config.StoreRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}

	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return store, nil
	}
	sealed := middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	return sealed.(Store), nil
}

// NewDirectory returns the room directory: the configured YAML file, or an
// empty directory for the configured bot.
func NewDirectory(cfg *config.Config) (*memory.Platform, error) {
	if cfg.Directory == "" {
		return memory.NewPlatform(cfg.Bot.ID), nil
	}
	return memory.LoadPlatform(cfg.Directory)
}

// NewBot loads the workflows and wires the bot to platform and store.
func NewBot(cfg *config.Config, platform ports.Platform, store ports.KVStore, logger *slog.Logger, opts ...chatflow.Option) (*chatflow.Bot, error) {
	base := []chatflow.Option{
		chatflow.WithLogger(logger),
		chatflow.WithBotIdentityRemap(cfg.Bot.RemapSelf),
	}
	bot, err := chatflow.New(cfg.Workflows, platform, store, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("error initializing bot: %w", err)
	}
	return bot, nil
}
