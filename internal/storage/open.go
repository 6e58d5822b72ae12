package storage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Storage drivers
const (
	DriverFile   = "file"
	DriverLibSQL = "libsql"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a KVStore
type Options struct {
	Driver      string
	DataDir     string
	RedisURL    string
	RedisPrefix string
	Logger      *log.Logger
}

// Open builds the KVStore named by opts.Driver
func Open(ctx context.Context, opts Options) (KVStore, error) {
	paths := NewPathManagerAt(opts.DataDir)

	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case "", DriverFile:
		dir, err := paths.GetCollectionsDir()
		if err != nil {
			return nil, fmt.Errorf("failed to prepare collections directory: %w", err)
		}
		return NewFileStore(dir, opts.Logger)
	case DriverLibSQL:
		dbPath, err := paths.GetDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to prepare database path: %w", err)
		}
		return NewLibSQLStore(dbPath, opts.Logger)
	case DriverRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis driver requires a redis URL")
		}
		return NewRedisStore(ctx, opts.RedisURL, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
