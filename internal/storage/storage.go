// Package storage provides the durable medium for the assistant: a flat
// key -> JSON document mapping with whole-document reads and writes.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mod-ship/Mod-ai-assistant/internal/utils"
)

// Keys in use by the application.
const (
	KeyConversations = "conversations"
	KeyUsers         = "users"
)

// ErrKeyNotFound is returned by Get when no document exists under the key.
var ErrKeyNotFound = errors.New("storage: key not found")

// KV is a whole-document key/value store. There are no partial updates;
// callers read, mutate in memory, and write the document back.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Open constructs the backend named by cfg.Backend.
func Open(ctx context.Context, cfg utils.StorageConfig) (KV, error) {
	switch cfg.Backend {
	case "file":
		return NewFile(cfg.DataDir)
	case "redis":
		return NewRedis(ctx, cfg.Redis)
	case "mongo":
		return NewMongo(ctx, cfg.Mongo)
	case "postgres":
		return NewPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
