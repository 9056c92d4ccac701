package storage

import (
	"context"
	"fmt"

	"github.com/affiliatehq/reporting-service/internal/config"
)

// Store is a durable key→string store. The rule configuration and the
// manual row-assignment table are each persisted as one JSON blob under a
// well-known key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NewStore creates a new store instance based on configuration
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "file":
		return NewFileStore(cfg)
	case "dynamodb":
		return NewDynamoDBStore(cfg)
	case "mongodb":
		return NewMongoDBStore(cfg)
	case "postgresql":
		return NewPostgreSQLStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
