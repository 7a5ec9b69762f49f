// Package backend selects and wires the audit storage configured for the
// daemon and records registry events into it.
package backend

import (
	"context"
	"fmt"

	"github.com/sirosfoundation/go-httpservice/internal/storage"
	"github.com/sirosfoundation/go-httpservice/internal/storage/memory"
	"github.com/sirosfoundation/go-httpservice/internal/storage/mongodb"
	"github.com/sirosfoundation/go-httpservice/pkg/config"
)

// Type defines the type of storage backend
type Type string

const (
	// TypeMemory uses in-memory storage (for testing/development)
	TypeMemory Type = "memory"
	// TypeMongoDB uses MongoDB storage (for production)
	TypeMongoDB Type = "mongodb"
)

// New creates an audit storage backend based on the configuration
func New(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	storageType := Type(cfg.Audit.Type)

	switch storageType {
	case TypeMemory, "":
		return memory.NewStore(memory.DefaultMaxRecords), nil

	case TypeMongoDB:
		store, err := mongodb.NewStore(ctx, &cfg.Audit.MongoDB, cfg.Audit.Retention())
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB backend: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
