// Package backend opens the store.Collection selected by the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/jacentio/docsample/internal/config"
	"github.com/jacentio/docsample/store"
	"github.com/jacentio/docsample/store/cosmos"
	"github.com/jacentio/docsample/store/dynamo"
	"github.com/jacentio/docsample/store/memory"
)

// memoryPartitions is the physical partition count of the in-process backend.
const memoryPartitions = 4

// Open returns a collection handle for cfg.Backend.
func Open(ctx context.Context, cfg config.Config) (store.Collection, error) {
	layout := store.DefaultConfig()

	switch cfg.Backend {
	case config.BackendCosmos:
		return cosmos.Open(cosmos.Options{
			Account:    cfg.Account,
			PrimaryKey: cfg.PrimaryKey,
			Location:   cfg.Location,
			Endpoint:   cfg.Endpoint,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		}, layout)
	case config.BackendDynamoDB:
		return dynamo.Open(ctx, dynamo.Options{
			Region:   cfg.Location,
			Table:    cfg.Collection,
			Endpoint: cfg.Endpoint,
		}, layout)
	case config.BackendMemory:
		return memory.New(layout, memoryPartitions), nil
	default:
		return nil, fmt.Errorf("%w %q", config.ErrBackend, cfg.Backend)
	}
}
