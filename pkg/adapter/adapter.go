// Package adapter holds the graph store adapter registry and helpers shared
// by adapter implementations.
//
// The Adapter contract itself is core.Adapter. Concrete adapters live in
// pkg/adapters/ subdirectories and register themselves from init():
//
//	import _ "github.com/leapstack-labs/graphask/pkg/adapters/neo4j"
package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// Open creates the adapter named by cfg.Type and connects it. The adapter
// is closed again if the connection fails.
func Open(ctx context.Context, cfg core.AdapterConfig, logger *slog.Logger) (core.Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("connect to %s store: %w", cfg.Type, err)
	}
	return a, nil
}
