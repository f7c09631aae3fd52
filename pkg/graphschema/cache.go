package graphschema

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/graphask/pkg/core"
	"golang.org/x/sync/singleflight"
)

// Introspector reads raw schema information from a store.
// core.Adapter satisfies it.
type Introspector interface {
	Introspect(ctx context.Context) (*core.SchemaInfo, error)
}

// Config configures a Cache.
type Config struct {
	Introspector Introspector
	// MaxAge after which Current triggers a background refresh. Zero
	// disables staleness checks.
	MaxAge time.Duration
	// Timeout bounds a single introspection call. Zero means no limit
	// beyond the caller's context.
	Timeout time.Duration
	// Exclude lists labels and relationship types to hide.
	Exclude []string
	// OnRefresh is called after every refresh attempt.
	OnRefresh func(snap *Snapshot, err error)
	Logger    *slog.Logger
}

// Cache holds the current schema snapshot. Reads never block on the store;
// refreshes build a new snapshot and swap it in atomically.
type Cache struct {
	cfg        Config
	logger     *slog.Logger
	current    atomic.Pointer[Snapshot]
	version    atomic.Uint64
	refreshing atomic.Bool
	group      singleflight.Group
}

// NewCache creates an empty cache. Call Refresh or Load to populate it.
func NewCache(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{cfg: cfg, logger: logger}
}

// Current returns the latest snapshot, or nil if none has been loaded.
// A stale snapshot is still returned; it also starts one background refresh.
func (c *Cache) Current() *Snapshot {
	s := c.current.Load()
	if s != nil && c.cfg.MaxAge > 0 && time.Since(s.FetchedAt) > c.cfg.MaxAge {
		if c.refreshing.CompareAndSwap(false, true) {
			go func() {
				defer c.refreshing.Store(false)
				if _, err := c.Refresh(context.Background()); err != nil {
					c.logger.Warn("background schema refresh failed", "error", err)
				}
			}()
		}
	}
	return s
}

// Load returns the current snapshot, introspecting the store first if
// nothing has been loaded yet.
func (c *Cache) Load(ctx context.Context) (*Snapshot, error) {
	if s := c.Current(); s != nil {
		return s, nil
	}
	return c.Refresh(ctx)
}

// Refresh introspects the store and publishes a new snapshot. Concurrent
// calls share one introspection. On failure the previous snapshot stays
// current and the error wraps core.ErrStoreUnavailable.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	if c.cfg.Introspector == nil {
		return nil, fmt.Errorf("%w: no schema source configured", core.ErrStoreUnavailable)
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	info, err := c.cfg.Introspector.Introspect(ctx)
	if err != nil {
		err = fmt.Errorf("%w: introspection failed: %w", core.ErrStoreUnavailable, err)
		c.logger.Error("schema refresh failed", "error", err, "duration", time.Since(start))
		c.notify(nil, err)
		return nil, err
	}

	snap := FromInfo(info, c.cfg.Exclude)
	snap.Version = c.version.Add(1)
	snap.FetchedAt = time.Now()
	c.current.Store(snap)

	c.logger.Info("schema refreshed",
		"version", snap.Version,
		"labels", len(snap.Labels),
		"relationship_types", len(snap.RelTypes),
		"duration", time.Since(start))
	c.notify(snap, nil)
	return snap, nil
}

func (c *Cache) notify(snap *Snapshot, err error) {
	if c.cfg.OnRefresh != nil {
		c.cfg.OnRefresh(snap, err)
	}
}
