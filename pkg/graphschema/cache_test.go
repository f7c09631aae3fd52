package graphschema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/graphask/internal/testutil"
	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIntrospector counts calls and can fail or block on demand.
type fakeIntrospector struct {
	calls   atomic.Int32
	fail    atomic.Bool
	started chan struct{}
	release chan struct{}
}

func (f *fakeIntrospector) Introspect(ctx context.Context) (*core.SchemaInfo, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return testutil.MoviesSchema(), nil
}

func TestCache_CurrentBeforeLoad(t *testing.T) {
	c := NewCache(Config{Introspector: &fakeIntrospector{}})
	assert.Nil(t, c.Current())
}

func TestCache_CurrentIsIdempotent(t *testing.T) {
	fake := &fakeIntrospector{}
	c := NewCache(Config{Introspector: fake, Logger: testutil.NewTestLogger(t)})

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	first := c.Current()
	second := c.Current()
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, Format(first), Format(second))
	assert.Equal(t, int32(1), fake.calls.Load(), "Current must not touch the store")
}

func TestCache_RefreshSwapsSnapshot(t *testing.T) {
	fake := &fakeIntrospector{}
	c := NewCache(Config{Introspector: fake})

	first, err := c.Refresh(context.Background())
	require.NoError(t, err)
	second, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)
	assert.Same(t, second, c.Current())
	// The old snapshot is still usable by whoever holds it.
	assert.True(t, first.HasLabel("Movie"))
}

func TestCache_RefreshFailureKeepsPrevious(t *testing.T) {
	fake := &fakeIntrospector{}
	var notified []error
	c := NewCache(Config{
		Introspector: fake,
		OnRefresh:    func(_ *Snapshot, err error) { notified = append(notified, err) },
	})

	good, err := c.Refresh(context.Background())
	require.NoError(t, err)

	fake.fail.Store(true)
	snap, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Same(t, good, c.Current())

	require.Len(t, notified, 2)
	assert.NoError(t, notified[0])
	assert.Error(t, notified[1])
}

func TestCache_LoadRefreshesOnce(t *testing.T) {
	fake := &fakeIntrospector{}
	c := NewCache(Config{Introspector: fake})

	s1, err := c.Load(context.Background())
	require.NoError(t, err)
	s2, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestCache_LoadFailure(t *testing.T) {
	fake := &fakeIntrospector{}
	fake.fail.Store(true)
	c := NewCache(Config{Introspector: fake})

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestCache_NoIntrospector(t *testing.T) {
	_, err := NewCache(Config{}).Refresh(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestCache_ConcurrentRefreshCoalesced(t *testing.T) {
	fake := &fakeIntrospector{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := NewCache(Config{Introspector: fake})

	var wg sync.WaitGroup
	results := make([]*Snapshot, 5)
	run := func(i int) {
		defer wg.Done()
		s, err := c.Refresh(context.Background())
		assert.NoError(t, err)
		results[i] = s
	}

	wg.Add(1)
	go run(0)
	<-fake.started

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go run(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(fake.release)
	wg.Wait()

	assert.Equal(t, int32(1), fake.calls.Load())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestCache_RefreshTimeout(t *testing.T) {
	fake := &fakeIntrospector{release: make(chan struct{})}
	c := NewCache(Config{Introspector: fake, Timeout: 20 * time.Millisecond})

	_, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_StaleTriggersBackgroundRefresh(t *testing.T) {
	fake := &fakeIntrospector{}
	c := NewCache(Config{Introspector: fake, MaxAge: time.Millisecond})

	first, err := c.Refresh(context.Background())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// The stale snapshot is returned immediately.
	assert.Same(t, first, c.Current())

	assert.Eventually(t, func() bool {
		return fake.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestLoadFile(t *testing.T) {
	snap, err := LoadFile(filepath.Join("testdata", "movies.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Actor", "Movie"}, snap.Labels)
	assert.Equal(t, []string{"ACTED_IN"}, snap.RelTypes)
	assert.True(t, snap.NodeHasProperty([]string{"Movie"}, "runtime"))
	assert.True(t, snap.RelHasProperty([]string{"ACTED_IN"}, "roles"))
	assert.False(t, snap.HasLabel("Migration"), "excluded in file")
	assert.Equal(t, []core.RelPattern{{From: "Actor", Type: "ACTED_IN", To: "Movie"}}, snap.Patterns)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nodes: [unclosed"), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestFileIntrospector_AppliesFileExclude(t *testing.T) {
	f := &FileIntrospector{Path: filepath.Join("testdata", "movies.yaml")}
	c := NewCache(Config{Introspector: f})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.HasLabel("Migration"))
	assert.True(t, snap.HasLabel("Actor"))
}

func TestWatch_RefreshesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  Movie:\n    name: STRING\n"), 0o600))

	c := NewCache(Config{Introspector: &FileIntrospector{Path: path}})
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, c.Current().HasLabel("Actor"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, c, nil) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  Movie:\n    name: STRING\n  Actor:\n    name: STRING\n"), 0o600))

	assert.Eventually(t, func() bool {
		s := c.Current()
		return s != nil && s.HasLabel("Actor")
	}, 2*time.Second, 20*time.Millisecond)
}
