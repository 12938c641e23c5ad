package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type item struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestLoadCachesResult(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemory(time.Minute), time.Minute, zap.NewNop())

	var calls int
	fn := func(context.Context) ([]item, error) {
		calls++
		return []item{{ID: 1, Title: "a"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Load(ctx, l, "tasks:1:all", fn)
		require.NoError(t, err)
		require.Equal(t, []item{{ID: 1, Title: "a"}}, got)
	}
	require.Equal(t, 1, calls)

	l.Invalidate(ctx, "tasks:1:all")
	_, err := Load(ctx, l, "tasks:1:all", fn)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestLoadDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemory(time.Minute), time.Minute, zap.NewNop())
	boom := errors.New("boom")

	_, err := Load(ctx, l, "k", func(context.Context) (item, error) { return item{}, boom })
	require.ErrorIs(t, err, boom)

	got, err := Load(ctx, l, "k", func(context.Context) (item, error) { return item{ID: 7}, nil })
	require.NoError(t, err)
	require.Equal(t, int64(7), got.ID)
}

func TestLoadCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(NewMemory(time.Minute), time.Minute, zap.NewNop())

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (item, error) {
		calls.Add(1)
		<-release
		return item{ID: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Load(ctx, l, "k", fn)
			assert.NoError(t, err)
			assert.Equal(t, int64(1), got.ID)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}

func TestLoadSurvivesFirstCallerCancel(t *testing.T) {
	l := NewLoader(NewMemory(time.Minute), time.Minute, zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (item, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return item{}, err
		}
		return item{ID: 9}, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Load(first, l, "k", fn)
		firstErr <- err
	}()
	<-started

	second := make(chan item, 1)
	go func() {
		got, err := Load(context.Background(), l, "k", fn)
		assert.NoError(t, err)
		second <- got
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	require.NoError(t, <-firstErr)
	require.Equal(t, int64(9), (<-second).ID)

	got, ok, err := l.cache.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok, "result was not cached after the first caller went away")
	require.JSONEq(t, `{"id":9,"title":""}`, string(got))
}

type brokenCache struct{}

var errBroken = errors.New("cache down")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errBroken
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errBroken
}

func (brokenCache) Delete(context.Context, ...string) error {
	return errBroken
}

func TestLoadFailsOpen(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(brokenCache{}, time.Minute, zap.NewNop())

	got, err := Load(ctx, l, "k", func(context.Context) (item, error) { return item{ID: 3}, nil })
	require.NoError(t, err)
	require.Equal(t, int64(3), got.ID)

	l.Invalidate(ctx, "k")
}
