package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snap struct {
	Total int64 `json:"total"`
}

func TestMemory_Expiry(t *testing.T) {
	now := time.Unix(100, 0)
	m, err := NewMemory(8, func() time.Time { return now })
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte(`1`), 3*time.Second))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2999 * time.Millisecond)
	_, ok, _ = m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Millisecond)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestFetch_CachesWithinTTL(t *testing.T) {
	now := time.Unix(0, 0)
	m, err := NewMemory(8, func() time.Time { return now })
	require.NoError(t, err)
	l := NewLoader(m)
	ctx := context.Background()

	var calls int64
	load := func(context.Context) (snap, error) {
		n := atomic.AddInt64(&calls, 1)
		return snap{Total: n}, nil
	}

	v, err := Fetch(ctx, l, "total", 3*time.Second, load)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Total)

	v, err = Fetch(ctx, l, "total", 3*time.Second, load)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Total)

	now = now.Add(3 * time.Second)
	v, err = Fetch(ctx, l, "total", 3*time.Second, load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.Total)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	m, err := NewMemory(8, nil)
	require.NoError(t, err)
	l := NewLoader(m)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err = Fetch(ctx, l, "k", time.Minute, func(context.Context) (snap, error) { return snap{}, boom })
	assert.ErrorIs(t, err, boom)

	v, err := Fetch(ctx, l, "k", time.Minute, func(context.Context) (snap, error) { return snap{Total: 7}, nil })
	require.NoError(t, err)
	assert.EqualValues(t, 7, v.Total)
}

func TestFetch_CollapsesConcurrentMisses(t *testing.T) {
	m, err := NewMemory(8, nil)
	require.NoError(t, err)
	l := NewLoader(m)
	ctx := context.Background()

	var calls int64
	release := make(chan struct{})
	load := func(context.Context) (snap, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return snap{Total: 42}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(ctx, l, "burst", time.Minute, load)
			assert.NoError(t, err)
			assert.EqualValues(t, 42, v.Total)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestRedis_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewRedis(client, "stats:")
	l := NewLoader(r)
	ctx := context.Background()

	var calls int64
	load := func(context.Context) (snap, error) {
		return snap{Total: atomic.AddInt64(&calls, 1)}, nil
	}

	_, err := Fetch(ctx, l, "total", 8*time.Second, load)
	require.NoError(t, err)
	assert.True(t, mr.Exists("stats:total"))

	v, err := Fetch(ctx, l, "total", 8*time.Second, load)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Total)

	mr.FastForward(8 * time.Second)
	v, err = Fetch(ctx, l, "total", 8*time.Second, load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.Total)
}

func TestFetch_FirstCallerCancelDoesNotFailWaiters(t *testing.T) {
	m, err := NewMemory(8, nil)
	require.NoError(t, err)
	l := NewLoader(m)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int64
	load := func(ctx context.Context) (snap, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return snap{}, err
		}
		return snap{Total: 9}, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(firstCtx, l, "total", time.Minute, load)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   snap
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), l, "total", time.Minute, load)
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	assert.EqualValues(t, 9, res.v.Total)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

	v, err := Fetch(context.Background(), l, "total", time.Minute, func(context.Context) (snap, error) {
		return snap{}, errors.New("should be cached")
	})
	require.NoError(t, err)
	assert.EqualValues(t, 9, v.Total)
}

func TestFetch_FillTimeoutBoundsLoad(t *testing.T) {
	m, err := NewMemory(8, nil)
	require.NoError(t, err)
	l := NewLoader(m).WithFillTimeout(20 * time.Millisecond)

	_, err = Fetch(context.Background(), l, "slow", time.Minute, func(ctx context.Context) (snap, error) {
		<-ctx.Done()
		return snap{}, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
