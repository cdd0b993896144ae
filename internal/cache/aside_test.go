package cache

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total int      `json:"total"`
	Langs []string `json:"langs"`
}

func newRedisAside(t *testing.T, opts ...Option) (*Aside, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewAside(store, opts...), mr
}

// countingFetch returns a fetch func that reports how often it ran.
func countingFetch(v payload) (func(context.Context) (payload, error), *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (payload, error) {
		n.Add(1)
		return v, nil
	}, &n
}

// failingStore fails every operation.
type failingStore struct {
	getErr, setErr error
	sets           atomic.Int32
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return nil, ErrMiss
}

func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	f.sets.Add(1)
	return f.setErr
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) observe(_, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, result)
}

func (r *recorder) results() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestGetOrCompute_NilAsidePassesThrough(t *testing.T) {
	fetch, calls := countingFetch(payload{Total: 3})

	for i := 0; i < 2; i++ {
		got, err := GetOrCompute(context.Background(), nil, "k", time.Hour, fetch)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Total)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_NoStoreReportsDisabled(t *testing.T) {
	rec := &recorder{}
	a := NewAside(nil, WithObserver(rec.observe))
	fetch, calls := countingFetch(payload{Total: 1})

	_, err := GetOrCompute(context.Background(), a, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.False(t, a.Enabled())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{ResultDisabled}, rec.results())
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	rec := &recorder{}
	a, mr := newRedisAside(t, WithObserver(rec.observe))
	want := payload{Total: 699, Langs: []string{"Go", "TypeScript"}}
	fetch, calls := countingFetch(want)
	ctx := context.Background()

	got, err := GetOrCompute(ctx, a, "github-stats-v1", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = GetOrCompute(ctx, a, "github-stats-v1", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, int32(1), calls.Load(), "second call should be served from cache")
	assert.Equal(t, []string{ResultMiss, ResultHit}, rec.results())

	stored, err := mr.Get("github-stats-v1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":699,"langs":["Go","TypeScript"]}`, stored)
	assert.Equal(t, time.Hour, mr.TTL("github-stats-v1"))
}

func TestGetOrCompute_ExpiredEntryRefetches(t *testing.T) {
	a, mr := newRedisAside(t)
	fetch, calls := countingFetch(payload{Total: 1})
	ctx := context.Background()

	_, err := GetOrCompute(ctx, a, "wakatime-stats", time.Hour, fetch)
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)

	_, err = GetOrCompute(ctx, a, "wakatime-stats", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_FetchErrorNotCached(t *testing.T) {
	a, mr := newRedisAside(t)
	boom := errors.New("upstream 502")

	_, err := GetOrCompute(context.Background(), a, "k", time.Hour, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestGetOrCompute_StoreGetErrorFallsBackToFetch(t *testing.T) {
	rec := &recorder{}
	store := &failingStore{getErr: errors.New("connection refused")}
	a := NewAside(store, WithObserver(rec.observe))
	fetch, calls := countingFetch(payload{Total: 5})

	got, err := GetOrCompute(context.Background(), a, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Total)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), store.sets.Load(), "write is still attempted")
	assert.Equal(t, []string{ResultError}, rec.results())
}

func TestGetOrCompute_StoreSetErrorSwallowed(t *testing.T) {
	rec := &recorder{}
	a := NewAside(&failingStore{setErr: errors.New("READONLY")}, WithObserver(rec.observe))
	fetch, _ := countingFetch(payload{Total: 9})

	got, err := GetOrCompute(context.Background(), a, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Total)
	assert.Equal(t, []string{ResultMiss, ResultSetError}, rec.results())
}

func TestGetOrCompute_CorruptValueRefetchedAndOverwritten(t *testing.T) {
	a, mr := newRedisAside(t)
	require.NoError(t, mr.Set("k", "{not json"))
	fetch, calls := countingFetch(payload{Total: 2})

	got, err := GetOrCompute(context.Background(), a, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, int32(1), calls.Load())

	stored, _ := mr.Get("k")
	assert.JSONEq(t, `{"total":2,"langs":null}`, stored)
}

func TestGetOrCompute_EmptyValueIsMiss(t *testing.T) {
	a, mr := newRedisAside(t)
	require.NoError(t, mr.Set("k", ""))
	fetch, calls := countingFetch(payload{Total: 4})

	_, err := GetOrCompute(context.Background(), a, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCompute_ConcurrentMissesShareFetch(t *testing.T) {
	a, _ := newRedisAside(t)
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (payload, error) {
		calls.Add(1)
		<-release
		return payload{Total: 42}, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]payload, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = GetOrCompute(context.Background(), a, "hot", time.Hour, fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i].Total)
	}
}

func TestGetOrCompute_CallersGetIndependentCopies(t *testing.T) {
	a, _ := newRedisAside(t)
	fetch, _ := countingFetch(payload{Langs: []string{"Go"}})
	ctx := context.Background()

	first, err := GetOrCompute(ctx, a, "k", time.Hour, fetch)
	require.NoError(t, err)
	first.Langs[0] = "mutated"

	second, err := GetOrCompute(ctx, a, "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, "Go", second.Langs[0])
}

func TestGetOrCompute_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	a, mr := newRedisAside(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (payload, error) {
		close(started)
		select {
		case <-release:
			return payload{Total: 699}, nil
		case <-ctx.Done():
			return payload{}, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := GetOrCompute(leaderCtx, a, "github-stats-v1", time.Hour, fetch)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		v   payload
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		v, err := GetOrCompute(context.Background(), a, "github-stats-v1", time.Hour, fetch)
		waiter <- outcome{v, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, 699, got.v.Total)
	assert.True(t, mr.Exists("github-stats-v1"), "shared fetch should still populate the cache")
}

func TestGetOrCompute_WaiterStopsOnOwnCancel(t *testing.T) {
	a, _ := newRedisAside(t)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := GetOrCompute(ctx, a, "wakatime-stats", time.Hour, func(context.Context) (payload, error) {
		<-release
		return payload{}, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetOrCompute_FetchTimeout(t *testing.T) {
	a, _ := newRedisAside(t, WithFetchTimeout(20*time.Millisecond))

	_, err := GetOrCompute(context.Background(), a, "k", time.Hour, func(ctx context.Context) (payload, error) {
		<-ctx.Done()
		return payload{}, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetOrCompute_UnencodableValueServedUncached(t *testing.T) {
	type ratio struct{ Value float64 }
	a, mr := newRedisAside(t)

	got, err := GetOrCompute(context.Background(), a, "k", time.Hour, func(context.Context) (ratio, error) {
		return ratio{Value: math.Inf(1)}, nil
	})
	require.NoError(t, err)
	assert.True(t, math.IsInf(got.Value, 1))
	assert.False(t, mr.Exists("k"))
}
