package keys

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pagelock/internal/model"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	records map[model.CacheKey]model.KeyRecord
	saves   int
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[model.CacheKey]model.KeyRecord)}
}

func (s *memStore) Load(_ context.Context, key model.CacheKey) (model.KeyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return model.KeyRecord{}, false, s.loadErr
	}
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *memStore) Save(_ context.Context, rec model.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key] = rec
	s.saves++
	return nil
}

func (s *memStore) Delete(_ context.Context, key model.CacheKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

var chapterKey = model.CacheKey{Site: "reader.example", Scope: "cid-1"}

func TestCache_FetchOnce(t *testing.T) {
	c := NewCache[string](0, nil)
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "value", nil
	}

	for range 3 {
		v, err := c.Get(context.Background(), chapterKey, fetch)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ConcurrentMissesShareFetch(t *testing.T) {
	c := NewCache[int](0, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), chapterKey, fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// Даём горутинам дойти до singleflight
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCache_DifferentKeysDoNotBlock(t *testing.T) {
	c := NewCache[string](0, nil)
	blocked := make(chan struct{})
	defer close(blocked)

	go func() {
		_, _ = c.Get(context.Background(), chapterKey, func(context.Context) (string, error) {
			<-blocked
			return "slow", nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := c.Get(ctx, model.CacheKey{Site: "reader.example", Scope: "cid-2"}, func(context.Context) (string, error) {
		return "fast", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache[string](0, nil)
	boom := errors.New("boom")

	_, err := c.Get(context.Background(), chapterKey, func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := c.Get(context.Background(), chapterKey, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_TTL(t *testing.T) {
	c := NewCache[string](time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls int
	fetch := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, err := c.Get(context.Background(), chapterKey, fetch)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = c.Get(context.Background(), chapterKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	now = now.Add(time.Second)
	_, err = c.Get(context.Background(), chapterKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_Invalidate(t *testing.T) {
	store := newMemStore()
	c := NewCache[string](0, store)
	var calls int
	fetch := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, err := c.Get(context.Background(), chapterKey, fetch)
	require.NoError(t, err)
	c.Invalidate(context.Background(), chapterKey)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, store.records)

	_, err = c.Get(context.Background(), chapterKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_WritesThroughToStore(t *testing.T) {
	store := newMemStore()
	c := NewCache[model.ChapterKeys](time.Hour, store)
	want := model.ChapterKeys{CID: "cid-1", PTbl: model.KeyTable{"a"}, CTbl: model.KeyTable{"b"}}

	_, err := c.Get(context.Background(), chapterKey, func(context.Context) (model.ChapterKeys, error) {
		return want, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.saves)

	// новый процесс: память пуста, значение приходит из хранилища
	restarted := NewCache[model.ChapterKeys](time.Hour, store)
	got, err := restarted.Get(context.Background(), chapterKey, func(context.Context) (model.ChapterKeys, error) {
		t.Fatal("fetch must not be called when the store has a fresh record")
		return model.ChapterKeys{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCache_StoreExpiredOrBroken(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memStore)
	}{
		{"expired record", func(s *memStore) {
			payload, _ := json.Marshal("stale")
			s.records[chapterKey] = model.KeyRecord{Key: chapterKey, Payload: payload, FetchedAt: time.Now().Add(-2 * time.Hour)}
		}},
		{"undecodable record", func(s *memStore) {
			s.records[chapterKey] = model.KeyRecord{Key: chapterKey, Payload: []byte("{"), FetchedAt: time.Now()}
		}},
		{"load error", func(s *memStore) {
			s.loadErr = errors.New("db down")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			tt.setup(store)
			c := NewCache[string](time.Hour, store)

			v, err := c.Get(context.Background(), chapterKey, func(context.Context) (string, error) {
				return "fresh", nil
			})
			require.NoError(t, err)
			assert.Equal(t, "fresh", v)
		})
	}
}

func TestCache_WaiterContextCancelled(t *testing.T) {
	c := NewCache[string](0, nil)
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = c.Get(context.Background(), chapterKey, func(context.Context) (string, error) {
			<-release
			return "late", nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, chapterKey, func(context.Context) (string, error) {
		return "unused", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
