package region

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/metar-etl/internal/adapter/filestore"
	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingGeocoder returns a fixed reply per key and counts calls.
type countingGeocoder struct {
	replies map[string]string
	delay   time.Duration
	calls   atomic.Int32
	err     error
}

func (g *countingGeocoder) GeocodeRegion(ctx context.Context, identifier string) (string, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.replies[domain.NormalizeRegionKey(identifier)], nil
}

// failingStore fails every merge.
type failingStore struct{ *MemoryStore }

func (f *failingStore) Merge(context.Context, string, domain.BoundingRegion) error {
	return errors.New("disk full")
}

const njReply = "-75.56,-73.89,38.93,41.36"

var njBox = domain.BoundingRegion{West: -75.56, East: -73.89, South: 38.93, North: 41.36}

func newResolver(t *testing.T, store domain.RegionStore, g domain.RegionGeocoder) (*Resolver, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	r, err := NewResolver(store, g, Options{CacheSize: 8}, discardLogger(), m)
	require.NoError(t, err)
	return r, m
}

func TestResolver_CachesAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bounding_box.json")
	geo := &countingGeocoder{replies: map[string]string{"nj": njReply}}

	first, _ := newResolver(t, filestore.New(path, discardLogger()), geo)
	got, err := first.Resolve(context.Background(), "NJ")
	require.NoError(t, err)
	assert.Equal(t, njBox, got)
	assert.Less(t, got.West, got.East)
	assert.Less(t, got.South, got.North)
	assert.Equal(t, int32(1), geo.calls.Load())

	// Same session, different case.
	again, err := first.Resolve(context.Background(), "nj")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// A fresh resolver over the same file is a later session.
	second, m := newResolver(t, filestore.New(path, discardLogger()), geo)
	later, err := second.Resolve(context.Background(), " Nj ")
	require.NoError(t, err)
	assert.Equal(t, got, later)
	assert.Equal(t, int32(1), geo.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegionCache.WithLabelValues("store", "hit")))
}

func TestResolver_MemoryHit(t *testing.T) {
	geo := &countingGeocoder{replies: map[string]string{"nj": njReply}}
	r, m := newResolver(t, NewMemoryStore(), geo)

	for range 3 {
		_, err := r.Resolve(context.Background(), "NJ")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), geo.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegionCache.WithLabelValues("memory", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegionCache.WithLabelValues("store", "miss")))
}

func TestResolver_BadReplyIsResolutionError(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "New Jersey is roughly between 75W and 74W"},
		{"three values", "-75.5,-73.9,38.9"},
		{"west not less than east", "-73.89,-75.56,38.93,41.36"},
		{"south not less than north", "-75.56,-73.89,41.36,38.93"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			geo := &countingGeocoder{replies: map[string]string{"nj": tt.reply}}
			r, _ := newResolver(t, store, geo)

			_, err := r.Resolve(context.Background(), "NJ")
			var re *domain.ResolutionError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, 0, store.Len())

			// Not retried automatically, but a later call asks again.
			_, _ = r.Resolve(context.Background(), "NJ")
			assert.Equal(t, int32(2), geo.calls.Load())
		})
	}
}

func TestResolver_InvalidCachedRegionIsReplaced(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Merge(context.Background(), "nj", domain.BoundingRegion{West: 1, East: 0, South: 0, North: 1}))
	geo := &countingGeocoder{replies: map[string]string{"nj": njReply}}
	r, _ := newResolver(t, store, geo)

	got, err := r.Resolve(context.Background(), "NJ")
	require.NoError(t, err)
	assert.Equal(t, njBox, got)
	assert.Equal(t, int32(1), geo.calls.Load())

	stored, ok, err := store.Load(context.Background(), "nj")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, njBox, stored)
}

func TestResolver_EmptyIdentifier(t *testing.T) {
	geo := &countingGeocoder{}
	r, _ := newResolver(t, NewMemoryStore(), geo)

	_, err := r.Resolve(context.Background(), "   ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "region", ve.Param)
	assert.Equal(t, int32(0), geo.calls.Load())
}

func TestResolver_GeocoderAndStoreErrors(t *testing.T) {
	t.Run("geocoder", func(t *testing.T) {
		geo := &countingGeocoder{err: errors.New("connection refused")}
		r, _ := newResolver(t, NewMemoryStore(), geo)
		_, err := r.Resolve(context.Background(), "NJ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("merge", func(t *testing.T) {
		store := &failingStore{MemoryStore: NewMemoryStore()}
		geo := &countingGeocoder{replies: map[string]string{"nj": njReply}}
		r, _ := newResolver(t, store, geo)
		_, err := r.Resolve(context.Background(), "NJ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestResolver_ConcurrentSameIdentifierSharesCall(t *testing.T) {
	geo := &countingGeocoder{replies: map[string]string{"nj": njReply}, delay: 50 * time.Millisecond}
	r, _ := newResolver(t, NewMemoryStore(), geo)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), "NJ")
			assert.NoError(t, err)
			assert.Equal(t, njBox, got)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), geo.calls.Load())
}

func TestResolver_CancelledCallerDoesNotFailOthers(t *testing.T) {
	geo := &countingGeocoder{replies: map[string]string{"nj": njReply}, delay: 200 * time.Millisecond}
	store := NewMemoryStore()
	r, _ := newResolver(t, store, geo)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(firstCtx, "NJ")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return geo.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		box domain.BoundingRegion
		err error
	}
	second := make(chan result, 1)
	go func() {
		box, err := r.Resolve(context.Background(), "nj")
		second <- result{box, err}
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, njBox, got.box)
	assert.Equal(t, int32(1), geo.calls.Load())

	// The shared call still persisted the region.
	stored, ok, err := store.Load(context.Background(), "nj")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, njBox, stored)
}

func TestResolver_ConcurrentDifferentIdentifiersKeepAllEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bounding_box.json")
	replies := map[string]string{
		"nj": njReply,
		"pa": "-80.52,-74.69,39.72,42.27",
		"ny": "-79.76,-71.86,40.5,45.02",
		"de": "-75.79,-75.05,38.45,39.84",
		"md": "-79.49,-75.05,37.91,39.72",
	}
	geo := &countingGeocoder{replies: replies, delay: 10 * time.Millisecond}
	store := filestore.New(path, discardLogger())
	r, _ := newResolver(t, store, geo)

	var wg sync.WaitGroup
	for id := range replies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reopened := filestore.New(path, discardLogger())
	for id, reply := range replies {
		want, err := domain.ParseRegionReply(id, reply)
		require.NoError(t, err)
		got, ok, err := reopened.Load(context.Background(), id)
		require.NoError(t, err)
		require.True(t, ok, id)
		assert.Equal(t, want, got)
	}
}

func TestNewResolver_RequiresCollaborators(t *testing.T) {
	_, err := NewResolver(nil, &countingGeocoder{}, Options{}, discardLogger(), observability.NewMetricsForTesting())
	require.Error(t, err)
	_, err = NewResolver(NewMemoryStore(), nil, Options{}, discardLogger(), observability.NewMetricsForTesting())
	require.Error(t, err)
}
