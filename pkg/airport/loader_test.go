package airport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightlogger/pkg/tracker"
)

const sampleMap = `{
  "RCTP": {"lat": 25.0797, "lon": 121.2342, "tz": "Asia/Taipei"},
  "RCSS": {"lat": 25.0694, "lon": 121.5524, "tz": "Asia/Taipei"},
  "XNOL": {"tz": "UTC"},
  "XBAD": {"lat": "north", "lon": 1},
  "EGLL": {"lat": 51.47, "lon": -0.4543}
}`

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [121.2342, 25.0797]}, "properties": {"icao": "RCTP", "tz": "Asia/Taipei"}},
    {"type": "Feature", "id": "RCSS", "geometry": {"type": "Point", "coordinates": [121.5524, 25.0694]}, "properties": {"timezone": "Asia/Taipei"}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}, "properties": {"icao": "LINE"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}, "properties": {}}
  ]
}`

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Get(ctx context.Context, u string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeCache struct {
	data map[string][]byte
	at   map[string]time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, at: map[string]time.Time{}}
}

func (c *fakeCache) GetCacheWithTime(ctx context.Context, key string) ([]byte, time.Time, bool) {
	v, ok := c.data[key]
	return v, c.at[key], ok
}

func (c *fakeCache) SetCache(ctx context.Context, key string, val []byte) error {
	c.data[key] = val
	c.at[key] = time.Now()
	return nil
}

func TestParse_ICAOMap(t *testing.T) {
	airports, err := Parse([]byte(sampleMap))
	require.NoError(t, err)
	require.Len(t, airports, 3)

	// sorted by ICAO
	assert.Equal(t, "EGLL", airports[0].ICAO)
	assert.Equal(t, "RCSS", airports[1].ICAO)
	assert.Equal(t, "RCTP", airports[2].ICAO)
	assert.Equal(t, "Asia/Taipei", airports[2].Timezone)
	assert.Equal(t, "", airports[0].Timezone)
	assert.Equal(t, KindResolved, airports[0].Kind)
}

func TestParse_GeoJSON(t *testing.T) {
	airports, err := Parse([]byte(sampleGeoJSON))
	require.NoError(t, err)
	require.Len(t, airports, 2)

	assert.Equal(t, "RCSS", airports[0].ICAO)
	assert.Equal(t, "Asia/Taipei", airports[0].Timezone)
	assert.Equal(t, "RCTP", airports[1].ICAO)
	assert.InDelta(t, 25.0797, airports[1].Lat, 1e-9)
	assert.InDelta(t, 121.2342, airports[1].Lon, 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not json", "[1,2,3]"} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestLoader_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airports.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleMap), 0o644))

	idx := NewIndex(0)
	n := NewLoader(nil, nil, 0).LoadInto(context.Background(), idx, path)
	assert.Equal(t, 3, n)
	assert.Equal(t, "RCTP", idx.Nearest(25.0777, 121.2328).ICAO)
}

func TestLoader_FailureDegradesToEmpty(t *testing.T) {
	idx := NewIndex(0)
	idx.Load([]Airport{taoyuan})

	f := &fakeFetcher{err: errors.New("offline")}
	n := NewLoader(f, newFakeCache(), time.Hour).LoadInto(context.Background(), idx, "https://example.invalid/airports.json")

	assert.Equal(t, 0, n)
	assert.Equal(t, 0, idx.Len())
	assert.False(t, idx.Nearest(25.0777, 121.2328).Resolved())
}

func TestLoader_RemoteCaching(t *testing.T) {
	ctx := context.Background()
	src := "https://example.invalid/airports.json"
	f := &fakeFetcher{data: []byte(sampleMap)}
	c := newFakeCache()
	l := NewLoader(f, c, time.Hour)
	tr := tracker.New()
	l.SetTracker(tr)

	airports, err := l.Load(ctx, src)
	require.NoError(t, err)
	assert.Len(t, airports, 3)
	assert.Equal(t, 1, f.calls)

	// fresh cache hit
	_, err = l.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	// expired cache, download fails: stale copy is used
	c.at["airports:"+src] = time.Now().Add(-2 * time.Hour)
	f.err = errors.New("offline")
	airports, err = l.Load(ctx, src)
	require.NoError(t, err)
	assert.Len(t, airports, 3)
	assert.Equal(t, 2, f.calls)

	stats := tr.Snapshot()["airports"]
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(nil, nil, 0).Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
