package airport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"flightlogger/pkg/geo"
)

// DefaultSource is the community-maintained ICAO -> {lat, lon, tz} dataset.
const DefaultSource = "https://raw.githubusercontent.com/seabus0316/GeoFS-METAR-system/refs/heads/main/airports_with_tz.json"

// Fetcher downloads a remote document.
type Fetcher interface {
	Get(ctx context.Context, u string) ([]byte, error)
}

// Cache persists downloaded datasets between runs.
type Cache interface {
	GetCacheWithTime(ctx context.Context, key string) ([]byte, time.Time, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// CacheTracker records cache outcomes.
type CacheTracker interface {
	TrackCacheHit(provider string)
	TrackCacheMiss(provider string)
}

// trackerName is the provider name cache outcomes are recorded under.
const trackerName = "airports"

// Loader reads airport reference data from a URL or a local file.
type Loader struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	tracker CacheTracker
}

// NewLoader creates a loader. cache may be nil; ttl <= 0 keeps cached data forever.
func NewLoader(f Fetcher, c Cache, ttl time.Duration) *Loader {
	return &Loader{fetcher: f, cache: c, ttl: ttl}
}

// SetTracker records cache hits and misses on t.
func (l *Loader) SetTracker(t CacheTracker) {
	l.tracker = t
}

func (l *Loader) trackCache(hit bool) {
	switch {
	case l.tracker == nil:
	case hit:
		l.tracker.TrackCacheHit(trackerName)
	default:
		l.tracker.TrackCacheMiss(trackerName)
	}
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load returns the parsed airports of source.
func (l *Loader) Load(ctx context.Context, source string) ([]Airport, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadInto fills idx from source. Any failure leaves idx empty, so every
// query resolves to Unresolved; startup continues either way.
func (l *Loader) LoadInto(ctx context.Context, idx *Index, source string) int {
	airports, err := l.Load(ctx, source)
	if err != nil {
		slog.Error("Airport data unavailable, nearest-airport lookups will be unresolved", "source", source, "error", err)
		idx.Load(nil)
		return 0
	}
	n := idx.Load(airports)
	slog.Info("Airports loaded", "count", n, "source", source)
	return n
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if !isRemote(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read airport file: %w", err)
		}
		return data, nil
	}

	key := "airports:" + source
	var stale []byte
	if l.cache != nil {
		if data, at, ok := l.cache.GetCacheWithTime(ctx, key); ok {
			if l.ttl <= 0 || time.Since(at) < l.ttl {
				slog.Debug("Airport data served from cache", "age", time.Since(at).Round(time.Second))
				l.trackCache(true)
				return data, nil
			}
			stale = data
		}
		l.trackCache(false)
	}

	if l.fetcher == nil {
		if stale != nil {
			return stale, nil
		}
		return nil, fmt.Errorf("no fetcher configured for %s", source)
	}

	data, err := l.fetcher.Get(ctx, source)
	if err != nil {
		if stale != nil {
			slog.Warn("Airport download failed, using stale cache", "error", err)
			return stale, nil
		}
		return nil, fmt.Errorf("failed to download airports: %w", err)
	}

	if l.cache != nil {
		if err := l.cache.SetCache(ctx, key, data); err != nil {
			slog.Warn("Failed to cache airport data", "error", err)
		}
	}
	return data, nil
}

// rawAirport uses pointers so a missing coordinate can be told apart from 0.
type rawAirport struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
	TZ  string   `json:"tz"`
}

// Parse decodes either an ICAO-keyed JSON object or a GeoJSON
// FeatureCollection. Malformed entries are skipped. The result is sorted by
// ICAO so repeated loads produce the same index order.
func Parse(data []byte) ([]Airport, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty airport data")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid airport json: %w", err)
	}

	var out []Airport
	var err error
	if probe.Type == "FeatureCollection" {
		out, err = parseGeoJSON(data)
	} else {
		out, err = parseICAOMap(data)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ICAO < out[j].ICAO })
	return out, nil
}

func parseICAOMap(data []byte) ([]Airport, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid airport map: %w", err)
	}

	out := make([]Airport, 0, len(entries))
	skipped := 0
	for icao, raw := range entries {
		var r rawAirport
		if err := json.Unmarshal(raw, &r); err != nil || r.Lat == nil || r.Lon == nil {
			skipped++
			continue
		}
		out = append(out, Airport{ICAO: icao, Lat: *r.Lat, Lon: *r.Lon, Timezone: r.TZ, Kind: KindResolved})
	}
	if skipped > 0 {
		slog.Debug("Airport data: skipped malformed entries", "count", skipped)
	}
	return out, nil
}

func parseGeoJSON(data []byte) ([]Airport, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("invalid airport geojson: %w", err)
	}

	out := make([]Airport, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		icao := f.Properties.MustString("icao", "")
		if icao == "" {
			if id, ok := f.ID.(string); ok {
				icao = id
			}
		}
		if icao == "" {
			continue
		}
		tz := f.Properties.MustString("tz", "")
		if tz == "" {
			tz = f.Properties.MustString("timezone", "")
		}
		p := geo.FromOrb(pt)
		out = append(out, Airport{ICAO: icao, Lat: p.Lat, Lon: p.Lon, Timezone: tz, Kind: KindResolved})
	}
	return out, nil
}
