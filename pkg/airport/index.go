package airport

import (
	"log/slog"
	"math"
	"strings"
	"sync"

	"flightlogger/pkg/geo"
)

// DefaultGeofence is the maximum accepted distance (meters) for a nearest match.
const DefaultGeofence = 30000.0

// Index answers nearest-airport queries by great-circle distance.
// The airport set is replaced wholesale by Load and is read-only otherwise.
type Index struct {
	mu       sync.RWMutex
	airports []Airport
	geofence float64
}

// NewIndex creates an empty index. A non-positive geofence selects DefaultGeofence.
func NewIndex(geofenceMeters float64) *Index {
	if geofenceMeters <= 0 {
		geofenceMeters = DefaultGeofence
	}
	return &Index{geofence: geofenceMeters}
}

// Load replaces the airport set. Records without a usable position or ICAO
// code are dropped. It returns the number of airports kept.
func (x *Index) Load(airports []Airport) int {
	kept := make([]Airport, 0, len(airports))
	dropped := 0
	for _, a := range airports {
		a.ICAO = strings.ToUpper(strings.TrimSpace(a.ICAO))
		if a.ICAO == "" || !(geo.Point{Lat: a.Lat, Lon: a.Lon}).Valid() {
			dropped++
			continue
		}
		a.Kind = KindResolved
		kept = append(kept, a)
	}

	x.mu.Lock()
	x.airports = kept
	x.mu.Unlock()

	if dropped > 0 {
		slog.Debug("Airport index: dropped malformed records", "dropped", dropped)
	}
	return len(kept)
}

// Len returns the number of loaded airports.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.airports)
}

// Nearest returns the closest airport, or Unresolved when the index is empty
// or the closest airport lies outside the geofence.
func (x *Index) Nearest(lat, lon float64) Airport {
	a, _ := x.NearestWithDistance(lat, lon)
	return a
}

// NearestWithDistance is Nearest plus the distance in meters to the match.
// The distance is +Inf when nothing was found.
func (x *Index) NearestWithDistance(lat, lon float64) (Airport, float64) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	q := geo.Point{Lat: lat, Lon: lon}
	best := -1
	minDist := math.Inf(1)
	for i := range x.airports {
		d := geo.Distance(q, geo.Point{Lat: x.airports[i].Lat, Lon: x.airports[i].Lon})
		// strict less-than: first encountered minimum wins
		if d < minDist {
			minDist = d
			best = i
		}
	}

	if best < 0 {
		return Unresolved, math.Inf(1)
	}
	if minDist > x.geofence {
		return Unresolved, minDist
	}
	return x.airports[best], minDist
}
