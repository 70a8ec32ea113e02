package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightlogger/pkg/airport"
	"flightlogger/pkg/db"
	"flightlogger/pkg/store"
)

// MockStore is an in-memory StateStore.
type MockStore struct {
	Data   map[string]string
	SetErr error
}

func (m *MockStore) GetState(ctx context.Context, key string) (string, bool) {
	v, ok := m.Data[key]
	return v, ok
}

func (m *MockStore) SetState(ctx context.Context, key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Data == nil {
		m.Data = make(map[string]string)
	}
	m.Data[key] = value
	return nil
}

func (m *MockStore) DeleteState(ctx context.Context, key string) error {
	delete(m.Data, key)
	return nil
}

var (
	t0      = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	taoyuan = airport.Airport{ICAO: "RCTP", Lat: 25.0797, Lon: 121.2342, Timezone: "Asia/Taipei", Kind: airport.KindResolved}
)

func newTestStore(st store.StateStore, maxAge time.Duration, now time.Time) *Store {
	s := NewStore(st, maxAge)
	s.now = func() time.Time { return now }
	return s
}

func airborneRecord() *Record {
	return &Record{
		ID:            "6f1c3b52-8a0e-4a57-9d1e-3c2f4a5b6c7d",
		FlightStarted: true,
		StartedAt:     t0,
		Departure:     taoyuan,
		Pilot:         "EVA123",
		AircraftType:  "A321",
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	st := store.NewSQLiteStore(d)
	defer st.Close()

	s := newTestStore(st, 0, t0.Add(time.Minute))
	ctx := context.Background()

	rec := airborneRecord()
	require.NoError(t, s.Save(ctx, rec))
	assert.Equal(t, CurrentVersion, rec.Version)
	assert.Equal(t, t0.Add(time.Minute), rec.SavedAt)

	loaded, ok := s.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, rec, loaded)
}

func TestSave_Overwrites(t *testing.T) {
	ms := &MockStore{}
	s := newTestStore(ms, 0, t0)
	ctx := context.Background()

	first := airborneRecord()
	require.NoError(t, s.Save(ctx, first))

	second := airborneRecord()
	second.Departure = airport.Manual("rcss")
	second.Pilot = "CAL456"
	require.NoError(t, s.Save(ctx, second))

	loaded, ok := s.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "CAL456", loaded.Pilot)
	assert.Equal(t, airport.Airport{ICAO: "RCSS", Kind: airport.KindManual}, loaded.Departure)
}

func TestSave_Error(t *testing.T) {
	ms := &MockStore{SetErr: errors.New("disk full")}
	s := newTestStore(ms, 0, t0)
	err := s.Save(context.Background(), airborneRecord())
	assert.ErrorContains(t, err, "disk full")
}

func TestLoad_Discard(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		maxAge time.Duration
	}{
		{"Empty value", "", 0},
		{"Garbage", "{not json", 0},
		{"JSON array", "[1,2,3]", 0},
		{"Unknown shape", `{"foo":"bar"}`, 0},
		{"Future version", `{"version":3,"flight_started":true,"started_at":"2026-05-04T09:30:00Z"}`, 0},
		{"Version 1 tag", `{"version":1,"flight_started":true,"started_at":"2026-05-04T09:30:00Z"}`, 0},
		{"Not started", `{"version":2,"flight_started":false,"started_at":"2026-05-04T09:30:00Z"}`, 0},
		{"Ground contact", `{"version":2,"flight_started":true,"ground_contact":true,"started_at":"2026-05-04T09:30:00Z"}`, 0},
		{"Zero start time", `{"version":2,"flight_started":true}`, 0},
		{"Too old", `{"version":2,"flight_started":true,"started_at":"2026-05-04T09:30:00Z","saved_at":"2026-05-04T09:30:00Z"}`, time.Hour},
		{"Start in the future", `{"version":2,"flight_started":true,"started_at":"2026-05-04T12:30:00Z"}`, 0},
		{"Legacy not started", `{"flightStarted":false,"flightStartTime":null}`, 0},
		{"Legacy landed", `{"flightStarted":true,"flightStartTime":1760000000000,"firstGroundContact":true}`, 0},
		{"Legacy no start", `{"flightStarted":true,"flightStartTime":null}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &MockStore{Data: map[string]string{Key: tt.stored}}
			s := newTestStore(ms, tt.maxAge, t0.Add(2*time.Hour))

			rec, ok := s.Load(context.Background())
			assert.False(t, ok)
			assert.Nil(t, rec)
		})
	}
}

func TestLoad_Absent(t *testing.T) {
	s := newTestStore(&MockStore{}, 0, t0)
	_, ok := s.Load(context.Background())
	assert.False(t, ok)
}

func TestLoad_WithinMaxAge(t *testing.T) {
	ms := &MockStore{}
	ctx := context.Background()
	require.NoError(t, newTestStore(ms, 0, t0).Save(ctx, airborneRecord()))

	_, ok := newTestStore(ms, time.Hour, t0.Add(59*time.Minute)).Load(ctx)
	assert.True(t, ok)
	_, ok = newTestStore(ms, time.Hour, t0.Add(61*time.Minute)).Load(ctx)
	assert.False(t, ok)
}

func TestLoad_LegacyUpgrade(t *testing.T) {
	blob := `{
		"flightStarted": true,
		"flightStartTime": 1760000000000,
		"departureICAO": "RCTP",
		"callsign": "EVA123",
		"aircraft": "A321",
		"firstGroundContact": false,
		"departureAirportData": {"icao": "RCTP", "lat": 25.0797, "lon": 121.2342, "tz": "Asia/Taipei"},
		"timestamp": 1760000060000
	}`
	ms := &MockStore{Data: map[string]string{Key: blob}}
	s := newTestStore(ms, 0, t0)

	rec, ok := s.Load(context.Background())
	require.True(t, ok)

	assert.Equal(t, CurrentVersion, rec.Version)
	assert.NotEmpty(t, rec.ID)
	assert.True(t, rec.StartedAt.Equal(time.UnixMilli(1760000000000)))
	assert.True(t, rec.SavedAt.Equal(time.UnixMilli(1760000060000)))
	assert.Equal(t, taoyuan, rec.Departure)
	assert.Equal(t, "EVA123", rec.Pilot)
	assert.Equal(t, "A321", rec.AircraftType)
}

func TestLegacyDeparture(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want airport.Airport
	}{
		{
			name: "Unknown departure",
			blob: `{"flightStarted":true,"flightStartTime":1,"departureICAO":"UNKNOWN","departureAirportData":{"icao":"UNKNOWN"}}`,
			want: airport.Unresolved,
		},
		{
			name: "Manual entry",
			blob: `{"flightStarted":true,"flightStartTime":1,"departureICAO":"RCSS","departureAirportData":{"icao":"UNKNOWN"}}`,
			want: airport.Airport{ICAO: "RCSS", Kind: airport.KindManual},
		},
		{
			name: "Resolved without timezone",
			blob: `{"flightStarted":true,"flightStartTime":1,"departureICAO":"RCSS","departureAirportData":{"icao":"RCSS","lat":25.0694,"lon":121.5524}}`,
			want: airport.Airport{ICAO: "RCSS", Lat: 25.0694, Lon: 121.5524, Kind: airport.KindResolved},
		},
		{
			name: "Older script without airport data",
			blob: `{"flightStarted":true,"flightStartTime":1,"departureICAO":"RCSS"}`,
			want: airport.Airport{ICAO: "RCSS", Kind: airport.KindManual},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode([]byte(tt.blob))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Departure)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"version":7}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Decode([]byte(`nope`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	rec := airborneRecord()
	rec.SavedAt = t0
	assert.NoError(t, rec.Validate(t0.Add(48*time.Hour), 0))
	assert.ErrorIs(t, rec.Validate(t0.Add(48*time.Hour), 24*time.Hour), ErrStale)

	assert.ErrorIs(t, rec.Validate(rec.StartedAt.Add(-time.Minute), 0), ErrFutureStart)

	rec.StartedAt = time.Time{}
	assert.ErrorIs(t, rec.Validate(t0, 0), ErrNoStartTime)
}

func TestClear(t *testing.T) {
	ms := &MockStore{}
	s := newTestStore(ms, 0, t0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, airborneRecord()))
	require.NoError(t, s.Clear(ctx))

	_, ok := s.Load(ctx)
	assert.False(t, ok)
	assert.NotContains(t, ms.Data, Key)

	// Clearing twice is fine.
	assert.NoError(t, s.Clear(ctx))
}
