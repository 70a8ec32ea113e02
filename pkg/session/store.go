package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"flightlogger/pkg/store"
)

// Store saves, loads and clears the single resumable session record.
type Store struct {
	st     store.StateStore
	maxAge time.Duration
	now    func() time.Time
}

// NewStore creates a session store. Records saved longer than maxAge ago are
// not offered for resumption; zero means no limit.
func NewStore(st store.StateStore, maxAge time.Duration) *Store {
	return &Store{
		st:     st,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Save overwrites the stored record. It stamps Version and SavedAt on rec.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	rec.Version = CurrentVersion
	rec.SavedAt = s.now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := s.st.SetState(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}
	slog.Debug("Session: saved", "id", rec.ID, "departure", rec.Departure.Code())
	return nil
}

// Load returns the stored record if one exists and can be resumed. Absent,
// unparsable or non-resumable records yield false, never an error.
func (s *Store) Load(ctx context.Context) (*Record, bool) {
	val, found := s.st.GetState(ctx, Key)
	if !found || val == "" {
		return nil, false
	}

	rec, err := Decode([]byte(val))
	if err != nil {
		slog.Warn("Session: discarding stored record", "error", err)
		return nil, false
	}
	if err := rec.Validate(s.now(), s.maxAge); err != nil {
		slog.Info("Session: stored record cannot be resumed", "id", rec.ID, "reason", err)
		return nil, false
	}
	return rec, true
}

// Clear removes the stored record.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.st.DeleteState(ctx, Key); err != nil {
		return fmt.Errorf("failed to clear session record: %w", err)
	}
	slog.Debug("Session: cleared")
	return nil
}
