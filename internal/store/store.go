// Package store keeps the last known-good result set and serialises
// refreshes of it.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/pkg/models"
)

// ErrRefreshInProgress is returned when a refresh is requested while
// another one is running
var ErrRefreshInProgress = errors.New("refresh already in progress")

// RunFunc produces a fresh result set
type RunFunc func(ctx context.Context, limit int) ([]*models.VehicleRecord, error)

// Snapshot is a consistent view of the store
type Snapshot struct {
	Records   []*models.VehicleRecord `json:"data"`
	UpdatedAt time.Time               `json:"updated_at"`
	LastError string                  `json:"last_error,omitempty"`
	Running   bool                    `json:"running"`
}

// Store is the single writer of the result set. Readers get copies.
type Store struct {
	run RunFunc

	refresh sync.Mutex // held for the duration of a refresh

	mu        sync.RWMutex
	records   []*models.VehicleRecord
	updatedAt time.Time
	lastError string
	running   bool
}

// New creates an empty store refreshed by run
func New(run RunFunc) *Store {
	return &Store{run: run, records: []*models.VehicleRecord{}}
}

// Refresh runs the pipeline and replaces the result set on success. On
// failure the previous set is kept and the error is remembered. A refresh
// requested while another is running fails fast with ErrRefreshInProgress.
func (s *Store) Refresh(ctx context.Context, limit int) ([]*models.VehicleRecord, error) {
	if !s.refresh.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.refresh.Unlock()

	s.setRunning(true)
	defer s.setRunning(false)

	start := time.Now()
	records, err := s.run(ctx, limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastError = err.Error()
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Refresh failed, keeping last good data")
		return nil, err
	}
	if records == nil {
		records = []*models.VehicleRecord{}
	}
	s.records = clone(records)
	s.updatedAt = time.Now()
	s.lastError = ""

	log.Info().Int("count", len(records)).Dur("elapsed", time.Since(start)).Msg("Refresh completed")
	return clone(records), nil
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Records:   clone(s.records),
		UpdatedAt: s.updatedAt,
		LastError: s.lastError,
		Running:   s.running,
	}
}

// Replace installs records directly, e.g. from a previous export
func (s *Store) Replace(records []*models.VehicleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = clone(records)
	s.updatedAt = time.Now()
	s.lastError = ""
}

func (s *Store) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func clone(in []*models.VehicleRecord) []*models.VehicleRecord {
	out := make([]*models.VehicleRecord, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, r.Clone())
		}
	}
	return out
}
