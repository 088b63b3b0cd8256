package store

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/croptrace/soil-analysis/internal/soil"
)

var (
	// ErrNotFound is returned when no analysis is stored for a coordinate.
	ErrNotFound = eris.New("no analysis data for coordinate")
)

// resultHistory holds a time-ordered list of analysis results for a coordinate.
type resultHistory struct {
	Results []soil.AnalysisResult
}

// MemoryStore is a concurrency-safe in-memory implementation of soil.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: coordinate key, value: history
	data map[string]*resultHistory

	// retention configuration
	maxHistory int           // max number of results per coordinate
	maxAge     time.Duration // optional max age for results
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*resultHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveResult appends a new result for a coordinate and enforces retention.
func (s *MemoryStore) SaveResult(_ context.Context, res soil.AnalysisResult) error {
	key := res.Coordinate.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &resultHistory{}
		s.data[key] = history
	}

	history.Results = append(history.Results, res)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Results) > s.maxHistory {
		over := len(history.Results) - s.maxHistory
		history.Results = history.Results[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Results); i++ {
			if !history.Results[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.Results) {
			history.Results = history.Results[i:]
		}
	}

	return nil
}

// GetLatest returns the most recent result for a coordinate.
func (s *MemoryStore) GetLatest(_ context.Context, c soil.Coordinate) (soil.AnalysisResult, error) {
	key := c.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Results) == 0 {
		return soil.AnalysisResult{}, ErrNotFound
	}
	return history.Results[len(history.Results)-1], nil
}

// GetRange returns all results for a coordinate between from and to (inclusive).
func (s *MemoryStore) GetRange(_ context.Context, c soil.Coordinate, from, to time.Time) ([]soil.AnalysisResult, error) {
	key := c.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Results) == 0 {
		return nil, ErrNotFound
	}

	var result []soil.AnalysisResult
	for _, res := range history.Results {
		if (res.Timestamp.Equal(from) || res.Timestamp.After(from)) &&
			(res.Timestamp.Equal(to) || res.Timestamp.Before(to)) {
			result = append(result, res)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
