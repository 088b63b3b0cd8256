package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/croptrace/soil-analysis/internal/soil"
)

func sampleResult(c soil.Coordinate, ts time.Time, q soil.DataQuality) soil.AnalysisResult {
	return soil.AnalysisResult{
		Coordinate: c,
		Conditions: soil.EnvironmentalConditions{
			Temperature: soil.Measurement{Value: 21.5, Valid: true},
			Humidity:    soil.Measurement{Value: 55, Valid: true},
		},
		Soil: soil.SoilProfile{
			Composition: soil.SoilComposition{ClayPct: 20, SandPct: 45, SiltPct: 35, Valid: true},
			PH:          soil.Measurement{Value: 6.5, Valid: true},
			Texture:     soil.TextureLoam,
		},
		Quality:   q,
		Sources:   []string{"openweathermap", "soilgrids"},
		Timestamp: ts,
	}
}

func TestMemoryStoreSaveAndGetLatest(t *testing.T) {
	s := NewMemoryStore(10, 0)
	ctx := context.Background()
	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		res := sampleResult(coord, base.Add(time.Duration(i)*time.Minute), soil.QualityHigh)
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	latest, err := s.GetLatest(ctx, coord)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if want := base.Add(2 * time.Minute); !latest.Timestamp.Equal(want) {
		t.Fatalf("latest timestamp = %v, want %v", latest.Timestamp, want)
	}
}

func TestMemoryStoreGetLatestNotFound(t *testing.T) {
	s := NewMemoryStore(10, 0)

	_, err := s.GetLatest(context.Background(), soil.Coordinate{Latitude: 1, Longitude: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSeparatesCoordinates(t *testing.T) {
	s := NewMemoryStore(10, 0)
	ctx := context.Background()
	first := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}
	second := soil.Coordinate{Latitude: 20.59, Longitude: 78.96}

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := s.SaveResult(ctx, sampleResult(first, ts, soil.QualityHigh)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	if _, err := s.GetLatest(ctx, second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for the other coordinate", err)
	}
}

func TestMemoryStoreRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	ctx := context.Background()
	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		res := sampleResult(coord, base.Add(time.Duration(i)*time.Hour), soil.QualityHigh)
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	results, err := s.GetRange(ctx, coord, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("retained %d results, want 2", len(results))
	}
	if want := base.Add(2 * time.Hour); !results[0].Timestamp.Equal(want) {
		t.Fatalf("oldest retained = %v, want %v", results[0].Timestamp, want)
	}
}

func TestMemoryStoreRetentionByAge(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}

	stale := sampleResult(coord, time.Now().UTC().Add(-2*time.Hour), soil.QualityMedium)
	fresh := sampleResult(coord, time.Now().UTC(), soil.QualityHigh)
	if err := s.SaveResult(ctx, stale); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.SaveResult(ctx, fresh); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	results, err := s.GetRange(ctx, coord, time.Now().Add(-24*time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("retained %d results, want only the fresh one", len(results))
	}
	if results[0].Quality != soil.QualityHigh {
		t.Fatalf("retained quality = %q, want the fresh result", results[0].Quality)
	}
}

func TestMemoryStoreGetRangeBounds(t *testing.T) {
	s := NewMemoryStore(10, 0)
	ctx := context.Background()
	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		res := sampleResult(coord, base.Add(time.Duration(i)*time.Hour), soil.QualityHigh)
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	// Bounds are inclusive on both ends.
	results, err := s.GetRange(ctx, coord, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if _, err := s.GetRange(ctx, coord, base.Add(5*time.Hour), base.Add(6*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for an empty window", err)
	}
}
