package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/croptrace/soil-analysis/internal/soil"
	"github.com/croptrace/soil-analysis/internal/store"
)

type staticWeather struct {
	obs soil.WeatherObservation
	ok  bool
}

func (s staticWeather) Name() string { return "openweathermap" }

func (s staticWeather) Current(context.Context, soil.Coordinate) (soil.WeatherObservation, bool) {
	return s.obs, s.ok
}

type staticAtmospheric struct {
	sum soil.AtmosphericSummary
	ok  bool
}

func (s staticAtmospheric) Name() string { return "nasa-power" }

func (s staticAtmospheric) Recent(context.Context, soil.Coordinate) (soil.AtmosphericSummary, bool) {
	return s.sum, s.ok
}

type staticSoil struct {
	sample soil.SoilSample
	ok     bool
}

func (s staticSoil) Name() string { return "soilgrids" }

func (s staticSoil) Properties(context.Context, soil.Coordinate) (soil.SoilSample, bool) {
	return s.sample, s.ok
}

func fl(v float64) *float64 { return &v }

// newTestApp wires the routes against static sources and an in-memory store.
func newTestApp(weatherOK, atmosphericOK, soilOK bool) (*fiber.App, *store.MemoryStore) {
	app := fiber.New()
	memStore := store.NewMemoryStore(10, 0)

	analyzer := soil.NewAnalyzer(
		staticWeather{obs: soil.WeatherObservation{TemperatureC: fl(21), HumidityPct: fl(55)}, ok: weatherOK},
		staticAtmospheric{sum: soil.AtmosphericSummary{TemperatureC: fl(18), HumidityPct: fl(70), PrecipMm: fl(3)}, ok: atmosphericOK},
		staticSoil{sample: soil.SoilSample{ClayPct: 20, SandPct: 45, SiltPct: 35, PH: 6.5, OrganicCarbon: 100}, ok: soilOK},
		time.Second,
	)
	RegisterRoutes(app, soil.NewService(analyzer, memStore))
	return app, memStore
}

func TestAnalysisEndpointValidation(t *testing.T) {
	app, _ := newTestApp(true, true, true)

	urls := []string{
		"/api/v1/soil/analysis",
		"/api/v1/soil/analysis?lat=12.97",
		"/api/v1/soil/analysis?lon=77.59",
		"/api/v1/soil/analysis?lat=abc&lon=77.59",
		"/api/v1/soil/analysis?lat=12.97&lon=xyz",
		"/api/v1/soil/analysis?lat=200&lon=0",
		"/api/v1/soil/analysis?lat=0&lon=-200",
	}

	for _, url := range urls {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test(%q): %v", url, err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %q: expected status %d, got %d", url, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestAnalysisEndpointReturnsResult(t *testing.T) {
	app, memStore := newTestApp(true, true, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/soil/analysis?lat=12.97&lon=77.59", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var result soil.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Quality != soil.QualityHigh {
		t.Fatalf("quality = %q, want %q", result.Quality, soil.QualityHigh)
	}
	if result.Coordinate.Latitude != 12.97 || result.Coordinate.Longitude != 77.59 {
		t.Fatalf("coordinate = %+v, want the requested point", result.Coordinate)
	}
	if len(result.Sources) != 3 {
		t.Fatalf("sources = %v, want 3 entries", result.Sources)
	}

	// The handler persists what it serves.
	stored, err := memStore.GetLatest(context.Background(), result.Coordinate)
	if err != nil {
		t.Fatalf("GetLatest after analysis: %v", err)
	}
	if stored.Quality != soil.QualityHigh {
		t.Fatalf("stored quality = %q, want %q", stored.Quality, soil.QualityHigh)
	}
}

func TestAnalysisEndpointDegradedResult(t *testing.T) {
	app, memStore := newTestApp(false, false, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/soil/analysis?lat=12.97&lon=77.59", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var result soil.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Quality != soil.QualityInsufficient {
		t.Fatalf("quality = %q, want %q", result.Quality, soil.QualityInsufficient)
	}
	if result.Error == "" {
		t.Fatal("expected an error description on the degraded result")
	}

	// Nothing usable, nothing persisted.
	if _, err := memStore.GetLatest(context.Background(), result.Coordinate); err == nil {
		t.Fatal("expected the degraded result to be skipped by the store")
	}
}

func TestLatestEndpointNotFound(t *testing.T) {
	app, _ := newTestApp(true, true, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/soil/latest?lat=12.97&lon=77.59", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestLatestEndpointReturnsStored(t *testing.T) {
	app, memStore := newTestApp(true, true, true)

	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}
	stored := soil.AnalysisResult{
		Coordinate: coord,
		Quality:    soil.QualityMedium,
		Timestamp:  time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := memStore.SaveResult(context.Background(), stored); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/soil/latest?lat=12.97&lon=77.59", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var result soil.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Quality != soil.QualityMedium {
		t.Fatalf("quality = %q, want %q", result.Quality, soil.QualityMedium)
	}
}

func TestHistoryEndpointValidation(t *testing.T) {
	app, _ := newTestApp(true, true, true)

	urls := []string{
		"/api/v1/soil/history?lat=12.97&lon=77.59",
		"/api/v1/soil/history?lat=12.97&lon=77.59&from=2026-08-01T00:00:00Z",
		"/api/v1/soil/history?lat=12.97&lon=77.59&from=yesterday&to=today",
		"/api/v1/soil/history?lat=12.97&lon=77.59&from=2026-08-02T00:00:00Z&to=2026-08-01T00:00:00Z",
	}

	for _, url := range urls {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test(%q): %v", url, err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %q: expected status %d, got %d", url, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestHistoryEndpointReturnsRange(t *testing.T) {
	app, memStore := newTestApp(true, true, true)

	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		res := soil.AnalysisResult{
			Coordinate: coord,
			Quality:    soil.QualityHigh,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := memStore.SaveResult(context.Background(), res); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	url := "/api/v1/soil/history?lat=12.97&lon=77.59&from=2026-08-01T00:00:00Z&to=2026-08-02T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Results []soil.AnalysisResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(body.Results))
	}
}

func TestHistoryEndpointAcceptsUnixTimes(t *testing.T) {
	app, memStore := newTestApp(true, true, true)

	coord := soil.Coordinate{Latitude: 12.97, Longitude: 77.59}
	ts := time.Unix(1780000000, 0).UTC()
	res := soil.AnalysisResult{Coordinate: coord, Quality: soil.QualityLow, Timestamp: ts}
	if err := memStore.SaveResult(context.Background(), res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	url := "/api/v1/soil/history?lat=12.97&lon=77.59&from=1779990000&to=1780010000"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestHistoryEndpointEmptyRange(t *testing.T) {
	app, _ := newTestApp(true, true, true)

	url := "/api/v1/soil/history?lat=12.97&lon=77.59&from=2026-08-01T00:00:00Z&to=2026-08-02T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
