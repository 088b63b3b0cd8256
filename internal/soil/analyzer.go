package soil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultSourceTimeout bounds each outbound source call.
const defaultSourceTimeout = 30 * time.Second

// Analyzer coordinates the three sources and builds the final result.
// Analyze never returns an error and never panics through its boundary;
// failures only degrade the result's quality.
type Analyzer struct {
	weather     WeatherSource
	atmospheric AtmosphericSource
	soilProps   SoilPropertySource
	timeout     time.Duration
}

// NewAnalyzer creates an Analyzer. timeout bounds each source call
// independently; zero or negative selects the default.
func NewAnalyzer(w WeatherSource, a AtmosphericSource, sp SoilPropertySource, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &Analyzer{
		weather:     w,
		atmospheric: a,
		soilProps:   sp,
		timeout:     timeout,
	}
}

// Analyze runs a full analysis for the given point. Invalid coordinates are
// rejected before any network call. The three source calls run concurrently,
// each on a timeout detached from the caller's cancellation; cancelling ctx
// abandons the wait while in-flight calls finish on their own timeouts.
func (a *Analyzer) Analyze(ctx context.Context, lat, lon float64) (res AnalysisResult) {
	coord := Coordinate{Latitude: lat, Longitude: lon}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("analysis panicked",
				zap.String("coordinate", coord.Key()),
				zap.Any("panic", r))
			res = errorResult(coord, fmt.Sprintf("internal fault: %v", r))
		}
	}()

	if err := coord.Validate(); err != nil {
		zap.L().Warn("rejecting analysis for invalid coordinate",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err))
		return errorResult(coord, err.Error())
	}

	var (
		weatherRes     WeatherResult
		atmosphericRes AtmosphericResult
		soilRes        SoilResult
	)

	// Each goroutine owns exactly one result slot, so no locking is needed.
	// The base context keeps caller values but drops caller cancellation:
	// the only deadline a source call sees is its own timeout.
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer recoverSource("weather", coord)
		cctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		obs, ok := a.weather.Current(cctx, coord)
		weatherRes = WeatherResult{Name: a.weather.Name(), Observation: obs, OK: ok}
	}()

	go func() {
		defer wg.Done()
		defer recoverSource("atmospheric", coord)
		cctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		sum, ok := a.atmospheric.Recent(cctx, coord)
		atmosphericRes = AtmosphericResult{Name: a.atmospheric.Name(), Summary: sum, OK: ok}
	}()

	go func() {
		defer wg.Done()
		defer recoverSource("soil", coord)
		cctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		sample, ok := a.soilProps.Properties(cctx, coord)
		soilRes = SoilResult{Name: a.soilProps.Name(), Sample: sample, OK: ok}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Abandon the wait; the source goroutines complete on their own.
		zap.L().Warn("analysis abandoned by caller",
			zap.String("coordinate", coord.Key()),
			zap.Error(ctx.Err()))
		return errorResult(coord, ctx.Err().Error())
	}

	res = BuildProfile(weatherRes, atmosphericRes, soilRes)
	res.Coordinate = coord
	res.Timestamp = time.Now().UTC()
	if res.Quality == QualityInsufficient && res.Error == "" {
		res.Error = "all sources unavailable"
	}
	return res
}

// recoverSource demotes a panicking source goroutine to a failed fetch.
func recoverSource(name string, coord Coordinate) {
	if r := recover(); r != nil {
		zap.L().Error("source panicked",
			zap.String("source", name),
			zap.String("coordinate", coord.Key()),
			zap.Any("panic", r))
	}
}

// errorResult is the well-formed worst case: an insufficient-quality result
// carrying the fault description, with coordinate and timestamp always set.
func errorResult(coord Coordinate, msg string) AnalysisResult {
	res := BuildProfile(WeatherResult{}, AtmosphericResult{}, SoilResult{})
	res.Coordinate = coord
	res.Timestamp = time.Now().UTC()
	res.Error = msg
	return res
}
