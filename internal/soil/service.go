package soil

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Service combines the analyzer with a result store. It is the entry point
// the API handlers and the scheduler share.
type Service struct {
	analyzer *Analyzer
	store    Store
}

// NewService creates a new Service.
func NewService(analyzer *Analyzer, store Store) *Service {
	return &Service{
		analyzer: analyzer,
		store:    store,
	}
}

// AnalyzeAndStore runs a full analysis and persists the result. The analysis
// result is returned even when persisting fails, so callers can still serve it.
func (s *Service) AnalyzeAndStore(ctx context.Context, lat, lon float64) (AnalysisResult, error) {
	res := s.analyzer.Analyze(ctx, lat, lon)

	// An insufficient result carries no data worth keeping; do not overwrite
	// the last good result for the coordinate.
	if res.Quality == QualityInsufficient {
		zap.L().Warn("analysis yielded no usable data, skipping persist",
			zap.String("coordinate", res.Coordinate.Key()),
			zap.String("error", res.Error))
		return res, nil
	}

	if err := s.store.SaveResult(ctx, res); err != nil {
		zap.L().Error("failed to persist analysis",
			zap.String("coordinate", res.Coordinate.Key()),
			zap.Error(err))
		return res, eris.Wrap(err, "save analysis result")
	}
	return res, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(ctx context.Context, c Coordinate) (AnalysisResult, error) {
	return s.store.GetLatest(ctx, c)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, c Coordinate, from, to time.Time) ([]AnalysisResult, error) {
	return s.store.GetRange(ctx, c, from, to)
}
