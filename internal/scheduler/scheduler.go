package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/croptrace/soil-analysis/internal/soil"
)

// maxConcurrentSites bounds how many site analyses one monitor run performs
// at once.
const maxConcurrentSites = 4

// Scheduler periodically re-analyzes the configured monitoring sites.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *soil.Service
	sites     []soil.Coordinate
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. timeout bounds one full site analysis,
// retries included; zero or negative selects a generous default.
func New(sites []soil.Coordinate, interval, timeout time.Duration, service *soil.Service) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		sites:     sites,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.sites) == 0 {
		zap.L().Info("scheduler: no sites configured, nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// runOnce analyzes every configured site with bounded concurrency.
// Per-site failures are logged and never abort the batch.
func (s *Scheduler) runOnce() {
	zap.L().Info("scheduler: running site analysis job", zap.Int("sites", len(s.sites)))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentSites)

	for _, site := range s.sites {
		site := site
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			res, err := s.service.AnalyzeAndStore(ctx, site.Latitude, site.Longitude)
			if err != nil {
				zap.L().Warn("scheduler: persist failed",
					zap.String("site", site.Key()),
					zap.Error(err))
				return nil
			}

			zap.L().Info("scheduler: site analyzed",
				zap.String("site", site.Key()),
				zap.String("quality", string(res.Quality)))
			return nil
		})
	}

	_ = g.Wait()
	zap.L().Info("scheduler: completed site analysis job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
