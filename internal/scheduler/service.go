package scheduler

import (
	"context"

	"github.com/rivalscope/rivalscope/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Rescraper re-runs the pipeline for all registered competitors.
type Rescraper interface {
	RescrapeAll(ctx context.Context)
}

// Service schedules periodic re-scrapes.
type Service struct {
	config    *config.Config
	rescraper Rescraper
	cron      *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(cfg *config.Config, rescraper Rescraper) *Service {
	return &Service{
		config:    cfg,
		rescraper: rescraper,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled re-scraping.
func (s *Service) Start() error {
	var cronExpression string

	switch s.config.RescrapeSchedule {
	case "daily":
		// Run daily at 6 AM UTC
		cronExpression = "0 0 6 * * *"
	case "weekly":
		// Run weekly on Monday at 6 AM UTC
		cronExpression = "0 0 6 * * MON"
	default:
		cronExpression = "0 0 6 * * MON"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled re-scrape run")
		s.rescraper.RescrapeAll(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s re-scrape schedule", s.config.RescrapeSchedule)
	return nil
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
