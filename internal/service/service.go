package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/notifications"
	"github.com/rivalscope/rivalscope/internal/store"
	"github.com/sirupsen/logrus"
)

// Scraper runs platform legs for a set of bindings. Implemented by the
// orchestrator.
type Scraper interface {
	Run(ctx context.Context, bindings []models.PlatformBinding) *models.ScrapeRunResult
}

// Analyzer turns an aggregated item set into validated insights.
// Implemented by the analysis gateway.
type Analyzer interface {
	Analyze(ctx context.Context, items []models.ScrapedItem) (*models.InsightSet, error)
}

// Service implements the caller-facing competitor operations. Registration
// always succeeds when the datastore writes succeed; scraping, analysis and
// persistence failures surface as human-readable warnings, never as request
// failures.
type Service struct {
	competitors store.CompetitorRepository
	insights    store.InsightRepository
	scraper     Scraper
	analyzer    Analyzer
	notifier    notifications.Notifier
}

// New wires the service. notifier may be nil.
func New(competitors store.CompetitorRepository, insights store.InsightRepository, scraper Scraper, analyzer Analyzer, notifier notifications.Notifier) *Service {
	return &Service{
		competitors: competitors,
		insights:    insights,
		scraper:     scraper,
		analyzer:    analyzer,
		notifier:    notifier,
	}
}

// CompetitorResult is the reply to AddCompetitorAndScrape.
type CompetitorResult struct {
	Competitor *models.Competitor       `json:"competitor"`
	Sources    []models.PlatformBinding `json:"sources"`
	Analysis   *models.InsightSet       `json:"analysis,omitempty"`
	Warnings   []string                 `json:"warnings,omitempty"`
}

// SourcesResult is the reply to AddSourcesAndScrape.
type SourcesResult struct {
	AddedSources []models.PlatformBinding `json:"added_sources"`
	Analysis     *models.InsightSet       `json:"analysis,omitempty"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

func validateBindings(bindings []models.PlatformBinding) error {
	if len(bindings) == 0 {
		return fmt.Errorf("at least one platform binding is required")
	}
	for _, b := range bindings {
		if !b.Platform.Valid() {
			return fmt.Errorf("unknown platform %q", b.Platform)
		}
	}
	return nil
}

// AddCompetitorAndScrape registers a competitor with its platform bindings
// and runs the full pipeline. The registration itself is the hard part of
// the contract: pipeline failures come back as warnings.
func (s *Service) AddCompetitorAndScrape(ctx context.Context, userID, name string, bindings []models.PlatformBinding) (*CompetitorResult, error) {
	if err := validateBindings(bindings); err != nil {
		return nil, err
	}

	competitor, err := s.competitors.CreateCompetitor(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	sources, err := s.competitors.AddSources(ctx, competitor.ID, bindings)
	if err != nil {
		return nil, err
	}

	analysis, warnings := s.runPipeline(ctx, userID, competitor, sources)

	return &CompetitorResult{
		Competitor: competitor,
		Sources:    sources,
		Analysis:   analysis,
		Warnings:   warnings,
	}, nil
}

// AddSourcesAndScrape adds bindings to an existing competitor and scrapes
// just the newly added platforms.
func (s *Service) AddSourcesAndScrape(ctx context.Context, userID, competitorID string, bindings []models.PlatformBinding) (*SourcesResult, error) {
	if err := validateBindings(bindings); err != nil {
		return nil, err
	}

	competitor, err := s.competitors.GetCompetitor(ctx, userID, competitorID)
	if err != nil {
		return nil, err
	}

	added, err := s.competitors.AddSources(ctx, competitorID, bindings)
	if err != nil {
		return nil, err
	}

	analysis, warnings := s.runPipeline(ctx, userID, competitor, added)

	return &SourcesResult{
		AddedSources: added,
		Analysis:     analysis,
		Warnings:     warnings,
	}, nil
}

// RescrapeCompetitor re-runs the pipeline over every enabled source,
// used by the scheduler for periodic refreshes.
func (s *Service) RescrapeCompetitor(ctx context.Context, userID, competitorID string) ([]string, error) {
	competitor, err := s.competitors.GetCompetitor(ctx, userID, competitorID)
	if err != nil {
		return nil, err
	}
	sources, err := s.competitors.ListSources(ctx, competitorID)
	if err != nil {
		return nil, err
	}
	_, warnings := s.runPipeline(ctx, userID, competitor, sources)
	return warnings, nil
}

// RescrapeAll refreshes every registered competitor. Failures are logged
// per competitor; one bad competitor never blocks the rest.
func (s *Service) RescrapeAll(ctx context.Context) {
	competitors, err := s.competitors.ListAllCompetitors(ctx)
	if err != nil {
		logrus.Errorf("Failed to list competitors for re-scrape: %v", err)
		return
	}
	logrus.Infof("Starting scheduled re-scrape of %d competitors", len(competitors))
	for _, c := range competitors {
		warnings, err := s.RescrapeCompetitor(ctx, c.UserID, c.ID)
		if err != nil {
			logrus.Errorf("Re-scrape of %s failed: %v", c.Slug, err)
			continue
		}
		if len(warnings) > 0 {
			logrus.Warnf("Re-scrape of %s finished with %d warnings", c.Slug, len(warnings))
		}
	}
}

// runPipeline scrapes, analyzes and persists, accumulating warnings. The
// warning wording keeps "nothing collected" distinguishable from "raw data
// collected but no insights yet".
func (s *Service) runPipeline(ctx context.Context, userID string, competitor *models.Competitor, bindings []models.PlatformBinding) (*models.InsightSet, []string) {
	var warnings []string

	run := s.scraper.Run(ctx, bindings)
	for _, w := range run.Warnings {
		warnings = append(warnings, fmt.Sprintf("%s: %s", w.Platform, w.Message))
	}

	if !run.Success {
		msg := "nothing was collected"
		if run.Err != "" {
			msg = fmt.Sprintf("nothing was collected: %s", run.Err)
		}
		warnings = append(warnings, msg)
		s.notify(competitor, run, nil, warnings)
		return nil, warnings
	}

	s.touchScraped(ctx, competitor.ID, run.Items)

	analysis, err := s.analyzer.Analyze(ctx, run.Items)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("collected %d items but analysis failed: %v", len(run.Items), err))
		s.notify(competitor, run, nil, warnings)
		return nil, warnings
	}

	if err := s.insights.PersistInsights(ctx, userID, competitor.ID, analysis); err != nil {
		warnings = append(warnings, fmt.Sprintf("analysis succeeded but saving insights failed: %v", err))
		s.notify(competitor, run, nil, warnings)
		return nil, warnings
	}

	s.notify(competitor, run, analysis, warnings)
	return analysis, warnings
}

// touchScraped stamps last_scraped_at on the platforms that produced items.
func (s *Service) touchScraped(ctx context.Context, competitorID string, items []models.ScrapedItem) {
	set := make(map[models.Platform]struct{})
	for _, item := range items {
		set[item.Platform] = struct{}{}
	}
	platforms := make([]models.Platform, 0, len(set))
	for p := range set {
		platforms = append(platforms, p)
	}
	if err := s.competitors.TouchSources(ctx, competitorID, platforms, time.Now()); err != nil {
		logrus.Warnf("Failed to update last_scraped_at for %s: %v", competitorID, err)
	}
}

func (s *Service) notify(competitor *models.Competitor, run *models.ScrapeRunResult, analysis *models.InsightSet, warnings []string) {
	if s.notifier == nil {
		return
	}
	report := &notifications.RunReport{
		Competitor:  competitor.Name,
		GeneratedAt: time.Now(),
		Items:       len(run.Items),
		Warnings:    warnings,
	}
	if analysis != nil {
		report.Insights = analysis.Total()
	}
	if err := s.notifier.SendRunReport(report); err != nil {
		logrus.Warnf("Failed to send run report: %v", err)
	}
}
