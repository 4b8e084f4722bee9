package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rivalscope/rivalscope/internal/analysis"
	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCompetitorRepo mocks store.CompetitorRepository.
type MockCompetitorRepo struct {
	mock.Mock
}

func (m *MockCompetitorRepo) CreateCompetitor(ctx context.Context, userID, name string) (*models.Competitor, error) {
	args := m.Called(ctx, userID, name)
	if c := args.Get(0); c != nil {
		return c.(*models.Competitor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCompetitorRepo) RenameCompetitor(ctx context.Context, userID, competitorID, name string) (*models.Competitor, error) {
	args := m.Called(ctx, userID, competitorID, name)
	if c := args.Get(0); c != nil {
		return c.(*models.Competitor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCompetitorRepo) GetCompetitor(ctx context.Context, userID, competitorID string) (*models.Competitor, error) {
	args := m.Called(ctx, userID, competitorID)
	if c := args.Get(0); c != nil {
		return c.(*models.Competitor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCompetitorRepo) ListAllCompetitors(ctx context.Context) ([]models.Competitor, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.([]models.Competitor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCompetitorRepo) DeleteCompetitor(ctx context.Context, userID, competitorID string) error {
	args := m.Called(ctx, userID, competitorID)
	return args.Error(0)
}

func (m *MockCompetitorRepo) AddSources(ctx context.Context, competitorID string, bindings []models.PlatformBinding) ([]models.PlatformBinding, error) {
	args := m.Called(ctx, competitorID, bindings)
	if b := args.Get(0); b != nil {
		return b.([]models.PlatformBinding), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCompetitorRepo) ListSources(ctx context.Context, competitorID string) ([]models.PlatformBinding, error) {
	args := m.Called(ctx, competitorID)
	if b := args.Get(0); b != nil {
		return b.([]models.PlatformBinding), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCompetitorRepo) SetSourceEnabled(ctx context.Context, sourceID string, enabled bool) error {
	args := m.Called(ctx, sourceID, enabled)
	return args.Error(0)
}

func (m *MockCompetitorRepo) TouchSources(ctx context.Context, competitorID string, platforms []models.Platform, at time.Time) error {
	args := m.Called(ctx, competitorID, platforms, at)
	return args.Error(0)
}

// MockInsightRepo mocks store.InsightRepository.
type MockInsightRepo struct {
	mock.Mock
}

func (m *MockInsightRepo) PersistInsights(ctx context.Context, userID, competitorID string, set *models.InsightSet) error {
	args := m.Called(ctx, userID, competitorID, set)
	return args.Error(0)
}

// MockScraper mocks the orchestrator.
type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Run(ctx context.Context, bindings []models.PlatformBinding) *models.ScrapeRunResult {
	args := m.Called(ctx, bindings)
	return args.Get(0).(*models.ScrapeRunResult)
}

// MockAnalyzer mocks the analysis gateway.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, items []models.ScrapedItem) (*models.InsightSet, error) {
	args := m.Called(ctx, items)
	if s := args.Get(0); s != nil {
		return s.(*models.InsightSet), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier mocks the notification service.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendRunReport(report *notifications.RunReport) error {
	args := m.Called(report)
	return args.Error(0)
}

type fixtures struct {
	competitors *MockCompetitorRepo
	insights    *MockInsightRepo
	scraper     *MockScraper
	analyzer    *MockAnalyzer
	notifier    *MockNotifier
	svc         *Service
}

func newFixtures() *fixtures {
	f := &fixtures{
		competitors: new(MockCompetitorRepo),
		insights:    new(MockInsightRepo),
		scraper:     new(MockScraper),
		analyzer:    new(MockAnalyzer),
		notifier:    new(MockNotifier),
	}
	f.svc = New(f.competitors, f.insights, f.scraper, f.analyzer, f.notifier)
	return f
}

var (
	testCompetitor = &models.Competitor{ID: "comp-1", Name: "Acme Analytics", Slug: "acme-analytics", UserID: "user-1"}
	testBindings   = []models.PlatformBinding{
		{Platform: models.PlatformFeedA, Target: "acme", Enabled: true},
		{Platform: models.PlatformWebsite, Target: "acme", Enabled: true},
	}
)

func scrapedItems(n int) []models.ScrapedItem {
	items := make([]models.ScrapedItem, n)
	for i := range items {
		items[i] = models.ScrapedItem{Platform: models.PlatformWebsite, Author: "a", Text: "t"}
	}
	return items
}

func insightSet() *models.InsightSet {
	return &models.InsightSet{
		Features:     []models.FeatureInsight{{Description: "mobile dashboards", EvidenceIDs: []string{"web-site-0"}}},
		Complaints:   []models.ComplaintInsight{},
		Leads:        []models.LeadInsight{},
		Alternatives: []models.AlternativeInsight{},
	}
}

func TestAddCompetitorAndScrape_HappyPath(t *testing.T) {
	f := newFixtures()
	set := insightSet()

	f.competitors.On("CreateCompetitor", mock.Anything, "user-1", "Acme Analytics").Return(testCompetitor, nil)
	f.competitors.On("AddSources", mock.Anything, "comp-1", testBindings).Return(testBindings, nil)
	f.scraper.On("Run", mock.Anything, testBindings).Return(&models.ScrapeRunResult{
		Success: true,
		Items:   scrapedItems(5),
	})
	f.competitors.On("TouchSources", mock.Anything, "comp-1", mock.Anything, mock.Anything).Return(nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(set, nil)
	f.insights.On("PersistInsights", mock.Anything, "user-1", "comp-1", set).Return(nil)
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	result, err := f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme Analytics", testBindings)
	require.NoError(t, err)
	assert.Equal(t, testCompetitor, result.Competitor)
	assert.Equal(t, set, result.Analysis)
	assert.Empty(t, result.Warnings)

	f.competitors.AssertExpectations(t)
	f.insights.AssertExpectations(t)
	f.analyzer.AssertExpectations(t)
}

func TestAddCompetitorAndScrape_RejectsBadBindings(t *testing.T) {
	f := newFixtures()

	_, err := f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme", nil)
	assert.ErrorContains(t, err, "at least one platform binding")

	_, err = f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme", []models.PlatformBinding{
		{Platform: models.Platform("video-site"), Target: "acme"},
	})
	assert.ErrorContains(t, err, `unknown platform "video-site"`)

	f.competitors.AssertNotCalled(t, "CreateCompetitor", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddCompetitorAndScrape_AllLegsFailed(t *testing.T) {
	f := newFixtures()

	f.competitors.On("CreateCompetitor", mock.Anything, "user-1", "Acme Analytics").Return(testCompetitor, nil)
	f.competitors.On("AddSources", mock.Anything, "comp-1", testBindings).Return(testBindings, nil)
	f.scraper.On("Run", mock.Anything, testBindings).Return(&models.ScrapeRunResult{
		Success: false,
		Err:     "all 2 platform legs failed",
		Warnings: []models.Warning{
			{Platform: models.PlatformFeedA, Message: "login failed"},
			{Platform: models.PlatformWebsite, Message: "selector missing"},
		},
	})
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	result, err := f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme Analytics", testBindings)
	require.NoError(t, err, "registration must succeed even when scraping fails")
	assert.Equal(t, testCompetitor, result.Competitor)
	assert.Nil(t, result.Analysis)

	require.Len(t, result.Warnings, 3)
	assert.Equal(t, "social-feed-a: login failed", result.Warnings[0])
	assert.Equal(t, "web-site: selector missing", result.Warnings[1])
	assert.Contains(t, result.Warnings[2], "nothing was collected")

	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
	f.insights.AssertNotCalled(t, "PersistInsights", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddCompetitorAndScrape_AnalysisFailureSkipsPersistence(t *testing.T) {
	f := newFixtures()

	f.competitors.On("CreateCompetitor", mock.Anything, "user-1", "Acme Analytics").Return(testCompetitor, nil)
	f.competitors.On("AddSources", mock.Anything, "comp-1", testBindings).Return(testBindings, nil)
	f.scraper.On("Run", mock.Anything, testBindings).Return(&models.ScrapeRunResult{
		Success: true,
		Items:   scrapedItems(7),
	})
	f.competitors.On("TouchSources", mock.Anything, "comp-1", mock.Anything, mock.Anything).Return(nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).
		Return(nil, &analysis.SchemaViolationError{Reason: `missing category "leads"`})
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	result, err := f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme Analytics", testBindings)
	require.NoError(t, err)
	assert.Nil(t, result.Analysis)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "collected 7 items but analysis failed")

	// A rejected analysis must never produce a partial write.
	f.insights.AssertNotCalled(t, "PersistInsights", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddCompetitorAndScrape_PersistFailure(t *testing.T) {
	f := newFixtures()
	set := insightSet()

	f.competitors.On("CreateCompetitor", mock.Anything, "user-1", "Acme Analytics").Return(testCompetitor, nil)
	f.competitors.On("AddSources", mock.Anything, "comp-1", testBindings).Return(testBindings, nil)
	f.scraper.On("Run", mock.Anything, testBindings).Return(&models.ScrapeRunResult{
		Success: true,
		Items:   scrapedItems(3),
	})
	f.competitors.On("TouchSources", mock.Anything, "comp-1", mock.Anything, mock.Anything).Return(nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(set, nil)
	f.insights.On("PersistInsights", mock.Anything, "user-1", "comp-1", set).Return(errors.New("connection reset"))
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	result, err := f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme Analytics", testBindings)
	require.NoError(t, err)
	assert.Nil(t, result.Analysis)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "analysis succeeded but saving insights failed")
}

func TestAddCompetitorAndScrape_PartialScrapeStillAnalyzed(t *testing.T) {
	f := newFixtures()
	set := insightSet()

	f.competitors.On("CreateCompetitor", mock.Anything, "user-1", "Acme Analytics").Return(testCompetitor, nil)
	f.competitors.On("AddSources", mock.Anything, "comp-1", testBindings).Return(testBindings, nil)
	f.scraper.On("Run", mock.Anything, testBindings).Return(&models.ScrapeRunResult{
		Success:  true,
		Items:    scrapedItems(4),
		Warnings: []models.Warning{{Platform: models.PlatformFeedA, Message: "rate limited"}},
	})
	f.competitors.On("TouchSources", mock.Anything, "comp-1", mock.Anything, mock.Anything).Return(nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(set, nil)
	f.insights.On("PersistInsights", mock.Anything, "user-1", "comp-1", set).Return(nil)
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	result, err := f.svc.AddCompetitorAndScrape(context.Background(), "user-1", "Acme Analytics", testBindings)
	require.NoError(t, err)
	assert.Equal(t, set, result.Analysis, "partial scrape results still flow through analysis")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "social-feed-a: rate limited", result.Warnings[0])
}

func TestAddSourcesAndScrape_UnknownCompetitor(t *testing.T) {
	f := newFixtures()

	notFound := errors.New("competitor not found")
	f.competitors.On("GetCompetitor", mock.Anything, "user-1", "ghost").Return(nil, notFound)

	result, err := f.svc.AddSourcesAndScrape(context.Background(), "user-1", "ghost", testBindings)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, notFound)
	f.competitors.AssertNotCalled(t, "AddSources", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddSourcesAndScrape_ScrapesOnlyNewBindings(t *testing.T) {
	f := newFixtures()
	set := insightSet()
	added := []models.PlatformBinding{{Platform: models.PlatformMaps, Target: "acme-hq", Enabled: true}}

	f.competitors.On("GetCompetitor", mock.Anything, "user-1", "comp-1").Return(testCompetitor, nil)
	f.competitors.On("AddSources", mock.Anything, "comp-1", added).Return(added, nil)
	f.scraper.On("Run", mock.Anything, added).Return(&models.ScrapeRunResult{Success: true, Items: scrapedItems(2)})
	f.competitors.On("TouchSources", mock.Anything, "comp-1", mock.Anything, mock.Anything).Return(nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(set, nil)
	f.insights.On("PersistInsights", mock.Anything, "user-1", "comp-1", set).Return(nil)
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	result, err := f.svc.AddSourcesAndScrape(context.Background(), "user-1", "comp-1", added)
	require.NoError(t, err)
	assert.Equal(t, added, result.AddedSources)

	// Only the new bindings are scraped, not the existing ones.
	f.scraper.AssertCalled(t, "Run", mock.Anything, added)
}

func TestRescrapeAll_IsolatesFailures(t *testing.T) {
	f := newFixtures()
	set := insightSet()

	competitors := []models.Competitor{
		{ID: "comp-1", UserID: "user-1", Slug: "acme"},
		{ID: "comp-2", UserID: "user-2", Slug: "globex"},
	}
	f.competitors.On("ListAllCompetitors", mock.Anything).Return(competitors, nil)
	f.competitors.On("GetCompetitor", mock.Anything, "user-1", "comp-1").Return(nil, errors.New("db hiccup"))
	f.competitors.On("GetCompetitor", mock.Anything, "user-2", "comp-2").Return(&competitors[1], nil)
	f.competitors.On("ListSources", mock.Anything, "comp-2").Return(testBindings, nil)
	f.scraper.On("Run", mock.Anything, testBindings).Return(&models.ScrapeRunResult{Success: true, Items: scrapedItems(1)})
	f.competitors.On("TouchSources", mock.Anything, "comp-2", mock.Anything, mock.Anything).Return(nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(set, nil)
	f.insights.On("PersistInsights", mock.Anything, "user-2", "comp-2", set).Return(nil)
	f.notifier.On("SendRunReport", mock.Anything).Return(nil)

	f.svc.RescrapeAll(context.Background())

	// The second competitor still ran despite the first one failing.
	f.insights.AssertCalled(t, "PersistInsights", mock.Anything, "user-2", "comp-2", set)
}
