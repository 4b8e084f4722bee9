package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/scraper"
	"github.com/sirupsen/logrus"
)

// AdapterFactory builds the adapter for one platform. seed fixes the pace
// profile: every leg of one run gets the same seed so the run has a single
// timing fingerprint. Returning nil means the platform is unsupported.
type AdapterFactory func(platform models.Platform, seed int64) scraper.Adapter

// Orchestrator runs platform legs for one competitor scrape, isolating
// per-platform failures and aggregating output. Platforms run strictly one
// at a time: legs do not share sessions and sequential execution bounds
// resource usage.
type Orchestrator struct {
	factory    AdapterFactory
	limits     scraper.Limits
	legTimeout time.Duration

	mu      sync.RWMutex
	metrics Metrics
}

// Metrics summarizes recent runs for the /metrics endpoint.
type Metrics struct {
	TotalItems      int                     `json:"total_items"`
	LastRun         time.Time               `json:"last_run"`
	LastRunDuration string                  `json:"last_run_duration"`
	SourceMetrics   map[models.Platform]int `json:"source_metrics"`
	ErrorCount      int                     `json:"error_count"`
}

// New creates an orchestrator. legTimeout is the overall deadline applied to
// each platform leg.
func New(factory AdapterFactory, limits scraper.Limits, legTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		factory:    factory,
		limits:     limits,
		legTimeout: legTimeout,
		metrics: Metrics{
			SourceMetrics: make(map[models.Platform]int),
		},
	}
}

// Run executes every enabled binding in order. At least one successful
// platform makes the run a success; failures are recorded as warnings in
// attempt order. All platforms failing yields success=false with a
// descriptive error.
func (o *Orchestrator) Run(ctx context.Context, bindings []models.PlatformBinding) *models.ScrapeRunResult {
	start := time.Now()
	result := &models.ScrapeRunResult{}
	attempted := 0
	seed := time.Now().UnixNano()

	for _, binding := range bindings {
		if !binding.Enabled {
			logrus.Debugf("Skipping disabled binding for %s", binding.Platform)
			continue
		}
		attempted++

		items, err := o.runLeg(ctx, binding, seed)
		if len(items) > 0 {
			result.Items = append(result.Items, items...)
			o.recordSource(binding.Platform, len(items))
		}
		if err != nil {
			logrus.Errorf("Platform leg %s failed: %v", binding.Platform, err)
			result.Warnings = append(result.Warnings, models.Warning{
				Platform: binding.Platform,
				Message:  err.Error(),
			})
		} else {
			logrus.Infof("Platform leg %s returned %d items", binding.Platform, len(items))
		}
	}

	result.Success = len(result.Items) > 0
	if !result.Success {
		if attempted == 0 {
			result.Err = "no enabled platform bindings to scrape"
		} else {
			result.Err = fmt.Sprintf("all %d platform legs failed", attempted)
		}
	}

	o.finishRun(result, time.Since(start))
	return result
}

// runLeg invokes one adapter under its deadline, converting panics into
// recorded failures so one platform can never take down the run.
func (o *Orchestrator) runLeg(ctx context.Context, binding models.PlatformBinding, seed int64) (items []models.ScrapedItem, err error) {
	adapter := o.factory(binding.Platform, seed)
	if adapter == nil {
		return nil, fmt.Errorf("no adapter for platform %s", binding.Platform)
	}

	legCtx, cancel := context.WithTimeout(ctx, o.legTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("adapter for %s panicked: %v", binding.Platform, r)
		}
	}()

	return adapter.Scrape(legCtx, binding.Target, o.limits)
}

func (o *Orchestrator) recordSource(platform models.Platform, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics.SourceMetrics[platform] += count
}

func (o *Orchestrator) finishRun(result *models.ScrapeRunResult, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics.TotalItems = len(result.Items)
	o.metrics.LastRun = time.Now()
	o.metrics.LastRunDuration = duration.String()
	o.metrics.ErrorCount = len(result.Warnings)
}

// GetMetrics returns current metrics as JSON.
func (o *Orchestrator) GetMetrics() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	data, _ := json.MarshalIndent(o.metrics, "", "  ")
	return string(data)
}
