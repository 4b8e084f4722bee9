package scraper

import (
	"context"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/session"
	"golang.org/x/time/rate"
)

// Adapter is the contract every platform scraper implements.
type Adapter interface {
	Name() models.Platform
	Scrape(ctx context.Context, target string, limits Limits) ([]models.ScrapedItem, error)
}

// Credentials holds one platform's login. Always injected from
// configuration, never embedded in source.
type Credentials struct {
	Username string
	Password string
}

// Options wires an adapter to its collaborators. BaseURL is overridable so
// tests can point adapters at local servers.
type Options struct {
	BaseURL     string
	Credentials Credentials
	Sessions    *session.Manager
	Policy      PacePolicy
	Limiter     *rate.Limiter
}

// discovered is one item summary revealed during list discovery, with the
// platform-specific reference needed for a later detail fetch.
type discovered struct {
	ref       string
	truncated bool
	item      models.ScrapedItem
}

// platformOps is the per-platform capability set the shared leg runner is
// polymorphic over. Each method corresponds to one state of the adapter
// state machine.
type platformOps interface {
	name() models.Platform

	// requiresLogin reports whether this platform needs an authenticated
	// session at all.
	requiresLogin() bool
	// sessionMarker names the cookie that proves an authenticated session.
	sessionMarker() string
	// probeSession checks whether the restored session is still valid by
	// hitting a known authenticated endpoint.
	probeSession(ctx context.Context, c *fetchClient) (bool, error)
	// login submits credentials. The leg verifies the marker cookie and
	// persists the fresh session afterwards.
	login(ctx context.Context, c *fetchClient) error

	// discoverStep reveals the next slice of the list (one scroll/paginate
	// step) and returns the summaries currently visible. done=true means the
	// platform signaled the end of the list.
	discoverStep(ctx context.Context, c *fetchClient, target string, step int) (batch []discovered, done bool, err error)

	// hasDetail reports whether items need a per-item detail fetch.
	hasDetail() bool
	// fetchDetail loads the full item: expanded text and nested comments,
	// bounded by limits.
	fetchDetail(ctx context.Context, c *fetchClient, d discovered, limits Limits) (models.ScrapedItem, error)
}

// NewAdapter constructs the adapter for a platform. Unknown platforms return
// nil; callers validate platforms before dispatch.
func NewAdapter(platform models.Platform, opts Options) Adapter {
	switch platform {
	case models.PlatformFeedA:
		return NewFeedA(opts)
	case models.PlatformFeedB:
		return NewFeedB(opts)
	case models.PlatformWebsite:
		return NewWebsite(opts)
	case models.PlatformMaps:
		return NewMaps(opts)
	case models.PlatformAppStore:
		return NewAppStore(opts)
	default:
		return nil
	}
}
