package models

import "time"

// Platform identifies one of the supported content platforms.
type Platform string

const (
	PlatformFeedA    Platform = "social-feed-a"
	PlatformFeedB    Platform = "social-feed-b"
	PlatformWebsite  Platform = "web-site"
	PlatformMaps     Platform = "map-listing"
	PlatformAppStore Platform = "app-store-listing"
)

// KnownPlatforms lists every platform an adapter exists for.
var KnownPlatforms = []Platform{
	PlatformFeedA,
	PlatformFeedB,
	PlatformWebsite,
	PlatformMaps,
	PlatformAppStore,
}

// Valid reports whether p names a supported platform.
func (p Platform) Valid() bool {
	for _, known := range KnownPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// Competitor is a tracked competitor owned by one user account.
type Competitor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PlatformBinding ties a competitor to one platform target.
type PlatformBinding struct {
	ID            string     `json:"id"`
	CompetitorID  string     `json:"competitor_id"`
	Platform      Platform   `json:"platform"`
	Target        string     `json:"target,omitempty"` // handle or URL, platform-specific
	Enabled       bool       `json:"enabled"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
}

// Comment is a nested comment under a scraped item.
type Comment struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Time   string `json:"time"`
}

// Engagement holds raw and parsed interaction counters for an item.
type Engagement struct {
	LikesRaw    string `json:"likes_raw,omitempty"`
	Likes       int    `json:"likes"`
	CommentsRaw string `json:"comments_raw,omitempty"`
	Comments    int    `json:"comments"`
	SharesRaw   string `json:"shares_raw,omitempty"`
	Shares      int    `json:"shares"`
}

// ScrapedItem is one normalized piece of content from a platform. It lives
// for exactly one pipeline pass: produced by an adapter, consumed by the
// analysis gateway, never stored verbatim.
type ScrapedItem struct {
	Platform   Platform   `json:"platform"`
	Author     string     `json:"author"`
	Text       string     `json:"text"`
	PostedRaw  string     `json:"posted_raw,omitempty"`
	PostedAt   string     `json:"posted_at,omitempty"` // normalized ISO date when parseable
	Engagement Engagement `json:"engagement"`
	MediaURL   string     `json:"media_url,omitempty"`
	Comments   []Comment  `json:"comments,omitempty"`
}

// Score is the relevance metric used to order adapter output. It is a
// downstream hint only, not a correctness requirement.
func (i ScrapedItem) Score() int {
	return i.Engagement.Likes + 2*i.Engagement.Comments + 3*i.Engagement.Shares
}

// Warning records one isolated platform failure inside an otherwise
// successful run.
type Warning struct {
	Platform Platform `json:"platform"`
	Message  string   `json:"message"`
}

// ScrapeRunResult aggregates the outcome of one orchestrator run. Partial
// success is first-class: Success is true whenever at least one platform
// produced items, with per-platform failures recorded in Warnings.
type ScrapeRunResult struct {
	Success  bool          `json:"success"`
	Items    []ScrapedItem `json:"items"`
	Warnings []Warning     `json:"warnings,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// FeatureInsight is one competitor capability extracted by analysis.
type FeatureInsight struct {
	Description string   `json:"description"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// ComplaintInsight is one recurring user complaint.
type ComplaintInsight struct {
	Description string   `json:"description"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// LeadInsight is one user who looks reachable as a sales lead.
type LeadInsight struct {
	Username    string   `json:"username"`
	Platform    string   `json:"platform"`
	Excerpt     string   `json:"excerpt"`
	Reason      string   `json:"reason"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// AlternativeInsight is one competing product mentioned by users.
type AlternativeInsight struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// InsightSet is the validated output of one analysis call. Every category is
// present (possibly empty) and capped at MaxInsightsPerCategory entries.
type InsightSet struct {
	Features     []FeatureInsight     `json:"features"`
	Complaints   []ComplaintInsight   `json:"complaints"`
	Leads        []LeadInsight        `json:"leads"`
	Alternatives []AlternativeInsight `json:"alternatives"`
}

// MaxInsightsPerCategory caps each InsightSet category.
const MaxInsightsPerCategory = 5

// Total returns the number of insights across all categories.
func (s *InsightSet) Total() int {
	return len(s.Features) + len(s.Complaints) + len(s.Leads) + len(s.Alternatives)
}
