package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/sirupsen/logrus"
)

// instruction is the fixed contract sent with every analysis request. The
// collaborator must reply with pure structured data matching the four
// category arrays, referencing only the supplied item ids.
const instruction = `Classify the provided items into exactly four categories:
"features", "complaints", "leads", "alternatives". Return a single JSON object
containing exactly those four keys, each an array with at most 5 entries.
Empty categories must be empty arrays, not omitted. Every evidence_ids entry
must be one of the supplied item ids; never invent ids. Leads carry username,
platform, excerpt and reason. Alternatives carry name, description and a
confidence between 0 and 1. Reply with the JSON object only, no prose.`

// SchemaViolationError means the collaborator's reply broke the output
// contract. Terminal for the analysis step; never coerced or partially
// accepted.
type SchemaViolationError struct {
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return "analysis schema violation: " + e.Reason
}

// requestItem is one serialized scraped item with its stable identifier,
// used later as an evidence reference.
type requestItem struct {
	ID         string            `json:"id"`
	Platform   models.Platform   `json:"platform"`
	Author     string            `json:"author"`
	Text       string            `json:"text"`
	PostedAt   string            `json:"posted_at,omitempty"`
	Engagement models.Engagement `json:"engagement"`
	Comments   []models.Comment  `json:"comments,omitempty"`
}

type analysisRequest struct {
	Instruction string        `json:"instruction"`
	Items       []requestItem `json:"items"`
}

// Gateway sends aggregated scrape data to the AI collaborator and validates
// the structured reply.
type Gateway struct {
	client   *resty.Client
	endpoint string
}

// NewGateway creates a gateway for the collaborator at endpoint. The
// analysis timeout is independent of scraping deadlines.
func NewGateway(endpoint, apiKey string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	client := resty.New().SetTimeout(timeout)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Gateway{client: client, endpoint: endpoint}
}

// ItemID returns the stable identifier assigned to the item at index i.
// These are the only values valid as evidence references.
func ItemID(item models.ScrapedItem, i int) string {
	return fmt.Sprintf("%s-%d", item.Platform, i)
}

// Analyze serializes the item set, invokes the collaborator and validates
// the reply against the insight schema. Any schema violation is terminal for
// this run.
func (g *Gateway) Analyze(ctx context.Context, items []models.ScrapedItem) (*models.InsightSet, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to analyze")
	}

	req := analysisRequest{Instruction: instruction, Items: make([]requestItem, 0, len(items))}
	validIDs := make(map[string]struct{}, len(items))
	for i, item := range items {
		id := ItemID(item, i)
		validIDs[id] = struct{}{}
		req.Items = append(req.Items, requestItem{
			ID:         id,
			Platform:   item.Platform,
			Author:     item.Author,
			Text:       item.Text,
			PostedAt:   item.PostedAt,
			Engagement: item.Engagement,
			Comments:   item.Comments,
		})
	}

	logrus.Infof("Sending %d items for analysis", len(items))

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode())
	}

	set, err := ParseInsightSet(resp.Body(), validIDs)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Analysis produced %d insights", set.Total())
	return set, nil
}

// ParseInsightSet decodes and validates a collaborator reply. The reply must
// be a JSON object with exactly the four category arrays, each present (even
// when empty), capped at models.MaxInsightsPerCategory, with every evidence
// reference drawn from validIDs.
func ParseInsightSet(body []byte, validIDs map[string]struct{}) (*models.InsightSet, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil, &SchemaViolationError{Reason: fmt.Sprintf("reply is not a JSON object: %v", err)}
	}

	required := []string{"features", "complaints", "leads", "alternatives"}
	for _, key := range required {
		raw, ok := shape[key]
		if !ok {
			return nil, &SchemaViolationError{Reason: fmt.Sprintf("missing category %q", key)}
		}
		// json.Unmarshal accepts null into a slice, so check for it explicitly.
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || string(bytes.TrimSpace(raw)) == "null" {
			return nil, &SchemaViolationError{Reason: fmt.Sprintf("category %q is not an array", key)}
		}
	}
	if len(shape) != len(required) {
		return nil, &SchemaViolationError{Reason: fmt.Sprintf("reply has %d keys, want exactly %d", len(shape), len(required))}
	}

	var set models.InsightSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, &SchemaViolationError{Reason: fmt.Sprintf("malformed category entries: %v", err)}
	}

	if err := validateSet(&set, validIDs); err != nil {
		return nil, err
	}
	return &set, nil
}

func validateSet(set *models.InsightSet, validIDs map[string]struct{}) error {
	check := func(category string, count int, evidence [][]string) error {
		if count > models.MaxInsightsPerCategory {
			return &SchemaViolationError{
				Reason: fmt.Sprintf("category %q has %d entries, max %d", category, count, models.MaxInsightsPerCategory),
			}
		}
		for _, refs := range evidence {
			for _, ref := range refs {
				if _, ok := validIDs[ref]; !ok {
					return &SchemaViolationError{
						Reason: fmt.Sprintf("category %q references unknown item %q", category, ref),
					}
				}
			}
		}
		return nil
	}

	var ev [][]string
	for _, f := range set.Features {
		ev = append(ev, f.EvidenceIDs)
	}
	if err := check("features", len(set.Features), ev); err != nil {
		return err
	}

	ev = ev[:0]
	for _, c := range set.Complaints {
		ev = append(ev, c.EvidenceIDs)
	}
	if err := check("complaints", len(set.Complaints), ev); err != nil {
		return err
	}

	ev = ev[:0]
	for _, l := range set.Leads {
		if l.Username == "" {
			return &SchemaViolationError{Reason: "lead entry missing username"}
		}
		ev = append(ev, l.EvidenceIDs)
	}
	if err := check("leads", len(set.Leads), ev); err != nil {
		return err
	}

	ev = ev[:0]
	for _, a := range set.Alternatives {
		if a.Name == "" {
			return &SchemaViolationError{Reason: "alternative entry missing name"}
		}
		if a.Confidence < 0 || a.Confidence > 1 {
			return &SchemaViolationError{Reason: fmt.Sprintf("alternative %q confidence %v out of range", a.Name, a.Confidence)}
		}
		ev = append(ev, a.EvidenceIDs)
	}
	return check("alternatives", len(set.Alternatives), ev)
}
