package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/pacing"
)

// appstore scrapes an app-store listing's review pages. Public, no login,
// no per-review detail page; ratings land in the text body prefix so the
// analysis step sees them.

type appStoreOps struct {
	opts Options
}

// NewAppStore creates the app-store-listing review adapter.
func NewAppStore(opts Options) Adapter {
	return newLeg(&appStoreOps{opts: opts}, opts)
}

func (a *appStoreOps) name() models.Platform { return models.PlatformAppStore }
func (a *appStoreOps) requiresLogin() bool   { return false }
func (a *appStoreOps) sessionMarker() string { return "" }
func (a *appStoreOps) hasDetail() bool       { return false }

func (a *appStoreOps) probeSession(ctx context.Context, c *fetchClient) (bool, error) {
	return true, nil
}

func (a *appStoreOps) login(ctx context.Context, c *fetchClient) error {
	return nil
}

func (a *appStoreOps) discoverStep(ctx context.Context, c *fetchClient, target string, step int) ([]discovered, bool, error) {
	path := fmt.Sprintf("/apps/%s/reviews?page=%d", url.PathEscape(target), step+1)
	resp, err := c.get(ctx, path, pacing.ActionScrollStep)
	if err != nil {
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse app reviews: %w", err)
	}

	cells := doc.Find("div.app-review")
	if cells.Length() == 0 {
		if step == 0 {
			return nil, false, &SelectorMissingError{Selector: "div.app-review", Page: path}
		}
		return nil, true, nil
	}

	var batch []discovered
	cells.Each(func(_ int, s *goquery.Selection) {
		author := strings.TrimSpace(s.Find(".review-nickname").Text())
		title := strings.TrimSpace(s.Find(".review-title").Text())
		body := strings.TrimSpace(s.Find(".review-content").Text())
		date := strings.TrimSpace(s.Find(".review-date").Text())
		rating := strings.TrimSpace(s.Find(".review-rating").AttrOr("data-rating", ""))
		votes := strings.TrimSpace(s.Find(".review-votes").Text())

		if author == "" && body == "" {
			return
		}

		text := body
		if title != "" {
			text = title + ": " + body
		}
		if rating != "" {
			text = fmt.Sprintf("[%s/5] %s", rating, text)
		}

		batch = append(batch, discovered{
			item: models.ScrapedItem{
				Platform:  models.PlatformAppStore,
				Author:    author,
				Text:      text,
				PostedRaw: date,
				PostedAt:  NormalizeTimestamp(date),
				Engagement: models.Engagement{
					LikesRaw: votes,
					Likes:    ParseCount(votes),
				},
			},
		})
	})

	done := doc.Find("a.paginate-next").Length() == 0
	return batch, done, nil
}

func (a *appStoreOps) fetchDetail(ctx context.Context, c *fetchClient, d discovered, limits Limits) (models.ScrapedItem, error) {
	return d.item, nil
}
