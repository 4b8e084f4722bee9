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

// website scrapes a review site over rendered HTML: paginated review lists,
// with a detail page behind a "read more" link for long reviews. No login.

type websiteOps struct {
	opts Options
}

// NewWebsite creates the web-site review adapter.
func NewWebsite(opts Options) Adapter {
	return newLeg(&websiteOps{opts: opts}, opts)
}

func (w *websiteOps) name() models.Platform { return models.PlatformWebsite }
func (w *websiteOps) requiresLogin() bool   { return false }
func (w *websiteOps) sessionMarker() string { return "" }
func (w *websiteOps) hasDetail() bool       { return true }

func (w *websiteOps) probeSession(ctx context.Context, c *fetchClient) (bool, error) {
	return true, nil
}

func (w *websiteOps) login(ctx context.Context, c *fetchClient) error {
	return nil
}

// reviewCardSelectors are tried in order; sites occasionally rename the
// primary class during redesigns.
var reviewCardSelectors = []string{"div.review-card", "article.review"}

func (w *websiteOps) discoverStep(ctx context.Context, c *fetchClient, target string, step int) ([]discovered, bool, error) {
	path := fmt.Sprintf("/companies/%s/reviews?page=%d", url.PathEscape(target), step+1)
	resp, err := c.get(ctx, path, pacing.ActionScrollStep)
	if err != nil {
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse reviews page: %w", err)
	}

	var cards *goquery.Selection
	for _, sel := range reviewCardSelectors {
		cards = doc.Find(sel)
		if cards.Length() > 0 {
			break
		}
	}
	if cards == nil || cards.Length() == 0 {
		if step == 0 {
			return nil, false, &SelectorMissingError{Selector: reviewCardSelectors[0], Page: path}
		}
		// Ran off the end of the pagination.
		return nil, true, nil
	}

	var batch []discovered
	cards.Each(func(_ int, s *goquery.Selection) {
		author := strings.TrimSpace(s.Find(".review-author").Text())
		body := strings.TrimSpace(s.Find(".review-body").Text())
		date := strings.TrimSpace(s.Find(".review-date").Text())
		helpful := strings.TrimSpace(s.Find(".helpful-count").Text())
		moreHref, truncated := s.Find("a.read-more").Attr("href")

		if author == "" && body == "" {
			return
		}

		batch = append(batch, discovered{
			ref:       moreHref,
			truncated: truncated,
			item: models.ScrapedItem{
				Platform:  models.PlatformWebsite,
				Author:    author,
				Text:      body,
				PostedRaw: date,
				PostedAt:  NormalizeTimestamp(date),
				Engagement: models.Engagement{
					LikesRaw: helpful,
					Likes:    ParseCount(helpful),
				},
			},
		})
	})

	done := doc.Find("a.next-page").Length() == 0
	return batch, done, nil
}

func (w *websiteOps) fetchDetail(ctx context.Context, c *fetchClient, d discovered, limits Limits) (models.ScrapedItem, error) {
	item := d.item
	if !d.truncated || d.ref == "" {
		return item, nil
	}

	resp, err := c.get(ctx, d.ref, pacing.ActionClick)
	if err != nil {
		return item, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return item, fmt.Errorf("failed to parse review detail: %w", err)
	}

	full := strings.TrimSpace(doc.Find(".review-full-body").Text())
	if full == "" {
		full = strings.TrimSpace(doc.Find(".review-body").Text())
	}
	if full == "" {
		return item, &SelectorMissingError{Selector: ".review-full-body", Page: d.ref}
	}
	item.Text = full

	// Vendor responses ride along as a single nested comment.
	doc.Find(".vendor-response").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(item.Comments) >= limits.MaxCommentsPerItem {
			return false
		}
		item.Comments = append(item.Comments, models.Comment{
			Author: strings.TrimSpace(s.Find(".vendor-name").Text()),
			Text:   strings.TrimSpace(s.Find(".vendor-text").Text()),
			Time:   strings.TrimSpace(s.Find(".vendor-date").Text()),
		})
		return true
	})

	return item, nil
}
