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

// maps scrapes a map-listing's review stream: offset-paginated HTML with
// owner replies nested under each review. Everything needed is on the list
// page, so there is no detail phase.

const mapsPageSize = 20

type mapsOps struct {
	opts Options
}

// NewMaps creates the map-listing review adapter.
func NewMaps(opts Options) Adapter {
	return newLeg(&mapsOps{opts: opts}, opts)
}

func (m *mapsOps) name() models.Platform { return models.PlatformMaps }
func (m *mapsOps) requiresLogin() bool   { return false }
func (m *mapsOps) sessionMarker() string { return "" }
func (m *mapsOps) hasDetail() bool       { return false }

func (m *mapsOps) probeSession(ctx context.Context, c *fetchClient) (bool, error) {
	return true, nil
}

func (m *mapsOps) login(ctx context.Context, c *fetchClient) error {
	return nil
}

func (m *mapsOps) discoverStep(ctx context.Context, c *fetchClient, target string, step int) ([]discovered, bool, error) {
	path := fmt.Sprintf("/place/%s/reviews?start=%d", url.PathEscape(target), step*mapsPageSize)
	resp, err := c.get(ctx, path, pacing.ActionScrollStep)
	if err != nil {
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse place reviews: %w", err)
	}

	rows := doc.Find("div.place-review")
	if rows.Length() == 0 {
		if step == 0 {
			return nil, false, &SelectorMissingError{Selector: "div.place-review", Page: path}
		}
		return nil, true, nil
	}

	var batch []discovered
	rows.Each(func(_ int, s *goquery.Selection) {
		author := strings.TrimSpace(s.Find(".reviewer-name").Text())
		text := strings.TrimSpace(s.Find(".review-text").Text())
		date := strings.TrimSpace(s.Find(".review-when").Text())
		likes := strings.TrimSpace(s.Find(".review-likes").Text())

		if author == "" && text == "" {
			return
		}

		item := models.ScrapedItem{
			Platform:  models.PlatformMaps,
			Author:    author,
			Text:      text,
			PostedRaw: date,
			PostedAt:  NormalizeTimestamp(date),
			Engagement: models.Engagement{
				LikesRaw: likes,
				Likes:    ParseCount(likes),
			},
		}

		s.Find(".owner-reply").Each(func(_ int, r *goquery.Selection) {
			item.Comments = append(item.Comments, models.Comment{
				Author: strings.TrimSpace(r.Find(".owner-name").Text()),
				Text:   strings.TrimSpace(r.Find(".owner-text").Text()),
				Time:   strings.TrimSpace(r.Find(".owner-when").Text()),
			})
		})

		batch = append(batch, discovered{item: item})
	})

	done := rows.Length() < mapsPageSize
	return batch, done, nil
}

func (m *mapsOps) fetchDetail(ctx context.Context, c *fetchClient, d discovered, limits Limits) (models.ScrapedItem, error) {
	return d.item, nil
}
