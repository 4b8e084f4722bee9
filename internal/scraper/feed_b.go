package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/pacing"
)

// feedB scrapes the second social feed: offset-paginated, engagement
// counters come back as display strings ("1.2K") and replies live on a
// separate endpoint.

const feedBSessionCookie = "fb_auth"

type feedBOps struct {
	opts Options
}

// NewFeedB creates the social-feed-B adapter.
func NewFeedB(opts Options) Adapter {
	return newLeg(&feedBOps{opts: opts}, opts)
}

func (f *feedBOps) name() models.Platform { return models.PlatformFeedB }
func (f *feedBOps) requiresLogin() bool   { return true }
func (f *feedBOps) sessionMarker() string { return feedBSessionCookie }
func (f *feedBOps) hasDetail() bool       { return true }

func (f *feedBOps) probeSession(ctx context.Context, c *fetchClient) (bool, error) {
	status, _, err := c.probe(ctx, "/account/home")
	if err != nil {
		return false, err
	}
	// An expired session redirects to the login page, which still answers
	// 200, so the marker cookie is the real signal.
	return status == 200 && c.hasCookie(feedBSessionCookie), nil
}

func (f *feedBOps) login(ctx context.Context, c *fetchClient) error {
	creds := f.opts.Credentials
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("missing credentials")
	}

	for range creds.Username + creds.Password {
		if err := c.pause(ctx, pacing.ActionTypeChar); err != nil {
			return err
		}
	}

	resp, err := c.postForm(ctx, "/session/new", map[string]string{
		"login":    creds.Username,
		"passwd":   creds.Password,
		"remember": "1",
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode())
	}
	return nil
}

const feedBPageSize = 10

type feedBItem struct {
	ID    string `json:"id"`
	User  string `json:"user"`
	Body  string `json:"body"`
	TS    int64  `json:"ts"`
	Stats struct {
		Likes   string `json:"likes"`
		Replies string `json:"replies"`
		Reposts string `json:"reposts"`
	} `json:"stats"`
	Media string `json:"media"`
	More  bool   `json:"more"` // body truncated server-side
}

type feedBFeedPage struct {
	Items []feedBItem `json:"items"`
	Total int         `json:"total"`
}

func (f *feedBOps) discoverStep(ctx context.Context, c *fetchClient, target string, step int) ([]discovered, bool, error) {
	offset := step * feedBPageSize
	path := fmt.Sprintf("/feed/%s?offset=%d&count=%d", url.PathEscape(target), offset, feedBPageSize)
	resp, err := c.get(ctx, path, pacing.ActionScrollStep)
	if err != nil {
		return nil, false, err
	}

	var page feedBFeedPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, false, fmt.Errorf("failed to decode feed page: %w", err)
	}

	batch := make([]discovered, 0, len(page.Items))
	for _, it := range page.Items {
		raw := fmt.Sprintf("%d", it.TS)
		batch = append(batch, discovered{
			ref:       it.ID,
			truncated: it.More,
			item: models.ScrapedItem{
				Platform:  models.PlatformFeedB,
				Author:    it.User,
				Text:      it.Body,
				PostedRaw: raw,
				PostedAt:  NormalizeTimestamp(raw),
				Engagement: models.Engagement{
					LikesRaw:    it.Stats.Likes,
					Likes:       ParseCount(it.Stats.Likes),
					CommentsRaw: it.Stats.Replies,
					Comments:    ParseCount(it.Stats.Replies),
					SharesRaw:   it.Stats.Reposts,
					Shares:      ParseCount(it.Stats.Reposts),
				},
				MediaURL: it.Media,
			},
		})
	}

	done := offset+len(page.Items) >= page.Total || len(page.Items) == 0
	return batch, done, nil
}

type feedBRepliesPage struct {
	Replies []struct {
		User string `json:"user"`
		Body string `json:"body"`
		TS   int64  `json:"ts"`
	} `json:"replies"`
	More bool `json:"more"`
}

func (f *feedBOps) fetchDetail(ctx context.Context, c *fetchClient, d discovered, limits Limits) (models.ScrapedItem, error) {
	item := d.item

	if d.truncated {
		resp, err := c.get(ctx, "/items/"+url.PathEscape(d.ref), pacing.ActionClick)
		if err != nil {
			return item, err
		}
		var full feedBItem
		if err := json.Unmarshal(resp.Body(), &full); err != nil {
			return item, fmt.Errorf("failed to decode item detail: %w", err)
		}
		if full.Body != "" {
			item.Text = full.Body
		}
	}

	for page := 0; page < limits.MaxCommentPages; page++ {
		if len(item.Comments) >= limits.MaxCommentsPerItem {
			break
		}
		path := fmt.Sprintf("/items/%s/replies?page=%d", url.PathEscape(d.ref), page)
		resp, err := c.get(ctx, path, pacing.ActionClick)
		if err != nil {
			break
		}
		var rp feedBRepliesPage
		if err := json.Unmarshal(resp.Body(), &rp); err != nil {
			break
		}
		if len(rp.Replies) == 0 {
			break
		}
		for _, r := range rp.Replies {
			if len(item.Comments) >= limits.MaxCommentsPerItem {
				break
			}
			item.Comments = append(item.Comments, models.Comment{
				Author: r.User,
				Text:   r.Body,
				Time:   NormalizeTimestamp(fmt.Sprintf("%d", r.TS)),
			})
		}
		if !rp.More {
			break
		}
	}

	return item, nil
}
