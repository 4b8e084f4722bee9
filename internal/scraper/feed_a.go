package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/pacing"
)

// feedA scrapes the first social feed: cursor-paginated post API with
// truncated previews, per-post detail endpoints and paginated comments.

const feedASessionCookie = "fa_session"

type feedAOps struct {
	opts Options
}

// NewFeedA creates the social-feed-A adapter.
func NewFeedA(opts Options) Adapter {
	return newLeg(&feedAOps{opts: opts}, opts)
}

func (f *feedAOps) name() models.Platform { return models.PlatformFeedA }
func (f *feedAOps) requiresLogin() bool   { return true }
func (f *feedAOps) sessionMarker() string { return feedASessionCookie }
func (f *feedAOps) hasDetail() bool       { return true }

func (f *feedAOps) probeSession(ctx context.Context, c *fetchClient) (bool, error) {
	status, _, err := c.probe(ctx, "/api/me")
	if err != nil {
		return false, err
	}
	return status == 200, nil
}

func (f *feedAOps) login(ctx context.Context, c *fetchClient) error {
	creds := f.opts.Credentials
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("missing credentials")
	}

	// Per-character pacing while "typing" the login form.
	for range creds.Username + creds.Password {
		if err := c.pause(ctx, pacing.ActionTypeChar); err != nil {
			return err
		}
	}

	resp, err := c.postForm(ctx, "/login", map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode())
	}
	return nil
}

type feedAPost struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Likes     int    `json:"likes"`
	Comments  int    `json:"comments"`
	Shares    int    `json:"shares"`
	MediaURL  string `json:"media_url"`
	Truncated bool   `json:"truncated"`
}

type feedAPostsPage struct {
	Posts   []feedAPost `json:"posts"`
	HasMore bool        `json:"has_more"`
}

func (f *feedAOps) discoverStep(ctx context.Context, c *fetchClient, target string, step int) ([]discovered, bool, error) {
	path := fmt.Sprintf("/api/users/%s/posts?cursor=%d", url.PathEscape(target), step)
	resp, err := c.get(ctx, path, pacing.ActionScrollStep)
	if err != nil {
		return nil, false, err
	}

	var page feedAPostsPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, false, fmt.Errorf("failed to decode posts page: %w", err)
	}

	batch := make([]discovered, 0, len(page.Posts))
	for _, p := range page.Posts {
		batch = append(batch, discovered{
			ref:       p.ID,
			truncated: p.Truncated,
			item: models.ScrapedItem{
				Platform:  models.PlatformFeedA,
				Author:    p.Author,
				Text:      p.Text,
				PostedRaw: p.CreatedAt,
				PostedAt:  NormalizeTimestamp(p.CreatedAt),
				Engagement: models.Engagement{
					Likes:    p.Likes,
					Comments: p.Comments,
					Shares:   p.Shares,
				},
				MediaURL: p.MediaURL,
			},
		})
	}
	return batch, !page.HasMore, nil
}

type feedACommentsPage struct {
	Comments []struct {
		Author    string `json:"author"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"comments"`
	HasMore bool `json:"has_more"`
}

func (f *feedAOps) fetchDetail(ctx context.Context, c *fetchClient, d discovered, limits Limits) (models.ScrapedItem, error) {
	item := d.item

	if d.truncated {
		// "See more": the list API truncates long posts.
		resp, err := c.get(ctx, "/api/posts/"+url.PathEscape(d.ref), pacing.ActionClick)
		if err != nil {
			return item, err
		}
		var full feedAPost
		if err := json.Unmarshal(resp.Body(), &full); err != nil {
			return item, fmt.Errorf("failed to decode post detail: %w", err)
		}
		if full.Text != "" {
			item.Text = full.Text
		}
	}

	if item.MediaURL != "" {
		// Media bodies are normally blocked by the resource policy; only the
		// descriptor is kept either way.
		if _, _, err := c.fetchResource(ctx, item.MediaURL, pacing.ResourceImage); err != nil {
			item.MediaURL = ""
		}
	}

	for page := 0; page < limits.MaxCommentPages; page++ {
		if len(item.Comments) >= limits.MaxCommentsPerItem {
			break
		}
		path := fmt.Sprintf("/api/posts/%s/comments?page=%d", url.PathEscape(d.ref), page)
		resp, err := c.get(ctx, path, pacing.ActionClick)
		if err != nil {
			// Partial comments are fine; the post body is already loaded.
			break
		}
		var cp feedACommentsPage
		if err := json.Unmarshal(resp.Body(), &cp); err != nil {
			break
		}
		if len(cp.Comments) == 0 {
			break
		}
		for _, cm := range cp.Comments {
			if len(item.Comments) >= limits.MaxCommentsPerItem {
				break
			}
			item.Comments = append(item.Comments, models.Comment{
				Author: cm.Author,
				Text:   cm.Text,
				Time:   cm.CreatedAt,
			})
		}
		if !cp.HasMore {
			break
		}
	}

	return item, nil
}
