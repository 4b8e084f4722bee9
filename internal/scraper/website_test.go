package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const websiteReviewsPage1 = `<html><body>
<div class="review-card">
  <span class="review-author">Dana</span>
  <div class="review-body">Solid reporting but the importer chokes on large files. The full story is long...</div>
  <span class="review-date">Mar 10, 2024</span>
  <span class="helpful-count">1.2K</span>
  <a class="read-more" href="/reviews/r1">read more</a>
</div>
<div class="review-card">
  <span class="review-author">Eli</span>
  <div class="review-body">Support answered within the hour, happy customer.</div>
  <span class="review-date">Mar 9, 2024</span>
  <span class="helpful-count">7</span>
</div>
<a class="next-page" href="?page=2">next</a>
</body></html>`

const websiteReviewsPage2 = `<html><body>
<div class="review-card">
  <span class="review-author">Finn</span>
  <div class="review-body">Pricing doubled after the first year.</div>
  <span class="review-date">Mar 8, 2024</span>
  <span class="helpful-count">33</span>
</div>
</body></html>`

const websiteDetailPage = `<html><body>
<div class="review-full-body">Solid reporting but the importer chokes on large files. Anything over 50MB stalls at 99 percent and has to be restarted.</div>
<div class="vendor-response">
  <span class="vendor-name">Acme Team</span>
  <div class="vendor-text">A fix for large imports ships next week.</div>
  <span class="vendor-date">Mar 11, 2024</span>
</div>
</body></html>`

func websiteOptions(baseURL string) Options {
	return Options{
		BaseURL: baseURL,
		Policy:  noDelayPolicy{},
		Limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func newWebsiteServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/companies/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, websiteReviewsPage1)
		case "2":
			fmt.Fprint(w, websiteReviewsPage2)
		default:
			fmt.Fprint(w, `<html><body><p>no reviews</p></body></html>`)
		}
	})
	mux.HandleFunc("/reviews/r1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, websiteDetailPage)
	})
	return httptest.NewServer(mux)
}

func TestWebsite_ScrapePaginatesAndExpands(t *testing.T) {
	srv := newWebsiteServer()
	defer srv.Close()

	adapter := NewWebsite(websiteOptions(srv.URL))
	items, err := adapter.Scrape(context.Background(), "acme", DefaultLimits())
	require.NoError(t, err)
	require.Len(t, items, 3)

	byAuthor := map[string]models.ScrapedItem{}
	for _, it := range items {
		assert.Equal(t, models.PlatformWebsite, it.Platform)
		byAuthor[it.Author] = it
	}

	dana := byAuthor["Dana"]
	assert.Contains(t, dana.Text, "stalls at 99 percent", "truncated review must be expanded from the detail page")
	assert.Equal(t, 1200, dana.Engagement.Likes)
	assert.Equal(t, "1.2K", dana.Engagement.LikesRaw)
	assert.Equal(t, "2024-03-10", dana.PostedAt)
	require.Len(t, dana.Comments, 1)
	assert.Equal(t, "Acme Team", dana.Comments[0].Author)

	assert.Equal(t, "Support answered within the hour, happy customer.", byAuthor["Eli"].Text)
	assert.Equal(t, 33, byAuthor["Finn"].Engagement.Likes)

	// Helpful counts drive relevance order.
	assert.Equal(t, "Dana", items[0].Author)
}

func TestWebsite_FallbackSelector(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/companies/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `<html><body></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
<article class="review">
  <span class="review-author">Gus</span>
  <div class="review-body">Redesigned markup, same content.</div>
  <span class="review-date">Mar 7, 2024</span>
</article>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	items, err := NewWebsite(websiteOptions(srv.URL)).Scrape(context.Background(), "acme", DefaultLimits())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Gus", items[0].Author)
}

func TestWebsite_MissingSelectorOnFirstPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/companies/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="totally-different">nothing here</div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	items, err := NewWebsite(websiteOptions(srv.URL)).Scrape(context.Background(), "acme", DefaultLimits())
	require.Error(t, err)
	assert.Empty(t, items)

	var selErr *SelectorMissingError
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, "div.review-card", selErr.Selector)
}

func TestWebsite_DetailFailureKeepsPreview(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/companies/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `<html><body></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
<div class="review-card">
  <span class="review-author">Hana</span>
  <div class="review-body">Preview text...</div>
  <a class="read-more" href="/reviews/broken">read more</a>
</div>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	items, err := NewWebsite(websiteOptions(srv.URL)).Scrape(context.Background(), "acme", DefaultLimits())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, detailUnavailable, items[0].Text)
}
