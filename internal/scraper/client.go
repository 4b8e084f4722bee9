package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rivalscope/rivalscope/internal/pacing"
	"github.com/rivalscope/rivalscope/internal/session"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// PacePolicy is the pacing and resource-blocking contract adapters depend
// on. Satisfied by *pacing.Policy; tests substitute a no-delay stub.
type PacePolicy interface {
	Think(kind pacing.ActionKind) time.Duration
	AllowResource(kind pacing.ResourceKind) bool
}

// fetchClient wraps resty with a cookie jar, pacing sleeps and a request
// rate limiter. One instance serves exactly one platform leg.
type fetchClient struct {
	rc      *resty.Client
	jar     http.CookieJar
	policy  PacePolicy
	limiter *rate.Limiter
	baseURL *url.URL
}

func newFetchClient(baseURL string, policy PacePolicy, limiter *rate.Limiter) (*fetchClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 3)
	}

	rc := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetCookieJar(jar).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &fetchClient{
		rc:      rc,
		jar:     jar,
		policy:  policy,
		limiter: limiter,
		baseURL: u,
	}, nil
}

// pause sleeps for the policy-supplied think time, honoring cancellation.
func (c *fetchClient) pause(ctx context.Context, kind pacing.ActionKind) error {
	d := c.policy.Think(kind)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *fetchClient) absolute(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	return c.baseURL.ResolveReference(ref).String()
}

// get fetches a page after the appropriate pacing delay. 429/403 map to
// ErrRateLimited, transport failures to NavigationError.
func (c *fetchClient) get(ctx context.Context, path string, kind pacing.ActionKind) (*resty.Response, error) {
	full := c.absolute(path)

	if err := c.pause(ctx, kind); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.rc.R().SetContext(ctx).Get(full)
	if err != nil {
		return nil, &NavigationError{URL: full, Err: err}
	}

	switch resp.StatusCode() {
	case http.StatusTooManyRequests, http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d from %s", ErrRateLimited, resp.StatusCode(), full)
	}
	if resp.StatusCode() >= 400 {
		return nil, &NavigationError{URL: full, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}

	return resp, nil
}

// probe fetches a page and returns the status code without mapping 4xx to
// errors; session checks need to see 401s as data, not failures.
func (c *fetchClient) probe(ctx context.Context, path string) (int, []byte, error) {
	full := c.absolute(path)

	if err := c.pause(ctx, pacing.ActionPageSettle); err != nil {
		return 0, nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	resp, err := c.rc.R().SetContext(ctx).Get(full)
	if err != nil {
		return 0, nil, &NavigationError{URL: full, Err: err}
	}
	return resp.StatusCode(), resp.Body(), nil
}

// postForm submits a form, used for credential login.
func (c *fetchClient) postForm(ctx context.Context, path string, form map[string]string) (*resty.Response, error) {
	full := c.absolute(path)

	if err := c.pause(ctx, pacing.ActionClick); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.rc.R().SetContext(ctx).SetFormData(form).Post(full)
	if err != nil {
		return nil, &NavigationError{URL: full, Err: err}
	}
	return resp, nil
}

// fetchResource retrieves a subresource (media, avatar) only when the
// blocking policy allows that resource kind. Returns (nil, false, nil) when
// the fetch was skipped.
func (c *fetchClient) fetchResource(ctx context.Context, rawURL string, kind pacing.ResourceKind) ([]byte, bool, error) {
	if !c.policy.AllowResource(kind) {
		return nil, false, nil
	}
	resp, err := c.get(ctx, rawURL, pacing.ActionPageSettle)
	if err != nil {
		return nil, false, err
	}
	return resp.Body(), true, nil
}

// applySession loads a restored cookie snapshot into the jar.
func (c *fetchClient) applySession(state *session.State) {
	c.jar.SetCookies(c.baseURL, state.HTTPCookies())
}

// snapshotSession captures the jar into a persistable session state.
func (c *fetchClient) snapshotSession() *session.State {
	cookies := c.jar.Cookies(c.baseURL)
	state := &session.State{Storage: map[string]string{}}
	for _, ck := range cookies {
		state.Cookies = append(state.Cookies, session.Cookie{
			Name:    ck.Name,
			Value:   ck.Value,
			Domain:  ck.Domain,
			Path:    ck.Path,
			Expires: ck.Expires,
		})
	}
	return state
}

// hasCookie reports whether the jar currently holds a non-empty cookie with
// the given name for the platform origin.
func (c *fetchClient) hasCookie(name string) bool {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == name && ck.Value != "" {
			return true
		}
	}
	return false
}
