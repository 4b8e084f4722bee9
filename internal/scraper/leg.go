package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/rivalscope/rivalscope/internal/pacing"
	"github.com/rivalscope/rivalscope/internal/session"
	"github.com/sirupsen/logrus"
)

// detailUnavailable is the sentinel body kept for an item whose detail fetch
// failed. The item survives rather than aborting the whole leg.
const detailUnavailable = "could not load"

// loginWait bounds how long a leg waits for a login success indicator.
const loginWait = 45 * time.Second

// leg runs the common adapter state machine
// Init → SessionCheck → {Login → SessionSave, SessionValid} → ListDiscovery
// → DetailFetch → Done, delegating platform specifics to platformOps.
type leg struct {
	ops  platformOps
	opts Options
}

func newLeg(ops platformOps, opts Options) *leg {
	return &leg{ops: ops, opts: opts}
}

func (l *leg) Name() models.Platform {
	return l.ops.name()
}

// Scrape executes one platform leg. It may return items alongside an error:
// a non-empty slice with a non-nil error means best-effort partial results,
// which the orchestrator keeps while recording the error as a warning.
func (l *leg) Scrape(ctx context.Context, target string, limits Limits) ([]models.ScrapedItem, error) {
	limits = limits.normalized()
	platform := l.ops.name()

	client, err := newFetchClient(l.opts.BaseURL, l.opts.Policy, l.opts.Limiter)
	if err != nil {
		return nil, err
	}

	if l.ops.requiresLogin() {
		if err := l.ensureSession(ctx, client); err != nil {
			return nil, err
		}
	}

	found, discoverErr := l.discover(ctx, client, target, limits)
	if len(found) == 0 {
		return nil, discoverErr
	}

	var items []models.ScrapedItem
	if errors.Is(discoverErr, ErrRateLimited) {
		// The platform is already refusing requests; stop sending more and
		// return the previews as-is.
		items = make([]models.ScrapedItem, len(found))
		for i, d := range found {
			items[i] = d.item
		}
	} else {
		items = l.fetchDetails(ctx, client, found, limits)
		if discoverErr == nil && ctx.Err() != nil {
			// Per-item failures keep the sentinel body, but a dead deadline
			// must surface so the leg is recorded as a failure.
			discoverErr = fmt.Errorf("detail fetch aborted: %w", ctx.Err())
		}
	}

	// Relevance ordering is a downstream hint; discovery order breaks ties.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score() > items[j].Score()
	})

	logrus.Infof("Scraped %d items from %s", len(items), platform)
	return items, discoverErr
}

// ensureSession restores a prior session or performs a fresh login,
// persisting the new session only after it validates.
func (l *leg) ensureSession(ctx context.Context, client *fetchClient) error {
	platform := l.ops.name()

	state, err := l.opts.Sessions.Load(platform)
	switch {
	case err == nil:
		client.applySession(state)
		ok, probeErr := l.ops.probeSession(ctx, client)
		if probeErr != nil {
			logrus.Warnf("Session probe for %s failed: %v", platform, probeErr)
		}
		if ok && probeErr == nil {
			logrus.Debugf("Restored session for %s", platform)
			return nil
		}
		logrus.Infof("Stored session for %s is stale, logging in again", platform)
	case errors.Is(err, session.ErrNotFound):
		logrus.Debugf("No stored session for %s, logging in", platform)
	default:
		logrus.Warnf("Failed to load session for %s: %v", platform, err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, loginWait)
	defer cancel()

	if err := l.ops.login(loginCtx, client); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrLoginFailed, platform, err)
	}

	marker := l.ops.sessionMarker()
	if !client.hasCookie(marker) {
		return fmt.Errorf("%w for %s: no %s cookie after login", ErrLoginFailed, platform, marker)
	}

	fresh := client.snapshotSession()
	if !fresh.HasValidCookie(marker) {
		// Never overwrite a good stored session with a broken one.
		return fmt.Errorf("%w for %s: fresh session did not validate", ErrLoginFailed, platform)
	}
	if err := l.opts.Sessions.Save(platform, fresh); err != nil {
		logrus.Warnf("Failed to save session for %s: %v", platform, err)
	}
	return nil
}

// discover runs the scroll/paginate loop, deduplicating by fingerprint. It
// stops at the item cap, the step ceiling, or after StagnationSteps
// consecutive steps with nothing new. After at least one successful step,
// errors degrade to partial results returned alongside the error.
func (l *leg) discover(ctx context.Context, client *fetchClient, target string, limits Limits) ([]discovered, error) {
	seen := make(seenSet)
	var found []discovered
	stagnant := 0

	for step := 0; step < limits.MaxListSteps; step++ {
		if step > 0 {
			if err := client.pause(ctx, pacing.ActionScrollStep); err != nil {
				return found, err
			}
		}

		batch, done, err := l.ops.discoverStep(ctx, client, target, step)
		if err != nil {
			if len(found) > 0 {
				logrus.Warnf("List discovery on %s stopped after %d items: %v", l.ops.name(), len(found), err)
				return found, err
			}
			return nil, err
		}

		fresh := 0
		for _, d := range batch {
			if !seen.add(Fingerprint(d.item)) {
				continue
			}
			fresh++
			found = append(found, d)
			if len(found) >= limits.MaxItems {
				return found, nil
			}
		}

		if fresh == 0 {
			stagnant++
			if stagnant >= limits.StagnationSteps {
				logrus.Debugf("List discovery on %s stagnated after %d steps", l.ops.name(), step+1)
				break
			}
		} else {
			stagnant = 0
		}

		if done {
			break
		}
	}

	return found, nil
}

// fetchDetails loads full items through a fixed-size worker pool. A failed
// detail fetch keeps the item with a sentinel body. Discovery order is
// preserved.
func (l *leg) fetchDetails(ctx context.Context, client *fetchClient, found []discovered, limits Limits) []models.ScrapedItem {
	items := make([]models.ScrapedItem, len(found))

	if !l.ops.hasDetail() {
		for i, d := range found {
			items[i] = d.item
		}
		return items
	}

	sem := make(chan struct{}, limits.DetailWorkers)
	var wg sync.WaitGroup

	for i, d := range found {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, d discovered) {
			defer wg.Done()
			defer func() { <-sem }()

			item, err := l.ops.fetchDetail(ctx, client, d, limits)
			if err != nil {
				logrus.Warnf("Detail fetch on %s failed (%s): %v", l.ops.name(), d.ref, err)
				item = d.item
				item.Text = detailUnavailable
			}
			items[i] = item
		}(i, d)
	}

	wg.Wait()
	return items
}
