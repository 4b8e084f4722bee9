package scraper

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/rivalscope/rivalscope/internal/models"
)

// Fingerprint derives the composite dedup key for an item within one scrape
// session: author + timestamp + text hash. Known limitation: two distinct
// anonymous reviewers posting identical text at the same timestamp collide.
func Fingerprint(item models.ScrapedItem) string {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(item.Text))))

	ts := item.PostedAt
	if ts == "" {
		ts = item.PostedRaw
	}

	return fmt.Sprintf("%s|%s|%x", strings.ToLower(strings.TrimSpace(item.Author)), ts, h.Sum64())
}

// seenSet is the monotonically growing set of fingerprints observed during
// one scrape session.
type seenSet map[string]struct{}

// add records a fingerprint and reports whether it was new.
func (s seenSet) add(fp string) bool {
	if _, ok := s[fp]; ok {
		return false
	}
	s[fp] = struct{}{}
	return true
}
