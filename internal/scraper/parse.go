package scraper

import (
	"strconv"
	"strings"
	"time"
)

// ParseCount converts display counters like "1.2K", "3,456" or "2M" into an
// integer. Unparseable input yields zero; the raw string is kept alongside.
func ParseCount(raw string) int {
	s := strings.TrimSpace(strings.ToUpper(raw))
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "M")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f * mult)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// NormalizeTimestamp converts a raw platform timestamp into an ISO date.
// Returns an empty string when no known layout matches; the raw value is
// preserved on the item either way.
func NormalizeTimestamp(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 1_000_000_000 {
		return time.Unix(secs, 0).UTC().Format("2006-01-02")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}
