package pacing

import (
	"math/rand"
	"time"
)

// ActionKind is a coarse class of simulated user action.
type ActionKind string

const (
	ActionClick      ActionKind = "click"
	ActionTypeChar   ActionKind = "type-char"
	ActionScrollStep ActionKind = "scroll-step"
	ActionPageSettle ActionKind = "page-settle"
)

// ResourceKind classifies a fetchable resource for the blocking policy.
type ResourceKind string

const (
	ResourceDocument  ResourceKind = "document"
	ResourceScript    ResourceKind = "script"
	ResourceStyle     ResourceKind = "style"
	ResourceImage     ResourceKind = "image"
	ResourceFont      ResourceKind = "font"
	ResourceMedia     ResourceKind = "media"
	ResourceAnalytics ResourceKind = "analytics"
)

// Profile is the set of timing multipliers fixed for one scrape run, so
// repeated runs do not produce identical timing fingerprints.
type Profile struct {
	Tempo            float64 // overall speed multiplier, 1.0 = baseline
	ScrollAggression float64 // shortens scroll-step waits when > 1
	TypoRate         float64 // probability of an extra hesitation when typing
}

// delayRange is the bounded base range a think delay is drawn from.
type delayRange struct {
	min time.Duration
	max time.Duration
}

var baseDelays = map[ActionKind]delayRange{
	ActionClick:      {280 * time.Millisecond, 900 * time.Millisecond},
	ActionTypeChar:   {40 * time.Millisecond, 160 * time.Millisecond},
	ActionScrollStep: {600 * time.Millisecond, 2200 * time.Millisecond},
	ActionPageSettle: {1200 * time.Millisecond, 3500 * time.Millisecond},
}

// Policy supplies human-like delays and the resource blocking policy shared
// by all adapters. It is pure given its random source and does no I/O.
type Policy struct {
	profile Profile
	rng     *rand.Rand
}

// NewPolicy creates a policy with a profile randomized from seed. The same
// seed yields the same profile and delay sequence.
func NewPolicy(seed int64) *Policy {
	rng := rand.New(rand.NewSource(seed))
	return &Policy{
		profile: Profile{
			Tempo:            0.7 + rng.Float64()*0.8, // 0.7 .. 1.5
			ScrollAggression: 0.8 + rng.Float64()*0.7, // 0.8 .. 1.5
			TypoRate:         rng.Float64() * 0.08,    // 0 .. 0.08
		},
		rng: rng,
	}
}

// Profile returns the pace profile fixed for this run.
func (p *Policy) Profile() Profile {
	return p.profile
}

// Think returns how long to sleep before the next action of the given kind.
func (p *Policy) Think(kind ActionKind) time.Duration {
	r, ok := baseDelays[kind]
	if !ok {
		r = baseDelays[ActionClick]
	}

	span := float64(r.max - r.min)
	d := float64(r.min) + p.rng.Float64()*span

	d /= p.profile.Tempo
	if kind == ActionScrollStep {
		d /= p.profile.ScrollAggression
	}
	if kind == ActionTypeChar && p.rng.Float64() < p.profile.TypoRate {
		// occasional hesitation, as if correcting a typo
		d += float64(200+p.rng.Intn(400)) * float64(time.Millisecond)
	}

	return time.Duration(d)
}

// AllowResource reports whether a resource of the given kind should be
// fetched. Navigation documents and same-origin scripts/styles are always
// allowed; heavy and tracking resources are blocked to cut bandwidth and
// reduce fingerprinting surface.
func (p *Policy) AllowResource(kind ResourceKind) bool {
	switch kind {
	case ResourceDocument, ResourceScript, ResourceStyle:
		return true
	case ResourceImage, ResourceFont, ResourceMedia, ResourceAnalytics:
		return false
	default:
		return false
	}
}
