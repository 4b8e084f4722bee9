package scraper

// Limits bounds one adapter invocation. All knobs are injected rather than
// baked in as module constants so tests can run with small values.
type Limits struct {
	// MaxItems stops list discovery once this many unique items are found.
	MaxItems int
	// MaxCommentsPerItem bounds nested comment collection per item.
	MaxCommentsPerItem int
	// MaxListSteps is the hard ceiling on scroll/paginate steps.
	MaxListSteps int
	// MaxCommentPages is the hard ceiling on comment pagination per item.
	MaxCommentPages int
	// StagnationSteps ends discovery after this many consecutive steps that
	// reveal zero new items.
	StagnationSteps int
	// DetailWorkers is the fixed size of the detail-fetch worker pool.
	DetailWorkers int
}

// DefaultLimits returns production defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxItems:           40,
		MaxCommentsPerItem: 20,
		MaxListSteps:       25,
		MaxCommentPages:    5,
		StagnationSteps:    3,
		DetailWorkers:      3,
	}
}

// normalized fills zero values with defaults so a partially specified Limits
// still behaves sanely.
func (l Limits) normalized() Limits {
	def := DefaultLimits()
	if l.MaxItems <= 0 {
		l.MaxItems = def.MaxItems
	}
	if l.MaxCommentsPerItem <= 0 {
		l.MaxCommentsPerItem = def.MaxCommentsPerItem
	}
	if l.MaxListSteps <= 0 {
		l.MaxListSteps = def.MaxListSteps
	}
	if l.MaxCommentPages <= 0 {
		l.MaxCommentPages = def.MaxCommentPages
	}
	if l.StagnationSteps <= 0 {
		l.StagnationSteps = def.StagnationSteps
	}
	if l.DetailWorkers <= 0 {
		l.DetailWorkers = def.DetailWorkers
	}
	return l
}
