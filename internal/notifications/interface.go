package notifications

import "time"

// RunReport summarizes one completed pipeline run for notification.
type RunReport struct {
	Competitor  string    `json:"competitor"`
	GeneratedAt time.Time `json:"generated_at"`
	Items       int       `json:"items"`
	Insights    int       `json:"insights"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// Notifier defines the contract for notification services.
type Notifier interface {
	SendRunReport(report *RunReport) error
}
