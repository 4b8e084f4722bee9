package notifications

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// EmailConfig carries SMTP settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Service sends run reports by email when SMTP is configured.
type Service struct {
	email EmailConfig
}

var _ Notifier = (*Service)(nil)

// NewService creates a notification service. With no recipient configured it
// degrades to a no-op.
func NewService(email EmailConfig) *Service {
	return &Service{email: email}
}

// SendRunReport delivers the report via the configured channels.
func (s *Service) SendRunReport(report *RunReport) error {
	if s.email.To == "" {
		logrus.Debug("No notification recipient configured, skipping run report")
		return nil
	}

	if err := s.sendEmail(report); err != nil {
		logrus.Errorf("Failed to send run report email: %v", err)
		return err
	}
	logrus.Info("Sent run report email")
	return nil
}

func (s *Service) sendEmail(report *RunReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Scrape run for %s finished at %s\n\n", report.Competitor, report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Items collected: %d\n", report.Items)
	fmt.Fprintf(&b, "Insights extracted: %d\n", report.Insights)
	if len(report.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.email.From)
	m.SetHeader("To", s.email.To)
	m.SetHeader("Subject", fmt.Sprintf("Competitor scrape report: %s", report.Competitor))
	m.SetBody("text/plain", b.String())

	d := gomail.NewDialer(s.email.Host, s.email.Port, s.email.Username, s.email.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
