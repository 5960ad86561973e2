package notifications

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/gurulk/platform/pkg/config"
	"github.com/gurulk/platform/pkg/observability"
)

// Mailer delivers notification emails. Implementations must be safe for
// concurrent use; delivery failures are logged and counted, never
// surfaced to the request that triggered them.
type Mailer interface {
	SendNotificationEmail(to, notificationType, message string) error
}

// SMTPMailer sends notification emails over SMTP.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewSMTPMailer builds a mailer from SMTP configuration. Returns nil when
// SMTP is disabled; callers treat a nil Mailer as "no email delivery".
func NewSMTPMailer(cfg config.SMTPConfig, metrics *observability.Metrics) *SMTPMailer {
	if !cfg.Enabled {
		return nil
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		log:     log,
		metrics: metrics,
	}
}

// SendNotificationEmail sends the standard notification email.
func (m *SMTPMailer) SendNotificationEmail(to, notificationType, message string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "New Notification: "+notificationType)
	msg.SetBody("text/plain", fmt.Sprintf(
		"You have received a new notification:\n\n%s\n\nPlease log in to view more details.", message))

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.countEmail("failed")
		m.log.WithError(err).WithField("to", to).Error("notification email delivery failed")
		return fmt.Errorf("sending notification email: %w", err)
	}

	m.countEmail("sent")
	m.log.WithField("to", to).Info("notification email sent")
	return nil
}

func (m *SMTPMailer) countEmail(status string) {
	if m.metrics != nil {
		m.metrics.EmailsSentTotal.WithLabelValues(status).Inc()
	}
}
