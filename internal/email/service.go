package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/Togather-Foundation/attendance/internal/metrics"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// ErrDelivery wraps every transport failure returned by Send.
var ErrDelivery = errors.New("email delivery failed")

// Attachment is a file carried with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text email with optional attachments.
type Message struct {
	To          string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Service sends email through SMTP or the Resend API.
type Service struct {
	config       config.EmailConfig
	provider     string
	resendClient *resend.Client
	logger       zerolog.Logger
}

// NewService creates a new email service instance for the configured provider.
func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderSMTP
	}

	svc := &Service{
		config:   cfg,
		provider: provider,
		logger:   logger.With().Str("component", "email").Str("provider", provider).Logger(),
	}
	if !cfg.Enabled {
		return svc, nil
	}

	if err := validateEmailAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender email in config: %w", err)
	}

	switch provider {
	case ProviderResend:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend provider requires an API key")
		}
		svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	case ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp provider requires a host")
		}
	default:
		return nil, fmt.Errorf("unsupported email provider %q (must be %q or %q)", provider, ProviderSMTP, ProviderResend)
	}
	return svc, nil
}

// Send delivers msg. Transport failures are wrapped with ErrDelivery.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if err := validateEmailAddress(msg.To); err != nil {
		return fmt.Errorf("%w: invalid recipient email: %w", ErrDelivery, err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", msg.To).
			Str("subject", msg.Subject).
			Int("attachments", len(msg.Attachments)).
			Msg("email service disabled, skipping message")
		metrics.EmailsTotal.WithLabelValues("disabled", "skipped").Inc()
		return nil
	}

	var err error
	switch s.provider {
	case ProviderResend:
		err = s.sendViaResend(ctx, msg)
	default:
		err = s.sendViaSMTP(ctx, msg)
	}
	if err != nil {
		metrics.EmailsTotal.WithLabelValues(s.provider, "error").Inc()
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	metrics.EmailsTotal.WithLabelValues(s.provider, "sent").Inc()
	return nil
}

// validateEmailAddress validates an email address for format and header injection attempts
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}

	// Check for header injection attempts (newlines)
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}

	return nil
}

// sanitizeHeader strips CR/LF so values cannot start a new header line.
func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(value)
}
