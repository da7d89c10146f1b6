package email

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/rs/zerolog"
)

func TestValidateEmailAddress_Valid(t *testing.T) {
	tests := []string{
		"user@example.com",
		"test.user@example.com",
		"user+tag@example.co.uk",
		"firstname.lastname@company.org",
		"User Name <user@example.com>", // RFC 5322 format with display name
	}

	for _, email := range tests {
		t.Run(email, func(t *testing.T) {
			err := validateEmailAddress(email)
			if err != nil {
				t.Errorf("Expected valid email %q to pass validation, got error: %v", email, err)
			}
		})
	}
}

func TestValidateEmailAddress_InvalidFormat(t *testing.T) {
	tests := []struct {
		email       string
		description string
	}{
		{"", "empty string"},
		{"notanemail", "no @ symbol"},
		{"@example.com", "missing local part"},
		{"user@", "missing domain"},
		{"user @example.com", "space before @"},
		{"user@exam ple.com", "space in domain"},
		{"user@@example.com", "double @"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			err := validateEmailAddress(tt.email)
			if err == nil {
				t.Errorf("Expected error for invalid email %q (%s), but got none", tt.email, tt.description)
			}
		})
	}
}

func TestValidateEmailAddress_HeaderInjection(t *testing.T) {
	tests := []struct {
		email       string
		description string
	}{
		{
			"victim@example.com\r\nBcc: attacker@evil.com",
			"CRLF with Bcc injection",
		},
		{
			"test@example.com\nCc: hacker@evil.com",
			"LF with Cc injection",
		},
		{
			"user@domain.com\r\nSubject: Phishing",
			"CRLF with Subject injection",
		},
		{
			"user@domain.com\rX-Mailer: Evil",
			"CR with custom header injection",
		},
		{
			"user@domain.com\nContent-Type: text/plain",
			"LF with Content-Type injection",
		},
		{
			"attacker@evil.com\r\n\r\n<html><body>Phishing content</body></html>",
			"double CRLF to inject body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			err := validateEmailAddress(tt.email)
			if err == nil {
				t.Errorf("Expected error for email with header injection %q (%s), but got none", tt.email, tt.description)
			}
		})
	}
}

func TestValidateEmailAddress_EdgeCases(t *testing.T) {
	tests := []struct {
		email       string
		shouldPass  bool
		description string
	}{
		{"user+tag@example.com", true, "plus addressing"},
		{"user.name@example.com", true, "dots in local part"},
		{"123@example.com", true, "numeric local part"},
		{"a@b.c", true, "minimal valid email"},
		{"user@subdomain.example.com", true, "subdomain"},
		{"user@example.co.uk", true, "multi-level TLD"},
		{"User <user@example.com>", true, "display name with angle brackets"},
		{"user@[192.168.1.1]", true, "IP address domain (RFC 5321)"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			err := validateEmailAddress(tt.email)
			if tt.shouldPass && err != nil {
				t.Errorf("Expected email %q to pass validation (%s), got error: %v", tt.email, tt.description, err)
			}
			if !tt.shouldPass && err == nil {
				t.Errorf("Expected email %q to fail validation (%s), but got none", tt.email, tt.description)
			}
		})
	}
}

func TestNewService_ProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmailConfig
		wantErr string
	}{
		{
			name: "disabled needs nothing",
			cfg:  config.EmailConfig{Enabled: false},
		},
		{
			name:    "invalid sender",
			cfg:     config.EmailConfig{Enabled: true, Provider: "smtp", From: "not-an-email", SMTPHost: "smtp.example.com"},
			wantErr: "invalid sender",
		},
		{
			name:    "resend without key",
			cfg:     config.EmailConfig{Enabled: true, Provider: "resend", From: "events@example.com"},
			wantErr: "API key",
		},
		{
			name:    "smtp without host",
			cfg:     config.EmailConfig{Enabled: true, Provider: "smtp", From: "events@example.com"},
			wantErr: "host",
		},
		{
			name:    "unknown provider",
			cfg:     config.EmailConfig{Enabled: true, Provider: "pigeon", From: "events@example.com"},
			wantErr: "unsupported email provider",
		},
		{
			name: "resend configured",
			cfg:  config.EmailConfig{Enabled: true, Provider: "Resend", From: "events@example.com", ResendAPIKey: "re_test"},
		},
		{
			name: "smtp is the default provider",
			cfg:  config.EmailConfig{Enabled: true, From: "events@example.com", SMTPHost: "smtp.example.com", SMTPPort: 587},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.cfg, zerolog.Nop())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				if svc == nil {
					t.Fatal("Expected service, got nil")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestSend_DisabledSkipsDelivery(t *testing.T) {
	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.Send(context.Background(), Message{To: "ana@example.com", Subject: "Certificate", Text: "hello"})
	if err != nil {
		t.Errorf("Expected disabled service to return nil, got: %v", err)
	}
}

func TestSend_InvalidRecipientIsDeliveryError(t *testing.T) {
	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.Send(context.Background(), Message{To: "ana@example.com\r\nBcc: evil@example.com"})
	if !errors.Is(err, ErrDelivery) {
		t.Errorf("Expected ErrDelivery, got: %v", err)
	}
}

func TestBuildMIMEMessage_WithAttachment(t *testing.T) {
	pdfBytes := []byte("%PDF-1.3 fake certificate body that is long enough to need more than one base64 line of output")
	msg := Message{
		To:      "Ana <ana@example.com>",
		Subject: "Seu certificado de participação",
		Text:    "Hello Ana,\n\nYour certificate is attached.",
		Attachments: []Attachment{{
			Filename:    "certificate-42.pdf",
			ContentType: "application/pdf",
			Data:        pdfBytes,
		}},
	}

	raw, err := buildMIMEMessage("events@example.com", msg, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildMIMEMessage: %v", err)
	}

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got := parsed.Header.Get("To"); got != "Ana <ana@example.com>" {
		t.Errorf("Expected To header to be preserved, got %q", got)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if subject != msg.Subject {
		t.Errorf("Expected subject %q, got %q", msg.Subject, subject)
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	if mediaType != "multipart/mixed" {
		t.Fatalf("Expected multipart/mixed, got %q", mediaType)
	}

	reader := multipart.NewReader(parsed.Body, params["boundary"])

	textPart, err := reader.NextPart()
	if err != nil {
		t.Fatalf("text part: %v", err)
	}
	text, _ := io.ReadAll(textPart)
	if !strings.Contains(string(text), "Your certificate is attached.") {
		t.Errorf("Expected text body, got %q", text)
	}

	attPart, err := reader.NextPart()
	if err != nil {
		t.Fatalf("attachment part: %v", err)
	}
	if attPart.FileName() != "certificate-42.pdf" {
		t.Errorf("Expected attachment filename certificate-42.pdf, got %q", attPart.FileName())
	}
	encoded, _ := io.ReadAll(attPart)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		if len(line) > 76 {
			t.Errorf("base64 line longer than 76 characters: %d", len(line))
		}
	}

	if _, err := reader.NextPart(); err != io.EOF {
		t.Errorf("Expected exactly two parts, got err=%v", err)
	}
}
