package certificates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/Togather-Foundation/attendance/internal/email"
	"github.com/Togather-Foundation/attendance/internal/metrics"
	"github.com/Togather-Foundation/attendance/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/Togather-Foundation/attendance/internal/domain/certificates"

// Service issues certificates to eligible participants and mails a copy.
type Service struct {
	participants ParticipantReader
	renderer     Renderer
	dispatcher   Dispatcher
	event        EventMetadata
	logger       zerolog.Logger
	now          func() time.Time

	wg sync.WaitGroup
}

func NewService(reader ParticipantReader, renderer Renderer, dispatcher Dispatcher, event EventMetadata, logger zerolog.Logger) *Service {
	return &Service{
		participants: reader,
		renderer:     renderer,
		dispatcher:   dispatcher,
		event:        event,
		logger:       logger.With().Str("component", "certificates").Logger(),
		now:          time.Now,
	}
}

// Issue renders the certificate for participant id and returns it. A copy is
// mailed to the participant in the background; delivery failures are logged
// and never reach the caller.
//
// Every call runs the whole pipeline again, so issuing twice sends two emails.
func (s *Service) Issue(ctx context.Context, id int64) (*Certificate, error) {
	ctx, span := telemetry.GetTracer(tracerName).Start(ctx, "certificates.Issue")
	defer span.End()
	span.SetAttributes(attribute.Int64("participant.id", id))

	participant, err := s.participants.Get(ctx, id)
	if err != nil {
		s.countOutcome(err)
		span.RecordError(err)
		return nil, err
	}
	if !participant.Eligible() {
		metrics.CertificatesIssued.WithLabelValues("not_eligible").Inc()
		return nil, fmt.Errorf("certificate requires attendance and evaluation: %w", participants.ErrNotEligible)
	}

	start := time.Now()
	data, err := s.renderer.Render(*participant, s.event)
	metrics.CertificateRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CertificatesIssued.WithLabelValues("render_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	cert := &Certificate{
		Participant: *participant,
		Filename:    Filename(participant.ID),
		ContentType: ContentType,
		Data:        data,
		IssuedAt:    s.now(),
	}
	metrics.CertificatesIssued.WithLabelValues("issued").Inc()

	s.dispatch(ctx, cert)
	return cert, nil
}

// Wait blocks until every background dispatch started by Issue has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) dispatch(ctx context.Context, cert *Certificate) {
	msg := s.message(cert)
	// The request context is cancelled as soon as the response is written.
	dispatchCtx := context.WithoutCancel(ctx)
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}
	log := logger.With().
		Int64("participant_id", cert.Participant.ID).
		Str("to", cert.Participant.Email).
		Logger()

	s.wg.Add(1)
	metrics.DispatchesInFlight.Inc()
	go func() {
		defer s.wg.Done()
		defer metrics.DispatchesInFlight.Dec()

		if err := s.dispatcher.Send(dispatchCtx, msg); err != nil {
			log.Error().Err(err).Msg("certificate email failed")
			return
		}
		log.Info().Msg("certificate email dispatched")
	}()
}

func (s *Service) message(cert *Certificate) email.Message {
	return email.Message{
		To:      cert.Participant.Email,
		Subject: fmt.Sprintf("Your certificate for %s", s.event.Name),
		Text: fmt.Sprintf("Hello %s,\n\nThank you for attending %s. Your certificate of participation is attached.\n\n%s\n",
			cert.Participant.Name, s.event.Name, s.event.Signatory),
		Attachments: []email.Attachment{{
			Filename:    cert.Filename,
			ContentType: cert.ContentType,
			Data:        cert.Data,
		}},
	}
}

func (s *Service) countOutcome(err error) {
	if errors.Is(err, participants.ErrNotFound) {
		metrics.CertificatesIssued.WithLabelValues("not_found").Inc()
		return
	}
	metrics.CertificatesIssued.WithLabelValues("error").Inc()
}
