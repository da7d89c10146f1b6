package participants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/attendance/internal/metrics"
	"github.com/Togather-Foundation/attendance/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	MinScore = 1
	MaxScore = 5
)

// RegisterParams holds the fields accepted at sign-up.
type RegisterParams struct {
	Name  string `validate:"required"`
	Email string `validate:"required"`
}

// EvaluateParams holds a post-event evaluation.
type EvaluateParams struct {
	Score   int `validate:"min=1,max=5"`
	Comment string
}

// Service owns the participant lifecycle: registration, attendance and evaluation.
type Service struct {
	repo      Repository
	logger    zerolog.Logger
	validator *validator.Validate
	nameCheck func(string) error
}

// Option configures a Service.
type Option func(*Service)

// WithNameCheck rejects names for which check returns an error, such as names
// the certificate cannot print. The error text becomes the validation message.
func WithNameCheck(check func(string) error) Option {
	return func(s *Service) {
		s.nameCheck = check
	}
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		logger:    logger.With().Str("component", "participants").Logger(),
		validator: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a participant with present=false and no evaluation. Markup
// is stripped from the name before validation.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Participant, error) {
	params.Name = sanitize.Text(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	if err := s.validate(params); err != nil {
		return nil, err
	}
	if s.nameCheck != nil {
		if err := s.nameCheck(params.Name); err != nil {
			return nil, ValidationError{Field: "name", Message: err.Error()}
		}
	}

	participant, err := s.repo.Create(ctx, CreateParams{Name: params.Name, Email: params.Email})
	if err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}

	metrics.ParticipantsRegistered.Inc()
	s.logger.Info().
		Int64("participant_id", participant.ID).
		Msg("participant registered")
	return participant, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Participant, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Participant, error) {
	return s.repo.List(ctx)
}

// MarkPresent confirms attendance. Confirming twice is a successful no-op.
func (s *Service) MarkPresent(ctx context.Context, id int64) (*Participant, error) {
	participant, err := s.repo.MarkPresent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("participant_id", id).Msg("attendance confirmed")
	return participant, nil
}

// RecordEvaluation stores the participant's score. Eligibility is checked
// before the score range, so an absent participant always gets ErrNotEligible.
func (s *Service) RecordEvaluation(ctx context.Context, id int64, params EvaluateParams) (*Participant, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Present {
		return nil, fmt.Errorf("evaluation requires confirmed attendance: %w", ErrNotEligible)
	}
	if err := s.validate(params); err != nil {
		return nil, err
	}

	// The repository re-checks presence in the same write.
	participant, err := s.repo.SetEvaluation(ctx, id, Evaluation{
		Score:   params.Score,
		Comment: sanitize.Text(params.Comment),
	})
	if err != nil {
		return nil, err
	}

	metrics.EvaluationsRecorded.WithLabelValues(fmt.Sprint(params.Score)).Inc()
	s.logger.Info().
		Int64("participant_id", id).
		Int("score", params.Score).
		Msg("evaluation recorded")
	return participant, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) validate(params any) error {
	err := s.validator.Struct(params)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return ValidationError{Field: field, Message: "is required"}
	case "min", "max":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)}
	default:
		return ValidationError{Field: field, Message: fe.Error()}
	}
}
