package participants

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("participant not found")

// ErrNotEligible is returned when a lifecycle precondition is not met, such as
// evaluating a participant whose attendance was never confirmed.
var ErrNotEligible = errors.New("participant not eligible")

// ValidationError reports bad input shape or range for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Participant is one registration for the event.
type Participant struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Present      bool        `json:"present"`
	Evaluation   *Evaluation `json:"evaluation"`
	RegisteredAt time.Time   `json:"registered_at"`
}

type Evaluation struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Eligible reports whether a certificate may be issued.
func (p Participant) Eligible() bool {
	return p.Present && p.Evaluation != nil
}

type CreateParams struct {
	Name  string
	Email string
}

// Repository persists participants. Implementations must apply MarkPresent and
// SetEvaluation atomically per row; SetEvaluation must refuse rows that are not
// present with ErrNotEligible.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Participant, error)
	Get(ctx context.Context, id int64) (*Participant, error)
	List(ctx context.Context) ([]Participant, error)
	MarkPresent(ctx context.Context, id int64) (*Participant, error)
	SetEvaluation(ctx context.Context, id int64, evaluation Evaluation) (*Participant, error)
	Ping(ctx context.Context) error
}
