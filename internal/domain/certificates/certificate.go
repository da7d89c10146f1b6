package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/Togather-Foundation/attendance/internal/email"
)

// ErrRender is returned when the certificate document could not be produced.
// It is not retried.
var ErrRender = errors.New("certificate rendering failed")

// ContentType is the media type of rendered certificates.
const ContentType = "application/pdf"

// EventMetadata describes the single event certificates are issued for.
type EventMetadata struct {
	Name      string
	Hours     int
	Signatory string
}

// Certificate is an issued document.
type Certificate struct {
	Participant participants.Participant
	Filename    string
	ContentType string
	Data        []byte
	IssuedAt    time.Time
}

// ParticipantReader is the subset of the participant store the workflow reads.
type ParticipantReader interface {
	Get(ctx context.Context, id int64) (*participants.Participant, error)
}

type Renderer interface {
	Render(participant participants.Participant, event EventMetadata) ([]byte, error)
}

// Dispatcher delivers a message to its recipient. Errors are logged by the
// caller and never retried.
type Dispatcher interface {
	Send(ctx context.Context, msg email.Message) error
}

// Filename returns the attachment name used for a participant's certificate.
func Filename(id int64) string {
	return fmt.Sprintf("certificate-%d.pdf", id)
}
