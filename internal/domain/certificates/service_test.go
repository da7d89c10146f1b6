package certificates_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Togather-Foundation/attendance/internal/domain/certificates"
	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/Togather-Foundation/attendance/internal/email"
	"github.com/Togather-Foundation/attendance/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEvent = certificates.EventMetadata{Name: "Go Day", Hours: 8, Signatory: "Event Coordination"}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(p participants.Participant, event certificates.EventMetadata) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 " + p.Name + " " + event.Name), nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	err  error
	sent []email.Message
}

func (f *fakeDispatcher) Send(ctx context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeDispatcher) messages() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.sent...)
}

type fixture struct {
	repo       *memory.ParticipantRepository
	renderer   *fakeRenderer
	dispatcher *fakeDispatcher
	service    *certificates.Service
	logs       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	f := &fixture{
		repo:       memory.NewParticipantRepository(),
		renderer:   &fakeRenderer{},
		dispatcher: &fakeDispatcher{},
		logs:       logs,
	}
	f.service = certificates.NewService(f.repo, f.renderer, f.dispatcher, testEvent, zerolog.New(logs))
	return f
}

func (f *fixture) participant(t *testing.T, present, evaluated bool) int64 {
	t.Helper()
	ctx := context.Background()
	p, err := f.repo.Create(ctx, participants.CreateParams{Name: "Ada Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	if present {
		_, err = f.repo.MarkPresent(ctx, p.ID)
		require.NoError(t, err)
	}
	if evaluated {
		_, err = f.repo.SetEvaluation(ctx, p.ID, participants.Evaluation{Score: 5})
		require.NoError(t, err)
	}
	return p.ID
}

func TestIssueEligibleParticipant(t *testing.T) {
	f := newFixture(t)
	id := f.participant(t, true, true)

	cert, err := f.service.Issue(context.Background(), id)
	require.NoError(t, err)
	f.service.Wait()

	assert.Equal(t, certificates.ContentType, cert.ContentType)
	assert.Equal(t, certificates.Filename(id), cert.Filename)
	assert.NotEmpty(t, cert.Data)

	sent := f.dispatcher.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, "Go Day")
	assert.Contains(t, sent[0].Text, "Ada Lovelace")
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, cert.Filename, sent[0].Attachments[0].Filename)
	assert.Equal(t, cert.Data, sent[0].Attachments[0].Data)
}

func TestIssueNotEligible(t *testing.T) {
	tests := []struct {
		name      string
		present   bool
		evaluated bool
	}{
		{"registered only", false, false},
		{"present without evaluation", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.participant(t, tt.present, tt.evaluated)

			_, err := f.service.Issue(context.Background(), id)
			f.service.Wait()

			assert.ErrorIs(t, err, participants.ErrNotEligible)
			assert.Zero(t, f.renderer.calls)
			assert.Empty(t, f.dispatcher.messages())
		})
	}
}

func TestIssueUnknownParticipant(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Issue(context.Background(), 404)

	assert.ErrorIs(t, err, participants.ErrNotFound)
	assert.Zero(t, f.renderer.calls)
}

func TestIssueTwiceRunsFullPipeline(t *testing.T) {
	f := newFixture(t)
	id := f.participant(t, true, true)

	_, err := f.service.Issue(context.Background(), id)
	require.NoError(t, err)
	_, err = f.service.Issue(context.Background(), id)
	require.NoError(t, err)
	f.service.Wait()

	assert.Equal(t, 2, f.renderer.calls)
	assert.Len(t, f.dispatcher.messages(), 2)
}

func TestIssueRenderFailureSkipsDispatch(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.New("font missing")
	id := f.participant(t, true, true)

	_, err := f.service.Issue(context.Background(), id)
	f.service.Wait()

	assert.ErrorIs(t, err, certificates.ErrRender)
	assert.Empty(t, f.dispatcher.messages())
}

func TestIssueDeliveryFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("smtp down")
	id := f.participant(t, true, true)

	cert, err := f.service.Issue(context.Background(), id)
	f.service.Wait()

	require.NoError(t, err)
	assert.NotEmpty(t, cert.Data)
	assert.Contains(t, f.logs.String(), "certificate email failed")
}

func TestIssueDispatchOutlivesRequestContext(t *testing.T) {
	f := newFixture(t)
	id := f.participant(t, true, true)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.service.Issue(ctx, id)
	cancel()
	f.service.Wait()

	require.NoError(t, err)
	assert.Len(t, f.dispatcher.messages(), 1)
}
