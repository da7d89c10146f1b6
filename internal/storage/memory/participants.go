package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Togather-Foundation/attendance/internal/domain/participants"
)

// ParticipantRepository keeps participants in process memory. Records are lost
// on restart; it backs tests and DATABASE_DRIVER=memory.
type ParticipantRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*participants.Participant
	ordered []int64
	now     func() time.Time
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{
		nextID: 1,
		byID:   make(map[int64]*participants.Participant),
		now:    time.Now,
	}
}

func (r *ParticipantRepository) Create(ctx context.Context, params participants.CreateParams) (*participants.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &participants.Participant{
		ID:           r.nextID,
		Name:         params.Name,
		Email:        params.Email,
		RegisteredAt: r.now().UTC(),
	}
	r.nextID++
	r.byID[p.ID] = p
	r.ordered = append(r.ordered, p.ID)
	return clone(p), nil
}

func (r *ParticipantRepository) Get(ctx context.Context, id int64) (*participants.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, participants.ErrNotFound
	}
	return clone(p), nil
}

func (r *ParticipantRepository) List(ctx context.Context) ([]participants.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]participants.Participant, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, *clone(r.byID[id]))
	}
	return out, nil
}

func (r *ParticipantRepository) MarkPresent(ctx context.Context, id int64) (*participants.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, participants.ErrNotFound
	}
	p.Present = true
	return clone(p), nil
}

func (r *ParticipantRepository) SetEvaluation(ctx context.Context, id int64, evaluation participants.Evaluation) (*participants.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, participants.ErrNotFound
	}
	if !p.Present {
		return nil, participants.ErrNotEligible
	}
	p.Evaluation = &evaluation
	return clone(p), nil
}

func (r *ParticipantRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func clone(p *participants.Participant) *participants.Participant {
	out := *p
	if p.Evaluation != nil {
		ev := *p.Evaluation
		out.Evaluation = &ev
	}
	return &out
}
