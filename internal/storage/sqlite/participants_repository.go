package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/Togather-Foundation/attendance/internal/metrics"
)

// ParticipantRepository implements participants.Repository on SQLite.
type ParticipantRepository struct {
	db  *sql.DB
	now func() time.Time
}

const selectParticipant = `
SELECT
	id,
	name,
	email,
	present,
	evaluation_score,
	evaluation_comment,
	registered_at
FROM participants
`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ParticipantRepository) Create(ctx context.Context, params participants.CreateParams) (_ *participants.Participant, err error) {
	defer observe("participants_create", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	registeredAt := r.clock().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO participants (name, email, present, registered_at)
VALUES (?, ?, 0, ?)
`, params.Name, params.Email, registeredAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}

	return &participants.Participant{
		ID:           id,
		Name:         params.Name,
		Email:        params.Email,
		RegisteredAt: time.UnixMilli(registeredAt.UnixMilli()).UTC(),
	}, nil
}

func (r *ParticipantRepository) Get(ctx context.Context, id int64) (_ *participants.Participant, err error) {
	defer observe("participants_get", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return getParticipant(ctx, r.db, id)
}

func (r *ParticipantRepository) List(ctx context.Context) (_ []participants.Participant, err error) {
	defer observe("participants_list", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectParticipant+"ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	list := make([]participants.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return list, nil
}

func (r *ParticipantRepository) MarkPresent(ctx context.Context, id int64) (_ *participants.Participant, err error) {
	defer observe("participants_mark_present", time.Now(), &err)

	var out *participants.Participant
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE participants SET present = 1 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("mark present: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark present: %w", err)
		}
		if affected == 0 {
			return participants.ErrNotFound
		}
		out, err = getParticipant(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetEvaluation writes the evaluation only if the row is present, so the
// eligibility check and the update happen in one statement.
func (r *ParticipantRepository) SetEvaluation(ctx context.Context, id int64, evaluation participants.Evaluation) (_ *participants.Participant, err error) {
	defer observe("participants_set_evaluation", time.Now(), &err)

	var out *participants.Participant
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE participants
SET evaluation_score = ?, evaluation_comment = ?
WHERE id = ? AND present = 1
`, evaluation.Score, evaluation.Comment, id)
		if err != nil {
			return fmt.Errorf("set evaluation: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("set evaluation: %w", err)
		}
		if affected == 0 {
			if _, err := getParticipant(ctx, tx, id); err != nil {
				return err
			}
			return participants.ErrNotEligible
		}
		out, err = getParticipant(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ParticipantRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ParticipantRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after error %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// observe records query metrics. Missing rows and ineligible participants
// are expected outcomes, not database errors.
func observe(operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, participants.ErrNotFound) || errors.Is(err, participants.ErrNotEligible) {
		err = nil
	}
	metrics.RecordQuery(operation, start, err)
}

func (r *ParticipantRepository) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func getParticipant(ctx context.Context, q queryer, id int64) (*participants.Participant, error) {
	row := q.QueryRowContext(ctx, selectParticipant+"WHERE id = ?", id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, participants.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(s scanner) (*participants.Participant, error) {
	var (
		p            participants.Participant
		present      int64
		score        sql.NullInt64
		comment      sql.NullString
		registeredAt int64
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Email, &present, &score, &comment, &registeredAt); err != nil {
		return nil, err
	}
	p.Present = present == 1
	if score.Valid {
		p.Evaluation = &participants.Evaluation{
			Score:   int(score.Int64),
			Comment: comment.String,
		}
	}
	p.RegisteredAt = time.UnixMilli(registeredAt).UTC()
	return &p, nil
}
