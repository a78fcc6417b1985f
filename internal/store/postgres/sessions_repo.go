package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"schedmatch/internal/domain"
	"schedmatch/internal/store"
)

type SessionRepo struct {
	db *bun.DB
}

func NewSessionRepo(db *bun.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Upsert writes the session record keyed by (recruiter_id, candidate_id).
// Every stage transition lands here, so the row always mirrors the latest
// state machine snapshot.
func (r *SessionRepo) Upsert(ctx context.Context, sess domain.Session) (domain.Session, error) {
	m := sess
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (recruiter_id, candidate_id) DO UPDATE").
		Set("stage = EXCLUDED.stage").
		Set("proposed_slots = EXCLUDED.proposed_slots").
		Set("confirmed_start = EXCLUDED.confirmed_start").
		Set("confirmed_end = EXCLUDED.confirmed_end").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	sess.ID = m.ID
	sess.CreatedAt = m.CreatedAt
	sess.UpdatedAt = m.UpdatedAt
	return sess, nil
}

func (r *SessionRepo) Get(ctx context.Context, recruiterID, candidateID string) (domain.Session, error) {
	var row domain.Session
	err := r.db.NewSelect().
		Model(&row).
		Where("recruiter_id = ?", recruiterID).
		Where("candidate_id = ?", candidateID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, store.ErrNotFound
		}
		return domain.Session{}, err
	}
	return row, nil
}

func (r *SessionRepo) Delete(ctx context.Context, recruiterID, candidateID string) error {
	res, err := r.db.NewDelete().
		Model((*domain.Session)(nil)).
		Where("recruiter_id = ?", recruiterID).
		Where("candidate_id = ?", candidateID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
