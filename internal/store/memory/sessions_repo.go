// Package memory backs databaseless runs: same contract as the Postgres
// repository, no durability across restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"schedmatch/internal/domain"
	"schedmatch/internal/store"
)

type SessionRepo struct {
	mu   sync.Mutex
	rows map[key]domain.Session
}

type key struct {
	recruiterID string
	candidateID string
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{rows: make(map[key]domain.Session)}
}

func (r *SessionRepo) Upsert(ctx context.Context, sess domain.Session) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{recruiterID: sess.RecruiterID, candidateID: sess.CandidateID}
	now := time.Now().UTC()

	if existing, ok := r.rows[k]; ok {
		sess.ID = existing.ID
		sess.CreatedAt = existing.CreatedAt
		sess.UpdatedAt = now
	} else {
		if sess.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return domain.Session{}, err
			}
			sess.ID = id
		}
		if sess.CreatedAt.IsZero() {
			sess.CreatedAt = now
		}
		sess.UpdatedAt = now
	}

	r.rows[k] = sess.Clone()
	return sess, nil
}

func (r *SessionRepo) Get(ctx context.Context, recruiterID, candidateID string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[key{recruiterID: recruiterID, candidateID: candidateID}]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return row.Clone(), nil
}

func (r *SessionRepo) Delete(ctx context.Context, recruiterID, candidateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{recruiterID: recruiterID, candidateID: candidateID}
	if _, ok := r.rows[k]; !ok {
		return store.ErrNotFound
	}
	delete(r.rows, k)
	return nil
}
