package store

import (
	"context"

	"schedmatch/internal/domain"
)

// SessionRepository persists one record per recruiter/candidate pairing.
// The state machine remains the owner of live session state; the repository
// is a durable mirror written after each transition and read back on
// restart.
type SessionRepository interface {
	Upsert(ctx context.Context, sess domain.Session) (domain.Session, error)
	Get(ctx context.Context, recruiterID, candidateID string) (domain.Session, error)
	Delete(ctx context.Context, recruiterID, candidateID string) error
}
