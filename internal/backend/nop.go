package backend

import (
	"context"
	"time"

	"schedmatch/internal/domain"
)

// Nop is the collaborator used when no backend URL is configured: refreshes
// return nothing (the engine keeps its seeded availability) and
// notifications go nowhere.
type Nop struct{}

func (Nop) FetchRecruiterSlots(ctx context.Context, recruiterID string, rangeStart, rangeEnd time.Time, slotMinutes int) ([]domain.Interval, error) {
	return nil, nil
}

func (Nop) OfferSent(ctx context.Context, sess domain.Session, slots []domain.Interval) error {
	return nil
}

func (Nop) NoMatch(ctx context.Context, sess domain.Session, slots []domain.Interval) error {
	return nil
}

func (Nop) MatchConfirmed(ctx context.Context, sess domain.Session, m domain.Match) error {
	return nil
}
