package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Stage string

const (
	StageCreated          Stage = "created"
	StageOffered          Stage = "offered"
	StageResponseReceived Stage = "response_received"
	StageConfirmed        Stage = "confirmed"
	StageUnmatched        Stage = "unmatched"
)

// Terminal reports whether the stage accepts no further events. Unmatched is
// terminal for evaluation but may re-enter Offered on a retry offer.
func (s Stage) Terminal() bool {
	return s == StageConfirmed || s == StageUnmatched
}

// ErrInvalidTransition is returned when an event is not valid for the
// session's current stage. The session is left unchanged.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session is one recruiter/candidate pairing driven through the offer →
// response → confirm lifecycle. It is owned exclusively by the session
// service and mutated only through its transitions.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID            uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	RecruiterID   string      `bun:"recruiter_id,notnull" json:"recruiterId"`
	CandidateID   string      `bun:"candidate_id,notnull" json:"candidateId"`
	Stage         Stage       `bun:"stage,notnull" json:"stage"`
	ProposedSlots []time.Time `bun:"proposed_slots,array" json:"proposedSlots"`

	// ConfirmedMatch is runtime state; only the matched interval bounds are
	// persisted.
	ConfirmedMatch *Match     `bun:"-" json:"confirmedMatch,omitempty"`
	ConfirmedStart *time.Time `bun:"confirmed_start" json:"-"`
	ConfirmedEnd   *time.Time `bun:"confirmed_end" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (s *Session) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// Clone returns a deep copy safe to hand outside the owning service.
func (s Session) Clone() Session {
	out := s
	if s.ProposedSlots != nil {
		out.ProposedSlots = append([]time.Time(nil), s.ProposedSlots...)
	}
	if s.ConfirmedMatch != nil {
		m := *s.ConfirmedMatch
		out.ConfirmedMatch = &m
	}
	if s.ConfirmedStart != nil {
		t := *s.ConfirmedStart
		out.ConfirmedStart = &t
	}
	if s.ConfirmedEnd != nil {
		t := *s.ConfirmedEnd
		out.ConfirmedEnd = &t
	}
	return out
}
