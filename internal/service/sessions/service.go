package sessions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"schedmatch/internal/availability"
	"schedmatch/internal/domain"
	"schedmatch/internal/store"
)

// ErrEmptyAvailability means seed and refresh both produced nothing, so an
// offer cannot be sent.
var ErrEmptyAvailability = errors.New("no availability to offer")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Collaborator is the external mail/calendar boundary. Slot fetches feed
// availability refreshes; the notify methods are fire-and-forget.
type Collaborator interface {
	FetchRecruiterSlots(ctx context.Context, recruiterID string, rangeStart, rangeEnd time.Time, slotMinutes int) ([]domain.Interval, error)
	OfferSent(ctx context.Context, sess domain.Session, slots []domain.Interval) error
	NoMatch(ctx context.Context, sess domain.Session, slots []domain.Interval) error
	MatchConfirmed(ctx context.Context, sess domain.Session, m domain.Match) error
}

type Config struct {
	WindowDays  int
	StartHour   int
	EndHour     int
	SlotMinutes int

	// Now is replaceable for tests; defaults to time.Now.
	Now func() time.Time
}

const offerSlotLimit = 5

// Service owns every live session and drives each one through the offer →
// response → confirm lifecycle. Availability is shared per recruiter across
// that recruiter's sessions; each session is mutated only under its own
// lock.
type Service struct {
	cfg    Config
	collab Collaborator
	repo   store.SessionRepository
	log    *slog.Logger

	mu       sync.Mutex
	sessions map[Key]*session
	avail    map[string]*availability.Store
}

type Key struct {
	RecruiterID string
	CandidateID string
}

type session struct {
	mu sync.Mutex
	s  domain.Session
}

func NewService(collab Collaborator, repo store.SessionRepository, cfg Config, log *slog.Logger) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 60
	}
	if cfg.EndHour <= cfg.StartHour {
		cfg.StartHour, cfg.EndHour = 9, 17
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		collab:   collab,
		repo:     repo,
		log:      log.With(slog.String("component", "sessions")),
		sessions: make(map[Key]*session),
		avail:    make(map[string]*availability.Store),
	}
}

// Start creates the session for a recruiter/candidate pairing and seeds or
// refreshes the recruiter's availability. Exactly one session per pairing is
// active at a time: starting over a live session returns it unchanged, while
// a terminal session is replaced.
func (svc *Service) Start(ctx context.Context, recruiterID, candidateID string) (domain.Session, error) {
	recruiterID = strings.TrimSpace(recruiterID)
	candidateID = strings.TrimSpace(candidateID)
	if recruiterID == "" {
		return domain.Session{}, validationError("recruiter_id is required")
	}
	if candidateID == "" {
		return domain.Session{}, validationError("candidate_id is required")
	}

	key := Key{RecruiterID: recruiterID, CandidateID: candidateID}

	svc.mu.Lock()
	if existing, ok := svc.sessions[key]; ok {
		existing.mu.Lock()
		if !existing.s.Stage.Terminal() {
			snap := existing.s.Clone()
			existing.mu.Unlock()
			svc.mu.Unlock()
			return snap, nil
		}
		existing.mu.Unlock()
	}

	id, err := uuid.NewV7()
	if err != nil {
		svc.mu.Unlock()
		return domain.Session{}, err
	}
	sess := &session{s: domain.Session{
		ID:            id,
		RecruiterID:   recruiterID,
		CandidateID:   candidateID,
		Stage:         domain.StageCreated,
		ProposedSlots: []time.Time{},
	}}
	svc.sessions[key] = sess
	st := svc.availabilityLocked(recruiterID)
	svc.mu.Unlock()

	svc.refreshOrSeed(ctx, recruiterID, st)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	svc.persist(ctx, &sess.s)

	svc.log.Info("session started",
		slog.String("session_id", sess.s.ID.String()),
		slog.String("recruiter_id", recruiterID),
		slog.String("candidate_id", candidateID),
		slog.Int("availability", st.Len()),
	)
	return sess.s.Clone(), nil
}

// SendOffer moves Created or Unmatched to Offered. Guard: availability must
// be non-empty after a refresh-or-seed; otherwise the session is left
// unchanged and ErrEmptyAvailability is returned.
func (svc *Service) SendOffer(ctx context.Context, recruiterID, candidateID string) (domain.Session, error) {
	sess, st, err := svc.lookup(recruiterID, candidateID)
	if err != nil {
		return domain.Session{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.s.Stage != domain.StageCreated && sess.s.Stage != domain.StageUnmatched {
		return domain.Session{}, domain.ErrInvalidTransition
	}

	svc.refreshOrSeed(ctx, recruiterID, st)
	if st.FreeCount() == 0 {
		return domain.Session{}, ErrEmptyAvailability
	}

	sess.s.Stage = domain.StageOffered
	svc.persist(ctx, &sess.s)

	slots := svc.offerSlots(st)
	if err := svc.collab.OfferSent(ctx, sess.s, slots); err != nil {
		svc.log.Warn("offer notification failed", slog.Any("err", err),
			slog.String("session_id", sess.s.ID.String()))
	}

	svc.log.Info("offer sent",
		slog.String("session_id", sess.s.ID.String()),
		slog.Int("offered_slots", len(slots)),
	)
	return sess.s.Clone(), nil
}

// IngestResponse records the candidate's proposed slots and immediately
// evaluates them. Unparseable entries reduce the proposed set but never
// abort the transition. A response arriving on a Confirmed session is a
// reschedule request, which is not supported: it is rejected as an invalid
// transition, not silently accepted.
func (svc *Service) IngestResponse(ctx context.Context, recruiterID, candidateID string, rawSlots []string) (domain.Session, error) {
	sess, st, err := svc.lookup(recruiterID, candidateID)
	if err != nil {
		return domain.Session{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.s.Stage != domain.StageOffered {
		return domain.Session{}, domain.ErrInvalidTransition
	}

	proposed := make([]time.Time, 0, len(rawSlots))
	for _, raw := range rawSlots {
		t, err := domain.ParseInstant(raw)
		if err != nil {
			svc.log.Warn("dropping proposed slot", slog.Any("err", err),
				slog.String("session_id", sess.s.ID.String()))
			continue
		}
		proposed = append(proposed, t)
	}

	sess.s.ProposedSlots = proposed
	sess.s.Stage = domain.StageResponseReceived
	svc.persist(ctx, &sess.s)

	svc.evaluateLocked(ctx, sess, st)
	return sess.s.Clone(), nil
}

// Evaluate re-drives matching for a session holding a response. On a
// Confirmed session it is a no-op: booking must not be attempted twice, and
// the stage guard is the first line of defense before Book's idempotence.
func (svc *Service) Evaluate(ctx context.Context, recruiterID, candidateID string) (domain.Session, error) {
	sess, st, err := svc.lookup(recruiterID, candidateID)
	if err != nil {
		return domain.Session{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.s.Stage == domain.StageConfirmed {
		return sess.s.Clone(), nil
	}
	if sess.s.Stage != domain.StageResponseReceived {
		return domain.Session{}, domain.ErrInvalidTransition
	}

	svc.evaluateLocked(ctx, sess, st)
	return sess.s.Clone(), nil
}

// Status returns a read-only snapshot, falling back to the persisted record
// for sessions not live in this process.
func (svc *Service) Status(ctx context.Context, recruiterID, candidateID string) (domain.Session, error) {
	key := Key{RecruiterID: strings.TrimSpace(recruiterID), CandidateID: strings.TrimSpace(candidateID)}

	svc.mu.Lock()
	sess, ok := svc.sessions[key]
	svc.mu.Unlock()

	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.s.Clone(), nil
	}
	if svc.repo == nil {
		return domain.Session{}, store.ErrNotFound
	}
	return svc.repo.Get(ctx, key.RecruiterID, key.CandidateID)
}

// Availability exposes the recruiter's store for range queries.
func (svc *Service) Availability(recruiterID string) *availability.Store {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.availabilityLocked(strings.TrimSpace(recruiterID))
}

func (svc *Service) lookup(recruiterID, candidateID string) (*session, *availability.Store, error) {
	key := Key{RecruiterID: strings.TrimSpace(recruiterID), CandidateID: strings.TrimSpace(candidateID)}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	sess, ok := svc.sessions[key]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	return sess, svc.availabilityLocked(key.RecruiterID), nil
}

func (svc *Service) availabilityLocked(recruiterID string) *availability.Store {
	st, ok := svc.avail[recruiterID]
	if !ok {
		st = availability.NewStore()
		svc.avail[recruiterID] = st
	}
	return st
}

// refreshOrSeed pulls fresher slots from the collaborator and swaps them in.
// A failed or empty refresh keeps whatever the store already holds; only a
// store with nothing at all falls back to the generated default window.
func (svc *Service) refreshOrSeed(ctx context.Context, recruiterID string, st *availability.Store) {
	now := svc.cfg.Now().UTC()
	rangeEnd := now.AddDate(0, 0, svc.cfg.WindowDays)

	fetched, err := svc.collab.FetchRecruiterSlots(ctx, recruiterID, now, rangeEnd, svc.cfg.SlotMinutes)
	if err != nil {
		svc.log.Warn("availability refresh failed", slog.Any("err", err),
			slog.String("recruiter_id", recruiterID))
	} else if n := st.Replace(fetched); n > 0 {
		svc.log.Debug("availability refreshed",
			slog.String("recruiter_id", recruiterID), slog.Int("intervals", n))
	}

	if st.Len() == 0 {
		seed := domain.GenerateDefaultAvailability(now, svc.cfg.WindowDays, svc.cfg.StartHour, svc.cfg.EndHour, svc.cfg.SlotMinutes)
		st.Seed(seed)
		svc.log.Info("availability seeded",
			slog.String("recruiter_id", recruiterID), slog.Int("intervals", len(seed)))
	}
}

// evaluateLocked runs the intersection and settles the session. Caller holds
// the session lock and guarantees stage == ResponseReceived.
func (svc *Service) evaluateLocked(ctx context.Context, sess *session, st *availability.Store) {
	svc.refreshOrSeed(ctx, sess.s.RecruiterID, st)

	matches := domain.MatchInstants(sess.s.ProposedSlots, st.Snapshot())
	best, ok := domain.SelectBest(matches)
	if !ok {
		sess.s.Stage = domain.StageUnmatched
		svc.persist(ctx, &sess.s)
		svc.log.Info("no intersection found",
			slog.String("session_id", sess.s.ID.String()),
			slog.Int("proposed", len(sess.s.ProposedSlots)),
		)
		if err := svc.collab.NoMatch(ctx, sess.s, svc.offerSlots(st)); err != nil {
			svc.log.Warn("follow-up notification failed", slog.Any("err", err),
				slog.String("session_id", sess.s.ID.String()))
		}
		return
	}

	if !st.Book(best.Interval.Start, best.Interval.End) {
		// Another session won the slot between match and book. Demote rather
		// than report a false confirmation.
		sess.s.Stage = domain.StageUnmatched
		svc.persist(ctx, &sess.s)
		svc.log.Info("booking conflict, session demoted",
			slog.String("session_id", sess.s.ID.String()),
			slog.Time("start_time", best.Interval.Start),
			slog.Time("end_time", best.Interval.End),
		)
		return
	}

	best.Interval.Free = false
	start := best.Interval.Start
	end := best.Interval.End
	sess.s.ConfirmedMatch = &best
	sess.s.ConfirmedStart = &start
	sess.s.ConfirmedEnd = &end
	sess.s.Stage = domain.StageConfirmed
	svc.persist(ctx, &sess.s)

	svc.log.Info("match confirmed",
		slog.String("session_id", sess.s.ID.String()),
		slog.Time("start_time", start),
		slog.Time("end_time", end),
	)
	if err := svc.collab.MatchConfirmed(ctx, sess.s, best); err != nil {
		svc.log.Warn("confirmation notification failed", slog.Any("err", err),
			slog.String("session_id", sess.s.ID.String()))
	}
}

func (svc *Service) offerSlots(st *availability.Store) []domain.Interval {
	now := svc.cfg.Now().UTC()
	slots := st.Query(now, now.AddDate(0, 0, svc.cfg.WindowDays))
	if len(slots) > offerSlotLimit {
		slots = slots[:offerSlotLimit]
	}
	return slots
}

func (svc *Service) persist(ctx context.Context, sess *domain.Session) {
	if svc.repo == nil {
		return
	}
	saved, err := svc.repo.Upsert(ctx, *sess)
	if err != nil {
		svc.log.Warn("session persist failed", slog.Any("err", err),
			slog.String("session_id", sess.ID.String()))
		return
	}
	sess.ID = saved.ID
	sess.CreatedAt = saved.CreatedAt
	sess.UpdatedAt = saved.UpdatedAt
}
