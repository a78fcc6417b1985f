package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"schedmatch/internal/domain"
	"schedmatch/internal/store"
	"schedmatch/internal/store/memory"
)

// now is pinned to a Wednesday so that Monday 2025-08-25 falls inside the
// default 14-day window.
var testNow = time.Date(2025, 8, 20, 8, 0, 0, 0, time.UTC)

type fakeCollaborator struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, recruiterID string, rangeStart, rangeEnd time.Time, slotMinutes int) ([]domain.Interval, error)

	offers      int
	followUps   int
	confirmed   []domain.Match
	offerSlots  [][]domain.Interval
	followSlots [][]domain.Interval
}

func (f *fakeCollaborator) FetchRecruiterSlots(ctx context.Context, recruiterID string, rangeStart, rangeEnd time.Time, slotMinutes int) ([]domain.Interval, error) {
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(ctx, recruiterID, rangeStart, rangeEnd, slotMinutes)
}

func (f *fakeCollaborator) OfferSent(ctx context.Context, sess domain.Session, slots []domain.Interval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	f.offerSlots = append(f.offerSlots, slots)
	return nil
}

func (f *fakeCollaborator) NoMatch(ctx context.Context, sess domain.Session, slots []domain.Interval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps++
	f.followSlots = append(f.followSlots, slots)
	return nil
}

func (f *fakeCollaborator) MatchConfirmed(ctx context.Context, sess domain.Session, m domain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, m)
	return nil
}

func newTestService(collab *fakeCollaborator) *Service {
	return NewService(collab, memory.NewSessionRepo(), Config{
		WindowDays:  14,
		StartHour:   9,
		EndHour:     17,
		SlotMinutes: 60,
		Now:         func() time.Time { return testNow },
	}, nil)
}

func TestStart_Validation(t *testing.T) {
	svc := newTestService(&fakeCollaborator{})

	_, err := svc.Start(context.Background(), "", "candidate@example.com")
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}

	_, err = svc.Start(context.Background(), "recruiter@company.com", "  ")
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestStart_SeedsWeekdayAvailability(t *testing.T) {
	svc := newTestService(&fakeCollaborator{})
	ctx := context.Background()

	sess, err := svc.Start(ctx, "recruiter@company.com", "candidate@example.com")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if sess.Stage != domain.StageCreated {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageCreated)
	}

	st := svc.Availability("recruiter@company.com")
	if st.Len() == 0 {
		t.Fatalf("availability not seeded")
	}

	// Saturday 2025-08-23 must have no slots.
	saturday := time.Date(2025, 8, 23, 0, 0, 0, 0, time.UTC)
	if got := st.Query(saturday, saturday.Add(24*time.Hour)); len(got) != 0 {
		t.Fatalf("found %d Saturday slots, want 0", len(got))
	}
}

func TestStart_IdempotentForLiveSession(t *testing.T) {
	svc := newTestService(&fakeCollaborator{})
	ctx := context.Background()

	first, err := svc.Start(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := svc.SendOffer(ctx, "r1", "c1"); err != nil {
		t.Fatalf("SendOffer error: %v", err)
	}

	again, err := svc.Start(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("second Start error: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("second Start replaced a live session")
	}
	if again.Stage != domain.StageOffered {
		t.Fatalf("stage = %q, want %q", again.Stage, domain.StageOffered)
	}
}

func TestSendOffer_TransitionsAndNotifies(t *testing.T) {
	collab := &fakeCollaborator{}
	svc := newTestService(collab)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "r1", "c1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	sess, err := svc.SendOffer(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("SendOffer error: %v", err)
	}
	if sess.Stage != domain.StageOffered {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageOffered)
	}
	if collab.offers != 1 {
		t.Fatalf("offers = %d, want 1", collab.offers)
	}
	if len(collab.offerSlots[0]) == 0 || len(collab.offerSlots[0]) > 5 {
		t.Fatalf("offer slot count = %d, want 1..5", len(collab.offerSlots[0]))
	}

	// Offering an already-offered session is an invalid transition.
	if _, err := svc.SendOffer(ctx, "r1", "c1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSendOffer_EmptyAvailability(t *testing.T) {
	// A 2-day window starting Saturday generates nothing.
	svc := NewService(&fakeCollaborator{}, nil, Config{
		WindowDays:  2,
		StartHour:   9,
		EndHour:     17,
		SlotMinutes: 60,
		Now:         func() time.Time { return time.Date(2025, 8, 23, 8, 0, 0, 0, time.UTC) },
	}, nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "r1", "c1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	_, err := svc.SendOffer(ctx, "r1", "c1")
	if !errors.Is(err, ErrEmptyAvailability) {
		t.Fatalf("err = %v, want ErrEmptyAvailability", err)
	}

	sess, err := svc.Status(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if sess.Stage != domain.StageCreated {
		t.Fatalf("stage = %q after failed offer, want %q", sess.Stage, domain.StageCreated)
	}
}

func TestIngestResponse_EndToEndConfirmation(t *testing.T) {
	collab := &fakeCollaborator{}
	svc := newTestService(collab)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "recruiter@company.com", "candidate@example.com"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := svc.SendOffer(ctx, "recruiter@company.com", "candidate@example.com"); err != nil {
		t.Fatalf("SendOffer error: %v", err)
	}

	sess, err := svc.IngestResponse(ctx, "recruiter@company.com", "candidate@example.com",
		[]string{"2025-08-25T09:30:00Z"})
	if err != nil {
		t.Fatalf("IngestResponse error: %v", err)
	}

	if sess.Stage != domain.StageConfirmed {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageConfirmed)
	}
	if sess.ConfirmedMatch == nil {
		t.Fatalf("confirmed match missing")
	}
	wantStart := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
	if !sess.ConfirmedMatch.Interval.Start.Equal(wantStart) || !sess.ConfirmedMatch.Interval.End.Equal(wantEnd) {
		t.Fatalf("confirmed interval = %v-%v, want %v-%v",
			sess.ConfirmedMatch.Interval.Start, sess.ConfirmedMatch.Interval.End, wantStart, wantEnd)
	}

	// The winning interval is no longer bookable.
	st := svc.Availability("recruiter@company.com")
	if st.Book(wantStart, wantEnd) {
		t.Fatalf("interval still bookable after confirmation")
	}
	if len(collab.confirmed) != 1 {
		t.Fatalf("confirmations = %d, want 1", len(collab.confirmed))
	}
}

func TestIngestResponse_DroppedSlotsDoNotAbort(t *testing.T) {
	svc := newTestService(&fakeCollaborator{})
	ctx := context.Background()

	svc.Start(ctx, "r1", "c1")
	svc.SendOffer(ctx, "r1", "c1")

	sess, err := svc.IngestResponse(ctx, "r1", "c1",
		[]string{"next Tuesday morning", "2025-08-25T09:30:00Z", "???"})
	if err != nil {
		t.Fatalf("IngestResponse error: %v", err)
	}
	if sess.Stage != domain.StageConfirmed {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageConfirmed)
	}
	if len(sess.ProposedSlots) != 1 {
		t.Fatalf("proposed slots = %d, want 1 (two dropped)", len(sess.ProposedSlots))
	}
}

func TestIngestResponse_NoIntersectionLandsUnmatched(t *testing.T) {
	collab := &fakeCollaborator{}
	svc := newTestService(collab)
	ctx := context.Background()

	svc.Start(ctx, "r1", "c1")
	svc.SendOffer(ctx, "r1", "c1")

	// Sunday: never inside seeded availability.
	sess, err := svc.IngestResponse(ctx, "r1", "c1", []string{"2025-08-24T10:00:00Z"})
	if err != nil {
		t.Fatalf("IngestResponse error: %v", err)
	}
	if sess.Stage != domain.StageUnmatched {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageUnmatched)
	}
	if collab.followUps != 1 {
		t.Fatalf("follow-ups = %d, want 1", collab.followUps)
	}

	// Unmatched may re-enter Offered on retry.
	retry, err := svc.SendOffer(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("retry SendOffer error: %v", err)
	}
	if retry.Stage != domain.StageOffered {
		t.Fatalf("stage = %q after retry, want %q", retry.Stage, domain.StageOffered)
	}
}

func TestInvalidTransitions(t *testing.T) {
	svc := newTestService(&fakeCollaborator{})
	ctx := context.Background()

	svc.Start(ctx, "r1", "c1")

	// Response before any offer.
	if _, err := svc.IngestResponse(ctx, "r1", "c1", []string{"2025-08-25T09:30:00Z"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	// Evaluate without a response.
	if _, err := svc.Evaluate(ctx, "r1", "c1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	// Unknown pairing.
	if _, err := svc.SendOffer(ctx, "r1", "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfirmedSession_RejectsResponseAndIgnoresEvaluate(t *testing.T) {
	collab := &fakeCollaborator{}
	svc := newTestService(collab)
	ctx := context.Background()

	svc.Start(ctx, "r1", "c1")
	svc.SendOffer(ctx, "r1", "c1")
	svc.IngestResponse(ctx, "r1", "c1", []string{"2025-08-25T09:30:00Z"})

	// A new response on a confirmed session is a reschedule request, which
	// is not supported.
	if _, err := svc.IngestResponse(ctx, "r1", "c1", []string{"2025-08-26T09:30:00Z"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// Evaluate is a no-op; booking must not run twice.
	sess, err := svc.Evaluate(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("Evaluate on confirmed session error: %v", err)
	}
	if sess.Stage != domain.StageConfirmed {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageConfirmed)
	}
	if len(collab.confirmed) != 1 {
		t.Fatalf("confirmations = %d, want 1", len(collab.confirmed))
	}
}

func TestConcurrentEvaluate_ExactlyOneWinner(t *testing.T) {
	collab := &fakeCollaborator{}
	svc := newTestService(collab)
	ctx := context.Background()

	// Two candidates of the same recruiter race for the same slot.
	for _, c := range []string{"c1", "c2"} {
		if _, err := svc.Start(ctx, "r1", c); err != nil {
			t.Fatalf("Start(%s) error: %v", c, err)
		}
		if _, err := svc.SendOffer(ctx, "r1", c); err != nil {
			t.Fatalf("SendOffer(%s) error: %v", c, err)
		}
	}

	var wg sync.WaitGroup
	for _, c := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(candidate string) {
			defer wg.Done()
			if _, err := svc.IngestResponse(ctx, "r1", candidate, []string{"2025-08-25T09:30:00Z"}); err != nil {
				t.Errorf("IngestResponse(%s) error: %v", candidate, err)
			}
		}(c)
	}
	wg.Wait()

	stages := make(map[domain.Stage]int)
	for _, c := range []string{"c1", "c2"} {
		sess, err := svc.Status(ctx, "r1", c)
		if err != nil {
			t.Fatalf("Status(%s) error: %v", c, err)
		}
		stages[sess.Stage]++
	}
	if stages[domain.StageConfirmed] != 1 || stages[domain.StageUnmatched] != 1 {
		t.Fatalf("stages = %v, want exactly one confirmed and one unmatched", stages)
	}
	if len(collab.confirmed) != 1 {
		t.Fatalf("confirmations = %d, want 1", len(collab.confirmed))
	}
}

func TestRefresh_KeepsStaleAvailabilityOnEmptyFetch(t *testing.T) {
	day := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	fresh := []domain.Interval{{
		Start:           day.Add(13 * time.Hour),
		End:             day.Add(14 * time.Hour),
		Free:            true,
		DurationMinutes: 60,
	}}

	calls := 0
	collab := &fakeCollaborator{
		fetchFn: func(ctx context.Context, recruiterID string, rangeStart, rangeEnd time.Time, slotMinutes int) ([]domain.Interval, error) {
			calls++
			if calls == 1 {
				return fresh, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(collab)
	ctx := context.Background()

	svc.Start(ctx, "r1", "c1") // first fetch installs the backend set
	st := svc.Availability("r1")
	if st.Len() != 1 {
		t.Fatalf("Len = %d after refresh, want 1", st.Len())
	}

	svc.SendOffer(ctx, "r1", "c1") // second fetch is empty; set must survive
	if st.Len() != 1 {
		t.Fatalf("Len = %d after empty refresh, want 1", st.Len())
	}
}

func TestStatus_FallsBackToRepositoryAfterRestart(t *testing.T) {
	repo := memory.NewSessionRepo()
	cfg := Config{
		WindowDays: 14, StartHour: 9, EndHour: 17, SlotMinutes: 60,
		Now: func() time.Time { return testNow },
	}
	ctx := context.Background()

	svc1 := NewService(&fakeCollaborator{}, repo, cfg, nil)
	svc1.Start(ctx, "r1", "c1")
	svc1.SendOffer(ctx, "r1", "c1")

	// A new service sharing the repository sees the persisted record.
	svc2 := NewService(&fakeCollaborator{}, repo, cfg, nil)
	sess, err := svc2.Status(ctx, "r1", "c1")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if sess.Stage != domain.StageOffered {
		t.Fatalf("stage = %q, want %q", sess.Stage, domain.StageOffered)
	}
}
