// Package backend talks to the external mail/calendar collaborator. The
// engine core never blocks on it: slot fetches fall back to existing
// availability on failure, and notifications are fire-and-forget.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"schedmatch/internal/domain"
)

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

type slotsResponse struct {
	Slots []struct {
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
	} `json:"slots"`
}

// FetchRecruiterSlots asks the collaborator for fresher availability.
// Every returned pair is assumed slotMinutes long and free. An empty list is
// a valid "no fresher data" answer; pairs with unparseable bounds are
// skipped.
func (c *Client) FetchRecruiterSlots(ctx context.Context, recruiterID string, rangeStart, rangeEnd time.Time, slotMinutes int) ([]domain.Interval, error) {
	q := url.Values{}
	q.Set("recruiterId", recruiterID)
	q.Set("durationMinutes", strconv.Itoa(slotMinutes))
	if !rangeStart.IsZero() {
		q.Set("start", rangeStart.UTC().Format(time.RFC3339))
	}
	if !rangeEnd.IsZero() {
		q.Set("end", rangeEnd.UTC().Format(time.RFC3339))
	}

	body, err := c.do(ctx, http.MethodGet, "/recruiterSlots?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp slotsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode recruiter slots: %w", err)
	}

	out := make([]domain.Interval, 0, len(resp.Slots))
	for _, s := range resp.Slots {
		start, err := domain.ParseInstant(s.StartTime)
		if err != nil {
			continue
		}
		end, err := domain.ParseInstant(s.EndTime)
		if err != nil {
			continue
		}
		if !start.Before(end) {
			continue
		}
		out = append(out, domain.Interval{
			Start:           start,
			End:             end,
			Free:            true,
			DurationMinutes: slotMinutes,
		})
	}
	return out, nil
}

type offerPayload struct {
	RecruiterID string            `json:"recruiterId"`
	CandidateID string            `json:"candidateId"`
	Slots       []domain.Interval `json:"slots"`
}

// OfferSent hands the collaborator the slots to present to the candidate.
// Email prose is composed on the collaborator side.
func (c *Client) OfferSent(ctx context.Context, sess domain.Session, slots []domain.Interval) error {
	_, err := c.post(ctx, "/sendOffer", offerPayload{
		RecruiterID: sess.RecruiterID,
		CandidateID: sess.CandidateID,
		Slots:       slots,
	})
	return err
}

// NoMatch asks the collaborator to follow up with alternative slots.
func (c *Client) NoMatch(ctx context.Context, sess domain.Session, slots []domain.Interval) error {
	_, err := c.post(ctx, "/sendFollowUp", offerPayload{
		RecruiterID: sess.RecruiterID,
		CandidateID: sess.CandidateID,
		Slots:       slots,
	})
	return err
}

type confirmedPayload struct {
	RecruiterID string    `json:"recruiterId"`
	CandidateID string    `json:"candidateId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// MatchConfirmed emits the booked interval for confirmation mail and
// calendar-event creation. Downstream failure does not roll the session
// back.
func (c *Client) MatchConfirmed(ctx context.Context, sess domain.Session, m domain.Match) error {
	_, err := c.post(ctx, "/createEvent", confirmedPayload{
		RecruiterID: sess.RecruiterID,
		CandidateID: sess.CandidateID,
		StartTime:   m.Interval.Start,
		EndTime:     m.Interval.End,
	})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, b)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var r struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(out, &r)
		if r.Message != "" {
			return nil, fmt.Errorf("backend %s %s failed: %s (status=%d)", method, path, r.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("backend %s %s failed (status=%d)", method, path, resp.StatusCode)
	}
	return out, nil
}
