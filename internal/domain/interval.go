package domain

import "time"

// Interval is one recruiter-offered slot. The (Start, End) pair is its
// identity and the mutation key for booking; Start < End always.
type Interval struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Free            bool      `json:"free"`
	DurationMinutes int       `json:"durationMinutes"`
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// SameIdentity reports whether two intervals describe the same offer slot,
// ignoring the booked flag.
func (iv Interval) SameIdentity(start, end time.Time) bool {
	return iv.Start.Equal(start) && iv.End.Equal(end)
}

// GenerateDefaultAvailability produces one free interval per slotMinutes
// block for each weekday in [today, today+windowDays), for hours in
// [startHour, endHour), all in UTC. Saturdays and Sundays are skipped.
// today is truncated to midnight UTC before generation.
func GenerateDefaultAvailability(today time.Time, windowDays, startHour, endHour, slotMinutes int) []Interval {
	if windowDays <= 0 || slotMinutes <= 0 || endHour <= startHour {
		return nil
	}

	base := today.UTC()
	base = time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	slotLen := time.Duration(slotMinutes) * time.Minute

	out := make([]Interval, 0, windowDays*(endHour-startHour))
	for day := 0; day < windowDays; day++ {
		date := base.AddDate(0, 0, day)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dayStart := date.Add(time.Duration(startHour) * time.Hour)
		dayEnd := date.Add(time.Duration(endHour) * time.Hour)
		for s := dayStart; !s.Add(slotLen).After(dayEnd); s = s.Add(slotLen) {
			out = append(out, Interval{
				Start:           s,
				End:             s.Add(slotLen),
				Free:            true,
				DurationMinutes: slotMinutes,
			})
		}
	}
	return out
}
