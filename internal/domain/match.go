package domain

import "time"

// Match is one proposed instant falling inside one free interval.
type Match struct {
	ProposedInstant time.Time `json:"proposedInstant"`
	Interval        Interval  `json:"interval"`
	TieBreakRank    int       `json:"tieBreakRank"`
}

// FindMatches normalizes every proposed string independently and matches the
// valid ones against intervals. Unparseable entries are dropped, not fatal:
// the upstream free-text extraction is noisy and partial success is the
// expected case.
func FindMatches(proposed []string, intervals []Interval) []Match {
	instants := make([]time.Time, 0, len(proposed))
	for _, raw := range proposed {
		t, err := ParseInstant(raw)
		if err != nil {
			continue
		}
		instants = append(instants, t)
	}
	return MatchInstants(instants, intervals)
}

// MatchInstants scans free intervals in the given order and takes, for each
// proposed instant, the first interval with start <= t < end. First-fit, not
// best-fit: ties are broken by store order, and one interval may be matched
// by several proposed instants.
func MatchInstants(proposed []time.Time, intervals []Interval) []Match {
	out := make([]Match, 0, len(proposed))
	for _, t := range proposed {
		for _, iv := range intervals {
			if !iv.Free {
				continue
			}
			if iv.Contains(t) {
				out = append(out, Match{
					ProposedInstant: t,
					Interval:        iv,
					TieBreakRank:    len(out),
				})
				break
			}
		}
	}
	return out
}

// SelectBest returns the first match in discovery order: the earliest
// proposed slot, in the candidate's stated order, that found a free
// interval. No scoring beyond that.
func SelectBest(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}
