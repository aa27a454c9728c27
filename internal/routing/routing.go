// Package routing is the broker's pluggable "which insurer next" rule. A
// Policy is a pure function of the submission, the candidate snapshot and
// the attempt number.
package routing

import (
	"InsMarket/internal/event"
	"fmt"
	"slices"
)

const (
	KindRoundRobin     = "round_robin"
	KindCapacityRanked = "capacity_ranked"
)

// Submission is the broker-side view of a placement in progress.
type Submission struct {
	ID        event.SubmissionID
	InsuredID event.InsuredID
	Risk      event.Risk
	// Start is the broker's rotation cursor when the submission was opened.
	Start int
}

// Candidate is an insurer as seen by the broker on the quote day.
type Candidate struct {
	ID        event.InsurerID
	Capital   int64
	Insolvent bool
}

type Policy interface {
	// Select returns the insurer to solicit on the given 1-based attempt.
	// ok is false when there is no one to ask.
	Select(sub Submission, candidates []Candidate, attempt int) (id event.InsurerID, ok bool)
}

// RoundRobin walks the insurers in ID order starting at the submission's
// cursor position.
type RoundRobin struct{}

func (RoundRobin) Select(sub Submission, candidates []Candidate, attempt int) (event.InsurerID, bool) {
	if len(candidates) == 0 || attempt < 1 {
		return 0, false
	}
	ordered := slices.Clone(candidates)
	slices.SortFunc(ordered, func(a, b Candidate) int { return int(a.ID) - int(b.ID) })

	idx := (sub.Start + attempt - 1) % len(ordered)
	if idx < 0 {
		idx += len(ordered)
	}
	return ordered[idx].ID, true
}

// CapacityRanked solicits solvent insurers in descending capital order,
// ties broken by ID; insolvent insurers rank last.
type CapacityRanked struct{}

func (CapacityRanked) Select(_ Submission, candidates []Candidate, attempt int) (event.InsurerID, bool) {
	if len(candidates) == 0 || attempt < 1 {
		return 0, false
	}
	ranked := slices.Clone(candidates)
	slices.SortFunc(ranked, func(a, b Candidate) int {
		if a.Insolvent != b.Insolvent {
			if a.Insolvent {
				return 1
			}
			return -1
		}
		if a.Capital != b.Capital {
			if a.Capital > b.Capital {
				return -1
			}
			return 1
		}
		return int(a.ID) - int(b.ID)
	})
	return ranked[(attempt-1)%len(ranked)].ID, true
}

// New builds the Policy named by kind.
func New(kind string) (Policy, error) {
	switch kind {
	case KindRoundRobin:
		return RoundRobin{}, nil
	case KindCapacityRanked:
		return CapacityRanked{}, nil
	default:
		return nil, fmt.Errorf("unknown routing kind %q", kind)
	}
}
