package gallery

import (
	"math"
	"slices"
)

// Policy holds the acceptance rules of the matcher.
type Policy struct {
	DefaultThreshold float64
	Overrides        map[int]float64 // configured per-identity thresholds, win over Entry.Threshold
	ConfidenceGap    float64
}

// ThresholdFor resolves the acceptance threshold for an identity.
func (p Policy) ThresholdFor(e *Entry) float64 {
	if t, ok := p.Overrides[e.ID]; ok {
		return t
	}
	if e.Threshold != nil {
		return *e.Threshold
	}
	return p.DefaultThreshold
}

// Match finds the identity closest to query in snap.
//
// The best candidate must be within its own threshold, and when the gallery
// holds more than one identity the second-best must be at least
// ConfidenceGap further away. A nil or empty query means the encoder could not
// produce an embedding and yields unknown.
func Match(snap *Snapshot, query []float32, p Policy) MatchResult {
	if snap.Len() == 0 {
		return unknown(ReasonEmptyGallery)
	}
	if len(query) == 0 {
		return unknown(ReasonNoEncoding)
	}

	entries := snap.entries
	bestIdx := -1
	best, second := math.Inf(1), math.Inf(1)

	score := func(i int, d float64) {
		switch {
		case d < best:
			second = best
			best, bestIdx = d, i
		case d < second:
			second = d
		}
	}

	// The shortlist only seeds best and second. The full pass still visits
	// every entry, so the result equals an exhaustive scan; entries that
	// cannot beat the current second-best are abandoned early.
	shortlist := snap.index.candidates(query)
	for _, i := range shortlist {
		score(i, EuclideanDistance(query, entries[i].Embedding))
	}
	for i := range entries {
		if slices.Contains(shortlist, i) {
			continue
		}
		if d, ok := distanceBelow(query, entries[i].Embedding, second); ok {
			score(i, d)
		}
	}

	if bestIdx < 0 {
		return unknown(ReasonAboveThreshold)
	}

	candidate := &entries[bestIdx]
	if best > p.ThresholdFor(candidate) {
		r := unknown(ReasonAboveThreshold)
		r.Distance = best
		return r
	}

	if len(entries) > 1 && second-best < p.ConfidenceGap {
		r := unknown(ReasonConfidenceGap)
		r.Distance = best
		return r
	}

	return MatchResult{
		Accepted:    true,
		ID:          candidate.ID,
		Name:        candidate.Name,
		Designation: candidate.Designation,
		Distance:    best,
		Embedding:   query,
		Reason:      ReasonAccepted,
	}
}

// Matcher matches against whatever snapshot the store holds at call time.
type Matcher struct {
	store  *Store
	policy Policy
}

// NewMatcher creates a matcher bound to a store.
func NewMatcher(store *Store, policy Policy) *Matcher {
	return &Matcher{store: store, policy: policy}
}

// Match runs Match against the current snapshot.
func (m *Matcher) Match(query []float32) MatchResult {
	return Match(m.store.Snapshot(), query, m.policy)
}

// Policy returns the matcher's acceptance rules.
func (m *Matcher) Policy() Policy {
	return m.policy
}
