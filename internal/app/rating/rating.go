// Package rating keeps the per-worker cumulative rating.
// Scores are summed, not averaged: a worker with two 5-star completions
// has rating 10.
package rating

import (
	"fmt"
	"strings"

	"github.com/taskbay/taskbay/internal/domain"
)

// Ledger maps identities to their cumulative score. Not safe for concurrent
// use; the platform engine serializes access.
type Ledger struct {
	scores map[string]int64
}

// NewLedger creates an empty rating ledger.
func NewLedger() *Ledger {
	return &Ledger{scores: make(map[string]int64)}
}

// Restore loads persisted totals.
func (l *Ledger) Restore(totals map[domain.Address]int64) {
	l.scores = make(map[string]int64, len(totals))
	for addr, total := range totals {
		l.scores[key(addr)] = total
	}
}

// Validate checks a score is within 0..MaxRating.
func Validate(score int64) error {
	if score < 0 || score > domain.MaxRating {
		return fmt.Errorf("rating %d: %w", score, domain.ErrInvalidRating)
	}
	return nil
}

// Preview returns the total addr would have after recording score.
// The address is normalized to lower case.
func (l *Ledger) Preview(addr domain.Address, score int64) domain.RatingUpdate {
	k := key(addr)
	return domain.RatingUpdate{Address: domain.Address(k), Total: l.scores[k] + score}
}

// Apply stores a committed total.
func (l *Ledger) Apply(u domain.RatingUpdate) {
	l.scores[key(u.Address)] = u.Total
}

// Record adds score to addr's cumulative rating.
func (l *Ledger) Record(addr domain.Address, score int64) error {
	if err := Validate(score); err != nil {
		return err
	}
	l.Apply(l.Preview(addr, score))
	return nil
}

// Get returns addr's cumulative rating, 0 for unseen identities.
func (l *Ledger) Get(addr domain.Address) int64 {
	return l.scores[key(addr)]
}

// Len returns the number of rated identities.
func (l *Ledger) Len() int {
	return len(l.scores)
}

func key(addr domain.Address) string {
	return strings.ToLower(string(addr))
}
