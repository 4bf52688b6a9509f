// Package ranker keeps the best-scoring lines of a stream in a fixed-size,
// always-sorted buffer.
package ranker

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/scorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/linerank/pkg/errors"
)

// RankedSet holds capacity slots ordered by descending score. Unused slots
// are placeholders with score 0.
type RankedSet struct {
	slots []scorer.ScoredLine
}

func New(capacity int) (*RankedSet, error) {
	if capacity < 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfiguration, http.StatusBadRequest,
			"ranking capacity %d must be at least 1", capacity)
	}
	return &RankedSet{slots: make([]scorer.ScoredLine, capacity)}, nil
}

// Admit offers line to the set. A line only enters if its score is strictly
// greater than the lowest slot, which it then replaces before bubbling up.
// Equal scores never overtake, so earlier lines keep their rank on ties.
func (r *RankedSet) Admit(line scorer.ScoredLine) bool {
	last := len(r.slots) - 1
	if !(line.Score > r.slots[last].Score) {
		return false
	}
	r.slots[last] = line
	for i := last; i > 0 && r.slots[i].Score > r.slots[i-1].Score; i-- {
		r.slots[i], r.slots[i-1] = r.slots[i-1], r.slots[i]
	}
	return true
}

// Finalize returns the occupied slots from highest to lowest score.
func (r *RankedSet) Finalize() []scorer.ScoredLine {
	n := r.Len()
	out := make([]scorer.ScoredLine, n)
	copy(out, r.slots[:n])
	return out
}

// Len is the number of occupied slots.
func (r *RankedSet) Len() int {
	n := 0
	for n < len(r.slots) && r.slots[n].Score > 0 {
		n++
	}
	return n
}

func (r *RankedSet) Capacity() int {
	return len(r.slots)
}

// Lowest returns the score a new line has to beat.
func (r *RankedSet) Lowest() float64 {
	return r.slots[len(r.slots)-1].Score
}
