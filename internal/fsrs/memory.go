package fsrs

import (
	"fmt"
	"math"
	"time"
)

// MemoryState holds the complete spaced-repetition state of a single card.
// It is a value type; the Scheduler never mutates its input.
type MemoryState struct {
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ElapsedDays   int        `json:"elapsed_days"`
	ScheduledDays int        `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	State         State      `json:"state"`
	LastReview    *time.Time `json:"last_review"` // nil before the first review.
}

// NewMemoryState returns the state of a card that has never been reviewed:
// State=New, all counters zero and due immediately at now.
func NewMemoryState(now time.Time) MemoryState {
	return MemoryState{
		Due:   now,
		State: New,
	}
}

// validate rejects states the Scheduler must not operate on: an out-of-domain
// state enum, or negative/NaN stability or difficulty.
func (m MemoryState) validate() error {
	if !m.State.IsValid() {
		return fmt.Errorf("%w: state %d", ErrInvalidCardState, int(m.State))
	}
	if m.Stability < 0 || math.IsNaN(m.Stability) {
		return fmt.Errorf("%w: stability %v", ErrInvalidCardState, m.Stability)
	}
	if m.Difficulty < 0 || math.IsNaN(m.Difficulty) {
		return fmt.Errorf("%w: difficulty %v", ErrInvalidCardState, m.Difficulty)
	}
	return nil
}
