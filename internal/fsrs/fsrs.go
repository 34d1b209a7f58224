package fsrs

import (
	"fmt"
	"math"
	"time"
)

// Learning-step intervals for cards that have not yet graduated to the
// long-term review cycle. These branches are deliberately sub-day.
const (
	againStep = 1 * time.Minute
	hardStep  = 5 * time.Minute
	goodStep  = 10 * time.Minute
)

// Candidates maps each possible rating to the memory state the card would
// have if that rating were given. It is ephemeral: computed per review,
// consumed once by Select, never persisted.
type Candidates map[Rating]MemoryState

// Select returns the candidate for the given rating.
// It fails with ErrInvalidRating for anything outside Again..Easy.
func (c Candidates) Select(r Rating) (MemoryState, error) {
	if !r.IsValid() {
		return MemoryState{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	next, ok := c[r]
	if !ok {
		return MemoryState{}, fmt.Errorf("%w: no candidate for %s", ErrInvalidRating, r)
	}
	return next, nil
}

// Scheduler computes review schedules with the FSRS-4.5 memory model.
// It is pure and safe for concurrent use: all state is fixed at construction.
type Scheduler struct {
	w                [19]float64
	desiredRetention float64
	maximumInterval  int
}

// NewScheduler creates a Scheduler from the given params.
// Zero-value fields are filled with defaults; invalid values return an error.
func NewScheduler(p Params) (*Scheduler, error) {
	w := p.Weights
	if w == ([19]float64{}) {
		w = DefaultWeights
	}
	if err := validateWeights(w); err != nil {
		return nil, err
	}

	dr := p.DesiredRetention
	if dr == 0 {
		dr = DefaultDesiredRetention
	}
	if dr <= 0 || dr > 1 {
		return nil, fmt.Errorf("fsrs: desired retention %v out of range (0, 1]", dr)
	}

	maxIvl := p.MaximumInterval
	if maxIvl == 0 {
		maxIvl = DefaultMaximumInterval
	}
	if maxIvl < 1 {
		return nil, fmt.Errorf("fsrs: maximum interval %d must be at least 1 day", maxIvl)
	}

	return &Scheduler{w: w, desiredRetention: dr, maximumInterval: maxIvl}, nil
}

// Schedule computes the candidate next-state for every rating of a review
// happening at reviewedAt. The input state is not mutated. Candidates are
// computed independently; selecting one never observes another.
//
// It fails with ErrInvalidCardState if current carries an out-of-domain
// state enum or negative/NaN stability or difficulty.
func (s *Scheduler) Schedule(current MemoryState, reviewedAt time.Time) (Candidates, error) {
	if err := current.validate(); err != nil {
		return nil, err
	}

	out := make(Candidates, len(Ratings))
	for _, r := range Ratings {
		out[r] = s.next(current, reviewedAt, r)
	}
	return out, nil
}

// next computes the single post-review state for one rating.
func (s *Scheduler) next(cur MemoryState, now time.Time, rating Rating) MemoryState {
	elapsed := 0
	if cur.LastReview != nil {
		elapsed = int(now.Sub(*cur.LastReview).Hours() / 24)
		if elapsed < 0 {
			elapsed = 0
		}
	}

	reviewedAt := now
	next := cur
	next.ElapsedDays = elapsed
	next.Reps = cur.Reps + 1
	if rating == Again {
		next.Lapses = cur.Lapses + 1
	}
	next.LastReview = &reviewedAt

	switch cur.State {
	case New:
		s.nextFromNew(&next, now, rating)
	case Learning, Relearning:
		s.nextFromLearning(&next, now, rating)
	case Review:
		s.nextFromReview(&next, now, rating, float64(elapsed))
	}
	return next
}

// nextFromNew handles the first-ever review of a card. Stability and
// difficulty are initialized from the rating; Easy graduates immediately.
func (s *Scheduler) nextFromNew(next *MemoryState, now time.Time, rating Rating) {
	next.Stability = s.initStability(rating)
	next.Difficulty = s.initDifficulty(rating)

	switch rating {
	case Again:
		s.holdShort(next, now, Learning, againStep)
	case Hard:
		s.holdShort(next, now, Learning, hardStep)
	case Good:
		s.holdShort(next, now, Learning, goodStep)
	case Easy:
		s.graduate(next, now)
	}
}

// nextFromLearning handles Learning and Relearning reviews. The short-term
// stability formula applies; Good and Easy graduate to Review, Again and
// Hard hold the card in its current state on a sub-day interval.
func (s *Scheduler) nextFromLearning(next *MemoryState, now time.Time, rating Rating) {
	if next.Stability == 0 {
		// Row predates the memory model; initialize instead of updating.
		next.Stability = s.initStability(rating)
		next.Difficulty = s.initDifficulty(rating)
	} else {
		next.Stability = s.shortTermStability(next.Stability, rating)
		next.Difficulty = s.nextDifficulty(next.Difficulty, rating)
	}

	switch rating {
	case Again:
		s.holdShort(next, now, next.State, hardStep)
	case Hard:
		s.holdShort(next, now, next.State, goodStep)
	case Good, Easy:
		s.graduate(next, now)
	}
}

// nextFromReview handles reviews of graduated cards with the long-term
// forgetting-curve formulas. Again lapses the card into Relearning.
func (s *Scheduler) nextFromReview(next *MemoryState, now time.Time, rating Rating, elapsedDays float64) {
	// Floor stability before the power terms: S^(-w[9]) diverges at zero,
	// which would store NaN into the candidate.
	next.Stability = math.Max(next.Stability, minStability)
	retr := s.retrievability(elapsedDays, next.Stability)

	if rating == Again {
		next.Stability = s.forgetStability(next.Difficulty, next.Stability, retr)
		next.Difficulty = s.nextDifficulty(next.Difficulty, rating)
		s.holdShort(next, now, Relearning, hardStep)
		return
	}

	next.Stability = s.recallStability(next.Difficulty, next.Stability, retr, rating)
	next.Difficulty = s.nextDifficulty(next.Difficulty, rating)
	s.graduate(next, now)
}

// holdShort keeps the card on a sub-day interval in the given state.
func (s *Scheduler) holdShort(next *MemoryState, now time.Time, state State, step time.Duration) {
	next.State = state
	next.ScheduledDays = 0
	next.Due = now.Add(step)
}

// graduate moves the card into Review with a forgetting-curve interval.
func (s *Scheduler) graduate(next *MemoryState, now time.Time) {
	days := s.nextInterval(next.Stability)
	next.State = Review
	next.ScheduledDays = days
	next.Due = now.Add(time.Duration(days) * 24 * time.Hour)
}

// retrievability computes R(t, S) = (1 + FACTOR * t / S) ^ DECAY.
func (s *Scheduler) retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+factor*elapsedDays/stability, decay)
}

// initStability returns S₀(G) = max(w[G-1], minStability).
func (s *Scheduler) initStability(r Rating) float64 {
	return math.Max(s.w[r-1], minStability)
}

// initDifficulty returns D₀(G) = w[4] - e^(w[5] * (G - 1)) + 1, clamped to [1, 10].
func (s *Scheduler) initDifficulty(r Rating) float64 {
	return clampDifficulty(s.w[4] - math.Exp(s.w[5]*float64(r-1)) + 1)
}

// nextInterval inverts the forgetting curve at the desired retention:
// I(S) = round((S / FACTOR) * (R^(1/DECAY) - 1)), clamped to [1, maximumInterval].
func (s *Scheduler) nextInterval(stability float64) int {
	ivl := stability / factor * (math.Pow(s.desiredRetention, 1.0/decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > s.maximumInterval {
		days = s.maximumInterval
	}
	return days
}

// shortTermStability computes the same-day stability update
// S' = S * e^(w[17] * (G - 3 + w[18])), floored at minStability.
func (s *Scheduler) shortTermStability(stability float64, r Rating) float64 {
	return math.Max(stability*math.Exp(s.w[17]*(float64(r)-3+s.w[18])), minStability)
}

// nextDifficulty computes the post-review difficulty:
// D' = D - w[6] * (G - 3), then mean reversion
// D'' = w[7] * D₀(Easy) + (1 - w[7]) * D', clamped to [1, 10].
func (s *Scheduler) nextDifficulty(difficulty float64, r Rating) float64 {
	dPrime := difficulty - s.w[6]*(float64(r)-3)
	d0Easy := s.w[4] - math.Exp(s.w[5]*float64(Easy-1)) + 1 // unclamped reversion target
	return clampDifficulty(s.w[7]*d0Easy + (1-s.w[7])*dPrime)
}

// recallStability computes stability after a successful recall:
// S'_r = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus)
func (s *Scheduler) recallStability(d, stab, retr float64, r Rating) float64 {
	hardPenalty := 1.0
	if r == Hard {
		hardPenalty = s.w[15]
	}
	easyBonus := 1.0
	if r == Easy {
		easyBonus = s.w[16]
	}
	return stab * (1 + math.Exp(s.w[8])*
		(11-d)*
		math.Pow(stab, -s.w[9])*
		(math.Exp((1-retr)*s.w[10])-1)*
		hardPenalty*easyBonus)
}

// forgetStability computes stability after forgetting:
// S'_f = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^((1-R)*w[14]), capped at S.
func (s *Scheduler) forgetStability(d, stab, retr float64) float64 {
	sf := s.w[11] *
		math.Pow(d, -s.w[12]) *
		(math.Pow(stab+1, s.w[13]) - 1) *
		math.Exp((1-retr)*s.w[14])
	return math.Max(math.Min(sf, stab), minStability)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
