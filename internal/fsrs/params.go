package fsrs

import (
	"fmt"
	"math"
)

// DefaultWeights are the FSRS-4.5 default memory-model coefficients.
//
//	w[0..3]   initial stability S₀(G) per first rating
//	w[4..5]   initial difficulty D₀(G)
//	w[6..7]   difficulty update and mean reversion
//	w[8..10]  recall stability S'_r
//	w[11..14] forget stability S'_f
//	w[15..16] hard penalty / easy bonus
//	w[17..18] short-term (same-day) stability
var DefaultWeights = [19]float64{
	0.4072, 1.1829, 3.1262, 15.4722,
	7.2102, 0.5316,
	1.0651, 0.0234,
	1.616, 0.1544, 1.0824,
	1.9813, 0.0953, 0.2975, 2.2042,
	0.2407, 2.9466,
	0.5034, 0.6567,
}

const (
	// decay is the fixed exponent of the FSRS-4.5 forgetting curve.
	decay = -0.5
	// factor makes retrievability exactly 0.9 when elapsed == stability.
	factor = 19.0 / 81.0

	minStability  = 0.1
	minDifficulty = 1.0
	maxDifficulty = 10.0

	// DefaultDesiredRetention is the target recall probability used when
	// the config leaves desired retention unset.
	DefaultDesiredRetention = 0.9
	// DefaultMaximumInterval caps scheduled intervals, in days.
	DefaultMaximumInterval = 1000
)

// Params configures a Scheduler. The zero value of each field selects the
// documented default. Params are fixed at construction and never mutated.
type Params struct {
	Weights          [19]float64 // zero array → DefaultWeights
	DesiredRetention float64     // zero → 0.9
	MaximumInterval  int         // zero → 1000 days
}

// validateWeights rejects weight vectors containing NaN, infinite or
// negative coefficients.
func validateWeights(w [19]float64) error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: w[%d] = %v", ErrInvalidWeights, i, v)
		}
	}
	return nil
}
