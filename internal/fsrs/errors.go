package fsrs

import "errors"

// Sentinel errors for the fsrs package.
// Use errors.Is to check: errors.Is(err, fsrs.ErrInvalidRating)
var (
	ErrInvalidRating    = errors.New("fsrs: invalid rating")
	ErrInvalidCardState = errors.New("fsrs: invalid card state")
	ErrInvalidWeights   = errors.New("fsrs: invalid weight vector")
)
