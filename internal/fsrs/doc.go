// Package fsrs implements the FSRS-4.5 spaced repetition scheduling model.
//
// A Scheduler is constructed once from immutable Params and computes, for a
// card's MemoryState and a review instant, one candidate next-state per
// rating. The caller selects exactly one candidate by the rating actually
// given:
//
//	sched, err := fsrs.NewScheduler(fsrs.Params{})
//	if err != nil {
//	    return err
//	}
//	candidates, err := sched.Schedule(state, time.Now())
//	if err != nil {
//	    return err
//	}
//	next, err := candidates.Select(fsrs.Good)
package fsrs
