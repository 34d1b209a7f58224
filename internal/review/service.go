package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/fsrs"
)

// Errors surfaced by the service on top of the scheduler's own sentinels.
var (
	// ErrNotFound means the requested flashcard is absent from the store.
	ErrNotFound = errors.New("review: flashcard not found")
	// ErrConcurrentModification means the card changed between the read and
	// the conditional write. The caller should reread and retry; the service
	// never retries internally.
	ErrConcurrentModification = errors.New("review: concurrent modification")
)

// Store is the narrow record-store surface the service needs. GetMemoryState
// returns ErrNotFound for an absent card; UpdateMemoryState is a conditional
// write keyed on the card's prior last-review instant and returns
// ErrConcurrentModification when the condition no longer holds. The update
// and the review-log append happen atomically.
type Store interface {
	GetMemoryState(id uuid.UUID) (fsrs.MemoryState, error)
	UpdateMemoryState(id uuid.UUID, next fsrs.MemoryState, expectedLastReview *time.Time, log domain.ReviewLog) error
	InsertFlashcard(card domain.Flashcard) error
}

// Service orchestrates card creation and reviews: load current state, run
// the scheduler, persist the selected candidate.
type Service struct {
	sched       *fsrs.Scheduler
	store       Store
	firstRating fsrs.Rating
}

// NewService creates a Service. firstRating is the candidate used for a
// brand-new card's initial due date; it comes from configuration, never a
// hard-coded default.
func NewService(sched *fsrs.Scheduler, store Store, firstRating fsrs.Rating) (*Service, error) {
	if !firstRating.IsValid() {
		return nil, fmt.Errorf("%w: first rating %d", fsrs.ErrInvalidRating, int(firstRating))
	}
	return &Service{sched: sched, store: store, firstRating: firstRating}, nil
}

// Review processes one review of the card: load, schedule, select the
// candidate for the given rating, persist. Exactly one store write happens
// per call, and none at all when any step fails.
func (s *Service) Review(id uuid.UUID, rating fsrs.Rating, reviewedAt time.Time) (fsrs.MemoryState, error) {
	current, err := s.store.GetMemoryState(id)
	if err != nil {
		return fsrs.MemoryState{}, err
	}

	if !rating.IsValid() {
		return fsrs.MemoryState{}, fmt.Errorf("%w: %d", fsrs.ErrInvalidRating, int(rating))
	}

	candidates, err := s.sched.Schedule(current, reviewedAt)
	if err != nil {
		return fsrs.MemoryState{}, err
	}
	next, err := candidates.Select(rating)
	if err != nil {
		return fsrs.MemoryState{}, err
	}

	log := domain.ReviewLog{
		FlashcardID:   id,
		Rating:        rating,
		State:         current.State,
		ElapsedDays:   next.ElapsedDays,
		ScheduledDays: next.ScheduledDays,
		ReviewedAt:    reviewedAt,
	}
	if err := s.store.UpdateMemoryState(id, next, current.LastReview, log); err != nil {
		return fsrs.MemoryState{}, err
	}
	return next, nil
}

// InitialMemoryState builds the memory state a freshly created card is
// stored with: the empty state, with its due date taken from the scheduler
// candidate for the configured first rating.
func (s *Service) InitialMemoryState(now time.Time) (fsrs.MemoryState, error) {
	initial := fsrs.NewMemoryState(now)
	candidates, err := s.sched.Schedule(initial, now)
	if err != nil {
		return fsrs.MemoryState{}, err
	}
	first, err := candidates.Select(s.firstRating)
	if err != nil {
		return fsrs.MemoryState{}, err
	}
	initial.Due = first.Due
	return initial, nil
}

// Create stores a new flashcard with a fresh identity and initial schedule.
// The content fields of card are kept as given; ID, CreatedAt and Memory are
// assigned here.
func (s *Service) Create(card domain.Flashcard, now time.Time) (domain.Flashcard, error) {
	memory, err := s.InitialMemoryState(now)
	if err != nil {
		return domain.Flashcard{}, err
	}

	card.ID = uuid.New()
	card.CreatedAt = now
	card.Memory = memory
	if err := s.store.InsertFlashcard(card); err != nil {
		return domain.Flashcard{}, err
	}
	return card, nil
}
