package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/studyforge/studyforge/internal/fsrs"
)

// Card is a single entry parsed from a deck source: a question with either
// a free-form answer or a set of quiz options. It has no identity of its
// own until it is stored as a Flashcard; Hash is the content-derived
// dedupe key.
type Card struct {
	Question      string
	Answer        string
	Context       string
	Options       []string
	CorrectOption string
	Hash          string
}

// Topic groups flashcards for review.
type Topic struct {
	ID        uuid.UUID `json:"topic_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Flashcard is a stored card: its content plus the spaced-repetition memory
// state that decides when it next comes up for review. The identity never
// changes; only Memory mutates, and only through a review.
type Flashcard struct {
	ID            uuid.UUID        `json:"flashcard_id"`
	TopicID       uuid.UUID        `json:"topic_id"`
	Question      string           `json:"question"`
	Answer        string           `json:"answer,omitempty"`
	Context       string           `json:"context,omitempty"`
	Options       []string         `json:"options,omitempty"`
	CorrectOption string           `json:"correct_option,omitempty"`
	Hash          string           `json:"hash,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Memory        fsrs.MemoryState `json:"memory"`
}

// ReviewLog records a single processed review for audit.
// State is the card's state going into the review, not the one it left with.
type ReviewLog struct {
	FlashcardID   uuid.UUID   `json:"flashcard_id"`
	Rating        fsrs.Rating `json:"rating"`
	State         fsrs.State  `json:"state"`
	ElapsedDays   int         `json:"elapsed_days"`
	ScheduledDays int         `json:"scheduled_days"`
	ReviewedAt    time.Time   `json:"reviewed_at"`
}
