package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/fsrs"
	"github.com/studyforge/studyforge/internal/review"
	"github.com/studyforge/studyforge/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "studyforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched, err := fsrs.NewScheduler(fsrs.Params{})
	require.NoError(t, err)
	svc, err := review.NewService(sched, db, fsrs.Again)
	require.NoError(t, err)

	return NewServer(db, svc, t.TempDir()), db
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var envelope struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func createTopic(t *testing.T, s *Server, name string) uuid.UUID {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/topics", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code)

	var topic struct {
		ID uuid.UUID `json:"topic_id"`
	}
	decodeData(t, rec, &topic)
	return topic.ID
}

func createFlashcard(t *testing.T, s *Server, topicID uuid.UUID) uuid.UUID {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/topics/%s/flashcards", topicID), map[string]any{
		"question": "What is a goroutine?",
		"answer":   "A lightweight thread managed by the Go runtime.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var card struct {
		ID uuid.UUID `json:"flashcard_id"`
	}
	decodeData(t, rec, &card)
	return card.ID
}

func TestCreateTopic(t *testing.T) {
	s, _ := newTestServer(t)

	id := createTopic(t, s, "Go Concurrency")
	assert.NotEqual(t, uuid.Nil, id)

	rec := doJSON(t, s, http.MethodPost, "/api/topics", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateFlashcard(t *testing.T) {
	s, db := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")

	cardID := createFlashcard(t, s, topicID)

	card, err := db.FindFlashcardByID(cardID)
	require.NoError(t, err)
	assert.Equal(t, topicID, card.TopicID)
	assert.Equal(t, fsrs.New, card.Memory.State)
	assert.NotEmpty(t, card.Hash)
	assert.Nil(t, card.Memory.LastReview)
	assert.False(t, card.Memory.Due.IsZero())
}

func TestCreateFlashcardValidation(t *testing.T) {
	s, _ := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")

	t.Run("missing question", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/topics/%s/flashcards", topicID), map[string]any{
			"answer": "no question given",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown topic", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/topics/%s/flashcards", uuid.New()), map[string]any{
			"question": "q",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed topic id", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/topics/not-a-uuid/flashcards", map[string]any{
			"question": "q",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetFlashcard(t *testing.T) {
	s, _ := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")
	cardID := createFlashcard(t, s, topicID)

	rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/flashcards/%s", cardID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var card struct {
		Question string `json:"question"`
	}
	decodeData(t, rec, &card)
	assert.Equal(t, "What is a goroutine?", card.Question)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/flashcards/%s", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewFlashcard(t *testing.T) {
	s, db := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")
	cardID := createFlashcard(t, s, topicID)

	reviewedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/flashcards/%s/review", cardID), map[string]any{
		"rating":      3,
		"reviewed_at": reviewedAt,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var next fsrs.MemoryState
	decodeData(t, rec, &next)
	assert.Equal(t, fsrs.Learning, next.State)
	assert.Equal(t, 1, next.Reps)
	assert.True(t, next.Due.Equal(reviewedAt.Add(10*time.Minute)))

	card, err := db.FindFlashcardByID(cardID)
	require.NoError(t, err)
	assert.Equal(t, fsrs.Learning, card.Memory.State)
}

func TestReviewFlashcardRatingNames(t *testing.T) {
	s, db := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")
	cardID := createFlashcard(t, s, topicID)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/flashcards/%s/review", cardID), map[string]any{
		"rating": "easy",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	card, err := db.FindFlashcardByID(cardID)
	require.NoError(t, err)
	assert.Equal(t, fsrs.Review, card.Memory.State)
}

func TestReviewFlashcardRejectsBadRatings(t *testing.T) {
	s, db := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")
	cardID := createFlashcard(t, s, topicID)

	for _, rating := range []any{0, 5, -3, "excellent", true} {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/flashcards/%s/review", cardID), map[string]any{
			"rating": rating,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "rating %v", rating)
	}

	// A missing rating decodes to zero, which is also out of range.
	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/flashcards/%s/review", cardID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	card, err := db.FindFlashcardByID(cardID)
	require.NoError(t, err)
	assert.Equal(t, fsrs.New, card.Memory.State, "rejected reviews must not touch the card")
	assert.Equal(t, 0, card.Memory.Reps)
}

func TestReviewUnknownFlashcard(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/flashcards/%s/review", uuid.New()), map[string]any{
		"rating": "good",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDueFlashcards(t *testing.T) {
	s, db := newTestServer(t)
	topicID := createTopic(t, s, "Go Concurrency")

	t.Run("empty topic returns empty list", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/topics/%s/flashcards/due", topicID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cards []json.RawMessage
		decodeData(t, rec, &cards)
		assert.Empty(t, cards)
	})

	// A card created through the API is first due one learning step from
	// now, so backdate one to make it show up.
	memory := fsrs.NewMemoryState(time.Now().Add(-time.Hour))
	card := domain.Flashcard{
		ID:        uuid.New(),
		TopicID:   topicID,
		Question:  "What does the select statement do?",
		Answer:    "Waits on multiple channel operations.",
		CreatedAt: time.Now().Add(-time.Hour),
		Memory:    memory,
	}
	require.NoError(t, db.InsertFlashcard(card))
	cardID := card.ID

	t.Run("overdue card is listed", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/topics/%s/flashcards/due", topicID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cards []struct {
			ID uuid.UUID `json:"flashcard_id"`
		}
		decodeData(t, rec, &cards)
		require.Len(t, cards, 1)
		assert.Equal(t, cardID, cards[0].ID)
	})

	t.Run("easy review pushes the card out", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/flashcards/%s/review", cardID), map[string]any{
			"rating": "easy",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/topics/%s/flashcards/due", topicID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cards []json.RawMessage
		decodeData(t, rec, &cards)
		assert.Empty(t, cards)
	})

	t.Run("unknown topic", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/topics/%s/flashcards/due", uuid.New()), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
