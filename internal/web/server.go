// Package web is the thin HTTP glue over the review and creation services.
// It owns wire-format normalization and the mapping of service errors to
// status codes; every scheduling decision lives elsewhere.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/fsrs"
	"github.com/studyforge/studyforge/internal/knol"
	"github.com/studyforge/studyforge/internal/review"
	"github.com/studyforge/studyforge/internal/storage"
	"github.com/studyforge/studyforge/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	svc      *review.Service
	router   *http.ServeMux
	validate *validator.Validate
	reposDir string
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, svc *review.Service, reposDir string) *Server {
	s := &Server{
		db:       db,
		svc:      svc,
		router:   http.NewServeMux(),
		validate: validator.New(),
		reposDir: reposDir,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("POST /api/topics", s.handleCreateTopic)
	s.router.HandleFunc("POST /api/topics/{topicID}/flashcards", s.handleCreateFlashcard)
	s.router.HandleFunc("GET /api/topics/{topicID}/flashcards/due", s.handleDueFlashcards)
	s.router.HandleFunc("GET /api/flashcards/{flashcardID}", s.handleGetFlashcard)
	s.router.HandleFunc("POST /api/flashcards/{flashcardID}/review", s.handleReviewFlashcard)
	s.router.HandleFunc("POST /api/sync", s.handleSync)
}

type createTopicRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if !s.decode(w, r, &req) {
		return
	}

	topic := domain.Topic{ID: uuid.New(), Name: req.Name, CreatedAt: time.Now()}
	if err := s.db.InsertTopic(topic); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{Message: "Topic created successfully", Data: topic})
}

type createFlashcardRequest struct {
	Question      string   `json:"question" validate:"required"`
	Answer        string   `json:"answer"`
	Context       string   `json:"context"`
	Options       []string `json:"options" validate:"omitempty,min=2"`
	CorrectOption string   `json:"correct_option" validate:"required_with=Options"`
}

func (s *Server) handleCreateFlashcard(w http.ResponseWriter, r *http.Request) {
	topicID, err := uuid.Parse(r.PathValue("topicID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid topic ID"})
		return
	}
	if _, err := s.db.FindTopicByID(topicID); err != nil {
		s.writeError(w, err)
		return
	}

	var req createFlashcardRequest
	if !s.decode(w, r, &req) {
		return
	}

	card, err := s.svc.Create(domain.Flashcard{
		TopicID:       topicID,
		Question:      req.Question,
		Answer:        req.Answer,
		Context:       req.Context,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		Hash: knol.Hash(domain.Card{
			Question:      req.Question,
			Answer:        req.Answer,
			Context:       req.Context,
			Options:       req.Options,
			CorrectOption: req.CorrectOption,
		}),
	}, time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{Message: "Flashcard created successfully", Data: card})
}

func (s *Server) handleDueFlashcards(w http.ResponseWriter, r *http.Request) {
	topicID, err := uuid.Parse(r.PathValue("topicID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid topic ID"})
		return
	}
	if _, err := s.db.FindTopicByID(topicID); err != nil {
		s.writeError(w, err)
		return
	}

	cards, err := s.db.DueFlashcards(topicID, time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cards == nil {
		cards = []domain.Flashcard{}
	}
	writeJSON(w, http.StatusOK, response{Message: "Due flashcards", Data: cards})
}

func (s *Server) handleGetFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("flashcardID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid flashcard ID"})
		return
	}
	card, err := s.db.FindFlashcardByID(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Flashcard", Data: card})
}

type reviewRequest struct {
	// Accepts an integer 1-4 or a rating name, case-insensitive.
	Rating     fsrs.Rating `json:"rating"`
	ReviewedAt *time.Time  `json:"reviewed_at"`
}

func (s *Server) handleReviewFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("flashcardID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid flashcard ID"})
		return
	}

	var req reviewRequest
	if !s.decode(w, r, &req) {
		return
	}

	reviewedAt := time.Now()
	if req.ReviewedAt != nil {
		reviewedAt = *req.ReviewedAt
	}

	next, err := s.svc.Review(id, req.Rating, reviewedAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Flashcard review updated successfully", Data: next})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := sync.Run(s.db, s.svc, s.reposDir); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Sync complete"})
}

type response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// decode unmarshals and validates a JSON request body, writing the error
// response itself when the body is unusable.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, fsrs.ErrInvalidRating) {
			writeJSON(w, http.StatusBadRequest, response{Message: "Rating must be 1-4 or one of again/hard/good/easy"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request: " + err.Error()})
		return false
	}
	return true
}

// writeError maps the service error taxonomy to status codes. Corrupt card
// state is the only branch that is logged here: it means a bad row, not a
// bad request, and the record is left as-is for inspection.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		writeJSON(w, http.StatusNotFound, response{Message: "Not found"})
	case errors.Is(err, fsrs.ErrInvalidRating):
		writeJSON(w, http.StatusBadRequest, response{Message: "Rating must be 1-4 or one of again/hard/good/easy"})
	case errors.Is(err, review.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, response{Message: "Card was modified concurrently, re-read and retry"})
	case errors.Is(err, fsrs.ErrInvalidCardState):
		slog.Error("corrupt card state", "error", err)
		writeJSON(w, http.StatusInternalServerError, response{Message: "Card state is corrupt"})
	default:
		slog.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, response{Message: "Internal Server Error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
