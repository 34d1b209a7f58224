package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/fsrs"
	"github.com/studyforge/studyforge/internal/review"
)

// timeLayout is a fixed-width RFC3339 form so stored timestamps compare
// correctly both lexicographically (due-date queries) and byte-for-byte
// (the conditional update on last_review).
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func decodeNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeOptions(options []string) (sql.NullString, error) {
	if len(options) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeOptions(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var options []string
	if err := json.Unmarshal([]byte(s.String), &options); err != nil {
		return nil, err
	}
	return options, nil
}

// InsertTopic inserts a new topic.
func (db *DB) InsertTopic(topic domain.Topic) error {
	_, err := db.conn.Exec(`
		INSERT INTO topics (topic_id, name, created_at)
		VALUES (?, ?, ?)
	`, topic.ID.String(), topic.Name, encodeTime(topic.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert topic %s: %w", topic.ID, err)
	}
	return nil
}

// FindTopicByID retrieves a topic, or review.ErrNotFound if absent.
func (db *DB) FindTopicByID(id uuid.UUID) (domain.Topic, error) {
	var (
		topic     domain.Topic
		rawID     string
		createdAt string
	)
	row := db.conn.QueryRow(`
		SELECT topic_id, name, created_at FROM topics WHERE topic_id = ?
	`, id.String())
	if err := row.Scan(&rawID, &topic.Name, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Topic{}, fmt.Errorf("topic %s: %w", id, review.ErrNotFound)
		}
		return domain.Topic{}, fmt.Errorf("failed to find topic %s: %w", id, err)
	}
	topic.ID = id
	var err error
	if topic.CreatedAt, err = decodeTime(createdAt); err != nil {
		return domain.Topic{}, fmt.Errorf("corrupt created_at for topic %s: %w", id, err)
	}
	return topic, nil
}

// InsertFlashcard inserts a new flashcard with its full memory state.
// The optional sourceID association is written separately by AssignSource.
func (db *DB) InsertFlashcard(card domain.Flashcard) error {
	options, err := encodeOptions(card.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options for card %s: %w", card.ID, err)
	}

	var topicID sql.NullString
	if card.TopicID != uuid.Nil {
		topicID = sql.NullString{String: card.TopicID.String(), Valid: true}
	}

	m := card.Memory
	_, err = db.conn.Exec(`
		INSERT INTO flashcards (
			flashcard_id, topic_id, question, answer, context, options,
			correct_option, hash, created_at,
			due, stability, difficulty, elapsed_days, scheduled_days,
			reps, lapses, state, last_review
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID.String(), topicID, card.Question, card.Answer, card.Context,
		options, card.CorrectOption, card.Hash, encodeTime(card.CreatedAt),
		encodeTime(m.Due), m.Stability, m.Difficulty, m.ElapsedDays,
		m.ScheduledDays, m.Reps, m.Lapses, int(m.State),
		encodeNullTime(m.LastReview),
	)
	if err != nil {
		return fmt.Errorf("failed to insert flashcard %s: %w", card.ID, err)
	}
	return nil
}

const flashcardColumns = `
	flashcard_id, topic_id, question, answer, context, options,
	correct_option, hash, created_at,
	due, stability, difficulty, elapsed_days, scheduled_days,
	reps, lapses, state, last_review
`

func scanFlashcard(row interface{ Scan(...any) error }) (domain.Flashcard, error) {
	var (
		card       domain.Flashcard
		rawID      string
		topicID    sql.NullString
		answer     sql.NullString
		context    sql.NullString
		options    sql.NullString
		correct    sql.NullString
		hash       sql.NullString
		createdAt  string
		due        string
		state      int
		lastReview sql.NullString
	)
	err := row.Scan(
		&rawID, &topicID, &card.Question, &answer, &context, &options,
		&correct, &hash, &createdAt,
		&due, &card.Memory.Stability, &card.Memory.Difficulty,
		&card.Memory.ElapsedDays, &card.Memory.ScheduledDays,
		&card.Memory.Reps, &card.Memory.Lapses, &state, &lastReview,
	)
	if err != nil {
		return domain.Flashcard{}, err
	}

	if card.ID, err = uuid.Parse(rawID); err != nil {
		return domain.Flashcard{}, fmt.Errorf("corrupt flashcard id %q: %w", rawID, err)
	}
	if topicID.Valid {
		if card.TopicID, err = uuid.Parse(topicID.String); err != nil {
			return domain.Flashcard{}, fmt.Errorf("corrupt topic id %q: %w", topicID.String, err)
		}
	}
	card.Answer = answer.String
	card.Context = context.String
	card.CorrectOption = correct.String
	card.Hash = hash.String
	if card.Options, err = decodeOptions(options); err != nil {
		return domain.Flashcard{}, fmt.Errorf("corrupt options for card %s: %w", card.ID, err)
	}
	if card.CreatedAt, err = decodeTime(createdAt); err != nil {
		return domain.Flashcard{}, fmt.Errorf("corrupt created_at for card %s: %w", card.ID, err)
	}
	if card.Memory.Due, err = decodeTime(due); err != nil {
		return domain.Flashcard{}, fmt.Errorf("corrupt due for card %s: %w", card.ID, err)
	}
	card.Memory.State = fsrs.State(state)
	if card.Memory.LastReview, err = decodeNullTime(lastReview); err != nil {
		return domain.Flashcard{}, fmt.Errorf("corrupt last_review for card %s: %w", card.ID, err)
	}
	return card, nil
}

// FindFlashcardByID retrieves a flashcard, or review.ErrNotFound if absent.
func (db *DB) FindFlashcardByID(id uuid.UUID) (domain.Flashcard, error) {
	row := db.conn.QueryRow(`
		SELECT `+flashcardColumns+` FROM flashcards WHERE flashcard_id = ?
	`, id.String())
	card, err := scanFlashcard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Flashcard{}, fmt.Errorf("flashcard %s: %w", id, review.ErrNotFound)
		}
		return domain.Flashcard{}, fmt.Errorf("failed to find flashcard %s: %w", id, err)
	}
	return card, nil
}

// FindFlashcardByHash retrieves a deck-sourced flashcard by its content
// hash. A nil card with nil error means no match.
func (db *DB) FindFlashcardByHash(hash string) (*domain.Flashcard, error) {
	row := db.conn.QueryRow(`
		SELECT `+flashcardColumns+` FROM flashcards WHERE hash = ?
	`, hash)
	card, err := scanFlashcard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find flashcard by hash %s: %w", hash, err)
	}
	return &card, nil
}

// GetMemoryState retrieves just the memory state of a flashcard.
func (db *DB) GetMemoryState(id uuid.UUID) (fsrs.MemoryState, error) {
	card, err := db.FindFlashcardByID(id)
	if err != nil {
		return fsrs.MemoryState{}, err
	}
	return card.Memory, nil
}

// UpdateMemoryState replaces all scheduling fields of a flashcard in one
// conditional write keyed on the row's prior last_review, and appends the
// review log in the same transaction. A stale expectedLastReview (or a
// concurrently deleted row) fails with review.ErrConcurrentModification
// and writes nothing.
func (db *DB) UpdateMemoryState(id uuid.UUID, next fsrs.MemoryState, expectedLastReview *time.Time, log domain.ReviewLog) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE flashcards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?,
		    scheduled_days = ?, reps = ?, lapses = ?, state = ?, last_review = ?
		WHERE flashcard_id = ? AND last_review IS ?
	`,
		encodeTime(next.Due), next.Stability, next.Difficulty,
		next.ElapsedDays, next.ScheduledDays, next.Reps, next.Lapses,
		int(next.State), encodeNullTime(next.LastReview),
		id.String(), encodeNullTime(expectedLastReview),
	)
	if err != nil {
		return fmt.Errorf("failed to update memory state for card %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for card %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("card %s: %w", id, review.ErrConcurrentModification)
	}

	_, err = tx.Exec(`
		INSERT INTO review_logs (flashcard_id, rating, state, elapsed_days, scheduled_days, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		log.FlashcardID.String(), int(log.Rating), int(log.State),
		log.ElapsedDays, log.ScheduledDays, encodeTime(log.ReviewedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append review log for card %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for card %s: %w", id, err)
	}
	return nil
}

// DueFlashcards retrieves the flashcards of a topic due at or before now,
// oldest due first.
func (db *DB) DueFlashcards(topicID uuid.UUID, now time.Time) ([]domain.Flashcard, error) {
	rows, err := db.conn.Query(`
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE topic_id = ? AND due <= ?
		ORDER BY due
	`, topicID.String(), encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get due flashcards for topic %s: %w", topicID, err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due flashcard: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// AssignSource associates a flashcard with a deck source.
func (db *DB) AssignSource(cardID uuid.UUID, sourceID int64) error {
	_, err := db.conn.Exec(`
		UPDATE flashcards SET source_id = ? WHERE flashcard_id = ?
	`, sourceID, cardID.String())
	if err != nil {
		return fmt.Errorf("failed to assign source %d to card %s: %w", sourceID, cardID, err)
	}
	return nil
}

// DeleteFlashcard removes a flashcard and its review logs in one
// transaction, so a card never outlives its audit rows or vice versa.
func (db *DB) DeleteFlashcard(id uuid.UUID) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM review_logs WHERE flashcard_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete review logs for card %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM flashcards WHERE flashcard_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete flashcard %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for card %s: %w", id, err)
	}
	return nil
}

// Source represents a card source, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	LastScanned *time.Time
}

// InsertSource inserts a new source and returns its ID.
func (db *DB) InsertSource(path, sourceType string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, type)
		VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path. A nil source with nil
// error means no match.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	row := db.conn.QueryRow(`
		SELECT id, path, type, last_scanned FROM sources WHERE path = ?
	`, path)
	s, err := scanSource(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, path, type, last_scanned FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func scanSource(row interface{ Scan(...any) error }) (Source, error) {
	var (
		s           Source
		lastScanned sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Path, &s.Type, &lastScanned); err != nil {
		return Source{}, err
	}
	var err error
	if s.LastScanned, err = decodeNullTime(lastScanned); err != nil {
		return Source{}, fmt.Errorf("corrupt last_scanned for source %d: %w", s.ID, err)
	}
	return s, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(sourceID int64, at time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, encodeTime(at), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source. Its flashcards are detached, not deleted.
func (db *DB) DeleteSource(id int64) error {
	if _, err := db.conn.Exec(`UPDATE flashcards SET source_id = NULL WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach flashcards from source %d: %w", id, err)
	}
	if _, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return nil
}

// GetFlashcardsBySourceID retrieves all flashcards associated with a source.
func (db *DB) GetFlashcardsBySourceID(sourceID int64) ([]domain.Flashcard, error) {
	rows, err := db.conn.Query(`
		SELECT `+flashcardColumns+` FROM flashcards WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card for source ID %d: %w", sourceID, err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}
