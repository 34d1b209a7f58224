package storage

const schema = `
-- Topics group flashcards for review.
CREATE TABLE IF NOT EXISTS topics (
    topic_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- The 'flashcards' table stores card content alongside the full
-- spaced-repetition memory state.
CREATE TABLE IF NOT EXISTS flashcards (
    flashcard_id TEXT PRIMARY KEY,
    topic_id TEXT,
    question TEXT NOT NULL,
    answer TEXT,
    context TEXT,
    options TEXT,          -- JSON array of quiz options
    correct_option TEXT,
    hash TEXT,             -- content hash for deck-sourced cards
    created_at TEXT NOT NULL,

    due TEXT NOT NULL,
    stability REAL NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    elapsed_days INTEGER NOT NULL DEFAULT 0,
    scheduled_days INTEGER NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    last_review TEXT,

    source_id INTEGER,

    FOREIGN KEY(topic_id) REFERENCES topics(topic_id),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_flashcards_topic_due ON flashcards(topic_id, due);
CREATE INDEX IF NOT EXISTS idx_flashcards_hash ON flashcards(hash);

-- The 'sources' table tracks deck origins, either a local directory or a
-- git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_scanned TEXT
);

-- Audit trail of processed reviews.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    flashcard_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    state INTEGER NOT NULL, -- state going into the review
    elapsed_days INTEGER NOT NULL,
    scheduled_days INTEGER NOT NULL,
    reviewed_at TEXT NOT NULL,

    FOREIGN KEY(flashcard_id) REFERENCES flashcards(flashcard_id)
);
`
