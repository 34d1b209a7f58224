package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyforge/studyforge/internal/fsrs"
	"github.com/studyforge/studyforge/internal/review"
	"github.com/studyforge/studyforge/internal/storage"
)

func TestDetectType(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/decks.git": "git",
		"git@github.com:acme/decks.git":     "git",
		"/home/me/decks":                    "local",
		"decks":                             "local",
	}
	for path, want := range cases {
		if got := DetectType(path); got != want {
			t.Errorf("DetectType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRunReconcilesLocalSource(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	defer db.Close()

	sched, err := fsrs.NewScheduler(fsrs.Params{})
	require.NoError(t, err)
	svc, err := review.NewService(sched, db, fsrs.Again)
	require.NoError(t, err)

	deckDir := t.TempDir()
	deckFile := filepath.Join(deckDir, "go.md")
	require.NoError(t, os.WriteFile(deckFile, []byte(`Q: What does defer do?
A: Schedules a call to run when the function returns.
---
Q: Which keyword starts a goroutine?
O: *go
O: run
`), 0o600))

	sourceID, err := db.InsertSource(deckDir, "local")
	require.NoError(t, err)

	require.NoError(t, Run(db, svc, t.TempDir()))

	cards, err := db.GetFlashcardsBySourceID(sourceID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	for _, card := range cards {
		assert.Equal(t, fsrs.New, card.Memory.State)
		assert.NotEmpty(t, card.Hash)
	}

	t.Run("second run inserts nothing new", func(t *testing.T) {
		require.NoError(t, Run(db, svc, t.TempDir()))
		cards, err := db.GetFlashcardsBySourceID(sourceID)
		require.NoError(t, err)
		assert.Len(t, cards, 2)
	})

	t.Run("removed card is deleted as orphan", func(t *testing.T) {
		require.NoError(t, os.WriteFile(deckFile, []byte(`Q: What does defer do?
A: Schedules a call to run when the function returns.
`), 0o600))

		require.NoError(t, Run(db, svc, t.TempDir()))
		cards, err := db.GetFlashcardsBySourceID(sourceID)
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, "What does defer do?", cards[0].Question)
	})
}
