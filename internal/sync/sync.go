// Package sync reconciles configured deck sources with the flashcard store.
package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/studyforge/studyforge/internal/domain"
	"github.com/studyforge/studyforge/internal/gitsource"
	"github.com/studyforge/studyforge/internal/knol"
	"github.com/studyforge/studyforge/internal/parser"
	"github.com/studyforge/studyforge/internal/review"
	"github.com/studyforge/studyforge/internal/storage"
)

// DetectType classifies a source path as "git" or "local".
func DetectType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}

// Run iterates over all configured sources and reconciles each. New cards
// go through the creation service so they enter the store with a real
// initial schedule; cards gone from their source are deleted. Per-source
// failures are logged and skipped, never fatal for the whole run.
func Run(db *storage.DB, svc *review.Service, reposDir string) error {
	slog.Info("starting sync for all sources")
	sources, err := db.GetAllSources()
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		scanPath := source.Path
		if source.Type == "git" {
			localPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("cannot determine local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(source.Path, localPath); err != nil {
				slog.Error("failed to sync git repo", "url", source.Path, "error", err)
				continue
			}
			scanPath = localPath
		}
		reconcile(db, svc, source, scanPath)
	}
	slog.Info("sync complete")
	return nil
}

// reconcile walks one source directory, inserting unseen cards and removing
// cards whose content no longer exists in the source.
func reconcile(db *storage.DB, svc *review.Service, source storage.Source, scanPath string) {
	var parsed, inserted, failures int
	foundHashes := make(map[string]bool)

	walkErr := filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			failures++
			slog.Warn("failed to parse deck file", "path", path, "error", parseErr)
		}
		for _, card := range cards {
			card.Hash = knol.Hash(card)
			parsed++
			foundHashes[card.Hash] = true

			existing, findErr := db.FindFlashcardByHash(card.Hash)
			if findErr != nil {
				failures++
				slog.Warn("failed to check card", "hash", card.Hash, "error", findErr)
				continue
			}
			if existing != nil {
				continue
			}

			created, createErr := svc.Create(domain.Flashcard{
				Question:      card.Question,
				Answer:        card.Answer,
				Context:       card.Context,
				Options:       card.Options,
				CorrectOption: card.CorrectOption,
				Hash:          card.Hash,
			}, time.Now())
			if createErr != nil {
				failures++
				slog.Warn("failed to insert card", "hash", card.Hash, "error", createErr)
				continue
			}
			if assignErr := db.AssignSource(created.ID, source.ID); assignErr != nil {
				failures++
				slog.Warn("failed to assign source", "card", created.ID, "error", assignErr)
				continue
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		slog.Error("failed to walk source directory", "path", scanPath, "error", walkErr)
		return
	}

	stored, err := db.GetFlashcardsBySourceID(source.ID)
	if err != nil {
		slog.Error("failed to list cards for source", "source_id", source.ID, "error", err)
		return
	}

	var orphaned int
	for _, card := range stored {
		if foundHashes[card.Hash] {
			continue
		}
		orphaned++
		if err := db.DeleteFlashcard(card.ID); err != nil {
			slog.Warn("failed to delete orphaned card", "card", card.ID, "error", err)
		}
	}

	if err := db.UpdateSourceLastScanned(source.ID, time.Now()); err != nil {
		slog.Warn("failed to update last scanned", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", scanPath,
		"parsed_cards", parsed,
		"inserted", inserted,
		"orphaned_deleted", orphaned,
		"errors", failures,
	)
}

// gitURLToLocalPath maps a git URL to a stable checkout path under baseDir.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-style syntax: git@host:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, hostAndUser[1], repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitized := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitized), nil
}
