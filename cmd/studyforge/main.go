package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/studyforge/studyforge/internal/config"
	"github.com/studyforge/studyforge/internal/fsrs"
	"github.com/studyforge/studyforge/internal/review"
	"github.com/studyforge/studyforge/internal/storage"
	"github.com/studyforge/studyforge/internal/sync"
	"github.com/studyforge/studyforge/internal/web"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("studyforge failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("studyforge", pflag.ContinueOnError)
	configPath := flags.String("config", "studyforge.yaml", "path to the yaml config file")
	// Flag defaults mirror config.Default so an unset flag never clobbers a
	// value from the file or environment.
	flags.String("http.addr", "127.0.0.1:8080", "address for the JSON API to listen on")
	flags.String("db.path", "studyforge.db", "path to the sqlite database file")
	flags.String("sources.dir", "repos", "directory git deck sources are cloned into")
	flags.String("scheduler.first_rating", "again", "rating whose candidate sets a new card's first due date")
	addSource := flags.String("add-source", "", "register a deck source (git URL or local path) and exit")
	syncOnce := flags.Bool("sync", false, "sync all registered deck sources and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.DB.Path, err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB.Path)

	sched, err := fsrs.NewScheduler(cfg.SchedulerParams())
	if err != nil {
		return err
	}
	firstRating, err := cfg.FirstRating()
	if err != nil {
		return err
	}
	svc, err := review.NewService(sched, db, firstRating)
	if err != nil {
		return err
	}

	if *addSource != "" {
		sourceType := sync.DetectType(*addSource)
		if _, err := db.InsertSource(*addSource, sourceType); err != nil {
			return fmt.Errorf("failed to register source %s: %w", *addSource, err)
		}
		slog.Info("source registered", "path", *addSource, "type", sourceType)
		return nil
	}
	if *syncOnce {
		return sync.Run(db, svc, cfg.Sources.Dir)
	}

	srv := web.NewServer(db, svc, cfg.Sources.Dir)
	slog.Info("listening", "addr", cfg.HTTP.Addr)
	return http.ListenAndServe(cfg.HTTP.Addr, srv)
}
