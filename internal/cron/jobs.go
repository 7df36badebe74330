package cron

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/phillt/bernard-sub001/internal/memory"
)

// FactStore is the subset of memory.SemanticCache the extraction job needs.
type FactStore interface {
	AddFacts(ctx context.Context, facts []string, source string) int
}

// PendingExtractionJob drains pending-*.json files from Dir, oldest first.
// Each transcript goes through Extractor and the facts are stored with
// source "exit". Corrupt files are deleted. A file whose extraction fails
// stays for the next tick until PendingSweepJob ages it out.
type PendingExtractionJob struct {
	Dir          string
	Extractor    memory.Extractor
	Store        FactStore
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*PendingExtractionJob)(nil)

// Name implements Job.
func (j *PendingExtractionJob) Name() string { return "pending_extraction" }

// Schedule implements Job.
func (j *PendingExtractionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run processes every pending file currently in Dir.
func (j *PendingExtractionJob) Run(ctx context.Context) error {
	logger := j.logger()
	paths, err := memory.ListPending(j.Dir)
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range paths {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: pending extraction cancelled: %w", ctx.Err())
		}
		if err := j.process(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(paths) > 0 {
		logger.Info("pending extractions processed", "files", len(paths), "failed", len(errs))
	}
	return errors.Join(errs...)
}

func (j *PendingExtractionJob) process(ctx context.Context, path string) error {
	logger := j.logger()

	p, err := memory.ReadPending(path)
	if errors.Is(err, memory.ErrCorruptPending) {
		logger.Warn("removing corrupt pending file", "path", path, "error", err)
		return removeIfExists(path)
	}
	if err != nil {
		return err
	}

	facts, err := j.Extractor.ExtractFacts(ctx, p.Transcript)
	if err != nil {
		return fmt.Errorf("cron: extract %s: %w", path, err)
	}

	added := 0
	if len(facts) > 0 {
		added = j.Store.AddFacts(ctx, facts, memory.SourceExit)
	}
	logger.Debug("pending extraction stored",
		"id", p.ID,
		"provider", p.Provider,
		"model", p.Model,
		"extracted", len(facts),
		"added", added,
	)
	return removeIfExists(path)
}

func (j *PendingExtractionJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// PendingSweepJob removes pending and temp files older than MaxAge.
type PendingSweepJob struct {
	Dir          string
	MaxAge       time.Duration    // zero = memory.StalePendingAge
	Now          func() time.Time // nil = time.Now
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/15 * * * *"
}

// Compile-time interface check.
var _ Job = (*PendingSweepJob)(nil)

// Name implements Job.
func (j *PendingSweepJob) Name() string { return "pending_sweep" }

// Schedule implements Job.
func (j *PendingSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/15 * * * *"
}

// Run removes stale files from Dir.
func (j *PendingSweepJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: pending sweep cancelled: %w", ctx.Err())
	}

	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = memory.StalePendingAge
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	removed, err := memory.SweepStale(j.Dir, maxAge, now())
	if removed > 0 && j.Logger != nil {
		j.Logger.Info("stale pending files removed", "count", removed)
	}
	return err
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cron: remove %s: %w", path, err)
	}
	return nil
}
