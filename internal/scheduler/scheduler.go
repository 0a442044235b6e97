// Package scheduler runs periodic maintenance tasks on cron-like schedules
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"notes-ledger/internal/config"
)

// ScoreAuditor compares cached note scores with the ledger
type ScoreAuditor interface {
	CacheEnabled() bool
	CachedNoteIDs(limit int) []string
	Verify(ctx context.Context, noteID string) (cached, recomputed int, ok bool, err error)
}

// AuditReport summarises one score audit run
type AuditReport struct {
	Checked int
	Drifted int
	Failed  int
}

// Scheduler handles periodic tasks
type Scheduler struct {
	auditor  ScoreAuditor
	config   *config.SchedulerConfig
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(auditor ScoreAuditor, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		auditor:  auditor,
		config:   cfg,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", "score_audit_enabled", s.config.EnableScoreAudit)

	if s.config.EnableScoreAudit {
		if !s.auditor.CacheEnabled() {
			slog.Info("Score audit skipped, score cache is disabled")
		} else if err := s.startCronTask(s.config.ScoreAuditCron, "score_audit", s.runScoreAudit); err != nil {
			slog.Error("Failed to start score audit", "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// startCronTask parses a cron expression and starts the task
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func()) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(sched, taskName, task)
	}()
	return nil
}

func (s *Scheduler) run(sched schedule, taskName string, task func()) {
	for {
		now := s.now()
		next := sched.next(now)

		slog.Debug("Next task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			slog.Info("Running scheduled task", "task", taskName)
			task()
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runScoreAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ScoreAuditMaxDuration)
	defer cancel()

	report := AuditScores(ctx, s.auditor, s.config.ScoreAuditBatch)
	slog.Info("Score audit completed",
		"checked", report.Checked,
		"drifted", report.Drifted,
		"failed", report.Failed,
	)
}

// AuditScores verifies up to limit cached scores against the ledger. Drifted
// entries are dropped from the cache by Verify itself.
func AuditScores(ctx context.Context, auditor ScoreAuditor, limit int) AuditReport {
	var report AuditReport

	for _, noteID := range auditor.CachedNoteIDs(limit) {
		if ctx.Err() != nil {
			slog.Warn("Score audit interrupted", "error", ctx.Err(), "checked", report.Checked)
			break
		}

		_, _, ok, err := auditor.Verify(ctx, noteID)
		report.Checked++
		switch {
		case err != nil:
			report.Failed++
			slog.Error("Failed to verify score", "note_id", noteID, "error", err)
		case !ok:
			report.Drifted++
		}
	}

	return report
}

// schedule is a parsed cron expression. Supported forms follow five-field
// cron syntax restricted to what maintenance tasks need:
//
//	"*/15 * * * *"  every 15 minutes
//	"30 */2 * * *"  every 2 hours at minute 30
//	"0 3 * * *"     daily at 03:00
//	"0 3 * * 1"     Mondays at 03:00
type schedule struct {
	minuteInterval int
	hourInterval   int
	minute         int
	hour           int
	weekday        int // -1 for every day
}

func parseCron(cronExpr string) (schedule, error) {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return schedule{}, fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return schedule{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		return schedule{minuteInterval: interval, weekday: -1}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return schedule{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return schedule{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		return schedule{hourInterval: interval, minute: minute, weekday: -1}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return schedule{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		return schedule{minute: minute, hour: hour, weekday: -1}, nil
	}

	weekday, err := strconv.Atoi(parts[4])
	if err != nil || weekday < 0 || weekday > 6 {
		return schedule{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
	}
	return schedule{minute: minute, hour: hour, weekday: weekday}, nil
}

// next returns the first run time strictly after from
func (c schedule) next(from time.Time) time.Time {
	switch {
	case c.minuteInterval > 0:
		next := from.Truncate(time.Minute).Add(time.Minute)
		for next.Minute()%c.minuteInterval != 0 {
			next = next.Add(time.Minute)
		}
		return next

	case c.hourInterval > 0:
		next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), c.minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.Add(time.Hour)
		}
		for next.Hour()%c.hourInterval != 0 {
			next = next.Add(time.Hour)
		}
		return next

	case c.weekday >= 0:
		next := time.Date(from.Year(), from.Month(), from.Day(), c.hour, c.minute, 0, 0, from.Location())
		daysUntil := (c.weekday - int(from.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, daysUntil)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	default:
		next := time.Date(from.Year(), from.Month(), from.Day(), c.hour, c.minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}
