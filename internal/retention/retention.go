// Package retention runs the cron-scheduled segment-boundary bookkeeping
// job. It never touches an offset still
// reachable by Read: it only records, under <log_dir>/retention/, which
// logical segments are considered retained, and runs on its own goroutine
// independent of the engine's single worker goroutine.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"asynclogd/pkg/logger"
)

// SegmentSource is the read-only view of the commit log's segment
// bookkeeping retention needs. internal/commitlog.Log satisfies this
// structurally; its SegmentID/SegmentItems/SegmentBytes accessors are
// safe for concurrent read by a goroutine other than the engine's.
type SegmentSource interface {
	SegmentID() uint64
}

// Config is retention's configuration.
type Config struct {
	Enabled      bool
	Cron         string
	KeepSegments int
}

// DefaultConfig returns retention's default configuration.
func DefaultConfig() Config {
	return Config{Enabled: false, Cron: "0 2 * * *", KeepSegments: 100}
}

// record is one line of the retention audit log written under
// <log_dir>/retention/retention.log.
type record struct {
	RanAt          string `json:"ran_at"`
	CurrentSegment uint64 `json:"current_segment"`
	KeepSegments   int    `json:"keep_segments"`
	KeptFrom       uint64 `json:"kept_from"`
}

// Scheduler owns the retention goroutine's lifetime.
type Scheduler struct {
	cfg      Config
	source   SegmentSource
	auditDir string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Start launches the retention scheduler if cfg.Enabled; otherwise it
// returns a no-op Scheduler whose Stop is a no-op. logDir is the engine's
// own log_dir — retention keeps its audit log under <logDir>/retention
// rather than introducing a second store.
func Start(ctx context.Context, cfg Config, source SegmentSource, logDir string) (*Scheduler, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return &Scheduler{cfg: cfg, cancel: func() {}, done: closedChan()}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = DefaultConfig().Cron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("retention: invalid cron expression %q", cfg.Cron)
	}

	auditDir := filepath.Join(logDir, "retention")
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return nil, fmt.Errorf("retention: create audit dir %s: %w", auditDir, err)
	}

	ctx2, cancel := context.WithCancel(ctx)
	s := &Scheduler{cfg: cfg, source: source, auditDir: auditDir, cancel: cancel, done: make(chan struct{})}

	logger.Info("retention_enabled", "cron", cronExpr, "keep_segments", cfg.KeepSegments, "audit_path", auditDir)
	go s.run(ctx2, cronExpr)

	return s, nil
}

// Stop cancels the scheduler goroutine and waits for it to exit. Safe to
// call on a disabled (no-op) Scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context, cronExpr string) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := s.RunOnce(); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce computes the current segment boundary and appends one audit
// record noting the oldest segment still considered retained. It never
// deletes commit-log data: pebble owns the physical store, and every
// record remains addressable by its own offset key regardless of the
// logical segment it falls in.
func (s *Scheduler) RunOnce() error {
	current := s.source.SegmentID()
	keep := uint64(s.cfg.KeepSegments)
	var keptFrom uint64
	if keep > 0 && current >= keep {
		keptFrom = current - keep + 1
	}

	rec := record{
		RanAt:          time.Now().UTC().Format(time.RFC3339),
		CurrentSegment: current,
		KeepSegments:   s.cfg.KeepSegments,
		KeptFrom:       keptFrom,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(s.auditDir, "retention.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("retention: open audit log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
