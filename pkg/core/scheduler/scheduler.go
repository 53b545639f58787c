// Package scheduler re-syncs a fixed set of companies on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/processor"
)

// DefaultSpec runs the refresh once a day at 06:00.
const DefaultSpec = "0 6 * * *"

// Syncer is the part of the processor the scheduler drives.
type Syncer interface {
	SyncCIKTickerMappings(ctx context.Context, force bool) (int, error)
	SyncCompany(ctx context.Context, ticker string, force bool) (*processor.SyncReport, error)
}

// RunResult summarizes one refresh pass.
type RunResult struct {
	ID        string
	StartedAt time.Time
	Synced    []string
	Failed    map[string]error
}

// Scheduler owns the cron instance and the ticker list.
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	spec    string
	tickers []string
	ctx     context.Context

	mu      sync.Mutex
	running bool
	last    *RunResult
}

// New creates a scheduler. An empty spec falls back to DefaultSpec. Tickers
// are upper-cased and blanks dropped.
func New(ctx context.Context, syncer Syncer, spec string, tickers []string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	clean := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			clean = append(clean, t)
		}
	}
	return &Scheduler{
		cron:    cron.New(),
		syncer:  syncer,
		spec:    spec,
		tickers: clean,
		ctx:     ctx,
	}
}

func log() *logrus.Entry {
	return logging.Component("scheduler")
}

// Start registers the refresh job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunNow(s.ctx) }); err != nil {
		return fmt.Errorf("register refresh job %q: %w", s.spec, err)
	}
	s.cron.Start()
	log().WithFields(logrus.Fields{"spec": s.spec, "tickers": len(s.tickers)}).Info("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log().Info("scheduler stopped")
}

// Last returns the most recent completed run, or nil.
func (s *Scheduler) Last() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow refreshes mappings then every configured ticker in sequence. A pass
// that starts while another is still running is skipped and returns nil.
func (s *Scheduler) RunNow(ctx context.Context) *RunResult {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log().Warn("refresh already running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	res := &RunResult{ID: uuid.NewString(), StartedAt: time.Now().UTC(), Failed: map[string]error{}}
	entry := log().WithField("run_id", res.ID)
	entry.Info("refresh started")

	if _, err := s.syncer.SyncCIKTickerMappings(ctx, false); err != nil {
		entry.WithError(err).Warn("mapping refresh failed")
	}
	for _, t := range s.tickers {
		if ctx.Err() != nil {
			res.Failed[t] = ctx.Err()
			continue
		}
		if _, err := s.syncer.SyncCompany(ctx, t, false); err != nil {
			entry.WithError(err).WithField("ticker", t).Warn("sync failed")
			res.Failed[t] = err
			continue
		}
		res.Synced = append(res.Synced, t)
	}
	entry.WithFields(logrus.Fields{
		"synced":     len(res.Synced),
		"failed":     len(res.Failed),
		"elapsed_ms": time.Since(res.StartedAt).Milliseconds(),
	}).Info("refresh finished")

	s.mu.Lock()
	s.running = false
	s.last = res
	s.mu.Unlock()
	return res
}
