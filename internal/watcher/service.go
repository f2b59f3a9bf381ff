// Package watcher keeps the pending proposals in line with the watch directory.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/to-wer/media-renamer/internal/fsx"
	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/metrics"
)

const scanKey = "scan"

// ProposalStore defines the store operations used by reconciliation.
type ProposalStore interface {
	ListPending(ctx context.Context) ([]*library.Proposal, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	GetBySourcePath(ctx context.Context, path string) (*library.Proposal, error)
}

// ProposalCreator runs the pipeline for a new file and persists the result.
type ProposalCreator interface {
	Create(ctx context.Context, path string) (*library.Proposal, error)
}

// ScanRecorder persists scan bookkeeping.
type ScanRecorder interface {
	SetLastScanTime(ctx context.Context, key string, t time.Time) error
	IncrementCounter(ctx context.Context, key string, delta int64) (int64, error)
}

// Compile-time verification
var (
	_ ProposalStore = (*library.ProposalRepository)(nil)
	_ ScanRecorder  = (*library.ScanMetadataRepository)(nil)
)

// Config holds the effective watcher options.
type Config struct {
	Root         string
	Extensions   []string
	Interval     time.Duration
	SkipRejected bool
	WatchEvents  bool
}

// CycleResult summarizes one reconciliation cycle.
type CycleResult struct {
	Files        int `json:"files"`
	Created      int `json:"created"`
	Skipped      int `json:"skipped"`
	StaleRemoved int `json:"stale_removed"`
	Errors       int `json:"errors"`
}

// Status is a snapshot of the watcher state.
type Status struct {
	State      string      `json:"state"` // "idle", "scanning", "ok", "error", "stopped"
	LastScan   time.Time   `json:"last_scan"`
	LastError  string      `json:"last_error,omitempty"`
	LastResult CycleResult `json:"last_result"`
}

// Service manages the reconciliation loop.
type Service struct {
	cycleMu sync.Mutex

	mu        sync.RWMutex
	state     string
	lastScan  time.Time
	lastError error
	result    CycleResult

	config   Config
	fs       fsx.FileSystem
	store    ProposalStore
	creator  ProposalCreator
	recorder ScanRecorder     // Optional
	metrics  *metrics.Metrics // Optional
	ready    ReadyCheck       // Optional

	trigger  chan struct{}
	stopChan chan struct{}
	stopped  bool
	wg       sync.WaitGroup
	log      *slog.Logger
}

// ReadyCheck reports why a file cannot be proposed yet, for example
// because it is still being written.
type ReadyCheck func(path string) error

// Option configures optional dependencies.
type Option func(*Service)

// WithRecorder persists the last scan time and counters.
func WithRecorder(r ScanRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithReadyCheck skips files the check rejects until a later cycle.
func WithReadyCheck(check ReadyCheck) Option {
	return func(s *Service) {
		s.ready = check
	}
}

// WithMetrics configures cycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a new watcher service.
func New(cfg Config, fs fsx.FileSystem, store ProposalStore, creator ProposalCreator, opts ...Option) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".mkv", ".mp4"}
	}
	s := &Service{
		state:    "idle",
		config:   cfg,
		fs:       fs,
		store:    store,
		creator:  creator,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		log:      slog.With("component", "watcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background loop. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	s.log.Info("Watcher started",
		"watch_path", s.config.Root,
		"interval", s.config.Interval,
		"extensions", s.config.Extensions,
		"watch_events", s.config.WatchEvents,
	)

	if s.config.WatchEvents {
		ev, err := newEventSource(s.config.Root, s.config.Extensions, s.TriggerScan)
		if err != nil {
			s.log.Warn("Filesystem events unavailable, relying on the interval", "error", err)
		} else {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				ev.run(s.stopChan)
			}()
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop halts the loop and waits for the running cycle to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()

	s.mu.Lock()
	s.state = "stopped"
	s.mu.Unlock()
	s.log.Info("Watcher stopped")
}

// TriggerScan requests a cycle as soon as the current one is done. It
// reports false when a request is already queued.
func (s *Service) TriggerScan() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// GetStatus returns the current watcher status.
func (s *Service) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:      s.state,
		LastScan:   s.lastScan,
		LastResult: s.result,
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

func (s *Service) loop(ctx context.Context) {
	// The cancel fires on Stop so a cycle stops between files.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := s.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("Reconciliation failed", "error", err)
		}
		timer.Reset(s.config.Interval)
	}
}

// Reconcile runs one cycle. Cycles never overlap. Per-file failures are
// logged and counted; only listing failures abort the cycle.
func (s *Service) Reconcile(ctx context.Context) (CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	s.setState("scanning")

	var result CycleResult
	err := s.reconcile(ctx, &result)
	s.finish(ctx, start, result, err)
	return result, err
}

func (s *Service) reconcile(ctx context.Context, result *CycleResult) error {
	files, err := s.fs.ListFiles(s.config.Root, s.config.Extensions)
	if err != nil {
		return err
	}
	result.Files = len(files)

	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return err
	}

	removed, err := s.removeStale(ctx, pending)
	result.StaleRemoved = removed
	if err != nil {
		return err
	}

	pending, err = s.store.ListPending(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(pending))
	for _, p := range pending {
		known[p.Source.OriginalPath] = true
	}

	// Started files finish even if the loop is being stopped.
	fileCtx := context.WithoutCancel(ctx)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if known[path] {
			continue
		}
		if identify.ShouldSkip(path) {
			s.log.Debug("Skipping extra", "file", path)
			result.Skipped++
			continue
		}
		if s.config.SkipRejected && s.wasRejected(fileCtx, path) {
			result.Skipped++
			continue
		}
		if s.ready != nil {
			if err := s.ready(path); err != nil {
				s.log.Debug("File not ready", "file", path, "reason", err)
				result.Skipped++
				continue
			}
		}

		s.log.Info("New file detected", "file", path)
		if _, err := s.creator.Create(fileCtx, path); err != nil {
			if errors.Is(err, library.ErrDuplicatePending) {
				result.Skipped++
				continue
			}
			s.log.Error("Failed to create proposal", "file", path, "error", err)
			result.Errors++
			continue
		}
		result.Created++
	}

	return nil
}

// removeStale deletes pending proposals whose source file is gone.
func (s *Service) removeStale(ctx context.Context, pending []*library.Proposal) (int, error) {
	var stale []string
	for _, p := range pending {
		exists, err := s.fs.Exists(p.Source.OriginalPath)
		if err != nil {
			s.log.Warn("Failed to check source", "file", p.Source.OriginalPath, "error", err)
			continue
		}
		if !exists {
			s.log.Info("Source removed, dropping proposal", "proposal_id", p.ID, "file", p.Source.OriginalPath)
			stale = append(stale, p.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.store.DeleteMany(ctx, stale)
	return int(n), err
}

func (s *Service) wasRejected(ctx context.Context, path string) bool {
	latest, err := s.store.GetBySourcePath(ctx, path)
	if err != nil {
		s.log.Warn("Failed to look up previous proposal", "file", path, "error", err)
		return false
	}
	return latest != nil && latest.Status == library.StatusRejected
}

func (s *Service) finish(ctx context.Context, start time.Time, result CycleResult, err error) {
	now := time.Now()
	took := now.Sub(start)
	s.metrics.CycleDone(took, result.Errors, result.StaleRemoved)

	if err != nil {
		s.mu.Lock()
		s.state = "error"
		s.lastError = err
		s.result = result
		s.mu.Unlock()
		return
	}

	if s.recorder != nil {
		recCtx := context.WithoutCancel(ctx)
		if err := s.recorder.SetLastScanTime(recCtx, scanKey, now); err != nil {
			s.log.Error("Failed to update scan metadata", "error", err)
		}
		if result.Created > 0 {
			if _, err := s.recorder.IncrementCounter(recCtx, "proposals_created", int64(result.Created)); err != nil {
				s.log.Error("Failed to update scan metadata", "error", err)
			}
		}
	}

	s.mu.Lock()
	s.state = "ok"
	s.lastScan = now
	s.lastError = nil
	s.result = result
	s.mu.Unlock()

	s.log.Debug("Reconciliation completed",
		"files", result.Files,
		"created", result.Created,
		"stale_removed", result.StaleRemoved,
		"errors", result.Errors,
		"took", took,
	)
}

func (s *Service) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
