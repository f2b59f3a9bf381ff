package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/to-wer/media-renamer/internal/library"
	"github.com/to-wer/media-renamer/internal/metrics"
	"github.com/to-wer/media-renamer/internal/rename"
)

// ProposalStore defines the persistence operations needed by ProposalService.
type ProposalStore interface {
	Add(ctx context.Context, p *library.Proposal) error
	GetByID(ctx context.Context, id string) (*library.Proposal, error)
	GetBySourcePath(ctx context.Context, path string) (*library.Proposal, error)
	List(ctx context.Context, sortBy library.SortKey, desc bool) ([]*library.Proposal, error)
	ListPending(ctx context.Context) ([]*library.Proposal, error)
	ListHistory(ctx context.Context) ([]*library.Proposal, error)
	Approve(ctx context.Context, id string) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
	Transition(ctx context.Context, id string, from, to library.Status) (bool, error)
	RecordExecution(ctx context.Context, id string, status library.Status, targetPath, message string) error
	UpdateProposedName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (library.Stats, error)
}

// Compile-time verification
var _ ProposalStore = (*library.ProposalRepository)(nil)

// Executor defines the filesystem step run after approval.
type Executor interface {
	Execute(ctx context.Context, p *library.Proposal) (rename.Result, error)
}

// Compile-time verification
var _ Executor = (*rename.Executor)(nil)

// ProposalService owns the proposal lifecycle.
type ProposalService struct {
	store    ProposalStore
	pipeline *Pipeline
	executor Executor
	metrics  *metrics.Metrics // Optional
	log      *slog.Logger
}

// ProposalServiceOption configures optional dependencies.
type ProposalServiceOption func(*ProposalService)

// WithMetrics configures metric recording.
func WithMetrics(m *metrics.Metrics) ProposalServiceOption {
	return func(s *ProposalService) {
		s.metrics = m
	}
}

// NewProposalService creates a new ProposalService.
func NewProposalService(store ProposalStore, pipeline *Pipeline, executor Executor, opts ...ProposalServiceOption) *ProposalService {
	s := &ProposalService{
		store:    store,
		pipeline: pipeline,
		executor: executor,
		log:      slog.With("component", "proposal-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pipeline returns the identification pipeline.
func (s *ProposalService) Pipeline() *Pipeline {
	return s.pipeline
}

// Create runs the pipeline for path and persists the proposal, which is
// pending or, when resolution failed, error.
func (s *ProposalService) Create(ctx context.Context, path string) (*library.Proposal, error) {
	p := s.pipeline.Propose(ctx, path)
	if err := s.store.Add(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.ProposalCreated(string(p.Status))
	if p.Status == library.StatusPending {
		s.log.Info("Proposal created (awaiting approval)", "file", path, "proposed_name", p.ProposedName)
	} else {
		s.log.Warn("Error proposal recorded", "file", path, "message", p.Message)
	}
	return p, nil
}

// Get returns a proposal or ErrProposalNotFound.
func (s *ProposalService) Get(ctx context.Context, id string) (*library.Proposal, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, library.ErrProposalNotFound
	}
	return p, nil
}

func (s *ProposalService) List(ctx context.Context, sortBy library.SortKey, desc bool) ([]*library.Proposal, error) {
	return s.store.List(ctx, sortBy, desc)
}

func (s *ProposalService) Pending(ctx context.Context) ([]*library.Proposal, error) {
	return s.store.ListPending(ctx)
}

func (s *ProposalService) History(ctx context.Context) ([]*library.Proposal, error) {
	return s.store.ListHistory(ctx)
}

func (s *ProposalService) Stats(ctx context.Context) (library.Stats, error) {
	return s.store.Stats(ctx)
}

// Approve gates a pending proposal and executes it. Approving a proposal that
// is no longer pending is a no-op returning its current state. The returned
// error reports an execution failure; the proposal is then stored as error.
func (s *ProposalService) Approve(ctx context.Context, id string) (*library.Proposal, error) {
	ok, err := s.store.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.Get(ctx, id)
	}

	// Only the caller that moves approved -> processing runs the executor.
	claimed, err := s.store.Transition(ctx, id, library.StatusApproved, library.StatusProcessing)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.Get(ctx, id)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	execErr := s.execute(ctx, p)

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, execErr
}

func (s *ProposalService) execute(ctx context.Context, p *library.Proposal) error {
	start := time.Now()
	res, err := s.executor.Execute(ctx, p)

	status, target, msg := library.StatusProcessed, res.TargetPath, ""
	switch {
	case err != nil:
		status, target, msg = library.StatusError, "", err.Error()
		s.log.Error("Failed to execute proposal",
			"proposal_id", p.ID,
			"file", p.Source.OriginalPath,
			"error", err,
		)
	case res.Outcome == rename.OutcomeSkipped:
		status, msg = library.StatusSkipped, "target already exists"
	}

	// The move already happened; record it even if the request was cancelled.
	recordCtx := context.WithoutCancel(ctx)
	if recErr := s.store.RecordExecution(recordCtx, p.ID, status, target, msg); recErr != nil {
		s.log.Error("Failed to record execution", "proposal_id", p.ID, "error", recErr)
		if err == nil {
			err = recErr
		}
	}
	s.metrics.Executed(string(status), time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to execute proposal %s: %w", p.ID, err)
	}
	return nil
}

// Reject marks a pending proposal rejected. Rejecting anything else is a no-op.
func (s *ProposalService) Reject(ctx context.Context, id string) (*library.Proposal, error) {
	if _, err := s.store.Reject(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Rename replaces the proposed name of a pending proposal.
func (s *ProposalService) Rename(ctx context.Context, id, name string) (*library.Proposal, error) {
	if err := s.store.UpdateProposedName(ctx, id, name); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *ProposalService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *ProposalService) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	return s.store.DeleteMany(ctx, ids)
}

func (s *ProposalService) Clear(ctx context.Context) (int64, error) {
	return s.store.Clear(ctx)
}

// IsClientError reports whether err is caused by the request rather than
// by the system.
func IsClientError(err error) bool {
	return errors.Is(err, library.ErrNotPending) ||
		errors.Is(err, library.ErrEmptyProposedName) ||
		errors.Is(err, library.ErrInvalidStatus)
}
