// Package rename moves approved proposals into the output library.
package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/to-wer/media-renamer/internal/fsx"
	"github.com/to-wer/media-renamer/internal/library"
)

var (
	ErrNoOutputRoot = errors.New("no output path configured")
	ErrOutsideRoot  = errors.New("proposed name escapes the output path")
	ErrEmptyName    = errors.New("proposal has no proposed name")
)

// DuplicatePolicy decides what happens when the target already exists.
type DuplicatePolicy string

const (
	PolicySkip             DuplicatePolicy = "skip"
	PolicyOverwrite        DuplicatePolicy = "overwrite"
	PolicyRenameWithSuffix DuplicatePolicy = "rename_with_suffix"
)

// ParsePolicy maps a config value to a policy, defaulting to skip.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyRenameWithSuffix:
		return PolicyRenameWithSuffix, nil
	default:
		return "", fmt.Errorf("unknown duplicate handling %q", s)
	}
}

// Outcome is the result of executing one proposal.
type Outcome string

const (
	OutcomeMoved   Outcome = "moved"
	OutcomeSkipped Outcome = "skipped"
)

type Result struct {
	Outcome    Outcome
	TargetPath string
}

// MoveError carries the paths of a failed filesystem step.
type MoveError struct {
	Source string
	Target string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s -> %s: %v", e.Source, e.Target, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// Roots are the destination directories per media type. Empty entries fall
// back to Default.
type Roots struct {
	Default string
	Movie   string
	Episode string
}

func (r Roots) For(t library.MediaType) string {
	switch t {
	case library.MediaTypeEpisode:
		if r.Episode != "" {
			return r.Episode
		}
	case library.MediaTypeMovie:
		if r.Movie != "" {
			return r.Movie
		}
	}
	return r.Default
}

// Executor performs the filesystem side of an approved proposal.
type Executor struct {
	// mu serializes the exists check and the move, so two proposals with
	// the same target cannot both see it free.
	mu     sync.Mutex
	fs     fsx.FileSystem
	roots  Roots
	policy DuplicatePolicy
	log    *slog.Logger
}

func NewExecutor(fs fsx.FileSystem, roots Roots, policy DuplicatePolicy) *Executor {
	if policy == "" {
		policy = PolicySkip
	}
	return &Executor{
		fs:     fs,
		roots:  roots,
		policy: policy,
		log:    slog.With("component", "rename-executor"),
	}
}

// Policy returns the duplicate handling policy.
func (e *Executor) Policy() DuplicatePolicy {
	return e.policy
}

// Target computes the destination path of a proposal without touching disk.
func (e *Executor) Target(p *library.Proposal) (string, error) {
	root := e.roots.For(p.Source.Type)
	if root == "" {
		return "", ErrNoOutputRoot
	}
	rel := p.ProposedPath()
	if rel == "" || rel == "." {
		return "", ErrEmptyName
	}

	root = filepath.Clean(root)
	target := filepath.Join(root, rel+p.Source.Extension())
	within, err := filepath.Rel(root, target)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p.ProposedName)
	}
	return target, nil
}

// Execute moves the proposal's source file to its target. The context is only
// consulted before the first change on disk.
func (e *Executor) Execute(ctx context.Context, p *library.Proposal) (Result, error) {
	target, err := e.Target(p)
	if err != nil {
		return Result{}, err
	}
	src := p.Source.OriginalPath

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	same, err := e.fs.SameFile(src, target)
	if err != nil {
		return Result{}, &MoveError{Source: src, Target: target, Err: err}
	}
	if same {
		e.log.Info("File already in place", "source", src)
		return Result{Outcome: OutcomeMoved, TargetPath: target}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.fs.MkdirAll(filepath.Dir(target)); err != nil {
		return Result{}, &MoveError{Source: src, Target: target, Err: fmt.Errorf("create directory: %w", err)}
	}

	exists, err := e.fs.Exists(target)
	if err != nil {
		return Result{}, &MoveError{Source: src, Target: target, Err: err}
	}

	if exists {
		switch e.policy {
		case PolicyOverwrite:
			if err := e.fs.Remove(target); err != nil {
				return Result{}, &MoveError{Source: src, Target: target, Err: fmt.Errorf("remove existing: %w", err)}
			}
		case PolicyRenameWithSuffix:
			target, err = e.freeSuffixed(target)
			if err != nil {
				return Result{}, &MoveError{Source: src, Target: target, Err: err}
			}
		default:
			e.log.Info("Target exists, skipping", "source", src, "target", target)
			return Result{Outcome: OutcomeSkipped, TargetPath: target}, nil
		}
	}

	if err := e.fs.Move(src, target); err != nil {
		return Result{}, &MoveError{Source: src, Target: target, Err: err}
	}

	e.log.Info("Moved file", "source", src, "target", target)
	return Result{Outcome: OutcomeMoved, TargetPath: target}, nil
}

// freeSuffixed returns the first of name_1.ext, name_2.ext, ... that does
// not exist yet.
func (e *Executor) freeSuffixed(target string) (string, error) {
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		exists, err := e.fs.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
