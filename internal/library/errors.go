package library

import "errors"

// Sentinel errors for proposal store operations.
var (
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrNotPending        = errors.New("proposal is not pending")
	ErrDuplicatePending  = errors.New("a pending proposal already exists for this source path")
	ErrEmptyProposedName = errors.New("proposed name must not be empty")
	ErrInvalidStatus     = errors.New("invalid proposal status")
)
