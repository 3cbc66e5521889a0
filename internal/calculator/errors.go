// Package calculator implements the pure computations behind splitting and
// settling expenses: per-expense share allocation, group balance aggregation
// and settlement minimization.
//
// Nothing here performs I/O or holds state; every function may be called
// concurrently on immutable inputs.
package calculator

import "errors"

// Input errors. These are reported to the caller and never corrected silently.
var (
	// ErrIncompleteAssignment is returned when an item has no assignee, or when
	// tax or tip cannot be distributed because no item value is assigned.
	ErrIncompleteAssignment = errors.New("incomplete assignment")

	// ErrAmountMismatch is returned when the receipt total differs from the
	// sum of item prices plus tax plus tip.
	ErrAmountMismatch = errors.New("amount mismatch")

	// ErrInvalidItem is returned for items with a non-positive quantity.
	ErrInvalidItem = errors.New("invalid line item")
)

// Internal errors. They indicate a bug in this package or in the caller's
// aggregation and abort the operation.
var (
	// ErrInvariantViolation is returned when a conservation check fails.
	ErrInvariantViolation = errors.New("internal invariant violation")

	// ErrUnbalanced is returned when balances handed to the minimizer do not sum to zero.
	ErrUnbalanced = errors.New("balances do not sum to zero")
)
