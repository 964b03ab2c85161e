package shared

import "errors"

var (
	// ErrNotFound indicates a document, line item, snapshot or project is missing.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input: bad item type, missing reference,
	// non-positive quantity.
	ErrValidation = errors.New("validation failed")
	// ErrQuantityConflict occurs when a quantity change collides with recorded
	// fulfillment: reducing below the fulfilled amount, or consuming more than pending.
	ErrQuantityConflict = errors.New("quantity conflict")
	// ErrDocumentLocked occurs when a structural edit is attempted on a purchase
	// order outside draft status.
	ErrDocumentLocked = errors.New("document locked")
	// ErrDocumentFrozen occurs when a structural edit is attempted on a quote
	// that already has fulfillment recorded.
	ErrDocumentFrozen = errors.New("document frozen")
	// ErrConflictingPricingMode occurs when global markup and per-line discounts
	// would be active at the same time.
	ErrConflictingPricingMode = errors.New("conflicting pricing mode")
	// ErrInvalidRevert occurs when the revert target version does not exist or
	// is not strictly older than the current version.
	ErrInvalidRevert = errors.New("invalid revert target")
	// ErrConflict indicates a uniqueness collision, e.g. duplicate per-project sequence.
	ErrConflict = errors.New("conflict")
)
