package workflow

import "errors"

// Validation errors are returned before any remote write happens.
var (
	ErrNoItemsSelected      = errors.New("no items selected")
	ErrItemAlreadyPaid      = errors.New("selected item is already paid")
	ErrItemNotFound         = errors.New("selected item not found on parent invoice")
	ErrItemNotPatchable     = errors.New("selected item has no backend id")
	ErrParentRefsUnresolved = errors.New("parent invoice customer or warehouse could not be resolved")
)

// ErrSplitInProgress means another split holds the per-parent lock.
var ErrSplitInProgress = errors.New("another split is in progress for this invoice")

// ErrIdempotencyInProgress means a request with the same key is currently
// being processed elsewhere; the caller should retry later.
var ErrIdempotencyInProgress = errors.New("idempotency in progress")
