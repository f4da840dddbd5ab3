package split

import "errors"

// Sentinel errors for split tree edits.
var (
	// ErrPaneNotFound is returned when the target pane is not in the tree.
	ErrPaneNotFound = errors.New("pane not found")

	// ErrSplitNotFound is returned when a split id is not in the tree.
	ErrSplitNotFound = errors.New("split not found")

	// ErrLastPane is returned when closing the only pane of a tree.
	ErrLastPane = errors.New("cannot close the last pane")

	// ErrInvalidRatio is returned for ratios outside (0,1) or NaN.
	ErrInvalidRatio = errors.New("invalid split ratio")

	// ErrInvalidDirection is returned for unknown split directions.
	ErrInvalidDirection = errors.New("invalid split direction")

	// ErrDuplicatePane is returned when a pane would appear twice.
	ErrDuplicatePane = errors.New("pane already in tree")

	// ErrEmptyTree is returned when validating a tree with no panes.
	ErrEmptyTree = errors.New("empty tree")
)
