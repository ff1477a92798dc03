package contract

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every lookup miss.
var ErrNotFound = errors.New("not found")

// Lookup misses per entity; errors.Is(err, ErrNotFound) holds for each.
var (
	ErrOrganizationNotFound = fmt.Errorf("organization %w", ErrNotFound)
	ErrRepositoryNotFound   = fmt.Errorf("repository %w", ErrNotFound)
	ErrSnapshotNotFound     = fmt.Errorf("snapshot %w", ErrNotFound)
	ErrMergeRequestNotFound = fmt.Errorf("merge request %w", ErrNotFound)
)
