package tracking

import (
	"context"
	"errors"
)

// ErrDuplicate is returned by Insert when the store's uniqueness
// constraint on (participant_id, content_hash) rejects the row. The
// constraint is the real correctness backstop against concurrent
// generation, not the read-time filter.
var ErrDuplicate = errors.New("file usage already recorded")

// Repository defines persistence for file usage
type Repository interface {
	Exists(ctx context.Context, participant, fileName string) (bool, error)
	ListFileNames(ctx context.Context, participant string) ([]string, error)
	Insert(ctx context.Context, u *FileUsage) error
}
