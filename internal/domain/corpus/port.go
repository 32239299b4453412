package corpus

import "context"

// Loader port (interface for reading the comparison dataset).
// Implementations re-read the source on every call; generation is an
// infrequent per-participant batch operation and always wants fresh data.
type Loader interface {
	Load(ctx context.Context) ([]PairwiseComparison, error)
}
