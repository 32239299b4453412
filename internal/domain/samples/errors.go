package samples

import "errors"

var (
	// ErrCorpusUnavailable indicates the comparison dataset was missing or
	// empty, so no group can be formed at all.
	ErrCorpusUnavailable = errors.New("comparison corpus unavailable or empty")

	// ErrInsufficientCandidates indicates a single group draw could not
	// satisfy the count/uniqueness constraints. Recovered locally: the
	// group is dropped and generation continues.
	ErrInsufficientCandidates = errors.New("insufficient candidates for group")

	// ErrUsageConflict indicates a usage record insert hit an existing
	// record. Points at a race or a filtering defect, so the whole batch
	// fails hard.
	ErrUsageConflict = errors.New("file usage record conflict")

	// ErrAssetMissing indicates a referenced image file could not be
	// located or read. Fatal for the sample request, already written
	// groups are left in place.
	ErrAssetMissing = errors.New("image asset missing")
)
