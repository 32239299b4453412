package corpus

import "regexp"

// Filenames follow fingerprint_<id>_v<variant>.<ext>; the numeral token
// identifies the physical print source independent of file version.
var sourcePattern = regexp.MustCompile(`^fingerprint_(\d+)_v\d+\.[A-Za-z0-9]+$`)

// SourceID extracts the source identifier from a filename. Files that do
// not follow the naming convention report ok=false and cannot take part in
// identity-based deduplication beyond plain name equality.
func SourceID(filename string) (string, bool) {
	m := sourcePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1], true
}
