package corpus

// PairwiseComparison is one row of the precomputed comparison dataset.
// Rows are immutable ground truth: similarity was scored offline by an
// external matcher, this system only selects among them. Many rows
// reference the same file on either side.
type PairwiseComparison struct {
	FileA      string  `json:"file_a"`
	QualityA   float64 `json:"quality_a"`
	FileB      string  `json:"file_b"`
	QualityB   float64 `json:"quality_b"`
	SameSource bool    `json:"same_source"`
	SameFile   bool    `json:"same_file"`
	Score      float64 `json:"score"`
}
