package genlog

import "time"

// GenerationEvent represents a persisted generation audit entry: a
// dropped group, a failed batch, or a packaging abort.
type GenerationEvent struct {
	ID            int64     `json:"id"`
	ParticipantID string    `json:"participant_id"`
	SampleID      string    `json:"sample_id"`
	Phase         string    `json:"phase,omitempty"` // select | package | archive
	Reason        string    `json:"reason"`
	DetailsJSON   string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt     time.Time `json:"created_at"`
}
