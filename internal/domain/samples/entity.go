package samples

import (
	"time"
)

// ID type for Sample
type SampleID string

// Status enum
type Status string

const (
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// NoMatch is the MatchedIndex value of a group without an embedded
// genuine pairing.
const NoMatch = -1

// GroupCandidate is one generated comparison group: a questioned print
// plus its standards, already shuffled by the selector. MatchedIndex is
// the post-shuffle position of the genuine pairing, or NoMatch.
type GroupCandidate struct {
	Questioned   string   `json:"questioned"`
	Standards    []string `json:"standards"`
	HasMatch     bool     `json:"has_match"`
	MatchedIndex int      `json:"matched_index"`
}

// Aggregate Root: Sample, one packaged bundle for one participant.
type Sample struct {
	ID            SampleID  `json:"id"`
	ParticipantID string    `json:"participant_id"`
	CarryCode     string    `json:"carry_code"`
	GroupCount    int       `json:"group_count"`
	Status        Status    `json:"status"`
	BundleURL     string    `json:"bundle_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SampleGroup is the persisted form of a GroupCandidate.
type SampleGroup struct {
	ID           int64    `json:"id"`
	SampleID     SampleID `json:"sample_id"`
	GroupNo      int      `json:"group_no"`
	Questioned   string   `json:"questioned"`
	HasMatch     bool     `json:"has_match"`
	MatchedIndex int      `json:"matched_index"`
	Standards    []string `json:"standards"`
}

// DegradationParams describes the elliptical partial blur applied to a
// questioned image. Derived fresh per image and never persisted.
type DegradationParams struct {
	CenterX      int     `json:"center_x"`
	CenterY      int     `json:"center_y"`
	RadiusX      int     `json:"radius_x"`
	RadiusY      int     `json:"radius_y"`
	RotationDeg  float64 `json:"rotation_deg"`
	AreaPercent  float64 `json:"area_percent"`
	Eccentricity float64 `json:"eccentricity"`
}
