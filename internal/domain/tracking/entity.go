package tracking

import "time"

// FileUsage records that a participant has been shown a file. Written once
// the first time the file is selected for that participant, never updated
// or deleted. The content hash is kept for audit and integrity only;
// membership checks are by file name.
type FileUsage struct {
	ID            int64     `json:"id"`
	ParticipantID string    `json:"participant_id"`
	FileName      string    `json:"file_name"`
	ContentHash   string    `json:"content_hash"`
	UsedAt        time.Time `json:"used_at"`
}
