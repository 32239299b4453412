package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/latentlab/proficiency/internal/domain/genlog"
)

type GenerationEventRepository struct {
	db *sql.DB
}

func NewGenerationEventRepository(db *sql.DB) *GenerationEventRepository {
	return &GenerationEventRepository{db: db}
}

func (r *GenerationEventRepository) Save(ctx context.Context, e *domain.GenerationEvent) error {
	const q = `
INSERT INTO generation_events
  (participant_id, sample_id, phase, reason, details_json, created_at)
VALUES (?,?,?,?,?,?);`
	participant := stringOrDash(e.ParticipantID)
	sample := stringOrDash(e.SampleID)
	phase := stringOrDash(e.Phase)
	reason := e.Reason
	if strings.TrimSpace(reason) == "" {
		reason = "-"
	}
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else {
		// ensure valid json; if invalid, wrap as string field
		var js any
		if json.Unmarshal([]byte(details), &js) != nil {
			b, _ := json.Marshal(map[string]string{"raw": details})
			details = string(b)
		}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, participant, sample, phase, reason, details, created)
	return err
}

func (r *GenerationEventRepository) ListBySample(ctx context.Context, participant string, sampleID string, limit int) ([]*domain.GenerationEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, participant_id, sample_id, phase, reason, details_json, created_at
FROM generation_events
WHERE participant_id = ? AND sample_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, participant, sampleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.GenerationEvent
	for rows.Next() {
		var e domain.GenerationEvent
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.SampleID, &e.Phase, &e.Reason, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
