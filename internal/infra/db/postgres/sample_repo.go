package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

type SampleRepository struct{ db *sql.DB }

func NewSampleRepository(db *sql.DB) *SampleRepository { return &SampleRepository{db: db} }

// SaveSample insert/update Sample record
func (r *SampleRepository) SaveSample(ctx context.Context, s *domain.Sample) error {
	const q = `
INSERT INTO samples
(id, participant_id, carry_code, group_count, status, bundle_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
 group_count = EXCLUDED.group_count,
 status = EXCLUDED.status,
 bundle_url = EXCLUDED.bundle_url;`
	participant := stringOrDash(s.ParticipantID)
	status := stringOrDash(string(s.Status))
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		s.ID, participant, s.CarryCode, s.GroupCount, status, s.BundleURL, created)
	return err
}

// SaveGroup insert one group row; standards stored as JSON in selection order
func (r *SampleRepository) SaveGroup(ctx context.Context, g *domain.SampleGroup) error {
	const q = `
INSERT INTO sample_groups
(sample_id, group_no, questioned, has_match, matched_index, standards_json)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`
	standards, err := json.Marshal(g.Standards)
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, q,
		g.SampleID, g.GroupNo, g.Questioned, g.HasMatch, g.MatchedIndex, string(standards)).Scan(&g.ID)
}

func (r *SampleRepository) Get(ctx context.Context, participant string, id domain.SampleID) (*domain.Sample, error) {
	const q = `
SELECT id, participant_id, carry_code, group_count, status, bundle_url, created_at
FROM samples
WHERE participant_id=$1 AND id=$2 LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, participant, id)

	var s domain.Sample
	if err := row.Scan(&s.ID, &s.ParticipantID, &s.CarryCode, &s.GroupCount, &s.Status, &s.BundleURL, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SampleRepository) LatestByParticipant(ctx context.Context, participant string, limit int) ([]*domain.Sample, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, participant_id, carry_code, group_count, status, bundle_url, created_at
FROM samples
WHERE participant_id=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, participant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Sample
	for rows.Next() {
		var s domain.Sample
		if err := rows.Scan(&s.ID, &s.ParticipantID, &s.CarryCode, &s.GroupCount, &s.Status, &s.BundleURL, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *SampleRepository) ListGroups(ctx context.Context, id domain.SampleID) ([]*domain.SampleGroup, error) {
	const q = `
SELECT id, sample_id, group_no, questioned, has_match, matched_index, standards_json
FROM sample_groups
WHERE sample_id=$1 ORDER BY group_no;`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SampleGroup
	for rows.Next() {
		var g domain.SampleGroup
		var standards string
		if err := rows.Scan(&g.ID, &g.SampleID, &g.GroupNo, &g.Questioned, &g.HasMatch, &g.MatchedIndex, &standards); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(standards), &g.Standards); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}
