package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/latentlab/proficiency/internal/domain/samples"
)

type SampleRepository struct {
	db *sql.DB
}

func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// SaveSample insert/update Sample record
func (r *SampleRepository) SaveSample(ctx context.Context, s *domain.Sample) error {
	const q = `
INSERT INTO samples
(id, participant_id, carry_code, group_count, status, bundle_url, created_at)
VALUES (?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 group_count=VALUES(group_count),
 status=VALUES(status),
 bundle_url=VALUES(bundle_url);`
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
VALUES (?,?,?,?,?,?);`
	standards, err := json.Marshal(g.Standards)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q,
		g.SampleID, g.GroupNo, g.Questioned, g.HasMatch, g.MatchedIndex, string(standards))
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		g.ID = id
	}
	return nil
}

// Get by ID + participant
func (r *SampleRepository) Get(ctx context.Context, participant string, id domain.SampleID) (*domain.Sample, error) {
	const q = `
SELECT id, participant_id, carry_code, group_count, status, bundle_url, created_at
FROM samples
WHERE participant_id=? AND id=? LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, participant, id)

	var s domain.Sample
	if err := row.Scan(&s.ID, &s.ParticipantID, &s.CarryCode, &s.GroupCount, &s.Status, &s.BundleURL, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestByParticipant returns the newest samples first
func (r *SampleRepository) LatestByParticipant(ctx context.Context, participant string, limit int) ([]*domain.Sample, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, participant_id, carry_code, group_count, status, bundle_url, created_at
FROM samples
WHERE participant_id=? ORDER BY created_at DESC LIMIT ?;`
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

// ListGroups returns a sample's groups in group order
func (r *SampleRepository) ListGroups(ctx context.Context, id domain.SampleID) ([]*domain.SampleGroup, error) {
	const q = `
SELECT id, sample_id, group_no, questioned, has_match, matched_index, standards_json
FROM sample_groups
WHERE sample_id=? ORDER BY group_no;`
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
