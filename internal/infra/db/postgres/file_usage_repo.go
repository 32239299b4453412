package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/latentlab/proficiency/internal/domain/tracking"
)

type FileUsageRepository struct{ db *sql.DB }

func NewFileUsageRepository(db *sql.DB) *FileUsageRepository { return &FileUsageRepository{db: db} }

func (r *FileUsageRepository) Exists(ctx context.Context, participant, fileName string) (bool, error) {
	const q = `
SELECT 1 FROM file_tracking
WHERE participant_id=$1 AND file_name=$2 LIMIT 1;`
	var one int
	err := r.db.QueryRowContext(ctx, q, participant, fileName).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *FileUsageRepository) ListFileNames(ctx context.Context, participant string) ([]string, error) {
	const q = `
SELECT file_name FROM file_tracking
WHERE participant_id=$1 ORDER BY used_at, id;`
	rows, err := r.db.QueryContext(ctx, q, participant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *FileUsageRepository) Insert(ctx context.Context, u *domain.FileUsage) error {
	const q = `
INSERT INTO file_tracking (participant_id, file_name, content_hash, used_at)
VALUES ($1,$2,$3,$4);`
	used := u.UsedAt
	if used.IsZero() {
		used = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, u.ParticipantID, u.FileName, u.ContentHash, used)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s/%s", domain.ErrDuplicate, u.ParticipantID, u.FileName)
		}
		return err
	}
	return nil
}
