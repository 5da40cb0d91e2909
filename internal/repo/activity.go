package repo

import (
	"context"
	"database/sql"

	"shiftreport/internal/db"
	"shiftreport/internal/domain"
)

// ListActivity returns the newest activity entries first. A limit <= 0 returns all.
func (r Repo) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	query := `SELECT id,user_id,action,COALESCE(resource_type,''),COALESCE(resource_id,''),created_at FROM activity_logs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ActivityLog{}
	for rows.Next() {
		var (
			entry   domain.ActivityLog
			created string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.ResourceType, &entry.ResourceID, &created); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = db.ParseTime(created); err != nil {
			return nil, err
		}
		res = append(res, entry)
	}
	return res, rows.Err()
}

// WithTx runs fn in a transaction, committing only when fn succeeds.
func (r Repo) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
