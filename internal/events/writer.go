package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shiftreport/internal/db"
	"shiftreport/internal/domain"
)

// Writer appends activity log rows, usually inside the caller's transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, userID, action, resourceType, resourceID string) (domain.ActivityLog, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	entry := domain.ActivityLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    w.Now().UTC(),
	}
	const q = `INSERT INTO activity_logs(id,user_id,action,resource_type,resource_id,created_at) VALUES (?,?,?,?,?,?)`
	args := []any{entry.ID, entry.UserID, entry.Action, nullable(resourceType), nullable(resourceID), db.FormatTime(entry.CreatedAt)}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, args...)
	} else {
		_, err = w.DB.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return domain.ActivityLog{}, fmt.Errorf("append activity %s: %w", action, err)
	}
	return entry, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
