package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shiftreport/internal/db"
	"shiftreport/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

const reportColumns = `id,user_id,contract_name,guard_location,work_type,work_detail,work_date_from,work_date_to,` +
	`weather,break_time,overtime_time,assigned_guards,photo_urls_json,special_notes,special_notes_detail,` +
	`traffic_guide_assigned,traffic_guide_assignee_name,misc_guard_assigned,misc_guard_assignee_name,` +
	`remarks,status,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (domain.Report, error) {
	var (
		rep                        domain.Report
		from, to, created, updated string
		photos                     string
	)
	err := row.Scan(&rep.ID, &rep.UserID, &rep.ContractName, &rep.GuardLocation, &rep.WorkType, &rep.WorkDetail,
		&from, &to, &rep.Weather, &rep.BreakTime, &rep.OvertimeTime, &rep.AssignedGuards, &photos,
		&rep.SpecialNotes, &rep.SpecialNotesDetail, &rep.TrafficGuideAssigned, &rep.TrafficGuideAssigneeName,
		&rep.MiscGuardAssigned, &rep.MiscGuardAssigneeName, &rep.Remarks, &rep.Status, &created, &updated)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, err
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&rep.WorkDateFrom, from}, {&rep.WorkDateTo, to}, {&rep.CreatedAt, created}, {&rep.UpdatedAt, updated}} {
		t, err := db.ParseTime(f.src)
		if err != nil {
			return rep, fmt.Errorf("report %s: %w", rep.ID, err)
		}
		*f.dst = t
	}
	rep.PhotoURLs = []string{}
	if photos != "" {
		if err := json.Unmarshal([]byte(photos), &rep.PhotoURLs); err != nil {
			return rep, fmt.Errorf("report %s photo_urls: %w", rep.ID, err)
		}
	}
	return rep, nil
}

func (r Repo) InsertReportTx(ctx context.Context, tx *sql.Tx, rep domain.Report) error {
	photos := rep.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO reports(`+reportColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.UserID, rep.ContractName, rep.GuardLocation, rep.WorkType, rep.WorkDetail,
		db.FormatTime(rep.WorkDateFrom), db.FormatTime(rep.WorkDateTo), rep.Weather, rep.BreakTime, rep.OvertimeTime,
		rep.AssignedGuards, string(photosJSON), rep.SpecialNotes, rep.SpecialNotesDetail,
		rep.TrafficGuideAssigned, rep.TrafficGuideAssigneeName, rep.MiscGuardAssigned, rep.MiscGuardAssigneeName,
		rep.Remarks, rep.Status, db.FormatTime(rep.CreatedAt), db.FormatTime(rep.UpdatedAt))
	return err
}

func (r Repo) GetReport(ctx context.Context, id string) (domain.Report, error) {
	return scanReport(r.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id))
}

// ReportFilters narrows ListReports. Zero values match everything.
type ReportFilters struct {
	OwnerID string
	// From keeps reports whose work starts at or after it.
	From *time.Time
	// To keeps reports whose work ends at or before it.
	To *time.Time
}

// ListReports returns reports newest first, ties broken by id.
func (r Repo) ListReports(ctx context.Context, f ReportFilters) ([]domain.Report, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.OwnerID)
	}
	if f.From != nil {
		clauses = append(clauses, "work_date_from>=?")
		args = append(args, db.FormatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "work_date_to<=?")
		args = append(args, db.FormatTime(*f.To))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}
