package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"shiftreport/internal/bucket"
	"shiftreport/internal/domain"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/events"
	"shiftreport/internal/repo"
)

// Remote persists to the SQL database and stores photos in a bucket.
type Remote struct {
	Repo   repo.Repo
	Events events.Writer
	Bucket bucket.Bucket
	Seeds  SeedConfig
	Now    func() time.Time
}

func NewRemote(conn *sql.DB, b bucket.Bucket, seeds SeedConfig) *Remote {
	r := &Remote{Repo: repo.Repo{DB: conn}, Bucket: b, Seeds: seeds, Now: time.Now}
	r.Events = events.Writer{DB: conn, Now: func() time.Time { return stamp(r.Now) }}
	return r
}

func (r *Remote) UploadPhoto(ctx context.Context, p PhotoUpload) (string, error) {
	mt, err := checkPhoto(p)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("reports/%d_%s%s", stamp(r.Now).UnixNano(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8], mt.Extension())
	url, err := r.Bucket.Put(ctx, name, mt.String(), p.Data)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return url, nil
}

func (r *Remote) ResolvePhoto(ctx context.Context, ref string) (Photo, error) {
	data, err := r.Bucket.Get(ctx, ref)
	if errors.Is(err, bucket.ErrNotFound) {
		return Photo{}, fmt.Errorf("photo %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return Photo{}, err
	}
	return Photo{Ref: ref, Filename: path.Base(ref), ContentType: mimetype.Detect(data).String(), Data: data}, nil
}

func (r *Remote) CreateReport(ctx context.Context, ownerID string, payload domain.ReportPayload, photoRefs []string) (domain.Report, error) {
	rep := domain.NewReport(ownerID, payload, photoRefs)
	rep.ID = uuid.NewString()
	rep.CreatedAt = stamp(r.Now)
	rep.UpdatedAt = rep.CreatedAt
	err := r.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.Repo.InsertReportTx(ctx, tx, rep); err != nil {
			return err
		}
		_, err := r.Events.Append(ctx, tx, ownerID, domain.ActionSubmit, "report", rep.ID)
		return err
	})
	if err != nil {
		return domain.Report{}, fmt.Errorf("create report: %w", err)
	}
	return rep, nil
}

func (r *Remote) GetReport(ctx context.Context, id string) (domain.Report, error) {
	rep, err := r.Repo.GetReport(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return rep, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return rep, err
}

func (r *Remote) GetMyReports(ctx context.Context, ownerID string) ([]domain.Report, error) {
	return r.Repo.ListReports(ctx, repo.ReportFilters{OwnerID: ownerID})
}

func (r *Remote) GetAllReports(ctx context.Context) ([]domain.Report, error) {
	return r.Repo.ListReports(ctx, repo.ReportFilters{})
}

// SearchReports pushes owner and date predicates into SQL and applies the
// contract name match in Go so case folding is the same as the demo adapter.
func (r *Remote) SearchReports(ctx context.Context, f Filters) ([]domain.Report, error) {
	reports, err := r.Repo.ListReports(ctx, repo.ReportFilters{OwnerID: f.OwnerID, From: f.StartDate, To: f.EndDate})
	if err != nil {
		return nil, err
	}
	if f.ContractName == "" {
		return reports, nil
	}
	out := reports[:0]
	for _, rep := range reports {
		if f.match(rep) {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r *Remote) CreateUser(ctx context.Context, nu NewUser) (domain.User, error) {
	u := domain.User{
		ID:        uuid.NewString(),
		Email:     strings.TrimSpace(nu.Email),
		FullName:  nu.FullName,
		Role:      nu.Role,
		CreatedAt: stamp(r.Now),
	}
	err := r.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		return r.Repo.InsertUserTx(ctx, tx, u, nu.PasswordHash)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Remote) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := r.Repo.GetUser(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return u, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

func (r *Remote) GetUserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	u, hash, err := r.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return u, "", fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return u, hash, err
}

func (r *Remote) ListUsers(ctx context.Context) ([]domain.User, error) {
	return r.Repo.ListUsers(ctx)
}

func (r *Remote) LogActivity(ctx context.Context, entry domain.ActivityLog) error {
	_, err := r.Events.Append(ctx, nil, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID)
	return err
}

func (r *Remote) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	return r.Repo.ListActivity(ctx, limit)
}

// Bearer tokens carry the session for the remote adapter.
func (r *Remote) SetSession(context.Context, string) error { return nil }
func (r *Remote) ClearSession(context.Context) error { return nil }

// Seed creates the admin account when the user table is empty.
func (r *Remote) Seed(ctx context.Context) error {
	n, err := r.Repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if n > 0 {
		return nil
	}
	seeds := r.Seeds.withDefaults()
	hash, err := auth.HashPassword(seeds.AdminPassword)
	if err != nil {
		return err
	}
	_, err = r.CreateUser(ctx, NewUser{Email: seeds.AdminEmail, FullName: seeds.AdminName, Role: domain.RoleAdmin, PasswordHash: hash})
	return err
}

func (r *Remote) Close() error {
	return r.Repo.DB.Close()
}
