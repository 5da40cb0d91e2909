package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"shiftreport/internal/demo"
	"shiftreport/internal/domain"
	"shiftreport/internal/engine/auth"
)

const demoPhotoPrefix = "demo://photo/"

type demoUser struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

type demoPhoto struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

type demoSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Demo keeps every collection as one blob in a local demo.KV.
type Demo struct {
	KV    *demo.KV
	Seeds SeedConfig
	Now   func() time.Time
}

func NewDemo(kv *demo.KV, seeds SeedConfig) *Demo {
	return &Demo{KV: kv, Seeds: seeds, Now: time.Now}
}

func (d *Demo) UploadPhoto(ctx context.Context, p PhotoUpload) (string, error) {
	mt, err := checkPhoto(p)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = d.KV.Atomic(ctx, func(tx demo.Txn) error {
		photos := map[string]demoPhoto{}
		if _, err := tx.Get(demo.KeyPhotos, &photos); err != nil {
			return err
		}
		photos[id] = demoPhoto{Filename: p.Filename, ContentType: mt.String(), Data: p.Data, CreatedAt: stamp(d.Now)}
		return tx.Put(demo.KeyPhotos, photos)
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return demoPhotoPrefix + id, nil
}

func (d *Demo) ResolvePhoto(ctx context.Context, ref string) (Photo, error) {
	id, ok := strings.CutPrefix(ref, demoPhotoPrefix)
	if !ok {
		return Photo{}, fmt.Errorf("photo %s: %w", ref, ErrNotFound)
	}
	photos := map[string]demoPhoto{}
	if _, err := d.KV.Get(ctx, demo.KeyPhotos, &photos); err != nil {
		return Photo{}, err
	}
	p, ok := photos[id]
	if !ok {
		return Photo{}, fmt.Errorf("photo %s: %w", ref, ErrNotFound)
	}
	return Photo{Ref: ref, Filename: p.Filename, ContentType: p.ContentType, Data: p.Data}, nil
}

func (d *Demo) CreateReport(ctx context.Context, ownerID string, payload domain.ReportPayload, photoRefs []string) (domain.Report, error) {
	rep := domain.NewReport(ownerID, payload, photoRefs)
	rep.ID = uuid.NewString()
	rep.CreatedAt = stamp(d.Now)
	rep.UpdatedAt = rep.CreatedAt
	err := d.KV.Atomic(ctx, func(tx demo.Txn) error {
		var reports []domain.Report
		if _, err := tx.Get(demo.KeyReports, &reports); err != nil {
			return err
		}
		if err := tx.Put(demo.KeyReports, append(reports, rep)); err != nil {
			return err
		}
		return appendActivity(tx, domain.ActivityLog{
			UserID:       ownerID,
			Action:       domain.ActionSubmit,
			ResourceType: "report",
			ResourceID:   rep.ID,
			CreatedAt:    rep.CreatedAt,
		})
	})
	if err != nil {
		return domain.Report{}, fmt.Errorf("create report: %w", err)
	}
	return rep, nil
}

func appendActivity(tx demo.Txn, entry domain.ActivityLog) error {
	var logs []domain.ActivityLog
	if _, err := tx.Get(demo.KeyActivity, &logs); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return tx.Put(demo.KeyActivity, append(logs, entry))
}

func (d *Demo) reports(ctx context.Context) ([]domain.Report, error) {
	var reports []domain.Report
	if _, err := d.KV.Get(ctx, demo.KeyReports, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (d *Demo) GetReport(ctx context.Context, id string) (domain.Report, error) {
	reports, err := d.reports(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	for _, rep := range reports {
		if rep.ID == id {
			return rep, nil
		}
	}
	return domain.Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
}

func (d *Demo) GetMyReports(ctx context.Context, ownerID string) ([]domain.Report, error) {
	return d.SearchReports(ctx, Filters{OwnerID: ownerID})
}

func (d *Demo) GetAllReports(ctx context.Context) ([]domain.Report, error) {
	return d.SearchReports(ctx, Filters{})
}

func (d *Demo) SearchReports(ctx context.Context, f Filters) ([]domain.Report, error) {
	reports, err := d.reports(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Report{}
	for _, rep := range reports {
		if f.match(rep) {
			if rep.PhotoURLs == nil {
				rep.PhotoURLs = []string{}
			}
			out = append(out, rep)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Report) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (d *Demo) users(ctx context.Context) ([]demoUser, error) {
	var users []demoUser
	if _, err := d.KV.Get(ctx, demo.KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (d *Demo) CreateUser(ctx context.Context, nu NewUser) (domain.User, error) {
	u := domain.User{
		ID:        uuid.NewString(),
		Email:     strings.TrimSpace(nu.Email),
		FullName:  nu.FullName,
		Role:      nu.Role,
		CreatedAt: stamp(d.Now),
	}
	err := d.KV.Atomic(ctx, func(tx demo.Txn) error {
		_, err := insertDemoUser(tx, demoUser{User: u, PasswordHash: nu.PasswordHash})
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// insertDemoUser returns the stored id: u.ID, or the id of the account that
// already holds the email alongside ErrEmailTaken.
func insertDemoUser(tx demo.Txn, u demoUser) (string, error) {
	var users []demoUser
	if _, err := tx.Get(demo.KeyUsers, &users); err != nil {
		return "", err
	}
	for _, existing := range users {
		if strings.EqualFold(existing.Email, u.Email) {
			return existing.ID, ErrEmailTaken
		}
	}
	if err := tx.Put(demo.KeyUsers, append(users, u)); err != nil {
		return "", err
	}
	return u.ID, nil
}

func (d *Demo) GetUser(ctx context.Context, id string) (domain.User, error) {
	users, err := d.users(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u.User, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
}

func (d *Demo) GetUserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	users, err := d.users(ctx)
	if err != nil {
		return domain.User{}, "", err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u.User, u.PasswordHash, nil
		}
	}
	return domain.User{}, "", fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (d *Demo) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := d.users(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.User)
	}
	return out, nil
}

func (d *Demo) LogActivity(ctx context.Context, entry domain.ActivityLog) error {
	entry.CreatedAt = stamp(d.Now)
	return d.KV.Atomic(ctx, func(tx demo.Txn) error {
		return appendActivity(tx, entry)
	})
}

func (d *Demo) ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	var logs []domain.ActivityLog
	if _, err := d.KV.Get(ctx, demo.KeyActivity, &logs); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.ActivityLog{}
	}
	slices.SortStableFunc(logs, func(a, b domain.ActivityLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (d *Demo) SetSession(ctx context.Context, userID string) error {
	return d.KV.Atomic(ctx, func(tx demo.Txn) error {
		return tx.Put(demo.KeySession, demoSession{UserID: userID, CreatedAt: stamp(d.Now)})
	})
}

func (d *Demo) ClearSession(ctx context.Context) error {
	return d.KV.Atomic(ctx, func(tx demo.Txn) error {
		return tx.Delete(demo.KeySession)
	})
}

// Session returns the user id of the last login, if any.
func (d *Demo) Session(ctx context.Context) (string, bool, error) {
	var s demoSession
	ok, err := d.KV.Get(ctx, demo.KeySession, &s)
	if err != nil || !ok {
		return "", false, err
	}
	return s.UserID, true, nil
}

// Seed creates the admin, a demo employee and two sample reports, once.
func (d *Demo) Seed(ctx context.Context) error {
	seeds := d.Seeds.withDefaults()
	adminHash, err := auth.HashPassword(seeds.AdminPassword)
	if err != nil {
		return err
	}
	employeeHash, err := auth.HashPassword(demoEmployeePassword)
	if err != nil {
		return err
	}
	now := stamp(d.Now)
	return d.KV.Atomic(ctx, func(tx demo.Txn) error {
		var seeded bool
		if _, err := tx.Get(demo.KeySeeded, &seeded); err != nil {
			return err
		}
		if seeded {
			return nil
		}
		admin := demoUser{User: domain.User{ID: uuid.NewString(), Email: seeds.AdminEmail, FullName: seeds.AdminName, Role: domain.RoleAdmin, CreatedAt: now}, PasswordHash: adminHash}
		employee := demoUser{User: domain.User{ID: uuid.NewString(), Email: demoEmployeeEmail, FullName: demoEmployeeName, Role: domain.RoleEmployee, CreatedAt: now}, PasswordHash: employeeHash}
		if _, err := insertDemoUser(tx, admin); err != nil && !errors.Is(err, ErrEmailTaken) {
			return err
		}
		employeeID, err := insertDemoUser(tx, employee)
		if err != nil && !errors.Is(err, ErrEmailTaken) {
			return err
		}
		var reports []domain.Report
		if _, err := tx.Get(demo.KeyReports, &reports); err != nil {
			return err
		}
		if len(reports) == 0 {
			if err := tx.Put(demo.KeyReports, sampleReports(employeeID, now)); err != nil {
				return err
			}
		}
		return tx.Put(demo.KeySeeded, true)
	})
}

func (d *Demo) Close() error {
	return d.KV.Close()
}
