// Package store is the persistence gateway for reports, users, photos and
// the activity log.
//
// Two adapters implement Gateway: Remote (SQL database plus an object bucket)
// and Demo (a local keyed-blob store). The application picks one at startup
// and never mixes them.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/cases"

	"shiftreport/internal/domain"
)

const (
	ModeRemote = "remote"
	ModeDemo   = "demo"
)

// MaxPhotoSize is the largest accepted upload, in bytes.
const MaxPhotoSize = 5 << 20

var (
	ErrNotFound      = errors.New("not found")
	ErrPhotoTooLarge = errors.New("ファイルサイズは5MB以下にしてください")
	ErrPhotoType     = errors.New("JPEG、PNGファイルのみアップロード可能です")
	ErrEmailTaken    = errors.New("email already registered")
)

type PhotoUpload struct {
	Filename string
	Data     []byte
}

type Photo struct {
	Ref         string
	Filename    string
	ContentType string
	Data        []byte
}

// Filters narrow SearchReports. Unset fields match everything.
type Filters struct {
	StartDate    *time.Time
	EndDate      *time.Time
	OwnerID      string
	ContractName string
}

type NewUser struct {
	Email        string
	FullName     string
	Role         string
	PasswordHash string
}

// DefaultAdminEmail is the seeded admin account when none is configured.
const DefaultAdminEmail = "admin@celutrust.co.jp"

// SeedConfig is the initial admin account created by Seed.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func (c SeedConfig) withDefaults() SeedConfig {
	if c.AdminEmail == "" {
		c.AdminEmail = DefaultAdminEmail
	}
	if c.AdminPassword == "" {
		c.AdminPassword = "admin123"
	}
	if c.AdminName == "" {
		c.AdminName = "管理者"
	}
	return c
}

type Gateway interface {
	UploadPhoto(ctx context.Context, photo PhotoUpload) (string, error)
	ResolvePhoto(ctx context.Context, ref string) (Photo, error)

	// CreateReport stores a new report and its submit audit entry together.
	CreateReport(ctx context.Context, ownerID string, payload domain.ReportPayload, photoRefs []string) (domain.Report, error)
	GetReport(ctx context.Context, id string) (domain.Report, error)
	GetMyReports(ctx context.Context, ownerID string) ([]domain.Report, error)
	GetAllReports(ctx context.Context) ([]domain.Report, error)
	SearchReports(ctx context.Context, f Filters) ([]domain.Report, error)

	CreateUser(ctx context.Context, u NewUser) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	// GetUserByEmail also returns the password hash.
	GetUserByEmail(ctx context.Context, email string) (domain.User, string, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	LogActivity(ctx context.Context, entry domain.ActivityLog) error
	ListActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error)

	SetSession(ctx context.Context, userID string) error
	ClearSession(ctx context.Context) error

	// Seed creates the initial accounts once per fresh store.
	Seed(ctx context.Context) error
	Close() error
}

// checkPhoto enforces the upload limits and returns the sniffed type.
func checkPhoto(p PhotoUpload) (*mimetype.MIME, error) {
	if len(p.Data) > MaxPhotoSize {
		return nil, ErrPhotoTooLarge
	}
	mt := mimetype.Detect(p.Data)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") {
		return nil, ErrPhotoType
	}
	return mt, nil
}

// CheckPhoto validates an upload without storing it.
func CheckPhoto(p PhotoUpload) error {
	_, err := checkPhoto(p)
	return err
}

// ContainsFold reports whether sub is in s under Unicode case folding.
func ContainsFold(s, sub string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(sub))
}

func (f Filters) match(r domain.Report) bool {
	if f.OwnerID != "" && r.UserID != f.OwnerID {
		return false
	}
	if f.StartDate != nil && r.WorkDateFrom.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.WorkDateTo.After(*f.EndDate) {
		return false
	}
	if f.ContractName != "" && !ContainsFold(r.ContractName, f.ContractName) {
		return false
	}
	return true
}

func stamp(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	return now().UTC().Truncate(time.Microsecond)
}
