package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shiftreport/internal/domain"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/store"
	"shiftreport/internal/validation"
)

// Progress is told how many photos of a submission have been uploaded.
type Progress func(done, total int)

// SubmitOptions are parameters for submitting a report.
type SubmitOptions struct {
	Form domain.ReportFormData
	// PhotoRefs were uploaded earlier and are kept in front of Photos.
	PhotoRefs []string
	Photos    []store.PhotoUpload
	Progress  Progress
}

func (e Engine) validate(form domain.ReportFormData) (domain.ReportPayload, error) {
	if e.Validator != nil {
		return e.Validator.Validate(form)
	}
	return validation.Validate(form)
}

// UploadPhoto stores one photo ahead of a submission.
func (e Engine) UploadPhoto(ctx context.Context, p auth.Principal, photo store.PhotoUpload) (string, error) {
	ref, err := e.Store.UploadPhoto(ctx, photo)
	if err != nil {
		return "", err
	}
	e.logger().Debug("photo uploaded", zap.String("user_id", p.UserID), zap.String("ref", ref))
	return ref, nil
}

// SubmitReport validates the form, checks every photo before uploading any,
// uploads them one at a time and stores the report.
func (e Engine) SubmitReport(ctx context.Context, p auth.Principal, opts SubmitOptions) (domain.Report, error) {
	payload, err := e.validate(opts.Form)
	if err != nil {
		return domain.Report{}, err
	}
	for _, ph := range opts.Photos {
		if err := store.CheckPhoto(ph); err != nil {
			return domain.Report{}, fmt.Errorf("%s: %w", ph.Filename, err)
		}
	}
	refs := append([]string{}, opts.PhotoRefs...)
	total := len(opts.Photos)
	for i, ph := range opts.Photos {
		ref, err := e.Store.UploadPhoto(ctx, ph)
		if err != nil {
			return domain.Report{}, fmt.Errorf("upload %s: %w", ph.Filename, err)
		}
		refs = append(refs, ref)
		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}
	rep, err := e.Store.CreateReport(ctx, p.UserID, payload, refs)
	if err != nil {
		return domain.Report{}, err
	}
	e.logger().Info("report submitted", zap.String("report_id", rep.ID), zap.String("user_id", p.UserID), zap.Int("photos", len(refs)))
	return rep, nil
}

// ListReports returns the caller's reports, or every report for admins.
func (e Engine) ListReports(ctx context.Context, p auth.Principal) ([]domain.Report, error) {
	if p.IsAdmin() {
		return e.Store.GetAllReports(ctx)
	}
	return e.Store.GetMyReports(ctx, p.UserID)
}

// GetReport returns one report. Employees may only read their own.
func (e Engine) GetReport(ctx context.Context, p auth.Principal, id string) (domain.Report, error) {
	rep, err := e.Store.GetReport(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}
	if !p.IsAdmin() && rep.UserID != p.UserID {
		return domain.Report{}, auth.ForbiddenError{Permission: "report.read"}
	}
	return rep, nil
}

// SearchOptions are raw search parameters. Dates are RFC3339, a local
// timestamp or a bare YYYY-MM-DD.
type SearchOptions struct {
	StartDate    string
	EndDate      string
	UserID       string
	ContractName string
}

// Filters parses opts. A bare end date covers that whole day.
func (e Engine) Filters(opts SearchOptions) (store.Filters, error) {
	f := store.Filters{
		OwnerID:      strings.TrimSpace(opts.UserID),
		ContractName: strings.TrimSpace(opts.ContractName),
	}
	fields := map[string]string{}
	if s := strings.TrimSpace(opts.StartDate); s != "" {
		t, _, err := e.parseDate(s)
		if err != nil {
			fields["start_date"] = "有効な日付を入力してください"
		} else {
			t = t.UTC()
			f.StartDate = &t
		}
	}
	if s := strings.TrimSpace(opts.EndDate); s != "" {
		t, dateOnly, err := e.parseDate(s)
		if err != nil {
			fields["end_date"] = "有効な日付を入力してください"
		} else {
			if dateOnly {
				t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
			}
			t = t.UTC()
			f.EndDate = &t
		}
	}
	if len(fields) > 0 {
		return store.Filters{}, &validation.Error{Fields: fields}
	}
	return f, nil
}

func (e Engine) parseDate(s string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, e.location()); err == nil {
		return t, true, nil
	}
	t, err := validation.ParseTime(s, e.location())
	return t, false, err
}

// SearchReports applies opts. Employees only ever see their own reports,
// whatever owner they ask for.
func (e Engine) SearchReports(ctx context.Context, p auth.Principal, opts SearchOptions) ([]domain.Report, error) {
	f, err := e.Filters(opts)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		f.OwnerID = p.UserID
	}
	return e.Store.SearchReports(ctx, f)
}

// ResolvePhoto returns a stored photo's bytes. Employees may only resolve
// photos attached to their own reports.
func (e Engine) ResolvePhoto(ctx context.Context, p auth.Principal, ref string) (store.Photo, error) {
	if strings.TrimSpace(ref) == "" {
		return store.Photo{}, store.ErrNotFound
	}
	if !p.IsAdmin() {
		owned, err := e.ownsPhoto(ctx, p.UserID, ref)
		if err != nil {
			return store.Photo{}, err
		}
		if !owned {
			return store.Photo{}, auth.ForbiddenError{Permission: "report.read"}
		}
	}
	return e.Store.ResolvePhoto(ctx, ref)
}

func (e Engine) ownsPhoto(ctx context.Context, userID, ref string) (bool, error) {
	reports, err := e.Store.GetMyReports(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, rep := range reports {
		for _, u := range rep.PhotoURLs {
			if u == ref {
				return true, nil
			}
		}
	}
	return false, nil
}
