package engine_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"shiftreport/internal/demo"
	"shiftreport/internal/domain"
	"shiftreport/internal/engine"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/ocr"
	"shiftreport/internal/pdf"
	"shiftreport/internal/store"
	"shiftreport/internal/validation"
)

type testEnv struct {
	Engine engine.Engine
	KV     *demo.KV
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	kv, err := demo.Open("file:" + filepath.Join(t.TempDir(), "demo.db"))
	if err != nil {
		t.Fatalf("open demo store: %v", err)
	}
	gw := store.NewDemo(kv, store.SeedConfig{})
	tick := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	gw.Now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	t.Cleanup(func() { gw.Close() })
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	v, err := validation.New(loc)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	now := func() time.Time { return time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC) }
	eng := engine.New(gw, v, auth.Tokens{Secret: "test-secret", Now: now},
		&pdf.Renderer{Layout: pdf.Layout{Location: loc}, Fonts: pdf.Fonts{Regular: "../pdf/testdata/boxgothic.ttf"}, Now: now}, nil, loc, nil)
	eng.Now = now
	return testEnv{Engine: eng, KV: kv, Ctx: context.Background()}
}

func (env testEnv) signUp(t *testing.T, email string) auth.Principal {
	t.Helper()
	s, err := env.Engine.SignUp(env.Ctx, email, "secret123", "警備 "+email)
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return auth.PrincipalFor(s.User)
}

func (env testEnv) admin(t *testing.T) auth.Principal {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "admin@example.com", Password: "admin123", FullName: "管理者", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return auth.PrincipalFor(u)
}

func (env testEnv) photoCount() int {
	photos := map[string]any{}
	_, _ = env.KV.Get(context.Background(), demo.KeyPhotos, &photos)
	return len(photos)
}

func form(contract, from, to string) domain.ReportFormData {
	return domain.ReportFormData{
		ContractName:  contract,
		GuardLocation: "大阪市都島区星陵ビル7m",
		WorkType:      domain.WorkTypeEventTraffic,
		WorkDateFrom:  from,
		WorkDateTo:    to,
	}
}

func jpegPhoto(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(32, 32, color.Gray{Y: 128}), imaging.JPEG); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSignUpLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.SignUp(env.Ctx, "guard@example.com", "secret123", "山田 太郎")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if s.Token == "" || s.User.Role != domain.RoleEmployee {
		t.Fatalf("unexpected session: %+v", s)
	}
	if _, err := env.Engine.SignUp(env.Ctx, "GUARD@example.com", "secret123", "別人"); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := env.Engine.SignUp(env.Ctx, "short@example.com", "12345", ""); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if _, err := env.Engine.Login(env.Ctx, "guard@example.com", "wrong-pass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "nobody@example.com", "secret123"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email should look like a bad password, got %v", err)
	}
	s, err = env.Engine.Login(env.Ctx, "guard@example.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	p, err := env.Engine.Authenticate(env.Ctx, s.Token)
	if err != nil || p.UserID != s.User.ID || p.Name != "山田 太郎" {
		t.Fatalf("authenticate: %+v %v", p, err)
	}
	if err := env.Engine.Logout(env.Ctx, p); err != nil {
		t.Fatalf("logout: %v", err)
	}

	admin := env.admin(t)
	logs, err := env.Engine.ListActivity(env.Ctx, admin, 10)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	want := []string{domain.ActionLogout, domain.ActionLogin, domain.ActionSignup}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("actions = %v, want %v", actions, want)
		}
	}
	if _, err := env.Engine.ListActivity(env.Ctx, p, 10); !isForbidden(err) {
		t.Fatalf("employee read activity: %v", err)
	}
}

func isForbidden(err error) bool {
	var fe auth.ForbiddenError
	return errors.As(err, &fe)
}

func TestSubmitReportChecksPhotosBeforeUploading(t *testing.T) {
	env := newTestEnv(t)
	p := env.signUp(t, "guard@example.com")
	good := store.PhotoUpload{Filename: "a.jpg", Data: jpegPhoto(t)}
	bad := store.PhotoUpload{Filename: "b.pdf", Data: []byte("%PDF-1.4\n")}

	_, err := env.Engine.SubmitReport(env.Ctx, p, engine.SubmitOptions{
		Form:   form("積水ハウス", "2026-01-15T08:00", "2026-01-15T17:00"),
		Photos: []store.PhotoUpload{good, bad},
	})
	if !errors.Is(err, store.ErrPhotoType) {
		t.Fatalf("expected ErrPhotoType, got %v", err)
	}
	if n := env.photoCount(); n != 0 {
		t.Fatalf("photos written before rejection: %d", n)
	}

	var progress [][2]int
	rep, err := env.Engine.SubmitReport(env.Ctx, p, engine.SubmitOptions{
		Form:     form("積水ハウス", "2026-01-15T08:00", "2026-01-15T17:00"),
		Photos:   []store.PhotoUpload{good, good},
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(rep.PhotoURLs) != 2 || rep.Status != domain.StatusSubmitted || rep.UserID != p.UserID {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(progress) != 2 || progress[0] != [2]int{1, 2} || progress[1] != [2]int{2, 2} {
		t.Fatalf("progress = %v", progress)
	}
	ph, err := env.Engine.ResolvePhoto(env.Ctx, p, rep.PhotoURLs[0])
	if err != nil || !bytes.Equal(ph.Data, good.Data) {
		t.Fatalf("resolve photo: %v", err)
	}
}

func TestResolvePhotoRequiresReadableReport(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")
	admin := env.admin(t)
	data := jpegPhoto(t)
	rep, err := env.Engine.SubmitReport(env.Ctx, alice, engine.SubmitOptions{
		Form:   form("積水ハウス", "2026-01-15T08:00", "2026-01-15T17:00"),
		Photos: []store.PhotoUpload{{Filename: "a.jpg", Data: data}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ref := rep.PhotoURLs[0]

	for name, p := range map[string]auth.Principal{"owner": alice, "admin": admin} {
		ph, err := env.Engine.ResolvePhoto(env.Ctx, p, ref)
		if err != nil || !bytes.Equal(ph.Data, data) {
			t.Fatalf("%s resolve: %v", name, err)
		}
	}
	if _, err := env.Engine.ResolvePhoto(env.Ctx, bob, ref); !isForbidden(err) {
		t.Fatalf("other employee resolve: %v", err)
	}

	loose, err := env.Engine.UploadPhoto(env.Ctx, bob, store.PhotoUpload{Filename: "b.jpg", Data: data})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := env.Engine.ResolvePhoto(env.Ctx, alice, loose); !isForbidden(err) {
		t.Fatalf("unattached photo resolve: %v", err)
	}
	if _, err := env.Engine.ResolvePhoto(env.Ctx, admin, loose); err != nil {
		t.Fatalf("admin resolve unattached: %v", err)
	}
}

func TestSubmitReportValidation(t *testing.T) {
	env := newTestEnv(t)
	p := env.signUp(t, "guard@example.com")
	_, err := env.Engine.SubmitReport(env.Ctx, p, engine.SubmitOptions{
		Form:   form("", "2026-01-15T08:00", "2026-01-15T07:00"),
		Photos: []store.PhotoUpload{{Filename: "a.jpg", Data: jpegPhoto(t)}},
	})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %v", err)
	}
	if _, ok := verr.Fields["work_date_to"]; !ok {
		t.Fatalf("fields = %v", verr.Fields)
	}
	if n := env.photoCount(); n != 0 {
		t.Fatalf("photos written for invalid form: %d", n)
	}
}

func TestSearchScopesEmployees(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")
	admin := env.admin(t)
	for _, sub := range []struct {
		who      auth.Principal
		contract string
		from     string
		to       string
	}{
		{alice, "積水ハウス", "2026-01-15T08:00", "2026-01-15T23:30"},
		{alice, "大和ハウス", "2026-01-20T08:00", "2026-01-20T17:00"},
		{bob, "積水ハウス", "2026-01-15T08:00", "2026-01-15T17:00"},
	} {
		if _, err := env.Engine.SubmitReport(env.Ctx, sub.who, engine.SubmitOptions{Form: form(sub.contract, sub.from, sub.to)}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	got, err := env.Engine.SearchReports(env.Ctx, alice, engine.SearchOptions{UserID: bob.UserID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("employee search returned %d reports, want own 2", len(got))
	}
	for _, r := range got {
		if r.UserID != alice.UserID {
			t.Fatalf("employee saw report of %s", r.UserID)
		}
	}

	got, err = env.Engine.SearchReports(env.Ctx, admin, engine.SearchOptions{EndDate: "2026-01-15", ContractName: "積水"})
	if err != nil {
		t.Fatalf("admin search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("date-only end should cover the whole day, got %d reports", len(got))
	}

	_, err = env.Engine.SearchReports(env.Ctx, admin, engine.SearchOptions{StartDate: "someday"})
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Fields["start_date"] == "" {
		t.Fatalf("expected start_date error, got %v", err)
	}

	mine, err := env.Engine.ListReports(env.Ctx, bob)
	if err != nil || len(mine) != 1 {
		t.Fatalf("bob list: %d %v", len(mine), err)
	}
	all, err := env.Engine.ListReports(env.Ctx, admin)
	if err != nil || len(all) != 3 {
		t.Fatalf("admin list: %d %v", len(all), err)
	}
}

func TestExports(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")
	admin := env.admin(t)
	rep, err := env.Engine.SubmitReport(env.Ctx, alice, engine.SubmitOptions{Form: form("積水ハウス", "2026-01-15T08:00", "2026-01-15T17:00")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	f, err := env.Engine.ExportPDF(env.Ctx, alice, rep.ID)
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if !bytes.HasPrefix(f.Bytes, []byte("%PDF")) || f.ContentType != "application/pdf" {
		t.Fatalf("not a pdf: %q", f.Bytes[:8])
	}
	if _, err := env.Engine.ExportPDF(env.Ctx, bob, rep.ID); !isForbidden(err) {
		t.Fatalf("bob exported alice's report: %v", err)
	}
	if _, err := env.Engine.ExportPDF(env.Ctx, admin, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := env.Engine.ExportBatchPDF(env.Ctx, alice, engine.SearchOptions{}); !isForbidden(err) {
		t.Fatalf("employee batch export: %v", err)
	}
	batch, err := env.Engine.ExportBatchPDF(env.Ctx, admin, engine.SearchOptions{})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch.Name != "セリュートラスト株式会社_20260201.pdf" {
		t.Fatalf("batch name = %q", batch.Name)
	}
	if _, err := env.Engine.ExportBatchPDF(env.Ctx, admin, engine.SearchOptions{ContractName: "該当なし"}); !errors.Is(err, engine.ErrNoReports) {
		t.Fatalf("expected ErrNoReports, got %v", err)
	}

	x, err := env.Engine.ExportXLSX(env.Ctx, admin, engine.SearchOptions{})
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	if x.Name != "reports_20260201.xlsx" || len(x.Bytes) == 0 {
		t.Fatalf("xlsx file = %q (%d bytes)", x.Name, len(x.Bytes))
	}

	logs, err := env.Engine.ListActivity(env.Ctx, admin, 100)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	downloads := 0
	for _, l := range logs {
		if l.Action == domain.ActionDownload {
			downloads++
		}
	}
	if downloads != 3 {
		t.Fatalf("download entries = %d, want 3", downloads)
	}
}

func TestAnalyzePhotoNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	p := env.signUp(t, "guard@example.com")
	_, err := env.Engine.AnalyzePhoto(env.Ctx, p, jpegPhoto(t))
	var oerr *ocr.Error
	if !errors.As(err, &oerr) || oerr.Code != ocr.CodeNotConfigured {
		t.Fatalf("expected NOT_CONFIGURED, got %v", err)
	}
	_, err = env.Engine.AnalyzePhoto(env.Ctx, p, []byte("plain text"))
	if !errors.As(err, &oerr) || oerr.Code != ocr.CodeInvalidImage {
		t.Fatalf("expected INVALID_IMAGE, got %v", err)
	}
}
