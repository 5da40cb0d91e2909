package store_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"shiftreport/internal/bucket"
	"shiftreport/internal/db"
	"shiftreport/internal/demo"
	"shiftreport/internal/domain"
	"shiftreport/internal/migrate"
	"shiftreport/internal/store"
	"shiftreport/internal/validation"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type adapter struct {
	name    string
	gateway store.Gateway
	clock   *clock
	// photoCount reports how many photos have been written.
	photoCount func() int
}

func newRemote(t *testing.T) adapter {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	photos := db.PhotosDir(dir)
	g := store.NewRemote(conn, bucket.Dir{Root: photos, BaseURL: "http://localhost/files"}, store.SeedConfig{})
	c := &clock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	g.Now = c.now
	t.Cleanup(func() { g.Close() })
	return adapter{name: "remote", gateway: g, clock: c, photoCount: func() int {
		entries, _ := os.ReadDir(filepath.Join(photos, "reports"))
		return len(entries)
	}}
}

func newDemo(t *testing.T) adapter {
	t.Helper()
	kv, err := demo.Open("file:" + filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	g := store.NewDemo(kv, store.SeedConfig{})
	c := &clock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	g.Now = c.now
	t.Cleanup(func() { g.Close() })
	return adapter{name: "demo", gateway: g, clock: c, photoCount: func() int {
		photos := map[string]any{}
		_, _ = kv.Get(context.Background(), demo.KeyPhotos, &photos)
		return len(photos)
	}}
}

func forEachAdapter(t *testing.T, fn func(t *testing.T, a adapter)) {
	for _, mk := range []func(*testing.T) adapter{newRemote, newDemo} {
		a := mk(t)
		t.Run(a.name, func(t *testing.T) { fn(t, a) })
	}
}

func createUser(t *testing.T, g store.Gateway, email, role string) domain.User {
	t.Helper()
	u, err := g.CreateUser(context.Background(), store.NewUser{Email: email, FullName: "警備 " + email, Role: role, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func payload(contract string, from time.Time) domain.ReportPayload {
	return domain.ReportPayload{
		ContractName:         contract,
		GuardLocation:        "大阪市都島区星陵ビル7m",
		WorkType:             domain.WorkTypeEventTraffic,
		WorkDateFrom:         from,
		WorkDateTo:           from.Add(9 * time.Hour),
		AssignedGuards:       "山田 太郎\n佐藤 次郎",
		SpecialNotes:         domain.SpecialNotesNo,
		TrafficGuideAssigned: true,
		Remarks:              "特に問題なし",
	}
}

func jpegBytes(size int) []byte {
	data := bytes.Repeat([]byte{0x42}, size)
	copy(data, []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return data
}

func reportIDs(reports []domain.Report) []string {
	out := []string{}
	for _, r := range reports {
		out = append(out, r.ID)
	}
	return out
}

func TestCreateAndReadBack(t *testing.T) {
	forEachAdapter(t, func(t *testing.T, a adapter) {
		ctx := context.Background()
		owner := createUser(t, a.gateway, "guard@example.test", domain.RoleEmployee)
		from := time.Date(2026, 1, 14, 23, 0, 0, 0, time.UTC)
		p := payload("積水ハウス建設事務所(株) 御中", from)

		created, err := a.gateway.CreateReport(ctx, owner.ID, p, []string{"ref-1", "ref-2"})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.Equal(t, domain.StatusSubmitted, created.Status)

		got, err := a.gateway.GetReport(ctx, created.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(created, got); diff != "" {
			t.Fatalf("report mismatch (-created +got):\n%s", diff)
		}
		require.Equal(t, []string{"ref-1", "ref-2"}, got.PhotoURLs)

		_, err = a.gateway.GetReport(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)

		logs, err := a.gateway.ListActivity(ctx, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		require.Equal(t, domain.ActionSubmit, logs[0].Action)
		require.Equal(t, "report", logs[0].ResourceType)
		require.Equal(t, created.ID, logs[0].ResourceID)
		require.Equal(t, owner.ID, logs[0].UserID)
	})
}

func TestSubMicrosecondWorkDatesRoundTrip(t *testing.T) {
	p, err := validation.Validate(domain.ReportFormData{
		ContractName:  "積水ハウス建設事務所(株) 御中",
		GuardLocation: "大阪市都島区星陵ビル7m",
		WorkType:      domain.WorkTypeEventTraffic,
		WorkDateFrom:  "2026-01-15T08:00:00.123456789+09:00",
		WorkDateTo:    "2026-01-15T17:00:00.987654321+09:00",
	})
	require.NoError(t, err)
	require.Equal(t, 123456000, p.WorkDateFrom.Nanosecond())
	require.Equal(t, 987654000, p.WorkDateTo.Nanosecond())

	forEachAdapter(t, func(t *testing.T, a adapter) {
		ctx := context.Background()
		owner := createUser(t, a.gateway, "guard@example.test", domain.RoleEmployee)
		created, err := a.gateway.CreateReport(ctx, owner.ID, p, []string{"ref-1"})
		require.NoError(t, err)
		got, err := a.gateway.GetReport(ctx, created.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(created, got); diff != "" {
			t.Fatalf("report mismatch (-created +got):\n%s", diff)
		}
		require.True(t, got.WorkDateFrom.Equal(p.WorkDateFrom))
		require.True(t, got.WorkDateTo.Equal(p.WorkDateTo))
	})
}

func TestListingOrderAndOwnership(t *testing.T) {
	forEachAdapter(t, func(t *testing.T, a adapter) {
		ctx := context.Background()
		alice := createUser(t, a.gateway, "alice@example.test", domain.RoleEmployee)
		bob := createUser(t, a.gateway, "bob@example.test", domain.RoleEmployee)
		from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

		first, err := a.gateway.CreateReport(ctx, alice.ID, payload("A", from), nil)
		require.NoError(t, err)
		a.clock.t = a.clock.t.Add(time.Second)
		second, err := a.gateway.CreateReport(ctx, bob.ID, payload("B", from), nil)
		require.NoError(t, err)
		third, err := a.gateway.CreateReport(ctx, alice.ID, payload("C", from), nil)
		require.NoError(t, err)

		all, err := a.gateway.GetAllReports(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		// second and third share created_at; id breaks the tie, descending.
		tied := []string{second.ID, third.ID}
		if tied[0] < tied[1] {
			tied[0], tied[1] = tied[1], tied[0]
		}
		require.Equal(t, []string{tied[0], tied[1], first.ID}, reportIDs(all))

		mine, err := a.gateway.GetMyReports(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, []string{third.ID, first.ID}, reportIDs(mine))

		none, err := a.gateway.GetMyReports(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, none)
		require.NotNil(t, none)
	})
}

func TestSearchFilters(t *testing.T) {
	forEachAdapter(t, func(t *testing.T, a adapter) {
		ctx := context.Background()
		owner := createUser(t, a.gateway, "guard@example.test", domain.RoleEmployee)
		other := createUser(t, a.gateway, "other@example.test", domain.RoleEmployee)
		jan10 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
		jan20 := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

		sekisui, err := a.gateway.CreateReport(ctx, owner.ID, payload("Sekisui House 御中", jan10), nil)
		require.NoError(t, err)
		a.clock.t = a.clock.t.Add(time.Second)
		celu, err := a.gateway.CreateReport(ctx, other.ID, payload("セリュートラスト株式会社", jan20), nil)
		require.NoError(t, err)

		all, err := a.gateway.GetAllReports(ctx)
		require.NoError(t, err)
		unfiltered, err := a.gateway.SearchReports(ctx, store.Filters{})
		require.NoError(t, err)
		require.Equal(t, reportIDs(all), reportIDs(unfiltered))

		byName, err := a.gateway.SearchReports(ctx, store.Filters{ContractName: "SEKISUI"})
		require.NoError(t, err)
		require.Equal(t, []string{sekisui.ID}, reportIDs(byName))

		byOwner, err := a.gateway.SearchReports(ctx, store.Filters{OwnerID: other.ID})
		require.NoError(t, err)
		require.Equal(t, []string{celu.ID}, reportIDs(byOwner))

		start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		after, err := a.gateway.SearchReports(ctx, store.Filters{StartDate: &start})
		require.NoError(t, err)
		require.Equal(t, []string{celu.ID}, reportIDs(after))

		end := jan10.Add(9 * time.Hour)
		before, err := a.gateway.SearchReports(ctx, store.Filters{EndDate: &end})
		require.NoError(t, err)
		require.Equal(t, []string{sekisui.ID}, reportIDs(before), "end bound is inclusive")

		both, err := a.gateway.SearchReports(ctx, store.Filters{StartDate: &start, ContractName: "sekisui"})
		require.NoError(t, err)
		require.Empty(t, both)
	})
}

func TestPhotoLimits(t *testing.T) {
	forEachAdapter(t, func(t *testing.T, a adapter) {
		ctx := context.Background()

		_, err := a.gateway.UploadPhoto(ctx, store.PhotoUpload{Filename: "big.jpg", Data: jpegBytes(6 << 20)})
		require.ErrorIs(t, err, store.ErrPhotoTooLarge)
		_, err = a.gateway.UploadPhoto(ctx, store.PhotoUpload{Filename: "doc.pdf", Data: []byte("%PDF-1.4\n%")})
		require.ErrorIs(t, err, store.ErrPhotoType)
		require.Zero(t, a.photoCount(), "rejected uploads must not write")

		data := jpegBytes(4 << 20)
		ref, err := a.gateway.UploadPhoto(ctx, store.PhotoUpload{Filename: "site.jpg", Data: data})
		require.NoError(t, err)
		require.Equal(t, 1, a.photoCount())

		photo, err := a.gateway.ResolvePhoto(ctx, ref)
		require.NoError(t, err)
		require.True(t, bytes.Equal(data, photo.Data), "photo bytes changed")
		require.Equal(t, "image/jpeg", photo.ContentType)

		_, err = a.gateway.ResolvePhoto(ctx, "nowhere")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUsersAndSeed(t *testing.T) {
	forEachAdapter(t, func(t *testing.T, a adapter) {
		ctx := context.Background()
		require.NoError(t, a.gateway.Seed(ctx))
		require.NoError(t, a.gateway.Seed(ctx))

		admin, hash, err := a.gateway.GetUserByEmail(ctx, "ADMIN@celutrust.co.jp")
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, admin.Role)
		require.NotEmpty(t, hash)

		users, err := a.gateway.ListUsers(ctx)
		require.NoError(t, err)
		admins := 0
		for _, u := range users {
			if u.Role == domain.RoleAdmin {
				admins++
			}
		}
		require.Equal(t, 1, admins, "seed runs once")

		_, err = a.gateway.CreateUser(ctx, store.NewUser{Email: "admin@celutrust.co.jp", Role: domain.RoleEmployee, PasswordHash: "x"})
		require.True(t, errors.Is(err, store.ErrEmailTaken), "got %v", err)

		_, err = a.gateway.GetUser(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, a.gateway.SetSession(ctx, admin.ID))
		require.NoError(t, a.gateway.ClearSession(ctx))
	})
}

func TestDemoSeedSampleReports(t *testing.T) {
	a := newDemo(t)
	ctx := context.Background()
	require.NoError(t, a.gateway.Seed(ctx))
	require.NoError(t, a.gateway.Seed(ctx))

	reports, err := a.gateway.GetAllReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		require.True(t, domain.IsWorkType(r.WorkType), r.WorkType)
		require.True(t, r.WorkDateTo.After(r.WorkDateFrom))
	}
	require.True(t, reports[0].HasSpecialNotes())

	employee, _, err := a.gateway.GetUserByEmail(ctx, "demo@celutrust.co.jp")
	require.NoError(t, err)
	mine, err := a.gateway.GetMyReports(ctx, employee.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	d := a.gateway.(*store.Demo)
	require.NoError(t, d.SetSession(ctx, employee.ID))
	id, ok, err := d.Session(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, employee.ID, id)
}

func TestDemoSeedKeepsExistingEmployee(t *testing.T) {
	a := newDemo(t)
	ctx := context.Background()
	existing, err := a.gateway.CreateUser(ctx, store.NewUser{Email: "Demo@celutrust.co.jp", FullName: "既存 社員", Role: domain.RoleEmployee, PasswordHash: "x"})
	require.NoError(t, err)
	require.NoError(t, a.gateway.Seed(ctx))

	reports, err := a.gateway.GetAllReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		require.Equal(t, existing.ID, r.UserID)
		owner, err := a.gateway.GetUser(ctx, r.UserID)
		require.NoError(t, err)
		require.Equal(t, "既存 社員", owner.FullName)
	}
	mine, err := a.gateway.GetMyReports(ctx, existing.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
}

func TestContainsFold(t *testing.T) {
	require.True(t, store.ContainsFold("積水ハウス Sekisui", "sekisui"))
	require.True(t, store.ContainsFold("ＡＢＣ建設", "ａｂｃ"))
	require.False(t, store.ContainsFold("積水ハウス", "大和"))
}
