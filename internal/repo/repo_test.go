package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"shiftreport/internal/db"
	"shiftreport/internal/domain"
	"shiftreport/internal/events"
	"shiftreport/internal/migrate"
	"shiftreport/internal/repo"
)

func openRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func insertUser(t *testing.T, r repo.Repo, id, email string) {
	t.Helper()
	u := domain.User{ID: id, Email: email, FullName: id, Role: domain.RoleEmployee, CreatedAt: time.Now()}
	err := r.WithTx(context.Background(), func(tx *sql.Tx) error {
		return r.InsertUserTx(context.Background(), tx, u, "hash")
	})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func insertReport(t *testing.T, r repo.Repo, id, owner string, created, from, to time.Time) {
	t.Helper()
	rep := domain.NewReport(owner, domain.ReportPayload{
		ContractName:  "契約 " + id,
		GuardLocation: "現場",
		WorkType:      domain.WorkTypeRoadTraffic,
		WorkDateFrom:  from,
		WorkDateTo:    to,
	}, []string{"https://example.test/a.jpg"})
	rep.ID = id
	rep.CreatedAt = created
	rep.UpdatedAt = created
	err := r.WithTx(context.Background(), func(tx *sql.Tx) error {
		return r.InsertReportTx(context.Background(), tx, rep)
	})
	if err != nil {
		t.Fatalf("insert report %s: %v", id, err)
	}
}

func ids(reports []domain.Report) []string {
	out := make([]string, 0, len(reports))
	for _, rep := range reports {
		out = append(out, rep.ID)
	}
	return out
}

func TestReportRoundTripAndOrdering(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	insertUser(t, r, "u1", "one@example.test")
	insertUser(t, r, "u2", "two@example.test")
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	insertReport(t, r, "a", "u1", base, base, base.Add(8*time.Hour))
	insertReport(t, r, "b", "u2", base.Add(time.Minute), base.Add(24*time.Hour), base.Add(32*time.Hour))
	insertReport(t, r, "c", "u1", base.Add(time.Minute), base.Add(48*time.Hour), base.Add(56*time.Hour))

	all, err := r.ListReports(ctx, repo.ReportFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(all); len(got) != 3 || got[0] != "c" || got[1] != "b" || got[2] != "a" {
		t.Fatalf("order = %v", got)
	}

	got, err := r.GetReport(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.WorkDateTo.Equal(base.Add(8*time.Hour)) || len(got.PhotoURLs) != 1 || got.Status != domain.StatusSubmitted {
		t.Fatalf("unexpected report %+v", got)
	}
	if _, err := r.GetReport(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mine, err := r.ListReports(ctx, repo.ReportFilters{OwnerID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(mine); len(got) != 2 || got[0] != "c" {
		t.Fatalf("owner filter = %v", got)
	}

	from := base.Add(24 * time.Hour)
	to := base.Add(32 * time.Hour)
	ranged, err := r.ListReports(ctx, repo.ReportFilters{From: &from, To: &to})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(ranged); len(got) != 1 || got[0] != "b" {
		t.Fatalf("date filter = %v", got)
	}
}

func TestUsersAndActivity(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	insertUser(t, r, "u1", "Guard@Example.test")

	u, hash, err := r.GetUserByEmail(ctx, "guard@example.test")
	if err != nil || u.ID != "u1" || hash != "hash" {
		t.Fatalf("by email: %+v %q %v", u, hash, err)
	}
	err = r.WithTx(ctx, func(tx *sql.Tx) error {
		return r.InsertUserTx(ctx, tx, domain.User{ID: "u2", Email: "GUARD@example.test", Role: domain.RoleEmployee}, "x")
	})
	if !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	w := events.Writer{DB: r.DB, Now: func() time.Time { return now }}
	if _, err := w.Append(ctx, nil, "u1", domain.ActionLogin, "", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	now = now.Add(time.Second)
	if _, err := w.Append(ctx, nil, "u1", domain.ActionDownload, "report", "r1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	logs, err := r.ListActivity(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Action != domain.ActionDownload || logs[0].ResourceID != "r1" || logs[1].ResourceType != "" {
		t.Fatalf("activity = %+v", logs)
	}
	if n, _ := r.CountUsers(ctx); n != 1 {
		t.Fatalf("users = %d", n)
	}
}
