package app

import (
	"context"
	"testing"

	"shiftreport/internal/config"
	"shiftreport/internal/domain"
)

func TestOpenSeedsEachMode(t *testing.T) {
	for _, mode := range []string{config.ModeRemote, config.ModeDemo} {
		t.Run(mode, func(t *testing.T) {
			cfg := config.Default()
			cfg.Mode = mode
			cfg.Auth.JWTSecret = "test-secret"
			a, err := Open(context.Background(), t.TempDir(), cfg, nil)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer a.Close()

			s, err := a.Engine.Login(context.Background(), "admin@celutrust.co.jp", "admin123")
			if err != nil {
				t.Fatalf("seeded admin login: %v", err)
			}
			if s.User.Role != domain.RoleAdmin {
				t.Fatalf("role = %q", s.User.Role)
			}
			if a.Engine.OCR.Configured() {
				t.Fatalf("ocr configured without an api key")
			}
		})
	}
}

func TestReopenDoesNotReseed(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Mode = config.ModeDemo
	for i := 0; i < 2; i++ {
		a, err := Open(context.Background(), dir, cfg, nil)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		reports, err := a.Gateway.GetAllReports(context.Background())
		a.Close()
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(reports) != 2 {
			t.Fatalf("open %d: %d sample reports, want 2", i, len(reports))
		}
	}
}

func TestRendererOrganization(t *testing.T) {
	cfg := config.Default()
	r := Renderer(cfg, nil)
	if r.Layout.Org.Tel == "" {
		t.Fatalf("default organization not applied: %+v", r.Layout.Org)
	}
	cfg.PDF.Organization.Name = "テスト警備"
	r = Renderer(cfg, nil)
	if r.Layout.Org.Name != "テスト警備" || r.Layout.Org.Tel != "" {
		t.Fatalf("custom organization = %+v", r.Layout.Org)
	}
}
