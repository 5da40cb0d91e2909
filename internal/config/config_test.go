package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestTemplateParses(t *testing.T) {
	cfg, err := FromYAML([]byte(Template))
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("token_ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.PDF.Organization.Name != "セリュートラスト株式会社" {
		t.Fatalf("organization = %q", cfg.PDF.Organization.Name)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"mode":     "mode: cloud\n",
		"driver":   "database:\n  driver: postgres\n",
		"mysql":    "database:\n  driver: mysql\n",
		"firebase": "storage:\n  kind: firebase\n",
		"quality":  "ocr:\n  quality_factor: 1.5\n",
		"timezone": "pdf:\n  timezone: Mars/Olympus\n",
		"level":    "log:\n  level: loud\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeRemote || cfg.Server.BasePath != "/v1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadAppliesEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("mode: remote\nocr:\n  model: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SHIFTREPORT_OCR_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHIFTREPORT_MODE", "demo")
	t.Setenv("SHIFTREPORT_AUTH_TOKEN_TTL", "2h")
	t.Setenv("SHIFTREPORT_OCR_BANNED_TERMS", "差別, 暴力")
	// Setenv registers the restore; godotenv only fills unset variables.
	t.Setenv("SHIFTREPORT_OCR_API_KEY", "")
	os.Unsetenv("SHIFTREPORT_OCR_API_KEY")

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDemo {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.OCR.Model != "from-file" {
		t.Fatalf("model = %q", cfg.OCR.Model)
	}
	if cfg.OCR.APIKey != "from-dotenv" {
		t.Fatalf("api key = %q", cfg.OCR.APIKey)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Fatalf("ttl = %v", cfg.Auth.TokenTTL)
	}
	if len(cfg.OCR.BannedTerms) != 2 || cfg.OCR.BannedTerms[1] != "暴力" {
		t.Fatalf("banned terms = %v", cfg.OCR.BannedTerms)
	}
}
