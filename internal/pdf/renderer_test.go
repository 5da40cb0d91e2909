package pdf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"shiftreport/internal/domain"
)

const testFont = "testdata/boxgothic.ttf"

func newRenderer(t *testing.T) *Renderer {
	return &Renderer{
		Layout: Layout{Org: DefaultOrg, Location: tokyo(t)},
		Fonts:  Fonts{Regular: testFont},
		Logger: zap.NewNop(),
		Now:    func() time.Time { return time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC) },
	}
}

func TestRenderOne(t *testing.T) {
	r := newRenderer(t)
	rep := eventReport()
	doc, err := r.RenderOne(rep, "警備 太郎")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(doc.Bytes, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", doc.Bytes[:8])
	}
	if doc.Pages != 1 {
		t.Fatalf("pages = %d", doc.Pages)
	}
	// created 2026-01-15 09:00 UTC is 18:00 in Tokyo.
	if doc.Name != "セリュートラスト株式会社_20260115_180000.pdf" {
		t.Fatalf("name = %s", doc.Name)
	}
	again, err := r.RenderOne(rep, "警備 太郎")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(doc.Bytes, again.Bytes) {
		t.Fatal("rendering the same report twice differs")
	}
}

func TestRenderBatch(t *testing.T) {
	r := newRenderer(t)
	a := eventReport()
	b := eventReport()
	b.ID, b.UserID = "r2", "ghost"
	doc, err := r.RenderBatch([]domain.Report{a, b}, func(id string) string {
		if id == "u1" {
			return "警備 太郎"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if doc.Pages != 2 || doc.Name != "セリュートラスト株式会社_20260201.pdf" {
		t.Fatalf("doc = %d pages, %s", doc.Pages, doc.Name)
	}
	if _, err := r.RenderBatch(nil, nil); err == nil {
		t.Fatal("empty batch should fail")
	}
}

func TestRenderEmbedsUTF8Font(t *testing.T) {
	r := newRenderer(t)
	doc, err := r.RenderOne(eventReport(), "警備 太郎")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"/Subtype /Type0", "/BaseFont /utf8jp", "/Encoding /Identity-H", "/FontFile2"} {
		if !bytes.Contains(doc.Bytes, []byte(want)) {
			t.Fatalf("pdf lacks %q", want)
		}
	}
	if bytes.Contains(doc.Bytes, []byte("/Helvetica")) {
		t.Fatal("pdf uses a core font")
	}
}

func TestBoldFontFallsBackToRegular(t *testing.T) {
	r := newRenderer(t)
	r.Fonts.Bold = "/nonexistent/bold.ttf"
	if _, err := r.RenderOne(eventReport(), "x"); err != nil {
		t.Fatalf("render: %v", err)
	}
}

func TestMissingFontFails(t *testing.T) {
	notFont := filepath.Join(t.TempDir(), "font.otf")
	if err := os.WriteFile(notFont, []byte("OTTO not a truetype font"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/nonexistent/font.ttf", notFont} {
		r := newRenderer(t)
		r.Fonts = Fonts{Regular: path}
		if _, err := r.RenderOne(eventReport(), "x"); !errors.Is(err, ErrNoFont) {
			t.Fatalf("%s: err = %v, want ErrNoFont", path, err)
		}
		if _, err := r.RenderBatch([]domain.Report{eventReport()}, nil); !errors.Is(err, ErrNoFont) {
			t.Fatalf("%s: batch err = %v, want ErrNoFont", path, err)
		}
	}
}

func TestUnconfiguredFontUsesSystemFonts(t *testing.T) {
	saved := SystemFontPaths
	t.Cleanup(func() { SystemFontPaths = saved })

	r := newRenderer(t)
	r.Fonts = Fonts{}
	SystemFontPaths = []string{"/nonexistent/a.ttf"}
	if _, err := r.RenderOne(eventReport(), "x"); !errors.Is(err, ErrNoFont) {
		t.Fatalf("err = %v, want ErrNoFont", err)
	}

	SystemFontPaths = []string{"/nonexistent/a.ttf", testFont}
	doc, err := r.RenderOne(eventReport(), "x")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Contains(doc.Bytes, []byte("/BaseFont /utf8jp")) {
		t.Fatal("system font not embedded")
	}
}

func TestFileNames(t *testing.T) {
	ts := time.Date(2026, 1, 15, 14, 5, 9, 0, time.UTC)
	if got := FileName("A/B 社", ts, nil); got != "A_B 社_20260115_140509.pdf" {
		t.Fatalf("FileName = %s", got)
	}
	if got := BatchFileName("Org", ts, tokyo(t)); !strings.HasSuffix(got, "_20260115.pdf") {
		t.Fatalf("BatchFileName = %s", got)
	}
}
