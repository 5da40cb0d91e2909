package bucket

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestDirPutGet(t *testing.T) {
	d := Dir{Root: t.TempDir(), BaseURL: "http://localhost:8080/files/"}
	ctx := context.Background()
	data := []byte{0xff, 0xd8, 0xff, 0x00, 0x01}
	url, err := d.Put(ctx, "reports/1_abc.jpg", "image/jpeg", data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:8080/files/reports/1_abc.jpg" {
		t.Fatalf("url = %s", url)
	}
	got, err := d.Get(ctx, url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("bytes differ")
	}
	if _, err := d.Get(ctx, "http://elsewhere/reports/1_abc.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign url: %v", err)
	}
	if _, err := d.Get(ctx, "http://localhost:8080/files/reports/none.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing object: %v", err)
	}
}

func TestDirRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	d := Dir{Root: root, BaseURL: "http://x"}
	full, err := d.path("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if len(full) < len(root) || full[:len(root)] != root {
		t.Fatalf("path escaped root: %s", full)
	}
}
