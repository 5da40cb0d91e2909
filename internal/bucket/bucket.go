// Package bucket stores uploaded photo bytes and hands back public URLs.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

var ErrNotFound = errors.New("object not found")

// Bucket is a flat object store addressed by slash-separated names.
type Bucket interface {
	// Put writes data under name and returns its public URL.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	// Get reads the object a URL returned by Put points at.
	Get(ctx context.Context, url string) ([]byte, error)
}

// Dir keeps objects as files under Root and serves them at BaseURL.
type Dir struct {
	Root    string
	BaseURL string
}

func (d Dir) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := d.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object %s: %w", name, err)
	}
	return strings.TrimRight(d.BaseURL, "/") + "/" + name, nil
}

func (d Dir) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := objectName(d.BaseURL, ref)
	if !ok {
		return nil, ErrNotFound
	}
	full, err := d.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (d Dir) path(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(d.Root, filepath.FromSlash(clean)), nil
}

// objectName strips base from ref, reporting false when ref lies outside it.
func objectName(base, ref string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimPrefix(ref, prefix))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// FirebaseConfig names the Storage bucket and the service account key.
type FirebaseConfig struct {
	Bucket          string
	CredentialsFile string
}

// Firebase stores objects in a Firebase Storage bucket.
type Firebase struct {
	handle  *gcs.BucketHandle
	baseURL string
}

func NewFirebase(ctx context.Context, cfg FirebaseConfig) (*Firebase, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage.bucket is required for firebase storage")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.Bucket}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase storage: %w", err)
	}
	handle, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
	}
	return &Firebase{handle: handle, baseURL: "https://storage.googleapis.com/" + cfg.Bucket}, nil
}

func (f *Firebase) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	w := f.handle.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return f.baseURL + "/" + name, nil
}

func (f *Firebase) Get(ctx context.Context, ref string) ([]byte, error) {
	name, ok := objectName(f.baseURL, ref)
	if !ok {
		return nil, ErrNotFound
	}
	r, err := f.handle.Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}
