package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftreport/internal/bucket"
	"shiftreport/internal/config"
	"shiftreport/internal/db"
	"shiftreport/internal/demo"
	"shiftreport/internal/engine"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/migrate"
	"shiftreport/internal/ocr"
	"shiftreport/internal/pdf"
	"shiftreport/internal/store"
	"shiftreport/internal/validation"
)

// App is the composed service for one workspace.
type App struct {
	Workspace string
	Config    *config.Config
	Logger    *zap.Logger
	Gateway   store.Gateway
	Engine    engine.Engine
}

// Open builds the gateway chosen by cfg.Mode, seeds it and wires the engine.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gw, err := OpenGateway(ctx, workspace, cfg)
	if err != nil {
		return nil, err
	}
	if err := gw.Seed(ctx); err != nil {
		gw.Close()
		return nil, fmt.Errorf("seed %s store: %w", cfg.Mode, err)
	}
	loc := cfg.Location()
	v, err := validation.New(loc)
	if err != nil {
		gw.Close()
		return nil, err
	}
	svc, err := OCRService(ctx, cfg, logger)
	if err != nil {
		gw.Close()
		return nil, err
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("auth.jwt_secret not set; tokens will not survive a restart")
		secret = uuid.NewString() + uuid.NewString()
	}
	tokens := auth.Tokens{Secret: secret, TTL: cfg.Auth.TokenTTL}
	eng := engine.New(gw, v, tokens, Renderer(cfg, logger), svc, loc, logger)
	logger.Info("workspace opened", zap.String("mode", cfg.Mode), zap.String("workspace", workspace), zap.Bool("ocr", svc.Configured()))
	return &App{Workspace: workspace, Config: cfg, Logger: logger, Gateway: gw, Engine: eng}, nil
}

func (a *App) Close() error {
	if a == nil || a.Gateway == nil {
		return nil
	}
	_ = a.Logger.Sync()
	return a.Gateway.Close()
}

func seeds(cfg *config.Config) store.SeedConfig {
	return store.SeedConfig{
		AdminEmail:    cfg.Demo.AdminEmail,
		AdminPassword: cfg.Demo.AdminPassword,
		AdminName:     cfg.Demo.AdminName,
	}
}

// OpenGateway opens the persistence adapter for cfg.Mode. The remote adapter
// is migrated before use.
func OpenGateway(ctx context.Context, workspace string, cfg *config.Config) (store.Gateway, error) {
	switch cfg.Mode {
	case config.ModeDemo:
		dsn := cfg.Demo.DSN
		if dsn == "" {
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return nil, err
			}
			dsn = db.SQLiteDSN(db.DemoPath(workspace))
		}
		kv, err := demo.Open(dsn)
		if err != nil {
			return nil, err
		}
		return store.NewDemo(kv, seeds(cfg)), nil
	case config.ModeRemote:
		conn, err := OpenDB(workspace, cfg)
		if err != nil {
			return nil, err
		}
		b, err := Bucket(ctx, workspace, cfg)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return store.NewRemote(conn, b, seeds(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// OpenDB opens and migrates the remote database.
func OpenDB(workspace string, cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace, Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// Bucket returns the photo bucket named by cfg.Storage.
func Bucket(ctx context.Context, workspace string, cfg *config.Config) (bucket.Bucket, error) {
	switch cfg.Storage.Kind {
	case "firebase":
		return bucket.NewFirebase(ctx, bucket.FirebaseConfig{Bucket: cfg.Storage.Bucket, CredentialsFile: cfg.Storage.CredentialsFile})
	default:
		root := cfg.Storage.Dir
		if root == "" {
			root = db.PhotosDir(workspace)
		}
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			abs, err := filepath.Abs(root)
			if err != nil {
				return nil, err
			}
			base = "file://" + filepath.ToSlash(abs)
		}
		return bucket.Dir{Root: root, BaseURL: base}, nil
	}
}

// OCRService returns the analyzer; without an API key it reports NOT_CONFIGURED.
func OCRService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ocr.Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ocr.Service{
		Model:         cfg.OCR.Model,
		BannedTerms:   cfg.OCR.BannedTerms,
		QualityFactor: cfg.OCR.QualityFactor,
		Logger:        logger.Named("ocr"),
	}
	if cfg.OCR.APIKey == "" {
		return svc, nil
	}
	g, err := ocr.NewGemini(ctx, cfg.OCR.APIKey, cfg.OCR.Model)
	if err != nil {
		return nil, err
	}
	svc.Generator = g
	svc.Model = g.Model()
	return svc, nil
}

// Renderer builds the PDF renderer from cfg.PDF.
func Renderer(cfg *config.Config, logger *zap.Logger) *pdf.Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := cfg.PDF.Organization
	org := pdf.Org{Name: o.Name, Address: o.Address, Tel: o.Tel, Fax: o.Fax}
	if o.Name == "" || o.Name == pdf.DefaultOrg.Name {
		org = pdf.DefaultOrg
		if o.Address != "" {
			org.Address = o.Address
		}
		if o.Tel != "" {
			org.Tel = o.Tel
		}
		if o.Fax != "" {
			org.Fax = o.Fax
		}
	}
	return &pdf.Renderer{
		Layout: pdf.Layout{Org: org, Location: cfg.Location()},
		Fonts:  pdf.Fonts{Regular: cfg.PDF.FontPath, Bold: cfg.PDF.BoldFontPath},
		Logger: logger.Named("pdf"),
	}
}
