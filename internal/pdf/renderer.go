// Package pdf draws shift reports onto a fixed A4 form.
//
// Pages are drawn directly as vector shapes and text; there is no markup or
// raster intermediate. Layout does the positioning against the Canvas
// interface and Renderer binds it to go-pdf/fpdf.
package pdf

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"shiftreport/internal/domain"
)

// UnknownSigner is printed when a batch page's owner cannot be named.
const UnknownSigner = "不明"

type Document struct {
	Name  string
	Pages int
	Bytes []byte
}

type Renderer struct {
	Layout Layout
	Fonts  Fonts
	Logger *zap.Logger
	Now    func() time.Time
}

func (r *Renderer) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Renderer) org() Org {
	if r.Layout.Org.Name == "" {
		return DefaultOrg
	}
	return r.Layout.Org
}

// RenderOne draws a single report signed by signer.
func (r *Renderer) RenderOne(rep domain.Report, signer string) (Document, error) {
	c, err := newFpdfCanvas(r.Fonts, rep.CreatedAt.UTC(), r.logger())
	if err != nil {
		return Document{}, err
	}
	r.Layout.Draw(c, rep, signer)
	if err := c.Err(); err != nil {
		return Document{}, fmt.Errorf("render report %s: %w", rep.ID, err)
	}
	data, err := c.bytes()
	if err != nil {
		return Document{}, err
	}
	return Document{Name: FileName(r.org().Name, rep.CreatedAt, r.Layout.Location), Pages: 1, Bytes: data}, nil
}

// RenderBatch draws one page per report in input order. names maps an owner
// id to the signer; an empty result prints UnknownSigner. The first failing
// page aborts the whole document.
func (r *Renderer) RenderBatch(reports []domain.Report, names func(userID string) string) (Document, error) {
	if len(reports) == 0 {
		return Document{}, errors.New("no reports to export")
	}
	exported := r.now()
	c, err := newFpdfCanvas(r.Fonts, exported.UTC(), r.logger())
	if err != nil {
		return Document{}, err
	}
	for i, rep := range reports {
		signer := ""
		if names != nil {
			signer = names(rep.UserID)
		}
		if strings.TrimSpace(signer) == "" {
			signer = UnknownSigner
		}
		r.Layout.Draw(c, rep, signer)
		if err := c.Err(); err != nil {
			return Document{}, fmt.Errorf("render page %d (report %s): %w", i+1, rep.ID, err)
		}
	}
	data, err := c.bytes()
	if err != nil {
		return Document{}, err
	}
	r.logger().Debug("batch pdf rendered", zap.Int("pages", len(reports)), zap.Int("bytes", len(data)))
	return Document{Name: BatchFileName(r.org().Name, exported, r.Layout.Location), Pages: len(reports), Bytes: data}, nil
}

// FileName is <org>_<YYYYMMDD>_<HHMMSS>.pdf from the report's creation time.
func FileName(org string, created time.Time, loc *time.Location) string {
	if loc != nil {
		created = created.In(loc)
	}
	return fileSafe(org) + "_" + created.Format("20060102_150405") + ".pdf"
}

// BatchFileName is <org>_<YYYYMMDD>.pdf from the export date.
func BatchFileName(org string, exported time.Time, loc *time.Location) string {
	if loc != nil {
		exported = exported.In(loc)
	}
	return fileSafe(org) + "_" + exported.Format("20060102") + ".pdf"
}

func fileSafe(s string) string {
	s = line(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
