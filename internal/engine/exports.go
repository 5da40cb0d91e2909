package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"shiftreport/internal/domain"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/export"
	"shiftreport/internal/ocr"
	"shiftreport/internal/pdf"
	"shiftreport/internal/store"
)

// ErrNoReports is returned by batch exports whose filters match nothing.
var ErrNoReports = errors.New("出力対象の報告書がありません")

// File is an exported document ready to download.
type File struct {
	Name        string
	ContentType string
	Bytes       []byte
}

func (e Engine) renderer() *pdf.Renderer {
	if e.Renderer != nil {
		return e.Renderer
	}
	return &pdf.Renderer{Layout: pdf.Layout{Location: e.location()}, Logger: e.logger()}
}

// ExportPDF renders one report signed by its owner.
func (e Engine) ExportPDF(ctx context.Context, p auth.Principal, id string) (File, error) {
	rep, err := e.GetReport(ctx, p, id)
	if err != nil {
		return File{}, err
	}
	signer := pdf.UnknownSigner
	owner, err := e.Store.GetUser(ctx, rep.UserID)
	switch {
	case err == nil:
		signer = owner.DisplayName()
	case errors.Is(err, store.ErrNotFound):
	default:
		return File{}, err
	}
	doc, err := e.renderer().RenderOne(rep, signer)
	if err != nil {
		return File{}, err
	}
	e.record(ctx, p.UserID, domain.ActionDownload, "report", rep.ID)
	return File{Name: doc.Name, ContentType: "application/pdf", Bytes: doc.Bytes}, nil
}

func (e Engine) exportSet(ctx context.Context, p auth.Principal, permission string, opts SearchOptions) ([]domain.Report, func(string) string, error) {
	if err := p.RequireAdmin(permission); err != nil {
		return nil, nil, err
	}
	reports, err := e.SearchReports(ctx, p, opts)
	if err != nil {
		return nil, nil, err
	}
	if len(reports) == 0 {
		return nil, nil, ErrNoReports
	}
	names, err := e.nameLookup(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reports, names, nil
}

// ExportBatchPDF renders every matching report into one document, one page
// per report in listing order.
func (e Engine) ExportBatchPDF(ctx context.Context, p auth.Principal, opts SearchOptions) (File, error) {
	reports, names, err := e.exportSet(ctx, p, "report.export", opts)
	if err != nil {
		return File{}, err
	}
	doc, err := e.renderer().RenderBatch(reports, names)
	if err != nil {
		return File{}, err
	}
	e.record(ctx, p.UserID, domain.ActionDownload, "report_batch", strconv.Itoa(doc.Pages))
	e.logger().Info("batch pdf exported", zap.Int("pages", doc.Pages), zap.String("user_id", p.UserID))
	return File{Name: doc.Name, ContentType: "application/pdf", Bytes: doc.Bytes}, nil
}

// ExportXLSX writes every matching report as a spreadsheet row.
func (e Engine) ExportXLSX(ctx context.Context, p auth.Principal, opts SearchOptions) (File, error) {
	reports, names, err := e.exportSet(ctx, p, "report.export", opts)
	if err != nil {
		return File{}, err
	}
	named := func(id string) string {
		if n := names(id); n != "" {
			return n
		}
		return pdf.UnknownSigner
	}
	var buf bytes.Buffer
	if err := export.WriteReports(&buf, reports, named, e.location()); err != nil {
		return File{}, fmt.Errorf("export xlsx: %w", err)
	}
	e.record(ctx, p.UserID, domain.ActionDownload, "report_xlsx", strconv.Itoa(len(reports)))
	return File{
		Name:        export.FileName(e.now(), e.location()),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Bytes:       buf.Bytes(),
	}, nil
}

// AnalyzePhoto pre-fills a report form from a photo. Failures are *ocr.Error.
func (e Engine) AnalyzePhoto(ctx context.Context, p auth.Principal, image []byte) (*ocr.Result, error) {
	svc := e.OCR
	if svc == nil {
		svc = &ocr.Service{Logger: e.logger()}
	}
	res, err := svc.Analyze(ctx, image)
	if err != nil {
		var oerr *ocr.Error
		if errors.As(err, &oerr) {
			e.logger().Info("ocr rejected", zap.String("code", oerr.Code), zap.String("user_id", p.UserID))
		}
		return nil, err
	}
	return res, nil
}
