package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"shiftreport/internal/domain"
	"shiftreport/internal/engine"
	"shiftreport/internal/store"
)

type fileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func toFileOutput(f engine.File) *fileOutput {
	return &fileOutput{ContentType: f.ContentType, ContentDisposition: contentDisposition(f.Name), Body: f.Bytes}
}

// formFile reads the multipart field "file".
func formFile(form *multipart.Form) (store.PhotoUpload, huma.StatusError) {
	if form == nil || len(form.File["file"]) == 0 {
		return store.PhotoUpload{}, newAPIError(http.StatusBadRequest, "bad_request", "file is required", map[string]any{"field": "file"})
	}
	fh := form.File["file"][0]
	f, err := fh.Open()
	if err != nil {
		return store.PhotoUpload{}, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, store.MaxPhotoSize+1))
	if err != nil {
		return store.PhotoUpload{}, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	return store.PhotoUpload{Filename: fh.Filename, Data: data}, nil
}

func registerPhotos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "upload-photo",
		Method:        http.MethodPost,
		Path:          "/photos",
		Summary:       "Upload a report photo (JPEG or PNG, at most 5MB)",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  uploadLimit,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		RawBody multipart.Form
	}) (*struct {
		Body PhotoResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		photo, ferr := formFile(&input.RawBody)
		if ferr != nil {
			return nil, ferr
		}
		ref, err := e.UploadPhoto(ctx, p, photo)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PhotoResponse `json:"body"`
		}{Body: PhotoResponse{Ref: ref}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-photo",
		Method:      http.MethodGet,
		Path:        "/photos",
		Summary:     "Download a stored photo by reference",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Ref string `query:"ref" required:"true"`
	}) (*fileOutput, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ph, err := e.ResolvePhoto(ctx, p, input.Ref)
		if err != nil {
			return nil, handleError(err)
		}
		return &fileOutput{ContentType: ph.ContentType, ContentDisposition: "inline", Body: ph.Data}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-report",
		Method:        http.MethodPost,
		Path:          "/reports",
		Summary:       "Submit a shift report",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body SubmitReportRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.SubmitReport(ctx, p, engine.SubmitOptions{Form: input.Body.form(), PhotoRefs: input.Body.PhotoRefs})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List own reports, or every report for administrators",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ReportListResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListReports(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportListResponse `json:"body"`
		}{Body: toReportList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-reports",
		Method:      http.MethodGet,
		Path:        "/reports/search",
		Summary:     "Search reports by work dates, owner and contract name",
		Errors:      []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *SearchQuery) (*struct {
		Body ReportListResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.SearchReports(ctx, p, input.options())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportListResponse `json:"body"`
		}{Body: toReportList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/reports/{id}",
		Summary:     "Get a report",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.GetReport(ctx, p, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})
}

func registerExports(api huma.API, e engine.Engine) {
	exportErrors := []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError}

	huma.Register(api, huma.Operation{
		OperationID: "export-report-pdf",
		Method:      http.MethodGet,
		Path:        "/reports/{id}/pdf",
		Summary:     "Download one report as PDF",
		Errors:      exportErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*fileOutput, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.ExportPDF(ctx, p, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return toFileOutput(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-reports-pdf",
		Method:      http.MethodGet,
		Path:        "/reports/pdf",
		Summary:     "Download matching reports as one PDF, a page per report",
		Errors:      exportErrors,
	}, func(ctx context.Context, input *SearchQuery) (*fileOutput, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.ExportBatchPDF(ctx, p, input.options())
		if err != nil {
			return nil, handleError(err)
		}
		return toFileOutput(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-reports-xlsx",
		Method:      http.MethodGet,
		Path:        "/reports/export.xlsx",
		Summary:     "Download matching reports as a spreadsheet",
		Errors:      exportErrors,
	}, func(ctx context.Context, input *SearchQuery) (*fileOutput, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.ExportXLSX(ctx, p, input.options())
		if err != nil {
			return nil, handleError(err)
		}
		return toFileOutput(f), nil
	})
}

func registerOCR(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:  "ocr-analyze",
		Method:       http.MethodPost,
		Path:         "/ocr/analyze",
		Summary:      "Pre-fill a report form from a photo of the paper form",
		MaxBodyBytes: uploadLimit,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		RawBody multipart.Form
	}) (*struct {
		Body OCRResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		photo, ferr := formFile(&input.RawBody)
		if ferr != nil {
			return nil, ferr
		}
		res, err := e.AnalyzePhoto(ctx, p, photo.Data)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OCRResponse `json:"body"`
		}{Body: *res}, nil
	})
}

func registerAdmin(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Recent activity log entries, newest first",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0" maximum:"1000" default:"100"`
	}) (*struct {
		Body ActivityListResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListActivity(ctx, p, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityListResponse `json:"body"`
		}{Body: ActivityListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List accounts",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserListResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListUsers(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserListResponse `json:"body"`
		}{Body: UserListResponse{Items: items}}, nil
	})
}
