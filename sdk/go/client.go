package shiftreportsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Shift Report HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  30 * time.Second,
	}
}

// User is the public account view.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is returned by Signup and Login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// ReportForm is the submission payload. Dates use "2006-01-02T15:04".
type ReportForm struct {
	ContractName             string   `json:"contract_name,omitempty"`
	GuardLocation            string   `json:"guard_location,omitempty"`
	WorkType                 string   `json:"work_type,omitempty"`
	WorkDetail               string   `json:"work_detail,omitempty"`
	WorkDateFrom             string   `json:"work_date_from,omitempty"`
	WorkDateTo               string   `json:"work_date_to,omitempty"`
	Weather                  string   `json:"weather,omitempty"`
	BreakTime                string   `json:"break_time,omitempty"`
	OvertimeTime             string   `json:"overtime_time,omitempty"`
	AssignedGuards           string   `json:"assigned_guards,omitempty"`
	SpecialNotes             string   `json:"special_notes,omitempty"`
	SpecialNotesDetail       string   `json:"special_notes_detail,omitempty"`
	TrafficGuideAssigned     bool     `json:"traffic_guide_assigned,omitempty"`
	TrafficGuideAssigneeName string   `json:"traffic_guide_assignee_name,omitempty"`
	MiscGuardAssigned        bool     `json:"misc_guard_assigned,omitempty"`
	MiscGuardAssigneeName    string   `json:"misc_guard_assignee_name,omitempty"`
	Remarks                  string   `json:"remarks,omitempty"`
	PhotoRefs                []string `json:"photo_refs,omitempty"`
}

// Report is a stored shift report.
type Report struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"user_id"`
	ContractName             string    `json:"contract_name"`
	GuardLocation            string    `json:"guard_location"`
	WorkType                 string    `json:"work_type"`
	WorkDetail               string    `json:"work_detail"`
	WorkDateFrom             time.Time `json:"work_date_from"`
	WorkDateTo               time.Time `json:"work_date_to"`
	Weather                  string    `json:"weather"`
	BreakTime                string    `json:"break_time"`
	OvertimeTime             string    `json:"overtime_time"`
	AssignedGuards           string    `json:"assigned_guards"`
	PhotoURLs                []string  `json:"photo_urls"`
	SpecialNotes             string    `json:"special_notes"`
	SpecialNotesDetail       string    `json:"special_notes_detail"`
	TrafficGuideAssigned     bool      `json:"traffic_guide_assigned"`
	TrafficGuideAssigneeName string    `json:"traffic_guide_assignee_name"`
	MiscGuardAssigned        bool      `json:"misc_guard_assigned"`
	MiscGuardAssigneeName    string    `json:"misc_guard_assignee_name"`
	Remarks                  string    `json:"remarks"`
	Status                   string    `json:"status"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Activity is one activity log entry.
type Activity struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Search filters reports; zero fields are ignored.
type Search struct {
	StartDate    string
	EndDate      string
	UserID       string
	ContractName string
}

func (s Search) query() string {
	q := url.Values{}
	for k, v := range map[string]string{
		"start_date":    s.StartDate,
		"end_date":      s.EndDate,
		"user_id":       s.UserID,
		"contract_name": s.ContractName,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Download is a binary response with its suggested file name.
type Download struct {
	Name        string
	ContentType string
	Bytes       []byte
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Fields returns the per-field validation messages of a validation_failed error.
func (e *APIError) Fields() map[string]string {
	out := map[string]string{}
	raw, _ := e.Details["fields"].(map[string]any)
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Signup creates an employee account and stores the returned token.
func (c *Client) Signup(ctx context.Context, email, password, fullName string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/signup", map[string]any{"email": email, "password": password, "full_name": fullName}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Logout records a logout and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil)
	c.BearerToken = ""
	return err
}

// Me returns the current account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// UploadPhoto stores a JPEG or PNG and returns its reference.
func (c *Client) UploadPhoto(ctx context.Context, filename string, data []byte) (string, error) {
	var resp struct {
		Ref string `json:"ref"`
	}
	err := c.upload(ctx, "photos", filename, data, &resp)
	return resp.Ref, err
}

// SubmitReport submits a report form.
func (c *Client) SubmitReport(ctx context.Context, form ReportForm) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPost, "reports", form, &resp)
	return resp, err
}

// ListReports returns the caller's reports, or all of them for administrators.
func (c *Client) ListReports(ctx context.Context) ([]Report, error) {
	var resp struct {
		Items []Report `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "reports", nil, &resp)
	return resp.Items, err
}

// SearchReports filters reports.
func (c *Client) SearchReports(ctx context.Context, s Search) ([]Report, error) {
	var resp struct {
		Items []Report `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "reports/search"+s.query(), nil, &resp)
	return resp.Items, err
}

// GetReport fetches one report.
func (c *Client) GetReport(ctx context.Context, id string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, "reports/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DownloadPDF renders one report.
func (c *Client) DownloadPDF(ctx context.Context, id string) (Download, error) {
	return c.download(ctx, "reports/"+url.PathEscape(id)+"/pdf")
}

// DownloadBatchPDF renders every matching report into one document.
func (c *Client) DownloadBatchPDF(ctx context.Context, s Search) (Download, error) {
	return c.download(ctx, "reports/pdf"+s.query())
}

// DownloadXLSX exports matching reports as a spreadsheet.
func (c *Client) DownloadXLSX(ctx context.Context, s Search) (Download, error) {
	return c.download(ctx, "reports/export.xlsx"+s.query())
}

// AnalyzePhoto runs OCR over a photo of a paper form. The result is returned
// as decoded JSON.
func (c *Client) AnalyzePhoto(ctx context.Context, filename string, data []byte) (map[string]any, error) {
	var resp map[string]any
	err := c.upload(ctx, "ocr/analyze", filename, data, &resp)
	return resp, err
}

// Activity returns recent activity entries (administrators only).
func (c *Client) Activity(ctx context.Context, limit int) ([]Activity, error) {
	endpoint := "activity"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Items []Activity `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Users lists accounts (administrators only).
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp struct {
		Items []User `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) upload(ctx context.Context, endpoint, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) download(ctx context.Context, endpoint string) (Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(endpoint), nil)
	if err != nil {
		return Download{}, err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Download{}, err
	}
	return Download{
		Name:        fileName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Bytes:       data,
	}, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// roundTrip sends req with credentials and turns non-2xx answers into *APIError.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
	}
	return nil, apiErr
}

// fileName prefers the RFC 5987 filename* parameter.
func fileName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
