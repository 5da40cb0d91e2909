// Package ocr pre-fills report forms from a photo of a handwritten report.
//
// The heavy lifting is delegated to a vision model behind Generator; this
// package prepares the image, parses the model's JSON, normalises the work
// type and scores how much of the result can be trusted.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"shiftreport/internal/domain"
)

const (
	CodeInvalidImage        = "INVALID_IMAGE"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeAPIError            = "API_ERROR"
	CodeParseError          = "PARSE_ERROR"
	CodeComplianceViolation = "COMPLIANCE_VIOLATION"
)

// Error is an analysis failure with a user-facing message.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

const (
	DefaultQualityFactor = 0.85
	complianceThreshold  = 0.95
)

// DefaultBannedTerms are rejected anywhere in the free-text fields.
var DefaultBannedTerms = []string{"差別", "暴力", "脅迫", "侮辱"}

// Generator sends one image plus instructions to a vision model and returns its text.
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

type Compliance struct {
	IsCompliant bool     `json:"is_compliant"`
	Score       float64  `json:"score"`
	Violations  []string `json:"violations"`
}

type Metadata struct {
	AnalyzedAt       time.Time `json:"analyzed_at"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ModelVersion     string    `json:"model_version"`
}

type Result struct {
	FormData        domain.ReportFormData `json:"form_data"`
	ConfidenceScore float64               `json:"confidence_score"`
	FieldConfidence map[string]float64    `json:"field_confidence"`
	Compliance      Compliance            `json:"compliance"`
	Metadata        Metadata              `json:"metadata"`
}

type Service struct {
	Generator     Generator
	Model         string
	BannedTerms   []string
	QualityFactor float64
	Logger        *zap.Logger
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Configured reports whether a model is wired in.
func (s *Service) Configured() bool {
	return s != nil && s.Generator != nil
}

// Analyze reads a report photo into form data. Failures are *Error.
func (s *Service) Analyze(ctx context.Context, image []byte) (*Result, error) {
	start := s.now()
	mt := mimetype.Detect(image)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, &Error{Code: CodeInvalidImage, Message: "画像ファイルを選択してください。", Details: map[string]any{"type": mt.String()}}
	}
	if !s.Configured() {
		return nil, &Error{Code: CodeNotConfigured, Message: "OCRのAPIキーが設定されていません。ocr.api_key を設定してください。"}
	}

	data, mime := preprocess(image, mt.String(), s.logger())
	text, err := s.Generator.Generate(ctx, extractionPrompt, data, mime)
	if err != nil {
		s.logger().Warn("ocr request failed", zap.Error(err))
		return nil, &Error{Code: CodeAPIError, Message: err.Error()}
	}

	raw, err := parseResponse(text)
	if err != nil {
		return nil, &Error{Code: CodeParseError, Message: "OCRのレスポンスをJSONとして解析できませんでした。", Details: map[string]any{"response": text, "error": err.Error()}}
	}
	if wt := raw.text("work_type"); wt != "" {
		raw["work_type"] = MatchWorkType(wt)
	}
	form := raw.form()
	compliance := checkCompliance(form, s.bannedTerms())
	if !compliance.IsCompliant {
		return nil, &Error{Code: CodeComplianceViolation, Message: "入力内容のコンプライアンス違反が検出されました。", Details: map[string]any{"violations": compliance.Violations}}
	}
	end := s.now()
	return &Result{
		FormData:        form,
		ConfidenceScore: raw.confidence(s.qualityFactor()),
		FieldConfidence: raw.fieldConfidence(),
		Compliance:      compliance,
		Metadata: Metadata{
			AnalyzedAt:       end.UTC(),
			ProcessingTimeMs: end.Sub(start).Milliseconds(),
			ModelVersion:     s.Model,
		},
	}, nil
}

func (s *Service) bannedTerms() []string {
	if s.BannedTerms == nil {
		return DefaultBannedTerms
	}
	return s.BannedTerms
}

func (s *Service) qualityFactor() float64 {
	if s.QualityFactor <= 0 {
		return DefaultQualityFactor
	}
	return s.QualityFactor
}

var fence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

type rawForm map[string]any

func parseResponse(text string) (rawForm, error) {
	body := strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		body = strings.TrimSpace(m[1])
	}
	var raw rawForm
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return raw, nil
}

func (r rawForm) text(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return fmt.Sprint(v)
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func (r rawForm) flag(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "あり", "1":
			return true
		}
	case float64:
		return v != 0
	}
	return false
}

func (r rawForm) form() domain.ReportFormData {
	return domain.ReportFormData{
		ContractName:             r.text("contract_name"),
		GuardLocation:            r.text("guard_location"),
		WorkType:                 r.text("work_type"),
		WorkDetail:               r.text("work_detail"),
		WorkDateFrom:             r.text("work_date_from"),
		WorkDateTo:               r.text("work_date_to"),
		Weather:                  r.text("weather"),
		BreakTime:                r.text("break_time"),
		OvertimeTime:             r.text("overtime_time"),
		AssignedGuards:           r.text("assigned_guards"),
		SpecialNotes:             r.text("special_notes"),
		SpecialNotesDetail:       r.text("special_notes_detail"),
		TrafficGuideAssigned:     r.flag("traffic_guide_assigned"),
		TrafficGuideAssigneeName: r.text("traffic_guide_assignee_name"),
		MiscGuardAssigned:        r.flag("misc_guard_assigned"),
		MiscGuardAssigneeName:    r.text("misc_guard_assignee_name"),
		Remarks:                  r.text("remarks"),
	}
}

// scoredFields feed the overall confidence.
var scoredFields = []string{
	"contract_name", "guard_location", "work_type", "work_date_from", "work_date_to",
	"weather", "break_time", "overtime_time", "assigned_guards", "remarks",
}

func (r rawForm) confidence(quality float64) float64 {
	filled := 0
	for _, f := range scoredFields {
		if strings.TrimSpace(r.text(f)) != "" {
			filled++
		}
	}
	return min(float64(filled)/float64(len(scoredFields))*quality, 1.0)
}

func lengthScore(s string) float64 {
	switch n := utf8.RuneCountInString(strings.TrimSpace(s)); {
	case n >= 3:
		return 0.9
	case n == 2:
		return 0.75
	case n == 1:
		return 0.5
	}
	return 0
}

func (r rawForm) fieldConfidence() map[string]float64 {
	out := map[string]float64{}
	for _, f := range []string{
		"contract_name", "guard_location", "work_type", "work_date_from", "work_date_to",
		"weather", "break_time", "overtime_time", "assigned_guards", "special_notes", "remarks",
	} {
		out[f] = lengthScore(r.text(f))
	}
	for _, f := range []string{"traffic_guide_assigned", "misc_guard_assigned"} {
		if _, ok := r[f]; ok {
			out[f] = 0.95
		} else {
			out[f] = 0
		}
	}
	return out
}

func checkCompliance(form domain.ReportFormData, banned []string) Compliance {
	violations := []string{}
	score := 1.0
	all := form.ContractName + " " + form.GuardLocation + " " + form.Remarks
	for _, term := range banned {
		if term != "" && strings.Contains(all, term) {
			violations = append(violations, "不適切な内容が検出されました: "+term)
			score -= 0.25
		}
	}
	if strings.TrimSpace(form.ContractName) == "" {
		violations = append(violations, "必須項目「契約先」が未入力です")
		score -= 0.1
	}
	if strings.TrimSpace(form.GuardLocation) == "" {
		violations = append(violations, "必須項目「警備場所」が未入力です")
		score -= 0.1
	}
	return Compliance{
		IsCompliant: len(violations) == 0 && score >= complianceThreshold,
		Score:       max(score, 0),
		Violations:  violations,
	}
}
