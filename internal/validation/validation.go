// Package validation turns raw report form input into a canonical payload.
//
// Manual entry and OCR output both pass through Validator.Validate, so the
// rules and the error surface are the same for both.
package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/locales/ja"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	jatranslations "github.com/go-playground/validator/v10/translations/ja"

	"shiftreport/internal/domain"
)

// Error lists every violated constraint, keyed by json field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// formRules mirrors domain.ReportFormData with the validation tags.
type formRules struct {
	ContractName             string `json:"contract_name" validate:"required,max=200"`
	GuardLocation            string `json:"guard_location" validate:"required,max=300"`
	WorkType                 string `json:"work_type" validate:"required,worktype"`
	WorkDetail               string `json:"work_detail" validate:"max=1000"`
	WorkDateFrom             string `json:"work_date_from" validate:"required,timestamp"`
	WorkDateTo               string `json:"work_date_to" validate:"required,timestamp"`
	Weather                  string `json:"weather" validate:"max=20"`
	BreakTime                string `json:"break_time" validate:"max=20"`
	OvertimeTime             string `json:"overtime_time" validate:"max=20"`
	AssignedGuards           string `json:"assigned_guards" validate:"max=500"`
	SpecialNotes             string `json:"special_notes" validate:"max=10"`
	SpecialNotesDetail       string `json:"special_notes_detail" validate:"max=2000"`
	TrafficGuideAssigned     bool   `json:"traffic_guide_assigned"`
	TrafficGuideAssigneeName string `json:"traffic_guide_assignee_name" validate:"max=100"`
	MiscGuardAssigned        bool   `json:"misc_guard_assigned"`
	MiscGuardAssigneeName    string `json:"misc_guard_assignee_name" validate:"max=100"`
	Remarks                  string `json:"remarks" validate:"max=2000"`
}

// accountRules are the fields accepted at signup.
type accountRules struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"min=6,max=100"`
	FullName string `json:"full_name" validate:"max=100"`
}

var labels = map[string]string{
	"email":                       "メールアドレス",
	"password":                    "パスワード",
	"full_name":                   "氏名",
	"contract_name":               "契約先",
	"guard_location":              "警備場所",
	"work_type":                   "業務内容",
	"work_detail":                 "担当業務詳細",
	"work_date_from":              "勤務開始日時",
	"work_date_to":                "勤務終了日時",
	"weather":                     "天気",
	"break_time":                  "休憩時間",
	"overtime_time":               "残業時間",
	"assigned_guards":             "担当警備員",
	"special_notes":               "特記事項の選択",
	"special_notes_detail":        "特記事項の内容",
	"traffic_guide_assignee_name": "検定合格者氏名",
	"misc_guard_assignee_name":    "検定合格者氏名",
	"remarks":                     "備考",
}

// selectFields are chosen from a list rather than typed.
var selectFields = map[string]bool{"work_type": true}

// Validator validates report forms. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
	loc      *time.Location
}

// New builds a Validator that reads zone-less timestamps in loc.
func New(loc *time.Location) (*Validator, error) {
	if loc == nil {
		loc = time.UTC
	}
	locale := ja.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("ja")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := jatranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register ja translations: %w", err)
	}
	if err := v.RegisterValidation("worktype", func(fl validator.FieldLevel) bool {
		return domain.IsWorkType(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := ParseTime(fl.Field().String(), loc)
		return err == nil
	}); err != nil {
		return nil, err
	}
	v.RegisterStructValidation(crossFieldRules(loc), formRules{})

	messages := map[string]string{
		"required":             "{0}を入力してください",
		"max":                  "{0}は{1}文字以内で入力してください",
		"min":                  "{0}は{1}文字以上で入力してください",
		"email":                "有効なメールアドレスを入力してください",
		"worktype":             "{0}は一覧から選択してください",
		"timestamp":            "有効な日時を入力してください",
		"after_start":          "勤務終了日時は勤務開始日時より後である必要があります",
		"required_with_flag":   "特記事項ありの場合は{0}を入力してください",
		"only_with_assignment": "{0}は配置ありの場合のみ入力できます",
	}
	for tag, text := range messages {
		if err := registerMessage(v, trans, tag, text); err != nil {
			return nil, err
		}
	}
	return &Validator{validate: v, trans: trans, loc: loc}, nil
}

func registerMessage(v *validator.Validate, trans ut.Translator, tag, text string) error {
	return v.RegisterTranslation(tag, trans, func(t ut.Translator) error {
		if err := t.Add(tag, text, true); err != nil {
			return err
		}
		return t.Add(tag+"_select", strings.Replace(text, "を入力してください", "を選択してください", 1), true)
	}, func(t ut.Translator, fe validator.FieldError) string {
		key := fe.Tag()
		if selectFields[fe.Field()] {
			key += "_select"
		}
		msg, err := t.T(key, labelFor(fe.Field()), fe.Param())
		if err != nil {
			return fe.Error()
		}
		return msg
	})
}

func labelFor(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

func crossFieldRules(loc *time.Location) validator.StructLevelFunc {
	return func(sl validator.StructLevel) {
		f := sl.Current().Interface().(formRules)
		from, errFrom := ParseTime(f.WorkDateFrom, loc)
		to, errTo := ParseTime(f.WorkDateTo, loc)
		if errFrom == nil && errTo == nil && !to.After(from) {
			sl.ReportError(f.WorkDateTo, "work_date_to", "WorkDateTo", "after_start", "")
		}
		if domain.SpecialNotesSet(f.SpecialNotes) && strings.TrimSpace(f.SpecialNotesDetail) == "" {
			sl.ReportError(f.SpecialNotesDetail, "special_notes_detail", "SpecialNotesDetail", "required_with_flag", "")
		}
		if !f.TrafficGuideAssigned && strings.TrimSpace(f.TrafficGuideAssigneeName) != "" {
			sl.ReportError(f.TrafficGuideAssigneeName, "traffic_guide_assignee_name", "TrafficGuideAssigneeName", "only_with_assignment", "")
		}
		if !f.MiscGuardAssigned && strings.TrimSpace(f.MiscGuardAssigneeName) != "" {
			sl.ReportError(f.MiscGuardAssigneeName, "misc_guard_assignee_name", "MiscGuardAssigneeName", "only_with_assignment", "")
		}
	}
}

// Validate checks form and returns the canonical payload, or *Error.
func (v *Validator) Validate(form domain.ReportFormData) (domain.ReportPayload, error) {
	rules := formRules{
		ContractName:             strings.TrimSpace(form.ContractName),
		GuardLocation:            strings.TrimSpace(form.GuardLocation),
		WorkType:                 strings.TrimSpace(form.WorkType),
		WorkDetail:               form.WorkDetail,
		WorkDateFrom:             strings.TrimSpace(form.WorkDateFrom),
		WorkDateTo:               strings.TrimSpace(form.WorkDateTo),
		Weather:                  form.Weather,
		BreakTime:                form.BreakTime,
		OvertimeTime:             form.OvertimeTime,
		AssignedGuards:           form.AssignedGuards,
		SpecialNotes:             strings.TrimSpace(form.SpecialNotes),
		SpecialNotesDetail:       form.SpecialNotesDetail,
		TrafficGuideAssigned:     form.TrafficGuideAssigned,
		TrafficGuideAssigneeName: form.TrafficGuideAssigneeName,
		MiscGuardAssigned:        form.MiscGuardAssigned,
		MiscGuardAssigneeName:    form.MiscGuardAssigneeName,
		Remarks:                  form.Remarks,
	}
	if err := v.validate.Struct(rules); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return domain.ReportPayload{}, err
		}
		out := &Error{Fields: map[string]string{}}
		for _, fe := range verrs {
			if _, seen := out.Fields[fe.Field()]; seen {
				continue
			}
			out.Fields[fe.Field()] = fe.Translate(v.trans)
		}
		return domain.ReportPayload{}, out
	}
	from, _ := ParseTime(rules.WorkDateFrom, v.loc)
	to, _ := ParseTime(rules.WorkDateTo, v.loc)
	return domain.ReportPayload{
		ContractName:             rules.ContractName,
		GuardLocation:            rules.GuardLocation,
		WorkType:                 rules.WorkType,
		WorkDetail:               rules.WorkDetail,
		WorkDateFrom:             from.UTC().Truncate(time.Microsecond),
		WorkDateTo:               to.UTC().Truncate(time.Microsecond),
		Weather:                  rules.Weather,
		BreakTime:                rules.BreakTime,
		OvertimeTime:             rules.OvertimeTime,
		AssignedGuards:           rules.AssignedGuards,
		SpecialNotes:             rules.SpecialNotes,
		SpecialNotesDetail:       rules.SpecialNotesDetail,
		TrafficGuideAssigned:     rules.TrafficGuideAssigned,
		TrafficGuideAssigneeName: rules.TrafficGuideAssigneeName,
		MiscGuardAssigned:        rules.MiscGuardAssigned,
		MiscGuardAssigneeName:    rules.MiscGuardAssigneeName,
		Remarks:                  rules.Remarks,
	}, nil
}

// CheckAccount validates signup fields and returns the first violated field
// with its message, or "" when the input is acceptable.
func (v *Validator) CheckAccount(email, password, fullName string) (field, message string) {
	err := v.validate.Struct(accountRules{Email: strings.TrimSpace(email), Password: password, FullName: fullName})
	if err == nil {
		return "", ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "email", err.Error()
	}
	return verrs[0].Field(), verrs[0].Translate(v.trans)
}

// localLayouts carry no zone and are read in the validator's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses a report timestamp. Inputs without a zone are read in loc.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a shared Validator reading zone-less timestamps as Asia/Tokyo.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Tokyo")
		if err != nil {
			loc = time.FixedZone("JST", 9*60*60)
		}
		defaultValidator, defaultErr = New(loc)
	})
	return defaultValidator, defaultErr
}

// Validate runs the rules with the Default validator.
func Validate(form domain.ReportFormData) (domain.ReportPayload, error) {
	v, err := Default()
	if err != nil {
		return domain.ReportPayload{}, err
	}
	return v.Validate(form)
}
