package server

import (
	"time"

	"shiftreport/internal/domain"
	"shiftreport/internal/engine"
	"shiftreport/internal/ocr"
)

// Request payloads

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SubmitReportRequest is the report form plus photos uploaded beforehand.
// Every field is optional at the schema level; the validation layer owns the
// rules and reports all of them at once.
type SubmitReportRequest struct {
	ContractName             string   `json:"contract_name,omitempty"`
	GuardLocation            string   `json:"guard_location,omitempty"`
	WorkType                 string   `json:"work_type,omitempty"`
	WorkDetail               string   `json:"work_detail,omitempty"`
	WorkDateFrom             string   `json:"work_date_from,omitempty" example:"2026-01-15T08:00"`
	WorkDateTo               string   `json:"work_date_to,omitempty" example:"2026-01-15T17:00"`
	Weather                  string   `json:"weather,omitempty"`
	BreakTime                string   `json:"break_time,omitempty"`
	OvertimeTime             string   `json:"overtime_time,omitempty"`
	AssignedGuards           string   `json:"assigned_guards,omitempty"`
	SpecialNotes             string   `json:"special_notes,omitempty" example:"no"`
	SpecialNotesDetail       string   `json:"special_notes_detail,omitempty"`
	TrafficGuideAssigned     bool     `json:"traffic_guide_assigned,omitempty"`
	TrafficGuideAssigneeName string   `json:"traffic_guide_assignee_name,omitempty"`
	MiscGuardAssigned        bool     `json:"misc_guard_assigned,omitempty"`
	MiscGuardAssigneeName    string   `json:"misc_guard_assignee_name,omitempty"`
	Remarks                  string   `json:"remarks,omitempty"`
	PhotoRefs                []string `json:"photo_refs,omitempty"`
}

func (r SubmitReportRequest) form() domain.ReportFormData {
	return domain.ReportFormData{
		ContractName:             r.ContractName,
		GuardLocation:            r.GuardLocation,
		WorkType:                 r.WorkType,
		WorkDetail:               r.WorkDetail,
		WorkDateFrom:             r.WorkDateFrom,
		WorkDateTo:               r.WorkDateTo,
		Weather:                  r.Weather,
		BreakTime:                r.BreakTime,
		OvertimeTime:             r.OvertimeTime,
		AssignedGuards:           r.AssignedGuards,
		SpecialNotes:             r.SpecialNotes,
		SpecialNotesDetail:       r.SpecialNotesDetail,
		TrafficGuideAssigned:     r.TrafficGuideAssigned,
		TrafficGuideAssigneeName: r.TrafficGuideAssigneeName,
		MiscGuardAssigned:        r.MiscGuardAssigned,
		MiscGuardAssigneeName:    r.MiscGuardAssigneeName,
		Remarks:                  r.Remarks,
	}
}

// SearchQuery is shared by search and the batch exports.
type SearchQuery struct {
	StartDate    string `query:"start_date" doc:"YYYY-MM-DD or timestamp; matches work_date_from >= start"`
	EndDate      string `query:"end_date" doc:"YYYY-MM-DD (whole day) or timestamp; matches work_date_to <= end"`
	UserID       string `query:"user_id" doc:"owner filter, admins only"`
	ContractName string `query:"contract_name" doc:"case-insensitive substring"`
}

func (q SearchQuery) options() engine.SearchOptions {
	return engine.SearchOptions{
		StartDate:    q.StartDate,
		EndDate:      q.EndDate,
		UserID:       q.UserID,
		ContractName: q.ContractName,
	}
}

// Response payloads

type SessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

func toSessionResponse(s engine.Session) SessionResponse {
	return SessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: s.User}
}

type PhotoResponse struct {
	Ref string `json:"ref"`
}

type ReportListResponse struct {
	Items []domain.Report `json:"items"`
	Total int             `json:"total"`
}

func toReportList(items []domain.Report) ReportListResponse {
	if items == nil {
		items = []domain.Report{}
	}
	return ReportListResponse{Items: items, Total: len(items)}
}

type UserListResponse struct {
	Items []domain.User `json:"items"`
}

type ActivityListResponse struct {
	Items []domain.ActivityLog `json:"items"`
}

type OCRResponse = ocr.Result
