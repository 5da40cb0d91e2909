package domain

import "time"

const (
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

const (
	ActionSignup   = "signup"
	ActionLogin    = "login"
	ActionLogout   = "logout"
	ActionSubmit   = "submit"
	ActionDownload = "download"
)

// Work type labels as printed on the paper form, in form order.
const (
	WorkTypeRoadTraffic         = "道路工事に於ける交通誘導"
	WorkTypeConstructionTraffic = "建設工事現場に於ける交通誘導"
	WorkTypeVehicleEntry        = "工事関係車両の出入口に伴う交通誘導"
	WorkTypeEventTraffic        = "イベントに伴う交通誘導"
	WorkTypeParkingTraffic      = "駐車場の出入りに伴う交通誘導"
	WorkTypeCrowdControl        = "人の雑踏する場所に於ける負傷者等の事故発生を警戒・防止業務"
)

// WorkTypes lists the recognized work type labels in form order.
var WorkTypes = []string{
	WorkTypeRoadTraffic,
	WorkTypeConstructionTraffic,
	WorkTypeVehicleEntry,
	WorkTypeEventTraffic,
	WorkTypeParkingTraffic,
	WorkTypeCrowdControl,
}

// IsWorkType reports whether label is one of WorkTypes.
func IsWorkType(label string) bool {
	for _, wt := range WorkTypes {
		if wt == label {
			return true
		}
	}
	return false
}

// Special notes flag values. The Japanese forms come from OCR and older data.
const (
	SpecialNotesYes   = "yes"
	SpecialNotesNo    = "no"
	SpecialNotesYesJA = "あり"
	SpecialNotesNoJA  = "なし"
)

// SpecialNotesSet reports whether the special notes flag is on.
func SpecialNotesSet(flag string) bool {
	return flag == SpecialNotesYes || flag == SpecialNotesYesJA
}

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
	Status                   string    `json:"status" enum:"submitted,approved,rejected"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// HasSpecialNotes reports whether the special notes block carries content.
func (r Report) HasSpecialNotes() bool {
	return SpecialNotesSet(r.SpecialNotes) || r.SpecialNotesDetail != ""
}

// ReportFormData is raw report input, either typed by an employee or guessed by OCR.
type ReportFormData struct {
	ContractName             string `json:"contract_name"`
	GuardLocation            string `json:"guard_location"`
	WorkType                 string `json:"work_type"`
	WorkDetail               string `json:"work_detail,omitempty"`
	WorkDateFrom             string `json:"work_date_from"`
	WorkDateTo               string `json:"work_date_to"`
	Weather                  string `json:"weather,omitempty"`
	BreakTime                string `json:"break_time,omitempty"`
	OvertimeTime             string `json:"overtime_time,omitempty"`
	AssignedGuards           string `json:"assigned_guards,omitempty"`
	SpecialNotes             string `json:"special_notes,omitempty"`
	SpecialNotesDetail       string `json:"special_notes_detail,omitempty"`
	TrafficGuideAssigned     bool   `json:"traffic_guide_assigned"`
	TrafficGuideAssigneeName string `json:"traffic_guide_assignee_name,omitempty"`
	MiscGuardAssigned        bool   `json:"misc_guard_assigned"`
	MiscGuardAssigneeName    string `json:"misc_guard_assignee_name,omitempty"`
	Remarks                  string `json:"remarks,omitempty"`
}

// ReportPayload is validated report content ready to be stored.
type ReportPayload struct {
	ContractName             string
	GuardLocation            string
	WorkType                 string
	WorkDetail               string
	WorkDateFrom             time.Time
	WorkDateTo               time.Time
	Weather                  string
	BreakTime                string
	OvertimeTime             string
	AssignedGuards           string
	SpecialNotes             string
	SpecialNotesDetail       string
	TrafficGuideAssigned     bool
	TrafficGuideAssigneeName string
	MiscGuardAssigned        bool
	MiscGuardAssigneeName    string
	Remarks                  string
}

// NewReport builds a report from a payload; identity and timestamps are left to the caller.
func NewReport(ownerID string, p ReportPayload, photoURLs []string) Report {
	if photoURLs == nil {
		photoURLs = []string{}
	}
	return Report{
		UserID:                   ownerID,
		ContractName:             p.ContractName,
		GuardLocation:            p.GuardLocation,
		WorkType:                 p.WorkType,
		WorkDetail:               p.WorkDetail,
		WorkDateFrom:             p.WorkDateFrom,
		WorkDateTo:               p.WorkDateTo,
		Weather:                  p.Weather,
		BreakTime:                p.BreakTime,
		OvertimeTime:             p.OvertimeTime,
		AssignedGuards:           p.AssignedGuards,
		PhotoURLs:                append([]string(nil), photoURLs...),
		SpecialNotes:             p.SpecialNotes,
		SpecialNotesDetail:       p.SpecialNotesDetail,
		TrafficGuideAssigned:     p.TrafficGuideAssigned,
		TrafficGuideAssigneeName: p.TrafficGuideAssigneeName,
		MiscGuardAssigned:        p.MiscGuardAssigned,
		MiscGuardAssigneeName:    p.MiscGuardAssigneeName,
		Remarks:                  p.Remarks,
		Status:                   StatusSubmitted,
	}
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role" enum:"employee,admin"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName is the name printed on exports.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

type ActivityLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Action       string    `json:"action" enum:"signup,login,logout,submit,download"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
