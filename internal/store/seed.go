package store

import (
	"time"

	"github.com/google/uuid"

	"shiftreport/internal/domain"
)

const (
	demoEmployeeEmail    = "demo@celutrust.co.jp"
	demoEmployeePassword = "demo123"
	demoEmployeeName     = "デモ 社員"
)

// sampleReports returns the two reports the demo store starts with.
func sampleReports(ownerID string, now time.Time) []domain.Report {
	yesterday := now.Add(-24 * time.Hour)
	first := domain.NewReport(ownerID, domain.ReportPayload{
		ContractName:             "積水ハウス建設事務所(株) 御中",
		GuardLocation:            "大阪市都島区星陵ビル7m",
		WorkType:                 domain.WorkTypeConstructionTraffic,
		WorkDetail:               "施設 工受",
		WorkDateFrom:             yesterday,
		WorkDateTo:               yesterday.Add(8 * time.Hour),
		Weather:                  "晴れ",
		BreakTime:                "1時間",
		AssignedGuards:           "山田 太郎\n佐藤 次郎",
		SpecialNotes:             domain.SpecialNotesNo,
		TrafficGuideAssigned:     true,
		TrafficGuideAssigneeName: "山田 太郎",
		Remarks:                  "特に問題なし",
	}, nil)
	first.ID = uuid.NewString()
	first.CreatedAt, first.UpdatedAt = yesterday, yesterday

	second := domain.NewReport(ownerID, domain.ReportPayload{
		ContractName:          "セリュートラスト株式会社 御中",
		GuardLocation:         "兵庫県明石市大久保町駅前二丁目",
		WorkType:              domain.WorkTypeCrowdControl,
		WorkDetail:            "巡回 施設",
		WorkDateFrom:          now,
		WorkDateTo:            now.Add(8 * time.Hour),
		Weather:               "曇り",
		BreakTime:             "30分",
		OvertimeTime:          "2時間",
		AssignedGuards:        "佐藤 花子",
		SpecialNotes:          domain.SpecialNotesYes,
		SpecialNotesDetail:    "不審者を発見し、警察へ通報しました。",
		MiscGuardAssigned:     true,
		MiscGuardAssigneeName: "佐藤 花子",
		Remarks:               "警察到着まで監視を継続",
	}, nil)
	second.ID = uuid.NewString()
	second.CreatedAt, second.UpdatedAt = now, now
	return []domain.Report{first, second}
}
