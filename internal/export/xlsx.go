// Package export writes report lists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"shiftreport/internal/domain"
)

const SheetName = "報告書一覧"

var headers = []string{
	"報告書ID", "提出者", "契約先", "警備場所", "業務内容", "勤務開始", "勤務終了",
	"天気", "休憩", "残業", "担当警備員", "特記事項", "交通誘導検定", "雑踏警備検定",
	"備考", "写真枚数", "状態", "提出日時",
}

// FileName is reports_<YYYYMMDD>.xlsx in loc.
func FileName(exported time.Time, loc *time.Location) string {
	if loc != nil {
		exported = exported.In(loc)
	}
	return "reports_" + exported.Format("20060102") + ".xlsx"
}

// WriteReports writes one row per report under a styled header. names maps
// an owner id to a display name.
func WriteReports(w io.Writer, reports []domain.Report, names func(userID string) string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, headerStyle)
	}

	const layout = "2006-01-02 15:04"
	for i, r := range reports {
		owner := ""
		if names != nil {
			owner = names(r.UserID)
		}
		values := []any{
			r.ID,
			owner,
			r.ContractName,
			r.GuardLocation,
			r.WorkType,
			r.WorkDateFrom.In(loc).Format(layout),
			r.WorkDateTo.In(loc).Format(layout),
			r.Weather,
			r.BreakTime,
			r.OvertimeTime,
			strings.Join(strings.Fields(strings.ReplaceAll(r.AssignedGuards, "\n", "、")), " "),
			specialNotes(r),
			assignment(r.TrafficGuideAssigned, r.TrafficGuideAssigneeName),
			assignment(r.MiscGuardAssigned, r.MiscGuardAssigneeName),
			r.Remarks,
			len(r.PhotoURLs),
			r.Status,
			r.CreatedAt.In(loc).Format(layout),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(SheetName, "A", last, 18)
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func specialNotes(r domain.Report) string {
	if !r.HasSpecialNotes() {
		return "なし"
	}
	if r.SpecialNotesDetail == "" {
		return "あり"
	}
	return "あり: " + r.SpecialNotesDetail
}

func assignment(assigned bool, name string) string {
	if !assigned {
		return "なし"
	}
	if name == "" {
		return "あり"
	}
	return "あり（" + name + "）"
}
