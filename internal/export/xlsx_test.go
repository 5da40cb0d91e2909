package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shiftreport/internal/domain"
)

func TestWriteReports(t *testing.T) {
	from := time.Date(2026, 1, 14, 23, 0, 0, 0, time.UTC)
	rep := domain.NewReport("u1", domain.ReportPayload{
		ContractName:             "積水ハウス建設事務所(株) 御中",
		GuardLocation:            "大阪市都島区星陵ビル7m",
		WorkType:                 domain.WorkTypeEventTraffic,
		WorkDateFrom:             from,
		WorkDateTo:               from.Add(9 * time.Hour),
		AssignedGuards:           "山田 太郎\n佐藤 次郎",
		TrafficGuideAssigned:     true,
		TrafficGuideAssigneeName: "山田 太郎",
	}, []string{"a", "b"})
	rep.ID = "r1"
	rep.CreatedAt = from

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	var buf bytes.Buffer
	err = WriteReports(&buf, []domain.Report{rep}, func(id string) string { return "警備 " + id }, loc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, headers, rows[0])
	row := rows[1]
	require.Equal(t, "r1", row[0])
	require.Equal(t, "警備 u1", row[1])
	require.Equal(t, "2026-01-15 08:00", row[5])
	require.Equal(t, "山田 太郎、佐藤 次郎", row[10])
	require.Equal(t, "なし", row[11])
	require.Equal(t, "あり（山田 太郎）", row[12])
	require.Equal(t, "なし", row[13])
	require.Equal(t, "2", row[15])
}

func TestFileName(t *testing.T) {
	require.Equal(t, "reports_20260115.xlsx", FileName(time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC), nil))
}
