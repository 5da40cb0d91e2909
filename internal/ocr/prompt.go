package ocr

import (
	"strings"

	"shiftreport/internal/domain"
)

const extractionPrompt = `この画像は警備報告書です。以下の項目を正確に読み取り、JSON形式で返してください。

【読み取り項目】
1. contract_name: 契約先（会社名）
2. guard_location: 警備場所（住所・場所名）
3. work_type: 業務内容（チェックボックスから選択されているもの）
4. work_date_from: 勤務開始日時（自）ISO 8601形式
5. work_date_to: 勤務終了日時（至）ISO 8601形式
6. weather: 天気
7. break_time: 休憩時間
8. overtime_time: 残業時間
9. assigned_guards: 担当警備員（複数の場合は改行区切り）
10. special_notes: 特記事項（「あり」または「なし」）
11. special_notes_detail: 特記事項の内容
12. traffic_guide_assigned: 交通誘導検定合格者配置（true/false）
13. traffic_guide_assignee_name: 検定合格者氏名（交通誘導）
14. misc_guard_assigned: 雑踏警備検定合格者配置（true/false）
15. misc_guard_assignee_name: 検定合格者氏名（雑踏警備）
16. remarks: 備考

【JSON形式の例】
{
  "contract_name": "積水ハウス建設事務所(株) 御中",
  "guard_location": "大阪市都島区星陵ビル7m",
  "work_type": "道路工事に於ける交通誘導",
  "work_date_from": "2026-01-15T08:00:00",
  "work_date_to": "2026-01-15T17:00:00",
  "weather": "晴れ",
  "break_time": "1時間",
  "overtime_time": "2時間",
  "assigned_guards": "山田 太郎\n佐藤 次郎",
  "special_notes": "なし",
  "special_notes_detail": "",
  "traffic_guide_assigned": true,
  "traffic_guide_assignee_name": "山田 太郎",
  "misc_guard_assigned": false,
  "misc_guard_assignee_name": "",
  "remarks": "特に問題なし"
}

**重要**:
- JSONのみを返してください（説明文は不要）
- 読み取れない項目は空文字列 "" にしてください
- 日時はISO 8601形式で返してください
- boolean値はtrue/falseで返してください`

// workTypeKeywords are tried in order when no label appears verbatim.
var workTypeKeywords = []struct {
	words []string
	label string
}{
	{[]string{"道路", "交通"}, domain.WorkTypeRoadTraffic},
	{[]string{"建設", "工事"}, domain.WorkTypeConstructionTraffic},
	{[]string{"車両", "出入"}, domain.WorkTypeVehicleEntry},
	{[]string{"イベント"}, domain.WorkTypeEventTraffic},
	{[]string{"駐車"}, domain.WorkTypeParkingTraffic},
	{[]string{"雑踏", "警戒"}, domain.WorkTypeCrowdControl},
}

// MatchWorkType maps free text onto one of the six work type labels,
// defaulting to road traffic guidance.
func MatchWorkType(text string) string {
	for _, wt := range domain.WorkTypes {
		if strings.Contains(text, wt) {
			return wt
		}
	}
	for _, kw := range workTypeKeywords {
		for _, w := range kw.words {
			if strings.Contains(text, w) {
				return kw.label
			}
		}
	}
	return domain.WorkTypeRoadTraffic
}
