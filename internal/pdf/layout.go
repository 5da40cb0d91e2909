package pdf

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"shiftreport/internal/domain"
)

// Org is the company printed in the footer and used in file names.
type Org struct {
	Name    string
	Address string
	Tel     string
	Fax     string
}

// DefaultOrg is the organisation the paper form was designed for.
var DefaultOrg = Org{
	Name:    "セリュートラスト株式会社",
	Address: "〒674-0058 兵庫県明石市大久保町駅前二丁目1番地の10",
	Tel:     "078-945-5628",
	Fax:     "078-945-5629",
}

const (
	Title      = "警備報告書（当社控）"
	guardSlots = 6
)

// Layout draws one report page. Draw is a pure function of its inputs.
type Layout struct {
	Org      Org
	Location *time.Location
}

var (
	labelStyle  = Style{Size: 10, Bold: true}
	headerStyle = Style{Size: 10, Bold: true, Align: "C"}
	valueStyle  = Style{Size: 10}
	smallStyle  = Style{Size: 8}
)

func (l Layout) Draw(c Canvas, r domain.Report, signer string) {
	c.AddPage()
	c.Text(margin, 10, 190, 10, Title, Style{Size: 16, Bold: true, Align: "C"})
	l.drawParties(c, r, signer)
	l.drawWorkTime(c, r)
	drawWorkTypes(c, r.WorkType)
	drawGuards(c, r.AssignedGuards)
	drawSpecialNotes(c, r)
	drawCertifications(c, r)
	drawRemarks(c, r.Remarks)
	l.drawFooter(c)
}

func (l Layout) drawParties(c Canvas, r domain.Report, signer string) {
	rows := []struct{ label, value string }{
		{"契約先", r.ContractName},
		{"警備場所", r.GuardLocation},
	}
	for i, row := range rows {
		y := 22 + float64(i)*10
		c.Rect(margin, y, 38, 10, true)
		c.Text(margin, y, 38, 10, row.label, labelStyle)
		c.Rect(48, y, 104, 10, false)
		c.Paragraph(48, y, 104, 10, clean(row.value), Style{Size: 9})
	}
	c.Rect(152, 22, 48, 20, false)
	c.Text(152, 23, 48, 6, "ご署名", headerStyle)
	c.Text(152, 30, 48, 10, line(signer), Style{Size: 10, Align: "C"})
}

func (l Layout) drawWorkTime(c Canvas, r domain.Report) {
	c.Rect(margin, 46, 142, 8, true)
	c.Text(margin, 46, 142, 8, "勤務時間", headerStyle)
	c.Rect(152, 46, 48, 8, true)
	c.Text(152, 46, 48, 8, "天気", headerStyle)

	c.Rect(margin, 54, 142, 10, false)
	c.Text(margin, 54, 142, 10, "（自）　"+FormatWareki(r.WorkDateFrom, l.Location), valueStyle)
	c.Rect(152, 54, 48, 10, false)
	c.Text(152, 54, 48, 10, line(r.Weather), Style{Size: 10, Align: "C"})

	c.Rect(margin, 64, 142, 16, false)
	c.Text(margin, 64, 142, 16, "（至）　"+FormatWareki(r.WorkDateTo, l.Location), valueStyle)
	halves := []struct{ label, value string }{
		{"休憩", r.BreakTime},
		{"残業", r.OvertimeTime},
	}
	for i, h := range halves {
		y := 64 + float64(i)*8
		c.Rect(152, y, 16, 8, true)
		c.Text(152, y, 16, 8, h.label, Style{Size: 9, Bold: true, Align: "C"})
		c.Rect(168, y, 32, 8, false)
		c.Text(168, y, 32, 8, line(h.value), Style{Size: 9, Align: "C"})
	}
}

func drawWorkTypes(c Canvas, selected string) {
	c.Rect(margin, 84, 190, 8, true)
	c.Text(margin, 84, 190, 8, "業　　務", headerStyle)
	for i, wt := range domain.WorkTypes {
		y := 92 + float64(i)*7
		c.Rect(margin, y, 190, 7, false)
		c.Checkbox(13, y+1.75, 3.5, wt == selected)
		c.Text(18, y, 180, 7, wt, valueStyle)
	}
}

// GuardNames splits the newline-delimited roster into at most six names.
func GuardNames(assigned string) []string {
	var names []string
	for _, n := range strings.Split(assigned, "\n") {
		if n = strings.TrimSpace(clean(n)); n != "" {
			names = append(names, n)
		}
	}
	if len(names) > guardSlots {
		names = names[:guardSlots]
	}
	return names
}

func drawGuards(c Canvas, assigned string) {
	c.Rect(margin, 138, 190, 8, true)
	c.Text(margin, 138, 190, 8, "担当警備員", labelStyle)
	names := GuardNames(assigned)
	for i := 0; i < guardSlots; i++ {
		x := margin + float64(i%2)*95
		y := 146 + float64(i/2)*12
		c.Rect(x, y, 95, 12, false)
		c.Text(x, y, 10, 5, strconv.Itoa(i+1), Style{Size: 7})
		if i < len(names) {
			c.Text(x+8, y+2, 85, 10, names[i], valueStyle)
		}
	}
}

func drawYesNo(c Canvas, x, y float64, yes bool) {
	c.Checkbox(x, y, 3.5, yes)
	c.Text(x+4, y-1.5, 14, 6.5, "あり", valueStyle)
	c.Checkbox(x+20, y, 3.5, !yes)
	c.Text(x+24, y-1.5, 14, 6.5, "なし", valueStyle)
}

func drawSpecialNotes(c Canvas, r domain.Report) {
	has := r.HasSpecialNotes()
	c.Rect(margin, 186, 48, 8, true)
	c.Text(margin, 186, 48, 8, "特記事項", labelStyle)
	c.Rect(58, 186, 142, 8, false)
	drawYesNo(c, 61, 188.25, has)
	if !has {
		return
	}
	c.Rect(margin, 194, 190, 24, false)
	c.Text(margin, 194, 190, 6, "特記事項の内容", Style{Size: 9, Bold: true})
	c.Paragraph(margin, 200, 190, 18, clean(r.SpecialNotesDetail), Style{Size: 9})
}

func drawCertifications(c Canvas, r domain.Report) {
	rows := []struct {
		label    string
		assigned bool
		name     string
	}{
		{"交通誘導検定合格者配置", r.TrafficGuideAssigned, r.TrafficGuideAssigneeName},
		{"雑踏警備検定合格者配置", r.MiscGuardAssigned, r.MiscGuardAssigneeName},
	}
	for i, row := range rows {
		y := 222 + float64(i)*9
		c.Rect(margin, y, 76, 9, true)
		c.Text(margin, y, 76, 9, row.label, labelStyle)
		c.Rect(86, y, 57, 9, false)
		drawYesNo(c, 89, y+2.75, row.assigned)
		c.Rect(143, y, 57, 9, false)
		if name := line(row.name); row.assigned && name != "" {
			c.Text(143, y, 57, 9, "検定合格者氏名: "+name, smallStyle)
		}
	}
}

func drawRemarks(c Canvas, remarks string) {
	c.Rect(margin, 244, 190, 7, true)
	c.Text(margin, 244, 190, 7, "備考", labelStyle)
	c.Rect(margin, 251, 190, 26, false)
	c.Paragraph(margin, 251, 190, 26, clean(remarks), Style{Size: 9})
}

func (l Layout) drawFooter(c Canvas) {
	org := l.Org
	if org.Name == "" {
		org = DefaultOrg
	}
	c.Text(margin, 280, 190, 4, org.Name, Style{Size: 9, Bold: true})
	c.Text(margin, 284, 190, 4, org.Address, smallStyle)
	c.Text(margin, 288, 190, 4, "TEL "+org.Tel+"　FAX "+org.Fax, smallStyle)
}

// clean drops control characters other than newlines.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case r == '\r', unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// line is clean for single-line cells.
func line(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(clean(s), "\n", " "))
}
