package pdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

// Style selects font and alignment for a text run.
type Style struct {
	Size  float64
	Bold  bool
	Align string // L, C or R
}

// Canvas is the drawing surface a Layout paints on. Units are millimetres
// from the top-left corner of an A4 portrait page.
type Canvas interface {
	AddPage()
	Rect(x, y, w, h float64, fill bool)
	// Text draws one vertically centred line clipped to w.
	Text(x, y, w, h float64, s string, st Style)
	// Paragraph wraps s to w and drops lines that do not fit in h.
	Paragraph(x, y, w, h float64, s string, st Style)
	Checkbox(x, y, size float64, checked bool)
	Err() error
}

const (
	pageWidth  = 210.0
	pageHeight = 297.0
	margin     = 10.0
	cellPad    = 1.5
	ptToMM     = 25.4 / 72
	lineFactor = 1.35
)

// Fonts points at TrueType files with Japanese glyphs. Bold may be empty.
// An empty Regular is resolved against SystemFontPaths.
type Fonts struct {
	Regular string
	Bold    string
}

// ErrNoFont is returned when no TrueType font with Japanese glyphs can be
// loaded. The core PDF fonts have no Japanese glyphs.
var ErrNoFont = errors.New("no usable japanese truetype font (set pdf.font_path)")

// SystemFontPaths are the Japanese TrueType fonts tried in order when no
// font path is configured. OpenType (CFF) and TTC collections cannot be
// embedded.
var SystemFontPaths = []string{
	"/usr/share/fonts/opentype/ipaexfont-gothic/ipaexg.ttf",
	"/usr/share/fonts/truetype/fonts-japanese-gothic.ttf",
	"/usr/share/fonts/opentype/ipafont-gothic/ipag.ttf",
	"/usr/share/fonts/truetype/takao-gothic/TakaoGothic.ttf",
	"/usr/share/fonts/truetype/vlgothic/VL-Gothic-Regular.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
}

// resolve returns the regular font path to load.
func (f Fonts) resolve() (string, error) {
	if f.Regular != "" {
		if _, err := os.Stat(f.Regular); err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoFont, err)
		}
		return f.Regular, nil
	}
	for _, p := range SystemFontPaths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", ErrNoFont
}

type fpdfCanvas struct {
	doc    *fpdf.Fpdf
	family string
}

// readTrueType loads a font file fpdf can embed as a UTF-8 subset.
func readTrueType(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("%s: too short for a font", path)
	}
	switch v := binary.BigEndian.Uint32(data); v {
	case 0x00010000, 0x74727565: // TrueType, "true"
		return data, nil
	default:
		return nil, fmt.Errorf("%s: not a TrueType font (tag %08x)", path, v)
	}
}

func newFpdfCanvas(fonts Fonts, stamp time.Time, logger *zap.Logger) (*fpdfCanvas, error) {
	regular, err := fonts.resolve()
	if err != nil {
		return nil, err
	}
	regularData, err := readTrueType(regular)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFont, err)
	}
	boldData := regularData
	if fonts.Bold != "" {
		if b, err := readTrueType(fonts.Bold); err != nil {
			logger.Warn("bold font not usable; using regular", zap.String("path", fonts.Bold), zap.Error(err))
		} else {
			boldData = b
		}
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(false, margin)
	doc.SetCatalogSort(true)
	doc.SetCreationDate(stamp)
	doc.SetModificationDate(stamp)
	doc.SetCreator("shiftreport", true)
	doc.SetLineWidth(0.2)
	doc.SetDrawColor(0, 0, 0)
	doc.AddUTF8FontFromBytes("jp", "", regularData)
	doc.AddUTF8FontFromBytes("jp", "B", boldData)
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	return &fpdfCanvas{doc: doc, family: "jp"}, nil
}

func (c *fpdfCanvas) AddPage() { c.doc.AddPage() }

func (c *fpdfCanvas) Rect(x, y, w, h float64, fill bool) {
	style := "D"
	if fill {
		c.doc.SetFillColor(224, 224, 224)
		style = "FD"
	}
	c.doc.Rect(x, y, w, h, style)
}

func (c *fpdfCanvas) font(st Style) {
	style := ""
	if st.Bold {
		style = "B"
	}
	size := st.Size
	if size == 0 {
		size = 10
	}
	c.doc.SetFont(c.family, style, size)
}

func align(st Style) string {
	if st.Align == "" {
		return "L"
	}
	return st.Align
}

func (c *fpdfCanvas) Text(x, y, w, h float64, s string, st Style) {
	if s == "" {
		return
	}
	c.font(st)
	inner := w - 2*cellPad
	runes := []rune(s)
	for len(runes) > 0 && c.doc.GetStringWidth(string(runes)) > inner {
		runes = runes[:len(runes)-1]
	}
	c.doc.SetXY(x+cellPad, y)
	c.doc.CellFormat(inner, h, string(runes), "", 0, align(st)+"M", false, 0, "")
}

func (c *fpdfCanvas) Paragraph(x, y, w, h float64, s string, st Style) {
	if s == "" {
		return
	}
	c.font(st)
	size := st.Size
	if size == 0 {
		size = 10
	}
	lineH := size * ptToMM * lineFactor
	inner := w - 2*cellPad
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		if para == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, c.doc.SplitText(para, inner)...)
	}
	maxLines := int((h - cellPad) / lineH)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for i, line := range lines {
		c.doc.SetXY(x+cellPad, y+cellPad/2+float64(i)*lineH)
		c.doc.CellFormat(inner, lineH, line, "", 0, align(st), false, 0, "")
	}
}

func (c *fpdfCanvas) Checkbox(x, y, size float64, checked bool) {
	c.doc.Rect(x, y, size, size, "D")
	if !checked {
		return
	}
	c.doc.SetLineWidth(0.4)
	c.doc.Line(x+0.2*size, y+0.55*size, x+0.42*size, y+0.78*size)
	c.doc.Line(x+0.42*size, y+0.78*size, x+0.82*size, y+0.22*size)
	c.doc.SetLineWidth(0.2)
}

func (c *fpdfCanvas) Err() error { return c.doc.Error() }

func (c *fpdfCanvas) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
