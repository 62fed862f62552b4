// Package layout paginates sections of questions onto a Canvas. A single
// vertical cursor walks down the page; every block is measured before it is
// drawn so a question is moved to a fresh page rather than split.
package layout

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/section"
)

// Page geometry in millimetres (A4 portrait).
const (
	PageWidth     = 210.0
	PageHeight    = 297.0
	Margin        = 20.0
	ContentWidth  = PageWidth - 2*Margin
	ContentHeight = PageHeight - 2*Margin
)

const (
	ptToMM            = 0.3528
	baselineRatio     = 0.85
	indent            = 8.0
	questionGap       = 4.0
	sectionGap        = 6.0
	answerLineSpacing = 8.0
	shortAnswerLines  = 3
	imageHeadroom     = 10.0
	titleSize         = 16.0
)

// Placement records where a question or section heading landed.
type Placement struct {
	Kind       string // "section" or "question"
	Section    string // section letter
	Number     int    // question number within its section, 0 for headings
	QuestionID string
	Page       int
	EndPage    int
	Top        float64
	Bottom     float64
}

type cursor struct {
	y    float64
	page int
}

// row is an atomic horizontal strip of a block.
type row struct {
	h    float64
	draw func(y float64)
}

// block is a unit the engine tries to keep on one page. reserve is extra
// space that must remain free below it.
type block struct {
	rows    []row
	reserve float64
}

func (b block) height() float64 {
	h := 0.0
	for _, r := range b.rows {
		h += r.h
	}
	return h
}

// Engine lays out one document. It is not safe for concurrent use.
type Engine struct {
	ctx    context.Context
	c      Canvas
	s      config.Settings
	images *imagecache.Cache

	cur        cursor
	placements []Placement
}

// NewEngine returns an engine drawing onto c. images may be nil, in which case
// every image renders as a placeholder.
func NewEngine(ctx context.Context, c Canvas, s config.Settings, images *imagecache.Cache) *Engine {
	return &Engine{ctx: ctx, c: c, s: s, images: images}
}

// Placements returns where each section heading and question was drawn.
func (e *Engine) Placements() []Placement { return e.placements }

// Pages returns the number of pages started so far.
func (e *Engine) Pages() int { return e.cur.page }

func (e *Engine) bottom() float64 { return PageHeight - Margin }

func (e *Engine) newPage() {
	e.c.AddPage()
	e.cur.page++
	e.cur.y = Margin
}

func (e *Engine) ensurePage() {
	if e.cur.page == 0 {
		e.newPage()
	}
}

// atTop reports whether nothing has been drawn on the current page.
func (e *Engine) atTop() bool { return e.cur.y <= Margin }

// place draws b, breaking the page first when b fits on a fresh page but not
// in the remaining space. Blocks taller than a page break between rows.
func (e *Engine) place(b block) (page int, top float64) {
	e.ensurePage()
	need := b.height() + b.reserve
	if e.cur.y+need > e.bottom() && b.height() <= ContentHeight && !e.atTop() {
		e.newPage()
	}
	page, top = e.cur.page, e.cur.y
	for i, r := range b.rows {
		if e.cur.y+r.h > e.bottom() && !e.atTop() {
			e.newPage()
			if i == 0 {
				page, top = e.cur.page, e.cur.y
			}
		}
		r.draw(e.cur.y)
		e.cur.y += r.h
	}
	return page, top
}

// keepWith returns the reserve that keeps heading on the same page as the
// whole of next. When both cannot share one page, the heading moves to a
// fresh page and next starts right below it.
func keepWith(heading, next block) float64 {
	return min(next.height()+next.reserve, ContentHeight-heading.height())
}

func (e *Engine) gap(mm float64) {
	e.cur.y += mm * e.s.Typography.LineHeight
}

func (e *Engine) lineHeight(f config.Font) float64 {
	return f.Size * ptToMM * e.s.Typography.LineHeight
}

// textRows wraps s to width and returns one row per line.
func (e *Engine) textRows(s string, f config.Font, x, width float64) []row {
	lines := e.wrap(s, f, width)
	rows := make([]row, 0, len(lines))
	h := e.lineHeight(f)
	for _, line := range lines {
		rows = append(rows, row{h: h, draw: func(y float64) {
			e.c.SetFont(f)
			e.c.Text(x, y+f.Size*ptToMM*baselineRatio, line)
		}})
	}
	return rows
}

// centeredRows wraps s to the content width and centers each line.
func (e *Engine) centeredRows(s string, f config.Font) []row {
	lines := e.wrap(s, f, ContentWidth)
	rows := make([]row, 0, len(lines))
	h := e.lineHeight(f)
	for _, line := range lines {
		rows = append(rows, row{h: h, draw: func(y float64) {
			e.c.SetFont(f)
			x := (PageWidth - e.c.TextWidth(line)) / 2
			e.c.Text(max(x, Margin), y+f.Size*ptToMM*baselineRatio, line)
		}})
	}
	return rows
}

// ruleRows returns n ruled answer lines from x to the right margin.
func (e *Engine) ruleRows(n int, x float64) []row {
	h := answerLineSpacing * e.s.Typography.LineHeight
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{h: h, draw: func(y float64) {
			e.c.Line(x, y+h-1, PageWidth-Margin, y+h-1)
		}}
	}
	return rows
}

func spacer(h float64) row {
	return row{h: h, draw: func(float64) {}}
}

// wrap splits s into lines no wider than width. Explicit newlines and the
// spacing between words on a line are kept; words wider than a line, and
// text without spaces, break between runes.
func (e *Engine) wrap(s string, f config.Font, width float64) []string {
	e.c.SetFont(f)
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		para = strings.TrimRightFunc(para, unicode.IsSpace)
		if para == "" {
			out = append(out, "")
			continue
		}
		line := ""
		for _, w := range splitWords(para) {
			word := w.text
			candidate := word
			if line != "" {
				candidate = line + w.space + word
			}
			if e.c.TextWidth(candidate) <= width {
				line = candidate
				continue
			}
			if line != "" {
				out = append(out, line)
				line = ""
			}
			for e.c.TextWidth(word) > width {
				head, tail := e.splitRunes(word, width)
				out = append(out, head)
				word = tail
			}
			line = word
		}
		out = append(out, line)
	}
	return out
}

type spacedWord struct {
	space string // whitespace run before the word
	text  string
}

// splitWords splits s at whitespace, remembering each run of whitespace so
// that deliberate gaps survive when words share a line.
func splitWords(s string) []spacedWord {
	var words []spacedWord
	rest := s
	for {
		trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
		if trimmed == "" {
			return words
		}
		space := rest[:len(rest)-len(trimmed)]
		end := strings.IndexFunc(trimmed, unicode.IsSpace)
		if end < 0 {
			end = len(trimmed)
		}
		words = append(words, spacedWord{space: space, text: trimmed[:end]})
		rest = trimmed[end:]
	}
}

// splitRunes returns the longest prefix of word that fits width (at least one
// rune) and the remainder.
func (e *Engine) splitRunes(word string, width float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && e.c.TextWidth(string(runes[:n+1])) <= width {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

// RenderPaper draws the header and every section of the question paper.
func (e *Engine) RenderPaper(groups []section.Group) error {
	e.ensurePage()
	e.renderHeader()
	for _, g := range groups {
		e.renderSection(g)
	}
	return e.c.Err()
}

func (e *Engine) renderHeader() {
	h := e.s.Header
	if h.Enabled {
		var rows []row
		if strings.TrimSpace(h.SchoolName) != "" {
			rows = append(rows, e.centeredRows(h.SchoolName, e.s.Font(config.ElementSchoolName))...)
			rows = append(rows, spacer(2))
		}
		if strings.TrimSpace(h.Title) != "" {
			rows = append(rows, e.centeredRows(h.Title, config.Font{Size: titleSize, Bold: true})...)
		}
		if strings.TrimSpace(h.Subtitle) != "" {
			rows = append(rows, e.centeredRows(h.Subtitle, e.s.Font(config.ElementExamScope))...)
		}
		rows = append(rows, spacer(4))
		e.place(block{rows: rows})
	}

	si := e.s.StudentInfo
	if si.Enabled {
		var rows []row
		if len(si.Fields) > 0 {
			parts := make([]string, len(si.Fields))
			for i, f := range si.Fields {
				parts[i] = f + ": __________"
			}
			rows = append(rows, e.textRows(strings.Join(parts, "   "), e.s.Font(config.ElementStudentInfo), Margin, ContentWidth)...)
		}
		if si.ParentSignature {
			f := e.s.Font(config.ElementParentSignature)
			label := e.s.Labels.ParentSignature + ": ____________________"
			rows = append(rows, spacer(2), row{h: e.lineHeight(f), draw: func(y float64) {
				e.c.SetFont(f)
				x := PageWidth - Margin - e.c.TextWidth(label)
				e.c.Text(max(x, Margin), y+f.Size*ptToMM*baselineRatio, label)
			}})
		}
		if len(rows) > 0 {
			e.place(block{rows: rows})
		}
	}

	if h.Enabled || si.Enabled {
		e.place(block{rows: []row{{h: 6, draw: func(y float64) {
			e.c.Line(Margin, y+3, PageWidth-Margin, y+3)
		}}}})
	}
}

// SectionTitle returns the heading of a section, e.g. "A. Matching _____/10".
func SectionTitle(letter string, sec config.SectionSettings) string {
	title := letter + ". " + sec.Title
	if sec.Points > 0 {
		title += " _____/" + strconv.Itoa(sec.Points)
	}
	return title
}

func (e *Engine) renderSection(g section.Group) {
	sec := e.s.Section(g.Type)
	rows := e.textRows(SectionTitle(g.Letter, sec), e.s.Font(config.ElementSectionTitle), Margin, ContentWidth)
	if strings.TrimSpace(sec.Instruction) != "" {
		rows = append(rows, e.textRows(sec.Instruction, e.s.Font(config.ElementSectionInstruction), Margin, ContentWidth)...)
	}
	rows = append(rows, spacer(2))

	blocks := make([]block, len(g.Questions))
	for i, q := range g.Questions {
		blocks[i] = e.questionBlock(q, i+1)
	}
	heading := block{rows: rows}
	if len(blocks) > 0 {
		heading.reserve = keepWith(heading, blocks[0])
	}
	page, top := e.place(heading)
	e.placements = append(e.placements, Placement{
		Kind: "section", Section: g.Letter,
		Page: page, EndPage: e.cur.page, Top: top, Bottom: e.cur.y,
	})

	for i, q := range g.Questions {
		page, top := e.place(blocks[i])
		e.placements = append(e.placements, Placement{
			Kind: "question", Section: g.Letter, Number: i + 1, QuestionID: q.ID,
			Page: page, EndPage: e.cur.page, Top: top, Bottom: e.cur.y,
		})
		e.gap(questionGap)
	}
	e.gap(sectionGap - questionGap)
}
