package layout

import (
	"strconv"
	"strings"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
	"github.com/pavelanni/exampaper/internal/section"
)

const (
	numberColumn = 16.0
	cellPad      = 2.0
	bubbleRadius = 2.2
	bubbleStep   = 10.0
	emptyAnswer  = "-"
)

// RenderAnswerSheet draws the answer key for groups. When the engine has
// already drawn pages, the sheet starts on a new one.
func (e *Engine) RenderAnswerSheet(groups []section.Group) error {
	if e.cur.page > 0 {
		e.newPage()
	} else {
		e.ensurePage()
	}
	as := e.s.AnswerSheet
	rows := e.centeredRows(as.Title, config.Font{Size: titleSize, Bold: true})
	rows = append(rows, spacer(4))
	e.place(block{rows: rows})

	for _, g := range groups {
		title := g.Letter + ". " + e.s.Section(g.Type).Title
		rows := e.textRows(title, e.s.Font(config.ElementSectionTitle), Margin, ContentWidth)
		rows = append(rows, spacer(2))
		if as.Format == config.FormatTable {
			rows = append(rows, e.tableHeaderRow())
		}
		entries := make([]block, len(g.Questions))
		for i, q := range g.Questions {
			entries[i] = e.answerEntry(q, i+1)
		}
		heading := block{rows: rows}
		if len(entries) > 0 {
			heading.reserve = keepWith(heading, entries[0])
		}
		page, top := e.place(heading)
		e.placements = append(e.placements, Placement{
			Kind: "section", Section: g.Letter,
			Page: page, EndPage: e.cur.page, Top: top, Bottom: e.cur.y,
		})

		for i, q := range g.Questions {
			page, top := e.place(entries[i])
			e.placements = append(e.placements, Placement{
				Kind: "answer", Section: g.Letter, Number: i + 1, QuestionID: q.ID,
				Page: page, EndPage: e.cur.page, Top: top, Bottom: e.cur.y,
			})
			if as.Format != config.FormatTable {
				e.gap(questionGap / 2)
			}
		}
		e.gap(sectionGap)
	}
	return e.c.Err()
}

func (e *Engine) answerEntry(q model.QuestionRecord, n int) block {
	switch e.s.AnswerSheet.Format {
	case config.FormatTable:
		return e.tableEntry(q, n)
	case config.FormatGrid:
		return e.gridEntry(q, n)
	}
	return e.listEntry(q, n)
}

// entryRows is the body of one answer entry: optional question text and
// options, the answer in bold (or the answer image), and the explanation.
func (e *Engine) entryRows(q model.QuestionRecord, x, width float64) (rows []row, hasImage bool) {
	as := e.s.AnswerSheet
	body := e.s.BodyFont()
	if as.ShowQuestionText {
		if p := question.Prompt(q); p != "" {
			rows = append(rows, e.textRows(p, body, x, width)...)
		}
		if q.Type.IsChoice() {
			for _, opt := range q.Options {
				rows = append(rows, e.textRows(opt, body, x+indent, width-indent)...)
			}
		}
	}

	bold := config.Font{Size: body.Size, Bold: true}
	if q.Type == model.TypeImageQuestion && as.ShowAnswerImages && q.AnswerImagePath != "" {
		maxW, maxH := e.s.Typography.ImageSize.Box()
		maxW = min(maxW, width)
		if img := e.images.Get(e.ctx, q.AnswerImagePath); img != nil {
			rows = append(rows, e.fittedImageRows(q.AnswerImagePath, x, maxW, maxH)...)
			hasImage = true
		} else {
			rows = append(rows, e.textRows("["+imagecache.DisplayName(q.AnswerImagePath)+"]", bold, x, width)...)
		}
		if ans := question.AnswerText(q); ans != "" {
			rows = append(rows, e.textRows(ans, bold, x, width)...)
		}
	} else {
		ans := question.AnswerText(q)
		if ans == "" {
			ans = emptyAnswer
		}
		rows = append(rows, e.textRows(ans, bold, x, width)...)
	}

	if as.ShowExplanations && question.HasExplanation(q.Explanation) {
		label := e.s.Labels.Explanation
		if q.Type == model.TypeShortAnswer {
			label = e.s.Labels.Notes
		}
		italic := config.Font{Size: body.Size * 0.9, Italic: true}
		rows = append(rows, e.textRows(label+": "+strings.TrimSpace(q.Explanation), italic, x, width)...)
	}
	return rows, hasImage
}

func (e *Engine) listEntry(q model.QuestionRecord, n int) block {
	rows, hasImage := e.entryRows(q, Margin+indent, ContentWidth-indent)
	f := e.s.BodyFont()
	num := strconv.Itoa(n) + "."
	draw := rows[0].draw
	rows[0].draw = func(y float64) {
		e.c.SetFont(f)
		e.c.Text(Margin, y+f.Size*ptToMM*baselineRatio, num)
		draw(y)
	}
	b := block{rows: rows}
	if hasImage {
		b.reserve = imageHeadroom
	}
	return b
}

func (e *Engine) tableHeaderRow() row {
	f := config.Font{Size: e.s.BodyFont().Size, Bold: true}
	h := e.lineHeight(f) + 2*cellPad
	label := e.s.Labels.Number
	answer := e.s.Labels.Answer
	return row{h: h, draw: func(y float64) {
		e.c.Rect(Margin, y, numberColumn, h, false)
		e.c.Rect(Margin+numberColumn, y, ContentWidth-numberColumn, h, false)
		e.c.SetFont(f)
		base := y + cellPad + f.Size*ptToMM*baselineRatio
		e.c.Text(Margin+cellPad, base, label)
		e.c.Text(Margin+numberColumn+cellPad, base, answer)
	}}
}

// tableEntry is one bordered table row. Borders are drawn per row so an
// entry taller than a page still closes its cells on every page.
func (e *Engine) tableEntry(q model.QuestionRecord, n int) block {
	x := Margin + numberColumn + cellPad
	inner, hasImage := e.entryRows(q, x, ContentWidth-numberColumn-2*cellPad)
	f := e.s.BodyFont()
	num := strconv.Itoa(n)

	rows := make([]row, 0, len(inner)+2)
	rows = append(rows, spacer(cellPad))
	rows = append(rows, inner...)
	rows = append(rows, spacer(cellPad))
	last := len(rows) - 1
	for i := range rows {
		r := rows[i]
		first := i == 0
		closing := i == last
		rows[i] = row{h: r.h, draw: func(y float64) {
			left, mid, right := Margin, Margin+numberColumn, PageWidth-Margin
			e.c.Line(left, y, left, y+r.h)
			e.c.Line(mid, y, mid, y+r.h)
			e.c.Line(right, y, right, y+r.h)
			if closing {
				e.c.Line(left, y+r.h, right, y+r.h)
			}
			if first {
				e.c.Line(left, y, right, y)
				e.c.SetFont(f)
				e.c.Text(Margin+cellPad, y+cellPad+f.Size*ptToMM*baselineRatio, num)
			}
			r.draw(y)
		}}
	}
	b := block{rows: rows}
	if hasImage {
		b.reserve = imageHeadroom
	}
	return b
}

// gridEntry draws a bubble per option with the correct one filled. Questions
// without options fall back to the list layout.
func (e *Engine) gridEntry(q model.QuestionRecord, n int) block {
	idx := question.AnswerIndex(q.Options, q.CorrectAnswer.String())
	if !q.Type.IsChoice() || len(q.Options) == 0 || idx < 0 {
		return e.listEntry(q, n)
	}
	f := e.s.BodyFont()
	h := max(e.lineHeight(f), 2*bubbleRadius+2)
	num := strconv.Itoa(n) + "."
	avail := ContentWidth - indent
	perRow := max(int(avail/bubbleStep), 1)

	var rows []row
	for start := 0; start < len(q.Options); start += perRow {
		end := min(start+perRow, len(q.Options))
		rows = append(rows, row{h: h, draw: func(y float64) {
			e.c.SetFont(f)
			mid := y + h/2
			if start == 0 {
				e.c.Text(Margin, mid+f.Size*ptToMM/3, num)
			}
			for i := start; i < end; i++ {
				cx := Margin + indent + float64(i-start)*bubbleStep + bubbleRadius
				e.c.Circle(cx, mid, bubbleRadius, i == idx)
				e.c.Text(cx+bubbleRadius+1, mid+f.Size*ptToMM/3, question.OptionLetter(q.Options, i))
			}
		}})
	}
	if e.s.AnswerSheet.ShowExplanations && question.HasExplanation(q.Explanation) {
		italic := config.Font{Size: f.Size * 0.9, Italic: true}
		rows = append(rows, e.textRows(e.s.Labels.Explanation+": "+strings.TrimSpace(q.Explanation), italic, Margin+indent, ContentWidth-indent)...)
	}
	return block{rows: rows}
}
