package layout

import (
	"strconv"
	"strings"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
)

const (
	blankSlot    = "______"
	imageGap     = 2.0
	columnGutter = 4.0
)

// questionBlock builds the rows of one question numbered n.
func (e *Engine) questionBlock(q model.QuestionRecord, n int) block {
	b := block{rows: e.promptRows(q, n)}
	body := e.s.BodyFont()
	x := Margin + indent
	width := ContentWidth - indent

	switch q.Type {
	case model.TypeSingleChoice:
		b.rows = append(b.rows, e.optionRows(q.Options)...)
	case model.TypeCloze:
		// The canonical blank in the prompt is the answer slot.
	case model.TypeShortAnswer:
		b.rows = append(b.rows, e.ruleRows(shortAnswerLines, x)...)
	case model.TypeTrueFalse:
		b.rows = append(b.rows, e.textRows(e.s.Labels.TrueFalse, body, x, width)...)
	case model.TypeMatching:
		b.rows = append(b.rows, e.matchingRows(q)...)
	case model.TypeSequence:
		for i, item := range question.SequenceItems(q) {
			line := blankSlot + " " + question.UpperLetter(i) + ". " + item
			b.rows = append(b.rows, e.textRows(line, body, x, width)...)
		}
	case model.TypeEnumeration:
		for i := range question.BlankCount(q) {
			b.rows = append(b.rows, e.numberedRuleRow(strconv.Itoa(i+1)+".", x))
		}
	case model.TypeSymbolIdentification:
		if q.QuestionImagePath != "" {
			b.rows = append(b.rows, e.imageRows(q.QuestionImagePath, x)...)
			b.reserve = imageHeadroom
		}
		b.rows = append(b.rows, e.ruleRows(1, x)...)
	case model.TypeImageQuestion:
		b.rows = append(b.rows, e.imageRows(q.QuestionImagePath, x)...)
		b.rows = append(b.rows, e.ruleRows(2, x)...)
		b.reserve = imageHeadroom
	default:
		if len(q.Options) > 0 {
			b.rows = append(b.rows, e.optionRows(q.Options)...)
		} else {
			b.rows = append(b.rows, e.ruleRows(2, x)...)
		}
	}
	return b
}

// promptRows renders "n. prompt" with the number hanging in the margin column.
func (e *Engine) promptRows(q model.QuestionRecord, n int) []row {
	f := e.s.Font(config.ElementQuestionContent)
	text := question.Prompt(q)
	if text == "" && q.Type != model.TypeImageQuestion {
		text = e.s.Labels.MissingContent
	}
	num := strconv.Itoa(n) + "."
	if text == "" {
		return e.textRows(num, f, Margin, ContentWidth)
	}
	rows := e.textRows(text, f, Margin+indent, ContentWidth-indent)
	draw := rows[0].draw
	rows[0].draw = func(y float64) {
		e.c.SetFont(f)
		e.c.Text(Margin, y+f.Size*ptToMM*baselineRatio, num)
		draw(y)
	}
	return rows
}

func (e *Engine) optionRows(options []string) []row {
	var rows []row
	for _, opt := range options {
		rows = append(rows, e.textRows(opt, e.s.BodyFont(), Margin+2*indent, ContentWidth-2*indent)...)
	}
	return rows
}

// matchingRows draws the left column lettered A, B, C and the right column
// numbered 1, 2, 3 side by side, then one answer slot per left item.
func (e *Engine) matchingRows(q model.QuestionRecord) []row {
	left, right := question.MatchingColumns(q)
	f := e.s.BodyFont()
	colW := (ContentWidth-indent)/2 - columnGutter
	leftX := Margin + indent
	rightX := leftX + colW + 2*columnGutter
	lh := e.lineHeight(f)

	var rows []row
	for i := range max(len(left), len(right)) {
		var l, r []string
		if i < len(left) {
			l = e.wrap(question.UpperLetter(i)+". "+left[i], f, colW)
		}
		if i < len(right) {
			r = e.wrap(strconv.Itoa(i+1)+". "+right[i], f, colW)
		}
		for j := range max(len(l), len(r)) {
			var ls, rs string
			if j < len(l) {
				ls = l[j]
			}
			if j < len(r) {
				rs = r[j]
			}
			rows = append(rows, row{h: lh, draw: func(y float64) {
				e.c.SetFont(f)
				base := y + f.Size*ptToMM*baselineRatio
				if ls != "" {
					e.c.Text(leftX, base, ls)
				}
				if rs != "" {
					e.c.Text(rightX, base, rs)
				}
			}})
		}
	}
	if len(left) > 0 {
		slots := make([]string, len(left))
		for i := range left {
			slots[i] = question.UpperLetter(i) + ". " + blankSlot
		}
		rows = append(rows, spacer(lh/2))
		rows = append(rows, e.textRows(strings.Join(slots, "   "), f, leftX, ContentWidth-indent)...)
	}
	return rows
}

// numberedRuleRow is a ruled answer line preceded by a label such as "1.".
func (e *Engine) numberedRuleRow(label string, x float64) row {
	f := e.s.BodyFont()
	h := answerLineSpacing * e.s.Typography.LineHeight
	return row{h: h, draw: func(y float64) {
		e.c.SetFont(f)
		e.c.Text(x, y+h-1.5, label)
		lx := x + e.c.TextWidth(label) + 2
		e.c.Line(lx, y+h-1, PageWidth-Margin, y+h-1)
	}}
}

// imageRows draws the image at url fitted to the configured size class, or a
// bordered placeholder naming the image when it cannot be resolved.
func (e *Engine) imageRows(url string, x float64) []row {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	maxW, maxH := e.s.Typography.ImageSize.Box()
	return e.fittedImageRows(url, x, maxW, maxH)
}

func (e *Engine) fittedImageRows(url string, x, maxW, maxH float64) []row {
	img := e.images.Get(e.ctx, url)
	if img == nil {
		return []row{e.placeholderRow(url, x)}
	}
	w, h := imagecache.FitToBox(float64(img.Width), float64(img.Height), maxW, maxH)
	return []row{{h: h + 2*imageGap, draw: func(y float64) {
		e.c.Image(img, x, y+imageGap, w, h)
	}}}
}

func (e *Engine) placeholderRow(url string, x float64) row {
	label := "[" + imagecache.DisplayName(url) + "]"
	f := e.s.BodyFont()
	return row{h: imagecache.PlaceholderHeight + 2*imageGap, draw: func(y float64) {
		top := y + imageGap
		e.c.Rect(x, top, imagecache.PlaceholderWidth, imagecache.PlaceholderHeight, false)
		e.c.SetFont(f)
		tx := x + (imagecache.PlaceholderWidth-e.c.TextWidth(label))/2
		e.c.Text(max(tx, x+1), top+imagecache.PlaceholderHeight/2+f.Size*ptToMM/3, label)
	}}
}
