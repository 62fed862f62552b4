// Package textexport renders the same sections as the PDF engine as
// Markdown or plain text. Numbering, option labels and blanks come from the
// same helpers, so both outputs agree with the PDF line for line.
package textexport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mitchellh/go-wordwrap"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/layout"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
	"github.com/pavelanni/exampaper/internal/section"
)

// TextWidth is the column plain text output is wrapped to.
const TextWidth = 80

const blankSlot = "______"

type style int

const (
	styleMarkdown style = iota
	styleText
)

type writer struct {
	b     strings.Builder
	style style
	s     config.Settings
}

// Markdown renders the document selected by s.Scope as Markdown.
func Markdown(groups []section.Group, s config.Settings) string {
	w := &writer{style: styleMarkdown, s: s}
	w.document(groups)
	return w.b.String()
}

// Text renders the document selected by s.Scope as plain text wrapped to
// TextWidth columns.
func Text(groups []section.Group, s config.Settings) string {
	w := &writer{style: styleText, s: s}
	w.document(groups)
	return w.b.String()
}

// PreviewHTML renders Markdown output as an HTML fragment.
func PreviewHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.ToHTML([]byte(md), p, r)
}

func (w *writer) document(groups []section.Group) {
	paper := w.s.Scope.IncludesPaper()
	if paper {
		w.header()
		for _, g := range groups {
			w.section(g)
		}
	}
	if w.s.Scope.IncludesAnswerSheet() && w.s.AnswerSheet.Enabled {
		if paper {
			w.rule()
		}
		w.answerSheet(groups)
	}
}

func (w *writer) line(s string) {
	if w.style == styleText && s != "" {
		s = wordwrap.WrapString(s, TextWidth)
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *writer) blank() { w.b.WriteByte('\n') }

func (w *writer) heading(level int, s string) {
	if w.style == styleMarkdown {
		w.line(strings.Repeat("#", level) + " " + s)
	} else {
		w.line(s)
		underline := "-"
		if level == 1 {
			underline = "="
		}
		w.line(strings.Repeat(underline, min(displayWidth(s), TextWidth)))
	}
	w.blank()
}

func (w *writer) rule() {
	if w.style == styleMarkdown {
		w.line("---")
	} else {
		w.line(strings.Repeat("-", TextWidth))
	}
	w.blank()
}

func (w *writer) bold(s string) string {
	if w.style == styleMarkdown && s != "" {
		return "**" + s + "**"
	}
	return s
}

func (w *writer) italic(s string) string {
	if w.style == styleMarkdown && s != "" {
		return "*" + s + "*"
	}
	return s
}

// item writes an indented line under a question.
func (w *writer) item(s string) {
	if w.style == styleText {
		w.line("   " + s)
		return
	}
	// A trailing double space keeps consecutive items on separate lines.
	w.line("   " + s + "  ")
}

func (w *writer) header() {
	h := w.s.Header
	if h.Enabled {
		if strings.TrimSpace(h.SchoolName) != "" {
			w.line(w.bold(h.SchoolName))
			w.blank()
		}
		w.heading(1, h.Title)
		if strings.TrimSpace(h.Subtitle) != "" {
			w.line(w.bold(h.Subtitle))
			w.blank()
		}
		w.metaLine(w.s.Labels.Time, h.Duration)
		w.metaLine(w.s.Labels.Total, h.TotalScore)
		w.blank()
	}
	si := w.s.StudentInfo
	if si.Enabled {
		if len(si.Fields) > 0 {
			parts := make([]string, len(si.Fields))
			for i, f := range si.Fields {
				parts[i] = f + ": __________"
			}
			w.line(strings.Join(parts, "   "))
			w.blank()
		}
		if si.ParentSignature {
			w.line(w.s.Labels.ParentSignature + ": ____________________")
			w.blank()
		}
	}
	if h.Enabled || si.Enabled {
		w.rule()
	}
}

func (w *writer) metaLine(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if w.style == styleMarkdown {
		w.line(w.bold(label+":") + " " + value + "  ")
		return
	}
	w.line(label + ": " + value)
}

func (w *writer) section(g section.Group) {
	sec := w.s.Section(g.Type)
	w.heading(2, layout.SectionTitle(g.Letter, sec))
	if strings.TrimSpace(sec.Instruction) != "" {
		w.line(w.italic(sec.Instruction))
		w.blank()
	}
	for i, q := range g.Questions {
		w.question(q, i+1)
	}
}

func (w *writer) question(q model.QuestionRecord, n int) {
	text := question.Prompt(q)
	if text == "" && q.Type != model.TypeImageQuestion {
		text = w.s.Labels.MissingContent
	}
	w.line(strings.TrimSpace(w.bold(strconv.Itoa(n)+".") + " " + text))
	w.blank()

	switch q.Type {
	case model.TypeSingleChoice:
		w.options(q.Options)
	case model.TypeCloze:
	case model.TypeShortAnswer:
		w.answerLines(3)
	case model.TypeTrueFalse:
		w.item(w.s.Labels.TrueFalse)
		w.blank()
	case model.TypeMatching:
		left, right := question.MatchingColumns(q)
		for i, l := range left {
			w.item(question.UpperLetter(i) + ". " + l)
		}
		w.blank()
		for i, r := range right {
			w.item(strconv.Itoa(i+1) + ". " + r)
		}
		w.blank()
		if len(left) > 0 {
			slots := make([]string, len(left))
			for i := range left {
				slots[i] = question.UpperLetter(i) + ". " + blankSlot
			}
			w.item(strings.Join(slots, "   "))
			w.blank()
		}
	case model.TypeSequence:
		for i, item := range question.SequenceItems(q) {
			w.item(blankSlot + " " + question.UpperLetter(i) + ". " + item)
		}
		w.blank()
	case model.TypeEnumeration:
		for i := range question.BlankCount(q) {
			w.item(strconv.Itoa(i+1) + ". ____________________")
		}
		w.blank()
	case model.TypeSymbolIdentification:
		w.image(q.QuestionImagePath)
		w.answerLines(1)
	case model.TypeImageQuestion:
		w.image(q.QuestionImagePath)
		w.answerLines(2)
	default:
		if len(q.Options) > 0 {
			w.options(q.Options)
		} else {
			w.answerLines(2)
		}
	}
}

func (w *writer) options(opts []string) {
	if len(opts) == 0 {
		return
	}
	for _, o := range opts {
		w.item(o)
	}
	w.blank()
}

func (w *writer) answerLines(n int) {
	if w.style == styleMarkdown {
		w.line(strings.Repeat("<br>", n+1))
		w.blank()
		return
	}
	for range n {
		w.item(strings.Repeat("_", 50))
	}
	w.blank()
}

func (w *writer) image(url string) {
	if strings.TrimSpace(url) == "" {
		return
	}
	name := imagecache.DisplayName(url)
	if w.style == styleMarkdown {
		w.line(fmt.Sprintf("![%s](%s)", name, url))
	} else {
		w.item("[" + name + "]")
	}
	w.blank()
}

func (w *writer) answerSheet(groups []section.Group) {
	as := w.s.AnswerSheet
	w.heading(1, as.Title)
	for _, g := range groups {
		w.heading(2, g.Letter+". "+w.s.Section(g.Type).Title)
		if as.Format == config.FormatTable && w.style == styleMarkdown {
			w.answerTable(g)
			continue
		}
		for i, q := range g.Questions {
			w.answerEntry(q, i+1)
		}
	}
}

func (w *writer) answerEntry(q model.QuestionRecord, n int) {
	as := w.s.AnswerSheet
	w.line(strings.TrimSpace(w.bold(strconv.Itoa(n)+".") + " " + w.answerValue(q)))
	if as.ShowQuestionText {
		if p := question.Prompt(q); p != "" {
			w.item(p)
		}
		if q.Type.IsChoice() {
			for _, o := range q.Options {
				w.item("   " + o)
			}
		}
	}
	if ex := w.explanation(q); ex != "" {
		w.item(w.italic(ex))
	}
	w.blank()
}

// answerTable writes one Markdown table row per question.
func (w *writer) answerTable(g section.Group) {
	as := w.s.AnswerSheet
	w.line("| " + w.s.Labels.Number + " | " + w.s.Labels.Answer + " |")
	w.line("|---|---|")
	for i, q := range g.Questions {
		var cell []string
		if as.ShowQuestionText {
			if p := question.Prompt(q); p != "" {
				cell = append(cell, p)
			}
		}
		cell = append(cell, w.answerValue(q))
		if ex := w.explanation(q); ex != "" {
			cell = append(cell, w.italic(ex))
		}
		w.line("| " + strconv.Itoa(i+1) + " | " + tableCell(strings.Join(cell, "<br>")) + " |")
	}
	w.blank()
}

func (w *writer) answerValue(q model.QuestionRecord) string {
	as := w.s.AnswerSheet
	ans := question.AnswerText(q)
	if q.Type == model.TypeImageQuestion && as.ShowAnswerImages && q.AnswerImagePath != "" {
		name := imagecache.DisplayName(q.AnswerImagePath)
		img := "[" + name + "]"
		if w.style == styleMarkdown {
			img = fmt.Sprintf("![%s](%s)", name, q.AnswerImagePath)
		}
		if ans == "" {
			return img
		}
		return img + " " + w.bold(ans)
	}
	if ans == "" {
		return "-"
	}
	return w.bold(ans)
}

func (w *writer) explanation(q model.QuestionRecord) string {
	if !w.s.AnswerSheet.ShowExplanations || !question.HasExplanation(q.Explanation) {
		return ""
	}
	label := w.s.Labels.Explanation
	if q.Type == model.TypeShortAnswer {
		label = w.s.Labels.Notes
	}
	return label + ": " + strings.TrimSpace(q.Explanation)
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

func displayWidth(s string) int {
	return len([]rune(s))
}
