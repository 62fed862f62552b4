package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
	"github.com/pavelanni/exampaper/internal/section"
)

type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func render(t *testing.T, cfg *config.ExportConfiguration, records []model.QuestionRecord, images *imagecache.Cache) (*Recorder, *Engine) {
	t.Helper()
	s := config.Resolve(cfg, nil)
	groups := section.Partition(records, s.SectionOrder, s.SectionEnabled)
	rec := &Recorder{}
	e := NewEngine(context.Background(), rec, s, images)
	if err := e.RenderPaper(groups); err != nil {
		t.Fatalf("RenderPaper: %v", err)
	}
	return rec, e
}

func questionPlacements(e *Engine) []Placement {
	var out []Placement
	for _, p := range e.Placements() {
		if p.Kind == "question" {
			out = append(out, p)
		}
	}
	return out
}

func containsText(rec *Recorder, s string) bool {
	return slices.ContainsFunc(rec.Texts(), func(t string) bool { return strings.Contains(t, s) })
}

func TestEmptyInputRendersHeaderOnly(t *testing.T) {
	rec, e := render(t, nil, nil, nil)
	if rec.Pages() != 1 {
		t.Errorf("pages = %d, want 1", rec.Pages())
	}
	if !containsText(rec, config.DefaultSchoolName) || !containsText(rec, config.DefaultExamTitle) {
		t.Errorf("header missing, texts = %q", rec.Texts())
	}
	if len(e.Placements()) != 0 {
		t.Errorf("placements = %+v", e.Placements())
	}
}

func TestHeaderDisabled(t *testing.T) {
	cfg := &config.ExportConfiguration{
		Header:      &config.HeaderConfig{Enabled: config.Bool(false)},
		StudentInfo: &config.StudentInfoConfig{Enabled: config.Bool(false)},
	}
	rec, _ := render(t, cfg, nil, nil)
	if len(rec.Texts()) != 0 {
		t.Errorf("expected no text, got %q", rec.Texts())
	}
}

func TestStudentInfoAndSignature(t *testing.T) {
	rec, _ := render(t, nil, nil, nil)
	for _, want := range []string{"Class: __________", "Name: __________", "Parent's Signature: "} {
		if !containsText(rec, want) {
			t.Errorf("missing %q in %q", want, rec.Texts())
		}
	}
}

func TestChoiceOptionsLabeledOnce(t *testing.T) {
	records := question.NormalizeAll([]question.Raw{
		{"type": "single_choice", "content": "Capital of France?", "options": []any{"A. Paris", "B. Rome"}},
		{"type": "single_choice", "content": "Color of the sky?", "options": []any{"Red", "Blue"}},
	})
	rec, _ := render(t, nil, records, nil)
	for _, want := range []string{"A. Paris", "B. Rome", "a. Red", "b. Blue"} {
		if !slices.Contains(rec.Texts(), want) {
			t.Errorf("missing option %q in %q", want, rec.Texts())
		}
	}
	for _, txt := range rec.Texts() {
		if strings.HasPrefix(txt, "a. A.") || strings.HasPrefix(txt, "b. B.") {
			t.Errorf("doubled label %q", txt)
		}
	}
}

func TestSectionTitles(t *testing.T) {
	records := []model.QuestionRecord{
		{ID: "1", Type: model.TypeTrueFalse, Content: "Water is wet."},
		{ID: "2", Type: model.TypeCloze, Content: "Fill ( )."},
	}
	rec, _ := render(t, nil, records, nil)
	if !slices.Contains(rec.Texts(), "A. Fill in the Blanks _____/26") {
		t.Errorf("cloze title missing: %q", rec.Texts())
	}
	if !slices.Contains(rec.Texts(), "B. True or False _____/10") {
		t.Errorf("true/false title missing: %q", rec.Texts())
	}
	if !slices.Contains(rec.Texts(), "Fill ________.") {
		t.Errorf("cloze blank not canonical: %q", rec.Texts())
	}
	if !slices.Contains(rec.Texts(), "T / F") {
		t.Errorf("true/false marker missing: %q", rec.Texts())
	}

	if got := SectionTitle("C", config.SectionSettings{Title: "Bonus"}); got != "C. Bonus" {
		t.Errorf("SectionTitle without points = %q", got)
	}
}

func TestMissingContentLabel(t *testing.T) {
	rec, _ := render(t, nil, []model.QuestionRecord{{ID: "1", Type: model.TypeShortAnswer}}, nil)
	if !slices.Contains(rec.Texts(), "Question content missing") {
		t.Errorf("texts = %q", rec.Texts())
	}
}

func TestMatchingColumnsAndSlots(t *testing.T) {
	records := []model.QuestionRecord{{
		ID: "1", Type: model.TypeMatching, Content: "Match the animals.",
		CorrectAnswer: model.Answer{Text: "Dog-Mammal, Eagle-Bird"},
	}}
	cfg := &config.ExportConfiguration{SectionOrder: []string{"matching"}}
	rec, _ := render(t, cfg, records, nil)
	for _, want := range []string{"A. Dog", "B. Eagle", "1. Bird", "2. Mammal", "A. ______   B. ______"} {
		if !slices.Contains(rec.Texts(), want) {
			t.Errorf("missing %q in %q", want, rec.Texts())
		}
	}
}

func TestSequenceItems(t *testing.T) {
	records := []model.QuestionRecord{{
		ID: "1", Type: model.TypeSequence, Content: "Order the stages.",
		QuestionData: &model.QuestionData{Items: []string{"sprout", "seed"}},
	}}
	rec, _ := render(t, nil, records, nil)
	for _, want := range []string{"______ A. sprout", "______ B. seed"} {
		if !slices.Contains(rec.Texts(), want) {
			t.Errorf("missing %q in %q", want, rec.Texts())
		}
	}
}

func TestShortAnswerRuledLines(t *testing.T) {
	records := []model.QuestionRecord{{ID: "1", Type: model.TypeShortAnswer, Content: "Why?"}}
	rec, e := render(t, nil, records, nil)
	p := questionPlacements(e)[0]
	lines := 0
	for _, op := range rec.Ops {
		if op.Kind == "line" && op.Y > p.Top && op.Y < p.Bottom {
			lines++
		}
	}
	if lines != shortAnswerLines {
		t.Errorf("ruled lines = %d, want %d", lines, shortAnswerLines)
	}
}

func TestLineHeightScalesSpacing(t *testing.T) {
	records := []model.QuestionRecord{
		{ID: "1", Type: model.TypeShortAnswer, Content: "One"},
		{ID: "2", Type: model.TypeShortAnswer, Content: "Two"},
	}
	height := func(lh float64) float64 {
		cfg := &config.ExportConfiguration{Typography: &config.TypographyConfig{LineHeight: config.Float(lh)}}
		_, e := render(t, cfg, records, nil)
		qs := questionPlacements(e)
		return qs[1].Bottom - qs[0].Top
	}
	if tight, loose := height(1.0), height(2.0); loose <= tight {
		t.Errorf("line height 2.0 span %.2f should exceed 1.0 span %.2f", loose, tight)
	}
}

func TestImagePlaceholderOnFailure(t *testing.T) {
	cache := imagecache.New(fetcherFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("offline")
	}))
	records := []model.QuestionRecord{{
		ID: "1", Type: model.TypeImageQuestion, Content: "Label the leaf.", QuestionImagePath: "images/leaf.png",
	}}
	rec, _ := render(t, nil, records, cache)

	var rect *Op
	for i, op := range rec.Ops {
		if op.Kind == "rect" {
			rect = &rec.Ops[i]
		}
	}
	if rect == nil || rect.W != imagecache.PlaceholderWidth || rect.H != imagecache.PlaceholderHeight {
		t.Fatalf("placeholder rect = %+v", rect)
	}
	if !slices.Contains(rec.Texts(), "[leaf.png]") {
		t.Errorf("placeholder label missing: %q", rec.Texts())
	}
}

func TestImageFittedToBox(t *testing.T) {
	data := pngOf(t, 800, 600)
	cache := imagecache.New(fetcherFunc(func(context.Context, string) ([]byte, error) {
		return data, nil
	}))
	records := []model.QuestionRecord{{ID: "1", Type: model.TypeImageQuestion, QuestionImagePath: "x.png"}}
	rec, _ := render(t, nil, records, cache)

	var img *Op
	for i, op := range rec.Ops {
		if op.Kind == "image" {
			img = &rec.Ops[i]
		}
	}
	if img == nil {
		t.Fatal("no image drawn")
	}
	maxW, maxH := config.ImageMedium.Box()
	wantW, wantH := imagecache.FitToBox(800, 600, maxW, maxH)
	if math.Abs(img.W-wantW) > 1e-9 || math.Abs(img.H-wantH) > 1e-9 {
		t.Errorf("image %vx%v, want %vx%v", img.W, img.H, wantW, wantH)
	}
	if containsText(rec, "Question content missing") {
		t.Error("image questions may omit content")
	}
}

// A question that fits on an empty page but not in the remaining space must
// start on the next page instead of being split.
func TestPageBreakBeforeOversizedQuestion(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	records := []model.QuestionRecord{
		{ID: "short", Type: model.TypeSingleChoice, Content: "Warm up", Options: []string{"a. yes", "b. no"}},
		{ID: "long", Type: model.TypeShortAnswer, Content: strings.Join(lines, "\n")},
	}
	_, e := render(t, nil, records, nil)
	qs := questionPlacements(e)
	if len(qs) != 2 {
		t.Fatalf("placements = %+v", qs)
	}
	long := qs[1]
	if long.Page != 2 || long.EndPage != 2 {
		t.Errorf("long question spans pages %d-%d, want 2-2", long.Page, long.EndPage)
	}
	if long.Top != Margin {
		t.Errorf("long question top = %v, want %v", long.Top, Margin)
	}
}

func TestNoQuestionSplitAcrossPages(t *testing.T) {
	var records []model.QuestionRecord
	for i := range 40 {
		records = append(records, model.QuestionRecord{
			ID: fmt.Sprint(i), Type: model.TypeShortAnswer, Content: fmt.Sprintf("Explain point %d in detail.", i),
		})
	}
	rec, e := render(t, nil, records, nil)
	if rec.Pages() < 3 {
		t.Fatalf("pages = %d, expected several", rec.Pages())
	}
	for _, p := range questionPlacements(e) {
		if p.Page != p.EndPage {
			t.Errorf("question %s split across pages %d-%d", p.QuestionID, p.Page, p.EndPage)
		}
		if p.Bottom > PageHeight-Margin+1e-9 {
			t.Errorf("question %s overruns the bottom margin: %v", p.QuestionID, p.Bottom)
		}
	}
	for _, op := range rec.Ops {
		if op.Kind == "text" && op.Y > PageHeight-Margin {
			t.Errorf("text %q below bottom margin at %v", op.Text, op.Y)
		}
	}
}

func TestTallQuestionBreaksBetweenRows(t *testing.T) {
	lines := make([]string, 90)
	for i := range lines {
		lines[i] = "x"
	}
	records := []model.QuestionRecord{{ID: "huge", Type: model.TypeShortAnswer, Content: strings.Join(lines, "\n")}}
	_, e := render(t, nil, records, nil)
	p := questionPlacements(e)[0]
	if p.EndPage <= p.Page {
		t.Errorf("huge question should continue across pages, got %d-%d", p.Page, p.EndPage)
	}
}

func TestNumberingRestartsPerSection(t *testing.T) {
	records := []model.QuestionRecord{
		{ID: "c1", Type: model.TypeCloze, Content: "a ___"},
		{ID: "s1", Type: model.TypeSingleChoice, Content: "pick", Options: []string{"a. x"}},
		{ID: "c2", Type: model.TypeCloze, Content: "b ___"},
	}
	_, e := render(t, nil, records, nil)
	var got []string
	for _, p := range questionPlacements(e) {
		got = append(got, fmt.Sprintf("%s%d:%s", p.Section, p.Number, p.QuestionID))
	}
	want := []string{"A1:s1", "B1:c1", "B2:c2"}
	if !slices.Equal(got, want) {
		t.Errorf("numbering = %v, want %v", got, want)
	}
}

func answerSheet(t *testing.T, cfg *config.ExportConfiguration, records []model.QuestionRecord) (*Recorder, *Engine) {
	t.Helper()
	s := config.Resolve(cfg, nil)
	groups := section.Partition(records, s.SectionOrder, s.SectionEnabled)
	rec := &Recorder{}
	e := NewEngine(context.Background(), rec, s, nil)
	if err := e.RenderAnswerSheet(groups); err != nil {
		t.Fatalf("RenderAnswerSheet: %v", err)
	}
	return rec, e
}

func TestAnswerSheetTable(t *testing.T) {
	records := []model.QuestionRecord{
		{ID: "1", Type: model.TypeSingleChoice, Content: "Q1", Options: []string{"A. x", "B. y"}, CorrectAnswer: model.Answer{Text: "B"}},
		{ID: "2", Type: model.TypeSingleChoice, Content: "Q2", Options: []string{"a. p", "b. q"}, CorrectAnswer: model.Answer{Text: "a"}},
		{ID: "3", Type: model.TypeCloze, Content: "Q3 [ ]", CorrectAnswer: model.Answer{Text: "it"}, Explanation: "n/a"},
	}
	rec, e := answerSheet(t, nil, records)

	var ids []string
	for _, p := range e.Placements() {
		if p.Kind == "answer" {
			ids = append(ids, p.QuestionID)
		}
	}
	if !slices.Equal(ids, []string{"1", "2", "3"}) {
		t.Errorf("answer entries = %v", ids)
	}
	for _, want := range []string{"Answer Key", "No.", "Answer", "B. y", "a. p", "it"} {
		if !slices.Contains(rec.Texts(), want) {
			t.Errorf("missing %q in %q", want, rec.Texts())
		}
	}
	if containsText(rec, "Explanation") {
		t.Error("degenerate explanation should be hidden")
	}
	if containsText(rec, "Q1") {
		t.Error("question text shown although showQuestionText is off")
	}
}

func TestAnswerSheetListNotes(t *testing.T) {
	cfg := &config.ExportConfiguration{AnswerSheet: &config.AnswerSheetConfig{
		Format: config.String("list"), ShowQuestionText: config.Bool(true),
	}}
	records := []model.QuestionRecord{
		{ID: "1", Type: model.TypeShortAnswer, Content: "Why is the sky blue?", CorrectAnswer: model.Answer{Text: "Scattering"}, Explanation: "Rayleigh."},
		{ID: "2", Type: model.TypeTrueFalse, Content: "Ice floats.", CorrectAnswer: model.Answer{Text: "T"}, Explanation: "Density."},
	}
	rec, _ := answerSheet(t, cfg, records)
	for _, want := range []string{"Why is the sky blue?", "Scattering", "Notes: Rayleigh.", "Explanation: Density."} {
		if !slices.Contains(rec.Texts(), want) {
			t.Errorf("missing %q in %q", want, rec.Texts())
		}
	}
	for _, op := range rec.Ops {
		if op.Kind == "text" && op.Text == "Scattering" && !op.Font.Bold {
			t.Error("answer should be bold")
		}
		if op.Kind == "text" && strings.HasPrefix(op.Text, "Notes:") && !op.Font.Italic {
			t.Error("explanation should be italic")
		}
	}
}

func TestAnswerSheetGridFillsCorrectBubble(t *testing.T) {
	cfg := &config.ExportConfiguration{AnswerSheet: &config.AnswerSheetConfig{Format: config.String("grid")}}
	records := []model.QuestionRecord{{
		ID: "1", Type: model.TypeSingleChoice, Content: "Q", Options: []string{"a. x", "b. y", "c. z"}, CorrectAnswer: model.Answer{Text: "c"},
	}}
	rec, _ := answerSheet(t, cfg, records)
	var fills []bool
	for _, op := range rec.Ops {
		if op.Kind == "circle" {
			fills = append(fills, op.Fill)
		}
	}
	if !slices.Equal(fills, []bool{false, false, true}) {
		t.Errorf("bubble fills = %v", fills)
	}
}

func TestAnswerSheetImageFallback(t *testing.T) {
	cache := imagecache.New(fetcherFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("gone")
	}))
	records := []model.QuestionRecord{{ID: "1", Type: model.TypeImageQuestion, AnswerImagePath: "answers/leaf_ans.png"}}
	s := config.Resolve(&config.ExportConfiguration{AnswerSheet: &config.AnswerSheetConfig{Format: config.String("list")}}, nil)
	rec := &Recorder{}
	e := NewEngine(context.Background(), rec, s, cache)
	if err := e.RenderAnswerSheet(section.Partition(records, s.SectionOrder, nil)); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(rec.Texts(), "[leaf_ans.png]") {
		t.Errorf("texts = %q", rec.Texts())
	}
}

func TestAnswerSheetAfterPaperStartsNewPage(t *testing.T) {
	s := config.Resolve(nil, nil)
	records := []model.QuestionRecord{{ID: "1", Type: model.TypeCloze, Content: "x ___", CorrectAnswer: model.Answer{Text: "y"}}}
	groups := section.Partition(records, s.SectionOrder, nil)
	rec := &Recorder{}
	e := NewEngine(context.Background(), rec, s, nil)
	if err := e.RenderPaper(groups); err != nil {
		t.Fatal(err)
	}
	if err := e.RenderAnswerSheet(groups); err != nil {
		t.Fatal(err)
	}
	if rec.Pages() != 2 {
		t.Errorf("pages = %d, want 2", rec.Pages())
	}
}

func TestWrap(t *testing.T) {
	e := NewEngine(context.Background(), &Recorder{}, config.Resolve(nil, nil), nil)
	f := config.Font{Size: 10}
	charW := 10 * ptToMM * 0.5

	lines := e.wrap("one two three four", f, charW*9+0.01)
	if !slices.Equal(lines, []string{"one two", "three", "four"}) {
		t.Errorf("wrap = %q", lines)
	}
	lines = e.wrap("abcdefghij", f, charW*4+0.01)
	if !slices.Equal(lines, []string{"abcd", "efgh", "ij"}) {
		t.Errorf("long word wrap = %q", lines)
	}
	lines = e.wrap("first\n\nthird", f, 100)
	if !slices.Equal(lines, []string{"first", "", "third"}) {
		t.Errorf("newline wrap = %q", lines)
	}
}

func TestWrapKeepsSpacing(t *testing.T) {
	e := NewEngine(context.Background(), &Recorder{}, config.Resolve(nil, nil), nil)
	f := config.Font{Size: 10}
	tests := []struct {
		in    string
		width float64
		want  []string
	}{
		{"A. ______   B. ______", 200, []string{"A. ______   B. ______"}},
		{"Class: ____   Number: ____", 200, []string{"Class: ____   Number: ____"}},
		{"one   two", 8, []string{"one", "two"}},
	}
	for _, tt := range tests {
		if got := e.wrap(tt.in, f, tt.width); !slices.Equal(got, tt.want) {
			t.Errorf("wrap(%q, %v) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestStudentInfoKeepsGaps(t *testing.T) {
	rec, _ := render(t, nil, nil, nil)
	if !containsText(rec, "Class: __________   Number: __________") {
		t.Errorf("student info gaps lost in %q", rec.Texts())
	}
}

// pageFillers returns n cloze questions followed by one short answer, so the
// second section heading lands at varying heights.
func pageFillers(n int) []model.QuestionRecord {
	records := make([]model.QuestionRecord, 0, n+1)
	for i := range n {
		records = append(records, model.QuestionRecord{
			ID: fmt.Sprintf("c%d", i), Type: model.TypeCloze, Content: "The sky is ___ and grass is ___.",
			CorrectAnswer: model.Answer{Text: "blue, green"},
		})
	}
	return append(records, model.QuestionRecord{
		ID: "s", Type: model.TypeShortAnswer,
		Content:       "Explain why leaves change colour in autumn.\nUse two examples.\nName the pigments involved.",
		CorrectAnswer: model.Answer{Text: "Chlorophyll breaks down and reveals carotenoids."},
	})
}

func assertHeadingsKeptWithFirst(t *testing.T, placements []Placement, kind string) {
	t.Helper()
	for i, p := range placements {
		if p.Kind != "section" {
			continue
		}
		for _, next := range placements[i+1:] {
			if next.Kind == "section" {
				break
			}
			if next.Kind == kind {
				if next.Page != p.EndPage {
					t.Errorf("section %s heading on page %d, first %s on page %d", p.Section, p.EndPage, kind, next.Page)
				}
				break
			}
		}
	}
}

func TestHeadingStaysWithFirstQuestion(t *testing.T) {
	cfg := &config.ExportConfiguration{SectionOrder: []string{"cloze", "short_answer"}}
	for n := 5; n <= 45; n++ {
		_, e := render(t, cfg, pageFillers(n), nil)
		assertHeadingsKeptWithFirst(t, e.Placements(), "question")
	}
}

func TestAnswerHeadingStaysWithFirstEntry(t *testing.T) {
	for _, format := range []string{"list", "table", "grid"} {
		cfg := &config.ExportConfiguration{
			SectionOrder: []string{"cloze", "short_answer"},
			AnswerSheet:  &config.AnswerSheetConfig{Format: config.String(format)},
		}
		for n := 5; n <= 80; n++ {
			_, e := answerSheet(t, cfg, pageFillers(n))
			assertHeadingsKeptWithFirst(t, e.Placements(), "answer")
		}
	}
}

func TestAnswerSheetGridUsesOptionLabels(t *testing.T) {
	cfg := &config.ExportConfiguration{AnswerSheet: &config.AnswerSheetConfig{Format: config.String("grid")}}
	tests := []struct {
		options []string
		want    []string
	}{
		{[]string{"a. x", "b. y", "c. z"}, []string{"a", "b", "c"}},
		{[]string{"A. x", "B. y"}, []string{"A", "B"}},
		{[]string{"x", "y"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		records := []model.QuestionRecord{{
			ID: "1", Type: model.TypeSingleChoice, Content: "Q", Options: tt.options, CorrectAnswer: model.Answer{Text: "a"},
		}}
		rec, _ := answerSheet(t, cfg, records)
		for _, label := range tt.want {
			if !slices.Contains(rec.Texts(), label) {
				t.Errorf("options %q: missing bubble label %q in %q", tt.options, label, rec.Texts())
			}
		}
	}
}
