package textexport

import (
	"strings"
	"testing"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
	"github.com/pavelanni/exampaper/internal/section"
)

func sampleRecords() []model.QuestionRecord {
	return []model.QuestionRecord{
		{ID: "c1", Type: model.TypeCloze, Content: "The capital of France is ____.", CorrectAnswer: model.Answer{Text: "Paris"}},
		{ID: "s1", Type: model.TypeSingleChoice, Content: "Pick one", Options: question.LabelOptions([]string{"red", "blue"}),
			CorrectAnswer: model.Answer{Text: "b"}, Explanation: "Blue is right"},
		{ID: "q1", Type: model.TypeShortAnswer, Content: "Why is the sky blue?", Explanation: "Scattering"},
		{ID: "s2", Type: model.TypeSingleChoice, Content: "Pick again", Options: question.LabelOptions([]string{"x", "y"}),
			CorrectAnswer: model.Answer{Text: "a"}, Explanation: "N/A"},
	}
}

func build(t *testing.T, cfg *config.ExportConfiguration) ([]section.Group, config.Settings) {
	t.Helper()
	s := config.Resolve(cfg, nil)
	return section.Partition(sampleRecords(), s.SectionOrder, s.SectionEnabled), s
}

func TestMarkdownPaper(t *testing.T) {
	groups, s := build(t, nil)
	md := Markdown(groups, s)

	wants := []string{
		"**" + config.DefaultSchoolName + "**",
		"# " + config.DefaultExamTitle,
		"**Time:** " + config.DefaultDuration,
		"Class: __________",
		"Parent's Signature: ____________________",
		"## A. Multiple Choice _____/10",
		"*Write the correct answer in the blank before each number. (1 pt each)*",
		"**1.** Pick one",
		"   a. red  ",
		"**2.** Pick again",
		"## B. Fill in the Blanks _____/26",
		"**1.** The capital of France is " + question.CanonicalBlank + ".",
		"## C. Questions and Answers",
		"<br><br><br><br>",
	}
	for _, w := range wants {
		if !strings.Contains(md, w) {
			t.Errorf("markdown missing %q\n%s", w, md)
		}
	}
	if strings.Index(md, "## A.") > strings.Index(md, "## B.") {
		t.Error("sections out of order")
	}
}

func TestMarkdownAnswerKey(t *testing.T) {
	cfg := &config.ExportConfiguration{AnswerSheet: &config.AnswerSheetConfig{Format: config.String("list")}}
	groups, s := build(t, cfg)
	md := Markdown(groups, s)

	key := md[strings.Index(md, "# Answer Key"):]
	wants := []string{
		"**1.** **b. blue**",
		"*Explanation: Blue is right*",
		"**1.** **Paris**",
		"**1.** -",
		"*Notes: Scattering*",
	}
	for _, w := range wants {
		if !strings.Contains(key, w) {
			t.Errorf("answer key missing %q\n%s", w, key)
		}
	}
	if strings.Contains(key, "N/A") {
		t.Error("degenerate explanation should be dropped")
	}
}

func TestMarkdownAnswerTable(t *testing.T) {
	groups, s := build(t, nil)
	md := Markdown(groups, s)
	if !strings.Contains(md, "| No. | Answer |") {
		t.Errorf("table header missing\n%s", md)
	}
	if !strings.Contains(md, "| 1 | **b. blue**<br>*Explanation: Blue is right* |") {
		t.Errorf("table row missing\n%s", md)
	}
}

func TestScope(t *testing.T) {
	tests := []struct {
		name      string
		opts      *config.ExportOptions
		wantPaper bool
		wantKey   bool
	}{
		{"complete", nil, true, true},
		{"questions only", &config.ExportOptions{QuestionsOnly: config.Bool(true)}, true, false},
		{"answer sheet only", &config.ExportOptions{AnswerSheetOnly: config.Bool(true)}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, s := build(t, &config.ExportConfiguration{ExportOptions: tt.opts})
			md := Markdown(groups, s)
			if got := strings.Contains(md, "Pick one"); got != tt.wantPaper {
				t.Errorf("paper present = %v, want %v", got, tt.wantPaper)
			}
			if got := strings.Contains(md, "# Answer Key"); got != tt.wantKey {
				t.Errorf("answer key present = %v, want %v", got, tt.wantKey)
			}
		})
	}
}

func TestExplanationsHidden(t *testing.T) {
	cfg := &config.ExportConfiguration{AnswerSheet: &config.AnswerSheetConfig{ShowExplanations: config.Bool(false)}}
	groups, s := build(t, cfg)
	if md := Markdown(groups, s); strings.Contains(md, "Blue is right") {
		t.Error("explanation rendered while disabled")
	}
}

func TestTextHasNoMarkup(t *testing.T) {
	long := strings.Repeat("word ", 40)
	records := []model.QuestionRecord{
		{ID: "1", Type: model.TypeShortAnswer, Content: long},
		{ID: "2", Type: model.TypeTrueFalse, Content: "Water is wet."},
	}
	s := config.Resolve(nil, nil)
	txt := Text(section.Partition(records, s.SectionOrder, s.SectionEnabled), s)

	for _, bad := range []string{"**", "<br>", "## "} {
		if strings.Contains(txt, bad) {
			t.Errorf("plain text contains markup %q", bad)
		}
	}
	for _, line := range strings.Split(txt, "\n") {
		if len([]rune(line)) > TextWidth {
			t.Errorf("line exceeds %d columns: %q", TextWidth, line)
		}
	}
	if !strings.Contains(txt, "T / F") {
		t.Error("true/false marker missing")
	}
	if !strings.Contains(txt, "1. word word") {
		t.Error("question number missing")
	}
}

func TestPerTypeMarkdown(t *testing.T) {
	records := []model.QuestionRecord{
		{ID: "m", Type: model.TypeMatching, Content: "Match",
			QuestionData: &model.QuestionData{LeftItems: []string{"Dog", "Cat"}, RightItems: []string{"Meow", "Woof"}}},
		{ID: "q", Type: model.TypeSequence, Content: "Order",
			QuestionData: &model.QuestionData{Items: []string{"first", "second"}}},
		{ID: "e", Type: model.TypeEnumeration, Content: "List two", CorrectAnswer: model.Answer{Items: []string{"a", "b"}}},
		{ID: "i", Type: model.TypeImageQuestion, QuestionImagePath: "https://example.com/pics/cell.png?x=1"},
		{ID: "x", Type: model.TypeCloze},
	}
	cfg := &config.ExportConfiguration{SectionOrder: []string{"matching", "sequence", "enumeration", "image_question", "cloze"}}
	s := config.Resolve(cfg, nil)
	md := Markdown(section.Partition(records, s.SectionOrder, s.SectionEnabled), s)

	wants := []string{
		"   A. Dog  ",
		"   1. Meow  ",
		"   A. ______   B. ______  ",
		"   ______ A. first  ",
		"   2. ____________________  ",
		"![cell.png](https://example.com/pics/cell.png?x=1)",
		"**1.** " + s.Labels.MissingContent,
	}
	for _, w := range wants {
		if !strings.Contains(md, w) {
			t.Errorf("markdown missing %q\n%s", w, md)
		}
	}
}

func TestPreviewHTML(t *testing.T) {
	html := string(PreviewHTML("# Title\n\n**1.** question\n"))
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<strong>1.</strong>") {
		t.Errorf("unexpected HTML: %s", html)
	}
}
