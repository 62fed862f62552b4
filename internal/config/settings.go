package config

import (
	"log/slog"
	"strings"

	"github.com/pavelanni/exampaper/internal/model"
)

// Element names one independently styled piece of the document.
type Element string

const (
	ElementSchoolName         Element = "schoolName"
	ElementSectionTitle       Element = "sectionTitle"
	ElementSectionInstruction Element = "sectionInstruction"
	ElementStudentInfo        Element = "studentInfo"
	ElementParentSignature    Element = "parentSignature"
	ElementQuestionContent    Element = "questionContent"
	ElementExamScope          Element = "examScope"
)

// Font is a resolved font size (points) and weight.
type Font struct {
	Size   float64
	Bold   bool
	Italic bool
}

// ImageSize is the size class for embedded question images.
type ImageSize string

const (
	ImageSmall  ImageSize = "small"
	ImageMedium ImageSize = "medium"
	ImageLarge  ImageSize = "large"
)

// Box returns the maximum image box in millimetres for the size class.
func (s ImageSize) Box() (w, h float64) {
	switch s {
	case ImageSmall:
		return 60, 45
	case ImageLarge:
		return 160, 120
	default:
		return 100, 75
	}
}

// AnswerSheetFormat selects how the answer sheet lays out entries.
type AnswerSheetFormat string

const (
	FormatTable AnswerSheetFormat = "table"
	FormatGrid  AnswerSheetFormat = "grid"
	FormatList  AnswerSheetFormat = "list"
)

// Scope selects which documents an export produces.
type Scope string

const (
	ScopeComplete        Scope = "complete"
	ScopeQuestionsOnly   Scope = "questions_only"
	ScopeAnswerSheetOnly Scope = "answer_sheet_only"
)

// IncludesPaper reports whether the question paper is rendered.
func (s Scope) IncludesPaper() bool { return s != ScopeAnswerSheetOnly }

// IncludesAnswerSheet reports whether the answer sheet scope allows the key.
func (s Scope) IncludesAnswerSheet() bool { return s != ScopeQuestionsOnly }

type HeaderSettings struct {
	Enabled    bool
	SchoolName string
	Title      string
	Subtitle   string
	Duration   string
	TotalScore string
}

type StudentInfoSettings struct {
	Enabled         bool
	Fields          []string
	ParentSignature bool
}

type Typography struct {
	BaseFontSize float64
	LineHeight   float64
	ImageSize    ImageSize
	FontFile     string
	Elements     map[Element]Font
}

type SectionSettings struct {
	Enabled     bool
	Title       string
	Instruction string
	Points      int
}

type AnswerSheetSettings struct {
	Enabled          bool
	Title            string
	Format           AnswerSheetFormat
	ShowQuestionText bool
	ShowExplanations bool
	ShowAnswerImages bool
}

// Labels are the fixed strings renderers print.
type Labels struct {
	Answer          string
	Explanation     string
	Notes           string
	TrueFalse       string
	MissingContent  string
	ParentSignature string
	Time            string
	Total           string
	Date            string
	Number          string
}

// Settings is a fully resolved export configuration.
type Settings struct {
	Language     string
	Header       HeaderSettings
	StudentInfo  StudentInfoSettings
	Typography   Typography
	SectionOrder []model.QuestionType
	Sections     map[model.QuestionType]SectionSettings
	AnswerSheet  AnswerSheetSettings
	Scope        Scope
	Labels       Labels
}

// Font returns the resolved font for a named element.
func (s Settings) Font(e Element) Font {
	if f, ok := s.Typography.Elements[e]; ok {
		return f
	}
	return defaultElementFonts[e]
}

// BodyFont is the font used for options, answers and other body text.
func (s Settings) BodyFont() Font {
	return Font{Size: s.Typography.BaseFontSize}
}

// Section returns the settings of a question type's section.
func (s Settings) Section(t model.QuestionType) SectionSettings {
	if sec, ok := s.Sections[t]; ok {
		return sec
	}
	return SectionSettings{Enabled: true, Title: string(t)}
}

// SectionEnabled reports whether a question type's section is rendered.
func (s Settings) SectionEnabled(t model.QuestionType) bool {
	return s.Section(t).Enabled
}

// Translator supplies localized defaults. Lookup reports false when the
// message is missing, in which case the built-in English default is kept.
type Translator interface {
	Lookup(id string) (string, bool)
}

const (
	DefaultSchoolName   = "Abraham Academy"
	DefaultExamTitle    = "2024 Semester 2 G4 Science Midterm Exam"
	DefaultExamSubtitle = "(Understanding God's World pp. 115-171)"
	DefaultDuration     = "90 minutes"
	DefaultTotalScore   = "100 points"
	DefaultBaseFontSize = 12.0
	DefaultLineHeight   = 1.2
	DefaultLanguage     = "en"
)

var defaultElementFonts = map[Element]Font{
	ElementSchoolName:         {Size: 20, Bold: true},
	ElementSectionTitle:       {Size: 12, Bold: true},
	ElementSectionInstruction: {Size: 10, Italic: true},
	ElementStudentInfo:        {Size: 10},
	ElementParentSignature:    {Size: 10},
	ElementQuestionContent:    {Size: 12},
	ElementExamScope:          {Size: 14},
}

type sectionDefault struct {
	title       string
	instruction string
	points      int
}

var defaultSections = map[model.QuestionType]sectionDefault{
	model.TypeSingleChoice:         {"Multiple Choice", "Write the correct answer in the blank before each number. (1 pt each)", 10},
	model.TypeCloze:                {"Fill in the Blanks", "Write the answer that best fits the description on the line. (2 pts each)", 26},
	model.TypeShortAnswer:          {"Questions and Answers", `Answer in a complete sentence unless it says "List."`, 24},
	model.TypeTrueFalse:            {"True or False", "Write T for True or F for False in the blank. (1 pt each)", 10},
	model.TypeMatching:             {"Matching", "Write the answer that best fits the description on the line. (1 pt each)", 10},
	model.TypeSequence:             {"Sequence Ordering", "Write the correct order number in the blank before each item. (1 pt each)", 10},
	model.TypeEnumeration:          {"Enumeration", "List the requested items. (1 pt each)", 10},
	model.TypeSymbolIdentification: {"Symbol Identification", "Identify the meaning of each symbol. (1 pt each)", 10},
	model.TypeImageQuestion:        {"Image Questions", "Answer the questions based on the images provided.", 10},
	model.TypeMixed:                {"Mixed Questions", "Complete the following questions.", 0},
	model.TypeAuto:                 {"Additional Questions", "Complete the following questions.", 0},
}

var defaultStudentFields = []string{"Class", "Number", "Name", "Score"}

var defaultLabels = Labels{
	Answer:          "Answer",
	Explanation:     "Explanation",
	Notes:           "Notes",
	TrueFalse:       "T / F",
	MissingContent:  "Question content missing",
	ParentSignature: "Parent's Signature",
	Time:            "Time",
	Total:           "Total",
	Date:            "Date",
	Number:          "No.",
}

// Resolve fills every missing field of cfg with its default. A nil cfg yields
// the complete default configuration; tr may be nil.
func Resolve(cfg *ExportConfiguration, tr Translator) Settings {
	if cfg == nil {
		cfg = &ExportConfiguration{}
	}
	loc := func(id, fallback string) string {
		if tr == nil {
			return fallback
		}
		if s, ok := tr.Lookup(id); ok && s != "" {
			return s
		}
		return fallback
	}

	s := Settings{
		Language: strOr(cfg.Language, DefaultLanguage),
		Labels: Labels{
			Answer:          loc("LabelAnswer", defaultLabels.Answer),
			Explanation:     loc("LabelExplanation", defaultLabels.Explanation),
			Notes:           loc("LabelNotes", defaultLabels.Notes),
			TrueFalse:       loc("LabelTrueFalse", defaultLabels.TrueFalse),
			MissingContent:  loc("LabelMissingContent", defaultLabels.MissingContent),
			ParentSignature: loc("LabelParentSignature", defaultLabels.ParentSignature),
			Time:            loc("LabelTime", defaultLabels.Time),
			Total:           loc("LabelTotal", defaultLabels.Total),
			Date:            loc("LabelDate", defaultLabels.Date),
			Number:          loc("LabelNumber", defaultLabels.Number),
		},
	}

	h := cfg.Header
	if h == nil {
		h = &HeaderConfig{}
	}
	s.Header = HeaderSettings{
		Enabled:    boolOr(h.Enabled, true),
		SchoolName: strOr(h.SchoolName, DefaultSchoolName),
		Title:      strOr(h.Title, DefaultExamTitle),
		Subtitle:   strOr(h.Subtitle, DefaultExamSubtitle),
		Duration:   strOr(h.Duration, DefaultDuration),
		TotalScore: strOr(h.TotalScore, DefaultTotalScore),
	}

	si := cfg.StudentInfo
	if si == nil {
		si = &StudentInfoConfig{}
	}
	fields := si.Fields
	if len(fields) == 0 {
		fields = make([]string, len(defaultStudentFields))
		for i, f := range defaultStudentFields {
			fields[i] = loc("Field"+f, f)
		}
	}
	s.StudentInfo = StudentInfoSettings{
		Enabled:         boolOr(si.Enabled, true),
		Fields:          fields,
		ParentSignature: boolOr(si.ParentSignature, true),
	}

	s.Typography = resolveTypography(cfg.Typography)
	s.SectionOrder = resolveOrder(cfg.SectionOrder)

	s.Sections = make(map[model.QuestionType]SectionSettings, len(model.AllTypes))
	overrides := make(map[model.QuestionType]*SectionConfig, len(cfg.Sections))
	for key, sc := range cfg.Sections {
		t, ok := model.ParseType(key)
		if !ok || sc == nil {
			slog.Warn("ignoring section config for unknown question type", "type", key)
			continue
		}
		overrides[t] = sc
	}
	for _, t := range model.AllTypes {
		def := defaultSections[t]
		sc := overrides[t]
		if sc == nil {
			sc = &SectionConfig{}
		}
		s.Sections[t] = SectionSettings{
			Enabled:     boolOr(sc.Enabled, true),
			Title:       strOr(sc.Title, loc("SectionTitle_"+string(t), def.title)),
			Instruction: strOr(sc.Instruction, loc("SectionInstruction_"+string(t), def.instruction)),
			Points:      intOr(sc.Points, def.points),
		}
	}

	as := cfg.AnswerSheet
	if as == nil {
		as = &AnswerSheetConfig{}
	}
	format := AnswerSheetFormat(strings.ToLower(strOr(as.Format, string(FormatTable))))
	switch format {
	case FormatTable, FormatGrid, FormatList:
	default:
		slog.Warn("unknown answer sheet format, using table", "format", format)
		format = FormatTable
	}
	s.AnswerSheet = AnswerSheetSettings{
		Enabled:          boolOr(as.Enabled, true),
		Title:            strOr(as.Title, loc("LabelAnswerSheet", "Answer Key")),
		Format:           format,
		ShowQuestionText: boolOr(as.ShowQuestionText, false),
		ShowExplanations: boolOr(as.ShowExplanations, true),
		ShowAnswerImages: boolOr(as.ShowAnswerImages, true),
	}

	s.Scope = ScopeComplete
	if eo := cfg.ExportOptions; eo != nil {
		switch {
		case boolOr(eo.AnswerSheetOnly, false):
			s.Scope = ScopeAnswerSheetOnly
		case boolOr(eo.QuestionsOnly, false):
			s.Scope = ScopeQuestionsOnly
		}
	}
	return s
}

func resolveTypography(tc *TypographyConfig) Typography {
	if tc == nil {
		tc = &TypographyConfig{}
	}
	t := Typography{
		BaseFontSize: positiveOr(tc.BaseFontSize, DefaultBaseFontSize),
		LineHeight:   positiveOr(tc.LineHeight, DefaultLineHeight),
		ImageSize:    ImageMedium,
		FontFile:     strOr(tc.FontFile, ""),
		Elements:     make(map[Element]Font, len(defaultElementFonts)),
	}
	switch size := ImageSize(strings.ToLower(strOr(tc.ImageSize, ""))); size {
	case ImageSmall, ImageMedium, ImageLarge:
		t.ImageSize = size
	}
	for e, def := range defaultElementFonts {
		f := def
		if o := lookupElement(tc.Elements, e); o != nil {
			f.Size = positiveOr(o.FontSize, def.Size)
			f.Bold = boolOr(o.Bold, def.Bold)
			f.Italic = boolOr(o.Italic, def.Italic)
		}
		t.Elements[e] = f
	}
	return t
}

// lookupElement matches element keys case-insensitively, since viper lowercases
// keys read from style files.
func lookupElement(m map[string]*ElementFont, e Element) *ElementFont {
	if o, ok := m[string(e)]; ok {
		return o
	}
	for k, o := range m {
		if strings.EqualFold(k, string(e)) {
			return o
		}
	}
	return nil
}

func resolveOrder(order []string) []model.QuestionType {
	var out []model.QuestionType
	seen := make(map[model.QuestionType]bool)
	for _, name := range order {
		t, ok := model.ParseType(name)
		if !ok {
			slog.Warn("ignoring unknown question type in section order", "type", name)
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return append([]model.QuestionType(nil), model.DefaultSectionOrder...)
	}
	return out
}

func strOr(p *string, def string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func positiveOr(p *float64, def float64) float64 {
	if p == nil || *p <= 0 {
		return def
	}
	return *p
}
