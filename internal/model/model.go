package model

import (
	"strings"
	"time"
)

// QuestionType identifies how a question is rendered.
type QuestionType string

const (
	TypeSingleChoice         QuestionType = "single_choice"
	TypeCloze                QuestionType = "cloze"
	TypeShortAnswer          QuestionType = "short_answer"
	TypeTrueFalse            QuestionType = "true_false"
	TypeMatching             QuestionType = "matching"
	TypeSequence             QuestionType = "sequence"
	TypeEnumeration          QuestionType = "enumeration"
	TypeSymbolIdentification QuestionType = "symbol_identification"
	TypeImageQuestion        QuestionType = "image_question"
	TypeMixed                QuestionType = "mixed"
	TypeAuto                 QuestionType = "auto"
)

// AllTypes lists every question type in catalog order.
var AllTypes = []QuestionType{
	TypeSingleChoice,
	TypeCloze,
	TypeShortAnswer,
	TypeTrueFalse,
	TypeMatching,
	TypeSequence,
	TypeEnumeration,
	TypeSymbolIdentification,
	TypeImageQuestion,
	TypeMixed,
	TypeAuto,
}

// DefaultSectionOrder is used when no section order is configured.
var DefaultSectionOrder = []QuestionType{
	TypeSingleChoice,
	TypeCloze,
	TypeShortAnswer,
	TypeTrueFalse,
	TypeMatching,
	TypeSequence,
	TypeImageQuestion,
}

// typeAliases maps squashed spellings (lowercase, no separators) to types.
var typeAliases = map[string]QuestionType{
	"singlechoice":         TypeSingleChoice,
	"multiplechoice":       TypeSingleChoice,
	"choice":               TypeSingleChoice,
	"mcq":                  TypeSingleChoice,
	"cloze":                TypeCloze,
	"fillinblank":          TypeCloze,
	"fillintheblank":       TypeCloze,
	"fillintheblanks":      TypeCloze,
	"shortanswer":          TypeShortAnswer,
	"essay":                TypeShortAnswer,
	"truefalse":            TypeTrueFalse,
	"tf":                   TypeTrueFalse,
	"matching":             TypeMatching,
	"sequence":             TypeSequence,
	"ordering":             TypeSequence,
	"enumeration":          TypeEnumeration,
	"symbolidentification": TypeSymbolIdentification,
	"imagequestion":        TypeImageQuestion,
	"image":                TypeImageQuestion,
	"mixed":                TypeMixed,
	"auto":                 TypeAuto,
}

// ParseType resolves the many spellings producers use ("single_choice",
// "singleChoice", "multiple_choice", "fill_in_blank", ...) to a QuestionType.
func ParseType(s string) (QuestionType, bool) {
	squashed := strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
	t, ok := typeAliases[squashed]
	return t, ok
}

// IsChoice reports whether options are meaningful for the type.
func (t QuestionType) IsChoice() bool {
	switch t {
	case TypeSingleChoice, TypeMixed, TypeAuto:
		return true
	}
	return false
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Answer holds a correct answer in scalar or ordered-list form.
type Answer struct {
	Text  string
	Items []string
}

// IsZero reports whether no answer was supplied.
func (a Answer) IsZero() bool {
	return strings.TrimSpace(a.Text) == "" && len(a.Items) == 0
}

// String renders the answer as a single display line.
func (a Answer) String() string {
	if len(a.Items) > 0 {
		return strings.Join(a.Items, ", ")
	}
	return a.Text
}

// QuestionData is the structured payload for matching and sequence questions.
type QuestionData struct {
	LeftItems  []string `json:"leftItems,omitempty"`
	RightItems []string `json:"rightItems,omitempty"`
	Items      []string `json:"items,omitempty"`
}

// SourceDocument references the document a question was generated from.
type SourceDocument struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// QuestionRecord is the canonical question shape every renderer consumes.
type QuestionRecord struct {
	ID                string
	Type              QuestionType
	Content           string
	Options           []string // nil unless Type.IsChoice()
	CorrectAnswer     Answer
	Explanation       string
	QuestionImagePath string
	AnswerImagePath   string
	QuestionData      *QuestionData

	Subject        string
	Chapter        string
	Page           string
	Difficulty     Difficulty
	SourceDocument *SourceDocument
	CreatedAt      *time.Time
}
