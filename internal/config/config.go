// Package config defines the export style configuration. The raw
// ExportConfiguration mirrors what the UI or a style file supplies and is
// optional at every level; Resolve turns it into Settings, where every field
// holds a concrete value.
package config

// ExportConfiguration is the user-supplied style and layout configuration.
// Every field is optional.
type ExportConfiguration struct {
	Language      *string                   `json:"language,omitempty" mapstructure:"language"`
	Header        *HeaderConfig             `json:"header,omitempty" mapstructure:"header"`
	StudentInfo   *StudentInfoConfig        `json:"studentInfo,omitempty" mapstructure:"studentInfo"`
	Typography    *TypographyConfig         `json:"typography,omitempty" mapstructure:"typography"`
	SectionOrder  []string                  `json:"questionTypeOrder,omitempty" mapstructure:"questionTypeOrder"`
	Sections      map[string]*SectionConfig `json:"sections,omitempty" mapstructure:"sections"`
	AnswerSheet   *AnswerSheetConfig        `json:"answerSheet,omitempty" mapstructure:"answerSheet"`
	ExportOptions *ExportOptions            `json:"exportOptions,omitempty" mapstructure:"exportOptions"`
}

type HeaderConfig struct {
	Enabled    *bool   `json:"enabled,omitempty" mapstructure:"enabled"`
	SchoolName *string `json:"schoolName,omitempty" mapstructure:"schoolName"`
	Title      *string `json:"title,omitempty" mapstructure:"title"`
	Subtitle   *string `json:"subtitle,omitempty" mapstructure:"subtitle"`
	Duration   *string `json:"duration,omitempty" mapstructure:"duration"`
	TotalScore *string `json:"totalScore,omitempty" mapstructure:"totalScore"`
}

type StudentInfoConfig struct {
	Enabled         *bool    `json:"enabled,omitempty" mapstructure:"enabled"`
	Fields          []string `json:"fields,omitempty" mapstructure:"fields"`
	ParentSignature *bool    `json:"parentSignature,omitempty" mapstructure:"parentSignature"`
}

type TypographyConfig struct {
	BaseFontSize *float64                `json:"baseFontSize,omitempty" mapstructure:"baseFontSize"`
	LineHeight   *float64                `json:"lineHeight,omitempty" mapstructure:"lineHeight"`
	ImageSize    *string                 `json:"imageSize,omitempty" mapstructure:"imageSize"`
	FontFile     *string                 `json:"fontFile,omitempty" mapstructure:"fontFile"`
	Elements     map[string]*ElementFont `json:"elements,omitempty" mapstructure:"elements"`
}

// ElementFont overrides the font of one named element.
type ElementFont struct {
	FontSize *float64 `json:"fontSize,omitempty" mapstructure:"fontSize"`
	Bold     *bool    `json:"bold,omitempty" mapstructure:"bold"`
	Italic   *bool    `json:"italic,omitempty" mapstructure:"italic"`
}

type SectionConfig struct {
	Enabled     *bool   `json:"enabled,omitempty" mapstructure:"enabled"`
	Title       *string `json:"title,omitempty" mapstructure:"title"`
	Instruction *string `json:"instruction,omitempty" mapstructure:"instruction"`
	Points      *int    `json:"points,omitempty" mapstructure:"points"`
}

type AnswerSheetConfig struct {
	Enabled          *bool   `json:"enabled,omitempty" mapstructure:"enabled"`
	Title            *string `json:"title,omitempty" mapstructure:"title"`
	Format           *string `json:"format,omitempty" mapstructure:"format"`
	ShowQuestionText *bool   `json:"showQuestionText,omitempty" mapstructure:"showQuestionText"`
	ShowExplanations *bool   `json:"showExplanations,omitempty" mapstructure:"showExplanations"`
	ShowAnswerImages *bool   `json:"showAnswerImages,omitempty" mapstructure:"showAnswerImages"`
}

type ExportOptions struct {
	QuestionsOnly   *bool `json:"questionsOnly,omitempty" mapstructure:"questionsOnly"`
	AnswerSheetOnly *bool `json:"answerSheetOnly,omitempty" mapstructure:"answerSheetOnly"`
	CompleteExam    *bool `json:"completeExam,omitempty" mapstructure:"completeExam"`
}

// Bool and String build optional values for literals.
func Bool(b bool) *bool { return &b }

func String(s string) *string { return &s }

func Float(f float64) *float64 { return &f }

func Int(i int) *int { return &i }
