package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ErrUnknownPreset is returned by Preset for names outside the built-in set.
var ErrUnknownPreset = errors.New("unknown preset")

type preset struct {
	description string
	build       func() *ExportConfiguration
}

var presets = map[string]preset{
	"standard": {"General purpose exam layout", func() *ExportConfiguration {
		return &ExportConfiguration{
			Header: &HeaderConfig{Duration: String("90 minutes"), TotalScore: String("100 points")},
			Sections: map[string]*SectionConfig{
				"single_choice": {Title: String("Part I: Multiple Choice Questions")},
				"cloze":         {Title: String("Part II: Fill in the Blanks")},
				"short_answer":  {Title: String("Part III: Short Answer Questions")},
				"auto":          {Title: String("Part IV: Additional Questions")},
			},
			AnswerSheet: &AnswerSheetConfig{Title: String("Answer Sheet")},
		}
	}},
	"academic": {"Layout for universities and academic institutions", func() *ExportConfiguration {
		return &ExportConfiguration{
			Header: &HeaderConfig{
				SchoolName: String("University"),
				Duration:   String("120 minutes"),
				TotalScore: String("100 points"),
			},
			Sections: map[string]*SectionConfig{
				"single_choice": {Title: String("Section A: Multiple Choice")},
				"cloze":         {Title: String("Section B: Fill in the Blanks")},
				"short_answer":  {Title: String("Section C: Short Answer")},
				"auto":          {Title: String("Section D: Comprehensive Questions")},
			},
			Typography:  &TypographyConfig{LineHeight: Float(1.4)},
			AnswerSheet: &AnswerSheetConfig{Title: String("Answer Sheet"), ShowQuestionText: Bool(true)},
		}
	}},
	"minimal": {"Compact layout with smaller type", func() *ExportConfiguration {
		return &ExportConfiguration{
			Header:      &HeaderConfig{Duration: String("60 minutes")},
			StudentInfo: &StudentInfoConfig{ParentSignature: Bool(false)},
			Typography:  &TypographyConfig{BaseFontSize: Float(11), LineHeight: Float(1.0), ImageSize: String("small")},
			Sections: map[string]*SectionConfig{
				"single_choice": {Title: String("Choice")},
				"cloze":         {Title: String("Blanks")},
				"short_answer":  {Title: String("Short Answer")},
				"auto":          {Title: String("Other")},
			},
			AnswerSheet: &AnswerSheetConfig{Format: String("list"), ShowExplanations: Bool(false)},
		}
	}},
	"formal": {"Official examination layout", func() *ExportConfiguration {
		return &ExportConfiguration{
			Header: &HeaderConfig{
				SchoolName: String("Education Board"),
				Duration:   String("150 minutes"),
				TotalScore: String("150 points"),
			},
			Sections: map[string]*SectionConfig{
				"single_choice": {Title: String("Part One: Multiple Choice")},
				"cloze":         {Title: String("Part Two: Fill in the Blanks")},
				"short_answer":  {Title: String("Part Three: Short Answer")},
				"auto":          {Title: String("Part Four: Comprehensive Questions")},
			},
			Typography: &TypographyConfig{
				Elements: map[string]*ElementFont{
					string(ElementSchoolName): {FontSize: Float(22)},
					string(ElementExamScope):  {FontSize: Float(14), Bold: Bool(true)},
				},
			},
			AnswerSheet: &AnswerSheetConfig{Title: String("Answer Sheet"), Format: String("grid")},
		}
	}},
}

// Preset returns a fresh copy of a built-in configuration.
func Preset(name string) (*ExportConfiguration, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p.build(), nil
}

// PresetInfo describes a built-in preset.
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Presets lists the built-in presets sorted by name.
func Presets() []PresetInfo {
	out := make([]PresetInfo, 0, len(presets))
	for name, p := range presets {
		out = append(out, PresetInfo{Name: name, Description: p.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load reads an ExportConfiguration from a YAML, JSON or TOML file.
func Load(path string) (*ExportConfiguration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read style config: %w", err)
	}
	var cfg ExportConfiguration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode style config %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge overlays over onto base field by field. Neither argument is
// modified; nil arguments are allowed.
func Merge(base, over *ExportConfiguration) *ExportConfiguration {
	out := &ExportConfiguration{}
	if base != nil {
		*out = *base
	}
	if over == nil {
		return out
	}
	if over.Language != nil {
		out.Language = over.Language
	}
	if over.Header != nil {
		h := HeaderConfig{}
		if out.Header != nil {
			h = *out.Header
		}
		mergeHeader(&h, over.Header)
		out.Header = &h
	}
	if over.StudentInfo != nil {
		si := StudentInfoConfig{}
		if out.StudentInfo != nil {
			si = *out.StudentInfo
		}
		pick(&si.Enabled, over.StudentInfo.Enabled)
		pick(&si.ParentSignature, over.StudentInfo.ParentSignature)
		if len(over.StudentInfo.Fields) > 0 {
			si.Fields = over.StudentInfo.Fields
		}
		out.StudentInfo = &si
	}
	if over.Typography != nil {
		t := TypographyConfig{}
		if out.Typography != nil {
			t = *out.Typography
		}
		pick(&t.BaseFontSize, over.Typography.BaseFontSize)
		pick(&t.LineHeight, over.Typography.LineHeight)
		pick(&t.ImageSize, over.Typography.ImageSize)
		pick(&t.FontFile, over.Typography.FontFile)
		t.Elements = mergeMap(t.Elements, over.Typography.Elements, func(dst, src *ElementFont) {
			pick(&dst.FontSize, src.FontSize)
			pick(&dst.Bold, src.Bold)
			pick(&dst.Italic, src.Italic)
		})
		out.Typography = &t
	}
	if len(over.SectionOrder) > 0 {
		out.SectionOrder = over.SectionOrder
	}
	out.Sections = mergeMap(out.Sections, over.Sections, func(dst, src *SectionConfig) {
		pick(&dst.Enabled, src.Enabled)
		pick(&dst.Title, src.Title)
		pick(&dst.Instruction, src.Instruction)
		pick(&dst.Points, src.Points)
	})
	if over.AnswerSheet != nil {
		a := AnswerSheetConfig{}
		if out.AnswerSheet != nil {
			a = *out.AnswerSheet
		}
		pick(&a.Enabled, over.AnswerSheet.Enabled)
		pick(&a.Title, over.AnswerSheet.Title)
		pick(&a.Format, over.AnswerSheet.Format)
		pick(&a.ShowQuestionText, over.AnswerSheet.ShowQuestionText)
		pick(&a.ShowExplanations, over.AnswerSheet.ShowExplanations)
		pick(&a.ShowAnswerImages, over.AnswerSheet.ShowAnswerImages)
		out.AnswerSheet = &a
	}
	if over.ExportOptions != nil {
		out.ExportOptions = over.ExportOptions
	}
	return out
}

func mergeHeader(h, over *HeaderConfig) {
	pick(&h.Enabled, over.Enabled)
	pick(&h.SchoolName, over.SchoolName)
	pick(&h.Title, over.Title)
	pick(&h.Subtitle, over.Subtitle)
	pick(&h.Duration, over.Duration)
	pick(&h.TotalScore, over.TotalScore)
}

func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

// mergeMap overlays over onto base key by key, matching keys without regard
// to case as viper lowercases them. For keys present in both, merge fills a
// copy of the base entry from the override.
func mergeMap[V any](base, over map[string]*V, merge func(dst, src *V)) map[string]*V {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]*V, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if v == nil {
			continue
		}
		key := k
		for bk := range base {
			if strings.EqualFold(bk, k) {
				key = bk
				break
			}
		}
		var e V
		if b := out[key]; b != nil {
			e = *b
		}
		merge(&e, v)
		out[key] = &e
	}
	return out
}
