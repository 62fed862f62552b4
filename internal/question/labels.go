package question

import (
	"regexp"
	"strings"
	"unicode"
)

// labeledOption matches options that already carry a letter label such as
// "A. ", "b) " or "c] ".
var labeledOption = regexp.MustCompile(`^[a-zA-Z][.)\]]\s`)

// HasLabel reports whether an option string already starts with a letter label.
func HasLabel(option string) bool {
	return labeledOption.MatchString(strings.TrimLeftFunc(option, unicode.IsSpace))
}

// LabelOptions prefixes unlabeled options with sequential lowercase labels
// (a., b., c., ...). Options that already carry a label are returned unchanged,
// so the result never has doubled letters and applying it twice is a no-op.
func LabelOptions(options []string) []string {
	if options == nil {
		return nil
	}
	out := make([]string, len(options))
	for i, opt := range options {
		if HasLabel(opt) {
			out[i] = opt
			continue
		}
		out[i] = LowerLetter(i) + ". " + strings.TrimSpace(opt)
	}
	return out
}

// OptionLetter returns the letter options[i] is printed with: its own label
// when it carries one, otherwise the label LabelOptions would give it.
func OptionLetter(options []string, i int) string {
	if opt := strings.TrimLeftFunc(options[i], unicode.IsSpace); HasLabel(opt) {
		return opt[:1]
	}
	return LowerLetter(i)
}

// UpperLetter returns the i-th uppercase alphabetic label: A..Z, AA, AB, ...
func UpperLetter(i int) string {
	if i < 0 {
		return ""
	}
	var b []byte
	for n := i; ; n = n/26 - 1 {
		b = append([]byte{byte('A' + n%26)}, b...)
		if n < 26 {
			break
		}
	}
	return string(b)
}

// LowerLetter is the lowercase form of UpperLetter.
func LowerLetter(i int) string {
	return strings.ToLower(UpperLetter(i))
}

// AnswerIndex finds which option a choice answer points at: either a bare or
// labeled letter ("b", "B.", "c) ...") or the option text itself. It returns
// -1 when nothing matches.
func AnswerIndex(options []string, answer string) int {
	a := strings.TrimSpace(answer)
	if a == "" {
		return -1
	}
	if len(a) == 1 || strings.ContainsRune(".)]", rune(a[1])) {
		r := unicode.ToLower(rune(a[0]))
		if r >= 'a' && r <= 'z' {
			idx := int(r - 'a')
			if idx < len(options) {
				return idx
			}
		}
	}
	for i, opt := range options {
		text := strings.TrimSpace(opt)
		if HasLabel(opt) {
			text = strings.TrimSpace(text[2:])
		}
		if strings.EqualFold(text, a) {
			return i
		}
	}
	return -1
}
