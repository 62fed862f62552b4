package question

import (
	"slices"
	"sort"
	"strings"

	"github.com/pavelanni/exampaper/internal/model"
)

// splitList splits free text on list delimiters and drops empty pieces.
func splitList(s string, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseMatchingPairs is the best-effort fallback for matching questions
// without structured data. The answer text is split on ',' and ';' into pairs
// and each pair on its first '-' into a left and a right item. Pieces that do
// not yield two non-empty halves are dropped, so both lists always have the
// same length.
func ParseMatchingPairs(answer string) (left, right []string) {
	for _, piece := range splitList(answer, ",;\n") {
		l, r, ok := strings.Cut(piece, "-")
		l, r = strings.TrimSpace(l), strings.TrimSpace(r)
		if !ok || l == "" || r == "" {
			continue
		}
		left = append(left, l)
		right = append(right, r)
	}
	return left, right
}

// ParseSequenceItems splits a free-text sequence answer on ',', ';', newlines
// and "->" arrows.
func ParseSequenceItems(answer string) []string {
	answer = strings.ReplaceAll(answer, "->", ",")
	answer = strings.ReplaceAll(answer, "→", ",")
	return splitList(answer, ",;\n")
}

// MatchingColumns returns the left and right columns of a matching question.
// Structured questionData wins; otherwise the correct answer is parsed and
// the right column is put in display order so it does not reveal the pairing.
func MatchingColumns(q model.QuestionRecord) (left, right []string) {
	if q.QuestionData != nil && (len(q.QuestionData.LeftItems) > 0 || len(q.QuestionData.RightItems) > 0) {
		return q.QuestionData.LeftItems, q.QuestionData.RightItems
	}
	if len(q.CorrectAnswer.Items) > 0 {
		left, right = ParseMatchingPairs(strings.Join(q.CorrectAnswer.Items, ";"))
	} else {
		left, right = ParseMatchingPairs(q.CorrectAnswer.Text)
	}
	return left, displayOrder(right)
}

// SequenceItems returns the items of a sequence question. Structured
// questionData is kept in storage order; items recovered from the correct
// answer are put in display order, since their natural order is the answer.
func SequenceItems(q model.QuestionRecord) []string {
	if q.QuestionData != nil && len(q.QuestionData.Items) > 0 {
		return q.QuestionData.Items
	}
	if len(q.CorrectAnswer.Items) > 0 {
		return displayOrder(q.CorrectAnswer.Items)
	}
	return displayOrder(ParseSequenceItems(q.CorrectAnswer.Text))
}

// displayOrder returns a sorted copy of items. When sorting leaves them in
// their given order, the copy is rotated by one so it never matches.
func displayOrder(items []string) []string {
	out := slices.Clone(items)
	sort.Strings(out)
	if len(out) > 1 && slices.Equal(out, items) && !slices.Equal(out[1:], out[:len(out)-1]) {
		out = append(out[1:], out[0])
	}
	return out
}

// degenerateExplanations are placeholder values producers emit instead of
// leaving the explanation empty.
var degenerateExplanations = map[string]bool{
	"-":         true,
	"--":        true,
	"—":         true,
	"n/a":       true,
	"na":        true,
	"none":      true,
	"null":      true,
	"nil":       true,
	"undefined": true,
	"無":         true,
	"无":         true,
}

// HasExplanation reports whether an explanation carries real content.
func HasExplanation(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !degenerateExplanations[strings.ToLower(s)]
}

// Prompt returns the printable question text. Cloze blanks are rewritten to
// the canonical blank.
func Prompt(q model.QuestionRecord) string {
	if q.Type == model.TypeCloze {
		return strings.TrimSpace(CanonicalizeBlanks(q.Content))
	}
	return strings.TrimSpace(q.Content)
}

// AnswerText returns the correct answer as printed on the answer sheet. A
// choice answer given as a bare letter is expanded to its labeled option.
func AnswerText(q model.QuestionRecord) string {
	ans := strings.TrimSpace(q.CorrectAnswer.String())
	if ans == "" || len(q.Options) == 0 || !q.Type.IsChoice() {
		return ans
	}
	if len(ans) == 1 || (len(ans) == 2 && strings.ContainsRune(".)]", rune(ans[1]))) {
		if i := AnswerIndex(q.Options, ans); i >= 0 {
			return q.Options[i]
		}
	}
	return ans
}

// BlankCount is the number of answer slots an enumeration question gets.
func BlankCount(q model.QuestionRecord) int {
	n := len(q.CorrectAnswer.Items)
	if n == 0 && strings.TrimSpace(q.CorrectAnswer.Text) != "" {
		n = len(splitList(q.CorrectAnswer.Text, ",;\n、"))
	}
	if n == 0 {
		return 3
	}
	return n
}
