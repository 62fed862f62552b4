// Package section partitions questions into lettered sections.
package section

import (
	"log/slog"

	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
)

// Group is one rendered section: questions of a single type plus the letter
// assigned by its rendered position.
type Group struct {
	Type      model.QuestionType
	Letter    string
	Questions []model.QuestionRecord
}

// Partition groups records by type following order. Types that are empty or
// rejected by enabled are skipped entirely, so letters are assigned A, B, C...
// with no gaps. Records keep their input order within a group. Records whose
// type is not in order are not rendered.
func Partition(records []model.QuestionRecord, order []model.QuestionType, enabled func(model.QuestionType) bool) []Group {
	byType := make(map[model.QuestionType][]model.QuestionRecord)
	for _, q := range records {
		byType[q.Type] = append(byType[q.Type], q)
	}

	var groups []Group
	seen := make(map[model.QuestionType]bool, len(order))
	for _, t := range order {
		if seen[t] {
			continue
		}
		seen[t] = true
		qs := byType[t]
		if len(qs) == 0 || (enabled != nil && !enabled(t)) {
			continue
		}
		groups = append(groups, Group{
			Type:      t,
			Letter:    question.UpperLetter(len(groups)),
			Questions: qs,
		})
	}

	for t, qs := range byType {
		if !seen[t] {
			slog.Warn("questions of a type outside the section order are not rendered", "type", t, "count", len(qs))
		}
	}
	return groups
}

// Count returns the number of questions across groups.
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Questions)
	}
	return n
}
