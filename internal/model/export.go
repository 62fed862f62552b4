package model

import "time"

// QuestionExport is the JSON shape of one exported question record.
type QuestionExport struct {
	ID             string          `json:"id"`
	Type           QuestionType    `json:"type"`
	Subject        string          `json:"subject"`
	Content        string          `json:"content"`
	Options        []string        `json:"options"`
	CorrectAnswer  any             `json:"correct_answer"`
	Difficulty     Difficulty      `json:"difficulty"`
	SourceDocument *SourceDocument `json:"source_document"`
	CreatedAt      *time.Time      `json:"created_at"`
}

// NewQuestionExport builds the export shape for a record. Options are never
// null and list answers stay lists.
func NewQuestionExport(q QuestionRecord) QuestionExport {
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	var answer any = q.CorrectAnswer.Text
	if len(q.CorrectAnswer.Items) > 0 {
		answer = q.CorrectAnswer.Items
	}
	return QuestionExport{
		ID:             q.ID,
		Type:           q.Type,
		Subject:        q.Subject,
		Content:        q.Content,
		Options:        opts,
		CorrectAnswer:  answer,
		Difficulty:     q.Difficulty,
		SourceDocument: q.SourceDocument,
		CreatedAt:      q.CreatedAt,
	}
}
