// Package question turns loosely shaped question objects into canonical
// QuestionRecords. It is the only place that knows about producer-specific
// field names.
package question

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/exampaper/internal/model"
)

// Raw is one question object as decoded from JSON.
type Raw map[string]any

// DecodeRaw accepts a JSON array of question objects or an object wrapping
// one under "questions", "items" or "data".
func DecodeRaw(data []byte) ([]Raw, error) {
	var list []Raw
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	for _, key := range []string{"questions", "items", "data"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		return list, nil
	}
	return nil, fmt.Errorf("decode questions: no question list found")
}

// NormalizeAll normalizes a batch, assigning positional IDs to records that
// arrive without one.
func NormalizeAll(raws []Raw) []model.QuestionRecord {
	out := make([]model.QuestionRecord, 0, len(raws))
	for i, r := range raws {
		q := Normalize(r)
		if q.ID == "" {
			q.ID = strconv.Itoa(i + 1)
		}
		out = append(out, q)
	}
	return out
}

// Normalize maps a raw question from any producer onto a QuestionRecord.
func Normalize(raw Raw) model.QuestionRecord {
	q := model.QuestionRecord{
		ID:                raw.str("id", "question_id", "questionId"),
		Content:           raw.str("content", "prompt", "stem", "question_text", "questionText", "text"),
		Explanation:       raw.str("explanation", "notes"),
		QuestionImagePath: raw.str("questionImagePath", "question_image_path", "question_image_url", "questionImageUrl"),
		AnswerImagePath:   raw.str("answerImagePath", "answer_image_path", "answer_image_url", "answerImageUrl"),
		Subject:           raw.str("subject"),
		Chapter:           raw.str("chapter"),
		Page:              raw.str("page"),
		Difficulty:        model.Difficulty(strings.ToLower(raw.str("difficulty"))),
	}
	q.Type = raw.questionType()

	if q.Type == model.TypeImageQuestion {
		if desc := raw.str("question_description", "questionDescription", "description"); desc != "" && q.Content == "" {
			q.Content = desc
		}
		if q.QuestionImagePath == "" {
			q.QuestionImagePath = imageFromName(raw.str("question_image", "questionImage"), raw.str("question_image_ext", "questionImageExt"))
		}
		if q.AnswerImagePath == "" {
			q.AnswerImagePath = imageFromName(raw.str("answer_image", "answerImage"), raw.str("answer_image_ext", "answerImageExt"))
		}
	}

	if q.Type.IsChoice() {
		if opts := raw.options(); len(opts) > 0 {
			q.Options = LabelOptions(opts)
		}
	}

	for _, key := range []string{"correctAnswer", "correct_answer", "answer"} {
		if v, ok := raw[key]; ok && v != nil {
			q.CorrectAnswer = toAnswer(v)
			if !q.CorrectAnswer.IsZero() {
				break
			}
		}
	}

	q.QuestionData = raw.questionData()
	q.SourceDocument = raw.sourceDocument()
	if ts := raw.str("created_at", "createdAt"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			q.CreatedAt = &t
		}
	}
	return q
}

func (r Raw) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

func (r Raw) questionType() model.QuestionType {
	for _, k := range []string{"type", "question_type", "questionType"} {
		if s, ok := r[k].(string); ok {
			if t, ok := model.ParseType(s); ok {
				return t
			}
		}
	}
	if r.str("question_image", "questionImage", "question_image_path", "questionImagePath") != "" {
		return model.TypeImageQuestion
	}
	return model.TypeAuto
}

// options reads the option list, accepting plain strings, numbers and
// {letter, text} objects. Blank entries are dropped.
func (r Raw) options() []string {
	var list []any
	for _, k := range []string{"options", "choices"} {
		if l, ok := r[k].([]any); ok {
			list = l
			break
		}
	}
	var out []string
	for _, item := range list {
		var s string
		switch v := item.(type) {
		case map[string]any:
			text := scalarString(firstOf(v, "text", "content", "value"))
			label := scalarString(firstOf(v, "letter", "label", "key"))
			if label != "" {
				s = label + ". " + text
			} else {
				s = text
			}
		default:
			s = scalarString(v)
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r Raw) questionData() *model.QuestionData {
	var v any
	for _, k := range []string{"questionData", "question_data"} {
		if d, ok := r[k]; ok && d != nil {
			v = d
			break
		}
	}
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil
		}
		v = decoded
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	qd := &model.QuestionData{
		LeftItems:  stringList(firstOf(m, "leftItems", "left_items", "left")),
		RightItems: stringList(firstOf(m, "rightItems", "right_items", "right")),
		Items:      stringList(firstOf(m, "items")),
	}
	if len(qd.LeftItems) == 0 && len(qd.RightItems) == 0 && len(qd.Items) == 0 {
		return nil
	}
	return qd
}

func (r Raw) sourceDocument() *model.SourceDocument {
	for _, k := range []string{"source_document", "sourceDocument"} {
		if m, ok := r[k].(map[string]any); ok {
			return &model.SourceDocument{
				ID:    scalarString(m["id"]),
				Title: scalarString(m["title"]),
			}
		}
	}
	if id := r.str("document_id", "documentId"); id != "" {
		return &model.SourceDocument{ID: id}
	}
	return nil
}

func toAnswer(v any) model.Answer {
	switch a := v.(type) {
	case []any:
		return model.Answer{Items: stringList(a)}
	case map[string]any:
		keys := make([]string, 0, len(a))
		for k := range a {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			items = append(items, k+"-"+scalarString(a[k]))
		}
		return model.Answer{Items: items}
	default:
		return model.Answer{Text: scalarString(a)}
	}
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := strings.TrimSpace(scalarString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

// imageFromName builds an image path from a bare name and extension, the way
// the image question table stores them.
func imageFromName(name, ext string) string {
	if name == "" {
		return ""
	}
	if path.Ext(name) != "" {
		return name
	}
	if ext == "" {
		ext = "jpg"
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
