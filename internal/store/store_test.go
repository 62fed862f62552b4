package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, q model.QuestionRecord) string {
	t.Helper()
	id, err := s.InsertQuestion(q)
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and empty list.
	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}
	list, err := s.ListQuestions(QuestionFilter{})
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	in := model.QuestionRecord{
		ID:             "q1",
		Type:           model.TypeSingleChoice,
		Subject:        "science",
		Content:        "Largest planet?",
		Options:        []string{"a. Jupiter", "b. Mars"},
		CorrectAnswer:  model.Answer{Text: "a"},
		Explanation:    "By mass and radius",
		Difficulty:     model.DifficultyEasy,
		SourceDocument: &model.SourceDocument{ID: "doc-1", Title: "Planets"},
		CreatedAt:      &created,
	}
	insertTestQuestion(t, s, in)

	q, err := s.GetQuestion("q1")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Content != in.Content || q.Type != in.Type || q.Difficulty != in.Difficulty {
		t.Errorf("round trip mismatch: %+v", q)
	}
	if len(q.Options) != 2 || q.Options[1] != "b. Mars" {
		t.Errorf("options = %q", q.Options)
	}
	if q.CorrectAnswer.Text != "a" {
		t.Errorf("answer = %+v", q.CorrectAnswer)
	}
	if q.SourceDocument == nil || q.SourceDocument.Title != "Planets" {
		t.Errorf("source document = %+v", q.SourceDocument)
	}
	if q.CreatedAt == nil || !q.CreatedAt.Equal(created) {
		t.Errorf("created at = %v", q.CreatedAt)
	}

	// Not found.
	_, err = s.GetQuestion("missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	// Upsert replaces in place.
	in.Content = "Biggest planet?"
	insertTestQuestion(t, s, in)
	q, _ = s.GetQuestion("q1")
	if q.Content != "Biggest planet?" {
		t.Errorf("expected updated content, got %q", q.Content)
	}
	count, _ = s.QuestionCount()
	if count != 1 {
		t.Errorf("expected 1 question after upsert, got %d", count)
	}

	// Delete.
	ok, err := s.DeleteQuestion("q1")
	if err != nil || !ok {
		t.Fatalf("DeleteQuestion: %v, %v", ok, err)
	}
	ok, _ = s.DeleteQuestion("q1")
	if ok {
		t.Error("second delete should report nothing removed")
	}
}

func TestQuestionShapes(t *testing.T) {
	s := newTestStore(t)

	id := insertTestQuestion(t, s, model.QuestionRecord{
		Type:          model.TypeSequence,
		Content:       "Order these",
		CorrectAnswer: model.Answer{Items: []string{"seed", "sprout", "tree"}},
		QuestionData:  &model.QuestionData{Items: []string{"tree", "seed", "sprout"}},
	})
	if id == "" {
		t.Fatal("expected a generated ID")
	}
	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if len(q.CorrectAnswer.Items) != 3 || q.CorrectAnswer.Items[2] != "tree" {
		t.Errorf("list answer = %+v", q.CorrectAnswer)
	}
	if q.QuestionData == nil || len(q.QuestionData.Items) != 3 {
		t.Errorf("question data = %+v", q.QuestionData)
	}
	if q.Options != nil {
		t.Errorf("non-choice options should be nil, got %#v", q.Options)
	}
	if q.SourceDocument != nil || q.CreatedAt != nil {
		t.Error("absent optional fields should stay nil")
	}
}

func TestListQuestionsFiltered(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, model.QuestionRecord{ID: "1", Type: model.TypeCloze, Subject: "math", Difficulty: model.DifficultyEasy})
	insertTestQuestion(t, s, model.QuestionRecord{ID: "2", Type: model.TypeCloze, Subject: "science", Difficulty: model.DifficultyHard})
	insertTestQuestion(t, s, model.QuestionRecord{ID: "3", Type: model.TypeTrueFalse, Subject: "science", Difficulty: model.DifficultyEasy})
	insertTestQuestion(t, s, model.QuestionRecord{ID: "4", Type: model.TypeShortAnswer, Subject: "math", Difficulty: model.DifficultyMedium})

	tests := []struct {
		name   string
		filter QuestionFilter
		want   []string
	}{
		{"no filter", QuestionFilter{}, []string{"1", "2", "3", "4"}},
		{"by type", QuestionFilter{Type: model.TypeCloze}, []string{"1", "2"}},
		{"by subject", QuestionFilter{Subject: "science"}, []string{"2", "3"}},
		{"by difficulty", QuestionFilter{Difficulty: model.DifficultyEasy}, []string{"1", "3"}},
		{"combined", QuestionFilter{Subject: "math", Difficulty: model.DifficultyMedium}, []string{"4"}},
		{"by ids keeps insertion order", QuestionFilter{IDs: []string{"4", "2"}}, []string{"2", "4"}},
		{"limit", QuestionFilter{Limit: 2}, []string{"1", "2"}},
		{"no match", QuestionFilter{Subject: "art"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListQuestions(tt.filter)
			if err != nil {
				t.Fatalf("ListQuestions: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d questions, want %d", len(got), len(tt.want))
			}
			for i, q := range got {
				if q.ID != tt.want[i] {
					t.Errorf("position %d: got %q, want %q", i, q.ID, tt.want[i])
				}
			}
		})
	}
}

func TestListSubjects(t *testing.T) {
	s := newTestStore(t)

	subjects, err := s.ListSubjects()
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != 0 {
		t.Errorf("expected 0 subjects, got %d", len(subjects))
	}

	insertTestQuestion(t, s, model.QuestionRecord{ID: "1", Type: model.TypeCloze, Subject: "science"})
	insertTestQuestion(t, s, model.QuestionRecord{ID: "2", Type: model.TypeCloze, Subject: "math"})
	insertTestQuestion(t, s, model.QuestionRecord{ID: "3", Type: model.TypeCloze, Subject: "science"})
	insertTestQuestion(t, s, model.QuestionRecord{ID: "4", Type: model.TypeCloze})
	subjects, _ = s.ListSubjects()
	if len(subjects) != 2 || subjects[0] != "math" || subjects[1] != "science" {
		t.Errorf("expected [math science], got %v", subjects)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestImportQuestions(t *testing.T) {
	s := newTestStore(t)
	data := []byte(`{"questions": [
		{"type": "single_choice", "prompt": "Pick", "options": ["x", "y"], "answer": "b"},
		{"type": "cloze", "content": "Fill [ ]", "correct_answer": "z"}
	]}`)

	res, err := s.ImportQuestions("bank.json", data)
	if err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}
	if res.Imported != 2 || res.Unchanged {
		t.Errorf("first import = %+v", res)
	}

	// Same content is skipped.
	res, err = s.ImportQuestions("bank.json", data)
	if err != nil {
		t.Fatalf("ImportQuestions again: %v", err)
	}
	if !res.Unchanged || res.Imported != 0 {
		t.Errorf("second import = %+v", res)
	}

	// Another file without IDs must not overwrite the first.
	if _, err := s.ImportQuestions("other.json", []byte(`[{"type": "true_false", "content": "Sky is blue"}]`)); err != nil {
		t.Fatalf("ImportQuestions other: %v", err)
	}
	count, _ := s.QuestionCount()
	if count != 3 {
		t.Errorf("expected 3 questions, got %d", count)
	}

	q, err := s.GetQuestion("bank.json#1")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if len(q.Options) != 2 || q.Options[0] != "a. x" {
		t.Errorf("imported options should be labeled, got %q", q.Options)
	}

	// Malformed input leaves nothing behind.
	if _, err := s.ImportQuestions("bad.json", []byte(`{"nothing": true}`)); err == nil {
		t.Error("expected error for a file without questions")
	}
	if hash, _ := s.GetImportedFileHash("bad.json"); hash != "" {
		t.Error("failed import should not be recorded")
	}
}

func TestTemplates(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetTemplate("weekly"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if err := s.DeleteTemplate("weekly"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound on delete, got %v", err)
	}

	tpl := Template{
		Name:        "weekly",
		Description: "Weekly quiz",
		Config: config.ExportConfiguration{
			Header:      &config.HeaderConfig{Title: config.String("Week 3 Quiz")},
			AnswerSheet: &config.AnswerSheetConfig{Format: config.String("grid")},
		},
	}
	if err := s.SaveTemplate(tpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	got, err := s.GetTemplate("weekly")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Description != "Weekly quiz" || got.Config.Header == nil || *got.Config.Header.Title != "Week 3 Quiz" {
		t.Errorf("template round trip = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	tpl.Description = "Weekly quiz v2"
	if err := s.SaveTemplate(tpl); err != nil {
		t.Fatalf("SaveTemplate replace: %v", err)
	}
	if err := s.SaveTemplate(Template{Name: "final"}); err != nil {
		t.Fatalf("SaveTemplate second: %v", err)
	}
	list, err := s.ListTemplates()
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(list) != 2 || list[0].Name != "final" || list[1].Description != "Weekly quiz v2" {
		t.Errorf("ListTemplates = %+v", list)
	}

	if err := s.DeleteTemplate("weekly"); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := s.GetTemplate("weekly"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected deleted template to be gone, got %v", err)
	}
}

func TestUsersAndTokens(t *testing.T) {
	s := newTestStore(t)

	count, _ := s.UserCount()
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}
	id, err := s.CreateUser(model.User{Username: "admin", PasswordHash: "hash", Role: model.UserRoleAdmin, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "admin", PasswordHash: "x"}); err == nil {
		t.Error("duplicate username should fail")
	}

	u, err := s.GetUserByUsername("admin")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v, %v", u, err)
	}
	if u.ID != id || u.Role != model.UserRoleAdmin || !u.Active {
		t.Errorf("user = %+v", u)
	}
	if u, _ := s.GetUserByUsername("nobody"); u != nil {
		t.Error("unknown user should be nil")
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil || sess.UserID != id {
		t.Fatalf("GetAuthSession = %+v, %v", sess, err)
	}
	if sess, _ := s.GetAuthSession("bogus"); sess != nil {
		t.Error("unknown token should be nil")
	}

	// Disabling a user revokes their tokens.
	if err := s.SetUserActive(id, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("token should be revoked")
	}
	users, _ := s.ListUsers()
	if len(users) != 1 || users[0].Active {
		t.Errorf("ListUsers = %+v", users)
	}

	n, err := s.CleanupExpiredSessions()
	if err != nil || n != 0 {
		t.Errorf("CleanupExpiredSessions = %d, %v", n, err)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	v, err := s.GetMetadata("missing")
	if err != nil || v != "" {
		t.Fatalf("GetMetadata missing = %q, %v", v, err)
	}
	if err := s.SetMetadata("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMetadata("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetMetadata("k"); v != "v2" {
		t.Errorf("expected v2, got %q", v)
	}
}
