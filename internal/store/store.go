package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/exampaper/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	if strings.HasPrefix(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		chapter TEXT NOT NULL DEFAULT '',
		page TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		options TEXT NOT NULL DEFAULT '[]',
		correct_answer TEXT NOT NULL DEFAULT '""',
		explanation TEXT NOT NULL DEFAULT '',
		question_image TEXT NOT NULL DEFAULT '',
		answer_image TEXT NOT NULL DEFAULT '',
		question_data TEXT,
		source_id TEXT,
		source_title TEXT,
		created_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_questions_type ON questions(type);

	CREATE TABLE IF NOT EXISTS export_templates (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		config TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'editor',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, type, subject, chapter, page, difficulty, content, options, correct_answer,
	explanation, question_image, answer_image, question_data, source_id, source_title, created_at`

// QuestionFilter narrows ListQuestions. Zero fields do not filter.
type QuestionFilter struct {
	Type       model.QuestionType
	Subject    string
	Difficulty model.Difficulty
	IDs        []string
	Limit      int
}

// InsertQuestion stores q, replacing any question with the same ID. A
// question without an ID gets a new UUID, which is returned.
func (s *Store) InsertQuestion(q model.QuestionRecord) (string, error) {
	return insertQuestion(s.db, q)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertQuestion(db execer, q model.QuestionRecord) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	var answer any = q.CorrectAnswer.Text
	if len(q.CorrectAnswer.Items) > 0 {
		answer = q.CorrectAnswer.Items
	}
	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return "", fmt.Errorf("encode answer: %w", err)
	}
	var data *string
	if q.QuestionData != nil {
		b, err := json.Marshal(q.QuestionData)
		if err != nil {
			return "", fmt.Errorf("encode question data: %w", err)
		}
		str := string(b)
		data = &str
	}
	var srcID, srcTitle *string
	if q.SourceDocument != nil {
		srcID, srcTitle = &q.SourceDocument.ID, &q.SourceDocument.Title
	}

	_, err = db.Exec(
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, subject = excluded.subject, chapter = excluded.chapter,
			page = excluded.page, difficulty = excluded.difficulty, content = excluded.content,
			options = excluded.options, correct_answer = excluded.correct_answer,
			explanation = excluded.explanation, question_image = excluded.question_image,
			answer_image = excluded.answer_image, question_data = excluded.question_data,
			source_id = excluded.source_id, source_title = excluded.source_title,
			created_at = excluded.created_at`,
		q.ID, q.Type, q.Subject, q.Chapter, q.Page, q.Difficulty, q.Content, string(optsJSON), string(answerJSON),
		q.Explanation, q.QuestionImagePath, q.AnswerImagePath, data, srcID, srcTitle, q.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return q.ID, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (model.QuestionRecord, error) {
	var (
		q                 model.QuestionRecord
		optsJSON, ansJSON string
		data              sql.NullString
		srcID, srcTitle   sql.NullString
		createdAt         sql.NullTime
		typ, difficulty   string
	)
	err := sc.Scan(&q.ID, &typ, &q.Subject, &q.Chapter, &q.Page, &difficulty, &q.Content, &optsJSON, &ansJSON,
		&q.Explanation, &q.QuestionImagePath, &q.AnswerImagePath, &data, &srcID, &srcTitle, &createdAt)
	if err != nil {
		return q, err
	}
	q.Type = model.QuestionType(typ)
	q.Difficulty = model.Difficulty(difficulty)

	if err := json.Unmarshal([]byte(optsJSON), &q.Options); err != nil {
		return q, fmt.Errorf("decode options of %s: %w", q.ID, err)
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	var answer any
	if err := json.Unmarshal([]byte(ansJSON), &answer); err != nil {
		return q, fmt.Errorf("decode answer of %s: %w", q.ID, err)
	}
	switch v := answer.(type) {
	case string:
		q.CorrectAnswer.Text = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				q.CorrectAnswer.Items = append(q.CorrectAnswer.Items, s)
			}
		}
	}
	if data.Valid {
		q.QuestionData = &model.QuestionData{}
		if err := json.Unmarshal([]byte(data.String), q.QuestionData); err != nil {
			return q, fmt.Errorf("decode question data of %s: %w", q.ID, err)
		}
	}
	if srcID.Valid || srcTitle.Valid {
		q.SourceDocument = &model.SourceDocument{ID: srcID.String, Title: srcTitle.String}
	}
	if createdAt.Valid {
		t := createdAt.Time
		q.CreatedAt = &t
	}
	return q, nil
}

// ListQuestions returns questions matching f in insertion order.
func (s *Store) ListQuestions(f QuestionFilter) ([]model.QuestionRecord, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, f.Subject)
	}
	if f.Difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, f.Difficulty)
	}
	if len(f.IDs) > 0 {
		query += ` AND id IN (?` + strings.Repeat(", ?", len(f.IDs)-1) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY seq`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.QuestionRecord
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID. A missing question yields
// sql.ErrNoRows.
func (s *Store) GetQuestion(id string) (model.QuestionRecord, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

// DeleteQuestion removes a question. It reports whether one existed.
func (s *Store) DeleteQuestion(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// ListSubjects returns the distinct non-empty subjects, sorted.
func (s *Store) ListSubjects() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT subject FROM questions WHERE subject != '' ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []string
	for rows.Next() {
		var subj string
		if err := rows.Scan(&subj); err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

func now() time.Time { return time.Now().UTC() }
