package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
)

const importHashPrefix = "import_hash:"

// SetMetadata upserts a key-value pair in the exam_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO exam_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM exam_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the sha256 recorded for a question file name,
// or "" if it was never imported.
func (s *Store) GetImportedFileHash(name string) (string, error) {
	return s.GetMetadata(importHashPrefix + name)
}

// SetImportedFileHash records the sha256 of an imported question file.
func (s *Store) SetImportedFileHash(name, hash string) error {
	return s.SetMetadata(importHashPrefix+name, hash)
}

// ImportResult summarizes one ImportQuestions call.
type ImportResult struct {
	Source    string `json:"source"`
	Hash      string `json:"hash"`
	Imported  int    `json:"imported"`
	Unchanged bool   `json:"unchanged"`
}

// ImportQuestions normalizes a JSON question file and stores every question
// in one transaction. A file whose content hash matches the last import under
// the same name is skipped. Questions are upserted by ID, so re-importing an
// edited file updates its questions in place.
func (s *Store) ImportQuestions(source string, data []byte) (ImportResult, error) {
	res := ImportResult{Source: source, Hash: sha256sum(data)}
	stored, err := s.GetImportedFileHash(source)
	if err != nil {
		return res, fmt.Errorf("check import status for %s: %w", source, err)
	}
	if stored == res.Hash {
		slog.Info("questions file unchanged, skipping", "source", source)
		res.Unchanged = true
		return res, nil
	}

	raws, err := question.DecodeRaw(data)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", source, err)
	}
	// Questions without an ID are keyed by file and position so that two
	// files never overwrite each other.
	records := make([]model.QuestionRecord, len(raws))
	for i, r := range raws {
		records[i] = question.Normalize(r)
		if records[i].ID == "" {
			records[i].ID = source + "#" + strconv.Itoa(i+1)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return res, err
	}
	defer tx.Rollback()
	for _, q := range records {
		if _, err := insertQuestion(tx, q); err != nil {
			return res, fmt.Errorf("insert question %s from %s: %w", q.ID, source, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO exam_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		importHashPrefix+source, res.Hash,
	); err != nil {
		return res, fmt.Errorf("record import for %s: %w", source, err)
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	res.Imported = len(records)
	slog.Info("imported questions", "source", source, "count", res.Imported)
	return res, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
