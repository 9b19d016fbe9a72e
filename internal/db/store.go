package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides access to the mathquiz SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mathquiz", "mathquiz.sqlite")
}

// Open opens the database at path with WAL, creating it if absent, and
// migrates it to SchemaVersion. Every failure is returned as *OpenError.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("create directory: %w", err)}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("open database: %w", err)}
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("ping database: %w", err)}
	}

	from, err := storedVersion(ctx, db)
	if err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	if err := Migrate(ctx, db, from, SchemaVersion); err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: err}
	}

	return &Store{db: db, now: time.Now}, nil
}

// dsn returns a file: URI for path. The path is escaped so that '?', '#'
// and '%' in directory or file names reach SQLite intact.
func dsn(path string) string {
	u := url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     path,
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
	}
	return u.String()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	v, err := storedVersion(ctx, s.db)
	if err != nil {
		return 0, &ReadError{Op: "version", Err: err}
	}
	return v, nil
}

// UpsertQuestions writes every question in one transaction, replacing any
// row with the same id. Readers see either none or all of the batch.
func (s *Store) UpsertQuestions(ctx context.Context, questions []Question) error {
	if len(questions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Op: "begin upsert", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, category, question, correct_answer, incorrect_answers, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			question = excluded.question,
			correct_answer = excluded.correct_answer,
			incorrect_answers = excluded.incorrect_answers,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return &WriteError{Op: "prepare upsert", Err: err}
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, q := range questions {
		incorrect, err := json.Marshal(q.IncorrectAnswers)
		if err != nil {
			return &WriteError{Op: fmt.Sprintf("encode question %s", q.ID), Err: err}
		}
		if _, err := stmt.ExecContext(ctx, string(q.ID), q.Category, q.Question,
			q.CorrectAnswer, string(incorrect), now); err != nil {
			return &WriteError{Op: fmt.Sprintf("upsert question %s", q.ID), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Op: "commit upsert", Err: err}
	}
	return nil
}

// QuestionsByCategories returns every question whose category is in
// categories, in storage order. No match is an empty result, not an error.
func (s *Store) QuestionsByCategories(ctx context.Context, categories []string) ([]Question, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	args := make([]any, len(categories))
	for i, c := range categories {
		args[i] = c
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, question, correct_answer, incorrect_answers
		FROM questions
		WHERE category IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, &ReadError{Op: "query questions", Err: err}
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		var id, incorrect string
		if err := rows.Scan(&id, &q.Category, &q.Question, &q.CorrectAnswer, &incorrect); err != nil {
			return nil, &ReadError{Op: "scan question", Err: err}
		}
		q.ID = QuestionID(id)
		if err := json.Unmarshal([]byte(incorrect), &q.IncorrectAnswers); err != nil {
			return nil, &ReadError{Op: fmt.Sprintf("decode question %s", id), Err: err}
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Op: "query questions", Err: err}
	}
	return questions, nil
}

// Categories returns the distinct categories in the bank, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM questions ORDER BY category ASC`)
	if err != nil {
		return nil, &ReadError{Op: "query categories", Err: err}
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, &ReadError{Op: "scan category", Err: err}
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Op: "query categories", Err: err}
	}
	return categories, nil
}

// CountQuestions returns the number of stored questions.
func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, &ReadError{Op: "count questions", Err: err}
	}
	return n, nil
}

// PutSetting stores value as JSON under key, replacing any previous value.
func (s *Store) PutSetting(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Op: fmt.Sprintf("encode setting %s", key), Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	if err != nil {
		return &WriteError{Op: fmt.Sprintf("put setting %s", key), Err: err}
	}
	return nil
}

// GetSetting decodes the value stored under key into dst. It reports false
// when the key is absent.
func (s *Store) GetSetting(ctx context.Context, key string, dst any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &ReadError{Op: fmt.Sprintf("get setting %s", key), Err: err}
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, &ReadError{Op: fmt.Sprintf("decode setting %s", key), Err: err}
	}
	return true, nil
}

// SelectedCategoriesKey is the settings key holding the last category
// selection.
const SelectedCategoriesKey = "selectedCategories"

// SelectedCategories returns the saved category selection restricted to
// categories present in the bank. fallback is used when nothing has been
// saved yet. A saved empty selection stays empty.
func (s *Store) SelectedCategories(ctx context.Context, fallback []string) ([]string, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	selected := fallback
	var saved []string
	found, err := s.GetSetting(ctx, SelectedCategoriesKey, &saved)
	if err != nil {
		return nil, err
	}
	if found {
		selected = saved
	}
	return OnlyKnown(selected, categories), nil
}

// SaveSelectedCategories replaces the saved category selection.
func (s *Store) SaveSelectedCategories(ctx context.Context, selected []string) error {
	if selected == nil {
		selected = []string{}
	}
	return s.PutSetting(ctx, SelectedCategoriesKey, selected)
}

// OnlyKnown drops names that are not in categories, keeping order and
// dropping duplicates.
func OnlyKnown(names, categories []string) []string {
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	out := []string{}
	for _, n := range names {
		if known[n] {
			out = append(out, n)
			known[n] = false
		}
	}
	return out
}
