// Package bank loads the static question bank and seeds it into the store.
package bank

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jwulff/mathquiz/internal/db"
)

//go:embed questions.json
var defaultBank []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// Upserter is the store's ingestion point.
type Upserter interface {
	UpsertQuestions(ctx context.Context, questions []db.Question) error
}

type file struct {
	Questions []db.Question `json:"questions"`
}

// Default returns the question bank compiled into the binary.
func Default() ([]db.Question, error) {
	return Load(bytes.NewReader(defaultBank))
}

// LoadPath reads the bank at path, or returns the built-in bank when path
// is empty.
func LoadPath(path string) ([]db.Question, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// LoadFile reads a question bank from path.
func LoadFile(path string) ([]db.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()

	questions, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return questions, nil
}

// Load decodes and validates a question bank. It accepts either an object
// with a "questions" array or a bare array.
func Load(r io.Reader) ([]db.Question, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}

	var questions []db.Question
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &questions)
	} else {
		var f file
		err = json.Unmarshal(trimmed, &f)
		questions = f.Questions
	}
	if err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}

	if len(questions) == 0 {
		return nil, errors.New("no questions found in question bank")
	}
	if err := Validate(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Validate checks required fields, that ids are unique, and that no question
// repeats an answer.
func Validate(questions []db.Question) error {
	seen := make(map[db.QuestionID]bool, len(questions))
	for i, q := range questions {
		if err := validate.Struct(q); err != nil {
			return fmt.Errorf("question %d (id %q): %w", i, q.ID, err)
		}
		if seen[q.ID] {
			return fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = true
		if len(q.Answers()) != len(q.IncorrectAnswers)+1 {
			return fmt.Errorf("question %d (id %q): answers must be distinct", i, q.ID)
		}
	}
	return nil
}

// Seed validates questions and upserts them. Safe to repeat on every start.
func Seed(ctx context.Context, store Upserter, questions []db.Question) error {
	if err := Validate(questions); err != nil {
		return err
	}
	if err := store.UpsertQuestions(ctx, questions); err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	return nil
}

// Open opens the store at path and seeds it with questions. The store is
// closed again if seeding fails.
func Open(ctx context.Context, path string, questions []db.Question) (*db.Store, error) {
	store, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := Seed(ctx, store, questions); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
