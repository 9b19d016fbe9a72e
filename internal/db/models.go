// Package db provides the local SQLite question bank used by mathquiz.
package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// QuestionID is the primary key of a question. Seed files may carry it as a
// JSON string or integer; both decode to the same decimal string.
type QuestionID string

// UnmarshalJSON accepts a string or an integer.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or integer: %w", err)
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("question id must be a string or integer: %w", err)
	}
	*id = QuestionID(strconv.FormatInt(i, 10))
	return nil
}

// Question is a multiple-choice question in the bank.
type Question struct {
	ID               QuestionID `json:"id" validate:"required"`
	Category         string     `json:"category" validate:"required"`
	Question         string     `json:"question" validate:"required"`
	CorrectAnswer    string     `json:"correctAnswer" validate:"required"`
	IncorrectAnswers []string   `json:"incorrectAnswers" validate:"required,min=1,dive,required"`
}

// Answers returns the correct answer followed by the incorrect ones, with
// duplicates dropped.
func (q Question) Answers() []string {
	seen := make(map[string]bool, len(q.IncorrectAnswers)+1)
	answers := make([]string, 0, len(q.IncorrectAnswers)+1)
	for _, a := range append([]string{q.CorrectAnswer}, q.IncorrectAnswers...) {
		if seen[a] {
			continue
		}
		seen[a] = true
		answers = append(answers, a)
	}
	return answers
}
