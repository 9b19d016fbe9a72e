// Package quiz implements the quiz session state machine: category
// selection, randomized questions, answer locking and scoring.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/jwulff/mathquiz/internal/db"
)

// State is a phase of a quiz session.
type State int

const (
	StateCategorySelection State = iota
	StateInProgress
	StateResults
)

func (s State) String() string {
	switch s {
	case StateCategorySelection:
		return "category_selection"
	case StateInProgress:
		return "in_progress"
	case StateResults:
		return "results"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNoCategorySelected is returned by Start when no category is selected.
	ErrNoCategorySelected = errors.New("please select at least one category")
	// ErrNoQuestionsAvailable is returned by Start when the selected
	// categories have no questions.
	ErrNoQuestionsAvailable = errors.New("no questions found for selected categories")

	// ErrInvalidState is returned when an operation is called in a state
	// that does not allow it.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrAlreadyAnswered is returned by SelectAnswer once the current
	// question has been answered.
	ErrAlreadyAnswered = errors.New("question already answered")

	// ErrUnknownChoice is returned when a choice is not among the displayed
	// answers.
	ErrUnknownChoice = errors.New("choice is not one of the displayed answers")
)

// Source supplies questions for the selected categories. *db.Store
// satisfies it.
type Source interface {
	QuestionsByCategories(ctx context.Context, categories []string) ([]db.Question, error)
}

// CurrentQuestion is the question on display and the user's answer to it.
type CurrentQuestion struct {
	Index    int
	Total    int
	Question db.Question
	Choices  []string
	Answered bool
	Chosen   string
	Correct  bool
}

// AnswerResult describes a locked-in answer.
type AnswerResult struct {
	Chosen        string
	Correct       bool
	CorrectAnswer string
	Score         int
}

// Results is the outcome of a finished session.
type Results struct {
	Score int
	Total int
}

// Percent returns the score as a whole percentage of the total.
func (r Results) Percent() int {
	if r.Total == 0 {
		return 0
	}
	return r.Score * 100 / r.Total
}

// Snapshot is a read-only copy of session state for rendering.
type Snapshot struct {
	State              State
	SessionID          string
	SelectedCategories []string
	Index              int
	Total              int
	Score              int
	Current            *CurrentQuestion
	Results            *Results
}

// Option configures a Session.
type Option func(*Session)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithCategories preselects categories.
func WithCategories(categories ...string) Option {
	return func(s *Session) {
		for _, c := range categories {
			s.selected[c] = true
		}
	}
}

// WithLogger sets where session events are logged.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one user's quiz. It is not safe for concurrent use.
type Session struct {
	source Source
	rng    *rand.Rand
	logger *log.Logger

	state    State
	selected map[string]bool

	id        string
	questions []db.Question
	index     int
	score     int

	choices  []string
	answered bool
	chosen   string
}

// NewSession returns a session in category selection.
func NewSession(source Source, opts ...Option) *Session {
	s := &Session{
		source:   source,
		selected: make(map[string]bool),
		state:    StateCategorySelection,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = newRand()
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// State returns the current phase.
func (s *Session) State() State { return s.state }

// ToggleCategory includes or excludes a category. Only valid during category
// selection.
func (s *Session) ToggleCategory(name string, included bool) error {
	if s.state != StateCategorySelection {
		return ErrInvalidState
	}
	if included {
		s.selected[name] = true
	} else {
		delete(s.selected, name)
	}
	return nil
}

// SelectedCategories returns the selected categories, sorted.
func (s *Session) SelectedCategories() []string {
	categories := make([]string, 0, len(s.selected))
	for c := range s.selected {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// Start loads questions for the selected categories, shuffles them and
// begins the quiz. On any error the session stays in category selection.
func (s *Session) Start(ctx context.Context) error {
	if s.state != StateCategorySelection {
		return ErrInvalidState
	}
	categories := s.SelectedCategories()
	if len(categories) == 0 {
		return ErrNoCategorySelected
	}

	questions, err := s.source.QuestionsByCategories(ctx, categories)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestionsAvailable
	}

	questions = append([]db.Question(nil), questions...)
	Shuffle(s.rng, questions)

	s.id = uuid.NewString()
	s.questions = questions
	s.index = 0
	s.score = 0
	s.state = StateInProgress
	s.display()

	s.logger.Printf("session %s started: %d questions from %v", s.id, len(questions), categories)
	return nil
}

// display prepares the question at s.index with freshly shuffled choices.
func (s *Session) display() {
	s.choices = s.questions[s.index].Answers()
	Shuffle(s.rng, s.choices)
	s.answered = false
	s.chosen = ""
}

// Current returns the question on display. ok is false outside a quiz.
func (s *Session) Current() (CurrentQuestion, bool) {
	if s.state != StateInProgress {
		return CurrentQuestion{}, false
	}
	q := s.questions[s.index]
	return CurrentQuestion{
		Index:    s.index,
		Total:    len(s.questions),
		Question: q,
		Choices:  append([]string(nil), s.choices...),
		Answered: s.answered,
		Chosen:   s.chosen,
		Correct:  s.answered && s.chosen == q.CorrectAnswer,
	}, true
}

// SelectAnswer locks in choice for the current question and scores it. A
// question can be answered once; later calls return ErrAlreadyAnswered and
// leave the score alone.
func (s *Session) SelectAnswer(choice string) (AnswerResult, error) {
	if s.state != StateInProgress {
		return AnswerResult{}, ErrInvalidState
	}
	q := s.questions[s.index]
	if s.answered {
		return AnswerResult{
			Chosen:        s.chosen,
			Correct:       s.chosen == q.CorrectAnswer,
			CorrectAnswer: q.CorrectAnswer,
			Score:         s.score,
		}, ErrAlreadyAnswered
	}

	known := false
	for _, c := range s.choices {
		if c == choice {
			known = true
			break
		}
	}
	if !known {
		return AnswerResult{}, ErrUnknownChoice
	}

	s.answered = true
	s.chosen = choice
	correct := choice == q.CorrectAnswer
	if correct {
		s.score++
	}
	return AnswerResult{
		Chosen:        choice,
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Score:         s.score,
	}, nil
}

// Advance moves to the next question, or to results after the last one.
// In results it does nothing.
func (s *Session) Advance() error {
	switch s.state {
	case StateResults:
		return nil
	case StateInProgress:
	default:
		return ErrInvalidState
	}

	s.index++
	if s.index < len(s.questions) {
		s.display()
		return nil
	}

	s.state = StateResults
	s.choices = nil
	s.logger.Printf("session %s finished: score %d/%d", s.id, s.score, len(s.questions))
	return nil
}

// Results returns the final score. ok is false until the quiz is finished.
func (s *Session) Results() (Results, bool) {
	if s.state != StateResults {
		return Results{}, false
	}
	return Results{Score: s.score, Total: len(s.questions)}, true
}

// Restart discards the quiz and returns to category selection. Selected
// categories are kept.
func (s *Session) Restart() {
	s.state = StateCategorySelection
	s.id = ""
	s.questions = nil
	s.index = 0
	s.score = 0
	s.choices = nil
	s.answered = false
	s.chosen = ""
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:              s.state,
		SessionID:          s.id,
		SelectedCategories: s.SelectedCategories(),
		Index:              s.index,
		Total:              len(s.questions),
		Score:              s.score,
	}
	if cur, ok := s.Current(); ok {
		snap.Current = &cur
	}
	if res, ok := s.Results(); ok {
		snap.Results = &res
	}
	return snap
}
