package quiz

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/jwulff/mathquiz/internal/db"
)

// fakeSource filters a fixed question list by category.
type fakeSource struct {
	questions []db.Question
	err       error
	calls     int
}

func (f *fakeSource) QuestionsByCategories(_ context.Context, categories []string) ([]db.Question, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	want := map[string]bool{}
	for _, c := range categories {
		want[c] = true
	}
	var out []db.Question
	for _, q := range f.questions {
		if want[q.Category] {
			out = append(out, q)
		}
	}
	return out, nil
}

func testQuestions() []db.Question {
	return []db.Question{
		{ID: "a1", Category: "arithmetic", Question: "2 + 2?", CorrectAnswer: "4", IncorrectAnswers: []string{"3", "5", "22"}},
		{ID: "a2", Category: "arithmetic", Question: "3 x 3?", CorrectAnswer: "9", IncorrectAnswers: []string{"6", "12"}},
		{ID: "a3", Category: "arithmetic", Question: "10 - 7?", CorrectAnswer: "3", IncorrectAnswers: []string{"17", "4"}},
		{ID: "g1", Category: "geometry", Question: "Sides on a triangle?", CorrectAnswer: "3", IncorrectAnswers: []string{"4", "5"}},
		{ID: "g2", Category: "geometry", Question: "Degrees in a right angle?", CorrectAnswer: "90", IncorrectAnswers: []string{"45", "180"}},
	}
}

func newTestSession(src Source, opts ...Option) *Session {
	opts = append([]Option{WithRand(rand.New(rand.NewSource(7)))}, opts...)
	return NewSession(src, opts...)
}

func firstIncorrect(q db.Question) string {
	return q.IncorrectAnswers[0]
}

func TestNewSession(t *testing.T) {
	s := newTestSession(&fakeSource{})
	if s.State() != StateCategorySelection {
		t.Errorf("state = %v, want %v", s.State(), StateCategorySelection)
	}
	if len(s.SelectedCategories()) != 0 {
		t.Errorf("selected = %v, want none", s.SelectedCategories())
	}
	if _, ok := s.Current(); ok {
		t.Error("new session should have no current question")
	}
}

func TestToggleCategory(t *testing.T) {
	s := newTestSession(&fakeSource{}, WithCategories("arithmetic"))

	s.ToggleCategory("geometry", true)
	s.ToggleCategory("geometry", true)
	got := s.SelectedCategories()
	if len(got) != 2 || got[0] != "arithmetic" || got[1] != "geometry" {
		t.Errorf("selected = %v, want [arithmetic geometry]", got)
	}

	s.ToggleCategory("arithmetic", false)
	got = s.SelectedCategories()
	if len(got) != 1 || got[0] != "geometry" {
		t.Errorf("selected = %v, want [geometry]", got)
	}
}

func TestStartWithoutCategories(t *testing.T) {
	src := &fakeSource{questions: testQuestions()}
	s := newTestSession(src)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrNoCategorySelected) {
		t.Fatalf("Start error = %v, want %v", err, ErrNoCategorySelected)
	}
	if s.State() != StateCategorySelection {
		t.Errorf("state = %v, want %v", s.State(), StateCategorySelection)
	}
	if src.calls != 0 {
		t.Errorf("source calls = %d, want 0", src.calls)
	}
}

func TestStartWithNoQuestions(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("calculus"))

	err := s.Start(context.Background())
	if !errors.Is(err, ErrNoQuestionsAvailable) {
		t.Fatalf("Start error = %v, want %v", err, ErrNoQuestionsAvailable)
	}
	if s.State() != StateCategorySelection {
		t.Errorf("state = %v, want %v", s.State(), StateCategorySelection)
	}
}

func TestStartSourceErrorKeepsState(t *testing.T) {
	readErr := &db.ReadError{Op: "query questions", Err: errors.New("disk I/O error")}
	s := newTestSession(&fakeSource{err: readErr}, WithCategories("arithmetic"))

	err := s.Start(context.Background())
	var got *db.ReadError
	if !errors.As(err, &got) {
		t.Fatalf("Start error = %v, want *db.ReadError", err)
	}
	if s.State() != StateCategorySelection {
		t.Errorf("state = %v, want %v", s.State(), StateCategorySelection)
	}
	snap := s.Snapshot()
	if snap.Total != 0 || snap.SessionID != "" {
		t.Errorf("snapshot = %+v, want no session", snap)
	}
}

func TestStartInitializesSession(t *testing.T) {
	src := &fakeSource{questions: testQuestions()}
	s := newTestSession(src, WithCategories("arithmetic", "geometry"))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want, _ := src.QuestionsByCategories(context.Background(), s.SelectedCategories())
	snap := s.Snapshot()
	if snap.State != StateInProgress {
		t.Errorf("state = %v, want %v", snap.State, StateInProgress)
	}
	if snap.Total != len(want) {
		t.Errorf("total = %d, want %d", snap.Total, len(want))
	}
	if snap.Index != 0 || snap.Score != 0 {
		t.Errorf("index = %d, score = %d, want 0, 0", snap.Index, snap.Score)
	}
	if snap.SessionID == "" {
		t.Error("session ID should be set")
	}
	if snap.Current == nil {
		t.Fatal("current question should be set")
	}

	if err := s.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start error = %v, want %v", err, ErrInvalidState)
	}
}

func TestStartVisitsEachQuestionOnce(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic", "geometry"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var ids []string
	for s.State() == StateInProgress {
		cur, _ := s.Current()
		ids = append(ids, string(cur.Question.ID))
		if err := s.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	sort.Strings(ids)
	want := []string{"a1", "a2", "a3", "g1", "g2"}
	if len(ids) != len(want) {
		t.Fatalf("visited %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("visited %v, want %v", ids, want)
		}
	}
}

func TestStartShufflesQuestionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic", "geometry"))

	const runs = 500
	first := map[string]int{}
	for i := 0; i < runs; i++ {
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		cur, _ := s.Current()
		first[string(cur.Question.ID)]++
		s.Restart()
	}

	// Each of the 5 questions should lead about 100 times.
	for _, q := range testQuestions() {
		if n := first[string(q.ID)]; n < 50 {
			t.Errorf("%s shown first %d/%d times, want at least 50 (counts %v)", q.ID, n, runs, first)
		}
	}
}

func TestChoicesShuffledOnEachDisplay(t *testing.T) {
	ctx := context.Background()
	questions := []db.Question{
		{ID: "m1", Category: "c", Question: "6 x 7?", CorrectAnswer: "42", IncorrectAnswers: []string{"36", "48", "49"}},
		{ID: "m2", Category: "c", Question: "8 x 8?", CorrectAnswer: "64", IncorrectAnswers: []string{"56", "72", "81"}},
		{ID: "m3", Category: "c", Question: "9 x 3?", CorrectAnswer: "27", IncorrectAnswers: []string{"18", "21", "24"}},
	}
	s := newTestSession(&fakeSource{questions: questions}, WithCategories("c"))

	const runs = 200
	var onStart, onAdvance [4]int
	for i := 0; i < runs; i++ {
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		for s.State() == StateInProgress {
			cur, _ := s.Current()
			pos := -1
			for j, c := range cur.Choices {
				if c == cur.Question.CorrectAnswer {
					pos = j
				}
			}
			if pos < 0 {
				t.Fatalf("correct answer missing from %v", cur.Choices)
			}
			if cur.Index == 0 {
				onStart[pos]++
			} else {
				onAdvance[pos]++
			}
			if err := s.Advance(); err != nil {
				t.Fatalf("Advance: %v", err)
			}
		}
		s.Restart()
	}

	// About 50 per slot for the first display, 100 per slot after Advance.
	for pos := range onStart {
		if onStart[pos] < 20 {
			t.Errorf("first display: correct answer at %d in %d/%d quizzes (counts %v)", pos+1, onStart[pos], runs, onStart)
		}
		if onAdvance[pos] < 50 {
			t.Errorf("later displays: correct answer at %d in %d/%d displays (counts %v)", pos+1, onAdvance[pos], 2*runs, onAdvance)
		}
	}
}

func TestChoicesContainAllAnswersOnce(t *testing.T) {
	q := db.Question{ID: "d", Category: "c", Question: "?", CorrectAnswer: "x", IncorrectAnswers: []string{"y", "x", "z", "y"}}
	s := newTestSession(&fakeSource{questions: []db.Question{q}}, WithCategories("c"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cur, _ := s.Current()
	got := append([]string(nil), cur.Choices...)
	sort.Strings(got)
	want := []string{"x", "y", "z"}
	if len(got) != len(want) {
		t.Fatalf("choices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("choices = %v, want %v", got, want)
		}
	}
}

func TestSelectCorrectAnswer(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cur, _ := s.Current()
	res, err := s.SelectAnswer(cur.Question.CorrectAnswer)
	if err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if !res.Correct || res.Score != 1 {
		t.Errorf("result = %+v, want correct with score 1", res)
	}

	cur, _ = s.Current()
	if !cur.Answered || !cur.Correct || cur.Chosen != cur.Question.CorrectAnswer {
		t.Errorf("current = %+v, want answered correctly", cur)
	}
	if cur.Index != 0 {
		t.Errorf("index = %d, want 0 (answering must not advance)", cur.Index)
	}
}

func TestSelectIncorrectAnswer(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cur, _ := s.Current()
	res, err := s.SelectAnswer(firstIncorrect(cur.Question))
	if err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if res.Correct || res.Score != 0 {
		t.Errorf("result = %+v, want incorrect with score 0", res)
	}
	if res.CorrectAnswer != cur.Question.CorrectAnswer {
		t.Errorf("correct answer = %q, want %q", res.CorrectAnswer, cur.Question.CorrectAnswer)
	}
}

func TestAnswerLocksAfterFirstSelection(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cur, _ := s.Current()
	if _, err := s.SelectAnswer(cur.Question.CorrectAnswer); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	res, err := s.SelectAnswer(cur.Question.CorrectAnswer)
	if !errors.Is(err, ErrAlreadyAnswered) {
		t.Errorf("second SelectAnswer error = %v, want %v", err, ErrAlreadyAnswered)
	}
	if res.Score != 1 {
		t.Errorf("score = %d, want 1 after repeat", res.Score)
	}

	if _, err := s.SelectAnswer(firstIncorrect(cur.Question)); !errors.Is(err, ErrAlreadyAnswered) {
		t.Errorf("changing answer error = %v, want %v", err, ErrAlreadyAnswered)
	}
	cur, _ = s.Current()
	if !cur.Correct {
		t.Error("locked answer should stay correct")
	}
	if s.Snapshot().Score != 1 {
		t.Errorf("score = %d, want 1", s.Snapshot().Score)
	}
}

func TestSelectUnknownChoice(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := s.SelectAnswer("not an option"); !errors.Is(err, ErrUnknownChoice) {
		t.Errorf("SelectAnswer error = %v, want %v", err, ErrUnknownChoice)
	}
	cur, _ := s.Current()
	if cur.Answered {
		t.Error("unknown choice must not lock the question")
	}
}

func TestOperationsOutsideQuiz(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic"))

	if _, err := s.SelectAnswer("4"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SelectAnswer error = %v, want %v", err, ErrInvalidState)
	}
	if err := s.Advance(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Advance error = %v, want %v", err, ErrInvalidState)
	}
	if _, ok := s.Results(); ok {
		t.Error("Results should not be available before finishing")
	}
}

func TestAdvanceToResultsIsTerminal(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("geometry"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if s.State() != StateInProgress {
		t.Fatalf("state = %v, want %v", s.State(), StateInProgress)
	}

	// Index is now len-1; the next advance ends the quiz.
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if s.State() != StateResults {
		t.Fatalf("state = %v, want %v", s.State(), StateResults)
	}
	before := s.Snapshot()

	if err := s.Advance(); err != nil {
		t.Errorf("Advance in results: %v", err)
	}
	after := s.Snapshot()
	if after.State != StateResults || after.Index != before.Index || after.Score != before.Score {
		t.Errorf("snapshot changed after terminal advance: %+v -> %+v", before, after)
	}
	if _, err := s.SelectAnswer("90"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SelectAnswer in results error = %v, want %v", err, ErrInvalidState)
	}
}

func TestRestartKeepsCategories(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic", "geometry"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cur, _ := s.Current()
	s.SelectAnswer(cur.Question.CorrectAnswer)

	s.Restart()

	snap := s.Snapshot()
	if snap.State != StateCategorySelection {
		t.Errorf("state = %v, want %v", snap.State, StateCategorySelection)
	}
	if snap.Total != 0 || snap.Score != 0 || snap.Current != nil || snap.SessionID != "" {
		t.Errorf("snapshot = %+v, want session state discarded", snap)
	}
	if len(snap.SelectedCategories) != 2 {
		t.Errorf("selected = %v, want categories retained", snap.SelectedCategories)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start after restart: %v", err)
	}
	if s.Snapshot().Score != 0 {
		t.Error("score should reset on a new start")
	}
}

func TestToggleOutsideSelection(t *testing.T) {
	s := newTestSession(&fakeSource{questions: testQuestions()}, WithCategories("arithmetic"))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.ToggleCategory("geometry", true); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ToggleCategory error = %v, want %v", err, ErrInvalidState)
	}
}

func TestResultsPercent(t *testing.T) {
	tests := []struct {
		r    Results
		want int
	}{
		{Results{Score: 3, Total: 3}, 100},
		{Results{Score: 1, Total: 3}, 33},
		{Results{Score: 0, Total: 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.r.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %d, want %d", tt.r, got, tt.want)
		}
	}
}

// TestEndToEnd seeds a real store with 3 arithmetic and 2 geometry questions,
// answers every arithmetic question correctly and checks the results.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "quiz.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.UpsertQuestions(ctx, testQuestions()); err != nil {
		t.Fatalf("UpsertQuestions: %v", err)
	}

	s := NewSession(store)
	s.ToggleCategory("arithmetic", true)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Snapshot().Total; got != 3 {
		t.Fatalf("total = %d, want 3", got)
	}

	for s.State() == StateInProgress {
		cur, _ := s.Current()
		if cur.Question.Category != "arithmetic" {
			t.Errorf("question %s has category %q", cur.Question.ID, cur.Question.Category)
		}
		if _, err := s.SelectAnswer(cur.Question.CorrectAnswer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		if err := s.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	res, ok := s.Results()
	if !ok {
		t.Fatal("expected results")
	}
	if res.Score != 3 || res.Total != 3 {
		t.Errorf("results = %+v, want 3/3", res)
	}
}
