package app

import "github.com/jwulff/mathquiz/internal/db"

// StoreReadyMsg is sent once the store is open, seeded and read.
type StoreReadyMsg struct {
	Store      *db.Store
	Categories []string
	Selected   []string // saved selection, or the configured default
}

// StoreErrorMsg is sent when the store cannot be opened or seeded. The
// TUI cannot continue without it.
type StoreErrorMsg struct {
	Err error
}

// QuizStartedMsg carries the outcome of starting a quiz.
type QuizStartedMsg struct {
	Err error
}

// SelectionSavedMsg carries the outcome of persisting the category selection.
type SelectionSavedMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
