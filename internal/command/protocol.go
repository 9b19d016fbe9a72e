// Package command maps quiz operations onto NDJSON commands and responses.
// The scripting mode and the MCP server both drive a session through it.
package command

// Command names.
const (
	CmdCategories = "categories"
	CmdToggle     = "toggle"
	CmdStart      = "start"
	CmdCurrent    = "current"
	CmdAnswer     = "answer"
	CmdNext       = "next"
	CmdRestart    = "restart"
	CmdStatus     = "status"
)

// Command is one request to the session.
type Command struct {
	Cmd      string `json:"cmd"`
	Category string `json:"category,omitempty"`
	Included *bool  `json:"included,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Choice   *int   `json:"choice,omitempty"` // 1-based index into the displayed choices
}

// Response is returned for every command.
type Response struct {
	OK         bool          `json:"ok"`
	Error      string        `json:"error,omitempty"`
	State      string        `json:"state,omitempty"`
	SessionID  string        `json:"sessionId,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Selected   []string      `json:"selected,omitempty"`
	Score      *int          `json:"score,omitempty"`
	Question   *QuestionView `json:"question,omitempty"`
	Answer     *AnswerView   `json:"answer,omitempty"`
	Results    *ResultsView  `json:"results,omitempty"`
}

// QuestionView is the question on display.
type QuestionView struct {
	ID       string   `json:"id"`
	Number   int      `json:"number"`
	Total    int      `json:"total"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Choices  []string `json:"choices"`
	Answered bool     `json:"answered"`
	Chosen   string   `json:"chosen,omitempty"`
}

// AnswerView reports the outcome of an answer.
type AnswerView struct {
	Chosen        string `json:"chosen"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
}

// ResultsView is the final score.
type ResultsView struct {
	Score   int `json:"score"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building commands.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to an int value.
func IntPtr(i int) *int { return &i }
