package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jwulff/mathquiz/internal/quiz"
)

// Catalog lists the categories in the question bank.
type Catalog interface {
	Categories(ctx context.Context) ([]string, error)
}

// Dispatcher applies commands to a single session. Commands are serialized.
type Dispatcher struct {
	session *quiz.Session
	catalog Catalog
	mu      sync.Mutex
}

// NewDispatcher returns a dispatcher for session.
func NewDispatcher(session *quiz.Session, catalog Catalog) *Dispatcher {
	return &Dispatcher{session: session, catalog: catalog}
}

// Apply runs one command. Failures are reported in the response, never as
// a Go error.
func (d *Dispatcher) Apply(ctx context.Context, cmd Command) Response {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd.Cmd {
	case CmdCategories:
		categories, err := d.catalog.Categories(ctx)
		if err != nil {
			return d.fail(err)
		}
		resp := d.status()
		resp.Categories = categories
		return resp

	case CmdToggle:
		if cmd.Category == "" {
			return d.fail(errors.New("toggle requires a category"))
		}
		included := true
		if cmd.Included != nil {
			included = *cmd.Included
		}
		if err := d.session.ToggleCategory(cmd.Category, included); err != nil {
			return d.fail(err)
		}
		return d.status()

	case CmdStart:
		if err := d.session.Start(ctx); err != nil {
			return d.fail(err)
		}
		return d.status()

	case CmdCurrent, CmdStatus:
		return d.status()

	case CmdAnswer:
		choice, err := d.resolveChoice(cmd)
		if err != nil {
			return d.fail(err)
		}
		res, err := d.session.SelectAnswer(choice)
		if err != nil {
			return d.fail(err)
		}
		resp := d.status()
		resp.Answer = &AnswerView{
			Chosen:        res.Chosen,
			Correct:       res.Correct,
			CorrectAnswer: res.CorrectAnswer,
		}
		return resp

	case CmdNext:
		if err := d.session.Advance(); err != nil {
			return d.fail(err)
		}
		return d.status()

	case CmdRestart:
		d.session.Restart()
		return d.status()
	}

	return d.fail(fmt.Errorf("unknown command %q", cmd.Cmd))
}

// resolveChoice turns a 1-based choice number into answer text.
func (d *Dispatcher) resolveChoice(cmd Command) (string, error) {
	if cmd.Choice == nil {
		if cmd.Answer == "" {
			return "", errors.New("answer requires an answer or a choice number")
		}
		return cmd.Answer, nil
	}
	cur, ok := d.session.Current()
	if !ok {
		return "", quiz.ErrInvalidState
	}
	n := *cmd.Choice
	if n < 1 || n > len(cur.Choices) {
		return "", fmt.Errorf("choice %d out of range 1-%d", n, len(cur.Choices))
	}
	return cur.Choices[n-1], nil
}

func (d *Dispatcher) fail(err error) Response {
	resp := d.status()
	resp.OK = false
	resp.Error = err.Error()
	return resp
}

func (d *Dispatcher) status() Response {
	snap := d.session.Snapshot()
	resp := Response{
		OK:        true,
		State:     snap.State.String(),
		SessionID: snap.SessionID,
		Selected:  snap.SelectedCategories,
	}
	if snap.State != quiz.StateCategorySelection {
		resp.Score = IntPtr(snap.Score)
	}
	if cur := snap.Current; cur != nil {
		resp.Question = &QuestionView{
			ID:       string(cur.Question.ID),
			Number:   cur.Index + 1,
			Total:    cur.Total,
			Category: cur.Question.Category,
			Text:     cur.Question.Question,
			Choices:  cur.Choices,
			Answered: cur.Answered,
			Chosen:   cur.Chosen,
		}
	}
	if res := snap.Results; res != nil {
		resp.Results = &ResultsView{Score: res.Score, Total: res.Total, Percent: res.Percent()}
	}
	return resp
}
