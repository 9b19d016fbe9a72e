package app

import (
	"fmt"
	"os"
	"testing"

	"github.com/jwulff/mathquiz/internal/bank"
	"github.com/jwulff/mathquiz/internal/config"
	"github.com/jwulff/mathquiz/internal/quiz"

	tea "github.com/charmbracelet/bubbletea"
)

// TestLiveTUIFlow exercises the full TUI model lifecycle against the user's
// question bank. Skipped if the database doesn't exist.
func TestLiveTUIFlow(t *testing.T) {
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		t.Skip("no database at " + cfg.DBPath)
	}

	questions, err := bank.Default()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}

	m := New(cfg, questions)

	// Simulate terminal size
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	fmt.Println("=== Loading View ===")
	fmt.Println(m.View())

	msg := m.Init()()
	m, _ = applyUpdate(m, msg)
	if err := m.Err(); err != nil {
		t.Fatalf("store: %v", err)
	}
	defer m.Close()

	fmt.Println("\n=== Category Selection ===")
	fmt.Println(m.View())
	fmt.Printf("Categories: %v\nSelected: %v\n", m.categories, m.snap.SelectedCategories)

	if len(m.snap.SelectedCategories) == 0 {
		t.Skip("no categories selected in the saved settings")
	}

	model, cmd := applyUpdate(m, keyMsg(KeyEnter))
	model, _ = applyUpdate(model, cmd())
	if model.snap.State != quiz.StateInProgress {
		t.Fatalf("start: %s", model.errorMessage)
	}

	// Answer the first choice of every question
	for model.snap.State == quiz.StateInProgress {
		model, _ = applyUpdate(model, keyMsg("1"))
		fmt.Printf("\n=== Question %d/%d ===\n", model.snap.Index+1, model.snap.Total)
		fmt.Println(model.View())
		model, _ = applyUpdate(model, keyMsg(KeyNext))
	}

	fmt.Println("\n=== Results ===")
	fmt.Println(model.View())
	fmt.Printf("Session %s: %d/%d\n", model.snap.SessionID, model.snap.Results.Score, model.snap.Results.Total)
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	newModel, cmd := m.Update(msg)
	return newModel.(Model), cmd
}
