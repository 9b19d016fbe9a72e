package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/jwulff/mathquiz/internal/app"
	"github.com/jwulff/mathquiz/internal/bank"
	"github.com/jwulff/mathquiz/internal/command"
	"github.com/jwulff/mathquiz/internal/config"
	"github.com/jwulff/mathquiz/internal/db"
	"github.com/jwulff/mathquiz/internal/quiz"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the question bank database")
	flag.StringVar(&cfg.BankPath, "bank", cfg.BankPath, "seed from this JSON file instead of the built-in bank")
	script := flag.Bool("script", false, "read NDJSON commands from stdin instead of starting the TUI")
	flag.Parse()

	questions, err := bank.LoadPath(cfg.BankPath)
	if err != nil {
		log.Fatal(err)
	}

	if *script {
		err = runScript(cfg, questions)
	} else {
		err = runTUI(cfg, questions)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "mathquiz:", err)
		os.Exit(1)
	}
}

// runTUI runs the terminal UI. Logs go to QUIZ_LOG_FILE or nowhere, since
// the TUI owns the terminal.
func runTUI(cfg *config.Config, questions []db.Question) error {
	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "mathquiz")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	p := tea.NewProgram(app.New(cfg, questions), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}

	m, ok := final.(app.Model)
	if !ok {
		return nil
	}
	if err := m.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
	return m.Err()
}

// runScript drives one session with NDJSON commands on stdin.
func runScript(cfg *config.Config, questions []db.Question) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	store, err := bank.Open(openCtx, cfg.DBPath, questions)
	if err != nil {
		return err
	}
	defer store.Close()

	selected, err := store.SelectedCategories(openCtx, cfg.DefaultCategories)
	if err != nil {
		return err
	}
	cancel()

	session := quiz.NewSession(store,
		quiz.WithCategories(selected...),
		quiz.WithLogger(log.Default()),
	)
	return command.Serve(ctx, command.NewDispatcher(session, store), os.Stdin, os.Stdout)
}
