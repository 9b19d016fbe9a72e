package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jwulff/mathquiz/internal/bank"
	"github.com/jwulff/mathquiz/internal/command"
	"github.com/jwulff/mathquiz/internal/config"
	"github.com/jwulff/mathquiz/internal/mcpserver"
	"github.com/jwulff/mathquiz/internal/quiz"
	"github.com/mark3labs/mcp-go/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// stdout carries the protocol.
	log.SetOutput(os.Stderr)
	log.SetPrefix("mathquiz-mcp ")

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the question bank database")
	flag.StringVar(&cfg.BankPath, "bank", cfg.BankPath, "seed from this JSON file instead of the built-in bank")
	flag.Parse()

	questions, err := bank.LoadPath(cfg.BankPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()
	store, err := bank.Open(ctx, cfg.DBPath, questions)
	if err != nil {
		return err
	}
	defer store.Close()

	// Start from the selection last saved by the TUI.
	selected, err := store.SelectedCategories(ctx, cfg.DefaultCategories)
	if err != nil {
		return err
	}
	cancel()

	session := quiz.NewSession(store,
		quiz.WithCategories(selected...),
		quiz.WithLogger(log.Default()),
	)
	s := mcpserver.New(command.NewDispatcher(session, store), version)

	log.Printf("serving %s on stdio", cfg.DBPath)
	return server.ServeStdio(s)
}
