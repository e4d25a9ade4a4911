package main

import (
	"fmt"
	"os"

	"github.com/alexanderramin/examdesk/internal/cli"
	"github.com/alexanderramin/examdesk/internal/config"
	"github.com/alexanderramin/examdesk/internal/db"
	"github.com/alexanderramin/examdesk/internal/logging"
	"github.com/alexanderramin/examdesk/internal/repository"
	"github.com/alexanderramin/examdesk/internal/session"
	"github.com/mattn/go-isatty"
)

func main() {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	app := &cli.App{Stderr: os.Stderr}

	// The wizard and the login prompt need a terminal on stdin.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	app.Connect = func(cfg config.Config) error {
		logger, closeLog, err := logging.Open(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return err
		}
		closers = append(closers, closeLog)
		app.Logger = logger

		database, err := db.OpenDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		closers = append(closers, database.Close)

		store := session.NewSQLiteStore(database, db.NewSQLiteUnitOfWork(database))
		drafts := repository.NewSQLiteDraftRepo(database)
		app.Wire(cfg.BaseURL, cfg.RequestTimeout, store, drafts)

		logger.Debug("client_started", "base_url", cfg.BaseURL, "db", cfg.DBPath)
		return nil
	}

	if err := cli.NewRootCmd(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.Friendly(err))
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		os.Exit(1)
	}
}
