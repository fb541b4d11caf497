package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/larksync/larksync/internal/sqlite"
)

var HistoryCommand = _historyCommand{
	Name:        "history",
	Description: "Show recent sync runs from the journal",
}

type _historyCommand struct {
	Name        string
	Description string
}

func (c _historyCommand) Run(ctx context.Context, verbose bool, args []string) error {
	var (
		dbFilename string
		configID   string
		limit      int
	)

	fs := flag.NewFlagSet(c.Name, flag.ExitOnError)
	fs.StringVar(&dbFilename, "db", "larksync.db", "sqlite file holding the run journal")
	fs.StringVar(&configID, "config", "", "only show runs for this configuration")
	fs.IntVar(&limit, "n", 20, "number of runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sql.Open(sqlite.DriverName, dbFilename)
	if err != nil {
		return err
	}
	defer db.Close()

	storage, err := sqlite.NewStorage(db)
	if err != nil {
		return err
	}
	runs, err := storage.RecentRuns(ctx, configID, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintln(os.Stdout, run)
	}
	return nil
}
