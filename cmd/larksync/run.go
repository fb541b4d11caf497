package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/larksync/larksync/calendar"
	"github.com/larksync/larksync/calendar/feishu"
	"github.com/larksync/larksync/calendar/outlook"
	"github.com/larksync/larksync/file"
	"github.com/larksync/larksync/internal"
	"github.com/larksync/larksync/internal/sqlite"
	"github.com/larksync/larksync/internal/syncer"
	"github.com/larksync/larksync/internal/token"
)

var RunCommand = _runCommand{
	Name:        "run",
	Description: "Sync configured calendars until interrupted",
}

type _runCommand struct {
	Name        string
	Description string
}

func (c _runCommand) Run(ctx context.Context, verbose bool, args []string) error {
	var (
		configFile string
		configDir  string
		every      time.Duration
		dbFilename string
	)

	fs := flag.NewFlagSet(c.Name, flag.ExitOnError)
	fs.StringVar(&configFile, "config", "", "single configuration file")
	fs.StringVar(&configDir, "config-dir", "", "directory of configuration files (multi-tenant)")
	fs.DurationVar(&every, "every", syncer.DefaultInterval, "sync interval")
	fs.StringVar(&dbFilename, "db", "", "sqlite file for the run journal (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	output := io.Writer(os.Stdout)

	statuses, err := loadStatuses(ctx, configFile, configDir)
	if err != nil {
		return err
	}
	printStatusReport(output, statuses)

	var journal syncer.Journal
	if dbFilename != "" {
		db, err := sql.Open(sqlite.DriverName, dbFilename)
		if err != nil {
			return err
		}
		defer db.Close()
		storage, err := sqlite.NewStorage(db)
		if err != nil {
			return err
		}
		journal = storage
	}

	scheduler := syncer.NewScheduler(output, every)
	admitted := 0
	for _, status := range statuses {
		if status.Err != nil {
			continue
		}
		scheduler.Add(newSession(output, status, journal, verbose))
		admitted++
	}
	if admitted == 0 {
		return errors.New("no runnable configuration found")
	}

	fmt.Fprintf(output, "Syncing %d configuration(s) every %s\n", admitted, every)
	return scheduler.Run(ctx)
}

// loadStatuses resolves either a single config file or a directory into the
// same per-configuration status list.
func loadStatuses(ctx context.Context, configFile, configDir string) ([]file.Status, error) {
	switch {
	case configFile != "" && configDir != "":
		return nil, errors.New("use either -config or -config-dir, not both")
	case configFile != "":
		store := file.NewStore(configFile)
		status := file.Status{Name: file.ConfigID(configFile), Store: store}
		cfg, err := store.Load(ctx)
		if err == nil {
			err = cfg.Validate(time.Now())
		}
		if err != nil {
			status.Err = err
		} else {
			status.Config = cfg
		}
		return []file.Status{status}, nil
	case configDir != "":
		return file.Discover(ctx, configDir, time.Now())
	default:
		return nil, errors.New("one of -config or -config-dir is required")
	}
}

func printStatusReport(w io.Writer, statuses []file.Status) {
	fmt.Fprintf(w, "Configurations:\n")
	for _, status := range statuses {
		if status.Err != nil {
			fmt.Fprintf(w, "  %s: invalid, skipped: %v\n", status.Name, status.Err)
			continue
		}
		fmt.Fprintf(w, "  %s: %d calendar pair(s)\n", status.Name, len(status.Config.CalendarPairs))
	}
}

// newSession wires one configuration into a runnable session: its token
// store, both provider clients bound to it, and the optional journal.
func newSession(output io.Writer, status file.Status, journal syncer.Journal, verbose bool) *syncer.Session {
	cfg := status.Config

	tokens := token.NewStore(cfg, status.Store, map[internal.ProviderRole]token.Refresher{
		internal.RoleFeishu: &token.OAuthRefresher{
			Role:   internal.RoleFeishu,
			Config: feishu.OAuthConfig(cfg.Feishu.AppInfo),
		},
		internal.RoleOutlook: &token.OAuthRefresher{
			Role:   internal.RoleOutlook,
			Config: outlook.OAuthConfig(cfg.Outlook.AppInfo),
		},
	})

	source := feishu.NewClient(tokens)
	source.Verbose = verbose
	source.Output = output

	dest := outlook.NewClient(tokens)
	dest.Verbose = verbose
	dest.Output = output

	mux := calendar.NewMux()
	mux.Register(internal.RoleFeishu, source)
	mux.Register(internal.RoleOutlook, dest)

	session := syncer.NewSession(output, cfg, tokens, mux)
	if journal != nil {
		session.SetJournal(journal)
	}
	return session
}
