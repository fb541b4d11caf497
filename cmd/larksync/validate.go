package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
)

var ValidateCommand = _validateCommand{
	Name:        "validate",
	Description: "Check configurations without syncing anything",
}

type _validateCommand struct {
	Name        string
	Description string
}

func (c _validateCommand) Run(ctx context.Context, verbose bool, args []string) error {
	var (
		configFile string
		configDir  string
	)

	fs := flag.NewFlagSet(c.Name, flag.ExitOnError)
	fs.StringVar(&configFile, "config", "", "single configuration file")
	fs.StringVar(&configDir, "config-dir", "", "directory of configuration files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	statuses, err := loadStatuses(ctx, configFile, configDir)
	if err != nil {
		return err
	}
	printStatusReport(os.Stdout, statuses)

	valid := 0
	for _, status := range statuses {
		if status.Err != nil {
			continue
		}
		valid++

		if !status.Config.HasUnresolvedPairs() {
			continue
		}
		// Pairs with empty calendar IDs point at the primary calendar;
		// resolve them now so the report shows what a run would sync.
		session := newSession(os.Stdout, status, nil, verbose)
		if err := session.ResolvePairs(ctx); err != nil {
			fmt.Fprintf(os.Stdout, "  %s: unable to resolve primary calendars: %v\n", status.Name, err)
			continue
		}
		for _, pair := range status.Config.CalendarPairs {
			fmt.Fprintf(os.Stdout, "  %s: %s\n", status.Name, pair)
		}
	}
	if valid == 0 {
		return errors.New("no runnable configuration found")
	}
	fmt.Fprintf(os.Stdout, "%d of %d configuration(s) runnable\n", valid, len(statuses))
	return nil
}
