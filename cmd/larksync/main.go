package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	verbose := flag.Bool("v", false, "verbose provider logging")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case RunCommand.Name:
		err = RunCommand.Run(ctx, *verbose, args[1:])
	case ValidateCommand.Name:
		err = ValidateCommand.Run(ctx, *verbose, args[1:])
	case HistoryCommand.Name:
		err = HistoryCommand.Run(ctx, *verbose, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: %s [options] <command> [command options]\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  %-10s %s\n", RunCommand.Name, RunCommand.Description)
	fmt.Fprintf(w, "  %-10s %s\n", ValidateCommand.Name, ValidateCommand.Description)
	fmt.Fprintf(w, "  %-10s %s\n", HistoryCommand.Name, HistoryCommand.Description)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	flag.PrintDefaults()
}
