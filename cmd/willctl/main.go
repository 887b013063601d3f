package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/YounesEssl/zlegacy-sub000/internal/cli"
	"github.com/YounesEssl/zlegacy-sub000/internal/config"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
)

var draftPath = flag.String("draft", "draft.json", "Path to the will draft file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	app := &cli.App{Out: os.Stdout, Err: os.Stderr}
	cli.Register(commander, app)

	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	policy, err := portfolio.ParseWritePolicy(cfg.Allocation.OverAllocationPolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	// Logs stay quiet unless LOG_LEVEL asks for more
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "error"
	}
	logger, err := logging.NewLogger(logging.Config{Level: cfg.Logging.Level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	app.DraftPath = *draftPath
	app.Config = cfg
	app.Policy = policy
	app.Logger = logger

	status := commander.Execute(context.Background())
	_ = logger.Sync()
	os.Exit(int(status))
}
