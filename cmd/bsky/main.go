package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func newCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:     "bsky",
		Usage:    "Talk to a Bluesky instance from the command line",
		Version:  version,
		Flags:    getFlags(),
		Commands: a.commands(),
	}
}

func newApp(out io.Writer) *app {
	return &app{out: out}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(newApp(os.Stdout))
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("error running command")
	}
}
