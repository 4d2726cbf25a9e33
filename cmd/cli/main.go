package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Satyam1603/GoTogether/internal/client/cli"
	"github.com/Satyam1603/GoTogether/internal/client/config"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	root := cli.NewRootCmd(cfg, os.Stdin, os.Stdout)
	root.Version = version
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", cli.Describe(err))
		stop()
		os.Exit(1)
	}
}
