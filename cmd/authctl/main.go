package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NordCoder/Tokengate/internal/client/cli"
	"github.com/NordCoder/Tokengate/internal/obs"
)

func main() {
	addr := flag.String("addr", envOr("TOKENGATE_ADDR", "http://localhost:8080"), "auth API base URL")
	lang := flag.String("lang", os.Getenv("TOKENGATE_LANG"), "preferred message language (Accept-Language)")
	sessionPath := flag.String("session", cli.DefaultSessionPath(), "session file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, cli.Usage()) }
	flag.Parse()

	level := "error"
	if *verbose {
		level = "debug"
	}
	log, err := obs.NewLogger(obs.LogConfig{Level: level, Pretty: true, App: "tokengate/authctl"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.New(cli.Options{
		Addr:        *addr,
		Lang:        *lang,
		SessionPath: *sessionPath,
		In:          os.Stdin,
		Out:         os.Stdout,
		Logger:      log,
	})
	if err := app.Run(ctx, flag.Args()); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprint(os.Stderr, cli.Usage())
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
