// Command docsample walks a document collection through insert, paged
// listing, cross-partition query, conditional delete and verification.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jacentio/docsample/internal/backend"
	"github.com/jacentio/docsample/internal/config"
	"github.com/jacentio/docsample/sample"
	"github.com/jacentio/docsample/store"
)

var (
	exitFunc = os.Exit
	openFunc = backend.Open
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

// cli runs the sample and returns the process exit code.
func cli(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	coll, err := openFunc(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if err := run(ctx, coll, stdout, logger); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, coll store.Collection, stdout io.Writer, logger *slog.Logger) error {
	s := sample.New(coll, stdout, logger, sample.DefaultOptions())
	_, err := s.Run(ctx)
	return err
}
