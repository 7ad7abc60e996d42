// Command docsample-trigger serves sample runs over HTTP, as an Azure
// Functions custom handler, or as an AWS Lambda function URL when started by
// the Lambda runtime.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/docsample/internal/backend"
	"github.com/jacentio/docsample/internal/config"
	"github.com/jacentio/docsample/sample"
	"github.com/jacentio/docsample/store"
	"github.com/jacentio/docsample/trigger"
)

const (
	envPort      = "FUNCTIONS_CUSTOMHANDLER_PORT"
	envLambdaAPI = "AWS_LAMBDA_RUNTIME_API"
	defaultPort  = "8080"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := serve(ctx, os.Args[1:], os.Getenv, os.Stderr)
	stop()
	exitFunc(code)
}

func serve(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	cfg, err := config.Load(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	open := func(ctx context.Context) (store.Collection, error) {
		return backend.Open(ctx, cfg)
	}
	h := trigger.NewHandler(open, logger, sample.DefaultOptions())

	if getenv(envLambdaAPI) != "" {
		logger.Info("starting lambda handler", "backend", cfg.Backend)
		lambda.StartWithOptions(h.HandleFunctionURL, lambda.WithContext(ctx))
		return 0
	}

	port := getenv(envPort)
	if port == "" {
		port = defaultPort
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", srv.Addr, "backend", cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}
