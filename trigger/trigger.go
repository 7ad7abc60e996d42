// Package trigger runs the sample on request, over HTTP or as an AWS Lambda
// function URL.
package trigger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacentio/docsample/internal/metrics"
	"github.com/jacentio/docsample/sample"
	"github.com/jacentio/docsample/store"
)

// RunPath is the route that starts a run. It keeps the function name the
// sample was first deployed under.
const RunPath = "/api/HttpTrigger1"

const contentType = "text/plain; charset=utf-8"

// Opener returns the collection a run works against.
type Opener func(ctx context.Context) (store.Collection, error)

// Handler serializes sample runs. Runs share record ids, so a request that
// arrives while another run is in progress is refused.
type Handler struct {
	open     Opener
	logger   *slog.Logger
	opts     sample.Options
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	mu       sync.Mutex
}

// NewHandler creates a new trigger handler.
func NewHandler(open Opener, logger *slog.Logger, opts sample.Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	return &Handler{
		open:     open,
		logger:   logger,
		opts:     opts,
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// Router returns the HTTP routes: the run trigger, health and metrics.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	r.Get(RunPath, h.serveRun)
	r.Post(RunPath, h.serveRun)
	return r
}

func (h *Handler) serveRun(w http.ResponseWriter, r *http.Request) {
	status, body := h.run(r.Context())
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// HandleFunctionURL runs the sample for a Lambda function URL invocation.
func (h *Handler) HandleFunctionURL(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	h.logger.Info("function URL invocation", "requestID", req.RequestContext.RequestID)
	status, body := h.run(ctx)
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": contentType},
		Body:       string(body),
	}, nil
}

// run executes one sample run and returns the status code and progress text.
func (h *Handler) run(ctx context.Context) (int, []byte) {
	if !h.mu.TryLock() {
		return http.StatusConflict, []byte("a run is already in progress\n")
	}
	defer h.mu.Unlock()

	var out bytes.Buffer
	coll, err := h.open(ctx)
	if err != nil {
		h.metrics.ObserveRun(err)
		h.logger.Error("failed to open collection", "error", err)
		fmt.Fprintf(&out, "error: %v\n", err)
		return http.StatusInternalServerError, out.Bytes()
	}

	s := sample.New(coll, &out, h.logger, h.opts)
	s.SetObserver(h.metrics)
	report, err := s.Run(ctx)
	h.metrics.ObserveRun(err)
	if err != nil {
		h.logger.Error("run failed", "runID", report.RunID, "error", err)
		fmt.Fprintf(&out, "error: %v\n", err)
		return http.StatusInternalServerError, out.Bytes()
	}
	return http.StatusOK, out.Bytes()
}
