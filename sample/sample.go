// Package sample runs the document database walkthrough: insert, page through,
// query across partitions, delete conditionally, and verify what is left.
//
// Every stage takes the consistency scope produced by the stage before it and
// returns the scope for the next one. Stages can be invoked on their own; Run
// chains them and stops at the first error.
package sample

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/docsample/store"
)

// Stage names a step of the run.
type Stage string

const (
	StageInsert Stage = "insert"
	StageList   Stage = "list"
	StageQuery  Stage = "query"
	StageDelete Stage = "delete"
	StageVerify Stage = "verify"
)

// Observer is notified when a stage finishes.
type Observer interface {
	ObserveStage(stage Stage, elapsed time.Duration, err error)
}

// Sample drives the walkthrough against one collection.
type Sample struct {
	coll     store.Collection
	out      io.Writer
	logger   *slog.Logger
	opts     Options
	observer Observer
}

// New creates a Sample writing progress lines to out.
func New(coll store.Collection, out io.Writer, logger *slog.Logger, opts Options) *Sample {
	if logger == nil {
		logger = slog.Default()
	}
	opts.validate()
	return &Sample{
		coll:   coll,
		out:    out,
		logger: logger,
		opts:   opts,
	}
}

// SetObserver sets the stage observer.
func (s *Sample) SetObserver(o Observer) {
	s.observer = o
}

func (s *Sample) observe(stage Stage, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveStage(stage, time.Since(start), err)
	}
}

// Match is a query result together with the entity tag it was read at.
type Match struct {
	Record Record
	ETag   store.ETag
}

// QueryResult is the first page of the delete query.
type QueryResult struct {
	Matches []Match

	// Scope is the session scope returned with the page.
	Scope store.Scope

	// Truncated reports that the service had more pages. Only the first page
	// is processed; later matches are left in place.
	Truncated bool
}

// Report summarizes a completed run.
type Report struct {
	RunID     string
	Inserted  int
	Listed    int
	Matched   int
	Deleted   int
	Remaining int
	Truncated bool
}

// Insert upserts Count records and returns the scope of the last write.
// A failed write aborts the loop; earlier writes are kept.
func (s *Sample) Insert(ctx context.Context) (scope store.Scope, err error) {
	start := time.Now()
	defer func() { s.observe(StageInsert, start, err) }()

	fmt.Fprintf(s.out, "Inserting %d documents...\n", s.opts.Count)
	for i := 0; i < s.opts.Count; i++ {
		rec := NewRecord(s.opts.IDPrefix, i, s.opts.Step, s.opts.Now().Unix())
		res, err := s.coll.Upsert(ctx, rec, scope)
		if err != nil {
			return store.Scope{}, fmt.Errorf("insert %s: %w", rec.ID, err)
		}
		scope = res.Scope
		s.logger.Debug("upserted record", "id", rec.ID, "number", rec.Number, "etag", res.ETag)
	}
	fmt.Fprintln(s.out, "Done!")

	return scope, nil
}

// List streams every record in pages of PageSize and returns how many were seen.
func (s *Sample) List(ctx context.Context, scope store.Scope) (total int, err error) {
	start := time.Now()
	defer func() { s.observe(StageList, start, err) }()

	fmt.Fprintln(s.out, "\nStreaming documents")
	pager := s.coll.NewListPager(store.ListOptions{Scope: scope, PageSize: s.opts.PageSize})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return total, fmt.Errorf("list page: %w", err)
		}
		records, err := store.DecodeItems[Record](page)
		if err != nil {
			return total, fmt.Errorf("list page: %w", err)
		}

		fmt.Fprintf(s.out, "received %d documents in one batch!\n", len(records))
		for _, rec := range records {
			fmt.Fprintf(s.out, "Document: %+v\n", rec)
		}
		total += len(records)
	}

	return total, nil
}

// Query runs the cross-partition "number below" query and keeps its first page.
func (s *Sample) Query(ctx context.Context, scope store.Scope) (res QueryResult, err error) {
	start := time.Now()
	defer func() { s.observe(StageQuery, start, err) }()

	filter := store.Filter{Field: "number", Below: s.opts.Below}
	fmt.Fprintln(s.out, "\nQuerying documents")
	s.logger.Debug("running query", "query", filter.SQL("A"))

	pager := s.coll.NewQueryPager(filter, store.QueryOptions{Scope: scope, CrossPartition: true})
	page, err := store.FirstPage(ctx, pager)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	records, err := store.DecodeItems[Record](page)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}

	res = QueryResult{
		Matches:   make([]Match, len(records)),
		Scope:     page.Scope,
		Truncated: pager.More(),
	}
	if res.Scope.IsZero() {
		res.Scope = scope
	}
	for i, rec := range records {
		res.Matches[i] = Match{Record: rec, ETag: page.Items[i].ETag}
	}
	if res.Truncated {
		s.logger.Warn("query returned more than one page; only the first is processed",
			"matched", len(records),
		)
	}

	fmt.Fprintf(s.out, "Received %d documents!\n", len(res.Matches))
	for _, m := range res.Matches {
		fmt.Fprintf(s.out, "number ==> %d\n", m.Record.Number)
	}

	return res, nil
}

// Delete removes every matched record, requiring its entity tag to be unchanged.
// It returns the scope for the next read and how many records were deleted.
// A failed delete aborts the loop; earlier deletes are kept.
func (s *Sample) Delete(ctx context.Context, res QueryResult) (scope store.Scope, deleted int, err error) {
	start := time.Now()
	defer func() { s.observe(StageDelete, start, err) }()

	scope = res.Scope
	for _, m := range res.Matches {
		fmt.Fprintf(s.out, "deleting id == %s, a_number == %d.\n", m.Record.ID, m.Record.Number)

		out, err := s.coll.Delete(ctx, m.Record.ID, m.Record.PartitionKey(), store.DeleteOptions{
			Scope:   res.Scope,
			IfMatch: m.ETag,
		})
		if err != nil {
			return scope, deleted, fmt.Errorf("delete %s: %w", m.Record.ID, err)
		}
		if !out.Scope.IsZero() {
			scope = out.Scope
		}
		deleted++
	}

	return scope, deleted, nil
}

// Verify checks the collection after the run. See the package-level Verify.
func (s *Sample) Verify(ctx context.Context, scope store.Scope) (n int, err error) {
	start := time.Now()
	defer func() { s.observe(StageVerify, start, err) }()
	return Verify(ctx, s.coll, scope, s.opts.Expected)
}

// Run executes every stage in order and stops at the first error.
func (s *Sample) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger := s.logger.With("run", report.RunID)
	logger.Info("starting run", "count", s.opts.Count, "below", s.opts.Below)

	scope, err := s.Insert(ctx)
	if err != nil {
		return report, err
	}
	report.Inserted = s.opts.Count

	report.Listed, err = s.List(ctx, scope)
	if err != nil {
		return report, err
	}

	res, err := s.Query(ctx, scope)
	if err != nil {
		return report, err
	}
	report.Matched = len(res.Matches)
	report.Truncated = res.Truncated

	scope, report.Deleted, err = s.Delete(ctx, res)
	if err != nil {
		return report, err
	}

	report.Remaining, err = s.Verify(ctx, scope)
	if err != nil {
		return report, err
	}

	logger.Info("run completed",
		"inserted", report.Inserted,
		"listed", report.Listed,
		"deleted", report.Deleted,
		"remaining", report.Remaining,
	)
	return report, nil
}
