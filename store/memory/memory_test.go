package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jacentio/docsample/store"
	"github.com/jacentio/docsample/store/memory"
)

// --- Test Document ---

type doc struct {
	ID     string `json:"id"`
	Number uint64 `json:"number"`
}

func (d doc) DocumentID() string               { return d.ID }
func (d doc) PartitionKey() store.PartitionKey { return store.PartitionKey(d.Number) }

func seed(t *testing.T, c *memory.Collection, n int) store.Scope {
	t.Helper()
	var scope store.Scope
	for i := 0; i < n; i++ {
		res, err := c.Upsert(context.Background(), doc{ID: fmt.Sprintf("id%d", i), Number: uint64(i * 100)}, store.Scope{})
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		scope = res.Scope
	}
	return scope
}

func drain(t *testing.T, p store.Pager) []store.Page {
	t.Helper()
	var pages []store.Page
	for p.More() {
		page, err := p.NextPage(context.Background())
		if err != nil {
			t.Fatalf("next page: %v", err)
		}
		pages = append(pages, page)
	}
	return pages
}

// --- Upsert ---

func TestUpsert_ReturnsSessionAndETag(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)

	res, err := c.Upsert(context.Background(), doc{ID: "a", Number: 1}, store.Scope{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scope.IsZero() {
		t.Error("expected session token")
	}
	if res.ETag == "" {
		t.Error("expected entity tag")
	}
}

func TestUpsert_OverwritesSameID(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)
	seed(t, c, 10)
	seed(t, c, 10)

	if c.Len() != 10 {
		t.Errorf("expected 10 documents after re-upsert, got %d", c.Len())
	}
}

func TestUpsert_ChangesETag(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 1)
	ctx := context.Background()

	first, err := c.Upsert(ctx, doc{ID: "a", Number: 1}, store.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Upsert(ctx, doc{ID: "a", Number: 1}, first.Scope)
	if err != nil {
		t.Fatal(err)
	}
	if first.ETag == second.ETag {
		t.Error("expected entity tag to change on replace")
	}
}

func TestUpsert_FutureSessionNotAvailable(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 1)

	_, err := c.Upsert(context.Background(), doc{ID: "a"}, store.Session("0:-1#99"))
	if !errors.Is(err, store.ErrSessionNotAvailable) {
		t.Errorf("expected ErrSessionNotAvailable, got %v", err)
	}
}

func TestUpsert_CanceledContext(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Upsert(ctx, doc{ID: "a"}, store.Scope{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("expected nothing written")
	}
}

// --- Listing ---

func TestListPager_PagesOfThree(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)
	scope := seed(t, c, 10)

	pages := drain(t, c.NewListPager(store.ListOptions{Scope: scope, PageSize: 3}))

	total := 0
	for i, p := range pages {
		if p.Len() > 3 {
			t.Errorf("page %d has %d items, want at most 3", i, p.Len())
		}
		total += p.Len()
	}
	if total != 10 {
		t.Errorf("expected 10 documents, got %d", total)
	}
	if len(pages) != 4 {
		t.Errorf("expected 4 pages, got %d", len(pages))
	}
}

func TestListPager_Empty(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 2)
	p := c.NewListPager(store.ListOptions{})

	pages := drain(t, p)
	if len(pages) != 1 || pages[0].Len() != 0 {
		t.Errorf("expected a single empty page, got %d pages", len(pages))
	}
}

func TestListPager_ExhaustedReturnsErrNoMorePages(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 1)
	seed(t, c, 2)
	p := c.NewListPager(store.ListOptions{})
	drain(t, p)

	if _, err := p.NextPage(context.Background()); !errors.Is(err, store.ErrNoMorePages) {
		t.Errorf("expected ErrNoMorePages, got %v", err)
	}
}

func TestListPager_DefaultPageSize(t *testing.T) {
	cfg := store.DefaultConfig()
	cfg.DefaultPageSize = 4
	c := memory.New(cfg, 1)
	seed(t, c, 10)

	page, err := store.FirstPage(context.Background(), c.NewListPager(store.ListOptions{}))
	if err != nil {
		t.Fatal(err)
	}
	if page.Len() != 4 {
		t.Errorf("expected 4 items on first page, got %d", page.Len())
	}
}

func TestListPager_DecodesWithETag(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 1)
	res, err := c.Upsert(context.Background(), doc{ID: "a", Number: 7}, store.Scope{})
	if err != nil {
		t.Fatal(err)
	}

	page, err := store.FirstPage(context.Background(), c.NewListPager(store.ListOptions{Scope: res.Scope}))
	if err != nil {
		t.Fatal(err)
	}
	docs, err := store.DecodeItems[doc](page)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "a" || docs[0].Number != 7 {
		t.Errorf("unexpected documents: %+v", docs)
	}
	if page.Items[0].ETag != res.ETag {
		t.Errorf("expected etag %q, got %q", res.ETag, page.Items[0].ETag)
	}
}

// --- Query ---

func TestQueryPager_FiltersBelow(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)
	scope := seed(t, c, 10)

	pages := drain(t, c.NewQueryPager(
		store.Filter{Field: "number", Below: 600},
		store.QueryOptions{Scope: scope, CrossPartition: true},
	))
	if len(pages) != 1 {
		t.Fatalf("expected a single page, got %d", len(pages))
	}
	docs, err := store.DecodeItems[doc](pages[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 6 {
		t.Fatalf("expected 6 matches, got %d", len(docs))
	}
	for _, d := range docs {
		if d.Number >= 600 {
			t.Errorf("unexpected match %+v", d)
		}
	}
}

func TestQueryPager_RequiresCrossPartition(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)
	seed(t, c, 3)

	p := c.NewQueryPager(store.Filter{Field: "other", Below: 1}, store.QueryOptions{})
	if _, err := p.NextPage(context.Background()); err == nil {
		t.Error("expected error without cross-partition execution")
	}
	if p.More() {
		t.Error("expected pager to be exhausted after error")
	}
}

func TestQueryPager_NoMatches(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)
	seed(t, c, 10)

	page, err := store.FirstPage(context.Background(), c.NewQueryPager(
		store.Filter{Field: "number", Below: 0},
		store.QueryOptions{CrossPartition: true},
	))
	if err != nil {
		t.Fatal(err)
	}
	if page.Len() != 0 {
		t.Errorf("expected no matches, got %d", page.Len())
	}
}

func TestUpsert_LargeNumberRoundTrip(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 4)
	ctx := context.Background()
	const big = uint64(1<<60 + 1)

	if _, err := c.Upsert(ctx, doc{ID: "big", Number: big}, store.Scope{}); err != nil {
		t.Fatal(err)
	}

	pages := drain(t, c.NewListPager(store.ListOptions{}))
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	docs, err := store.DecodeItems[doc](pages[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 1 || docs[0].Number != big {
		t.Fatalf("expected number %d, got %+v", big, docs)
	}

	_, err = c.Delete(ctx, docs[0].ID, docs[0].PartitionKey(), store.DeleteOptions{IfMatch: pages[0].Items[0].ETag})
	if err != nil {
		t.Fatalf("delete by listed key: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty collection, got %d", c.Len())
	}
}

// --- Delete ---

func TestDelete_MatchingETag(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 2)
	res, err := c.Upsert(context.Background(), doc{ID: "a", Number: 5}, store.Scope{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Delete(context.Background(), "a", 5, store.DeleteOptions{Scope: res.Scope, IfMatch: res.ETag})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty collection, got %d", c.Len())
	}
}

func TestDelete_StaleETag(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 2)
	ctx := context.Background()
	first, err := c.Upsert(ctx, doc{ID: "a", Number: 5}, store.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Upsert(ctx, doc{ID: "a", Number: 5}, first.Scope); err != nil {
		t.Fatal(err)
	}

	_, err = c.Delete(ctx, "a", 5, store.DeleteOptions{IfMatch: first.ETag})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expected document to survive, got %d documents", c.Len())
	}
}

func TestDelete_WrongPartitionKey(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 2)
	seed(t, c, 2)

	_, err := c.Delete(context.Background(), "id1", 999, store.DeleteOptions{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_AdvancesSession(t *testing.T) {
	c := memory.New(store.DefaultConfig(), 1)
	scope := seed(t, c, 1)

	res, err := c.Delete(context.Background(), "id0", 0, store.DeleteOptions{Scope: scope})
	if err != nil {
		t.Fatal(err)
	}
	if res.Scope == scope {
		t.Error("expected a newer session token after delete")
	}
	if _, err := store.FirstPage(context.Background(), c.NewListPager(store.ListOptions{Scope: res.Scope})); err != nil {
		t.Errorf("expected delete scope to be readable, got %v", err)
	}
}
