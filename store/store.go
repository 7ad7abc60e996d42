package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection is a handle to a single document collection.
type Collection interface {
	// Upsert inserts the document, or replaces the stored document with the same id.
	Upsert(ctx context.Context, doc Document, scope Scope) (WriteResult, error)

	// NewListPager returns a pager over every document in the collection.
	NewListPager(opts ListOptions) Pager

	// NewQueryPager returns a pager over the documents matching the filter.
	NewQueryPager(filter Filter, opts QueryOptions) Pager

	// Delete removes the document with the given id and partition key.
	Delete(ctx context.Context, id string, pk PartitionKey, opts DeleteOptions) (WriteResult, error)
}

// Pager is a pull-based, finite, non-restartable sequence of pages.
type Pager interface {
	// More reports whether another page can be fetched.
	More() bool

	// NextPage fetches the next page. It returns ErrNoMorePages once exhausted.
	NextPage(ctx context.Context) (Page, error)
}

// DecodeItems unmarshals every item on the page into T.
func DecodeItems[T any](page Page) ([]T, error) {
	out := make([]T, 0, len(page.Items))
	for i, item := range page.Items {
		var v T
		if err := json.Unmarshal(item.Raw, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FirstPage fetches a single page from the pager.
// A pager with no pages yields an empty page and no error.
func FirstPage(ctx context.Context, p Pager) (Page, error) {
	if !p.More() {
		return Page{}, nil
	}
	return p.NextPage(ctx)
}
