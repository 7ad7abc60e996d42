// Package store defines the document collection contract consumed by the sample.
//
// The database service owns transport, authentication, query execution,
// partitioning and session consistency. This package only names the surface
// the sample relies on, so that the same flow can run against Azure Cosmos DB,
// Amazon DynamoDB, or an in-process collection.
//
// # Documents
//
// Everything written through a [Collection] implements [Document]:
//
//	type Document interface {
//	    DocumentID() string
//	    PartitionKey() PartitionKey
//	}
//
// The partition key must be supplied again whenever a document is addressed
// directly (delete). It never changes for a given document.
//
// # Consistency
//
// Writes and page fetches return a [Scope] carrying the session token observed
// by that operation. Passing the scope into the next call guarantees the call
// sees at least the effects of the operation that produced it.
//
// # Paging
//
// Listings and queries return a [Pager]. Pages are fetched on demand:
//
//	pager := coll.NewListPager(store.ListOptions{Scope: scope, PageSize: 3})
//	for pager.More() {
//	    page, err := pager.NextPage(ctx)
//	    ...
//	}
//
// A pager is finite and cannot be restarted.
//
// # Errors
//
//   - [ErrPreconditionFailed] - entity tag did not match on a conditional delete
//   - [ErrNotFound] - document doesn't exist
//   - [ErrNoMorePages] - NextPage called on an exhausted pager
//   - [ErrSessionNotAvailable] - scope names a session the replica hasn't caught up to
package store
