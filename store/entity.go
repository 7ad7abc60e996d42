package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PartitionKey is a numeric partition key value.
type PartitionKey uint64

// String returns the decimal form of the key.
func (pk PartitionKey) String() string {
	return strconv.FormatUint(uint64(pk), 10)
}

// Document is the base interface for all storable types.
type Document interface {
	// DocumentID returns the id, unique within the collection.
	DocumentID() string

	// PartitionKey returns the value that routes the document to a partition.
	PartitionKey() PartitionKey
}

// ETag is an opaque version marker used for optimistic concurrency.
type ETag string

// Scope is the consistency scope an operation runs under.
// The zero value means "no session": the backend's default consistency applies.
type Scope struct {
	// SessionToken is the opaque token returned by the last operation of the session.
	SessionToken string
}

// Session returns a scope bound to the given session token.
func Session(token string) Scope {
	return Scope{SessionToken: token}
}

// IsZero reports whether the scope carries no session token.
func (s Scope) IsZero() bool {
	return s.SessionToken == ""
}

// Item is a single document returned by a listing or query.
type Item struct {
	// Raw is the document body as JSON, including any service-managed fields.
	Raw json.RawMessage

	// ETag is the document's current entity tag.
	ETag ETag
}

// Page is one page of a listing or query.
type Page struct {
	// Items holds the documents on this page, in service order.
	Items []Item

	// Scope carries the session token returned with the page.
	Scope Scope
}

// Len returns the number of documents on the page.
func (p Page) Len() int {
	return len(p.Items)
}

// WriteResult is returned by upserts and deletes.
type WriteResult struct {
	// Scope carries the session token returned by the write.
	Scope Scope

	// ETag is the entity tag of the written document (empty for deletes).
	ETag ETag
}

// Filter selects documents whose numeric Field is strictly below a bound.
type Filter struct {
	// Field is the document attribute compared.
	Field string

	// Below is the exclusive upper bound.
	Below uint64
}

// SQL renders the filter as a Cosmos DB SQL query over the given alias.
func (f Filter) SQL(alias string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s.%s < %d", alias, alias, f.Field, f.Below)
}

// Match reports whether a decoded document satisfies the filter.
// Documents without the field, or with a non-numeric value, do not match.
func (f Filter) Match(doc map[string]any) bool {
	switch v := doc[f.Field].(type) {
	case float64:
		return v < float64(f.Below)
	case json.Number:
		if n, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return n < f.Below
		}
		n, err := v.Float64()
		return err == nil && n < float64(f.Below)
	default:
		return false
	}
}

// ListOptions configures a listing.
type ListOptions struct {
	// Scope is the consistency scope for every page fetch.
	Scope Scope

	// PageSize is the maximum number of documents per page (0 = backend default).
	PageSize int32
}

// QueryOptions configures a query.
type QueryOptions struct {
	// Scope is the consistency scope for every page fetch.
	Scope Scope

	// CrossPartition allows the query to fan out over every partition.
	CrossPartition bool

	// PageSize is the maximum number of documents per page (0 = backend default).
	PageSize int32
}

// DeleteOptions configures a delete.
type DeleteOptions struct {
	// Scope is the consistency scope for the delete.
	Scope Scope

	// IfMatch, when set, makes the delete conditional on the current entity tag.
	IfMatch ETag
}
