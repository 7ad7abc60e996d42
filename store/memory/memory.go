// Package memory provides an in-process store.Collection with hash
// partitioning, session tokens and entity tags.
package memory

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/docsample/internal/shard"
	"github.com/jacentio/docsample/store"
)

// Collection is an in-memory document collection.
type Collection struct {
	mu         sync.Mutex
	config     store.Config
	partitions []map[docKey]*entry
	lsn        uint64
}

type docKey struct {
	pk store.PartitionKey
	id string
}

type entry struct {
	key  docKey
	raw  json.RawMessage
	doc  map[string]any
	etag store.ETag
}

// New creates an empty collection spread over numPartitions physical partitions.
func New(config store.Config, numPartitions int) *Collection {
	config.Validate()
	if numPartitions < 1 {
		numPartitions = 1
	}
	partitions := make([]map[docKey]*entry, numPartitions)
	for i := range partitions {
		partitions[i] = make(map[docKey]*entry)
	}
	return &Collection{
		config:     config,
		partitions: partitions,
	}
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.partitions {
		n += len(p)
	}
	return n
}

func (c *Collection) partitionFor(pk store.PartitionKey) int {
	return shard.For(pk.String(), len(c.partitions))
}

// checkScope fails when the scope names an LSN this collection has not reached.
// Callers hold c.mu.
func (c *Collection) checkScope(scope store.Scope) error {
	if scope.IsZero() {
		return nil
	}
	_, lsn, err := shard.ParseSessionToken(scope.SessionToken)
	if err != nil {
		return err
	}
	if lsn > c.lsn {
		return fmt.Errorf("%w: token lsn %d, collection lsn %d", store.ErrSessionNotAvailable, lsn, c.lsn)
	}
	return nil
}

// Upsert inserts or replaces the document.
func (c *Collection) Upsert(ctx context.Context, doc store.Document, scope store.Scope) (store.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return store.WriteResult{}, err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("marshal document: %w", err)
	}
	// Numbers stay json.Number so uint64 values above 2^53 survive a round trip.
	fields := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return store.WriteResult{}, fmt.Errorf("document %q is not a JSON object: %w", doc.DocumentID(), err)
	}

	etag := store.ETag(`"` + uuid.NewString() + `"`)
	fields["_etag"] = string(etag)
	raw, err := json.Marshal(fields)
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("marshal document: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkScope(scope); err != nil {
		return store.WriteResult{}, err
	}

	key := docKey{pk: doc.PartitionKey(), id: doc.DocumentID()}
	partition := c.partitionFor(key.pk)
	c.lsn++
	c.partitions[partition][key] = &entry{key: key, raw: raw, doc: fields, etag: etag}

	return store.WriteResult{
		Scope: store.Session(shard.SessionToken(partition, c.lsn)),
		ETag:  etag,
	}, nil
}

// Delete removes the document, honoring opts.IfMatch.
func (c *Collection) Delete(ctx context.Context, id string, pk store.PartitionKey, opts store.DeleteOptions) (store.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return store.WriteResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkScope(opts.Scope); err != nil {
		return store.WriteResult{}, err
	}

	key := docKey{pk: pk, id: id}
	partition := c.partitionFor(pk)
	e, ok := c.partitions[partition][key]
	if !ok {
		return store.WriteResult{}, store.ErrNotFound
	}
	if opts.IfMatch != "" && opts.IfMatch != e.etag {
		return store.WriteResult{}, store.ErrPreconditionFailed
	}

	delete(c.partitions[partition], key)
	c.lsn++

	return store.WriteResult{Scope: store.Session(shard.SessionToken(partition, c.lsn))}, nil
}

// NewListPager returns a pager over every document.
func (c *Collection) NewListPager(opts store.ListOptions) store.Pager {
	return &pager{
		coll:     c,
		scope:    opts.Scope,
		pageSize: int(c.config.PageSize(opts.PageSize)),
	}
}

// NewQueryPager returns a pager over documents matching the filter.
// Single-partition queries are not supported without CrossPartition, matching
// the service's requirement that such filters name the partition key.
func (c *Collection) NewQueryPager(filter store.Filter, opts store.QueryOptions) store.Pager {
	p := &pager{
		coll:     c,
		scope:    opts.Scope,
		pageSize: int(c.config.PageSize(opts.PageSize)),
		filter:   &filter,
	}
	if !opts.CrossPartition && filter.Field != c.config.PartitionKeyField {
		p.err = fmt.Errorf("query on %q spans partitions: cross-partition execution not enabled", filter.Field)
	}
	return p
}

// snapshot returns matching entries ordered by partition, then partition key, then id.
// Callers hold c.mu.
func (c *Collection) snapshot(filter *store.Filter) []*entry {
	var out []*entry
	for _, p := range c.partitions {
		part := make([]*entry, 0, len(p))
		for _, e := range p {
			if filter != nil && !filter.Match(e.doc) {
				continue
			}
			part = append(part, e)
		}
		slices.SortFunc(part, func(a, b *entry) int {
			if n := cmp.Compare(a.key.pk, b.key.pk); n != 0 {
				return n
			}
			return cmp.Compare(a.key.id, b.key.id)
		})
		out = append(out, part...)
	}
	return out
}

type pager struct {
	coll     *Collection
	scope    store.Scope
	pageSize int
	filter   *store.Filter
	offset   int
	done     bool
	err      error
}

func (p *pager) More() bool {
	return !p.done
}

func (p *pager) NextPage(ctx context.Context) (store.Page, error) {
	if p.done {
		return store.Page{}, store.ErrNoMorePages
	}
	if p.err != nil {
		p.done = true
		return store.Page{}, p.err
	}
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}

	p.coll.mu.Lock()
	defer p.coll.mu.Unlock()

	if err := p.coll.checkScope(p.scope); err != nil {
		p.done = true
		return store.Page{}, err
	}

	all := p.coll.snapshot(p.filter)
	end := min(p.offset+p.pageSize, len(all))
	var items []store.Item
	if p.offset < end {
		items = make([]store.Item, 0, end-p.offset)
		for _, e := range all[p.offset:end] {
			items = append(items, store.Item{Raw: e.raw, ETag: e.etag})
		}
	}
	p.offset = end
	if p.offset >= len(all) {
		p.done = true
	}

	return store.Page{
		Items: items,
		Scope: store.Session(shard.SessionToken(0, p.coll.lsn)),
	}, nil
}
