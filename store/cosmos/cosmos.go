// Package cosmos implements store.Collection over an Azure Cosmos DB container.
package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/jacentio/docsample/store"
)

const (
	// listAlias is the alias used by listing queries.
	listAlias = "c"
	// queryAlias is the alias used by filter queries.
	queryAlias = "A"

	sessionTokenHeader    = "x-ms-session-token"
	partitionKeyHeader    = "x-ms-documentdb-partitionkey"
	crossPartitionHeader  = "x-ms-documentdb-query-enablecrosspartition"
	contentTypeHeader     = "Content-Type"
	queryContentType      = "application/query+json"
	emptyPartitionKeyJSON = "[]"
)

// allPartitions is a partition key with no components. The SDK renders it as
// an empty key header, which crossPartitionPolicy rewrites into a fan-out.
var allPartitions azcosmos.PartitionKey

// Options holds explicit construction parameters for Open.
type Options struct {
	// Account is the Cosmos DB account name.
	Account string

	// PrimaryKey is the base64-encoded account key.
	PrimaryKey string

	// Location is the preferred region for requests.
	Location string

	// Endpoint overrides the account endpoint (e.g. the emulator).
	Endpoint string

	Database   string
	Collection string

	// Transport overrides the HTTP transport used by the client.
	Transport policy.Transporter
}

// endpoint returns the account endpoint, honoring an explicit override.
func (o Options) endpoint() string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	return fmt.Sprintf("https://%s.documents.azure.com:443/", o.Account)
}

// Collection provides store.Collection operations on one container.
type Collection struct {
	container *azcosmos.ContainerClient
	config    store.Config
}

// Open builds an authenticated client and a container handle.
// No existence check is made: a missing database or container surfaces on first use.
func Open(opts Options, config store.Config) (*Collection, error) {
	config.Validate()

	cred, err := azcosmos.NewKeyCredential(opts.PrimaryKey)
	if err != nil {
		return nil, fmt.Errorf("cosmos key: %w", err)
	}

	var clientOpts azcosmos.ClientOptions
	clientOpts.PerCallPolicies = []policy.Policy{crossPartitionPolicy{}}
	if opts.Transport != nil {
		clientOpts.Transport = opts.Transport
	}
	if opts.Location != "" {
		clientOpts.PreferredRegions = []string{opts.Location}
	}
	client, err := azcosmos.NewClientWithKey(opts.endpoint(), cred, &clientOpts)
	if err != nil {
		return nil, fmt.Errorf("cosmos client: %w", err)
	}

	container, err := client.NewContainer(opts.Database, opts.Collection)
	if err != nil {
		return nil, fmt.Errorf("cosmos container %s/%s: %w", opts.Database, opts.Collection, err)
	}

	return &Collection{container: container, config: config}, nil
}

func partitionKey(pk store.PartitionKey) azcosmos.PartitionKey {
	return azcosmos.NewPartitionKeyNumber(float64(pk))
}

func sessionScope(token *string) store.Scope {
	if token == nil {
		return store.Scope{}
	}
	return store.Session(*token)
}

func sessionToken(scope store.Scope) *string {
	if scope.IsZero() {
		return nil
	}
	token := scope.SessionToken
	return &token
}

// Upsert creates or replaces the document.
func (c *Collection) Upsert(ctx context.Context, doc store.Document, scope store.Scope) (store.WriteResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("marshal document: %w", err)
	}

	resp, err := c.container.UpsertItem(ctx, partitionKey(doc.PartitionKey()), body, &azcosmos.ItemOptions{
		SessionToken: sessionToken(scope),
	})
	if err != nil {
		return store.WriteResult{}, mapError(err)
	}

	return store.WriteResult{
		Scope: sessionScope(resp.SessionToken),
		ETag:  store.ETag(resp.ETag),
	}, nil
}

// Delete removes the document. With opts.IfMatch set, the stored entity tag must match.
func (c *Collection) Delete(ctx context.Context, id string, pk store.PartitionKey, opts store.DeleteOptions) (store.WriteResult, error) {
	itemOpts := &azcosmos.ItemOptions{SessionToken: sessionToken(opts.Scope)}
	if opts.IfMatch != "" {
		etag := azcore.ETag(opts.IfMatch)
		itemOpts.IfMatchEtag = &etag
	}

	resp, err := c.container.DeleteItem(ctx, partitionKey(pk), id, itemOpts)
	if err != nil {
		return store.WriteResult{}, mapError(err)
	}
	return store.WriteResult{Scope: sessionScope(resp.SessionToken)}, nil
}

// NewListPager lists every document with a cross-partition SELECT.
func (c *Collection) NewListPager(opts store.ListOptions) store.Pager {
	query := fmt.Sprintf("SELECT * FROM %s", listAlias)
	return c.query(query, opts.Scope, opts.PageSize)
}

// NewQueryPager runs the filter as a SQL query. Cosmos DB requires either a
// partition key or cross-partition execution; the filter never names one, so
// CrossPartition must be set.
func (c *Collection) NewQueryPager(filter store.Filter, opts store.QueryOptions) store.Pager {
	if !opts.CrossPartition {
		return &pager{err: fmt.Errorf("query on %q requires cross-partition execution", filter.Field)}
	}
	return c.query(filter.SQL(queryAlias), opts.Scope, opts.PageSize)
}

func (c *Collection) query(query string, scope store.Scope, pageSize int32) store.Pager {
	consistency := azcosmos.ConsistencyLevelSession
	queryOpts := &azcosmos.QueryOptions{
		SessionToken: sessionToken(scope),
		PageSizeHint: c.config.PageSize(pageSize),
	}
	if !scope.IsZero() {
		queryOpts.ConsistencyLevel = &consistency
	}
	return &pager{
		pager: c.container.NewQueryItemsPager(query, allPartitions, queryOpts),
		scope: scope,
	}
}

// crossPartitionPolicy runs queries issued with allPartitions across every
// physical partition. The gateway serves filters and projections this way;
// aggregates and ORDER BY would need a query plan.
type crossPartitionPolicy struct{}

func (crossPartitionPolicy) Do(req *policy.Request) (*http.Response, error) {
	h := req.Raw().Header
	if h.Get(contentTypeHeader) == queryContentType && h.Get(partitionKeyHeader) == emptyPartitionKeyJSON {
		h.Del(partitionKeyHeader)
		h.Set(crossPartitionHeader, "True")
	}
	return req.Next()
}

type pager struct {
	pager *runtime.Pager[azcosmos.QueryItemsResponse]
	scope store.Scope
	err   error
	done  bool
}

func (p *pager) More() bool {
	if p.done {
		return false
	}
	if p.err != nil {
		return true
	}
	return p.pager.More()
}

func (p *pager) NextPage(ctx context.Context) (store.Page, error) {
	if !p.More() {
		return store.Page{}, store.ErrNoMorePages
	}
	if p.err != nil {
		p.done = true
		return store.Page{}, p.err
	}

	resp, err := p.pager.NextPage(ctx)
	if err != nil {
		return store.Page{}, mapError(err)
	}

	items := make([]store.Item, 0, len(resp.Items))
	for _, raw := range resp.Items {
		items = append(items, store.Item{Raw: raw, ETag: itemETag(raw)})
	}

	// Query responses carry the session token only as a header
	scope := p.scope
	if resp.RawResponse != nil {
		if token := resp.RawResponse.Header.Get(sessionTokenHeader); token != "" {
			scope = store.Session(token)
		}
	}
	return store.Page{Items: items, Scope: scope}, nil
}

// itemETag reads the "_etag" system property from a document body.
func itemETag(raw []byte) store.ETag {
	var sys struct {
		ETag string `json:"_etag"`
	}
	if err := json.Unmarshal(raw, &sys); err != nil {
		return ""
	}
	return store.ETag(sys.ETag)
}

// mapError maps Cosmos DB status codes onto store errors.
func mapError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %w", store.ErrPreconditionFailed, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}
	}
	return err
}
