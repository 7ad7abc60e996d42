// Package dynamo implements store.Collection over a DynamoDB table.
//
// The table is keyed by the partition key field (N) and the id field (S).
// DynamoDB has no entity tags or session tokens, so the collection keeps an
// "_etag" attribute refreshed on every write and issues synthetic session
// tokens; a non-empty scope switches reads to strongly consistent.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/docsample/store"
)

const (
	etagAttr      = "_etag"
	sessionPrefix = "dynamodb:"
)

// API is the subset of the DynamoDB client used by Collection.
type API interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Options holds explicit construction parameters for Open.
type Options struct {
	Region   string
	Table    string
	Endpoint string // optional; e.g. DynamoDB Local
}

// Collection provides store.Collection operations on one table.
type Collection struct {
	client API
	table  string
	config store.Config
}

// New creates a Collection over an existing client.
func New(client API, table string, config store.Config) *Collection {
	config.Validate()
	return &Collection{
		client: client,
		table:  table,
		config: config,
	}
}

// Open loads the default AWS configuration and returns a Collection for opts.Table.
func Open(ctx context.Context, opts Options, config store.Config) (*Collection, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("dynamodb table required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return New(client, opts.Table, config), nil
}

// key builds the primary key for a document.
func (c *Collection) key(id string, pk store.PartitionKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		c.config.PartitionKeyField: &types.AttributeValueMemberN{Value: pk.String()},
		c.config.IDField:           &types.AttributeValueMemberS{Value: id},
	}
}

// Upsert writes the document with a fresh entity tag, replacing any existing item.
func (c *Collection) Upsert(ctx context.Context, doc store.Document, _ store.Scope) (store.WriteResult, error) {
	item, err := attributevalue.MarshalMapWithOptions(doc, func(o *attributevalue.EncoderOptions) {
		o.TagKey = "json"
	})
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("marshal document: %w", err)
	}

	// Key attributes always come from the document, whatever its tags say
	for k, v := range c.key(doc.DocumentID(), doc.PartitionKey()) {
		item[k] = v
	}
	etag := uuid.NewString()
	item[etagAttr] = &types.AttributeValueMemberS{Value: etag}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return store.WriteResult{}, err
	}

	return store.WriteResult{
		Scope: store.Session(sessionPrefix + etag),
		ETag:  store.ETag(etag),
	}, nil
}

// Delete removes the item. With opts.IfMatch set, the stored entity tag must match.
func (c *Collection) Delete(ctx context.Context, id string, pk store.PartitionKey, opts store.DeleteOptions) (store.WriteResult, error) {
	condExpr := "attribute_exists(#id)"
	exprNames := map[string]string{"#id": c.config.IDField}
	var exprValues map[string]types.AttributeValue
	if opts.IfMatch != "" {
		condExpr += " AND #etag = :etag"
		exprNames["#etag"] = etagAttr
		exprValues = map[string]types.AttributeValue{
			":etag": &types.AttributeValueMemberS{Value: string(opts.IfMatch)},
		}
	}

	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                           aws.String(c.table),
		Key:                                 c.key(id, pk),
		ConditionExpression:                 aws.String(condExpr),
		ExpressionAttributeNames:            exprNames,
		ExpressionAttributeValues:           exprValues,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return store.WriteResult{}, mapDeleteError(err)
	}

	return store.WriteResult{Scope: store.Session(sessionPrefix + uuid.NewString())}, nil
}

// mapDeleteError maps a failed condition to ErrNotFound when no item was
// stored, and to ErrPreconditionFailed when the entity tag differed.
func mapDeleteError(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if len(condErr.Item) == 0 {
			return store.ErrNotFound
		}
		return store.ErrPreconditionFailed
	}
	return err
}

// NewListPager scans the whole table.
func (c *Collection) NewListPager(opts store.ListOptions) store.Pager {
	return c.scan(opts.Scope, opts.PageSize, nil)
}

// NewQueryPager scans the table with the filter applied server side.
// A scan always spans partitions, so CrossPartition needs no special handling.
func (c *Collection) NewQueryPager(filter store.Filter, opts store.QueryOptions) store.Pager {
	return c.scan(opts.Scope, opts.PageSize, &filter)
}

func (c *Collection) scan(scope store.Scope, pageSize int32, filter *store.Filter) store.Pager {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(c.table),
		Limit:          aws.Int32(c.config.PageSize(pageSize)),
		ConsistentRead: aws.Bool(!scope.IsZero()),
	}
	if filter != nil {
		input.FilterExpression = aws.String("#f < :below")
		input.ExpressionAttributeNames = map[string]string{"#f": filter.Field}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":below": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", filter.Below)},
		}
	}
	return &pager{
		paginator: dynamodb.NewScanPaginator(c.client, input),
		scope:     scope,
	}
}

type pager struct {
	paginator *dynamodb.ScanPaginator
	scope     store.Scope
}

func (p *pager) More() bool {
	return p.paginator.HasMorePages()
}

func (p *pager) NextPage(ctx context.Context) (store.Page, error) {
	if !p.paginator.HasMorePages() {
		return store.Page{}, store.ErrNoMorePages
	}
	out, err := p.paginator.NextPage(ctx)
	if err != nil {
		return store.Page{}, err
	}

	items := make([]store.Item, 0, len(out.Items))
	for _, raw := range out.Items {
		item, err := unmarshalItem(raw)
		if err != nil {
			return store.Page{}, err
		}
		items = append(items, item)
	}
	return store.Page{Items: items, Scope: p.scope}, nil
}

// unmarshalItem converts a DynamoDB item into a JSON document and its entity tag.
func unmarshalItem(raw map[string]types.AttributeValue) (store.Item, error) {
	fields := make(map[string]any)
	err := attributevalue.UnmarshalMapWithOptions(raw, &fields, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return store.Item{}, fmt.Errorf("unmarshal item: %w", err)
	}
	for k, v := range fields {
		fields[k] = jsonNumbers(v)
	}

	var etag store.ETag
	if v, ok := raw[etagAttr].(*types.AttributeValueMemberS); ok {
		etag = store.ETag(v.Value)
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return store.Item{}, fmt.Errorf("encode item: %w", err)
	}
	return store.Item{Raw: body, ETag: etag}, nil
}

// jsonNumbers rewrites attributevalue.Number values as json.Number so N
// attributes encode with their exact digits rather than as float64.
func jsonNumbers(v any) any {
	switch v := v.(type) {
	case attributevalue.Number:
		return json.Number(v)
	case map[string]any:
		for k, e := range v {
			v[k] = jsonNumbers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = jsonNumbers(e)
		}
		return v
	case []attributevalue.Number:
		out := make([]json.Number, len(v))
		for i, n := range v {
			out[i] = json.Number(n)
		}
		return out
	default:
		return v
	}
}
