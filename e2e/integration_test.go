//go:build e2e

// Package e2e runs the full sample against live services.
// Run with: go test -tags=e2e -v ./e2e/...
//
// DynamoDB tests need AWS credentials and DOCSAMPLE_E2E_REGION.
// Cosmos DB tests need COSMOS_PRIMARY_KEY, COSMOS_ACCOUNT and DATABASE_NAME;
// each run creates and drops its own container.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/docsample/sample"
	"github.com/jacentio/docsample/store"
	"github.com/jacentio/docsample/store/cosmos"
	"github.com/jacentio/docsample/store/dynamo"
)

// Names are unique per test run to avoid conflicts
const namePrefix = "docsample-e2e"

var testID = uuid.New().String()[:8]

func runSample(t *testing.T, coll store.Collection) sample.Report {
	t.Helper()
	s := sample.New(coll, io.Discard, nil, sample.DefaultOptions())
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return report
}

func checkReport(t *testing.T, report sample.Report) {
	t.Helper()
	if report.Inserted != 10 || report.Listed != 10 || report.Matched != 6 || report.Deleted != 6 || report.Remaining != 4 {
		t.Errorf("unexpected report %+v", report)
	}
}

// --- DynamoDB ---

func newDynamoTable(t *testing.T) (*dynamodb.Client, string) {
	t.Helper()
	region := os.Getenv("DOCSAMPLE_E2E_REGION")
	if region == "" {
		t.Skip("DOCSAMPLE_E2E_REGION not set")
	}
	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		t.Fatalf("load AWS config: %v", err)
	}
	client := dynamodb.NewFromConfig(cfg)
	table := fmt.Sprintf("%s-%s", namePrefix, testID)

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("number"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("number"), AttributeType: types.ScalarAttributeTypeN},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		t.Fatalf("create table %s: %v", table, err)
	}
	t.Cleanup(func() {
		if _, err := client.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{TableName: aws.String(table)}); err != nil {
			t.Logf("Warning: failed to delete table %s: %v", table, err)
		}
	})

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 2*time.Minute); err != nil {
		t.Fatalf("wait for table %s: %v", table, err)
	}
	return client, table
}

func TestDynamoDB_FullRun(t *testing.T) {
	client, table := newDynamoTable(t)
	coll := dynamo.New(client, table, store.DefaultConfig())

	checkReport(t, runSample(t, coll))
}

func TestDynamoDB_StaleETag(t *testing.T) {
	client, table := newDynamoTable(t)
	coll := dynamo.New(client, table, store.DefaultConfig())
	ctx := context.Background()

	rec := sample.NewRecord("stale", 0, 100, time.Now().Unix())
	first, err := coll.Upsert(ctx, rec, store.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := coll.Upsert(ctx, rec, first.Scope); err != nil {
		t.Fatal(err)
	}

	_, err = coll.Delete(ctx, rec.ID, rec.PartitionKey(), store.DeleteOptions{IfMatch: first.ETag})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

// --- Cosmos DB ---

func newCosmosContainer(t *testing.T) cosmos.Options {
	t.Helper()
	opts := cosmos.Options{
		Account:    os.Getenv("COSMOS_ACCOUNT"),
		PrimaryKey: os.Getenv("COSMOS_PRIMARY_KEY"),
		Location:   os.Getenv("LOCATION"),
		Endpoint:   os.Getenv("COSMOS_ENDPOINT"),
		Database:   os.Getenv("DATABASE_NAME"),
		Collection: fmt.Sprintf("%s-%s", namePrefix, testID),
	}
	if opts.Account == "" || opts.PrimaryKey == "" || opts.Database == "" {
		t.Skip("COSMOS_ACCOUNT, COSMOS_PRIMARY_KEY and DATABASE_NAME required")
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.documents.azure.com:443/", opts.Account)
	}
	cred, err := azcosmos.NewKeyCredential(opts.PrimaryKey)
	if err != nil {
		t.Fatal(err)
	}
	client, err := azcosmos.NewClientWithKey(endpoint, cred, nil)
	if err != nil {
		t.Fatal(err)
	}
	db, err := client.NewDatabase(opts.Database)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	_, err = db.CreateContainer(ctx, azcosmos.ContainerProperties{
		ID: opts.Collection,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{"/number"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("create container %s: %v", opts.Collection, err)
	}
	t.Cleanup(func() {
		container, err := db.NewContainer(opts.Collection)
		if err != nil {
			return
		}
		if _, err := container.Delete(context.Background(), nil); err != nil {
			t.Logf("Warning: failed to delete container %s: %v", opts.Collection, err)
		}
	})
	return opts
}

func TestCosmos_FullRun(t *testing.T) {
	opts := newCosmosContainer(t)
	coll, err := cosmos.Open(opts, store.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	checkReport(t, runSample(t, coll))
}

func TestCosmos_RerunIsIdempotent(t *testing.T) {
	opts := newCosmosContainer(t)
	coll, err := cosmos.Open(opts, store.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	s := sample.New(coll, io.Discard, nil, sample.DefaultOptions())
	for i := 0; i < 2; i++ {
		if _, err := s.Insert(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.List(context.Background(), store.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("expected 10 records after re-insert, got %d", n)
	}
}
