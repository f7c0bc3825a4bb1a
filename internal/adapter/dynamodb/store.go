// Package dynamodb persists resolved regions in a DynamoDB table.
package dynamodb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// Client is the subset of the DynamoDB API used by Store.
type Client interface {
	GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error)
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
}

const keyAttribute = "region_key"

// regionItem is one table row. Each identifier is its own item, so a merge
// is a single-item put that cannot clobber other identifiers.
type regionItem struct {
	Key       string  `dynamodbav:"region_key"`
	West      float64 `dynamodbav:"west"`
	East      float64 `dynamodbav:"east"`
	South     float64 `dynamodbav:"south"`
	North     float64 `dynamodbav:"north"`
	UpdatedAt int64   `dynamodbav:"updated_at"`
}

// Store implements domain.RegionStore on a DynamoDB table keyed by region_key.
type Store struct {
	client Client
	table  string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewStore creates a Store for table.
func NewStore(client Client, table string, logger *slog.Logger) *Store {
	return &Store{client: client, table: table, clock: clockwork.NewRealClock(), logger: logger}
}

// NewClient builds a DynamoDB client. A non-empty endpoint targets a local
// DynamoDB (e.g. dynamodb-local) instead of AWS.
func NewClient(ctx context.Context, endpoint string) (*ddb.Client, error) {
	if endpoint != "" {
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("local"),
			config.WithClientLogMode(aws.LogRetries),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return ddb.NewFromConfig(cfg, func(o *ddb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ddb.NewFromConfig(cfg), nil
}

// Load reads the region stored under key with a consistent read.
func (s *Store) Load(ctx context.Context, key string) (domain.BoundingRegion, bool, error) {
	out, err := s.client.GetItem(ctx, &ddb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{keyAttribute: &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.BoundingRegion{}, false, fmt.Errorf("get region %q from DynamoDB: %w", key, err)
	}
	if out.Item == nil {
		return domain.BoundingRegion{}, false, nil
	}

	var item regionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.BoundingRegion{}, false, fmt.Errorf("unmarshal region item: %w", err)
	}
	return domain.BoundingRegion{West: item.West, East: item.East, South: item.South, North: item.North}, true, nil
}

// Merge puts the item for key.
func (s *Store) Merge(ctx context.Context, key string, region domain.BoundingRegion) error {
	av, err := attributevalue.MarshalMap(regionItem{
		Key:       key,
		West:      region.West,
		East:      region.East,
		South:     region.South,
		North:     region.North,
		UpdatedAt: s.clock.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal region item: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &ddb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put region %q in DynamoDB: %w", key, err)
	}

	s.logger.Debug("region saved to DynamoDB", "table", s.table, "key", key)
	return nil
}
