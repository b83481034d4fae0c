package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/pfrederiksen/insead-events/internal/config"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoItem is the table layout; unique_id is the partition key
type dynamoItem struct {
	UniqueID      string `dynamodbav:"unique_id"`
	ID            string `dynamodbav:"id"`
	Title         string `dynamodbav:"title"`
	URL           string `dynamodbav:"url"`
	Date          string `dynamodbav:"date,omitempty"`
	Location      string `dynamodbav:"location,omitempty"`
	RegionRelated bool   `dynamodbav:"region_related"`
	AddedAt       string `dynamodbav:"added_at"`
	UpdatedAt     string `dynamodbav:"updated_at"`
}

// DynamoDB implements Store on a DynamoDB table
type DynamoDB struct {
	client DynamoDBAPI
	table  string
	newID  func() string
	now    func() time.Time
}

// NewDynamoDB creates a DynamoDB store on an existing client
func NewDynamoDB(client DynamoDBAPI, table string) *DynamoDB {
	return &DynamoDB{
		client: client,
		table:  table,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// NewDynamoDBFromConfig loads AWS credentials from the environment and
// creates a DynamoDB store. Endpoint overrides the service URL, e.g. for
// DynamoDB Local.
func NewDynamoDBFromConfig(ctx context.Context, cfg config.DynamoDBConfig) (*DynamoDB, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoDB(client, cfg.Table), nil
}

// FindByUniqueID reads the item keyed on uniqueID
func (d *DynamoDB) FindByUniqueID(ctx context.Context, uniqueID string) (*Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"unique_id": &types.AttributeValueMemberS{Value: uniqueID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	rec := Record{
		ID:            item.ID,
		UniqueID:      item.UniqueID,
		Title:         item.Title,
		URL:           item.URL,
		Date:          item.Date,
		Location:      item.Location,
		RegionRelated: item.RegionRelated,
	}
	if t, err := time.Parse(time.RFC3339, item.AddedAt); err == nil {
		rec.AddedAt = t
	}
	return &rec, nil
}

// Create puts a new item, failing with ErrExists if the unique id is taken
func (d *DynamoDB) Create(ctx context.Context, rec Record) (string, error) {
	id := d.newID()
	item, err := attributevalue.MarshalMap(d.item(id, rec))
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(unique_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", fmt.Errorf("failed to create event %s: %w", rec.UniqueID, ErrExists)
		}
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return id, nil
}

// Update overwrites the item for rec.UniqueID, keeping the store id
func (d *DynamoDB) Update(ctx context.Context, id string, rec Record) error {
	item, err := attributevalue.MarshalMap(d.item(id, rec))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// Close is a no-op
func (d *DynamoDB) Close() error {
	return nil
}

func (d *DynamoDB) item(id string, rec Record) dynamoItem {
	item := dynamoItem{
		UniqueID:      rec.UniqueID,
		ID:            id,
		Title:         rec.Title,
		URL:           rec.URL,
		Date:          rec.Date,
		Location:      rec.Location,
		RegionRelated: rec.RegionRelated,
		UpdatedAt:     d.now().UTC().Format(time.RFC3339),
	}
	if !rec.AddedAt.IsZero() {
		item.AddedAt = rec.AddedAt.UTC().Format(time.RFC3339)
	}
	return item
}
