package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory keyed on unique_id
type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	puts   []*dynamodb.PutItemInput
	getErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(t map[string]types.AttributeValue) string {
	if s, ok := t["unique_id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	key := keyOf(in.Item)
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(unique_id)" {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func newTestDynamoDB(f *fakeDynamo) *DynamoDB {
	d := NewDynamoDB(f, "insead-events")
	d.newID = func() string { return "3b241101-e2bb-4255-8caf-4136c566a962" }
	d.now = func() time.Time { return time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC) }
	return d
}

func TestDynamoDB_CreateThenFind(t *testing.T) {
	f := newFakeDynamo()
	d := newTestDynamoDB(f)
	ctx := context.Background()
	rec := sampleRecord()

	_, err := d.FindByUniqueID(ctx, rec.UniqueID)
	require.ErrorIs(t, err, ErrNotFound)

	id, err := d.Create(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "3b241101-e2bb-4255-8caf-4136c566a962", id)

	require.Len(t, f.puts, 1)
	assert.Equal(t, "insead-events", aws.ToString(f.puts[0].TableName))

	got, err := d.FindByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.Date, got.Date)
	assert.True(t, got.RegionRelated)
	assert.True(t, rec.AddedAt.Equal(got.AddedAt))
}

func TestDynamoDB_CreateDuplicate(t *testing.T) {
	d := newTestDynamoDB(newFakeDynamo())
	ctx := context.Background()

	_, err := d.Create(ctx, sampleRecord())
	require.NoError(t, err)

	_, err = d.Create(ctx, sampleRecord())
	assert.ErrorIs(t, err, ErrExists)
}

func TestDynamoDB_UpdateKeepsSingleItem(t *testing.T) {
	f := newFakeDynamo()
	d := newTestDynamoDB(f)
	ctx := context.Background()

	rec := sampleRecord()
	id, err := d.Create(ctx, rec)
	require.NoError(t, err)

	rec.Location = "Asia Campus, Singapore"
	require.NoError(t, d.Update(ctx, id, rec))

	assert.Len(t, f.items, 1)
	assert.Nil(t, f.puts[1].ConditionExpression, "updates are unconditional")

	got, err := d.FindByUniqueID(ctx, rec.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, "Asia Campus, Singapore", got.Location)
	assert.Equal(t, id, got.ID)
}

func TestDynamoDB_OmitsUnknownDate(t *testing.T) {
	f := newFakeDynamo()
	d := newTestDynamoDB(f)

	rec := sampleRecord()
	rec.Date = ""
	_, err := d.Create(context.Background(), rec)
	require.NoError(t, err)

	_, present := f.puts[0].Item["date"]
	assert.False(t, present)
}

func TestDynamoDB_GetError(t *testing.T) {
	f := newFakeDynamo()
	f.getErr = errors.New("throttled")

	_, err := newTestDynamoDB(f).FindByUniqueID(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "throttled")
}
