package repository

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

type fakeDynamo struct {
	items      map[string]map[string]types.AttributeValue
	batchSizes []int
	failCond   bool
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(item map[string]types.AttributeValue) string {
	return item["listing_id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.failCond {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	item, ok := f.items[keyOf(in.Key)]
	if !ok || f.failCond {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if _, deleted := item["deleted_at"]; deleted {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if ts, ok := in.ExpressionAttributeValues[":ts"]; ok {
		item["deleted_at"] = ts
	}
	if r, ok := in.ExpressionAttributeValues[":r"]; ok {
		item["rating"] = r
		item["review_count"] = in.ExpressionAttributeValues[":c"]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	for _, reqs := range in.RequestItems {
		f.batchSizes = append(f.batchSizes, len(reqs))
		for _, r := range reqs {
			f.items[keyOf(r.PutRequest.Item)] = r.PutRequest.Item
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func TestDynamoListingRepository_CreateAndFind(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoListingRepository(fake, "Listings")
	ctx := context.Background()

	l := listing("11111111-1111-1111-1111-111111111111", 25, true, 4.2, 0)
	l.Specifications = models.Specifications{CPUCores: 2, RAMGB: 4, StorageGB: 100, OSType: "Debian 11"}
	l.Tags = []string{"linux"}
	require.NoError(t, repo.Create(ctx, l))

	got, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.Specifications, got.Specifications)
	assert.True(t, got.CreatedAt.Equal(l.CreatedAt))

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestDynamoListingRepository_SoftDeleteHidesListing(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoListingRepository(fake, "Listings")
	ctx := context.Background()

	l := listing("a", 10, false, 0, 0)
	require.NoError(t, repo.Create(ctx, l))
	require.NoError(t, repo.SoftDelete(ctx, "a", time.Now()))

	_, err := repo.FindByID(ctx, "a")
	assert.ErrorIs(t, err, ErrListingNotFound)

	assert.ErrorIs(t, repo.SoftDelete(ctx, "a", time.Now()), ErrListingNotFound)

	listings, total, err := repo.Find(ctx, ListingQuery{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, listings)
}

func TestDynamoListingRepository_FindFiltersSortsAndPages(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoListingRepository(fake, "Listings")
	ctx := context.Background()

	for _, l := range []*models.Listing{
		listing("a", 30, false, 0, 3*time.Hour),
		listing("b", 10, false, 0, 2*time.Hour),
		listing("c", 20, false, 0, time.Hour),
	} {
		require.NoError(t, repo.Create(ctx, l))
	}

	lo := 15.0
	listings, total, err := repo.Find(ctx, ListingQuery{
		Filter: ListingFilter{MinPrice: &lo},
		Sort:   SortPriceLow,
		Skip:   0,
		Limit:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"c"}, ids(listings))
}

func TestDynamoListingRepository_CreateManyChunks(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoListingRepository(fake, "Listings")

	var batch []*models.Listing
	for i := 0; i < 30; i++ {
		batch = append(batch, listing(string(rune('A'+i)), float64(i+1), false, 0, 0))
	}
	require.NoError(t, repo.CreateMany(context.Background(), batch))
	assert.Equal(t, []int{25, 5}, fake.batchSizes)
	assert.Len(t, fake.items, 30)
}

func TestDynamoListingRepository_UpdateRating(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewDynamoListingRepository(fake, "Listings")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, listing("a", 10, false, 0, 0)))
	require.NoError(t, repo.UpdateRating(ctx, "a", 4.5, 2))

	var stored ddbListing
	require.NoError(t, attributevalue.UnmarshalMap(fake.items["a"], &stored))
	assert.Equal(t, 4.5, stored.Rating)
	assert.Equal(t, 2, stored.ReviewCount)

	assert.ErrorIs(t, repo.UpdateRating(ctx, "nope", 1, 1), ErrListingNotFound)
}

func TestDynamoListingRepository_UpdateMissing(t *testing.T) {
	fake := newFakeDynamo()
	fake.failCond = true
	repo := NewDynamoListingRepository(fake, "Listings")

	err := repo.Update(context.Background(), listing("a", 10, false, 0, 0))
	assert.ErrorIs(t, err, ErrListingNotFound)
}
