package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

// DynamoAPI is the subset of the DynamoDB client the listing store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoListingRepository stores listings in a table keyed by `listing_id`.
// Queries scan the table and filter in memory.
type DynamoListingRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoListingRepository(client DynamoAPI, table string) *DynamoListingRepository {
	return &DynamoListingRepository{client: client, table: table}
}

type ddbListing struct {
	ListingID       string                `dynamodbav:"listing_id"`
	Name            string                `dynamodbav:"name"`
	Description     string                `dynamodbav:"description"`
	LongDescription *string               `dynamodbav:"long_description,omitempty"`
	Specifications  models.Specifications `dynamodbav:"specifications"`
	Price           float64               `dynamodbav:"price"`
	ImageType       string                `dynamodbav:"image_type"`
	ImageURL        *string               `dynamodbav:"image_url,omitempty"`
	Status          string                `dynamodbav:"status"`
	Tags            []string              `dynamodbav:"tags,omitempty"`
	Features        []string              `dynamodbav:"features,omitempty"`
	Regions         []string              `dynamodbav:"regions,omitempty"`
	Provider        string                `dynamodbav:"provider"`
	OwnerID         string                `dynamodbav:"owner_id"`
	Featured        bool                  `dynamodbav:"featured"`
	Rating          float64               `dynamodbav:"rating"`
	ReviewCount     int                   `dynamodbav:"review_count"`
	CreatedAt       string                `dynamodbav:"created_at"`
	UpdatedAt       *string               `dynamodbav:"updated_at,omitempty"`
	DeletedAt       *string               `dynamodbav:"deleted_at,omitempty"`
}

func toDDB(l *models.Listing) ddbListing {
	d := ddbListing{
		ListingID:      l.ID,
		Name:           l.Name,
		Description:    l.Description,
		Specifications: l.Specifications,
		Price:          l.Price,
		ImageType:      l.ImageType,
		Status:         l.Status,
		Tags:           l.Tags,
		Features:       l.Features,
		Regions:        l.Regions,
		Provider:       l.Provider,
		OwnerID:        l.OwnerID,
		Featured:       l.Featured,
		Rating:         l.Rating,
		ReviewCount:    l.ReviewCount,
		CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      formatTime(l.UpdatedAt),
		DeletedAt:      formatTime(l.DeletedAt),
	}
	if l.LongDescription != "" {
		d.LongDescription = &l.LongDescription
	}
	if l.ImageURL != "" {
		d.ImageURL = &l.ImageURL
	}
	return d
}

func fromDDB(d ddbListing) *models.Listing {
	l := &models.Listing{
		ID:             d.ListingID,
		Name:           d.Name,
		Description:    d.Description,
		Specifications: d.Specifications,
		Price:          d.Price,
		ImageType:      d.ImageType,
		Status:         d.Status,
		Tags:           d.Tags,
		Features:       d.Features,
		Regions:        d.Regions,
		Provider:       d.Provider,
		OwnerID:        d.OwnerID,
		Featured:       d.Featured,
		Rating:         d.Rating,
		ReviewCount:    d.ReviewCount,
		UpdatedAt:      parseTime(d.UpdatedAt),
		DeletedAt:      parseTime(d.DeletedAt),
	}
	if d.LongDescription != nil {
		l.LongDescription = *d.LongDescription
	}
	if d.ImageURL != nil {
		l.ImageURL = *d.ImageURL
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		l.CreatedAt = t
	}
	return l
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

func (d *DynamoListingRepository) key(id string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"listing_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (d *DynamoListingRepository) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	key, err := d.key(id)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &d.table, Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrListingNotFound
	}
	var item ddbListing
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if item.DeletedAt != nil {
		return nil, ErrListingNotFound
	}
	return fromDDB(item), nil
}

func (d *DynamoListingRepository) Find(ctx context.Context, q ListingQuery) ([]*models.Listing, int64, error) {
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: &d.table})

	var matched []*models.Listing
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("scan page failed: %w", err)
		}
		for _, it := range page.Items {
			var item ddbListing
			if err := attributevalue.UnmarshalMap(it, &item); err != nil {
				return nil, 0, fmt.Errorf("unmarshal item: %w", err)
			}
			if l := fromDDB(item); q.Filter.Matches(l) {
				matched = append(matched, l)
			}
		}
	}

	SortListings(matched, q.Sort)
	return Page(matched, q.Skip, q.Limit), int64(len(matched)), nil
}

func (d *DynamoListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	item, err := attributevalue.MarshalMap(toDDB(listing))
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(listing_id)"),
	})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

// CreateMany uses BatchWriteItem in chunks of 25 and retries unprocessed items.
func (d *DynamoListingRepository) CreateMany(ctx context.Context, listings []*models.Listing) error {
	const chunkSize = 25
	for i := 0; i < len(listings); i += chunkSize {
		end := min(i+chunkSize, len(listings))
		writeReqs := make([]types.WriteRequest, 0, end-i)
		for _, l := range listings[i:end] {
			item, err := attributevalue.MarshalMap(toDDB(l))
			if err != nil {
				return fmt.Errorf("marshal batch item: %w", err)
			}
			writeReqs = append(writeReqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		req := &dynamodb.BatchWriteItemInput{RequestItems: map[string][]types.WriteRequest{d.table: writeReqs}}
		for attempts := 0; ; attempts++ {
			out, err := d.client.BatchWriteItem(ctx, req)
			if err != nil {
				return fmt.Errorf("batch write failed: %w", err)
			}
			unp := out.UnprocessedItems[d.table]
			if len(unp) == 0 {
				break
			}
			if attempts >= 2 {
				return fmt.Errorf("batch write had %d unprocessed items after retries", len(unp))
			}
			req.RequestItems[d.table] = unp
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempts+1) * 300 * time.Millisecond):
			}
		}
	}
	return nil
}

func (d *DynamoListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	item, err := attributevalue.MarshalMap(toDDB(listing))
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(listing_id) AND attribute_not_exists(deleted_at)"),
	})
	return d.conditional(err, "dynamodb PutItem failed")
}

func (d *DynamoListingRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	key, err := d.key(id)
	if err != nil {
		return err
	}
	ts := at.UTC().Format(time.RFC3339)
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &d.table,
		Key:                 key,
		UpdateExpression:    aws.String("SET deleted_at = :ts, updated_at = :ts"),
		ConditionExpression: aws.String("attribute_exists(listing_id) AND attribute_not_exists(deleted_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": &types.AttributeValueMemberS{Value: ts},
		},
	})
	return d.conditional(err, "soft delete failed")
}

func (d *DynamoListingRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	key, err := d.key(id)
	if err != nil {
		return err
	}
	ratingAV, err := attributevalue.Marshal(rating)
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	countAV, err := attributevalue.Marshal(count)
	if err != nil {
		return fmt.Errorf("marshal count: %w", err)
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &d.table,
		Key:                 key,
		UpdateExpression:    aws.String("SET rating = :r, review_count = :c"),
		ConditionExpression: aws.String("attribute_exists(listing_id) AND attribute_not_exists(deleted_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": ratingAV,
			":c": countAV,
		},
	})
	return d.conditional(err, "update rating failed")
}

func (d *DynamoListingRepository) conditional(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrListingNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (d *DynamoListingRepository) EnsureIndexes(ctx context.Context) error {
	// Table and GSIs are provisioned by infrastructure.
	return nil
}
