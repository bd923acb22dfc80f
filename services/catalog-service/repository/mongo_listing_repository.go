package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

// MongoListingRepository keeps listings in the "listings" collection.
type MongoListingRepository struct {
	collection *mongo.Collection
}

func NewMongoListingRepository(db *mongo.Database) *MongoListingRepository {
	return &MongoListingRepository{collection: db.Collection("listings")}
}

var notDeleted = bson.M{"$exists": false}

func (r *MongoListingRepository) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "deleted_at": notDeleted}).Decode(&listing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return &listing, nil
}

func (r *MongoListingRepository) Find(ctx context.Context, q ListingQuery) ([]*models.Listing, int64, error) {
	filter := buildMongoFilter(q.Filter)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	opts := options.Find().SetSort(mongoSort(q.Sort)).SetSkip(int64(q.Skip))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []*models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, 0, fmt.Errorf("decode listings: %w", err)
	}
	return listings, total, nil
}

func (r *MongoListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if _, err := r.collection.InsertOne(ctx, listing); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *MongoListingRepository) CreateMany(ctx context.Context, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(listings))
	for _, l := range listings {
		docs = append(docs, l)
	}
	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("insert listings: %w", err)
	}
	return nil
}

func (r *MongoListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": listing.ID, "deleted_at": notDeleted}, listing)
	if err != nil {
		return fmt.Errorf("replace listing: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrListingNotFound
	}
	return nil
}

// SoftDelete stamps deleted_at; the document stays for order history.
func (r *MongoListingRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": notDeleted},
		bson.M{"$set": bson.M{"deleted_at": at, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("soft delete listing: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *MongoListingRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": notDeleted},
		bson.M{"$set": bson.M{"rating": rating, "review_count": count}},
	)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *MongoListingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "featured", Value: -1}, {Key: "rating", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

func buildMongoFilter(f ListingFilter) bson.M {
	filter := bson.M{"deleted_at": notDeleted}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if f.OS != "" {
		filter["specifications.os_type"] = caseInsensitive(f.OS)
	}
	if f.Provider != "" {
		filter["provider"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Provider) + "$", "$options": "i"}
	}
	if f.MinCPU > 0 {
		filter["specifications.cpu_cores"] = bson.M{"$gte": f.MinCPU}
	}
	if f.MinRAM > 0 {
		filter["specifications.ram_gb"] = bson.M{"$gte": f.MinRAM}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Search != "" {
		term := caseInsensitive(f.Search)
		filter["$or"] = bson.A{
			bson.M{"name": term},
			bson.M{"description": term},
			bson.M{"tags": term},
		}
	}
	return filter
}

func caseInsensitive(sub string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(sub), "$options": "i"}
}

func mongoSort(sort string) bson.D {
	switch sort {
	case SortPriceLow:
		return bson.D{{Key: "price", Value: 1}, {Key: "created_at", Value: -1}}
	case SortPriceHigh:
		return bson.D{{Key: "price", Value: -1}, {Key: "created_at", Value: -1}}
	case SortNewest:
		return bson.D{{Key: "created_at", Value: -1}}
	default:
		return bson.D{{Key: "featured", Value: -1}, {Key: "rating", Value: -1}, {Key: "created_at", Value: -1}}
	}
}
