package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	ddb "github.com/yashrajoria/vm-marketplace/pkg/dynamodb"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

var migrateOpts struct {
	mongoURI  string
	mongoDB   string
	table     string
	batchSize int
}

var migrateCmd = &cobra.Command{
	Use:   "migrate-listings",
	Short: "Copy listings from MongoDB into DynamoDB",
	Long: `Scan the MongoDB "listings" collection and write every listing that is not
soft-deleted into the DynamoDB listings table. Existing items are overwritten.`,
	RunE: runMigrate,
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateOpts.mongoURI, "mongo-uri", "", "MongoDB URI (default $MONGO_URL)")
	f.StringVar(&migrateOpts.mongoDB, "db", "", "MongoDB database (default $MONGO_DB or catalog)")
	f.StringVar(&migrateOpts.table, "table", "", "DynamoDB table (default $DDB_TABLE_LISTINGS or Listings)")
	f.IntVar(&migrateOpts.batchSize, "batch", 100, "Listings written per batch")
}

// listingWriter is the part of a listing repository the copy loop needs.
type listingWriter interface {
	CreateMany(ctx context.Context, listings []*models.Listing) error
}

// listingCursor is satisfied by *mongo.Cursor.
type listingCursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
}

type copyStats struct {
	Copied  int
	Skipped int
}

// copyListings drains cur into dst in batches. Listings that fail to decode
// are skipped; a failed batch write stops the copy.
func copyListings(ctx context.Context, cur listingCursor, dst listingWriter, batchSize int, now time.Time) (copyStats, error) {
	var stats copyStats
	if batchSize <= 0 {
		batchSize = 100
	}
	batch := make([]*models.Listing, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dst.CreateMany(ctx, batch); err != nil {
			return fmt.Errorf("write batch after %d listings: %w", stats.Copied, err)
		}
		stats.Copied += len(batch)
		logger.Info("migrated listings", zap.Int("total", stats.Copied))
		batch = batch[:0]
		return nil
	}

	for cur.Next(ctx) {
		var l models.Listing
		if err := cur.Decode(&l); err != nil {
			logger.Warn("skipping undecodable listing", zap.Error(err))
			stats.Skipped++
			continue
		}
		normalize(&l, now)
		batch = append(batch, &l)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := cur.Err(); err != nil {
		return stats, fmt.Errorf("cursor: %w", err)
	}
	return stats, flush()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	uri := orEnv(migrateOpts.mongoURI, "MONGO_URL", "mongodb://localhost:27017")
	dbName := orEnv(migrateOpts.mongoDB, "MONGO_DB", "catalog")
	table := orEnv(migrateOpts.table, "DDB_TABLE_LISTINGS", "Listings")

	mclient, err := connectMongo(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = mclient.Disconnect(context.Background()) }()

	ddbClient, err := ddb.NewClient(ctx)
	if err != nil {
		return err
	}
	dst := repository.NewDynamoListingRepository(ddbClient, table)

	cur, err := openListingCursor(ctx, mclient.Database(dbName), int32(migrateOpts.batchSize))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	stats, err := copyListings(ctx, cur, dst, migrateOpts.batchSize, time.Now().UTC())
	fmt.Fprintf(cmd.OutOrStdout(), "Migration complete. migrated=%d skipped=%d\n", stats.Copied, stats.Skipped)
	return err
}

func openListingCursor(ctx context.Context, db *mongo.Database, batch int32) (*mongo.Cursor, error) {
	cur, err := db.Collection("listings").Find(ctx,
		bson.M{"deleted_at": bson.M{"$exists": false}},
		options.Find().SetBatchSize(batch),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	return cur, nil
}

func orEnv(flag, key, fallback string) string {
	if flag != "" {
		return flag
	}
	return common.GetEnv(key, fallback)
}
