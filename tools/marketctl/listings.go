package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"

	ddb "github.com/yashrajoria/vm-marketplace/pkg/dynamodb"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
)

const (
	storeMongo  = "mongo"
	storeDynamo = "dynamodb"
)

// normalize fills the fields a stored listing must carry.
func normalize(l *models.Listing, now time.Time) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = models.StatusAvailable
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	if l.Features == nil {
		l.Features = []string{}
	}
	if l.Regions == nil {
		l.Regions = []string{}
	}
}

type seedFile struct {
	Listings []*models.Listing `yaml:"listings"`
}

// parseSeed reads a YAML seed file and validates every listing in it.
func parseSeed(r io.Reader, now time.Time) ([]*models.Listing, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	seen := make(map[string]bool, len(f.Listings))
	for i, l := range f.Listings {
		if l == nil {
			return nil, fmt.Errorf("listing %d: empty entry", i)
		}
		if l.Name == "" {
			return nil, fmt.Errorf("listing %d: name is required", i)
		}
		if l.Price <= 0 {
			return nil, fmt.Errorf("listing %d (%s): price must be positive", i, l.Name)
		}
		if l.Status != "" && !models.ValidStatus(l.Status) {
			return nil, fmt.Errorf("listing %d (%s): unknown status %q", i, l.Name, l.Status)
		}
		normalize(l, now)
		if seen[l.ID] {
			return nil, fmt.Errorf("listing %d (%s): duplicate id %s", i, l.Name, l.ID)
		}
		seen[l.ID] = true
	}
	return f.Listings, nil
}

type storeOptions struct {
	store    string
	mongoURI string
	mongoDB  string
	table    string
}

// openStore returns the listing repository named by opts and a close func.
func openStore(ctx context.Context, opts storeOptions) (repository.ListingRepository, func(), error) {
	switch opts.store {
	case storeDynamo:
		client, err := ddb.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewDynamoListingRepository(client, opts.table), func() {}, nil
	case storeMongo:
		client, err := connectMongo(ctx, opts.mongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		return repository.NewMongoListingRepository(client.Database(opts.mongoDB)), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want %s or %s)", opts.store, storeMongo, storeDynamo)
	}
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
