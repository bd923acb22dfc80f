package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var seedOpts struct {
	file string
	storeOptions
}

var seedCmd = &cobra.Command{
	Use:   "seed-listings",
	Short: "Load listings from a YAML file",
	Long: `Read a YAML file with a top level "listings" list and insert every entry into
the catalog store. Missing ids are generated and the status defaults to available.`,
	Example: `  marketctl seed-listings --file listings.yaml --store dynamodb --table Listings`,
	RunE:    runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVarP(&seedOpts.file, "file", "f", "", "YAML seed file")
	f.StringVar(&seedOpts.store, "store", "", "Target store, mongo or dynamodb (default $CATALOG_STORE or mongo)")
	f.StringVar(&seedOpts.mongoURI, "mongo-uri", "", "MongoDB URI (default $MONGO_URL)")
	f.StringVar(&seedOpts.mongoDB, "db", "", "MongoDB database (default $MONGO_DB or catalog)")
	f.StringVar(&seedOpts.table, "table", "", "DynamoDB table (default $DDB_TABLE_LISTINGS or Listings)")
	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fh, err := os.Open(seedOpts.file)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()

	listings, err := parseSeed(fh, time.Now().UTC())
	if err != nil {
		return err
	}

	opts := storeOptions{
		store:    orEnv(seedOpts.store, "CATALOG_STORE", storeMongo),
		mongoURI: orEnv(seedOpts.mongoURI, "MONGO_URL", "mongodb://localhost:27017"),
		mongoDB:  orEnv(seedOpts.mongoDB, "MONGO_DB", "catalog"),
		table:    orEnv(seedOpts.table, "DDB_TABLE_LISTINGS", "Listings"),
	}
	repo, closeFn, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := repo.CreateMany(ctx, listings); err != nil {
		return fmt.Errorf("insert listings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d listings into %s\n", len(listings), opts.store)
	return nil
}
