// Command marketctl holds operator tasks for the marketplace catalog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "marketctl",
	Short: "Operator tooling for the VM marketplace",
	Long: `marketctl moves and seeds catalog listings and prices custom configurations.

Available subcommands:
  migrate-listings - Copy listings from MongoDB into DynamoDB
  seed-listings    - Load listings from a YAML file
  quote            - Price a custom VM configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		common.LoadDotEnv()
		if !verbose {
			return nil
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.AddCommand(migrateCmd, seedCmd, quoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
