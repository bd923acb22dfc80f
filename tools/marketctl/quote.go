package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/pricing"
)

var (
	quoteCfg  = pricing.DefaultConfiguration()
	quoteJSON bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a custom VM configuration",
	Long: `Price a configuration with the same tables the configurator uses and print
the monthly breakdown in USD.`,
	Example: `  marketctl quote --cpu 8 --ram 16 --storage 500 --storage-type "NVMe SSD" --addon backup`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, err := pricing.Calculate(quoteCfg)
		if err != nil {
			var fe *pricing.FieldError
			if errors.As(err, &fe) {
				return fmt.Errorf("invalid configuration: %w", fe)
			}
			return err
		}
		if quoteJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		}
		return printQuote(cmd.OutOrStdout(), q)
	},
}

func init() {
	f := quoteCmd.Flags()
	f.IntVar(&quoteCfg.CPU, "cpu", quoteCfg.CPU, "CPU cores")
	f.IntVar(&quoteCfg.RAM, "ram", quoteCfg.RAM, "Memory in GB")
	f.IntVar(&quoteCfg.Storage.Size, "storage", quoteCfg.Storage.Size, "Disk size in GB")
	f.StringVar(&quoteCfg.Storage.Type, "storage-type", quoteCfg.Storage.Type, "Disk type")
	f.IntVar(&quoteCfg.Network.Bandwidth, "bandwidth", quoteCfg.Network.Bandwidth, "Bandwidth in Gbps")
	f.StringVar(&quoteCfg.Network.Type, "network-type", quoteCfg.Network.Type, "Network tier")
	f.StringVar(&quoteCfg.OS, "os", quoteCfg.OS, "Operating system")
	f.StringVar(&quoteCfg.Region, "region", quoteCfg.Region, "Region id")
	f.StringSliceVar(&quoteCfg.Addons, "addon", nil, "Add-on id, repeatable")
	f.BoolVar(&quoteJSON, "json", false, "Print the quote as JSON")
}

func printQuote(w io.Writer, q *pricing.Quote) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		name  string
		price float64
	}{
		{"cpu", q.CPU},
		{"ram", q.RAM},
		{"storage", q.Storage},
		{"network", q.Network},
		{"os", q.OS},
		{"region", q.Region},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\n", r.name, r.price)
	}
	addons := make([]string, 0, len(q.Addons))
	for id := range q.Addons {
		addons = append(addons, id)
	}
	sort.Strings(addons)
	for _, id := range addons {
		fmt.Fprintf(tw, "addon:%s\t%.2f\n", id, q.Addons[id])
	}
	fmt.Fprintf(tw, "total\t%.2f\n", q.Total)
	return tw.Flush()
}
