package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/credits/pricing"
)

func init() {
	rootCmd.AddCommand(pricingCmd)
	pricingCmd.Flags().Bool("all", false, "Include inactive entries")
}

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Print the price list",
	Long: `Print the price list from the config file, or the stock price list
when the file has no [[pricing]] tables.`,
	RunE: runPricing,
}

func runPricing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")

	entries := cfg.PricingEntries()
	if len(entries) == 0 {
		entries = pricing.Defaults(time.Now())
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCREDITS\tACTIVE\tDESCRIPTION")
	for _, e := range entries {
		if !e.IsActive && !all {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", e.Kind, e.CreditsCost, e.IsActive, e.Description)
	}
	return tw.Flush()
}
