package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Pathpooja storefront - carts and wishlists for spiritual goods",
	Long: `Storefront serves the product catalog and keeps one cart and one user
profile per visitor, persisted to memory, a directory, Redis or MongoDB.

Run "storefront serve" to start the HTTP API, or use the catalog commands
to migrate and inspect the product database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./storefront.yaml)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
