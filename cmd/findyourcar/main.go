// Command findyourcar browses a used-car catalog assembled from the NHTSA
// vPIC models API. It serves the catalog over HTTP, runs it as a terminal
// UI, answers one-shot searches, and follows catalog events on NATS.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "findyourcar",
	Short: "Browse a car catalog built from the vPIC models API",
	Long: `findyourcar loads up to nine models for each of nine makes from the
NHTSA vPIC API, gives every model a price, mileage and body type, and lets
you search and filter the result by price.

Settings come from --config (YAML), then .env, then FINDYOURCAR_* variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	rootCmd.AddCommand(serveCmd, searchCmd, tuiCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
