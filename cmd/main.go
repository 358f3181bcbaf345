package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prodintel",
	Short: "Competitor product intelligence from public provider pages",
	Long: `prodintel extracts structured product data (plans, prices, features)
from competitor web pages with an LLM and turns it into comparison
tables and analysis reports.

serve runs the HTTP API together with the batch worker; run executes a
single batch from a local URL list without any infrastructure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
