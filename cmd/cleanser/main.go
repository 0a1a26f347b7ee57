// Command cleanser strips client-identifying content from documents and extracts security findings.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "cleanser",
	Short:        "Document cleansing pipeline",
	Long:         "cleanser extracts text from documents, redacts client-identifying content and asks a language model for structured security findings.",
	SilenceUsage: true,
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
