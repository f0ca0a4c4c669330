package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tmtok",
		Short: "TextMate grammar tokenizer",
	}

	rootCmd.AddCommand(newTokenizeCmd())
	rootCmd.AddCommand(newDepsCmd())
	rootCmd.AddCommand(newScopesCmd())
	rootCmd.AddCommand(newLSPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
