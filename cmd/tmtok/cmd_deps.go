package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dhamidi/tmtok/engine"
	"github.com/dhamidi/tmtok/grammar"
	"github.com/spf13/cobra"
)

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <grammar-file>",
		Short: "List the external scope names a grammar references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read grammar: %w", err)
			}
			raw, err := grammar.Parse(grammar.SniffFormat(content), content)
			if err != nil {
				return fmt.Errorf("parse grammar: %w", err)
			}
			deps := engine.Dependencies(raw, nil)
			sort.Strings(deps)
			for _, dep := range deps {
				fmt.Println(dep)
			}
			return nil
		},
	}
}
