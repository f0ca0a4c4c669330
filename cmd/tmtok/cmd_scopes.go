package main

import (
	"fmt"
	"sort"

	"github.com/dhamidi/tmtok/registry"
	"github.com/spf13/cobra"
)

func newScopesCmd() *cobra.Command {
	var grammarDir string

	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "List the scope names available in a grammar directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := registry.NewDirectorySource(grammarDir)
			scopes, err := source.Scopes()
			if err != nil {
				return fmt.Errorf("scan grammars: %w", err)
			}
			sort.Strings(scopes)
			for _, scope := range scopes {
				fmt.Println(scope)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&grammarDir, "grammars", "g", ".", "directory containing grammar files")

	return cmd
}
