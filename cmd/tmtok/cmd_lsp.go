package main

import (
	"fmt"
	"os"

	"github.com/dhamidi/tmtok/lsp"
	"github.com/dhamidi/tmtok/registry"
	"github.com/dhamidi/tmtok/theme"
	"github.com/spf13/cobra"
)

func newLSPCmd() *cobra.Command {
	var grammarDir string
	var themeFile string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := registry.NewDirectorySource(grammarDir)
			reg := registry.New(source)

			if themeFile != "" {
				content, err := os.ReadFile(themeFile)
				if err != nil {
					return fmt.Errorf("read theme: %w", err)
				}
				rules, err := theme.LoadJSON(content)
				if err != nil {
					return fmt.Errorf("parse theme: %w", err)
				}
				reg.SetTheme(rules)
			}

			server := lsp.NewServer(reg, source.FileTypes(), version)
			return server.RunStdio()
		},
	}

	cmd.Flags().StringVarP(&grammarDir, "grammars", "g", ".", "directory containing grammar files")
	cmd.Flags().StringVarP(&themeFile, "theme", "t", "", "theme file (JSON) for styled output")

	return cmd
}
