package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhamidi/tmtok/engine"
	"github.com/dhamidi/tmtok/registry"
	"github.com/dhamidi/tmtok/theme"
	"github.com/spf13/cobra"
)

func newTokenizeCmd() *cobra.Command {
	var grammarDir string
	var scopeName string
	var themeFile string
	var withMetadata bool

	cmd := &cobra.Command{
		Use:   "tokenize [file]",
		Short: "Tokenize a file (or stdin) and dump the tokens as JSON lines",
		Args:  cobra.MaximumNArgs(1),
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

			var input io.Reader = os.Stdin
			filename := ""
			if len(args) == 1 {
				filename = args[0]
				f, err := os.Open(filename)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				input = f
			}

			if scopeName == "" {
				scopeName = scopeForFile(source, filename)
			}
			if scopeName == "" {
				return fmt.Errorf("no grammar for %q, use --scope", filename)
			}

			grammar, err := reg.LoadGrammar(context.Background(), scopeName)
			if err != nil {
				return fmt.Errorf("load grammar %s: %w", scopeName, err)
			}

			if withMetadata {
				return tokenizeMetadata(grammar, reg, input)
			}
			return tokenizePlain(grammar, input)
		},
	}

	cmd.Flags().StringVarP(&grammarDir, "grammars", "g", ".", "directory containing grammar files")
	cmd.Flags().StringVarP(&scopeName, "scope", "s", "", "scope name of the grammar to use")
	cmd.Flags().StringVarP(&themeFile, "theme", "t", "", "theme file (JSON) for metadata output")
	cmd.Flags().BoolVar(&withMetadata, "metadata", false, "emit packed style metadata instead of scope lists")

	return cmd
}

func scopeForFile(source *registry.DirectorySource, filename string) string {
	if filename == "" {
		return ""
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return source.FileTypes()[ext]
}

func tokenizePlain(grammar *engine.Grammar, input io.Reader) error {
	enc := json.NewEncoder(os.Stdout)
	var stack *engine.StackElement
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		result := grammar.TokenizeLine(scanner.Text(), stack)
		stack = result.Stack
		if err := enc.Encode(result.Tokens); err != nil {
			return err
		}
	}
	return scanner.Err()
}

type metadataToken struct {
	StartIndex int    `json:"startIndex"`
	Foreground string `json:"foreground,omitempty"`
	Background string `json:"background,omitempty"`
	FontStyle  string `json:"fontStyle,omitempty"`
}

func tokenizeMetadata(grammar *engine.Grammar, reg *registry.Registry, input io.Reader) error {
	colors := reg.ColorMap()
	enc := json.NewEncoder(os.Stdout)
	var stack *engine.StackElement
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		data, next := grammar.TokenizeLineWithMetadata(scanner.Text(), stack)
		stack = next
		tokens := make([]metadataToken, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			meta := theme.Metadata(data[i+1])
			tok := metadataToken{StartIndex: int(data[i])}
			if style := meta.FontStyle(); style != theme.FontStyleNone {
				tok.FontStyle = style.String()
			}
			if fg := meta.Foreground(); fg > 0 && fg < len(colors) {
				tok.Foreground = colors[fg]
			}
			if bg := meta.Background(); bg > 0 && bg < len(colors) {
				tok.Background = colors[bg]
			}
			tokens = append(tokens, tok)
		}
		if err := enc.Encode(tokens); err != nil {
			return err
		}
	}
	return scanner.Err()
}
