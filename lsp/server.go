// Package lsp exposes tokenization over the language server protocol as
// semantic tokens.
package lsp

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhamidi/tmtok/engine"
	"github.com/dhamidi/tmtok/registry"
	"github.com/dhamidi/tmtok/theme"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "tmtok"

// legendTypes indexes the semantic token types the server reports.
// Positions must line up with tokenLegendIndex.
var legendTypes = []string{"comment", "string", "regexp"}

func tokenLegendIndex(tt theme.TokenType) int {
	switch tt {
	case theme.TokenTypeComment:
		return 0
	case theme.TokenTypeString:
		return 1
	case theme.TokenTypeRegEx:
		return 2
	default:
		return -1
	}
}

type document struct {
	scopeName string
	lines     []string
}

type Server struct {
	registry  *registry.Registry
	fileTypes map[string]string
	handler   protocol.Handler
	server    *server.Server
	version   string

	mu   sync.Mutex
	docs map[string]*document
}

// NewServer wires a semantic tokens server over registry. fileTypes maps
// file extensions (without the leading dot) to grammar scope names and is
// consulted when a client does not announce a usable language identifier.
func NewServer(reg *registry.Registry, fileTypes map[string]string, version string) *Server {
	s := &Server{
		registry:  reg,
		fileTypes: fileTypes,
		version:   version,
		docs:      map[string]*document{},
	}

	s.handler = protocol.Handler{
		Initialize:                     s.initialize,
		Initialized:                    s.initialized,
		Shutdown:                       s.shutdown,
		SetTrace:                       s.setTrace,
		TextDocumentDidOpen:            s.textDocumentDidOpen,
		TextDocumentDidChange:          s.textDocumentDidChange,
		TextDocumentDidClose:           s.textDocumentDidClose,
		TextDocumentSemanticTokensFull: s.semanticTokensFull,
	}

	s.server = server.NewServer(&s.handler, lsName, false)

	return s
}

func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
	}

	capabilities.SemanticTokensProvider = &protocol.SemanticTokensOptions{
		Legend: protocol.SemanticTokensLegend{
			TokenTypes:     legendTypes,
			TokenModifiers: []string{},
		},
		Full: true,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	scopeName := s.scopeFor(params.TextDocument.LanguageID, params.TextDocument.URI)
	if scopeName == "" {
		return nil
	}
	if _, err := s.registry.LoadGrammar(context.Background(), scopeName); err != nil {
		return nil
	}
	s.mu.Lock()
	s.docs[params.TextDocument.URI] = &document{
		scopeName: scopeName,
		lines:     splitLines(params.TextDocument.Text),
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := change.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	s.mu.Lock()
	if doc := s.docs[params.TextDocument.URI]; doc != nil {
		doc.lines = splitLines(whole.Text)
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()
	return nil
}

func (s *Server) semanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	s.mu.Lock()
	doc := s.docs[params.TextDocument.URI]
	s.mu.Unlock()
	if doc == nil {
		return nil, nil
	}
	grammar := s.registry.GrammarForScopeName(doc.scopeName)
	if grammar == nil {
		return nil, nil
	}

	var data []protocol.UInteger
	prevLine, prevStart := 0, 0
	var stack *engine.StackElement
	for lineNo, line := range doc.lines {
		var meta []uint32
		meta, stack = grammar.TokenizeLineWithMetadata(line, stack)
		lineLen := len([]rune(line))
		for i := 0; i+1 < len(meta); i += 2 {
			start := int(meta[i])
			end := lineLen
			if i+2 < len(meta) {
				end = int(meta[i+2])
			}
			kind := tokenLegendIndex(theme.Metadata(meta[i+1]).TokenType())
			if kind < 0 || end <= start {
				continue
			}
			deltaLine := lineNo - prevLine
			deltaStart := start
			if deltaLine == 0 {
				deltaStart = start - prevStart
			}
			data = append(data,
				protocol.UInteger(deltaLine),
				protocol.UInteger(deltaStart),
				protocol.UInteger(end-start),
				protocol.UInteger(kind),
				0)
			prevLine, prevStart = lineNo, start
		}
	}

	return &protocol.SemanticTokens{Data: data}, nil
}

func (s *Server) scopeFor(languageID, uri string) string {
	if scope, ok := s.fileTypes[languageID]; ok {
		return scope
	}
	path, err := uriToPath(uri)
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return s.fileTypes[ext]
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
