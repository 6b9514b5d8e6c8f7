// deepsignature/lsp_handlers_textdocument.go
// Contains LSP method handlers related to text document synchronization and language features
// (didOpen, didChange, didClose, signatureHelp, hover, definition).
package deepsignature

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcegraph/jsonrpc2"
)

// ============================================================================
// LSP Text Document Method Handlers
// ============================================================================

// handleDidOpen handles the 'textDocument/didOpen' notification.
func (s *Server) handleDidOpen(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidOpenTextDocumentParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	version := params.TextDocument.Version
	content := []byte(params.TextDocument.Text)
	openLogger := logger.With("uri", uri, "version", version, "size", len(content))
	openLogger.Info("Handling textDocument/didOpen")

	absPath, pathErr := ValidateAndGetFilePath(string(uri))
	if pathErr != nil {
		openLogger.Error("Invalid URI in didOpen", "error", pathErr)
		s.sendShowMessage(conn, MessageTypeError, fmt.Sprintf("Invalid document URI: %v", pathErr))
		return nil, nil
	}

	s.filesMu.Lock()
	s.files[uri] = &OpenFile{
		URI:     uri,
		Path:    absPath,
		Content: content,
		Version: version,
	}
	s.filesMu.Unlock()
	return nil, nil
}

// handleDidChange handles the 'textDocument/didChange' notification.
// Only Full sync is supported; out-of-order versions are ignored.
func (s *Server) handleDidChange(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidChangeTextDocumentParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	version := params.TextDocument.Version
	changeLogger := logger.With("uri", uri, "new_version", version)

	if len(params.ContentChanges) == 0 {
		changeLogger.Warn("Received didChange notification with no content changes")
		return nil, nil
	}
	newContent := []byte(params.ContentChanges[len(params.ContentChanges)-1].Text)
	changeLogger.Info("Handling textDocument/didChange", "new_size", len(newContent))

	absPath, pathErr := ValidateAndGetFilePath(string(uri))
	if pathErr != nil {
		changeLogger.Error("Invalid URI in didChange", "error", pathErr)
		s.sendShowMessage(conn, MessageTypeError, fmt.Sprintf("Invalid document URI: %v", pathErr))
		return nil, nil
	}

	s.filesMu.Lock()
	currentFile, exists := s.files[uri]
	updated := !exists || version > currentFile.Version
	if updated {
		s.files[uri] = &OpenFile{
			URI:     uri,
			Path:    absPath,
			Content: newContent,
			Version: version,
		}
		changeLogger.Debug("Updated file cache")
	} else {
		changeLogger.Warn("Ignoring out-of-order didChange notification", "received_version", version, "current_version", currentFile.Version)
	}
	s.filesMu.Unlock()

	if updated {
		if err := s.helper.InvalidateDocument(absPath); err != nil {
			changeLogger.Warn("Failed to invalidate declaration cache on didChange", "error", err)
		}
	}
	return nil, nil
}

// handleDidClose handles the 'textDocument/didClose' notification.
func (s *Server) handleDidClose(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidCloseTextDocumentParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	closeLogger := logger.With("uri", uri)
	closeLogger.Info("Handling textDocument/didClose")

	s.filesMu.Lock()
	file, existed := s.files[uri]
	delete(s.files, uri)
	s.filesMu.Unlock()

	if existed {
		if err := s.helper.InvalidateDocument(file.Path); err != nil {
			closeLogger.Warn("Failed to invalidate declaration cache on didClose", "error", err)
		}
	}
	return nil, nil
}

// handleSignatureHelp answers 'textDocument/signatureHelp'. Anything short of
// a complete answer is reported as a null result.
func (s *Server) handleSignatureHelp(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params SignatureHelpParams, logger *slog.Logger) (any, error) {
	uri := params.TextDocument.URI
	lspPos := params.Position
	sigLogger := logger.With("uri", uri, "lsp_line", lspPos.Line, "lsp_char", lspPos.Character)
	if params.Context != nil {
		sigLogger = sigLogger.With("trigger_kind", params.Context.TriggerKind, "trigger_char", params.Context.TriggerCharacter, "retrigger", params.Context.IsRetrigger)
	}
	sigLogger.Debug("Handling textDocument/signatureHelp")

	file, ok := s.openFile(uri)
	if !ok {
		sigLogger.Warn("Signature help request for unknown file")
		return nil, nil
	}
	doc := NewTextDocument(string(file.Content))
	pos, posErr := lspToPosition(doc, lspPos)
	if posErr != nil {
		sigLogger.Warn("Failed to convert LSP position", "error", posErr)
		return nil, nil
	}

	result := s.helper.SignatureHelp(ctx, file.Path, file.Content, pos)
	if result == nil {
		if ctx.Err() != nil {
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Request cancelled"}
		}
		return nil, nil
	}
	sigLogger.Debug("Signature help resolved", "label", result.Signatures[0].Label, "active_parameter", result.ActiveParameter)
	return signatureResultToLSP(result, MarkupKindPlainText), nil
}

// handleHover answers 'textDocument/hover' with the declaration of the
// identifier under the cursor and its doc comment.
func (s *Server) handleHover(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params HoverParams, logger *slog.Logger) (any, error) {
	hoverLogger := logger.With("uri", params.TextDocument.URI, "lsp_line", params.Position.Line, "lsp_char", params.Position.Character)
	hoverLogger.Debug("Handling textDocument/hover")

	file, doc, decl := s.lookupAt(ctx, params, hoverLogger)
	if decl == nil {
		return nil, nil
	}

	markup := s.markupKind()
	var b strings.Builder
	text := joinDeclarationLines(decl.DeclarationLines)
	if markup == MarkupKindMarkdown {
		b.WriteString("```go\n" + text + "\n```")
	} else {
		b.WriteString(text)
	}
	if decl.Doc != "" {
		b.WriteString("\n\n" + decl.Doc)
	}

	result := HoverResult{Contents: MarkupContent{Kind: markup, Value: b.String()}}
	if pos, err := lspToPosition(doc, params.Position); err == nil {
		if word, ok := doc.WordRangeAt(pos); ok {
			result.Range = &LSPRange{Start: positionToLSP(doc, word.Start), End: positionToLSP(doc, word.End)}
		}
	}
	hoverLogger.Debug("Hover generated", "identifier", decl.Name, "markup", markup, "file_version", file.Version)
	return result, nil
}

// handleDefinition answers 'textDocument/definition'.
func (s *Server) handleDefinition(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DefinitionParams, logger *slog.Logger) (any, error) {
	defLogger := logger.With("uri", params.TextDocument.URI, "lsp_line", params.Position.Line, "lsp_char", params.Position.Character)
	defLogger.Debug("Handling textDocument/definition")

	file, _, decl := s.lookupAt(ctx, params, defLogger)
	if decl == nil {
		return nil, nil
	}

	uri, err := PathToURI(decl.File)
	if err != nil {
		defLogger.Warn("Failed to convert definition file path to URI", "path", decl.File, "error", err)
		return nil, nil
	}
	char := decl.Column
	if line, ok := fileLine(decl.File, file.Path, file.Content, decl.Line); ok {
		char = RunesToUTF16Offset(line, decl.Column)
	}
	lspPos := LSPPosition{Line: uint32(decl.Line), Character: uint32(char)}

	defLogger.Debug("Definition found", "identifier", decl.Name, "location_uri", uri, "location_line", decl.Line)
	return DefinitionResult{{URI: DocumentURI(uri), Range: LSPRange{Start: lspPos, End: lspPos}}}, nil
}

// lookupAt resolves the declaration of the identifier at params.Position.
// A nil declaration means there is nothing to report; the reason is logged.
func (s *Server) lookupAt(ctx context.Context, params TextDocumentPositionParams, logger *slog.Logger) (*OpenFile, *TextDocument, *DeclarationResult) {
	file, ok := s.openFile(params.TextDocument.URI)
	if !ok {
		logger.Warn("Request for unknown file")
		return nil, nil, nil
	}
	doc := NewTextDocument(string(file.Content))
	pos, err := lspToPosition(doc, params.Position)
	if err != nil {
		logger.Warn("Failed to convert LSP position", "error", err)
		return file, doc, nil
	}

	cfg := s.currentConfig()
	lookupCtx, cancel := context.WithTimeout(ctx, cfg.LookupTimeout)
	defer cancel()

	decl, err := s.helper.Finder().FindDeclaration(lookupCtx, DeclarationRequest{
		Path:     file.Path,
		Content:  file.Content,
		Position: pos,
		DocsTool: cfg.DocsTool.ForSignatureHelp(),
	})
	if err != nil {
		logger.Debug("No declaration at position", "pos", pos.String(), "reason", err)
		return file, doc, nil
	}
	return file, doc, decl
}
