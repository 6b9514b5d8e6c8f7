// deepsignature/lsp_protocol.go
// Contains LSP specific data structures and position conversion helpers.
package deepsignature

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
// LSP Specific Structures
// ============================================================================

// DocumentURI represents the URI for a text document.
type DocumentURI string

// LSPPosition represents a 0-based line/character offset (LSP standard: UTF-16).
type LSPPosition struct {
	Line      uint32 `json:"line"`      // 0-based
	Character uint32 `json:"character"` // 0-based, UTF-16 offset
}

// LSPRange represents a range in a text document using LSP Positions (UTF-16).
type LSPRange struct {
	Start LSPPosition `json:"start"`
	End   LSPPosition `json:"end"`
}

// Location represents a location inside a resource, such as a line inside a text file.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range LSPRange    `json:"range"`
}

// TextDocumentIdentifier identifies a specific text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// TextDocumentItem represents a text document.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams is a document plus a position inside it.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     LSPPosition            `json:"position"` // LSP Position (UTF-16)
}

// InitializeParams parameters for the initialize request.
type InitializeParams struct {
	ProcessID             int                `json:"processId,omitempty"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
}

// ClientInfo information about the client.
type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// ClientCapabilities capabilities provided by the client.
type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

// WorkspaceClientCapabilities workspace specific client capabilities.
type WorkspaceClientCapabilities struct {
	Configuration bool `json:"configuration,omitempty"`
}

// TextDocumentClientCapabilities text document specific client capabilities.
type TextDocumentClientCapabilities struct {
	SignatureHelp *SignatureHelpClientCapabilities `json:"signatureHelp,omitempty"`
	Hover         *HoverClientCapabilities         `json:"hover,omitempty"`
	Definition    *DefinitionClientCapabilities    `json:"definition,omitempty"`
}

// SignatureHelpClientCapabilities client capabilities for signature help.
type SignatureHelpClientCapabilities struct {
	ContextSupport bool `json:"contextSupport,omitempty"`
}

// HoverClientCapabilities client capabilities for hover.
type HoverClientCapabilities struct {
	ContentFormat []MarkupKind `json:"contentFormat,omitempty"` // e.g., ["markdown", "plaintext"]
}

// DefinitionClientCapabilities client capabilities for definition.
type DefinitionClientCapabilities struct {
	LinkSupport bool `json:"linkSupport,omitempty"`
}

// InitializeResult result of the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerCapabilities capabilities provided by the server.
type ServerCapabilities struct {
	TextDocumentSync      *TextDocumentSyncOptions `json:"textDocumentSync,omitempty"`
	SignatureHelpProvider *SignatureHelpOptions    `json:"signatureHelpProvider,omitempty"`
	HoverProvider         bool                     `json:"hoverProvider,omitempty"`
	DefinitionProvider    bool                     `json:"definitionProvider,omitempty"`
}

// TextDocumentSyncOptions options for text document synchronization.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose,omitempty"`
	Change    TextDocumentSyncKind `json:"change,omitempty"`
}

// TextDocumentSyncKind defines how text document changes are synced.
type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone TextDocumentSyncKind = 0
	TextDocumentSyncKindFull TextDocumentSyncKind = 1 // We only support Full sync
)

// SignatureHelpOptions server signature help capabilities.
type SignatureHelpOptions struct {
	TriggerCharacters   []string `json:"triggerCharacters,omitempty"`
	RetriggerCharacters []string `json:"retriggerCharacters,omitempty"`
}

// ServerInfo information about the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// DidOpenTextDocumentParams parameters for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams parameters for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidChangeTextDocumentParams parameters for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"` // Only the last one matters for Full sync
}

// VersionedTextDocumentIdentifier identifies a text document with a version number.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentContentChangeEvent an event describing a change to a text document.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"` // The new full content of the document
}

// DidChangeConfigurationParams parameters for workspace/didChangeConfiguration.
type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

// CancelParams parameters for $/cancelRequest.
type CancelParams struct {
	ID any `json:"id"` // ID of the request to cancel (number or string)
}

// SignatureHelpParams parameters for textDocument/signatureHelp.
type SignatureHelpParams struct {
	TextDocumentPositionParams
	Context *SignatureHelpContext `json:"context,omitempty"`
}

// SignatureHelpTriggerKind how signature help was triggered.
type SignatureHelpTriggerKind int

const (
	SignatureHelpTriggerKindInvoked       SignatureHelpTriggerKind = 1
	SignatureHelpTriggerKindTriggerChar   SignatureHelpTriggerKind = 2
	SignatureHelpTriggerKindContentChange SignatureHelpTriggerKind = 3
)

// SignatureHelpContext additional information about how signature help was requested.
type SignatureHelpContext struct {
	TriggerKind         SignatureHelpTriggerKind `json:"triggerKind"`
	TriggerCharacter    string                   `json:"triggerCharacter,omitempty"`
	IsRetrigger         bool                     `json:"isRetrigger"`
	ActiveSignatureHelp *SignatureHelp           `json:"activeSignatureHelp,omitempty"`
}

// SignatureHelp result of textDocument/signatureHelp.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature uint32                 `json:"activeSignature"`
	ActiveParameter uint32                 `json:"activeParameter"`
}

// SignatureInformation one callable signature.
type SignatureInformation struct {
	Label         string                 `json:"label"`
	Documentation *MarkupContent         `json:"documentation,omitempty"`
	Parameters    []ParameterInformation `json:"parameters,omitempty"`
}

// ParameterInformation one parameter of a signature. Label is a substring of
// the signature label.
type ParameterInformation struct {
	Label         string         `json:"label"`
	Documentation *MarkupContent `json:"documentation,omitempty"`
}

// HoverParams parameters for textDocument/hover.
type HoverParams = TextDocumentPositionParams

// HoverResult result for textDocument/hover.
type HoverResult struct {
	Contents MarkupContent `json:"contents"`
	Range    *LSPRange     `json:"range,omitempty"`
}

// MarkupContent represents structured content for hover/documentation.
type MarkupContent struct {
	Kind  MarkupKind `json:"kind"` // e.g., "markdown" or "plaintext"
	Value string     `json:"value"`
}

// MarkupKind defines the kind of markup content.
type MarkupKind string

const (
	MarkupKindPlainText MarkupKind = "plaintext"
	MarkupKindMarkdown  MarkupKind = "markdown"
)

// DefinitionParams parameters for textDocument/definition.
type DefinitionParams = TextDocumentPositionParams

// DefinitionResult can be Location, []Location, or LocationLink[]
type DefinitionResult = []Location

// MessageType is the severity of a window/showMessage notification.
type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

// ShowMessageParams parameters for window/showMessage notification.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ============================================================================
// JSON-RPC Structures
// ============================================================================

// JSON-RPC Standard Error Codes
const (
	JsonRpcParseError           int = -32700
	JsonRpcInvalidRequest       int = -32600
	JsonRpcMethodNotFound       int = -32601
	JsonRpcInvalidParams        int = -32602
	JsonRpcInternalError        int = -32603
	JsonRpcRequestCancelled     int = -32800
	JsonRpcServerNotInitialized int = -32002
	JsonRpcServerBusy           int = -32000
	JsonRpcRequestFailed        int = -32803
)

// ============================================================================
// LSP Utility Functions
// ============================================================================

// lspToPosition converts an LSP (UTF-16) position to a codepoint Position
// within doc. Characters past the end of the line clamp to the line end.
func lspToPosition(doc *TextDocument, p LSPPosition) (Position, error) {
	line := int(p.Line)
	if line >= doc.LineCount() {
		return Position{}, fmt.Errorf("%w: line %d not in document with %d lines", ErrPositionOutOfRange, line, doc.LineCount())
	}
	char, err := Utf16OffsetToRunes(doc.LineAt(line), int(p.Character))
	if err != nil && !errors.Is(err, ErrPositionOutOfRange) {
		return Position{}, fmt.Errorf("%w: %w", ErrPositionConversion, err)
	}
	return Position{Line: line, Character: char}, nil
}

// positionToLSP converts a codepoint Position within doc to LSP (UTF-16).
func positionToLSP(doc *TextDocument, p Position) LSPPosition {
	return LSPPosition{
		Line:      uint32(max(p.Line, 0)),
		Character: uint32(RunesToUTF16Offset(doc.LineAt(p.Line), p.Character)),
	}
}

// signatureResultToLSP converts a SignatureResult into the wire form.
func signatureResultToLSP(res *SignatureResult, markup MarkupKind) *SignatureHelp {
	if res == nil {
		return nil
	}
	help := &SignatureHelp{
		Signatures:      make([]SignatureInformation, 0, len(res.Signatures)),
		ActiveSignature: uint32(res.ActiveSignature),
		ActiveParameter: uint32(res.ActiveParameter),
	}
	for _, sig := range res.Signatures {
		info := SignatureInformation{
			Label:      sig.Label,
			Parameters: make([]ParameterInformation, 0, len(sig.Parameters)),
		}
		if sig.Documentation != "" {
			info.Documentation = &MarkupContent{Kind: markup, Value: sig.Documentation}
		}
		for _, p := range sig.Parameters {
			pi := ParameterInformation{Label: p.Label}
			if p.Documentation != "" {
				pi.Documentation = &MarkupContent{Kind: markup, Value: p.Documentation}
			}
			info.Parameters = append(info.Parameters, pi)
		}
		help.Signatures = append(help.Signatures, info)
	}
	return help
}
