// deepsignature/lsp_server.go
// Implements the Language Server Protocol (LSP) server logic.
package deepsignature

import (
	"context"
	"encoding/json"
	"errors"
	"expvar" // For metrics publishing
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug" // For panic recovery
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// ============================================================================
// LSP Server Implementation
// ============================================================================

// Server represents the LSP server instance.
type Server struct {
	conn           *jsonrpc2.Conn
	logger         *slog.Logger
	levelVar       *slog.LevelVar // Adjusted on log_level changes; may be nil.
	helper         *SignatureHelper
	files          map[DocumentURI]*OpenFile
	filesMu        sync.RWMutex
	config         Config // Current effective configuration
	configMu       sync.RWMutex
	clientCaps     ClientCapabilities
	serverInfo     *ServerInfo
	initParams     *InitializeParams
	requestTracker *RequestTracker
}

// OpenFile represents a file currently open in the client editor.
type OpenFile struct {
	URI     DocumentURI
	Path    string // Absolute filesystem path derived from URI.
	Content []byte
	Version int
}

// NewServer creates a new LSP server instance. levelVar, when non-nil, is the
// level of the handler behind logger and follows log_level changes.
func NewServer(helper *SignatureHelper, logger *slog.Logger, levelVar *slog.LevelVar, version string) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		logger:   logger,
		levelVar: levelVar,
		helper:   helper,
		files:    make(map[DocumentURI]*OpenFile),
		config:   helper.GetCurrentConfig(),
		serverInfo: &ServerInfo{
			Name:    serverDisplayName,
			Version: version,
		},
		requestTracker: NewRequestTracker(),
	}
	publishExpvarMetrics(s)
	return s
}

// Run starts the LSP server on r/w and blocks until the connection closes.
func (s *Server) Run(r io.Reader, w io.Writer) {
	s.logger.Info("Starting LSP server run loop")

	stream := &stdrwc{r: r, w: w}
	objectStream := jsonrpc2.NewPlainObjectStream(stream)
	handler := notificationsInOrder{h: jsonrpc2.HandlerWithError(s.handle), tracker: s.requestTracker}

	s.conn = jsonrpc2.NewConn(context.Background(), objectStream, handler)
	s.logger.Info("JSON-RPC connection established")

	<-s.conn.DisconnectNotify()
	s.logger.Info("JSON-RPC connection closed")
}

// notificationsInOrder handles notifications on the read loop, keeping
// document updates ordered, and requests on their own goroutines so that
// $/cancelRequest can reach a running request. Requests are registered with
// the tracker before the read loop moves on, so a cancel that follows its
// request is never missed.
type notificationsInOrder struct {
	h       jsonrpc2.Handler
	tracker *RequestTracker
}

func (n notificationsInOrder) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		n.h.Handle(ctx, conn, req)
		return
	}
	reqCtx := n.tracker.Add(req.ID, ctx)
	go func() {
		defer n.tracker.Remove(req.ID)
		n.h.Handle(reqCtx, conn, req)
	}()
}

// stdrwc is a simple ReadWriteCloser that wraps stdin/stdout without closing them.
type stdrwc struct {
	r io.Reader
	w io.Writer
}

func (s *stdrwc) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *stdrwc) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdrwc) Close() error                { return nil }

// handle routes incoming LSP requests/notifications to appropriate methods.
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	methodLogger := s.logger.With("method", req.Method, "is_notification", req.Notif)
	isRequest := !req.Notif
	if isRequest {
		methodLogger = methodLogger.With("req_id", req.ID)
	}
	methodLogger.Debug("Received request/notification")

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			methodLogger.Error("Panic recovered in handler", "panic_value", r, "stack", stack)

			panicData, marshalErr := json.Marshal(fmt.Sprintf("Panic: %v", r))
			if marshalErr != nil {
				methodLogger.Error("Failed to marshal panic message for error data", "error", marshalErr)
				panicData = json.RawMessage(`"failed to marshal panic data"`)
			}
			rawPanicData := json.RawMessage(panicData)

			err = &jsonrpc2.Error{
				Code:    int64(JsonRpcInternalError),
				Message: fmt.Sprintf("Internal server error in method %s", req.Method),
				Data:    &rawPanicData,
			}
			result = nil
		}
	}()

	select {
	case <-ctx.Done():
		methodLogger.Warn("Request context cancelled before processing started", "error", ctx.Err())
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Request cancelled"}
	default:
	}

	unmarshalParams := func(target any) error {
		if req.Params == nil {
			return errors.New("params field is null")
		}
		return json.Unmarshal(*req.Params, target)
	}
	invalidParams := func(err error) error {
		methodLogger.Error("Failed to unmarshal params", "error", err)
		return &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid %s params: %v", req.Method, err)}
	}

	switch req.Method {
	case "initialize":
		var params InitializeParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleInitialize(ctx, conn, req, params, methodLogger)

	case "initialized":
		methodLogger.Info("Client initialized notification received")
		return nil, nil

	case "shutdown":
		return s.handleShutdown(ctx, conn, req, methodLogger)

	case "exit":
		return s.handleExit(ctx, conn, req, methodLogger)

	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didOpen params", "error", err)
			return nil, nil // Ignore notification errors
		}
		return s.handleDidOpen(ctx, conn, req, params, methodLogger)

	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChange params", "error", err)
			return nil, nil
		}
		return s.handleDidChange(ctx, conn, req, params, methodLogger)

	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didClose params", "error", err)
			return nil, nil
		}
		return s.handleDidClose(ctx, conn, req, params, methodLogger)

	case "textDocument/signatureHelp":
		var params SignatureHelpParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleSignatureHelp(ctx, conn, req, params, methodLogger)

	case "textDocument/hover":
		var params HoverParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleHover(ctx, conn, req, params, methodLogger)

	case "textDocument/definition":
		var params DefinitionParams
		if err := unmarshalParams(&params); err != nil {
			return nil, invalidParams(err)
		}
		return s.handleDefinition(ctx, conn, req, params, methodLogger)

	case "workspace/didChangeConfiguration":
		var params DidChangeConfigurationParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChangeConfiguration params", "error", err)
			return nil, nil
		}
		return s.handleDidChangeConfiguration(ctx, conn, req, params, methodLogger)

	case "$/cancelRequest":
		var params CancelParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal cancelRequest params", "error", err)
			return nil, nil
		}
		cancelID, ok := cancelRequestID(params.ID)
		if !ok {
			methodLogger.Warn("Could not determine type of cancel request ID", "id_value", params.ID, "id_type", fmt.Sprintf("%T", params.ID))
			return nil, nil
		}
		s.requestTracker.Cancel(cancelID)
		methodLogger.Info("Cancellation request processed", "cancelled_id", cancelID)
		return nil, nil

	default:
		if req.Notif {
			methodLogger.Debug("Ignoring unhandled notification")
			return nil, nil
		}
		methodLogger.Warn("Unhandled LSP method")
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcMethodNotFound), Message: fmt.Sprintf("Method not supported: %s", req.Method)}
	}
}

// cancelRequestID decodes the id of a $/cancelRequest, which JSON delivers
// as float64 or string.
func cancelRequestID(raw any) (jsonrpc2.ID, bool) {
	switch idVal := raw.(type) {
	case float64:
		return jsonrpc2.ID{Num: uint64(idVal)}, true
	case string:
		return jsonrpc2.ID{Str: idVal, IsString: true}, true
	default:
		return jsonrpc2.ID{}, false
	}
}

// openFile returns the open document for uri.
func (s *Server) openFile(uri DocumentURI) (*OpenFile, bool) {
	s.filesMu.RLock()
	defer s.filesMu.RUnlock()
	f, ok := s.files[uri]
	return f, ok
}

func (s *Server) currentConfig() Config {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// ApplyConfig validates and installs cfg on the helper and the server. It is
// used for client settings and for config file reloads.
func (s *Server) ApplyConfig(cfg Config, source string) error {
	logger := s.logger.With("config_source", source)
	if err := s.helper.UpdateConfig(cfg); err != nil {
		logger.Error("Failed to apply updated configuration", "error", err)
		return err
	}
	applied := s.helper.GetCurrentConfig()
	s.configMu.Lock()
	s.config = applied
	s.configMu.Unlock()

	if level, err := ParseLogLevel(applied.LogLevel); err == nil && s.levelVar != nil {
		s.levelVar.Set(level)
		logger.Info("Log level updated", "new_level", level)
	}
	logger.Info("Server configuration updated")
	return nil
}

// ============================================================================
// LSP Notification Sending Helpers
// ============================================================================

func (s *Server) sendShowMessage(conn *jsonrpc2.Conn, msgType MessageType, message string) {
	if conn == nil {
		s.logger.Warn("Cannot send showMessage: connection is nil")
		return
	}
	params := ShowMessageParams{Type: msgType, Message: message}
	if err := conn.Notify(context.Background(), "window/showMessage", params); err != nil {
		s.logger.Error("Failed to send window/showMessage notification", "error", err, "message_type", msgType)
	} else {
		s.logger.Debug("Sent window/showMessage notification", "message_type", msgType)
	}
}

// ============================================================================
// Metrics Publishing
// ============================================================================

var publishExpvarOnce sync.Once

// publishExpvarMetrics publishes server gauges. expvar names are process
// global, so only the first server in a process is published.
func publishExpvarMetrics(s *Server) {
	publishExpvarOnce.Do(func() {
		startTime := time.Now()
		expvar.NewString("serverInfo.name").Set(s.serverInfo.Name)
		expvar.NewString("serverInfo.version").Set(s.serverInfo.Version)
		expvar.NewString("serverStartTime").Set(startTime.Format(time.RFC3339))
		expvar.Publish("goroutines", expvar.Func(func() any { return runtime.NumGoroutine() }))
		expvar.Publish("memory.allocBytes", expvar.Func(func() any {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return m.Alloc
		}))
		expvar.Publish("lsp.openFiles", expvar.Func(func() any {
			s.filesMu.RLock()
			defer s.filesMu.RUnlock()
			return len(s.files)
		}))
		expvar.Publish("lsp.pendingRequests", expvar.Func(func() any { return s.requestTracker.Count() }))

		cacheMetric := func(read func(hits, misses, keysAdded, keysEvicted uint64) uint64) expvar.Func {
			return func() any {
				cf := s.helper.CachingFinder()
				if cf == nil {
					return 0
				}
				m := cf.GetMemoryCacheMetrics()
				if m == nil {
					return 0
				}
				return read(m.Hits(), m.Misses(), m.KeysAdded(), m.KeysEvicted())
			}
		}
		expvar.Publish("cache.memory.hits", cacheMetric(func(h, _, _, _ uint64) uint64 { return h }))
		expvar.Publish("cache.memory.misses", cacheMetric(func(_, m, _, _ uint64) uint64 { return m }))
		expvar.Publish("cache.memory.keysAdded", cacheMetric(func(_, _, a, _ uint64) uint64 { return a }))
		expvar.Publish("cache.memory.keysEvicted", cacheMetric(func(_, _, _, e uint64) uint64 { return e }))
		s.logger.Info("Expvar metrics published")
	})
}

// ============================================================================
// Request Cancellation Tracker
// ============================================================================

// RequestTracker manages cancellation contexts for ongoing LSP requests.
type RequestTracker struct {
	mu       sync.Mutex
	requests map[jsonrpc2.ID]context.CancelFunc
}

// NewRequestTracker creates a new tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		requests: make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// Add registers a request ID and returns the context the request must run
// under; Cancel(id) cancels it.
func (rt *RequestTracker) Add(id jsonrpc2.ID, ctx context.Context) context.Context {
	reqCtx, cancel := context.WithCancel(ctx)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.requests[id]; ok {
		prev()
	}
	rt.requests[id] = cancel
	return reqCtx
}

// Remove deregisters a request ID and releases its context.
func (rt *RequestTracker) Remove(id jsonrpc2.ID) {
	rt.mu.Lock()
	cancel, found := rt.requests[id]
	delete(rt.requests, id)
	rt.mu.Unlock()
	if found {
		cancel()
	}
}

// Cancel finds the cancel function for a request ID and calls it.
func (rt *RequestTracker) Cancel(id jsonrpc2.ID) {
	rt.mu.Lock()
	cancel, found := rt.requests[id]
	if found {
		delete(rt.requests, id) // Remove immediately
	}
	rt.mu.Unlock()

	if found {
		slog.Debug("Calling cancel function for request", "id", id)
		cancel() // Call outside lock
	} else {
		slog.Debug("Cancel function not found for request ID", "id", id)
	}
}

// Count returns the number of currently tracked requests.
func (rt *RequestTracker) Count() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.requests)
}
