// Package rpc exposes the marketplace engine over a JSON-RPC 2.0 endpoint.
// Mutating methods run inside a state overlay, so a failed instruction leaves
// no partial writes behind.
package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bazaar/core/events"
	nativecommon "bazaar/native/common"
	"bazaar/native/marketplace"
	"bazaar/native/metadata"
	"bazaar/native/token"
	"bazaar/observability/metrics"
	"bazaar/state"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RPCResponse is the JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type handlerFunc func(params []json.RawMessage) (interface{}, *RPCError)

// Server dispatches marketplace JSON-RPC methods against the state manager.
type Server struct {
	state   *state.Manager
	emitter events.Emitter
	pauses  nativecommon.PauseView
	log     *slog.Logger
	metrics *metrics.Marketplace
	methods map[string]handlerFunc
}

// NewServer builds a server over the supplied state manager. The emitter and
// pause view are optional.
func NewServer(st *state.Manager, emitter events.Emitter, pauses nativecommon.PauseView, log *slog.Logger) *Server {
	s := &Server{
		state:   st,
		emitter: emitter,
		pauses:  pauses,
		log:     log,
		metrics: metrics.MarketplaceMetrics(),
	}
	s.methods = s.routeTable()
	return s
}

// Router returns the HTTP router serving the JSON-RPC endpoint and the
// health probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.log != nil {
		s.log.Info("rpc listening", "addr", addr)
	}
	return server.ListenAndServe()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+req.Method, nil)
		return
	}
	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		status := http.StatusBadRequest
		if rpcErr.Code == codeServerError {
			status = http.StatusInternalServerError
		}
		if s.log != nil {
			s.log.Warn("rpc call failed", "method", req.Method, "error", rpcErr.Message)
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func writeResult(w http.ResponseWriter, id, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}})
}

// withEngine runs fn against a freshly wired engine inside a state overlay.
// The overlay commits only when fn succeeds.
func (s *Server) withEngine(fn func(*marketplace.Engine) error) error {
	return s.state.Execute(func(scoped *state.Manager) error {
		eng := marketplace.NewEngine()
		eng.SetState(scoped)
		eng.SetLedger(token.NewLedger(scoped))
		eng.SetMetadata(metadata.NewRegistry(scoped))
		eng.SetEmitter(s.emitter)
		eng.SetPauses(s.pauses)
		eng.SetLogger(s.log)
		eng.SetMetrics(s.metrics)
		return fn(eng)
	})
}

// engineError maps engine sentinel errors onto JSON-RPC error codes.
func engineError(err error) *RPCError {
	switch {
	case errors.Is(err, marketplace.ErrNotFound):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, marketplace.ErrAlreadyExists),
		errors.Is(err, marketplace.ErrWrongAuthority),
		errors.Is(err, marketplace.ErrWrongMint),
		errors.Is(err, marketplace.ErrWrongInstruction),
		errors.Is(err, marketplace.ErrInvalidFee),
		errors.Is(err, marketplace.ErrInvalidFeeReduction),
		errors.Is(err, marketplace.ErrInvalidReward),
		errors.Is(err, marketplace.ErrMissingAccount),
		errors.Is(err, marketplace.ErrVaultsFull),
		errors.Is(err, marketplace.ErrRewardsNotConfigured),
		errors.Is(err, marketplace.ErrOpenPromotion),
		errors.Is(err, marketplace.ErrNotWhitelisted),
		errors.Is(err, marketplace.ErrNumericalOverflow),
		errors.Is(err, nativecommon.ErrModulePaused):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}
