package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clearcore/core"
	"clearcore/native/access"
	"clearcore/native/escrow"
	nativecommon "clearcore/native/common"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "CLEARCORE_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001

	codeNotFound           = -32022
	codeForbidden          = -32023
	codeConflict           = -32024
	codePreconditionFailed = -32026
	codePaused             = -32027
	codeTransferFailed     = -32028
	codeReentrant          = -32029
)

// Server exposes the settlement ledger over JSON-RPC 2.0. Mutating methods
// require the bearer token from CLEARCORE_RPC_TOKEN when one is configured.
type Server struct {
	node      *core.Node
	authToken string
}

// NewServer creates an RPC server bound to the provided node.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// Handler returns the HTTP handler serving the JSON-RPC endpoint alongside
// health and metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the RPC surface on the provided address, blocking until the
// listener fails.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// writeLedgerError maps a ledger error onto the JSON-RPC taxonomy so operator
// tooling can distinguish "retry later" from "never retry as-is".
func writeLedgerError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, escrow.ErrInvalidID),
		errors.Is(err, escrow.ErrZeroAmount),
		errors.Is(err, escrow.ErrZeroRecipient),
		errors.Is(err, escrow.ErrLengthMismatch),
		errors.Is(err, escrow.ErrEmptyBatch),
		errors.Is(err, escrow.ErrBatchTooLarge),
		errors.Is(err, escrow.ErrCommissionTooHigh),
		errors.Is(err, escrow.ErrZeroTreasury),
		errors.Is(err, access.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, escrow.ErrEscrowNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, "not_found", err.Error())
	case errors.Is(err, escrow.ErrNotAuthorized), errors.Is(err, access.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, id, codeForbidden, "forbidden", err.Error())
	case errors.Is(err, escrow.ErrEscrowExists),
		errors.Is(err, escrow.ErrAlreadyConfirmed),
		errors.Is(err, escrow.ErrAlreadyDisputed),
		errors.Is(err, escrow.ErrNotDisputed):
		writeError(w, http.StatusConflict, id, codeConflict, "conflict", err.Error())
	case errors.Is(err, escrow.ErrNotReady),
		errors.Is(err, escrow.ErrDisputed),
		errors.Is(err, escrow.ErrExceedsEscrow),
		errors.Is(err, escrow.ErrTreasuryNotSet):
		writeError(w, http.StatusUnprocessableEntity, id, codePreconditionFailed, "precondition_failed", err.Error())
	case errors.Is(err, nativecommon.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codePaused, "paused", err.Error())
	case errors.Is(err, escrow.ErrTransferFailed):
		writeError(w, http.StatusUnprocessableEntity, id, codeTransferFailed, "transfer_failed", err.Error())
	case errors.Is(err, nativecommon.ErrReentrantCall):
		writeError(w, http.StatusConflict, id, codeReentrant, "reentrant_call", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req RPCRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}
	if handler.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	handler.fn(w, &req)
}

type method struct {
	mutating bool
	fn       func(http.ResponseWriter, *RPCRequest)
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"escrow_deposit":               {true, s.handleEscrowDeposit},
		"escrow_get":                   {false, s.handleEscrowGet},
		"escrow_raiseDispute":          {true, s.handleEscrowRaiseDispute},
		"escrow_clearDispute":          {true, s.handleEscrowClearDispute},
		"escrow_confirmDelivery":       {true, s.handleEscrowConfirmDelivery},
		"settlement_batchRelease":      {true, s.handleBatchRelease},
		"settlement_batchRevenueShare": {true, s.handleBatchRevenueShare},
		"settlement_setCommission":     {true, s.handleSetCommission},
		"settlement_setTreasury":       {true, s.handleSetTreasury},
		"settlement_pause":             {true, s.handlePause},
		"settlement_unpause":           {true, s.handleUnpause},
		"access_grantRole":             {true, s.handleGrantRole},
		"access_revokeRole":            {true, s.handleRevokeRole},
		"bank_balance":                 {false, s.handleBalance},
		"bank_mint":                    {true, s.handleMint},
		"events_tail":                  {false, s.handleEventsTail},
	}
}
