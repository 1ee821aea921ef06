package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"clearcore/native/escrow"
)

type escrowDepositParams struct {
	ID     string `json:"id"`
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
	Meta   string `json:"meta,omitempty"`
}

type escrowActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type escrowIDParams struct {
	ID string `json:"id"`
}

type escrowJSON struct {
	ID              string `json:"id"`
	Payer           string `json:"payer"`
	Amount          string `json:"amount"`
	Released        string `json:"released"`
	Remaining       string `json:"remaining"`
	ReadyForRelease bool   `json:"readyForRelease"`
	Disputed        bool   `json:"disputed"`
	MetaHash        string `json:"metaHash"`
	CreatedAt       uint64 `json:"createdAt"`
}

func escrowToJSON(esc *escrow.Escrow) *escrowJSON {
	return &escrowJSON{
		ID:              esc.ID.Hex(),
		Payer:           esc.Payer.Hex(),
		Amount:          esc.Amount.String(),
		Released:        esc.Released.String(),
		Remaining:       esc.Remaining().String(),
		ReadyForRelease: esc.ReadyForRelease,
		Disputed:        esc.Disputed,
		MetaHash:        esc.MetaHash.Hex(),
		CreatedAt:       esc.CreatedAt,
	}
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseHash(raw string) (common.Hash, error) {
	trimmed := strings.TrimSpace(raw)
	cleaned := strings.TrimPrefix(trimmed, "0x")
	if len(cleaned) != common.HashLength*2 {
		return common.Hash{}, fmt.Errorf("invalid 32-byte identifier %q", raw)
	}
	for _, r := range cleaned {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return common.Hash{}, fmt.Errorf("invalid 32-byte identifier %q", raw)
		}
	}
	return common.HexToHash(trimmed), nil
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func (s *Server) handleEscrowDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params escrowDepositParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var meta common.Hash
	if strings.TrimSpace(params.Meta) != "" {
		if meta, err = parseHash(params.Meta); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if err := s.node.EscrowDeposit(id, payer, amount, meta); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"id": id.Hex()})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, req *RPCRequest) {
	var params escrowIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, ok := s.node.EscrowGet(id)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "not_found", "escrow not found")
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}

func (s *Server) escrowActorCall(w http.ResponseWriter, req *RPCRequest, fn func(common.Hash, common.Address) error) {
	var params escrowActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseHash(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(id, caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"id": id.Hex()})
}

func (s *Server) handleEscrowRaiseDispute(w http.ResponseWriter, req *RPCRequest) {
	s.escrowActorCall(w, req, s.node.EscrowRaiseDispute)
}

func (s *Server) handleEscrowClearDispute(w http.ResponseWriter, req *RPCRequest) {
	s.escrowActorCall(w, req, s.node.EscrowClearDispute)
}

func (s *Server) handleEscrowConfirmDelivery(w http.ResponseWriter, req *RPCRequest) {
	s.escrowActorCall(w, req, s.node.EscrowConfirmDelivery)
}
