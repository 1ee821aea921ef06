package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"clearcore/core/types"
	"clearcore/native/escrow"
)

type releaseItemJSON struct {
	EscrowID  string `json:"escrowId"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type shareItemJSON struct {
	EscrowID     string   `json:"escrowId"`
	Stakeholders []string `json:"stakeholders"`
	Amounts      []string `json:"amounts"`
}

type batchReleaseParams struct {
	Caller  string            `json:"caller"`
	BatchID string            `json:"batchId"`
	Items   []releaseItemJSON `json:"items"`
}

type batchShareParams struct {
	Caller  string          `json:"caller"`
	BatchID string          `json:"batchId"`
	Items   []shareItemJSON `json:"items"`
}

type batchResult struct {
	ReceiptID       string `json:"receiptId"`
	BatchID         string `json:"batchId"`
	ItemCount       int    `json:"itemCount"`
	Gross           string `json:"gross"`
	TotalCommission string `json:"totalCommission"`
}

func batchToResult(receipt *escrow.BatchReceipt) *batchResult {
	return &batchResult{
		ReceiptID:       uuid.NewString(),
		BatchID:         receipt.BatchID.Hex(),
		ItemCount:       receipt.ItemCount,
		Gross:           receipt.Gross.String(),
		TotalCommission: receipt.TotalCommission.String(),
	}
}

func (s *Server) handleBatchRelease(w http.ResponseWriter, req *RPCRequest) {
	var params batchReleaseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	batchID, err := parseHash(params.BatchID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	items := make([]escrow.ReleaseItem, 0, len(params.Items))
	for _, raw := range params.Items {
		escrowID, err := parseHash(raw.EscrowID)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		recipient, err := parseAddress(raw.Recipient)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		amount, err := parseAmount(raw.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		items = append(items, escrow.ReleaseItem{EscrowID: escrowID, Recipient: recipient, Amount: amount})
	}
	receipt, err := s.node.SettlementBatchRelease(caller, batchID, items)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, batchToResult(receipt))
}

func (s *Server) handleBatchRevenueShare(w http.ResponseWriter, req *RPCRequest) {
	var params batchShareParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	batchID, err := parseHash(params.BatchID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	items := make([]escrow.ShareItem, 0, len(params.Items))
	for _, raw := range params.Items {
		escrowID, err := parseHash(raw.EscrowID)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		item := escrow.ShareItem{EscrowID: escrowID}
		for _, rawAddr := range raw.Stakeholders {
			stakeholder, err := parseAddress(rawAddr)
			if err != nil {
				writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
				return
			}
			item.Stakeholders = append(item.Stakeholders, stakeholder)
		}
		for _, rawAmount := range raw.Amounts {
			amount, err := parseAmount(rawAmount)
			if err != nil {
				writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
				return
			}
			item.Amounts = append(item.Amounts, amount)
		}
		items = append(items, item)
	}
	receipt, err := s.node.SettlementBatchRevenueShare(caller, batchID, items)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, batchToResult(receipt))
}

type setCommissionParams struct {
	Caller string `json:"caller"`
	Bps    uint32 `json:"bps"`
}

func (s *Server) handleSetCommission(w http.ResponseWriter, req *RPCRequest) {
	var params setCommissionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SettlementSetCommission(caller, params.Bps); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint32{"bps": params.Bps})
}

type setTreasuryParams struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, req *RPCRequest) {
	var params setTreasuryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	treasury, err := parseAddress(params.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SettlementSetTreasury(caller, treasury); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"treasury": treasury.Hex()})
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) callerOnly(w http.ResponseWriter, req *RPCRequest, fn func(common.Address) error) {
	var params callerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) {
	s.callerOnly(w, req, s.node.Pause)
}

func (s *Server) handleUnpause(w http.ResponseWriter, req *RPCRequest) {
	s.callerOnly(w, req, s.node.Unpause)
}

type roleParams struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (s *Server) roleCall(w http.ResponseWriter, req *RPCRequest, fn func(common.Address, string, common.Address) error) {
	var params roleParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(caller, params.Role, addr); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"role": params.Role, "address": addr.Hex()})
}

func (s *Server) handleGrantRole(w http.ResponseWriter, req *RPCRequest) {
	s.roleCall(w, req, s.node.AccessGrantRole)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, req *RPCRequest) {
	s.roleCall(w, req, s.node.AccessRevokeRole)
}

type balanceParams struct {
	Address string `json:"address"`
}

func (s *Server) handleBalance(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"address": addr.Hex(), "balance": balance.String()})
}

type mintParams struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.Mint(caller, addr, amount); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"address": addr.Hex(), "amount": amount.String()})
}

func (s *Server) handleEventsTail(w http.ResponseWriter, req *RPCRequest) {
	tail := s.node.Events()
	if tail == nil {
		tail = []types.Event{}
	}
	writeResult(w, req.ID, tail)
}
