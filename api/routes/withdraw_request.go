package routes

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/models"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/service"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/cache"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/withdraw"
)

// Requester accepts a new withdrawal and runs it through the burn-release
// protocol. Only the bridge process mounts the request route; the read-only
// API service has no requester.
type Requester interface {
	Request(ctx context.Context, recipient common.Address, amount *big.Int) (withdraw.Result, error)
}

// NewBridgeRoutes ... Construct a route handler that also accepts withdrawal requests
func NewBridgeRoutes(l log.Logger, r *chi.Mux, svc service.Service, enableCache bool, cache *cache.LruCache, requester Requester) Routes {
	routes := NewRoutes(l, r, svc, enableCache, cache)
	routes.requester = requester
	return routes
}

// WithdrawalRequestHandler ... Handles /api/v1/withdrawals POST requests.
// The request blocks through burn confirmation; large withdrawals return as
// queued with their maturity time.
func (h Routes) WithdrawalRequestHandler(w http.ResponseWriter, r *http.Request) {
	if h.requester == nil {
		http.Error(w, "withdrawal requests not accepted by this service", http.StatusNotImplemented)
		return
	}

	var body models.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v := new(service.Validator)
	recipient, err := v.ParseValidateAddress(body.Recipient)
	if err != nil {
		http.Error(w, "invalid recipient address", http.StatusBadRequest)
		return
	}
	amount, err := v.ParseValidateAmount(body.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	result, err := h.requester.Request(r.Context(), recipient, amount)
	if err != nil {
		http.Error(w, "Internal server error processing withdrawal", http.StatusInternalServerError)
		h.logger.Error("withdrawal request failed", "recipient", recipient, "err", err.Error())
		return
	}

	response := models.WithdrawalRequestResponse{
		Guid:         result.GUID.String(),
		Outcome:      result.Outcome,
		Reason:       result.Reason,
		ReleaseAfter: result.ReleaseAfter,
	}
	if result.BurnTxHash != (common.Hash{}) {
		response.BurnTxHash = result.BurnTxHash.Hex()
	}
	if result.ReleaseTx != (common.Hash{}) {
		response.ReleaseTxHash = result.ReleaseTx.Hex()
	}

	status := http.StatusOK
	if result.Outcome == withdraw.OutcomeRejected {
		status = http.StatusUnprocessableEntity
	}
	if err := jsonResponse(w, response, status); err != nil {
		h.logger.Error("Error writing response", "err", err.Error())
	}
}
