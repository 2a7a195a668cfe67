package models

import (
	"github.com/google/uuid"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
)

type QueryDWParams struct {
	Address  string
	Page     int
	PageSize int
	Order    string
}

type QueryGuidParams struct {
	Guid uuid.UUID
}

type DepositsResponse struct {
	Current int              `json:"Current"`
	Size    int              `json:"Size"`
	Total   int64            `json:"Total"`
	Records []bridge.Deposit `json:"Records"`
}

type WithdrawalsResponse struct {
	Current int                 `json:"Current"`
	Size    int                 `json:"Size"`
	Total   int64               `json:"Total"`
	Records []bridge.Withdrawal `json:"Records"`
}

type ManualRecoveryResponse struct {
	Total   int                 `json:"Total"`
	Records []bridge.Withdrawal `json:"Records"`
}

// WithdrawalRequest is the POST body for a new withdrawal. Amount is a
// decimal wei string.
type WithdrawalRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type WithdrawalRequestResponse struct {
	Guid          string `json:"guid"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	BurnTxHash    string `json:"burnTxHash,omitempty"`
	ReleaseTxHash string `json:"releaseTxHash,omitempty"`
	ReleaseAfter  uint64 `json:"releaseAfter,omitempty"`
}
