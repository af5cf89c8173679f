package api

import "github.com/warp/metering-engine/fees"

// =============================================================================
// REQUEST BODIES
// =============================================================================

// ChargeBody is the body of POST /api/actions/{code}/charge.
type ChargeBody struct {
	// Payer overrides the metered identity; empty uses the caller.
	Payer string `json:"payer,omitempty"`

	// AddOn is a flat caller-computed fee, as a decimal string.
	AddOn string `json:"add_on,omitempty"`
}

// ChargeBatchBody is the body of POST /api/actions/{code}/charge-batch.
type ChargeBatchBody struct {
	Payers []string `json:"payers"`
}

// ExemptionBody installs a fee exemption.
type ExemptionBody struct {
	User      string   `json:"user"`
	LimitedTo []string `json:"limited_to,omitempty"`
}

// CurrencyBody installs the ledger-wide fee currency singleton.
type CurrencyBody struct {
	TokenKey string `json:"token_key"`
	Decimals int32  `json:"decimals"`
}

// EscrowBody credits an owner's escrow balance (simulates the external
// authorize step).
type EscrowBody struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

// MintBody credits a dev token balance.
type MintBody struct {
	Owner    string `json:"owner"`
	TokenKey string `json:"token_key"`
	Amount   string `json:"amount"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ChargeResponse reports one charge.
type ChargeResponse struct {
	ActionCode     string `json:"action_code"`
	Payer          string `json:"payer"`
	Exempt         bool   `json:"exempt"`
	Fee            string `json:"fee"`
	CumulativeUses string `json:"cumulative_uses"`
	Settlement     string `json:"settlement"`
	TxID           string `json:"tx_id"`
}

func chargeResponse(r *fees.ChargeResult, txID string) ChargeResponse {
	return ChargeResponse{
		ActionCode:     r.ActionCode,
		Payer:          r.Payer,
		Exempt:         r.Exempt,
		Fee:            r.Fee.String(),
		CumulativeUses: r.CumulativeUses.String(),
		Settlement:     string(r.Settlement),
		TxID:           txID,
	}
}

// BatchResponse reports a batch charge's successful items.
type BatchResponse struct {
	ActionCode string           `json:"action_code"`
	Results    []ChargeResponse `json:"results"`
}

// UsageResponse exposes one usage counter.
type UsageResponse struct {
	ActionCode        string `json:"action_code"`
	User              string `json:"user"`
	CumulativeUses    string `json:"cumulative_uses"`
	CumulativeFeePaid string `json:"cumulative_fee_paid"`
}

// ReceiptResponse exposes one payment receipt.
type ReceiptResponse struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	ActionCode string `json:"action_code"`
	Payer      string `json:"payer"`
	TxID       string `json:"tx_id"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
}

func receiptResponses(receipts []fees.PaymentReceipt) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, ReceiptResponse{
			Year:       r.Year,
			Month:      r.Month,
			Day:        r.Day,
			ActionCode: r.ActionCode,
			Payer:      r.Payer,
			TxID:       r.TxID,
			Amount:     r.Amount.String(),
			Status:     string(r.Status),
		})
	}
	return out
}

// =============================================================================
// ERROR ENVELOPE
// =============================================================================

// ErrorEnvelope is the contract-response shape API consumers branch on:
// a stable code, a short machine-readable key, and a structured payload.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Key     string `json:"key"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

// PaymentFailure is one entry of an aggregated payment-required payload.
type PaymentFailure struct {
	ActionCode string `json:"action_code"`
	Payer      string `json:"payer"`
	Required   string `json:"required"`
	Available  string `json:"available,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func paymentFailure(pr *fees.PaymentRequiredError) PaymentFailure {
	f := PaymentFailure{
		ActionCode: pr.ActionCode,
		Payer:      pr.Payer,
		Required:   pr.Required.String(),
		Detail:     pr.Detail,
	}
	if pr.HasAvailable {
		f.Available = pr.Available.String()
	}
	return f
}
