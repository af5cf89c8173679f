/*
handlers.go - HTTP handlers for the fee engine dev gateway

PURPOSE:
  Simulates the peer's method dispatch for local development: each endpoint
  runs one host invocation against the engine, with the host's buffered
  write-set committing only when the handler's invocation returns nil. The
  real peer wire protocol is out of scope; this surface exists so the
  engine can be exercised end to end without one.

ENDPOINTS:
  Charging:
    POST /api/actions/{code}/charge        Meter + settle one use
    POST /api/actions/{code}/charge-batch  Charge several payers at once

  Queries:
    GET  /api/usage/{code}/{user}          Usage counter
    GET  /api/receipts/period              Receipts by date projection
    GET  /api/receipts/payer/{payer}       Receipts by payer projection
    GET  /api/escrow/{owner}               Escrow balance
    GET  /api/balances/{owner}             Token balance

  Admin (the privileged external calls, simulated):
    POST /api/admin/schedules              Install a pricing ladder + split
    POST /api/admin/exemptions             Install a fee exemption
    POST /api/admin/currency               Install the fee currency
    POST /api/admin/escrow                 Credit escrow (authorize step)
    POST /api/admin/mint                   Mint dev tokens

CALLER IDENTITY:
  The authenticated caller comes from the X-Caller header (the wallet
  connector's job in production). The transaction id is the chi request id.

ERROR HANDLING:
  Errors are returned as an ErrorEnvelope with a stable code, a short
  machine-readable key, and a structured payload:
  - 402 PAYMENT_REQUIRED: settlement failures (single and aggregated)
  - 400 BAD_REQUEST:      malformed input
  - 404 NOT_FOUND:        missing records on query endpoints
  - 500 INTERNAL:         everything else

SEE ALSO:
  - dto.go:    request/response shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/factory"
	"github.com/warp/metering-engine/fees"
	"github.com/warp/metering-engine/ledger"
	"github.com/warp/metering-engine/token"
)

// defaultCaller is used when a request carries no X-Caller header.
const defaultCaller = "dev-caller"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Host    *ledger.Host
	Splits  fees.SplitMap
	factory *factory.ScheduleFactory
}

// NewHandler creates a handler over a host.
func NewHandler(host *ledger.Host) *Handler {
	return &Handler{
		Host:    host,
		Splits:  make(fees.SplitMap),
		factory: factory.NewScheduleFactory(),
	}
}

// invocation derives the host invocation context from the request.
func invocation(r *http.Request) ledger.Invocation {
	caller := r.Header.Get("X-Caller")
	if caller == "" {
		caller = defaultCaller
	}
	return ledger.Invocation{
		Caller:    caller,
		TxID:      middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}
}

func (h *Handler) engine(tx ledger.RecordStore) *fees.Engine {
	return &fees.Engine{
		Store:  tx,
		Tokens: token.New(tx),
		Splits: h.Splits,
	}
}

// =============================================================================
// CHARGING
// =============================================================================

func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	actionCode := chi.URLParam(r, "code")
	var body ChargeBody
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}

	addOn := decimal.Zero
	if body.AddOn != "" {
		var err error
		addOn, err = decimal.NewFromString(body.AddOn)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
	}

	inv := invocation(r)
	var result *fees.ChargeResult
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var chargeErr error
		result, chargeErr = h.engine(tx).Charge(r.Context(), inv, fees.ChargeRequest{
			ActionCode: actionCode,
			Payer:      body.Payer,
			AddOn:      addOn,
		})
		return chargeErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chargeResponse(result, inv.TxID))
}

func (h *Handler) ChargeBatch(w http.ResponseWriter, r *http.Request) {
	actionCode := chi.URLParam(r, "code")
	var body ChargeBatchBody
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}

	inv := invocation(r)
	var batch *fees.BatchResult
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var chargeErr error
		batch, chargeErr = h.engine(tx).ChargeBatch(r.Context(), inv, actionCode, body.Payers)
		return chargeErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := BatchResponse{ActionCode: actionCode}
	for _, result := range batch.Results {
		out.Results = append(out.Results, chargeResponse(result, inv.TxID))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// QUERIES
// =============================================================================

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	actionCode := chi.URLParam(r, "code")
	user := chi.URLParam(r, "user")

	var counter fees.UsageCounter
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var loadErr error
		counter, loadErr = fees.LoadUsage(r.Context(), tx, actionCode, user)
		return loadErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{
		ActionCode:        counter.ActionCode,
		User:              counter.User,
		CumulativeUses:    counter.CumulativeUses.String(),
		CumulativeFeePaid: counter.CumulativeFeePaid.String(),
	})
}

func (h *Handler) GetReceiptsByPeriod(w http.ResponseWriter, r *http.Request) {
	year := queryInt(r, "year")
	if year == 0 {
		writeBadRequest(w, errors.New("year query parameter is required"))
		return
	}
	month := queryInt(r, "month")
	day := queryInt(r, "day")

	var receipts []fees.PaymentReceipt
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var loadErr error
		receipts, loadErr = fees.ReceiptsByPeriod(r.Context(), tx, year, month, day)
		return loadErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponses(receipts))
}

func (h *Handler) GetReceiptsByPayer(w http.ResponseWriter, r *http.Request) {
	payer := chi.URLParam(r, "payer")

	var receipts []fees.PaymentReceipt
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var loadErr error
		receipts, loadErr = fees.ReceiptsByPayer(r.Context(), tx, payer)
		return loadErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponses(receipts))
}

func (h *Handler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	var escrow fees.EscrowBalance
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var loadErr error
		escrow, loadErr = fees.LoadEscrow(r.Context(), tx, owner)
		return loadErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":  escrow.Owner,
		"amount": escrow.Amount.String(),
	})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	tokenKey := r.URL.Query().Get("token")
	if tokenKey == "" {
		writeBadRequest(w, errors.New("token query parameter is required"))
		return
	}

	var amount decimal.Decimal
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var loadErr error
		amount, loadErr = token.New(tx).BalanceOf(r.Context(), owner, tokenKey)
		return loadErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":  owner,
		"token":  tokenKey,
		"amount": amount.String(),
	})
}

// =============================================================================
// ADMIN - Simulated privileged external calls
// =============================================================================

func (h *Handler) InstallSchedule(w http.ResponseWriter, r *http.Request) {
	var body factory.ScheduleJSON
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	def, err := h.factory.FromJSON(body)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	err = h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		for _, tier := range def.Tiers {
			if err := fees.PutSchedule(r.Context(), tx, tier); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if def.Split != nil {
		h.Splits[def.ActionCode] = def.Split
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"action_code": def.ActionCode,
		"tiers":       len(def.Tiers),
		"split":       def.Split != nil,
	})
}

func (h *Handler) InstallExemption(w http.ResponseWriter, r *http.Request) {
	var body ExemptionBody
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	if body.User == "" {
		writeBadRequest(w, errors.New("user is required"))
		return
	}
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		return fees.PutExemption(r.Context(), tx, fees.FeeExemption{
			User:      body.User,
			LimitedTo: body.LimitedTo,
		})
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

func (h *Handler) InstallCurrency(w http.ResponseWriter, r *http.Request) {
	var body CurrencyBody
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	if body.TokenKey == "" {
		writeBadRequest(w, errors.New("token_key is required"))
		return
	}
	err := h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		return fees.PutCurrency(r.Context(), tx, fees.FeeCurrency{
			TokenKey: body.TokenKey,
			Decimals: body.Decimals,
		})
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

func (h *Handler) CreditEscrow(w http.ResponseWriter, r *http.Request) {
	var body EscrowBody
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || body.Owner == "" {
		writeBadRequest(w, errors.New("owner and a decimal amount are required"))
		return
	}

	var escrow fees.EscrowBalance
	err = h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		var creditErr error
		escrow, creditErr = fees.CreditEscrow(r.Context(), tx, body.Owner, amount)
		return creditErr
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":  escrow.Owner,
		"amount": escrow.Amount.String(),
	})
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var body MintBody
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || body.Owner == "" || body.TokenKey == "" {
		writeBadRequest(w, errors.New("owner, token_key and a decimal amount are required"))
		return
	}

	err = h.Host.Invoke(r.Context(), func(tx ledger.RecordStore) error {
		return token.New(tx).Mint(r.Context(), body.Owner, body.TokenKey, amount)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(out)
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorEnvelope{
		Code:    "BAD_REQUEST",
		Key:     "bad_request",
		Message: err.Error(),
	})
}

// writeEngineError maps engine failures onto the envelope API consumers
// react to programmatically.
func writeEngineError(w http.ResponseWriter, err error) {
	var aggregated *fees.AggregatedPaymentError
	if errors.As(err, &aggregated) {
		failures := make([]PaymentFailure, 0, len(aggregated.Failures))
		for _, pr := range aggregated.Failures {
			failures = append(failures, paymentFailure(pr))
		}
		writeJSON(w, http.StatusPaymentRequired, ErrorEnvelope{
			Code:    "PAYMENT_REQUIRED",
			Key:     "aggregated_payment_required",
			Message: aggregated.Error(),
			Payload: failures,
		})
		return
	}

	var pr *fees.PaymentRequiredError
	if errors.As(err, &pr) {
		writeJSON(w, http.StatusPaymentRequired, ErrorEnvelope{
			Code:    "PAYMENT_REQUIRED",
			Key:     "payment_required",
			Message: pr.Error(),
			Payload: paymentFailure(pr),
		})
		return
	}

	if ledger.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, ErrorEnvelope{
			Code:    "NOT_FOUND",
			Key:     "not_found",
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorEnvelope{
		Code:    "INTERNAL",
		Key:     "internal_error",
		Message: err.Error(),
	})
}
