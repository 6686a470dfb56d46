package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/indicators"
	"github.com/trogers1052/papertrade/internal/portfolio"
	"github.com/trogers1052/papertrade/internal/trading"
)

// Query defaults
const (
	DefaultHistoryDays = 30
	DefaultTradeLimit  = 50
	MaxTradeLimit      = 500
)

// Error codes for failures outside the order taxonomy
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeInvalidPeriod        = "INVALID_PERIOD"
	CodeInternal             = "INTERNAL_ERROR"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc *trading.Service
	log zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc *trading.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("component", "api").Logger(),
	}
}

type buyRequest struct {
	Ticker   string          `json:"ticker"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

type sellRequest struct {
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// GetPortfolio handles GET /portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Portfolio(r.Context()))
}

// Buy handles POST /portfolio/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.Buy(r.Context(), req.Ticker, req.Name, req.Price, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"holding": res.Holding,
		"trade":   res.Trade,
	})
}

// Sell handles POST /portfolio/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.Sell(r.Context(), req.Ticker, req.Price, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"holding":     res.Holding,
		"trade":       res.Trade,
		"profit":      res.Outcome.Profit,
		"profit_rate": res.Outcome.ProfitRate,
	})
}

// Deposit handles POST /portfolio/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}

	state, err := h.svc.Deposit(r.Context(), req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"cash": state.Cash})
}

// Reset handles POST /portfolio/reset. The body must carry {"confirm": true}.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Confirm {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error: "reset is irreversible; send {\"confirm\": true}",
			Code:  CodeConfirmationRequired,
		})
		return
	}

	state := h.svc.Reset(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reset",
		"cash":   state.Cash,
	})
}

// GetAssetHistory handles GET /portfolio/asset-history?days=N
func (h *Handler) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days", DefaultHistoryDays)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": h.svc.AssetHistory(days),
	})
}

// RecordSnapshot handles POST /portfolio/asset-history/snapshot
func (h *Handler) RecordSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.RecordSnapshot(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetMovingAverages handles GET /portfolio/asset-history/moving-averages
func (h *Handler) GetMovingAverages(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(w, r, "days", DefaultHistoryDays)
	if !ok {
		return
	}
	periods, err := parsePeriods(r.URL.Query().Get("periods"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: CodeInvalidPeriod})
		return
	}

	res, err := h.svc.MovingAverages(days, periods)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetTradeHistory handles GET /portfolio/trade-history?limit=N
func (h *Handler) GetTradeHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", DefaultTradeLimit)
	if !ok {
		return
	}
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	if limit > MaxTradeLimit {
		limit = MaxTradeLimit
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": h.svc.TradeHistory(limit),
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
		msg = "internal error"
	}
	respondJSON(w, status, errorResponse{Error: msg, Code: code})
}

func statusFor(err error) (int, string) {
	if errors.Is(err, indicators.ErrInvalidPeriod) {
		return http.StatusBadRequest, CodeInvalidPeriod
	}

	switch code := portfolio.Code(err); code {
	case portfolio.CodeInvalidOrder, portfolio.CodeInvalidAmount:
		return http.StatusBadRequest, code
	case portfolio.CodeUnknownTicker:
		return http.StatusNotFound, code
	case portfolio.CodeInsufficientFunds, portfolio.CodeInsufficientShares:
		return http.StatusUnprocessableEntity, code
	}
	return http.StatusInternalServerError, CodeInternal
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: key + " must be an integer", Code: CodeInvalidRequest})
		return 0, false
	}
	return n, true
}

func parsePeriods(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var periods []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, indicators.ErrInvalidPeriod
		}
		periods = append(periods, n)
	}
	return periods, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
