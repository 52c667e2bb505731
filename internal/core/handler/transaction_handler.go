package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/bankcore/transaction-service/internal/core/logger"
	"github.com/bankcore/transaction-service/internal/core/models"
	"github.com/bankcore/transaction-service/internal/core/service"
)

var (
	accountIDRegexp = regexp.MustCompile(`^[A-Za-z0-9]{10,20}$`)
	maxAmount       = decimal.NewFromInt(1_000_000)
	minAmount       = decimal.RequireFromString("0.01")
)

type TransactionHandler struct {
	service service.TransactionService
	log     logger.Logger
}

func NewTransactionHandler(svc service.TransactionService, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{service: svc, log: log}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/transactions", h.CreateTransaction).Methods("POST")
	router.HandleFunc("/api/v1/transactions", h.ListTransactions).Methods("GET")
	router.HandleFunc("/api/v1/transactions/statistics", h.GetStatistics).Methods("GET")
	router.HandleFunc("/api/v1/transactions/account/{accountId}", h.ListTransactionsByAccount).Methods("GET")
	router.HandleFunc("/api/v1/transactions/{id:[0-9]+}", h.GetTransaction).Methods("GET")
	router.HandleFunc("/api/v1/transactions/{id:[0-9]+}", h.UpdateTransaction).Methods("PUT")
	router.HandleFunc("/api/v1/transactions/{id:[0-9]+}", h.DeleteTransaction).Methods("DELETE")
	router.HandleFunc("/health", h.Health).Methods("GET")
}

// createTransactionRequest mirrors the public JSON contract. Amount is a
// pointer so a missing field is distinguishable from zero.
type createTransactionRequest struct {
	AccountID       string           `json:"accountId"`
	TransactionType string           `json:"transactionType"`
	Amount          *decimal.Decimal `json:"amount"`
	Currency        string           `json:"currency"`
	Description     string           `json:"description"`
	TargetAccount   string           `json:"targetAccount"`
	IdempotencyKey  string           `json:"idempotencyKey"`
}

type errorResponse struct {
	Code             string            `json:"code"`
	Message          string            `json:"message"`
	Details          string            `json:"details,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	Path             string            `json:"path"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if validationErrors := validateCreateRequest(&req); len(validationErrors) > 0 {
		h.log.Warn("Validation failed", logger.AnyField("errors", validationErrors))
		respondWithValidationErrors(w, r, validationErrors)
		return
	}

	txn := &models.Transaction{
		AccountID:       req.AccountID,
		TransactionType: models.TransactionType(req.TransactionType),
		Amount:          *req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		TargetAccount:   req.TargetAccount,
		IdempotencyKey:  req.IdempotencyKey,
	}

	created, err := h.service.Create(r.Context(), txn)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	txn, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, txn)
}

func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)
	result, err := h.service.FindAll(r.Context(), page, size)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) ListTransactionsByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]
	page, size := pagination(r)

	result, err := h.service.FindByAccountID(r.Context(), accountID, page, size)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var patch models.TransactionUpdate
	if !h.decodeBody(w, r, &patch) {
		return
	}

	if validationErrors := validateUpdateRequest(&patch); len(validationErrors) > 0 {
		h.log.Warn("Validation failed", logger.AnyField("errors", validationErrors))
		respondWithValidationErrors(w, r, validationErrors)
		return
	}

	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	removed, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !removed {
		respondWithError(w, r, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *TransactionHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (h *TransactionHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload")
		return false
	}
	return true
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return page, size
}

func (h *TransactionHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid transaction id")
		return 0, false
	}
	return id, true
}

func (h *TransactionHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, r, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found")
	case errors.Is(err, service.ErrInvalidAmount):
		respondWithValidationErrors(w, r, map[string]string{"amount": "Amount must be greater than 0"})
	case errors.Is(err, service.ErrVersionConflict):
		respondWithError(w, r, http.StatusConflict, "CONCURRENT_MODIFICATION",
			"Resource was modified by another process")
	case errors.Is(err, service.ErrTimeout):
		respondWithError(w, r, http.StatusServiceUnavailable, "TEMPORARY_UNAVAILABLE",
			"Service temporarily unavailable")
	default:
		h.log.Error("Failed to process request",
			logger.StringField("path", r.URL.Path),
			logger.ErrorField("error", err),
		)
		respondWithError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An internal error occurred")
	}
}

func validateCreateRequest(req *createTransactionRequest) map[string]string {
	validationErrors := make(map[string]string)

	if !accountIDRegexp.MatchString(req.AccountID) {
		validationErrors["accountId"] = "Account ID must be 10-20 alphanumeric characters"
	}
	if !models.TransactionType(req.TransactionType).Valid() {
		validationErrors["transactionType"] = "Transaction type must be DEPOSIT, WITHDRAWAL, or TRANSFER"
	}
	switch {
	case req.Amount == nil:
		validationErrors["amount"] = "Amount is required"
	case req.Amount.LessThan(minAmount):
		validationErrors["amount"] = "Amount must be at least 0.01"
	case req.Amount.GreaterThan(maxAmount):
		validationErrors["amount"] = "Amount cannot exceed 1,000,000.00"
	case req.Amount.Exponent() < -2:
		validationErrors["amount"] = "Amount cannot have more than 2 decimal places"
	}
	if !models.ValidCurrency(req.Currency) {
		validationErrors["currency"] = "Currency must be USD, EUR, or GBP"
	}
	if len(req.Description) > 255 {
		validationErrors["description"] = "Description cannot exceed 255 characters"
	}
	if models.TransactionType(req.TransactionType) == models.TypeTransfer && req.TargetAccount == "" {
		validationErrors["targetAccount"] = "Target account is required for transfers"
	}
	if req.TargetAccount != "" && !accountIDRegexp.MatchString(req.TargetAccount) {
		validationErrors["targetAccount"] = "Target account must be 10-20 alphanumeric characters"
	}
	if req.IdempotencyKey != "" {
		if _, err := uuid.Parse(req.IdempotencyKey); err != nil || len(req.IdempotencyKey) != 36 {
			validationErrors["idempotencyKey"] = "Idempotency key must be a valid UUID"
		}
	}

	return validationErrors
}

func validateUpdateRequest(patch *models.TransactionUpdate) map[string]string {
	validationErrors := make(map[string]string)

	if patch.Version < 0 {
		validationErrors["version"] = "Version must not be negative"
	}
	if patch.Amount != nil {
		switch {
		case patch.Amount.LessThan(minAmount):
			validationErrors["amount"] = "Amount must be at least 0.01"
		case patch.Amount.GreaterThan(maxAmount):
			validationErrors["amount"] = "Amount cannot exceed 1,000,000.00"
		case patch.Amount.Exponent() < -2:
			validationErrors["amount"] = "Amount cannot have more than 2 decimal places"
		}
	}
	if patch.Description != nil && len(*patch.Description) > 255 {
		validationErrors["description"] = "Description cannot exceed 255 characters"
	}
	if patch.Status != nil && !patch.Status.Valid() {
		validationErrors["status"] = "Invalid transaction status"
	}

	return validationErrors
}

func respondWithValidationErrors(w http.ResponseWriter, r *http.Request, validationErrors map[string]string) {
	respondWithJSON(w, http.StatusBadRequest, errorResponse{
		Code:             "VALIDATION_FAILED",
		Message:          "Input validation failed",
		Timestamp:        time.Now(),
		Path:             r.URL.Path,
		ValidationErrors: validationErrors,
	})
}

func respondWithError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondWithJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Path:      r.URL.Path,
	})
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"An internal error occurred"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}
