package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/bank-manager/internal/ledger"
	"github.com/example/bank-manager/internal/security"
	"github.com/example/bank-manager/internal/users"
)

// writeServiceError maps domain sentinels onto HTTP statuses and stable
// error codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, users.ErrNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrDuplicateAccount):
		security.WriteJSONError(w, r, http.StatusConflict, "duplicate_account", err.Error())
	case errors.Is(err, users.ErrDuplicateEmail):
		security.WriteJSONError(w, r, http.StatusConflict, "duplicate_email", err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		security.WriteJSONError(w, r, http.StatusBadRequest, "insufficient_funds", err.Error())
	case errors.Is(err, ledger.ErrSameAccountTransfer):
		security.WriteJSONError(w, r, http.StatusBadRequest, "same_account_transfer", err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, users.ErrInvalidInput):
		security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ledger.ErrConflict):
		security.WriteJSONError(w, r, http.StatusConflict, "conflict", "operation contended, retry")
	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error", "")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}

// user handlers

func handleCreateUser(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.CreateUserRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		u, err := deps.Users.CreateUser(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, u)
	}
}

func handleListUsers(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Users.ListUsers(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, list)
	}
}

func handleGetUser(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := deps.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, u)
	}
}

func handleUpdateUser(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.UpdateUserRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		u, err := deps.Users.UpdateUser(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, u)
	}
}

func handleDeleteUser(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Users.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// account handlers

type createAccountRequest struct {
	AccountNumber  string          `json:"account_number"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	OwnerID        string          `json:"owner_id"`
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.OwnerID != "" {
			if _, err := deps.Users.GetUser(r.Context(), req.OwnerID); err != nil {
				if errors.Is(err, users.ErrNotFound) {
					security.WriteJSONError(w, r, http.StatusBadRequest, "unknown_owner", "owner_id does not reference an existing user")
					return
				}
				writeServiceError(w, r, err)
				return
			}
		}
		account, err := deps.Ledger.CreateAccount(r.Context(), ledger.CreateAccountRequest{
			AccountNumber:  req.AccountNumber,
			InitialBalance: req.InitialBalance,
			OwnerID:        req.OwnerID,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, account)
	}
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if number := r.URL.Query().Get("number"); number != "" {
			account, err := deps.Ledger.GetAccountByNumber(r.Context(), number)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, []*ledger.Account{account})
			return
		}
		accounts, err := deps.Ledger.ListAccounts(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, accounts)
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Ledger.GetAccount(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, account)
	}
}

type updateAccountRequest struct {
	OwnerID string `json:"owner_id"`
}

func handleUpdateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		account, err := deps.Ledger.UpdateAccountOwner(r.Context(), chi.URLParam(r, "id"), req.OwnerID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, account)
	}
}

func handleDeleteAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Ledger.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// transaction handlers

type createTransactionRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Kind   ledger.Kind     `json:"kind"`
}

func handleCreateTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTransactionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		entry, err := deps.Ledger.CreateTransaction(r.Context(), ledger.CreateTransactionRequest{
			AccountID: chi.URLParam(r, "id"),
			Amount:    req.Amount,
			Kind:      req.Kind,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, entry)
	}
}

func handleAccountTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Ledger.TransactionsByAccount(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, entries)
	}
}

func handleListTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if kind := r.URL.Query().Get("kind"); kind != "" {
			k := ledger.Kind(kind)
			if !k.Valid() {
				security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error", "kind must be DEPOSIT or WITHDRAWAL")
				return
			}
			entries, err := deps.Ledger.TransactionsByKind(r.Context(), k)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, entries)
			return
		}
		entries, err := deps.Ledger.ListTransactions(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, entries)
	}
}

func handleGetTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := deps.Ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, entry)
	}
}

// transfer handler

type transferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		result, err := deps.Ledger.Transfer(r.Context(), ledger.TransferRequest{
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        req.Amount,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, result)
	}
}
