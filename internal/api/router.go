package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/bank-manager/internal/ledger"
	"github.com/example/bank-manager/internal/security"
	"github.com/example/bank-manager/internal/users"
	"github.com/example/bank-manager/pkg/audit"
)

type Auditor interface {
	Append(operation, detail string) *audit.LogEntry
}

type Dependencies struct {
	Logger *slog.Logger
	Ledger *ledger.Service
	Users  *users.Service

	Auditor      Auditor
	RateLimiter  *security.RedisTokenBucket
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	createUserV, err := security.NewJSONSchemaValidator(createUserSchema)
	if err != nil {
		return nil, err
	}
	updateUserV, err := security.NewJSONSchemaValidator(updateUserSchema)
	if err != nil {
		return nil, err
	}
	createAccountV, err := security.NewJSONSchemaValidator(createAccountSchema)
	if err != nil {
		return nil, err
	}
	updateAccountV, err := security.NewJSONSchemaValidator(updateAccountSchema)
	if err != nil {
		return nil, err
	}
	createTransactionV, err := security.NewJSONSchemaValidator(createTransactionSchema)
	if err != nil {
		return nil, err
	}
	transferV, err := security.NewJSONSchemaValidator(transferSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(createUserV.Middleware).Post("/", handleCreateUser(deps))
			r.Get("/", handleListUsers(deps))
			r.Get("/{id}", handleGetUser(deps))
			r.With(updateUserV.Middleware).Put("/{id}", handleUpdateUser(deps))
			r.Delete("/{id}", handleDeleteUser(deps))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.With(createAccountV.Middleware).Post("/", handleCreateAccount(deps))
			r.Get("/", handleListAccounts(deps))
			r.Get("/{id}", handleGetAccount(deps))
			r.With(updateAccountV.Middleware).Put("/{id}", handleUpdateAccount(deps))
			r.Delete("/{id}", handleDeleteAccount(deps))

			r.With(createTransactionV.Middleware).Post("/{id}/transactions", handleCreateTransaction(deps))
			r.Get("/{id}/transactions", handleAccountTransactions(deps))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", handleListTransactions(deps))
			r.Get("/{id}", handleGetTransaction(deps))
		})

		r.With(transferV.Middleware).Post("/transfers", handleTransfer(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found", "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
