package httphandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/stellar/go/support/http/httpdecode"
	"github.com/stellar/go/support/render/httpjson"

	"github.com/certiform/credential-gateway/internal/apptracker"
	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/gateway"
	"github.com/certiform/credential-gateway/internal/serve/httperror"
	"github.com/certiform/credential-gateway/internal/transactions"
	"github.com/certiform/credential-gateway/internal/validators"
	"github.com/certiform/credential-gateway/internal/watcher"
)

type CreateTransactionRequest struct {
	Type   entities.TransactionType `json:"tx_type"`
	Params entities.BuildParams     `json:"params"`
	// SuccessMessage and FailureMessage customize the outcome notification
	// for watched transaction types.
	SuccessMessage string `json:"success_message,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
}

type CreateTransactionResponse struct {
	entities.TransactionHandle
	// Watching reports whether confirmation tracking was started for the
	// submitted transaction.
	Watching bool `json:"watching"`
}

type TransactionsHandler struct {
	Executor      *transactions.Executor
	Registry      *watcher.Registry
	GatewayClient *gateway.Client
	Validator     *validators.BuildParamsValidator
	AppTracker    apptracker.AppTracker
}

// CreateTransaction runs the full build-sign-submit flow and, for
// transaction types with dependent upstream effects, registers a
// confirmation watch on the resulting hash.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqBody CreateTransactionRequest
	if err := httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("Invalid request body.", nil).Render(w)
		return
	}
	if err := h.Validator.Validate(reqBody.Type, reqBody.Params); err != nil {
		httperror.BadRequest(err.Error(), nil).Render(w)
		return
	}

	handle, err := h.Executor.Execute(ctx, reqBody.Type, reqBody.Params)
	if err != nil {
		httperror.InternalServerError(ctx, "unable to execute transaction", err, nil, h.AppTracker).Render(w)
		return
	}

	watching := false
	if handle.Type.RequiresWatch() {
		watching, err = h.Registry.Watch(handle.Hash, handle.Type, watcher.WatchMetadata{
			SuccessMessage: reqBody.SuccessMessage,
			FailureMessage: reqBody.FailureMessage,
		})
		if err != nil {
			// The transaction is already submitted; a watch failure must not
			// turn the response into an error.
			httpjson.Render(w, CreateTransactionResponse{TransactionHandle: *handle}, httpjson.JSON)
			return
		}
	}

	httpjson.Render(w, CreateTransactionResponse{TransactionHandle: *handle, Watching: watching}, httpjson.JSON)
}

// GetTransaction returns the live confirmation status of a transaction
// hash, always bypassing the request cache.
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")

	status, err := h.GatewayClient.GetTransactionStatus(ctx, hash)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			httperror.ErrorHandler{Error: httperror.NotFound}.ServeHTTP(w, r)
			return
		}
		httperror.InternalServerError(ctx, "unable to fetch transaction status", err, nil, h.AppTracker).Render(w)
		return
	}

	httpjson.Render(w, status, httpjson.JSON)
}
