package httphandler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/internal/gateway"
	"github.com/certiform/credential-gateway/internal/serve/httperror"
)

const maxProxyBodySize int64 = 1 << 20 // 1mb

// GatewayProxyHandler forwards console API requests to the remote gateway
// through the caching client, so reads benefit from the request cache and
// writes invalidate it.
type GatewayProxyHandler struct {
	GatewayClient *gateway.Client
}

func (h *GatewayProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxProxyBodySize))
		if err != nil {
			httperror.BadRequest("Unable to read request body.", nil).Render(w)
			return
		}
	}

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path = fmt.Sprintf("%s?%s", path, r.URL.RawQuery)
	}

	data, err := h.GatewayClient.Request(ctx, r.Method, path, body)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			httperror.ErrorHandler{Error: httperror.NotFound}.ServeHTTP(w, r)
			return
		}
		log.Ctx(ctx).Errorf("proxying %s %s to gateway: %v", r.Method, path, err)
		httperror.ErrorResponse{
			Status: http.StatusBadGateway,
			Error:  "The upstream gateway request failed.",
		}.Render(w)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Ctx(ctx).Errorf("writing proxied response: %v", err)
	}
}
