// Package wallet abstracts the signing capability used to execute
// transactions. The signer is remote: the server never holds key material.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/certiform/credential-gateway/internal/utils"
)

// Wallet signs and submits prepared transaction payloads.
type Wallet interface {
	// SignTransaction signs a base64-encoded transaction payload. When
	// partial is true the payload already carries a sponsor signature and
	// only the user signature is added.
	SignTransaction(ctx context.Context, payload string, partial bool) (string, error)
	// SubmitTransaction submits a signed payload to the network and returns
	// the transaction hash.
	SubmitTransaction(ctx context.Context, signedPayload string) (string, error)
}

const defaultSignerTimeout = 30 * time.Second

type RemoteWalletOptions struct {
	// BaseURL is the signer service endpoint, e.g. http://localhost:7100.
	BaseURL    string
	HTTPClient utils.HTTPClient
}

type remoteWallet struct {
	baseURL    string
	httpClient utils.HTTPClient
}

var _ Wallet = (*remoteWallet)(nil)

func NewRemoteWallet(opts RemoteWalletOptions) (Wallet, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSignerTimeout}
	}
	return &remoteWallet{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
	}, nil
}

type signRequest struct {
	TransactionPayload string `json:"transaction_payload"`
	Partial            bool   `json:"partial"`
}

type signResponse struct {
	SignedPayload string `json:"signed_payload"`
}

func (w *remoteWallet) SignTransaction(ctx context.Context, payload string, partial bool) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("transaction payload is required")
	}

	var resp signResponse
	err := w.post(ctx, "/sign", signRequest{TransactionPayload: payload, Partial: partial}, &resp)
	if err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}
	if resp.SignedPayload == "" {
		return "", fmt.Errorf("signer returned an empty signed payload")
	}
	return resp.SignedPayload, nil
}

type submitRequest struct {
	SignedPayload string `json:"signed_payload"`
}

type submitResponse struct {
	TransactionHash string `json:"tx_hash"`
}

func (w *remoteWallet) SubmitTransaction(ctx context.Context, signedPayload string) (string, error) {
	if signedPayload == "" {
		return "", fmt.Errorf("signed payload is required")
	}

	var resp submitResponse
	err := w.post(ctx, "/submit", submitRequest{SignedPayload: signedPayload}, &resp)
	if err != nil {
		return "", fmt.Errorf("submitting transaction: %w", err)
	}
	if resp.TransactionHash == "" {
		return "", fmt.Errorf("signer returned an empty transaction hash")
	}
	return resp.TransactionHash, nil
}

func (w *remoteWallet) post(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("signer request to %s failed, status code=%d, body=%s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("unmarshaling response body: %w", err)
	}
	return nil
}
