package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/metrics"
	"github.com/certiform/credential-gateway/internal/utils"
)

const (
	buildTransactionPath      = "/transactions/build"
	recordTransactionPath     = "/transactions/track"
	transactionStatusPathFmt  = "/transactions/%s/status"
	confirmationEventsPathFmt = "/transactions/%s/events"

	defaultRequestTimeout = 30 * time.Second
)

// ErrNotFound is returned when the gateway answers 404. For the status
// endpoint this means "not yet registered upstream", not a failure.
var ErrNotFound = errors.New("resource not found upstream")

// Client is the single front door to the remote gateway. Reads go through
// the request cache; successful writes invalidate related entries; the
// status and confirmation-events endpoints always bypass the cache.
type Client struct {
	httpClient *http.Client
	// streamClient has no overall timeout so confirmation streams can stay
	// open past the request deadline used for unary calls.
	streamClient      *http.Client
	baseURL           string
	apiKey            string
	userTokenProvider UserTokenProvider
	cache             *RequestCache
	metricsService    metrics.MetricsService
}

type ClientOptions struct {
	BaseURL           string
	APIKey            string
	UserTokenProvider UserTokenProvider
	MetricsService    metrics.MetricsService
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("baseURL is required")
	}
	if opts.APIKey == "" {
		return nil, errors.New("apiKey is required")
	}

	return &Client{
		httpClient:        &http.Client{Timeout: defaultRequestTimeout},
		streamClient:      &http.Client{},
		baseURL:           strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:            opts.APIKey,
		userTokenProvider: opts.UserTokenProvider,
		cache:             NewRequestCache(opts.MetricsService),
		metricsService:    opts.MetricsService,
	}, nil
}

// Request performs one call against the gateway. path must include the
// query string; it doubles as the cache key for reads. Expected upstream
// failures come back as errors, never panics; a 404 is ErrNotFound.
func (c *Client) Request(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		if c.metricsService != nil {
			c.metricsService.ObserveGatewayRequestDuration(method, time.Since(startTime).Seconds())
		}
	}()

	cacheable := method == http.MethodGet && !isAlwaysFresh(path)
	if cacheable {
		if data, ok := c.cache.Get(path); ok {
			return data, nil
		}
	}

	respBody, statusCode, err := c.do(ctx, method, path, body)
	if c.metricsService != nil {
		if err != nil && statusCode == 0 {
			c.metricsService.IncGatewayRequestError(method, "network_error")
		} else {
			c.metricsService.IncGatewayRequest(method, statusCode)
		}
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.cache.Put(path, respBody)
	}
	if method != http.MethodGet {
		c.cache.Invalidate(path, body)
	}
	return respBody, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuthHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("sending %s request to gateway: %w", method, err)
	}
	defer utils.DeferredClose(ctx, resp.Body, "closing gateway response body")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading gateway response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("gateway returned status code=%d, body=%s", resp.StatusCode, string(respBody))
	}
	return respBody, resp.StatusCode, nil
}

// isAlwaysFresh reports whether path must bypass the cache on both read and
// population. Transaction status is consumed by the poller and must never
// be served from a cached window.
func isAlwaysFresh(path string) bool {
	return strings.HasPrefix(path, "/transactions/") &&
		(strings.Contains(path, "/status") || strings.Contains(path, "/events"))
}

// BuildTransaction asks the gateway for an unsigned (or, for sponsored
// types, pre-signed) transaction payload. A fresh reference id is attached
// so the gateway can deduplicate retried builds.
func (c *Client) BuildTransaction(ctx context.Context, txType entities.TransactionType, params entities.BuildParams) (*entities.BuildTransactionResponse, error) {
	reqBody, err := json.Marshal(entities.BuildTransactionRequest{
		Type:        txType,
		ReferenceID: uuid.NewString(),
		Params:      params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling build request: %w", err)
	}

	respBody, err := c.Request(ctx, http.MethodPost, buildTransactionPath, reqBody)
	if err != nil {
		return nil, fmt.Errorf("calling build endpoint: %w", err)
	}

	var buildResp entities.BuildTransactionResponse
	if err := json.Unmarshal(respBody, &buildResp); err != nil {
		return nil, fmt.Errorf("parsing build response: %w", err)
	}
	if buildResp.TransactionPayload == "" {
		return nil, errors.New("build response missing transaction payload")
	}
	return &buildResp, nil
}

// GetTransactionStatus fetches the authoritative confirmation status for a
// transaction hash, always bypassing the cache. A 404 surfaces as
// ErrNotFound and means the hash is not registered upstream yet.
func (c *Client) GetTransactionStatus(ctx context.Context, hash string) (*entities.TransactionStatus, error) {
	respBody, err := c.Request(ctx, http.MethodGet, fmt.Sprintf(transactionStatusPathFmt, url.PathEscape(hash)), nil)
	if err != nil {
		return nil, fmt.Errorf("calling status endpoint: %w", err)
	}

	var status entities.TransactionStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("parsing status response: %w", err)
	}
	return &status, nil
}

// OpenConfirmationStream opens the streamed confirmation-events body for a
// transaction hash. A non-success response is the streaming-failure signal
// that makes the tracker fall back to polling.
func (c *Client) OpenConfirmationStream(ctx context.Context, hash string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf(confirmationEventsPathFmt, url.PathEscape(hash)), nil)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.applyAuthHeaders(ctx, req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening confirmation stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		utils.DeferredClose(ctx, resp.Body, "closing failed stream response body")
		return nil, fmt.Errorf("confirmation stream returned status code=%d", resp.StatusCode)
	}
	return resp.Body, nil
}

// RecordTransaction reports a successful submission to the gateway's
// tracking service. Callers treat this as fire-and-forget.
func (c *Client) RecordTransaction(ctx context.Context, handle entities.TransactionHandle) error {
	reqBody, err := json.Marshal(entities.RecordTransactionRequest{
		TransactionHash: handle.Hash,
		Type:            handle.Type,
		SubmittedAt:     handle.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling record request: %w", err)
	}

	if _, err := c.Request(ctx, http.MethodPost, recordTransactionPath, reqBody); err != nil {
		return fmt.Errorf("calling track endpoint: %w", err)
	}
	return nil
}

// Cache exposes the request cache for composition and tests.
func (c *Client) Cache() *RequestCache {
	return c.cache
}
