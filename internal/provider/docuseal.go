package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/signature-gateway/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultProviderTimeout = 30 * time.Second
	retryWaitTime          = 200 * time.Millisecond
	retryMaxWaitTime       = 2 * time.Second
	authHeader             = "X-Auth-Token"
)

var _ Client = (*DocuSealClient)(nil)

type DocuSealOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// DocuSealClient issues authenticated JSON requests against the DocuSeal API.
type DocuSealClient struct {
	client  *resty.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewDocuSealClient(opts DocuSealOptions) (*DocuSealClient, error) {
	return NewDocuSealClientWithClient(opts, resty.New())
}

func NewDocuSealClientWithClient(opts DocuSealOptions, client *resty.Client) (*DocuSealClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("provider base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if opts.RetryCount < 0 {
		return nil, fmt.Errorf("retry count must be >= 0")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader(authHeader, strings.TrimSpace(opts.APIKey))
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	client.SetRetryCount(opts.RetryCount)
	if opts.RetryCount > 0 {
		client.SetRetryWaitTime(retryWaitTime)
		client.SetRetryMaxWaitTime(retryMaxWaitTime)
		client.AddRetryCondition(retryIdempotentTransient)
	}

	return &DocuSealClient{
		client:  client,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Call sends one request and normalizes the outcome. It never returns nil.
func (p *DocuSealClient) Call(ctx context.Context, method string, endpoint string, body any) *Result {
	if p == nil || p.client == nil {
		return Failure(http.StatusInternalServerError, "provider is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	start := time.Now()

	req := p.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	response, err := req.Execute(method, endpoint)
	result := p.normalize(method, endpoint, response, err)

	p.metrics.ObserveProviderCall(method, result.Success, time.Since(start))
	return result
}

func (p *DocuSealClient) normalize(method, endpoint string, response *resty.Response, err error) *Result {
	if err != nil {
		status := http.StatusInternalServerError
		var raw []byte
		if response != nil && response.RawResponse != nil {
			status = response.StatusCode()
			raw = response.Body()
		}

		result := &Result{
			Success: false,
			Status:  status,
			Error:   errorPayload(raw, err.Error()),
			Err:     newTransportError(status, err),
		}
		p.logFailure(method, endpoint, result)
		return result
	}
	if response == nil {
		result := Failure(http.StatusBadGateway, "provider returned empty response")
		p.logFailure(method, endpoint, result)
		return result
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Result{
			Success: true,
			Status:  statusCode,
			Data:    dataPayload(response.Body()),
		}
	}

	fallback := fmt.Sprintf("Request failed with status code %d", statusCode)
	result := &Result{
		Success: false,
		Status:  statusCode,
		Error:   errorPayload(response.Body(), fallback),
		Err:     newStatusError(statusCode, providerErrorMessage(statusCode, strings.TrimSpace(response.String()))),
	}
	p.logFailure(method, endpoint, result)
	return result
}

func (p *DocuSealClient) logFailure(method, endpoint string, result *Result) {
	p.logger.Warn("provider call failed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", result.Status),
		zap.ByteString("providerError", result.Error),
		zap.Error(result.Err),
	)
}

// retryIdempotentTransient limits retries to GET/DELETE calls that failed in a
// way a later attempt could fix.
func retryIdempotentTransient(response *resty.Response, err error) bool {
	if response == nil || response.Request == nil {
		return false
	}
	switch strings.ToUpper(response.Request.Method) {
	case http.MethodGet, http.MethodDelete:
	default:
		return false
	}

	if err != nil {
		return IsTransient(err)
	}
	return isTransientHTTPStatus(response.StatusCode())
}

func dataPayload(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return append(json.RawMessage(nil), trimmed...)
	}
	encoded, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil
	}
	return encoded
}

// errorPayload keeps the provider's JSON error body when there is one and
// falls back to {"message": ...} otherwise.
func errorPayload(body []byte, fallback string) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return append(json.RawMessage(nil), trimmed...)
	}
	if len(trimmed) > 0 {
		return messagePayload(string(trimmed))
	}
	return messagePayload(fallback)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
