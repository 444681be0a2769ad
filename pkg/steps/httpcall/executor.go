// Package httpcall provides the built-in HTTP call step executor.
package httpcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/caseway/caseway/pkg/protocol"
)

const defaultTimeoutSeconds = 30

var (
	// ErrURLMissing is returned when the executor configuration has no URL.
	ErrURLMissing = errors.New("missing or invalid 'url' in configuration")
	// ErrServerError is returned when the server returns an error status code.
	ErrServerError = errors.New("server error during HTTP call")
)

// Executor performs an HTTP request with optional headers, body, and retry logic.
type Executor struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
	Retry   RetryConfig
}

// RetryConfig defines retry behavior for HTTP calls.
type RetryConfig struct {
	Attempts int
	Delay    int
}

// NewExecutor creates an Executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLMissing
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	retry := RetryConfig{Attempts: 1, Delay: 0}
	if retryConfig, exists := config["retry"]; exists {
		retry = parseRetryConfig(retryConfig)
	}

	return &Executor{
		Method:  strings.ToUpper(method),
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: defaultTimeoutSeconds * time.Second,
		Retry:   retry,
	}, nil
}

func parseRetryConfig(retryConfig any) RetryConfig {
	retry := RetryConfig{Attempts: 1, Delay: 0}

	retryMap, ok := retryConfig.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delay"].(float64); ok {
		retry.Delay = int(delay)
	}

	return retry
}

// Execute performs the HTTP call with retry logic and returns the response.
func (e *Executor) Execute(ctx context.Context, env protocol.ExecutionEnv) (map[string]any, error) {
	logger := env.Logger.With("step_id", env.StepID, "executor", "http-call")
	logger.InfoContext(ctx, "Executing HTTP call", "method", e.Method, "url", e.URL)

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= e.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, fmt.Sprintf("HTTP call retry attempt %d/%d", attempt, e.Retry.Attempts))
			time.Sleep(time.Duration(e.Retry.Delay) * time.Second)
		}

		req, err := e.buildRequest(ctx)
		if err != nil {
			lastErr = err

			continue
		}

		client := &http.Client{Timeout: e.Timeout}

		resp, err = client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http call failed: %w", err)

			continue
		}

		if resp.StatusCode >= 500 && attempt < e.Retry.Attempts {
			err = resp.Body.Close()
			if err != nil {
				logger.ErrorContext(ctx, "failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("server error (status %d), retrying: %w", resp.StatusCode, ErrServerError)

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
	}

	return e.processResponse(ctx, resp, logger)
}

func (e *Executor) buildRequest(ctx context.Context) (*http.Request, error) {
	var bodyReader io.Reader = strings.NewReader(e.Body)

	req, err := http.NewRequestWithContext(ctx, e.Method, e.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range e.Headers {
		req.Header.Set(key, value)
	}

	if e.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (e *Executor) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		err := resp.Body.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(rawBody, &body)
	if err != nil {
		body = string(rawBody)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}, nil
}
