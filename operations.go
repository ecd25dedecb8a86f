// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Input validation constants
const (
	// MaxResponseSize is the maximum accepted response body size (50MB)
	MaxResponseSize = 50 * 1024 * 1024
)

// rpcRequest is the JSON-RPC 2.0 envelope for a runCmds call
type rpcRequest struct {
	Jsonrpc string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      string    `json:"id"`
}

// rpcParams carries the commands and output format of a runCmds call
type rpcParams struct {
	Version int    `json:"version"`
	Cmds    []any  `json:"cmds"`
	Format  string `json:"format"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope
type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      string          `json:"id"`
}

// rpcError is the JSON-RPC error object; Data carries per-command results
// up to and including the failing command
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// checkContextCancellation returns the context's error if it has been
// canceled or its deadline exceeded
func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// createAttemptContext derives the context for a single request attempt
//
// Timeout priority:
//  1. Request-specific timeout (via Timeout modifier)
//  2. Context deadline (if already set)
//  3. Client.OperationTimeout (fallback default)
func (c *Client) createAttemptContext(ctx context.Context, req *Req) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.OperationTimeout)
}

// calculateTotalTimeout returns the total time budget for an operation
// including all retry attempts and worst-case backoff delays
func (c *Client) calculateTotalTimeout() time.Duration {
	total := c.OperationTimeout * time.Duration(c.MaxRetries+1)
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))
		if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
			delay = float64(c.BackoffMaxDelay)
		}
		// 10% jitter headroom
		total += time.Duration(delay * 1.1)
	}
	return total
}

// commandDisplay renders a command for log and error messages
//
// Plain string commands are returned as-is; structured payloads are
// rendered as compact JSON.
func commandDisplay(cmd any) string {
	if s, ok := cmd.(string); ok {
		return s
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Sprintf("%v", cmd)
	}
	return string(data)
}

// RunCommands issues one JSON-RPC runCmds request with the given commands
//
// Commands may be plain strings or structured payloads (maps, or a Body).
// The result is the JSON array of per-command result objects, aligned with
// the commands issued. The output format can be selected per request with
// the Format modifier, defaulting to json.
//
// Transient transport failures (network errors, HTTP 429/502/503/504) are
// retried up to MaxRetries with exponential backoff. A well-formed JSON-RPC
// error response is a *CommandError and is never retried.
//
// Example:
//
//	ctx := context.Background()
//	res, err := client.RunCommands(ctx, []any{"show version", "show hostname"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hostname := res.Results()[1].Get("hostname").String()
//
// Returns CommandRes with the result body, OK status, and any errors.
func (c *Client) RunCommands(ctx context.Context, cmds []any, mods ...func(*Req)) (CommandRes, error) {
	if len(cmds) == 0 {
		err := fmt.Errorf("commands cannot be empty")
		return CommandRes{
			OK:     false,
			Errors: []ErrorModel{{Message: err.Error()}},
		}, fmt.Errorf("run commands: %w", err)
	}

	// Build request with default encoding
	req := &Req{
		Format: EncodingJSON,
	}

	// Apply modifiers
	for _, mod := range mods {
		mod(req)
	}

	if err := ValidateEncoding(req.Format); err != nil {
		return CommandRes{
			OK:     false,
			Errors: []ErrorModel{{Message: err.Error()}},
		}, fmt.Errorf("run commands: %w", err)
	}

	// Check context cancellation before doing any work
	if err := checkContextCancellation(ctx); err != nil {
		return CommandRes{
			OK:     false,
			Errors: []ErrorModel{{Message: err.Error()}},
		}, err
	}

	rpc := rpcRequest{
		Jsonrpc: "2.0",
		Method:  "runCmds",
		Params: rpcParams{
			Version: 1,
			Cmds:    cmds,
			Format:  req.Format,
		},
		ID: uuid.NewString(),
	}

	payload, err := json.Marshal(rpc)
	if err != nil {
		return CommandRes{
			OK:     false,
			Errors: []ErrorModel{{Message: err.Error()}},
		}, fmt.Errorf("run commands: failed to encode request: %w", err)
	}

	// Apply parent context timeout for the total budget across retries
	totalTimeout := c.calculateTotalTimeout()
	ctx, parentCancel := context.WithTimeout(ctx, totalTimeout)
	defer parentCancel()

	c.logger.Debug("eAPI runCmds request",
		"target", c.Target,
		"commands", len(cmds),
		"format", req.Format,
		"body", c.prepareJSONForLogging(string(payload)))

	var resp *rpcResponse
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		// Check parent context cancellation before attempt
		if err := checkContextCancellation(ctx); err != nil {
			c.logger.Debug("runCmds canceled",
				"attempt", attempt,
				"error", err.Error())
			return CommandRes{
				OK:     false,
				Errors: []ErrorModel{{Message: fmt.Sprintf("context canceled: %s", err.Error())}},
			}, fmt.Errorf("run commands: %w", err)
		}

		attemptCtx, attemptCancel := c.createAttemptContext(ctx, req)
		resp, lastErr = c.doRPC(attemptCtx, payload)
		attemptCancel()

		if lastErr == nil {
			break
		}

		// transientError marks retryable transport failures
		var te *transientError
		if errors.As(lastErr, &te) && attempt < c.MaxRetries {
			backoff := c.Backoff(attempt)
			c.logger.Warn("transient error, retrying",
				"operation", "runCmds",
				"attempt", attempt+1,
				"max_retries", c.MaxRetries,
				"backoff", backoff,
				"error", lastErr.Error())

			// Sleep with context cancellation awareness
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				c.logger.Debug("runCmds canceled during backoff",
					"attempt", attempt+1)
				return CommandRes{
					OK:     false,
					Errors: []ErrorModel{{Message: fmt.Sprintf("context canceled during backoff: %s", ctx.Err().Error())}},
				}, fmt.Errorf("run commands: context canceled during backoff: %w", ctx.Err())
			}
		}

		// Non-transient error or no retries remaining
		break
	}

	if lastErr != nil {
		c.logger.Error("eAPI runCmds failed",
			"target", c.Target,
			"error", lastErr.Error())
		return CommandRes{
			OK:     false,
			Errors: []ErrorModel{{Message: lastErr.Error()}},
		}, fmt.Errorf("run commands: %w", lastErr)
	}

	// A well-formed error response is a permanent command failure
	if resp.Error != nil {
		cmdErr := &CommandError{
			Device:  c.Target,
			Command: commandDisplay(cmds[len(cmds)-1]),
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Errors:  decodeErrorData(resp.Error.Data),
		}
		c.logger.Error("eAPI command rejected",
			"target", c.Target,
			"code", resp.Error.Code,
			"message", resp.Error.Message)
		return CommandRes{
			OK:     false,
			Errors: cmdErr.Errors,
		}, cmdErr
	}

	c.logger.Debug("eAPI runCmds response",
		"target", c.Target,
		"body", c.prepareJSONForLogging(string(resp.Result)))

	return CommandRes{
		Raw: string(resp.Result),
		OK:  true,
	}, nil
}

// doRPC performs one HTTP request attempt and decodes the JSON-RPC envelope
//
// Returns a *transientError for failures worth retrying.
func (c *Client) doRPC(ctx context.Context, payload []byte) (*rpcResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.HasCredentials() {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	httpRes, err := c.httpc.Do(httpReq)
	if err != nil {
		// Network-level failures are transient unless the caller canceled
		if ctxErr := checkContextCancellation(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &transientError{err: err}
	}
	defer httpRes.Body.Close() //nolint:errcheck // Read-side close, nothing to handle

	if httpRes.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected HTTP status: %s", httpRes.Status)
		if c.checkTransientStatus(httpRes.StatusCode) {
			return nil, &transientError{err: err}
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(httpRes.Body, MaxResponseSize))
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &resp, nil
}

// transientError wraps a transport failure that should be retried
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// decodeErrorData extracts per-command error details from a JSON-RPC error
// data payload
func decodeErrorData(data json.RawMessage) []ErrorModel {
	if len(data) == 0 {
		return nil
	}
	var entries []struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return []ErrorModel{{Message: string(data)}}
	}
	var models []ErrorModel
	for _, entry := range entries {
		for _, msg := range entry.Errors {
			models = append(models, ErrorModel{Message: msg})
		}
	}
	return models
}

// Enable runs a single command and returns its result object
//
// Example:
//
//	res, err := client.Enable(ctx, "show version")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.GetValue("version").String())
func (c *Client) Enable(ctx context.Context, cmd any, mods ...func(*Req)) (CommandRes, error) {
	res, err := c.RunCommands(ctx, []any{cmd}, mods...)
	if err != nil {
		return res, err
	}

	results := res.Results()
	if len(results) == 0 {
		return CommandRes{
			OK:     false,
			Errors: []ErrorModel{{Message: "empty result"}},
		}, fmt.Errorf("enable: device returned no result for %q", commandDisplay(cmd))
	}

	return CommandRes{
		Raw: results[0].Raw,
		OK:  true,
	}, nil
}

// Configure applies configuration commands in a single request
//
// The commands are wrapped with "configure" so the device enters
// configuration mode for the batch.
//
// Example:
//
//	_, err := client.Configure(ctx, []string{"hostname sw1-lab"})
func (c *Client) Configure(ctx context.Context, cmds []string, mods ...func(*Req)) (CommandRes, error) {
	all := make([]any, 0, len(cmds)+1)
	all = append(all, "configure")
	for _, cmd := range cmds {
		all = append(all, cmd)
	}
	return c.RunCommands(ctx, all, mods...)
}

// RunningConfig returns the device's running configuration as text
//
// The configuration is fetched once and cached on the client; use
// Refresh() to drop the cache after configuration changes.
func (c *Client) RunningConfig(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.runningConfig
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	res, err := c.Enable(ctx, "show running-config all", Format(EncodingText))
	if err != nil {
		return "", err
	}
	text := res.Text()

	c.mu.Lock()
	c.runningConfig = text
	c.mu.Unlock()
	return text, nil
}

// StartupConfig returns the device's startup configuration as text
//
// The configuration is fetched once and cached on the client; use
// Refresh() to drop the cache after configuration changes.
func (c *Client) StartupConfig(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.startupConfig
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	res, err := c.Enable(ctx, "show startup-config", Format(EncodingText))
	if err != nil {
		return "", err
	}
	text := res.Text()

	c.mu.Lock()
	c.startupConfig = text
	c.mu.Unlock()
	return text, nil
}

// Refresh drops the cached running and startup configuration so the next
// RunningConfig/StartupConfig call fetches fresh text from the device
func (c *Client) Refresh() {
	c.mu.Lock()
	c.runningConfig = ""
	c.startupConfig = ""
	c.mu.Unlock()

	c.logger.Debug("configuration cache cleared",
		"target", c.Target)
}
