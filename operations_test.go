// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient builds a client pointed at an httptest server
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("failed to parse server port: %v", err)
	}

	return &Client{
		Target:             u.Hostname(),
		Transport:          "http",
		Port:               port,
		httpc:              srv.Client(),
		ConnectTimeout:     5 * time.Second,
		OperationTimeout:   5 * time.Second,
		MaxRetries:         2,
		BackoffMinDelay:    1 * time.Millisecond,
		BackoffMaxDelay:    5 * time.Millisecond,
		BackoffDelayFactor: 2,
		logger:             &NoOpLogger{},
		redactionPatterns:  defaultRedactionPatterns,
	}
}

// rpcResult writes a JSON-RPC success response with the given result array
func rpcResult(w http.ResponseWriter, id, result string) {
	fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s,"id":%q}`, result, id)
}

// decodeRPC reads and decodes the JSON-RPC request from r
func decodeRPC(t *testing.T, r *http.Request) rpcRequest {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("failed to read request body: %v", err)
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	return req
}

// TestRunCommandsValidation tests input validation for RunCommands
func TestRunCommandsValidation(t *testing.T) {
	client := &Client{
		Target: "test-device",
		logger: &NoOpLogger{},
	}

	tests := []struct {
		name    string
		cmds    []any
		mods    []func(*Req)
		wantErr string
	}{
		{
			name:    "empty commands",
			cmds:    []any{},
			wantErr: "commands cannot be empty",
		},
		{
			name:    "nil commands",
			cmds:    nil,
			wantErr: "commands cannot be empty",
		},
		{
			name:    "invalid format",
			cmds:    []any{"show version"},
			mods:    []func(*Req){Format("xml")},
			wantErr: "invalid encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := client.RunCommands(ctx, tt.cmds, tt.mods...)

			if err == nil {
				t.Errorf("RunCommands() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("RunCommands() error = %v, want error containing %v", err, tt.wantErr)
			}
			if res.OK {
				t.Errorf("RunCommands() res.OK = true, want false")
			}
		})
	}
}

// TestRunCommands tests a successful runCmds round trip
func TestRunCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/command-api" {
			t.Errorf("request path = %v, want /command-api", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %v, want application/json", ct)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			t.Errorf("BasicAuth = %v/%v/%v, want admin/secret/true", user, pass, ok)
		}

		req := decodeRPC(t, r)
		if req.Jsonrpc != "2.0" {
			t.Errorf("jsonrpc = %v, want 2.0", req.Jsonrpc)
		}
		if req.Method != "runCmds" {
			t.Errorf("method = %v, want runCmds", req.Method)
		}
		if req.Params.Version != 1 {
			t.Errorf("params.version = %v, want 1", req.Params.Version)
		}
		if req.Params.Format != "json" {
			t.Errorf("params.format = %v, want json", req.Params.Format)
		}
		if len(req.Params.Cmds) != 2 {
			t.Errorf("params.cmds length = %v, want 2", len(req.Params.Cmds))
		}
		if req.ID == "" {
			t.Errorf("id is empty, want a request ID")
		}

		rpcResult(w, req.ID, `[{"version":"4.30.1F"},{"hostname":"sw1"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	client.username = "admin"
	client.password = "secret"

	ctx := context.Background()
	res, err := client.RunCommands(ctx, []any{"show version", "show hostname"})

	if err != nil {
		t.Fatalf("RunCommands() error = %v, want nil", err)
	}
	if !res.OK {
		t.Errorf("RunCommands() res.OK = false, want true")
	}
	results := res.Results()
	if len(results) != 2 {
		t.Fatalf("Results() length = %v, want 2", len(results))
	}
	if got := results[0].Get("version").String(); got != "4.30.1F" {
		t.Errorf("results[0].version = %v, want 4.30.1F", got)
	}
	if got := results[1].Get("hostname").String(); got != "sw1" {
		t.Errorf("results[1].hostname = %v, want sw1", got)
	}
}

// TestRunCommandsTextFormat tests the Format request modifier
func TestRunCommandsTextFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		if req.Params.Format != "text" {
			t.Errorf("params.format = %v, want text", req.Params.Format)
		}
		rpcResult(w, req.ID, `[{"output":"Arista vEOS\n"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	res, err := client.RunCommands(ctx, []any{"show version"}, Format(EncodingText))

	if err != nil {
		t.Fatalf("RunCommands() error = %v, want nil", err)
	}
	if got := res.Results()[0].Get("output").String(); got != "Arista vEOS\n" {
		t.Errorf("output = %q, want %q", got, "Arista vEOS\n")
	}
}

// TestRunCommandsStructuredPayload tests sending a structured command
func TestRunCommandsStructuredPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		cmd, ok := req.Params.Cmds[0].(map[string]any)
		if !ok {
			t.Fatalf("cmds[0] is %T, want map", req.Params.Cmds[0])
		}
		if cmd["cmd"] != "show version" {
			t.Errorf("cmds[0].cmd = %v, want show version", cmd["cmd"])
		}
		if cmd["revision"] != float64(2) {
			t.Errorf("cmds[0].revision = %v, want 2", cmd["revision"])
		}
		rpcResult(w, req.ID, `[{"version":"4.30.1F"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	body := Body{}.Set("cmd", "show version").Set("revision", 2)
	ctx := context.Background()
	_, err := client.RunCommands(ctx, []any{body})

	if err != nil {
		t.Fatalf("RunCommands() error = %v, want nil", err)
	}
}

// TestRunCommandsCommandError tests a JSON-RPC error response
func TestRunCommandsCommandError(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		req := decodeRPC(t, r)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":1002,"message":"CLI command 2 of 2 'show bogus' failed: invalid command","data":[{},{"errors":["Invalid input"]}]},"id":%q}`, req.ID)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	res, err := client.RunCommands(ctx, []any{"show version", "show bogus"})

	if err == nil {
		t.Fatalf("RunCommands() expected error, got nil")
	}
	cmdErr, ok := err.(*CommandError)
	if !ok {
		t.Fatalf("RunCommands() error type = %T, want *CommandError", err)
	}
	if cmdErr.Code != 1002 {
		t.Errorf("CommandError.Code = %v, want 1002", cmdErr.Code)
	}
	if !strings.Contains(cmdErr.Message, "invalid command") {
		t.Errorf("CommandError.Message = %v, want containing 'invalid command'", cmdErr.Message)
	}
	if len(cmdErr.Errors) != 1 || cmdErr.Errors[0].Message != "Invalid input" {
		t.Errorf("CommandError.Errors = %v, want one entry 'Invalid input'", cmdErr.Errors)
	}
	if res.OK {
		t.Errorf("RunCommands() res.OK = true, want false")
	}

	// Command errors are permanent; no retry
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("request count = %v, want 1 (command errors must not be retried)", got)
	}
}

// TestRunCommandsTransientRetry tests retry on transient HTTP status codes
func TestRunCommandsTransientRetry(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		req := decodeRPC(t, r)
		rpcResult(w, req.ID, `[{"hostname":"sw1"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	res, err := client.RunCommands(ctx, []any{"show hostname"})

	if err != nil {
		t.Fatalf("RunCommands() error = %v, want nil after retries", err)
	}
	if !res.OK {
		t.Errorf("RunCommands() res.OK = false, want true")
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("request count = %v, want 3 (two transient failures + success)", got)
	}
}

// TestRunCommandsPermanentStatus tests that non-transient HTTP errors are
// not retried
func TestRunCommandsPermanentStatus(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	_, err := client.RunCommands(ctx, []any{"show version"})

	if err == nil {
		t.Fatalf("RunCommands() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "unexpected HTTP status") {
		t.Errorf("RunCommands() error = %v, want error containing 'unexpected HTTP status'", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("request count = %v, want 1 (auth failures must not be retried)", got)
	}
}

// TestRunCommandsRetriesExhausted tests failure after all retries
func TestRunCommandsRetriesExhausted(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	_, err := client.RunCommands(ctx, []any{"show version"})

	if err == nil {
		t.Fatalf("RunCommands() expected error, got nil")
	}
	// MaxRetries=2 means 3 attempts total
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("request count = %v, want 3", got)
	}
}

// TestRunCommandsContextCancellation tests early exit on a canceled context
func TestRunCommandsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("server should not receive a request with a canceled context")
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.RunCommands(ctx, []any{"show version"})

	if err == nil {
		t.Fatalf("RunCommands() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "context canceled") {
		t.Errorf("RunCommands() error = %v, want error containing 'context canceled'", err)
	}
}

// TestEnable tests the single-command convenience wrapper
func TestEnable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		if len(req.Params.Cmds) != 1 {
			t.Errorf("params.cmds length = %v, want 1", len(req.Params.Cmds))
		}
		rpcResult(w, req.ID, `[{"version":"4.30.1F","modelName":"vEOS"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	res, err := client.Enable(ctx, "show version")

	if err != nil {
		t.Fatalf("Enable() error = %v, want nil", err)
	}
	// Enable unwraps the result array to the single result object
	if got := res.GetValue("modelName").String(); got != "vEOS" {
		t.Errorf("modelName = %v, want vEOS", got)
	}
}

// TestConfigure tests that configuration commands are wrapped with configure
func TestConfigure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		want := []string{"configure", "hostname sw1", "ip routing"}
		if len(req.Params.Cmds) != len(want) {
			t.Fatalf("params.cmds length = %v, want %v", len(req.Params.Cmds), len(want))
		}
		for i, cmd := range want {
			if req.Params.Cmds[i] != cmd {
				t.Errorf("params.cmds[%d] = %v, want %v", i, req.Params.Cmds[i], cmd)
			}
		}
		rpcResult(w, req.ID, `[{},{},{}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	_, err := client.Configure(ctx, []string{"hostname sw1", "ip routing"})

	if err != nil {
		t.Fatalf("Configure() error = %v, want nil", err)
	}
}

// TestRunningConfigCaching tests that the running config is fetched once
// and re-fetched after Refresh
func TestRunningConfigCaching(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		req := decodeRPC(t, r)
		if req.Params.Cmds[0] != "show running-config all" {
			t.Errorf("cmds[0] = %v, want show running-config all", req.Params.Cmds[0])
		}
		if req.Params.Format != "text" {
			t.Errorf("params.format = %v, want text", req.Params.Format)
		}
		rpcResult(w, req.ID, `[{"output":"!\nip routing\n!\n"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	ctx := context.Background()

	first, err := client.RunningConfig(ctx)
	if err != nil {
		t.Fatalf("RunningConfig() error = %v, want nil", err)
	}
	if !strings.Contains(first, "ip routing") {
		t.Errorf("RunningConfig() = %q, want containing 'ip routing'", first)
	}

	second, err := client.RunningConfig(ctx)
	if err != nil {
		t.Fatalf("RunningConfig() second call error = %v, want nil", err)
	}
	if first != second {
		t.Errorf("RunningConfig() second call = %q, want cached %q", second, first)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("request count = %v, want 1 (second call must hit the cache)", got)
	}

	client.Refresh()

	if _, err := client.RunningConfig(ctx); err != nil {
		t.Fatalf("RunningConfig() after Refresh error = %v, want nil", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("request count = %v, want 2 (Refresh must drop the cache)", got)
	}
}

// TestStartupConfig tests the startup config fetch
func TestStartupConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		if req.Params.Cmds[0] != "show startup-config" {
			t.Errorf("cmds[0] = %v, want show startup-config", req.Params.Cmds[0])
		}
		rpcResult(w, req.ID, `[{"output":"!\nhostname sw1\n!\n"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx := context.Background()
	text, err := client.StartupConfig(ctx)

	if err != nil {
		t.Fatalf("StartupConfig() error = %v, want nil", err)
	}
	if !strings.Contains(text, "hostname sw1") {
		t.Errorf("StartupConfig() = %q, want containing 'hostname sw1'", text)
	}
}

// TestCommandDisplay tests command rendering for logs and errors
func TestCommandDisplay(t *testing.T) {
	tests := []struct {
		name string
		cmd  any
		want string
	}{
		{
			name: "plain string",
			cmd:  "show version",
			want: "show version",
		},
		{
			name: "structured payload",
			cmd:  map[string]any{"cmd": "show version"},
			want: `{"cmd":"show version"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commandDisplay(tt.cmd); got != tt.want {
				t.Errorf("commandDisplay() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCalculateTotalTimeout tests the total retry time budget
func TestCalculateTotalTimeout(t *testing.T) {
	client := &Client{
		OperationTimeout:   10 * time.Second,
		MaxRetries:         2,
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2,
		logger:             &NoOpLogger{},
	}

	total := client.calculateTotalTimeout()

	// 3 attempts of 10s plus backoff delays of ~1s and ~2s with jitter headroom
	if total < 33*time.Second {
		t.Errorf("calculateTotalTimeout() = %v, want >= 33s", total)
	}
	if total > 40*time.Second {
		t.Errorf("calculateTotalTimeout() = %v, want <= 40s", total)
	}
}
