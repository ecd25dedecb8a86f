// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Default client configuration values
const (
	DefaultTransport          = "https"
	DefaultPortHTTPS          = 443
	DefaultPortHTTP           = 80
	DefaultMaxRetries         = 3
	DefaultBackoffMinDelay    = 1 * time.Second
	DefaultBackoffMaxDelay    = 60 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultConnectTimeout     = 30 * time.Second
	DefaultOperationTimeout   = 15 * time.Second
	DefaultVerifyCertificate  = true
	DefaultPrettyPrintLogs    = true
)

// Security limits for JSON processing and logging
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024 // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000            // Max redaction operations to prevent DoS
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// defaultRedactionPatterns contains regex patterns for redacting sensitive data in logs
var defaultRedactionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"password"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"secret"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"key"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"community"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"token"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"auth"\s*:\s*"[^"]*"`),
}

// Client represents an eAPI connection to a network device
//
// The client issues JSON-RPC 2.0 "runCmds" requests over HTTP or HTTPS. No
// physical connection is held between requests; the underlying http.Client
// pools connections transparently.
type Client struct {
	// httpc is the underlying HTTP client
	httpc *http.Client

	// mu guards the cached configuration text
	mu sync.Mutex

	// Connection parameters
	Target    string
	Transport string
	Port      int
	username  string // unexported for security
	password  string // unexported for security

	// TLS options
	VerifyCertificate bool

	// Timeout configuration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration

	// Retry configuration
	MaxRetries         int
	BackoffMinDelay    time.Duration
	BackoffMaxDelay    time.Duration
	BackoffDelayFactor float64

	// Cached configuration text (see RunningConfig, StartupConfig, Refresh)
	runningConfig string
	startupConfig string

	// Logging configuration
	logger            Logger
	prettyPrintLogs   bool
	redactionPatterns []*regexp.Regexp
}

// NewClient creates a new eAPI client for the specified target and options
//
// The target is a hostname or IP address; the port defaults to 443 for the
// https transport and 80 for http unless overridden with Port(). The client
// does not contact the device until the first command is issued. Use
// Registry.ConnectTo or Client.Enable with "show version" to verify
// reachability explicitly.
//
// Example:
//
//	client, err := eapi.NewClient(
//	    "192.168.1.1",
//	    eapi.Username("admin"),
//	    eapi.Password("secret"),
//	    eapi.Transport("https"),
//	    eapi.VerifyCertificate(false),
//	    eapi.MaxRetries(5),
//	)
//	if err != nil {
//	    log.Fatal(err)  // Configuration error
//	}
//
// Returns a configured Client or an error if configuration validation fails.
func NewClient(target string, opts ...func(*Client)) (*Client, error) {
	// Create client with default values
	client := &Client{
		Target:             target,
		Transport:          DefaultTransport,
		VerifyCertificate:  DefaultVerifyCertificate,
		ConnectTimeout:     DefaultConnectTimeout,
		OperationTimeout:   DefaultOperationTimeout,
		MaxRetries:         DefaultMaxRetries,
		BackoffMinDelay:    DefaultBackoffMinDelay,
		BackoffMaxDelay:    DefaultBackoffMaxDelay,
		BackoffDelayFactor: DefaultBackoffDelayFactor,
		logger:             &NoOpLogger{},
		prettyPrintLogs:    DefaultPrettyPrintLogs,
		redactionPatterns:  defaultRedactionPatterns,
	}

	// Apply functional options
	for _, opt := range opts {
		opt(client)
	}

	// Default port follows the transport
	if client.Port == 0 {
		if client.Transport == "http" {
			client.Port = DefaultPortHTTP
		} else {
			client.Port = DefaultPortHTTPS
		}
	}

	// Validate configuration
	if err := client.validateConfig(); err != nil {
		return nil, err
	}

	tr := &http.Transport{}
	if client.Transport == "https" && !client.VerifyCertificate {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Explicit user opt-out for lab devices
	}
	client.httpc = &http.Client{
		Transport: tr,
		Timeout:   client.ConnectTimeout,
	}

	client.logger.Info("eAPI client created",
		"target", client.Target,
		"transport", client.Transport,
		"port", client.Port)

	return client, nil
}

// Close releases idle connections held by the underlying HTTP client
//
// The client remains usable after Close; subsequent commands open fresh
// connections.
func (c *Client) Close() {
	if c.httpc != nil {
		c.httpc.CloseIdleConnections()
	}

	c.logger.Info("eAPI connections released",
		"target", c.Target)
}

// HasCredentials returns true if credentials are configured
//
// This method only indicates if credentials exist without exposing the
// actual values.
func (c *Client) HasCredentials() bool {
	return c.username != "" || c.password != ""
}

// Backoff calculates the backoff delay for a retry attempt using
// exponential backoff with jitter
//
// The formula is: delay = min(minDelay * (factor ^ attempt) + jitter, maxDelay)
// where jitter is a cryptographically secure random value in [0, delay * 0.1].
// If crypto/rand fails, a timestamp-based jitter keeps retry dispersal.
//
// Parameters:
//   - attempt: The retry attempt number (0-indexed)
//
// Returns the duration to wait before retrying.
func (c *Client) Backoff(attempt int) time.Duration {
	// Calculate base delay: minDelay * (factor ^ attempt)
	delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))

	// Check for overflow and cap at max delay
	if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
		delay = float64(c.BackoffMaxDelay)
	}

	baseDelay := delay

	// Add jitter (0-10% of delay) to prevent thundering herd
	jitterMax := int64(delay * 0.1)
	var jitterVal int64
	if jitterMax > 0 {
		var jitterBytes [8]byte
		if _, err := rand.Read(jitterBytes[:]); err == nil {
			// Mask off sign bit to ensure positive value within int64 range
			//nolint:gosec // G115: explicitly masked to prevent overflow
			jitterVal = int64(binary.BigEndian.Uint64(jitterBytes[:]) & 0x7FFFFFFFFFFFFFFF)
			jitterVal = jitterVal % jitterMax
			delay += float64(jitterVal)
		} else {
			timestamp := time.Now().UnixNano()
			jitterVal = (timestamp%jitterMax + jitterMax) % jitterMax // Ensure positive
			delay += float64(jitterVal)

			c.logger.Warn("crypto/rand failed, using timestamp-based jitter",
				"error", err.Error(),
				"attempt", attempt)
		}
	}

	finalDelay := time.Duration(delay)

	c.logger.Debug("Backoff calculated",
		"attempt", attempt,
		"base_delay_ms", time.Duration(baseDelay).Milliseconds(),
		"jitter_ms", time.Duration(jitterVal).Milliseconds(),
		"final_delay_ms", finalDelay.Milliseconds())

	return finalDelay
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
// This method performs security checks and data sanitization:
//  1. Validates JSON size to prevent ReDoS attacks (max 1MB)
//  2. Checks sensitive field count to prevent DoS (max 1000 fields)
//  3. Redacts sensitive data (passwords, secrets, keys, community strings, tokens)
//  4. Pretty-prints JSON if prettyPrintLogs is enabled
//
// Returns the processed JSON string safe for logging.
func (c *Client) prepareJSONForLogging(jsonStr string) string {
	// Check JSON size limit to prevent ReDoS attacks
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	// Count sensitive fields before processing to prevent excessive regex
	// operations on malicious input
	sensitiveCount := strings.Count(jsonStr, `"password"`) +
		strings.Count(jsonStr, `"secret"`) +
		strings.Count(jsonStr, `"key"`) +
		strings.Count(jsonStr, `"community"`) +
		strings.Count(jsonStr, `"token"`) +
		strings.Count(jsonStr, `"auth"`)

	if sensitiveCount > MaxSensitiveFields {
		c.logger.Warn("Too many sensitive fields detected",
			"count", sensitiveCount,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	// Redact sensitive data first
	redacted := c.redactSensitiveData(jsonStr)

	// Pretty-print JSON if enabled
	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		} else {
			// Fallback: if indent fails (e.g., invalid JSON), return redacted as-is
			c.logger.Debug("JSON pretty-print failed, using raw redacted output",
				"error", err.Error())
		}
	}

	return redacted
}

// redactSensitiveData replaces sensitive data in JSON with [REDACTED]
//
// Redacts the common sensitive fields seen in device command output and
// request payloads: password, secret, key, community, token, auth.
//
// Returns the redacted JSON string.
func (c *Client) redactSensitiveData(json string) string {
	replacements := []string{
		`"password":"[REDACTED]"`,
		`"secret":"[REDACTED]"`,
		`"key":"[REDACTED]"`,
		`"community":"[REDACTED]"`,
		`"token":"[REDACTED]"`,
		`"auth":"[REDACTED]"`,
	}

	result := json
	for i, pattern := range c.redactionPatterns {
		result = pattern.ReplaceAllString(result, replacements[i])
	}

	return result
}

// checkTransientStatus checks if an HTTP status code indicates a transient
// condition that should be retried
//
// Transient conditions are rate limiting (429) and gateway/availability
// errors (502, 503, 504). Anything else, including auth failures and
// well-formed JSON-RPC command errors, is permanent.
//
// Returns true if the status should be retried.
func (c *Client) checkTransientStatus(status int) bool {
	for _, code := range TransientStatusCodes {
		if status == code {
			c.logger.Debug("HTTP status matches transient pattern",
				"status", status)
			return true
		}
	}
	return false
}

// validateConfig validates client configuration before use
//
// Validates:
//   - Target is not empty
//   - Transport is http or https
//   - Port range (1-65535)
//   - Positive timeouts (ConnectTimeout, OperationTimeout > 0)
//   - Retry params (MaxRetries >= 0, BackoffMaxDelay > BackoffMinDelay > 0)
//   - BackoffDelayFactor >= 1.0
//
// Returns an error if validation fails.
func (c *Client) validateConfig() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("target address cannot be empty")
	}

	if c.Transport != "http" && c.Transport != "https" {
		return fmt.Errorf("invalid transport: %s (must be http or https)", c.Transport)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got: %v", c.ConnectTimeout)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got: %v", c.OperationTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got: %d", c.MaxRetries)
	}
	if c.BackoffMinDelay <= 0 {
		return fmt.Errorf("backoff min delay must be positive, got: %v", c.BackoffMinDelay)
	}
	if c.BackoffMaxDelay <= c.BackoffMinDelay {
		return fmt.Errorf("backoff max delay (%v) must be greater than min delay (%v)",
			c.BackoffMaxDelay, c.BackoffMinDelay)
	}
	if c.BackoffDelayFactor < 1.0 {
		return fmt.Errorf("backoff delay factor must be >= 1.0, got: %f", c.BackoffDelayFactor)
	}

	// Warn on insecure TLS configuration
	if c.Transport == "https" && !c.VerifyCertificate {
		c.logger.Warn("certificate verification disabled",
			"target", c.Target,
			"recommendation", "use only in testing environments")
	}

	// Warn if TLS is disabled entirely
	if c.Transport == "http" {
		c.logger.Warn("plain HTTP transport - credentials and data are not encrypted",
			"target", c.Target,
			"recommendation", "use https for production devices")
	}

	// Warn if credentials are missing (not an error, but may be required by device)
	if !c.HasCredentials() {
		c.logger.Warn("No credentials configured",
			"target", c.Target,
			"message", "device may reject connection")
	}

	return nil
}

// url returns the command-api endpoint for this client
func (c *Client) url() string {
	return fmt.Sprintf("%s://%s:%d/command-api", c.Transport, c.Target, c.Port)
}
