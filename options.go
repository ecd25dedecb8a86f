// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import "time"

// Client configuration options using the functional options pattern

// Username sets the username for eAPI authentication
func Username(username string) func(*Client) {
	return func(c *Client) {
		c.username = username
	}
}

// Password sets the password for eAPI authentication
func Password(password string) func(*Client) {
	return func(c *Client) {
		c.password = password
	}
}

// Transport sets the transport scheme: https (default) or http
//
// WARNING: Plain HTTP transmits credentials and command output in clear
// text. Only use http in isolated testing environments.
func Transport(transport string) func(*Client) {
	return func(c *Client) {
		c.Transport = transport
	}
}

// Port sets the eAPI port (default: 443 for https, 80 for http)
func Port(port int) func(*Client) {
	return func(c *Client) {
		c.Port = port
	}
}

// VerifyCertificate enables or disables TLS certificate verification (default: true)
//
// WARNING: Disabling certificate verification makes the connection
// vulnerable to Man-in-the-Middle attacks. Only use this in testing
// environments where security is not a concern.
//
// Example:
//
//	client, _ := eapi.NewClient("192.168.1.1",
//	    eapi.Username("admin"),
//	    eapi.Password("secret"),
//	    eapi.VerifyCertificate(false))  // Insecure, use only for testing
func VerifyCertificate(verify bool) func(*Client) {
	return func(c *Client) {
		c.VerifyCertificate = verify
	}
}

// ConnectTimeout sets the connection timeout (default: 30s)
func ConnectTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.ConnectTimeout = duration
	}
}

// OperationTimeout sets the operation timeout (default: 15s)
func OperationTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.OperationTimeout = duration
	}
}

// MaxRetries sets the maximum number of retry attempts for transient errors (default: 3)
func MaxRetries(retries int) func(*Client) {
	return func(c *Client) {
		c.MaxRetries = retries
	}
}

// BackoffMinDelay sets the minimum backoff delay (default: 1s)
func BackoffMinDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMinDelay = duration
	}
}

// BackoffMaxDelay sets the maximum backoff delay (default: 60s)
func BackoffMaxDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMaxDelay = duration
	}
}

// BackoffDelayFactor sets the backoff multiplication factor (default: 2.0)
func BackoffDelayFactor(factor float64) func(*Client) {
	return func(c *Client) {
		c.BackoffDelayFactor = factor
	}
}

// WithLogger configures a custom logger for the client
//
// By default, the client uses NoOpLogger which discards all log messages.
// Use this option to enable logging with DefaultLogger or a custom logger.
//
// All JSON content logged at Debug level is automatically redacted to
// remove sensitive data (passwords, secrets, keys, tokens).
//
// Example:
//
//	logger := eapi.NewDefaultLogger(eapi.LogLevelInfo)
//	client, _ := eapi.NewClient("192.168.1.1",
//	    eapi.Username("admin"),
//	    eapi.Password("secret"),
//	    eapi.WithLogger(logger))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in logs
//
// When enabled, JSON content in debug logs is formatted for better
// readability. This only affects Debug-level log output.
func WithPrettyPrintLogs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.prettyPrintLogs = enabled
	}
}

// Request modifiers for individual operations

// Timeout returns a request modifier that sets a custom timeout for the operation.
//
// This timeout takes precedence over the client's OperationTimeout. Use it
// to set operation-specific timeouts that differ from the client's default.
//
// The timeout priority model is:
//  1. Request-specific timeout (this modifier) - highest priority
//  2. Context deadline (if already set) - medium priority
//  3. Client.OperationTimeout - fallback default
//
// Example:
//
//	// Long-running command with a 2 minute budget
//	res, err := client.Enable(ctx, "show tech-support",
//	    eapi.Timeout(2*time.Minute))
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}

// Format returns a request modifier that sets the output encoding.
//
// Valid encodings: json (default), text. Commands that have no JSON model
// on the device (configuration dumps in particular) must be requested with
// text encoding; the result carries the raw text under the "output" key.
//
// Example:
//
//	res, err := client.Enable(ctx, "show running-config",
//	    eapi.Format(eapi.EncodingText))
//	fmt.Println(res.Text())
func Format(encoding string) func(*Req) {
	return func(req *Req) {
		req.Format = encoding
	}
}
