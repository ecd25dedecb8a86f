// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import "time"

// Req represents an eAPI request modifier
//
// This struct is used to apply request-specific options via functional
// modifiers. The commands themselves are passed directly to methods.
//
// Example:
//
//	// Run a command with text output and a custom timeout
//	res, err := client.Enable(ctx, "show running-config",
//	    eapi.Format(eapi.EncodingText),
//	    eapi.Timeout(30*time.Second))
type Req struct {
	// Format specifies the output encoding
	// Valid values: json (default), text
	Format string

	// Timeout is the request-specific timeout
	// Overrides client default timeout if set
	Timeout time.Duration
}
