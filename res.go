// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"github.com/tidwall/gjson"
)

// CommandRes represents the decoded result of an eAPI request
//
// For RunCommands, Raw holds the JSON array of per-command result objects,
// aligned with the commands that were issued. For Enable, Raw holds the
// single command's result object.
type CommandRes struct {
	// Raw is the result body as returned by the device, as JSON text
	Raw string

	// OK indicates if the operation succeeded
	OK bool

	// Errors contains any error information
	Errors []ErrorModel
}

// GetValue retrieves a value from the result using a gjson path.
// The path follows gjson syntax for querying JSON structures.
//
// Example paths against an Enable result:
//   - "version" - top-level scalar
//   - "interfaces.Ethernet1.interfaceStatus" - nested object field
//   - "interfaces.Ethernet1.interfaceCounters.inOctets" - counter value
//
// Returns gjson.Result which can be converted to specific types:
//   - result.String() for string values
//   - result.Int() for integer values
//   - result.Bool() for boolean values
//   - result.Array() for array values
//
// Example:
//
//	res, err := client.Enable(ctx, "show version")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model := res.GetValue("modelName").String()
func (r CommandRes) GetValue(path string) gjson.Result {
	if r.Raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(r.Raw, path)
}

// Results returns the per-command result objects of a RunCommands response.
//
// For an Enable response the slice contains the single result object.
//
// Example:
//
//	res, err := client.RunCommands(ctx, []any{"show version", "show hostname"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hostname := res.Results()[1].Get("hostname").String()
func (r CommandRes) Results() []gjson.Result {
	if r.Raw == "" {
		return nil
	}
	parsed := gjson.Parse(r.Raw)
	if parsed.IsArray() {
		return parsed.Array()
	}
	return []gjson.Result{parsed}
}

// JSON returns the result body as a JSON string.
// This is useful for debugging, logging, or custom parsing.
func (r CommandRes) JSON() string {
	return r.Raw
}

// Text returns the text payload of a text-encoded result.
//
// Text-encoded eAPI results wrap the raw command output in an object under
// the "output" key. Returns an empty string if the result has no such
// envelope.
//
// Example:
//
//	res, err := client.Enable(ctx, "show running-config",
//	    eapi.Format(eapi.EncodingText))
//	config := res.Text()
func (r CommandRes) Text() string {
	return r.GetValue("output").String()
}
