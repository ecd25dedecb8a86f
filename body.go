// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building structured command
// payloads using sjson for path-based manipulation.
//
// Most eAPI commands are plain strings, but some require a structured
// payload (for example a command pinned to a specific output revision).
// A Body can be passed directly anywhere a command is accepted; it
// marshals to the JSON it was built up to hold.
//
// The Body builder tracks errors internally to enable method chaining
// while providing error checking through String() or Err() methods.
//
// Example:
//
//	cmd := eapi.Body{}.
//	    Set("cmd", "show interfaces").
//	    Set("revision", 2)
//
//	res, err := client.Enable(ctx, cmd)
type Body struct {
	// str contains the JSON string being built
	str string
	// err tracks the first error encountered during building
	err error
}

// Set sets a value at the specified JSON path and returns a new Body
//
// The path uses dot notation for nested fields (e.g., "input.sequence").
// The value can be any type that sjson supports (string, number, bool, etc.).
//
// If an error occurs, the error is stored and returned by String() or Err().
// Once an error occurs, all subsequent operations are no-ops that preserve
// the error.
//
// Returns the Body for method chaining.
func (b Body) Set(path string, value any) Body {
	// Short-circuit if already in error state
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// Delete removes a value at the specified JSON path and returns a new Body
//
// If an error occurs, the error is stored and returned by String() or Err().
//
// Returns the Body for method chaining.
func (b Body) Delete(path string) Body {
	// Short-circuit if already in error state
	if b.err != nil {
		return b
	}

	result, err := sjson.Delete(b.str, path)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Delete(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// String returns the JSON string representation and any error encountered
// during building
//
// If an error occurred during any Set/Delete operation, the error will be
// returned here.
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Err returns any error that occurred during the building process
//
// This method allows checking for errors without retrieving the value.
func (b Body) Err() error {
	return b.err
}

// Res returns the JSON string for further processing with gjson
//
// If an error occurred during building, this returns an empty string.
// Use Err() or String() to check for errors.
func (b Body) Res() string {
	if b.err != nil {
		return ""
	}
	return b.str
}

// Bytes returns the JSON byte slice representation and any error
// encountered during building
func (b Body) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte(b.str), nil
}

// Map decodes the built payload into a map for use as a structured command
//
// Example:
//
//	cmd, err := eapi.Body{}.Set("cmd", "show interfaces").Set("revision", 2).Map()
func (b Body) Map() (map[string]any, error) {
	if b.err != nil {
		return nil, b.err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(b.str), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalJSON implements json.Marshaler so a Body can be passed directly
// as a command payload
func (b Body) MarshalJSON() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.str == "" {
		return []byte("null"), nil
	}
	return []byte(b.str), nil
}
