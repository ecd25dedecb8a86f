// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import "fmt"

// CommandError represents a command rejected or failed by a device
//
// It annotates the underlying JSON-RPC error with the command that was
// issued and the device it was issued to. Command errors are permanent and
// are never retried by this library.
type CommandError struct {
	// Device is the registry name or target of the failing device
	Device string

	// Command is the command that was issued, in display form
	Command string

	// Code is the JSON-RPC error code reported by the device, if any
	Code int

	// Message is the error message
	Message string

	// Errors contains per-command error details from the response
	Errors []ErrorModel
}

// Error implements the error interface
func (e *CommandError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("eapi: command %q failed on %s: %s", e.Command, e.Device, e.Message)
	}
	return fmt.Sprintf("eapi: command %q failed: %s", e.Command, e.Message)
}

// ErrorModel represents one error detail from an eAPI response
type ErrorModel struct {
	// Code is the eAPI/JSON-RPC error code
	Code int

	// Message is the error message
	Message string
}

// TransientStatusCodes lists the HTTP status codes that indicate a
// temporary server-side condition and trigger automatic retry.
//
// JSON-RPC command errors (a well-formed error response from the device)
// are never in this set: a rejected command will be rejected again, and
// retrying it can mask real failures.
var TransientStatusCodes = []int{
	429, // rate limited
	502, // bad gateway
	503, // service unavailable
	504, // gateway timeout
}

// AssertionError represents a failed Expect match
//
// Message carries the generated failure text ("Key: '...', Found: '...',
// Expected: '...'") or the caller-supplied override.
type AssertionError struct {
	// Key is the key path the assertion targeted
	Key string

	// Message is the failure text
	Message string
}

// Error implements the error interface
func (e *AssertionError) Error() string {
	return e.Message
}

// UnimplementedMatchError indicates a match phrase that does not map to any
// known predicate family. This is an authoring error, distinct from a
// failed assertion.
type UnimplementedMatchError struct {
	// MatchType is the phrase as supplied by the caller
	MatchType string
}

// Error implements the error interface
func (e *UnimplementedMatchError) Error() string {
	return fmt.Sprintf("eapi: %q is currently not implemented for Expect", e.MatchType)
}

// PathError indicates a key path segment that could not be resolved against
// the stored command result.
type PathError struct {
	// Key is the full key path
	Key string

	// Segment is the segment that failed to resolve
	Segment string

	// Reason describes why resolution failed
	Reason string
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("eapi: key %q: segment %q: %s", e.Key, e.Segment, e.Reason)
}

// UnsupportedTypeError indicates a contains-family match applied to a value
// that is neither a string, a sequence, nor a mapping.
type UnsupportedTypeError struct {
	// Key is the key path the assertion targeted
	Key string
}

// Error implements the error interface
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("eapi: key %q: unable to determine type of return value", e.Key)
}

// NoResultError indicates an Expect or GetValue call before any command
// output has been fetched for the active device.
type NoResultError struct {
	// Device is the device the lookup targeted
	Device string
}

// Error implements the error interface
func (e *NoResultError) Error() string {
	return fmt.Sprintf("eapi: no command output stored for device %q", e.Device)
}

// NumericError indicates a greater-than/less-than comparison where one side
// could not be coerced to a number. This is distinct from a failed
// assertion: the comparison never ran.
type NumericError struct {
	// Key is the key path the assertion targeted
	Key string

	// Side names the offending operand: "returned" or "match"
	Side string

	// Literal is the value that failed to coerce, in display form
	Literal string
}

// Error implements the error interface
func (e *NumericError) Error() string {
	return fmt.Sprintf("eapi: key %q: %s value %q must be an int or float", e.Key, e.Side, e.Literal)
}
