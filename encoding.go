// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import "fmt"

// Encoding constants for eAPI command output
const (
	// EncodingJSON requests structured JSON output (default)
	EncodingJSON = "json"

	// EncodingText requests line-oriented text output
	//
	// Not all commands support JSON output; configuration dumps in
	// particular are only available as text.
	EncodingText = "text"
)

// ValidEncodings contains the list of valid encoding values
var ValidEncodings = []string{
	EncodingJSON,
	EncodingText,
}

// ValidateEncoding checks if the encoding is valid
//
// Returns an error if the encoding is not one of the supported values.
//
// Example:
//
//	if err := eapi.ValidateEncoding("text"); err != nil {
//	    log.Fatal(err)
//	}
func ValidateEncoding(enc string) error {
	for _, valid := range ValidEncodings {
		if enc == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid encoding: %s (valid values: json, text)", enc)
}
