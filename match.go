// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"fmt"
	"strings"
)

// matchFamily is a closed set of comparison behaviors; the alias table maps
// the human-readable spellings onto it
type matchFamily int

const (
	matchEquals matchFamily = iota
	matchNotEquals
	matchEmpty
	matchNotEmpty
	matchStartsWith
	matchContains
	matchNotContains
	matchContainsLine
	matchNotContainsLine
	matchGreaterThan
	matchLessThan
)

// matchAliases maps normalized match type spellings to their family
//
// Normalization is lowercase with all spaces stripped, so "is equal to",
// "Is Equal To" and "isequalto" are the same alias.
var matchAliases = map[string]matchFamily{
	"is":                 matchEquals,
	"isequalto":          matchEquals,
	"equals":             matchEquals,
	"tobe":               matchEquals,
	"isnot":              matchNotEquals,
	"isnotequalto":       matchNotEquals,
	"tonotbe":            matchNotEquals,
	"empty":              matchEmpty,
	"isempty":            matchEmpty,
	"notempty":           matchNotEmpty,
	"isnotempty":         matchNotEmpty,
	"startswith":         matchStartsWith,
	"beginswith":         matchStartsWith,
	"contains":           matchContains,
	"tocontain":          matchContains,
	"doesnotcontain":     matchNotContains,
	"tonotcontain":       matchNotContains,
	"containsline":       matchContainsLine,
	"tocontainline":      matchContainsLine,
	"doesnotcontainline": matchNotContainsLine,
	"tonotcontainline":   matchNotContainsLine,
	"greater":            matchGreaterThan,
	"isgreater":          matchGreaterThan,
	"isgreaterthan":      matchGreaterThan,
	"greaterthan":        matchGreaterThan,
	"less":               matchLessThan,
	"isless":             matchLessThan,
	"islessthan":         matchLessThan,
	"lessthan":           matchLessThan,
}

// normalizeMatchType resolves a match type spelling to its family
func normalizeMatchType(matchType string) (matchFamily, error) {
	normalized := strings.ToLower(strings.ReplaceAll(matchType, " ", ""))
	family, ok := matchAliases[normalized]
	if !ok {
		return 0, &UnimplementedMatchError{MatchType: matchType}
	}
	return family, nil
}

// assertionFailure builds the failure carried back to the test runner
func assertionFailure(key, format string, args ...any) *AssertionError {
	return &AssertionError{
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}

// evaluateMatch tests found against matchValue under the given family
//
// A passing comparison returns nil. A failing comparison returns an
// *AssertionError. Shape and coercion problems return their own error
// types so they surface as authoring errors rather than test failures.
func evaluateMatch(key string, family matchFamily, found Value, matchValue string) error {
	switch family {
	case matchEquals:
		if found.String() != matchValue {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected: '%s'",
				key, found.String(), matchValue)
		}
		return nil

	case matchNotEquals:
		if found.String() == matchValue {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to not be: '%s'",
				key, found.String(), matchValue)
		}
		return nil

	case matchEmpty:
		if !found.IsEmpty() {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to be empty.",
				key, found.String())
		}
		return nil

	case matchNotEmpty:
		if found.IsEmpty() {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to not be empty.",
				key, found.String())
		}
		return nil

	case matchStartsWith:
		if !strings.HasPrefix(found.String(), matchValue) {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to start with: '%s'",
				key, found.String(), matchValue)
		}
		return nil

	case matchContains:
		return evaluateContains(key, found, matchValue)

	case matchNotContains:
		return evaluateNotContains(key, found, matchValue)

	case matchContainsLine:
		return evaluateContainsLine(key, found, matchValue)

	case matchNotContainsLine:
		return evaluateNotContainsLine(key, found, matchValue)

	case matchGreaterThan:
		foundNum, matchNum, err := coerceNumeric(key, found, matchValue)
		if err != nil {
			return err
		}
		if !(foundNum > matchNum) {
			return assertionFailure(key, "Key: '%s', Found: '%s', Should be greater than: '%s'",
				key, found.String(), matchValue)
		}
		return nil

	case matchLessThan:
		foundNum, matchNum, err := coerceNumeric(key, found, matchValue)
		if err != nil {
			return err
		}
		if !(foundNum < matchNum) {
			return assertionFailure(key, "Key: '%s', Found: '%s', Should be less than: '%s'",
				key, found.String(), matchValue)
		}
		return nil

	default:
		return &UnimplementedMatchError{MatchType: fmt.Sprintf("family %d", family)}
	}
}

// evaluateContains dispatches on the shape of found: substring for strings,
// membership for sequences and lines, key membership for mappings
func evaluateContains(key string, found Value, matchValue string) error {
	switch found.Kind() {
	case KindString:
		if !strings.Contains(found.String(), matchValue) {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to contain: '%s'",
				key, found.String(), matchValue)
		}
		return nil
	case KindSequence, KindLines:
		for _, elem := range found.Elements() {
			if elem.String() == matchValue {
				return nil
			}
		}
		return assertionFailure(key, "Did not find '%s' in '%s'", matchValue, found.String())
	case KindMapping:
		if _, ok := found.Get(matchValue); !ok {
			return assertionFailure(key, "Did not find key '%s' in '%s'", matchValue, found.String())
		}
		return nil
	default:
		return &UnsupportedTypeError{Key: key}
	}
}

// evaluateNotContains is the negation of evaluateContains
func evaluateNotContains(key string, found Value, matchValue string) error {
	switch found.Kind() {
	case KindString:
		if strings.Contains(found.String(), matchValue) {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to not contain: '%s'",
				key, found.String(), matchValue)
		}
		return nil
	case KindSequence, KindLines:
		for _, elem := range found.Elements() {
			if elem.String() == matchValue {
				return assertionFailure(key, "Found '%s' in '%s'", matchValue, found.String())
			}
		}
		return nil
	case KindMapping:
		if _, ok := found.Get(matchValue); ok {
			return assertionFailure(key, "Found '%s' in '%s'", matchValue, found.String())
		}
		return nil
	default:
		return &UnsupportedTypeError{Key: key}
	}
}

// evaluateContainsLine tests configuration-line presence
//
// A string value matches when it equals matchValue after trimming
// surrounding whitespace; a sequence or lines value matches when any
// element does.
func evaluateContainsLine(key string, found Value, matchValue string) error {
	want := strings.TrimSpace(matchValue)
	switch found.Kind() {
	case KindString:
		if strings.TrimSpace(found.String()) != want {
			return assertionFailure(key, "Key: '%s', Found: '%s', Expected to be: '%s'",
				key, found.String(), matchValue)
		}
		return nil
	case KindSequence, KindLines:
		for _, elem := range found.Elements() {
			if strings.TrimSpace(elem.String()) == want {
				return nil
			}
		}
		return assertionFailure(key, "Did not find '%s' in '%s'", matchValue, found.String())
	default:
		return &UnsupportedTypeError{Key: key}
	}
}

// evaluateNotContainsLine tests configuration-line absence by exact
// equality and exact membership
func evaluateNotContainsLine(key string, found Value, matchValue string) error {
	switch found.Kind() {
	case KindString:
		if found.String() == matchValue {
			return assertionFailure(key, "Found '%s' in key '%s', Expected to not be found",
				matchValue, key)
		}
		return nil
	case KindSequence, KindLines:
		for _, elem := range found.Elements() {
			if elem.String() == matchValue {
				return assertionFailure(key, "Found '%s' in key '%s', Expected to not be found",
					matchValue, key)
			}
		}
		return nil
	default:
		return &UnsupportedTypeError{Key: key}
	}
}

// coerceNumeric converts both comparison sides to numbers
//
// The found value uses its numeric content directly when it already is a
// number, otherwise its string content is parsed as int then float. The
// match value is always a string literal and parses the same way. A side
// that cannot be coerced names itself in the resulting NumericError.
func coerceNumeric(key string, found Value, matchValue string) (float64, float64, error) {
	foundNum, ok := found.Number()
	if !ok {
		return 0, 0, &NumericError{
			Key:     key,
			Side:    "returned",
			Literal: found.String(),
		}
	}
	matchNum, ok := StringValue(matchValue).Number()
	if !ok {
		return 0, 0, &NumericError{
			Key:     key,
			Side:    "match",
			Literal: matchValue,
		}
	}
	return foundNum, matchNum, nil
}
