// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies the shape of a Value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindMapping
	KindLines
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindLines:
		return "lines"
	default:
		return "unknown"
	}
}

// Value is a decoded command result or a fragment of one
//
// Structured JSON results decode into String/Number/Bool/Sequence/Mapping
// shapes; line-oriented output (configuration dumps) decodes into Lines.
// A result is decoded once when it is stored, so assertions dispatch on the
// shape tag rather than re-inspecting raw JSON.
type Value struct {
	kind    Kind
	str     string
	num     float64
	numRaw  string
	boolean bool
	seq     []Value
	mapping map[string]Value
	keys    []string
	lines   []string
}

// NullValue returns the null Value
func NullValue() Value {
	return Value{kind: KindNull}
}

// StringValue returns a string Value
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue returns a numeric Value
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// BoolValue returns a boolean Value
func BoolValue(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// LinesValue returns a line-oriented Value
func LinesValue(lines []string) Value {
	return Value{kind: KindLines, lines: lines}
}

// SequenceValue returns a sequence Value
func SequenceValue(elems ...Value) Value {
	return Value{kind: KindSequence, seq: elems}
}

// MappingValue returns a mapping Value with keys in insertion order
func MappingValue(pairs ...any) Value {
	v := Value{kind: KindMapping, mapping: map[string]Value{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		val, ok := pairs[i+1].(Value)
		if !ok {
			continue
		}
		if _, exists := v.mapping[key]; !exists {
			v.keys = append(v.keys, key)
		}
		v.mapping[key] = val
	}
	return v
}

// DecodeJSON decodes a gjson result into a Value tree
func DecodeJSON(res gjson.Result) Value {
	switch res.Type {
	case gjson.Null:
		return NullValue()
	case gjson.String:
		return StringValue(res.String())
	case gjson.Number:
		return Value{kind: KindNumber, num: res.Float(), numRaw: res.Raw}
	case gjson.True:
		return BoolValue(true)
	case gjson.False:
		return BoolValue(false)
	case gjson.JSON:
		if res.IsArray() {
			var elems []Value
			res.ForEach(func(_, child gjson.Result) bool {
				elems = append(elems, DecodeJSON(child))
				return true
			})
			return Value{kind: KindSequence, seq: elems}
		}
		v := Value{kind: KindMapping, mapping: map[string]Value{}}
		res.ForEach(func(key, child gjson.Result) bool {
			k := key.String()
			if _, exists := v.mapping[k]; !exists {
				v.keys = append(v.keys, k)
			}
			v.mapping[k] = DecodeJSON(child)
			return true
		})
		return v
	default:
		return NullValue()
	}
}

// DecodeText decodes line-oriented command output into a Lines Value
func DecodeText(text string) Value {
	return LinesValue(strings.Split(strings.TrimRight(text, "\n"), "\n"))
}

// Kind returns the shape tag of the value
func (v Value) Kind() Kind {
	return v.kind
}

// String returns the display form of the value
//
// Scalars render as their literal content, containers as compact JSON, and
// lines as the newline-joined text.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		if v.numRaw != "" {
			return v.numRaw
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindSequence, KindMapping:
		data, err := json.Marshal(v.toAny())
		if err != nil {
			return ""
		}
		return string(data)
	case KindLines:
		return strings.Join(v.lines, "\n")
	default:
		return ""
	}
}

// toAny converts the value into plain Go shapes for JSON rendering
func (v Value) toAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindNumber:
		if v.numRaw != "" {
			return json.RawMessage(v.numRaw)
		}
		return v.num
	case KindBool:
		return v.boolean
	case KindSequence:
		out := make([]any, 0, len(v.seq))
		for _, elem := range v.seq {
			out = append(out, elem.toAny())
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.mapping))
		for key, elem := range v.mapping {
			out[key] = elem.toAny()
		}
		return out
	case KindLines:
		out := make([]any, 0, len(v.lines))
		for _, line := range v.lines {
			out = append(out, line)
		}
		return out
	default:
		return nil
	}
}

// IsEmpty reports whether the value is empty
//
// Null is empty, scalars are empty at their zero content ("" / 0 / false),
// containers and lines are empty when they have no elements.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == ""
	case KindNumber:
		return v.num == 0
	case KindBool:
		return !v.boolean
	case KindSequence:
		return len(v.seq) == 0
	case KindMapping:
		return len(v.mapping) == 0
	case KindLines:
		return len(v.lines) == 0
	default:
		return true
	}
}

// Number returns the numeric content of the value
//
// Numbers convert directly. Strings are parsed as an integer first, then as
// a float. All other shapes are not numeric.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64); err == nil {
			return float64(n), true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Lines returns the line content of a Lines value
func (v Value) Lines() []string {
	return v.lines
}

// Elements returns the members of a sequence or lines value
func (v Value) Elements() []Value {
	if v.kind == KindLines {
		out := make([]Value, 0, len(v.lines))
		for _, line := range v.lines {
			out = append(out, StringValue(line))
		}
		return out
	}
	return v.seq
}

// Keys returns the keys of a mapping value in document order
func (v Value) Keys() []string {
	return v.keys
}

// Get returns the mapping member for key
func (v Value) Get(key string) (Value, bool) {
	elem, ok := v.mapping[key]
	return elem, ok
}

// isWholeResultKey reports whether key addresses the entire stored result
//
// "config" and "full output" (case-insensitive) skip path descent.
func isWholeResultKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	return normalized == "config" || normalized == "full output"
}

// splitKey splits a caller key into path segments on whitespace
func splitKey(key string) []string {
	return strings.Fields(key)
}

// resolveKey descends into root following the whitespace-delimited key
//
// Mapping segments look up by string key, sequence and lines segments by
// non-negative integer index. The reserved keys "config" and "full output"
// return the whole result without descent.
func resolveKey(key string, root Value) (Value, error) {
	if isWholeResultKey(key) {
		return root, nil
	}

	current := root
	for _, segment := range splitKey(key) {
		switch current.kind {
		case KindMapping:
			next, ok := current.Get(segment)
			if !ok {
				return Value{}, &PathError{
					Key:     key,
					Segment: segment,
					Reason:  "key not found",
				}
			}
			current = next
		case KindSequence, KindLines:
			index, err := strconv.Atoi(segment)
			if err != nil {
				return Value{}, &PathError{
					Key:     key,
					Segment: segment,
					Reason:  "index is not an integer",
				}
			}
			elems := current.Elements()
			if index < 0 || index >= len(elems) {
				return Value{}, &PathError{
					Key:     key,
					Segment: segment,
					Reason:  "index out of range",
				}
			}
			current = elems[index]
		default:
			return Value{}, &PathError{
				Key:     key,
				Segment: segment,
				Reason:  "cannot descend into " + current.kind.String() + " value",
			}
		}
	}
	return current, nil
}
