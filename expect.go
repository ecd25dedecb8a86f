// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tidwall/gjson"
)

// configCommand matches configuration-dump commands, which always produce
// line-oriented output regardless of encoding
var configCommand = regexp.MustCompile(`^show (startup|running)-config`)

// CommandProvider supplies the Engine with devices and command execution
//
// Registry implements it; tests supply their own.
type CommandProvider interface {
	// CurrentDevice returns the name of the active device
	CurrentDevice() (string, error)

	// Devices returns the names of all known devices in registration order
	Devices() []string

	// Execute runs one command on a device and returns its result object
	Execute(ctx context.Context, device string, command any, encoding string) (CommandRes, error)

	// RunningConfig returns the device's running configuration as text
	RunningConfig(ctx context.Context, device string) (string, error)

	// StartupConfig returns the device's startup configuration as text
	StartupConfig(ctx context.Context, device string) (string, error)
}

// Engine evaluates assertions against per-device cached command output
//
// An Engine remembers, for each device, the last command issued through it
// and that command's decoded result. Expect and GetValue read the cache for
// the active device; GetCommandOutput populates it. An Engine is scoped to
// one test suite and is not safe for concurrent use.
type Engine struct {
	provider       CommandProvider
	defaultCommand any
	logger         Logger

	cmds    map[string]any
	results map[string]Value
}

// NewEngine creates an assertion engine backed by the given provider
//
// Example:
//
//	engine := eapi.NewEngine(registry, eapi.DefaultCommand("show version"))
//	err := engine.GetCommandOutput(ctx, "", nil)
//	err = engine.Expect("modelName", "starts with", "vEOS")
func NewEngine(provider CommandProvider, opts ...func(*Engine)) *Engine {
	e := &Engine{
		provider: provider,
		logger:   &NoOpLogger{},
		cmds:     map[string]any{},
		results:  map[string]Value{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultCommand sets the command used by GetCommandOutput when neither a
// call argument nor a remembered command is available for a device
func DefaultCommand(cmd any) func(*Engine) {
	return func(e *Engine) {
		e.defaultCommand = cmd
	}
}

// EngineLogger sets the logger used by the Engine
func EngineLogger(logger Logger) func(*Engine) {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// resolveSelector expands a device selector into device names
//
// An empty selector means every known device. Otherwise the selector is a
// device name or a 1-based registration index.
func (e *Engine) resolveSelector(selector string) ([]string, error) {
	devices := e.provider.Devices()
	if selector == "" {
		return devices, nil
	}
	for _, name := range devices {
		if name == selector {
			return []string{name}, nil
		}
	}
	if index, err := strconv.Atoi(selector); err == nil {
		if index < 1 || index > len(devices) {
			return nil, fmt.Errorf("device index %d out of range, %d device(s) known", index, len(devices))
		}
		return []string{devices[index-1]}, nil
	}
	return nil, fmt.Errorf("unknown device %q", selector)
}

// GetCommandOutput runs a command and stores its decoded result per device
//
// An empty selector applies to every known device. The command used for
// each device is chosen in order of precedence: the command argument, the
// device's previously remembered command, the engine's default command.
// When all three are absent the device's stored result is cleared.
//
// Configuration-dump commands decode as lines: "show startup-config" and
// "show running-config all" fetch the respective configuration text, any
// other "show startup-config..."/"show running-config..." variant runs with
// text encoding. Everything else runs with json encoding and decodes as a
// structured value. Structured command payloads (maps, Body) always run
// with json encoding.
//
// Returns the updated per-device result mapping.
func (e *Engine) GetCommandOutput(ctx context.Context, selector string, command any) (map[string]Value, error) {
	devices, err := e.resolveSelector(selector)
	if err != nil {
		return nil, fmt.Errorf("get command output: %w", err)
	}

	for _, device := range devices {
		if err := e.fetchDevice(ctx, device, command); err != nil {
			return nil, err
		}
	}

	out := make(map[string]Value, len(e.results))
	for device, result := range e.results {
		out[device] = result
	}
	return out, nil
}

// RefreshCommandOutput re-runs each selected device's remembered command
// (or the engine default) and stores the fresh result
func (e *Engine) RefreshCommandOutput(ctx context.Context, selector string) (map[string]Value, error) {
	return e.GetCommandOutput(ctx, selector, nil)
}

// fetchDevice resolves the effective command for one device, runs it, and
// stores the decoded result
func (e *Engine) fetchDevice(ctx context.Context, device string, command any) error {
	cmd := command
	if cmd == nil {
		if remembered, ok := e.cmds[device]; ok {
			cmd = remembered
		}
	}
	if cmd == nil {
		cmd = e.defaultCommand
	}
	if cmd == nil {
		delete(e.results, device)
		e.logger.Debug("no command to run, result cleared",
			"device", device)
		return nil
	}

	// Drop any previous result so a failed run cannot leave stale output
	// behind for a later assertion.
	delete(e.results, device)
	result, err := e.runCommand(ctx, device, cmd)
	if err != nil {
		return err
	}

	e.cmds[device] = cmd
	e.results[device] = result
	e.logger.Debug("command output stored",
		"device", device,
		"command", commandDisplay(cmd),
		"kind", result.Kind().String())
	return nil
}

// runCommand executes cmd on device and decodes the result per the
// command's decoding policy
func (e *Engine) runCommand(ctx context.Context, device string, cmd any) (Value, error) {
	s, isString := cmd.(string)
	if !isString {
		res, err := e.provider.Execute(ctx, device, cmd, EncodingJSON)
		if err != nil {
			return Value{}, annotateCommandError(err, device, cmd)
		}
		return DecodeJSON(gjson.Parse(res.Raw)), nil
	}

	switch {
	case s == "show startup-config":
		text, err := e.provider.StartupConfig(ctx, device)
		if err != nil {
			return Value{}, annotateCommandError(err, device, cmd)
		}
		return DecodeText(text), nil
	case s == "show running-config all":
		text, err := e.provider.RunningConfig(ctx, device)
		if err != nil {
			return Value{}, annotateCommandError(err, device, cmd)
		}
		return DecodeText(text), nil
	case configCommand.MatchString(s):
		res, err := e.provider.Execute(ctx, device, s, EncodingText)
		if err != nil {
			return Value{}, annotateCommandError(err, device, cmd)
		}
		return DecodeText(res.Text()), nil
	default:
		res, err := e.provider.Execute(ctx, device, s, EncodingJSON)
		if err != nil {
			return Value{}, annotateCommandError(err, device, cmd)
		}
		return DecodeJSON(gjson.Parse(res.Raw)), nil
	}
}

// annotateCommandError fills in the device and command on propagated
// command failures
func annotateCommandError(err error, device string, cmd any) error {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		cmdErr.Device = device
		if cmdErr.Command == "" {
			cmdErr.Command = commandDisplay(cmd)
		}
		return cmdErr
	}
	return fmt.Errorf("command %q failed on %s: %w", commandDisplay(cmd), device, err)
}

// Expectation carries per-assertion settings
type Expectation struct {
	message string
}

// Message overrides the generated failure text of a failing Expect with a
// literal string
func Message(msg string) func(*Expectation) {
	return func(exp *Expectation) {
		exp.message = msg
	}
}

// Expect asserts on a value inside the active device's stored result
//
// The key is a whitespace-delimited path into the result; the reserved keys
// "config" and "full output" address the whole result. The match type is a
// case- and space-insensitive phrase such as "is", "is not equal to",
// "to contain line" or "greater than".
//
// Example:
//
//	err := engine.Expect("interfaces Ethernet1 autoNegotiate", "is", "unknown")
//	err = engine.Expect("config", "to contain line", "ip routing")
//	err = engine.Expect("memFree", "is greater than", "100000",
//	    eapi.Message("device is low on memory"))
//
// A passing assertion returns nil. A failing assertion returns an
// *AssertionError; unknown match phrases, unresolvable keys, and numeric
// coercion failures return their own error types.
func (e *Engine) Expect(key, matchType, matchValue string, mods ...func(*Expectation)) error {
	exp := &Expectation{}
	for _, mod := range mods {
		mod(exp)
	}

	device, err := e.provider.CurrentDevice()
	if err != nil {
		return err
	}
	result, ok := e.results[device]
	if !ok {
		return &NoResultError{Device: device}
	}

	found, err := resolveKey(key, result)
	if err != nil {
		return err
	}

	family, err := normalizeMatchType(matchType)
	if err != nil {
		return err
	}

	err = evaluateMatch(key, family, found, matchValue)
	if err != nil {
		var assertErr *AssertionError
		if exp.message != "" && errors.As(err, &assertErr) {
			assertErr.Message = exp.message
		}
		e.logger.Debug("assertion failed",
			"device", device,
			"key", key,
			"match_type", matchType,
			"error", err.Error())
		return err
	}
	return nil
}

// GetValue resolves a key against the active device's stored result and
// returns the value, using the same path rules as Expect
func (e *Engine) GetValue(key string) (Value, error) {
	device, err := e.provider.CurrentDevice()
	if err != nil {
		return Value{}, err
	}
	result, ok := e.results[device]
	if !ok {
		return Value{}, &NoResultError{Device: device}
	}
	return resolveKey(key, result)
}

// RecordOutput runs a command on one device and logs and returns its output
//
// An empty selector targets the active device. When no command is given the
// device's cached result is returned instead. Output defaults to text
// encoding; a result carrying an {"output": ...} envelope has it unwrapped.
//
// Example:
//
//	out, err := engine.RecordOutput(ctx, "", "show version detail")
func (e *Engine) RecordOutput(ctx context.Context, selector string, command any, mods ...func(*Req)) (Value, error) {
	var device string
	var err error
	if selector == "" {
		device, err = e.provider.CurrentDevice()
		if err != nil {
			return Value{}, err
		}
	} else {
		devices, err := e.resolveSelector(selector)
		if err != nil {
			return Value{}, fmt.Errorf("record output: %w", err)
		}
		device = devices[0]
	}

	if command == nil {
		result, ok := e.results[device]
		if !ok {
			return Value{}, &NoResultError{Device: device}
		}
		result = unwrapOutput(result)
		e.logger.Info("recorded output",
			"device", device,
			"output", result.String())
		return result, nil
	}

	req := &Req{Format: EncodingText}
	for _, mod := range mods {
		mod(req)
	}
	if err := ValidateEncoding(req.Format); err != nil {
		return Value{}, fmt.Errorf("record output: %w", err)
	}

	res, err := e.provider.Execute(ctx, device, command, req.Format)
	if err != nil {
		return Value{}, annotateCommandError(err, device, command)
	}

	var result Value
	if req.Format == EncodingText {
		result = StringValue(res.Text())
	} else {
		result = unwrapOutput(DecodeJSON(gjson.Parse(res.Raw)))
	}

	e.logger.Info("recorded output",
		"device", device,
		"command", commandDisplay(command),
		"output", result.String())
	return result, nil
}

// unwrapOutput strips the {"output": ...} envelope that text-encoded
// replies carry, leaving other values untouched
func unwrapOutput(v Value) Value {
	if v.kind == KindMapping {
		if out, ok := v.mapping["output"]; ok {
			return out
		}
	}
	return v
}
