// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Device is one registered switch connection
type Device struct {
	// Name is the registry name of the device
	Name string

	// Client is the underlying eAPI client
	Client *Client

	// Model is the device model reported at connect time
	Model string

	// Serial is the device serial number reported at connect time
	Serial string

	// Version is the software version reported at connect time
	Version string
}

// Registry holds named device connections and tracks the active device
//
// The active-device index is the registry's only mutable state beyond the
// connection list itself. A Registry is scoped to one test suite and is not
// safe for concurrent use. It implements CommandProvider, so it plugs
// directly into an Engine.
type Registry struct {
	logger  Logger
	devices []*Device
	byName  map[string]*Device
	current int
}

// NewRegistry creates an empty device registry
//
// Example:
//
//	registry := eapi.NewRegistry()
//	_, err := registry.ConnectTo(ctx, "sw1", "10.0.0.1",
//	    eapi.Username("admin"), eapi.Password("Cisco123"))
func NewRegistry(opts ...func(*Registry)) *Registry {
	r := &Registry{
		logger:  &NoOpLogger{},
		byName:  map[string]*Device{},
		current: -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegistryLogger sets the logger used by the Registry
func RegistryLogger(logger Logger) func(*Registry) {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// ConnectTo builds a client for target, verifies the device responds to
// "show version", and registers the connection under name
//
// The new device becomes the active device. Connection options are the
// Client's functional options.
func (r *Registry) ConnectTo(ctx context.Context, name, target string, opts ...func(*Client)) (*Device, error) {
	if name == "" {
		return nil, fmt.Errorf("connect to: device name cannot be empty")
	}
	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("connect to: device %q is already registered", name)
	}

	client, err := NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}

	res, err := client.Enable(ctx, "show version")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}

	device := &Device{
		Name:    name,
		Client:  client,
		Model:   res.GetValue("modelName").String(),
		Serial:  res.GetValue("serialNumber").String(),
		Version: res.GetValue("version").String(),
	}

	r.devices = append(r.devices, device)
	r.byName[name] = device
	r.current = len(r.devices) - 1

	r.logger.Info("connected to device",
		"name", name,
		"target", target,
		"model", device.Model,
		"serial", device.Serial,
		"version", device.Version)

	return device, nil
}

// ChangeTo makes a registered device the active device
//
// The selector is a device name or a 1-based registration index.
func (r *Registry) ChangeTo(selector string) (*Device, error) {
	if device, ok := r.byName[selector]; ok {
		for i, d := range r.devices {
			if d == device {
				r.current = i
				break
			}
		}
		r.logger.Debug("active device changed",
			"name", device.Name)
		return device, nil
	}
	if index, err := strconv.Atoi(selector); err == nil {
		if index < 1 || index > len(r.devices) {
			return nil, fmt.Errorf("change to: index %d out of range, %d device(s) registered", index, len(r.devices))
		}
		r.current = index - 1
		device := r.devices[r.current]
		r.logger.Debug("active device changed",
			"name", device.Name)
		return device, nil
	}
	return nil, fmt.Errorf("change to: unknown device %q", selector)
}

// Current returns the active device
func (r *Registry) Current() (*Device, error) {
	if r.current < 0 || r.current >= len(r.devices) {
		return nil, errors.New("no device connected")
	}
	return r.devices[r.current], nil
}

// Get returns a registered device by name
func (r *Registry) Get(name string) (*Device, error) {
	device, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", name)
	}
	return device, nil
}

// CloseAll closes every registered connection and empties the registry
func (r *Registry) CloseAll() {
	for _, device := range r.devices {
		device.Client.Close()
	}
	r.devices = nil
	r.byName = map[string]*Device{}
	r.current = -1

	r.logger.Debug("all device connections closed")
}

// VersionShouldContain checks the active device's software version against
// a regular expression
func (r *Registry) VersionShouldContain(want string) error {
	device, err := r.Current()
	if err != nil {
		return err
	}
	re, err := regexp.Compile(want)
	if err != nil {
		return fmt.Errorf("version should contain: invalid pattern %q: %w", want, err)
	}
	if !re.MatchString(device.Version) {
		return fmt.Errorf("version %q of device %s does not contain %q", device.Version, device.Name, want)
	}
	return nil
}

// CurrentDevice implements CommandProvider
func (r *Registry) CurrentDevice() (string, error) {
	device, err := r.Current()
	if err != nil {
		return "", err
	}
	return device.Name, nil
}

// Devices implements CommandProvider, returning device names in
// registration order
func (r *Registry) Devices() []string {
	names := make([]string, 0, len(r.devices))
	for _, device := range r.devices {
		names = append(names, device.Name)
	}
	return names
}

// Execute implements CommandProvider, running one command on a named device
func (r *Registry) Execute(ctx context.Context, device string, command any, encoding string) (CommandRes, error) {
	d, err := r.Get(device)
	if err != nil {
		return CommandRes{}, err
	}
	res, err := d.Client.Enable(ctx, command, Format(encoding))
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			cmdErr.Device = device
		}
		return res, err
	}
	return res, nil
}

// RunningConfig implements CommandProvider. The client's cached copy is
// discarded first so every fetch reflects the current device state.
func (r *Registry) RunningConfig(ctx context.Context, device string) (string, error) {
	d, err := r.Get(device)
	if err != nil {
		return "", err
	}
	d.Client.Refresh()
	return d.Client.RunningConfig(ctx)
}

// StartupConfig implements CommandProvider. The client's cached copy is
// discarded first so every fetch reflects the current device state.
func (r *Registry) StartupConfig(ctx context.Context, device string) (string, error) {
	d, err := r.Get(device)
	if err != nil {
		return "", err
	}
	d.Client.Refresh()
	return d.Client.StartupConfig(ctx)
}
