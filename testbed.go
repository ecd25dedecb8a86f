// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eapi

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestbedDevice describes one device in a testbed inventory file
type TestbedDevice struct {
	Name      string `yaml:"name"`
	Host      string `yaml:"host"`
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Verify    *bool  `yaml:"verify"`
}

// Testbed is a device inventory loaded from YAML
//
// File format:
//
//	devices:
//	  - name: sw1
//	    host: 10.0.0.1
//	    username: admin
//	    password: Cisco123
//	  - name: sw2
//	    host: 10.0.0.2
//	    transport: http
//	    port: 8080
//	    verify: false
type Testbed struct {
	Devices []TestbedDevice `yaml:"devices"`
}

// LoadTestbed reads and validates a testbed inventory file
func LoadTestbed(path string) (*Testbed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load testbed: %w", err)
	}
	return ParseTestbed(data)
}

// ParseTestbed decodes and validates testbed YAML
//
// Unknown fields are rejected so misspelled keys fail loudly instead of
// silently connecting with defaults.
func ParseTestbed(data []byte) (*Testbed, error) {
	var tb Testbed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tb); err != nil {
		return nil, fmt.Errorf("parse testbed: %w", err)
	}

	if len(tb.Devices) == 0 {
		return nil, fmt.Errorf("parse testbed: no devices defined")
	}
	seen := map[string]bool{}
	for i, device := range tb.Devices {
		if device.Name == "" {
			return nil, fmt.Errorf("parse testbed: device %d has no name", i+1)
		}
		if device.Host == "" {
			return nil, fmt.Errorf("parse testbed: device %q has no host", device.Name)
		}
		if seen[device.Name] {
			return nil, fmt.Errorf("parse testbed: duplicate device name %q", device.Name)
		}
		seen[device.Name] = true
	}
	return &tb, nil
}

// ConnectTestbed connects every device of a testbed inventory
//
// Connections established before a failure are closed again, so the
// registry is left unchanged when any device cannot be reached.
func (r *Registry) ConnectTestbed(ctx context.Context, tb *Testbed) error {
	connected := make([]string, 0, len(tb.Devices))
	for _, device := range tb.Devices {
		opts := []func(*Client){}
		if device.Transport != "" {
			opts = append(opts, Transport(device.Transport))
		}
		if device.Port != 0 {
			opts = append(opts, Port(device.Port))
		}
		if device.Username != "" {
			opts = append(opts, Username(device.Username))
		}
		if device.Password != "" {
			opts = append(opts, Password(device.Password))
		}
		if device.Verify != nil {
			opts = append(opts, VerifyCertificate(*device.Verify))
		}

		if _, err := r.ConnectTo(ctx, device.Name, device.Host, opts...); err != nil {
			for _, name := range connected {
				if d, getErr := r.Get(name); getErr == nil {
					d.Client.Close()
					delete(r.byName, name)
				}
			}
			r.devices = r.devices[:len(r.devices)-len(connected)]
			if len(r.devices) == 0 {
				r.current = -1
			} else {
				r.current = len(r.devices) - 1
			}
			return fmt.Errorf("connect testbed: %w", err)
		}
		connected = append(connected, device.Name)
	}

	r.logger.Info("testbed connected",
		"devices", len(tb.Devices))
	return nil
}
