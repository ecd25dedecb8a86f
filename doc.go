// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package eapi provides a test-automation library for network switches that
// expose a JSON-RPC command API (eAPI). It combines a thin HTTP JSON-RPC
// client, a suite-scoped connection registry, and an Expect engine that
// validates command output with a human-readable match vocabulary.
//
// # Quick Start
//
// Create a client and run commands:
//
//	client, err := eapi.NewClient(
//	    "192.168.1.1",
//	    eapi.Username("admin"),
//	    eapi.Password("secret"),
//	    eapi.Transport("https"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	res, err := client.Enable(ctx, "show version")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Parse response using gjson paths
//	version := res.GetValue("version").String()
//	fmt.Println("Version:", version)
//
// # Validating Command Output
//
// The Expect engine caches the last command result per device and asserts
// on values inside it. Key paths are whitespace-delimited lookups into the
// structured result:
//
//	reg := eapi.NewRegistry()
//	reg.ConnectTo(ctx, "sw1", "192.168.1.1", eapi.Username("admin"), eapi.Password("secret"))
//
//	eng := eapi.NewEngine(reg, eapi.DefaultCommand("show interfaces"))
//	eng.GetCommandOutput(ctx, "", nil)
//
//	err = eng.Expect("interfaces Ethernet1 autoNegotiate", "is", "unknown")
//	err = eng.Expect("interfaces Ethernet1 interfaceStatus", "is not", "disconnected")
//
// Configuration dumps are treated as line-oriented output and addressed
// with the reserved key "config":
//
//	eng.GetCommandOutput(ctx, "", "show running-config all")
//	err = eng.Expect("config", "to contain line", "ip routing")
//
// # JSON Manipulation
//
// Use the Body builder for constructing structured command payloads:
//
//	cmd, err := eapi.Body{}.
//	    Set("cmd", "show interfaces").
//	    Set("revision", 2).
//	    Map()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err = client.Enable(ctx, cmd)
//
// # Error Handling
//
// The client automatically retries transient transport errors with
// exponential backoff:
//
//	client, err := eapi.NewClient(
//	    "192.168.1.1",
//	    eapi.Username("admin"),
//	    eapi.Password("secret"),
//	    eapi.MaxRetries(5),
//	    eapi.BackoffMinDelay(1*time.Second),
//	    eapi.BackoffMaxDelay(60*time.Second),
//	)
//
// Command rejections are never retried and surface as *CommandError.
// Assertion outcomes are typed: *AssertionError for a failed match,
// *UnimplementedMatchError for an unknown match phrase, *PathError for an
// unresolvable key path, *NoResultError when no output has been fetched.
//
// # Concurrency
//
// Registry and Engine hold suite-local state (the active device and the
// per-device result cache) and are not safe for concurrent suites. Give
// each test suite its own Registry and Engine. Client methods are safe for
// sequential use from a single suite.
//
// # References
//
//   - Arista eAPI: https://www.arista.com/en/support/toi/eos-4-12-0/13365-eapi
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
package eapi
