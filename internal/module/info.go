// Package module implements the unit of deployment inside a distributor:
// controller lifecycle, handler loading, cross-module commands, and events.
package module

import (
	"context"
	"fmt"
	"strings"
)

// Info identifies a loaded module. Immutable after boot.
type Info struct {
	Code        string // "vendor/name"
	Version     string
	Distributor string // "code@tag" of the owning runtime
	Alias       string // URL mount prefix for lazy routes
	RootPath    string // filesystem root for script handlers
}

// ParseCode validates the "vendor/name" form and returns its halves.
func ParseCode(code string) (vendor, name string, err error) {
	vendor, name, ok := strings.Cut(code, "/")
	if !ok || vendor == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("module code %q: want vendor/name", code)
	}
	return vendor, name, nil
}

// CommandFunc handles one cross-module command invocation.
type CommandFunc func(ctx context.Context, args []any) (any, error)

// Controller is the entry point a module implements. OnInit runs during the
// distributor's init phase and is where the controller registers routes,
// commands, and event listeners.
type Controller interface {
	OnInit(reg *Registrar) error
}

// LoadHook runs after every module's OnInit has completed.
type LoadHook interface {
	OnLoad() error
}

// ReadyHook runs after the route table is frozen, before the first request.
type ReadyHook interface {
	OnReady() error
}

// APIGate lets a controller veto in-process command calls from other modules.
// caller is the calling module's code; returning false denies the call.
type APIGate interface {
	OnAPICall(caller, command string) bool
}

// BridgeGate lets a controller veto cross-distributor command calls.
// source is the calling distributor's "code@tag" id.
type BridgeGate interface {
	OnBridgeCall(source, command string) bool
}

// CommandHandler intercepts command dispatch before registered functions.
// Returning handled=false falls through to the registered command.
type CommandHandler interface {
	HandleCommand(ctx context.Context, command string, args []any) (result any, handled bool, err error)
}

// ErrorHook observes command handler failures.
type ErrorHook interface {
	OnError(command string, err error)
}
