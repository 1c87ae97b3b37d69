package module

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Dispatch sentinels. The bridge server maps these onto wire error codes;
// the in-process Emitter flattens them to a nil result.
var (
	ErrModuleNotFound  = errors.New("module not found")
	ErrCommandNotFound = errors.New("command not found")
	ErrAccessDenied    = errors.New("access denied")
)

// InternalPrefix marks a command as internally bound at registration time.
const InternalPrefix = "#"

type commandTable struct {
	api      map[string]CommandFunc
	bridge   map[string]CommandFunc
	internal map[string]CommandFunc
}

func newCommandTable() *commandTable {
	return &commandTable{
		api:      make(map[string]CommandFunc),
		bridge:   make(map[string]CommandFunc),
		internal: make(map[string]CommandFunc),
	}
}

// CommandRegistry holds the per-module API and bridge command tables of one
// distributor, together with the controllers that gate them.
type CommandRegistry struct {
	mu          sync.RWMutex
	tables      map[string]*commandTable
	controllers map[string]Controller
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		tables:      make(map[string]*commandTable),
		controllers: make(map[string]Controller),
	}
}

// SetController binds a module's controller for gates and dispatch hooks.
func (cr *CommandRegistry) SetController(moduleCode string, ctrl Controller) {
	cr.mu.Lock()
	cr.controllers[moduleCode] = ctrl
	if _, ok := cr.tables[moduleCode]; !ok {
		cr.tables[moduleCode] = newCommandTable()
	}
	cr.mu.Unlock()
}

func (cr *CommandRegistry) table(moduleCode string) *commandTable {
	if t, ok := cr.tables[moduleCode]; ok {
		return t
	}
	t := newCommandTable()
	cr.tables[moduleCode] = t
	return t
}

// RegisterAPI adds an API command. A "#" prefix strips off and additionally
// binds the command into the module's internal table, callable by the owning
// controller without gates.
func (cr *CommandRegistry) RegisterAPI(moduleCode, command string, fn CommandFunc) error {
	internal := strings.HasPrefix(command, InternalPrefix)
	if internal {
		command = strings.TrimPrefix(command, InternalPrefix)
	}
	if command == "" || fn == nil {
		return fmt.Errorf("api command %s %q: empty name or nil handler", moduleCode, command)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	t := cr.table(moduleCode)
	if _, exists := t.api[command]; exists {
		return fmt.Errorf("api command %s %q: already registered", moduleCode, command)
	}
	t.api[command] = fn
	if internal {
		t.internal[command] = fn
	}
	return nil
}

// RegisterBridge adds a bridge command, callable from other distributors.
func (cr *CommandRegistry) RegisterBridge(moduleCode, command string, fn CommandFunc) error {
	if command == "" || fn == nil {
		return fmt.Errorf("bridge command %s %q: empty name or nil handler", moduleCode, command)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	t := cr.table(moduleCode)
	if _, exists := t.bridge[command]; exists {
		return fmt.Errorf("bridge command %s %q: already registered", moduleCode, command)
	}
	t.bridge[command] = fn
	return nil
}

// InternallyBound reports whether the command was registered with "#".
func (cr *CommandRegistry) InternallyBound(moduleCode, command string) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	t, ok := cr.tables[moduleCode]
	if !ok {
		return false
	}
	_, ok = t.internal[command]
	return ok
}

// ExecuteAPI dispatches an in-process command call from caller (a module
// code) against moduleCode. The target controller's CommandHandler, when
// implemented, takes precedence over the registered function.
func (cr *CommandRegistry) ExecuteAPI(ctx context.Context, caller, moduleCode, command string, args []any) (any, error) {
	cr.mu.RLock()
	t, ok := cr.tables[moduleCode]
	ctrl := cr.controllers[moduleCode]
	cr.mu.RUnlock()
	if !ok {
		return nil, ErrModuleNotFound
	}

	if gate, ok := ctrl.(APIGate); ok && !gate.OnAPICall(caller, command) {
		return nil, ErrAccessDenied
	}

	return cr.dispatch(ctx, ctrl, t.api, command, args)
}

// ExecuteBridge dispatches a cross-distributor command call. source is the
// calling distributor's "code@tag" id.
func (cr *CommandRegistry) ExecuteBridge(ctx context.Context, source, moduleCode, command string, args []any) (any, error) {
	cr.mu.RLock()
	t, ok := cr.tables[moduleCode]
	ctrl := cr.controllers[moduleCode]
	cr.mu.RUnlock()
	if !ok {
		return nil, ErrModuleNotFound
	}

	if gate, ok := ctrl.(BridgeGate); ok && !gate.OnBridgeCall(source, command) {
		return nil, ErrAccessDenied
	}

	return cr.dispatch(ctx, ctrl, t.bridge, command, args)
}

// CallInternal invokes one of the module's own "#" bound commands, skipping
// gates. Only the owning controller should use this path.
func (cr *CommandRegistry) CallInternal(ctx context.Context, moduleCode, command string, args []any) (any, error) {
	cr.mu.RLock()
	t, ok := cr.tables[moduleCode]
	ctrl := cr.controllers[moduleCode]
	cr.mu.RUnlock()
	if !ok {
		return nil, ErrModuleNotFound
	}

	return cr.dispatch(ctx, ctrl, t.internal, command, args)
}

func (cr *CommandRegistry) dispatch(ctx context.Context, ctrl Controller, table map[string]CommandFunc, command string, args []any) (any, error) {
	if ch, ok := ctrl.(CommandHandler); ok {
		result, handled, err := ch.HandleCommand(ctx, command, args)
		if handled {
			if err != nil {
				cr.notifyError(ctrl, command, err)
				return nil, err
			}
			return result, nil
		}
	}

	fn, ok := table[command]
	if !ok {
		return nil, ErrCommandNotFound
	}

	result, err := fn(ctx, args)
	if err != nil {
		cr.notifyError(ctrl, command, err)
		return nil, err
	}
	return result, nil
}

func (cr *CommandRegistry) notifyError(ctrl Controller, command string, err error) {
	if hook, ok := ctrl.(ErrorHook); ok {
		hook.OnError(command, err)
	}
}
