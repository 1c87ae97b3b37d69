package module

import (
	"context"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

// BridgeFunc issues a cross-distributor call on behalf of a module. The
// transport behind it is picked by the runtime; modules never assemble one.
type BridgeFunc func(ctx context.Context, target, moduleCode, command string, args []any) (any, error)

// Emitter is a module's façade over the command registry, the event
// dispatcher, and the cross-distributor bridge. In-process calls are
// fire-and-return: a missing module, missing command, denied gate, or
// failing handler all surface as a nil result to the caller, with the
// cause logged.
type Emitter struct {
	moduleCode string
	commands   *CommandRegistry
	events     *EventDispatcher
	bridge     BridgeFunc
}

// NewEmitter creates a façade bound to the calling module.
func NewEmitter(moduleCode string, commands *CommandRegistry, events *EventDispatcher) *Emitter {
	return &Emitter{moduleCode: moduleCode, commands: commands, events: events}
}

// Call invokes another module's API command. The caller's module code is
// presented to the target's permission gate.
func (e *Emitter) Call(ctx context.Context, targetModule, command string, args ...any) any {
	result, err := e.commands.ExecuteAPI(ctx, e.moduleCode, targetModule, command, args)
	if err != nil {
		logging.Debug("API call failed",
			zap.String("caller", e.moduleCode),
			zap.String("module", targetModule),
			zap.String("command", command),
			zap.Error(err))
		return nil
	}
	return result
}

// Internal invokes one of the module's own "#" bound commands, skipping gates.
func (e *Emitter) Internal(ctx context.Context, command string, args ...any) any {
	result, err := e.commands.CallInternal(ctx, e.moduleCode, command, args)
	if err != nil {
		logging.Debug("Internal call failed",
			zap.String("module", e.moduleCode),
			zap.String("command", command),
			zap.Error(err))
		return nil
	}
	return result
}

// Bridge calls a module in another distributor, "code@tag". Like Call,
// failures flatten to a nil result for the in-process caller.
func (e *Emitter) Bridge(ctx context.Context, target, targetModule, command string, args ...any) any {
	if e.bridge == nil {
		logging.Warn("Bridge call without a configured transport",
			zap.String("caller", e.moduleCode),
			zap.String("target", target))
		return nil
	}
	result, err := e.bridge(ctx, target, targetModule, command, args)
	if err != nil {
		logging.Debug("Bridge call failed",
			zap.String("caller", e.moduleCode),
			zap.String("target", target),
			zap.String("module", targetModule),
			zap.String("command", command),
			zap.Error(err))
		return nil
	}
	return result
}

// Trigger fires one of the module's own events and returns the listeners'
// results in registration order.
func (e *Emitter) Trigger(event string, args ...any) []any {
	return e.events.Fire(e.moduleCode, event, args)
}
