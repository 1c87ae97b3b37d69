package module

import (
	"github.com/razy-dev/razy/internal/routing"
)

// Registrar is the registration surface handed to a controller's OnInit. It
// scopes route, command, and event registration to the owning module.
type Registrar struct {
	info     Info
	table    *routing.Table
	loader   *ClosureLoader
	commands *CommandRegistry
	events   *EventDispatcher
	bridge   BridgeFunc
}

// NewRegistrar creates a registrar scoped to one module. bridge may be nil
// when the runtime has no cross-distributor transport configured.
func NewRegistrar(info Info, table *routing.Table, loader *ClosureLoader, commands *CommandRegistry, events *EventDispatcher, bridge BridgeFunc) *Registrar {
	if info.RootPath != "" {
		loader.SetRoot(info.Code, info.RootPath)
	}
	return &Registrar{
		info:     info,
		table:    table,
		loader:   loader,
		commands: commands,
		events:   events,
		bridge:   bridge,
	}
}

// Info returns the module's identity.
func (r *Registrar) Info() Info { return r.info }

// Route registers a closure under closurePath and binds it to a route.
func (r *Registrar) Route(method, pattern, closurePath string, fn Closure) error {
	if err := r.loader.Register(r.info.Code, closurePath, fn); err != nil {
		return err
	}
	return r.table.Add(method, pattern, r.info.Code, closurePath)
}

// ScriptRoute binds a route to a Lua script under the module root.
func (r *Registrar) ScriptRoute(method, pattern, scriptPath string) error {
	return r.table.AddScript(method, pattern, r.info.Code, scriptPath)
}

// ShadowRoute delegates a pattern to another module's handler. An empty
// target path reuses the pattern itself.
func (r *Registrar) ShadowRoute(pattern, targetModule, targetClosurePath string) error {
	return r.table.AddShadow(pattern, targetModule, targetClosurePath)
}

// LazyRoutes mounts a route tree under the module's alias. Leaf values name
// closure paths; "@self" binds the mount prefix itself.
func (r *Registrar) LazyRoutes(tree map[string]any) error {
	return r.table.AddLazy(tree, r.info.Code, r.info.Alias)
}

// RouteMiddleware attaches named route-level middleware to a bound route.
func (r *Registrar) RouteMiddleware(method, pattern string, names ...string) bool {
	return r.table.SetMiddleware(method, pattern, names...)
}

// Closure registers a closure without binding a route, for shadow targets
// and command handlers resolved by path.
func (r *Registrar) Closure(closurePath string, fn Closure) error {
	return r.loader.Register(r.info.Code, closurePath, fn)
}

// API registers an in-process command. A "#" prefix also binds it internally.
func (r *Registrar) API(command string, fn CommandFunc) error {
	return r.commands.RegisterAPI(r.info.Code, command, fn)
}

// Bridge registers a command callable from other distributors.
func (r *Registrar) Bridge(command string, fn CommandFunc) error {
	return r.commands.RegisterBridge(r.info.Code, command, fn)
}

// Listen subscribes the module to "vendor/module:event".
func (r *Registrar) Listen(ref string, handler EventHandler) error {
	return r.events.Listen(r.info.Code, ref, handler)
}

// Emitter returns the module's command/event/bridge façade.
func (r *Registrar) Emitter() *Emitter {
	em := NewEmitter(r.info.Code, r.commands, r.events)
	em.bridge = r.bridge
	return em
}
