package module

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/razy-dev/razy/internal/luautil"
	"github.com/razy-dev/razy/internal/routing"
)

// Closure is a route handler body. args carries the pattern's captured
// groups in declaration order.
type Closure func(w http.ResponseWriter, r *http.Request, args []string)

type closureKey struct {
	module string
	path   string
}

// ClosureLoader resolves route bindings to executable handlers: Go closures
// registered by controllers during init, and Lua scripts resolved under the
// owning module's root at invocation time.
type ClosureLoader struct {
	mu       sync.RWMutex
	closures map[closureKey]Closure
	roots    map[string]string
	scripts  *luautil.Cache
}

// NewClosureLoader creates an empty loader.
func NewClosureLoader() *ClosureLoader {
	return &ClosureLoader{
		closures: make(map[closureKey]Closure),
		roots:    make(map[string]string),
		scripts:  luautil.NewCache(luautil.DefaultCacheSize),
	}
}

// Register binds a closure to (module, path). Duplicate registration fails.
func (l *ClosureLoader) Register(moduleCode, closurePath string, fn Closure) error {
	if fn == nil {
		return fmt.Errorf("closure %s %s: nil handler", moduleCode, closurePath)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := closureKey{module: moduleCode, path: closurePath}
	if _, exists := l.closures[key]; exists {
		return fmt.Errorf("closure %s %s: already registered", moduleCode, closurePath)
	}
	l.closures[key] = fn
	return nil
}

// SetRoot records a module's filesystem root for script resolution.
func (l *ClosureLoader) SetRoot(moduleCode, root string) {
	l.mu.Lock()
	l.roots[moduleCode] = root
	l.mu.Unlock()
}

// Closure returns the registered closure for (module, path).
func (l *ClosureLoader) Closure(moduleCode, closurePath string) (Closure, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn, ok := l.closures[closureKey{module: moduleCode, path: closurePath}]
	return fn, ok
}

// Invoke runs the handler for a resolved binding. Shadow bindings must be
// rebound to their target before reaching the loader.
func (l *ClosureLoader) Invoke(w http.ResponseWriter, r *http.Request, b *routing.Binding, args []string) error {
	if b.Type == routing.TypeShadow {
		return fmt.Errorf("invoke %s %s: unresolved shadow binding", b.ModuleCode, b.ClosurePath)
	}
	if b.Type == routing.TypeScript {
		return l.runScript(w, r, b, args)
	}

	fn, ok := l.Closure(b.ModuleCode, b.ClosurePath)
	if !ok {
		return fmt.Errorf("invoke %s %s: no closure registered", b.ModuleCode, b.ClosurePath)
	}
	fn(w, r, args)
	return nil
}

// runScript executes a Lua handler. The script sees `method`, `path`, and
// `args` globals; it reports back through a `body` string global and an
// optional numeric `status` global (default 200).
func (l *ClosureLoader) runScript(w http.ResponseWriter, r *http.Request, b *routing.Binding, args []string) error {
	l.mu.RLock()
	root := l.roots[b.ModuleCode]
	l.mu.RUnlock()
	if root == "" {
		return fmt.Errorf("script %s %s: module has no root path", b.ModuleCode, b.ClosurePath)
	}

	script := filepath.Join(root, filepath.FromSlash(b.ClosurePath))
	rel, err := filepath.Rel(root, script)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("script %s %s: path escapes module root", b.ModuleCode, b.ClosurePath)
	}

	proto, err := l.scripts.LoadFile(script)
	if err != nil {
		return fmt.Errorf("script %s %s: %w", b.ModuleCode, b.ClosurePath, err)
	}

	L := lua.NewState()
	defer L.Close()
	L.SetContext(r.Context())
	luautil.RegisterAll(L)

	L.SetGlobal("method", lua.LString(r.Method))
	L.SetGlobal("path", lua.LString(r.URL.Path))
	argTable := L.NewTable()
	for _, a := range args {
		argTable.Append(lua.LString(a))
	}
	L.SetGlobal("args", argTable)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("script %s %s: %w", b.ModuleCode, b.ClosurePath, err)
	}

	status := http.StatusOK
	if v, ok := L.GetGlobal("status").(lua.LNumber); ok {
		status = int(v)
	}
	body := ""
	if v, ok := L.GetGlobal("body").(lua.LString); ok {
		body = string(v)
	}

	w.WriteHeader(status)
	if body != "" {
		if _, err := w.Write([]byte(body)); err != nil {
			return err
		}
	}
	return nil
}
