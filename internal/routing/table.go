package routing

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	razyerr "github.com/razy-dev/razy/internal/errors"
)

// RouteType classifies a binding.
type RouteType string

const (
	TypeStandard RouteType = "standard"
	TypeLazy     RouteType = "lazy"
	TypeScript   RouteType = "script"
	TypeShadow   RouteType = "shadow"
)

// ShadowTarget rebinds a matched request to another module's handler.
type ShadowTarget struct {
	Module      string
	ClosurePath string
}

// Binding is one registered route.
type Binding struct {
	Pattern     *Pattern
	Method      string // uppercase, or "*"
	ModuleCode  string
	ClosurePath string
	Type        RouteType
	Shadow      *ShadowTarget
	Middleware  []string // route-level middleware names, appended after globals

	regIdx int
}

// MethodWildcard matches any HTTP method but loses to a same-pattern binding
// with an exact method.
const MethodWildcard = "*"

var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true, MethodWildcard: true,
}

// group holds all bindings sharing one pattern text. Candidate selection
// within a group prefers the exact method over the wildcard.
type group struct {
	pattern  *Pattern
	exact    map[string]*Binding
	wildcard *Binding
	regIdx   int
}

// Table is a per-distributor route index. Registration happens during module
// init; Freeze is called when the distributor enters its request-serving
// phase, after which Add fails.
type Table struct {
	mu     sync.RWMutex
	groups map[string]*group
	sorted []*group // by specificity desc, registration order asc
	frozen bool
	nextIdx int
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{groups: make(map[string]*group)}
}

// Match is a successful lookup.
type Match struct {
	Binding *Binding
	Args    []string
}

// Add registers an absolute route.
func (t *Table) Add(method, pattern, moduleCode, closurePath string) error {
	return t.add(&rawRoute{
		method:      method,
		pattern:     pattern,
		moduleCode:  moduleCode,
		closurePath: closurePath,
		typ:         TypeStandard,
	})
}

// AddScript registers a script-type route whose closure path names a script
// file resolved by the closure loader.
func (t *Table) AddScript(method, pattern, moduleCode, scriptPath string) error {
	return t.add(&rawRoute{
		method:      method,
		pattern:     pattern,
		moduleCode:  moduleCode,
		closurePath: scriptPath,
		typ:         TypeScript,
	})
}

// AddShadow registers a shadow route: matching requests are rebound to the
// target module's handler. An empty targetClosurePath reuses the pattern as
// the target path.
func (t *Table) AddShadow(pattern, targetModule, targetClosurePath string) error {
	if targetClosurePath == "" {
		targetClosurePath = pattern
	}
	return t.add(&rawRoute{
		method:      MethodWildcard,
		pattern:     pattern,
		moduleCode:  targetModule,
		closurePath: "",
		typ:         TypeShadow,
		shadow:      &ShadowTarget{Module: targetModule, ClosurePath: targetClosurePath},
	})
}

// AddLazy expands a nested route tree under the module's alias prefix. Map
// values are closure paths (string) or nested trees (map[string]any); the
// special key "@self" binds the parent segment itself. Lazy entries match
// any method.
func (t *Table) AddLazy(tree map[string]any, moduleCode, alias string) error {
	prefix := "/" + strings.Trim(alias, "/")
	return t.addLazyLevel(tree, moduleCode, prefix)
}

func (t *Table) addLazyLevel(tree map[string]any, moduleCode, prefix string) error {
	// Deterministic expansion order so registration tiebreaks are stable.
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := tree[key].(type) {
		case string:
			pattern := prefix + "/" + strings.Trim(key, "/")
			if key == "@self" {
				pattern = prefix
			}
			err := t.add(&rawRoute{
				method:      MethodWildcard,
				pattern:     pattern,
				moduleCode:  moduleCode,
				closurePath: v,
				typ:         TypeLazy,
			})
			if err != nil {
				return err
			}
		case map[string]any:
			if err := t.addLazyLevel(v, moduleCode, prefix+"/"+strings.Trim(key, "/")); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: lazy entry %q has unsupported value type %T",
				razyerr.ErrPatternSyntax, key, tree[key])
		}
	}
	return nil
}

type rawRoute struct {
	method      string
	pattern     string
	moduleCode  string
	closurePath string
	typ         RouteType
	shadow      *ShadowTarget
}

func (t *Table) add(r *rawRoute) error {
	method := strings.ToUpper(r.method)
	if !knownMethods[method] {
		return fmt.Errorf("%w: unknown method %q", razyerr.ErrPatternSyntax, r.method)
	}

	p, err := Compile(r.pattern)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return fmt.Errorf("route table frozen: cannot register %s %s", method, r.pattern)
	}

	g, ok := t.groups[r.pattern]
	if !ok {
		g = &group{
			pattern: p,
			exact:   make(map[string]*Binding),
			regIdx:  t.nextIdx,
		}
		t.groups[r.pattern] = g
		t.sorted = append(t.sorted, g)
		sort.SliceStable(t.sorted, func(i, j int) bool {
			si, sj := t.sorted[i].pattern.Specificity(), t.sorted[j].pattern.Specificity()
			if si != sj {
				return si > sj
			}
			return t.sorted[i].regIdx < t.sorted[j].regIdx
		})
	}

	b := &Binding{
		Pattern:     p,
		Method:      method,
		ModuleCode:  r.moduleCode,
		ClosurePath: r.closurePath,
		Type:        r.typ,
		Shadow:      r.shadow,
		regIdx:      t.nextIdx,
	}

	if method == MethodWildcard {
		if g.wildcard != nil {
			return fmt.Errorf("%w: * %s", razyerr.ErrRouteConflict, r.pattern)
		}
		g.wildcard = b
	} else {
		if _, dup := g.exact[method]; dup {
			return fmt.Errorf("%w: %s %s", razyerr.ErrRouteConflict, method, r.pattern)
		}
		g.exact[method] = b
	}
	t.nextIdx++
	return nil
}

// SetMiddleware attaches route-level middleware names to the binding for
// (method, pattern). Returns false if no such binding exists.
func (t *Table) SetMiddleware(method, pattern string, names ...string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[pattern]
	if !ok {
		return false
	}
	method = strings.ToUpper(method)
	if method == MethodWildcard {
		if g.wildcard == nil {
			return false
		}
		g.wildcard.Middleware = append(g.wildcard.Middleware, names...)
		return true
	}
	b, ok := g.exact[method]
	if !ok {
		return false
	}
	b.Middleware = append(b.Middleware, names...)
	return true
}

// Freeze locks the table against further registration.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Match finds the binding for (method, path). Groups are scanned in
// specificity order; within a matching group the exact method wins over the
// wildcard. A group that matches the path but not the method does not stop
// the scan.
func (t *Table) Match(method, path string) (*Match, bool) {
	method = strings.ToUpper(method)

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, g := range t.sorted {
		args, ok := g.pattern.Match(path)
		if !ok {
			continue
		}
		if b, ok := g.exact[method]; ok {
			return &Match{Binding: b, Args: args}, true
		}
		if g.wildcard != nil {
			return &Match{Binding: g.wildcard, Args: args}, true
		}
	}
	return nil, false
}

// Len returns the number of registered bindings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, g := range t.groups {
		n += len(g.exact)
		if g.wildcard != nil {
			n++
		}
	}
	return n
}

// Bindings returns all bindings in registration order.
func (t *Table) Bindings() []*Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Binding, 0, t.nextIdx)
	for _, g := range t.groups {
		for _, b := range g.exact {
			out = append(out, b)
		}
		if g.wildcard != nil {
			out = append(out, g.wildcard)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].regIdx < out[j].regIdx })
	return out
}
