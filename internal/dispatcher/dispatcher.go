package dispatcher

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/bridge"
	"github.com/razy-dev/razy/internal/distributor"
	"github.com/razy-dev/razy/internal/errors"
	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/metrics"
	"github.com/razy-dev/razy/internal/middleware"
	"github.com/razy-dev/razy/internal/routing"
	"github.com/razy-dev/razy/internal/session"
)

// Dispatcher routes inbound requests to distributor route tables and runs
// the middleware pipeline around handler invocation.
type Dispatcher struct {
	sites atomic.Pointer[SiteTable]

	mu           sync.RWMutex
	distributors map[string]*distributor.Distributor
	bridges      map[string]bridgeEndpoint
	fallbacks    map[string]string
	named        map[string]middleware.Middleware
	global       []middleware.Middleware

	sessions *session.Manager
	metrics  *metrics.Metrics
}

// New creates a dispatcher. sessions may be nil when the session middleware
// is not in the global chain; metrics may be nil to disable instrumentation.
func New(sessions *session.Manager, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		distributors: make(map[string]*distributor.Distributor),
		bridges:      make(map[string]bridgeEndpoint),
		fallbacks:    make(map[string]string),
		named:        make(map[string]middleware.Middleware),
		sessions:     sessions,
		metrics:      m,
	}
	d.sites.Store(NewSiteTable(nil, nil))
	return d
}

// SetSites swaps in a new site table. Safe under concurrent dispatch.
func (d *Dispatcher) SetSites(t *SiteTable) {
	d.sites.Store(t)
}

// bridgeEndpoint is a distributor's inbound bridge surface.
type bridgeEndpoint struct {
	path    string
	handler http.Handler
}

// AddDistributor registers a booted distributor. Its bridge endpoint stays
// closed until EnableBridge.
func (d *Dispatcher) AddDistributor(dist *distributor.Distributor) {
	d.mu.Lock()
	d.distributors[dist.ID().String()] = dist
	d.mu.Unlock()
}

// EnableBridge opens the distributor's inbound bridge endpoint at path. An
// empty path uses the default.
func (d *Dispatcher) EnableBridge(dist *distributor.Distributor, path string) {
	if path == "" {
		path = bridge.DefaultPath
	}
	h := bridge.NewHandler(dist)
	if d.metrics != nil {
		h.Record(func(code string) { d.metrics.RecordBridgeCall("http", code) })
	}
	d.mu.Lock()
	d.bridges[dist.ID().String()] = bridgeEndpoint{path: path, handler: h}
	d.mu.Unlock()
}

// SetFallback forwards route misses on one distributor to another.
func (d *Dispatcher) SetFallback(distID, fallbackID string) {
	d.mu.Lock()
	d.fallbacks[distID] = fallbackID
	d.mu.Unlock()
}

// Use appends global middleware, applied to every dispatched route.
func (d *Dispatcher) Use(mw ...middleware.Middleware) {
	d.mu.Lock()
	d.global = append(d.global, mw...)
	d.mu.Unlock()
}

// RegisterMiddleware names a middleware for route-level attachment.
func (d *Dispatcher) RegisterMiddleware(name string, mw middleware.Middleware) {
	d.mu.Lock()
	d.named[name] = mw
	d.mu.Unlock()
}

func (d *Dispatcher) distributor(id string) (*distributor.Distributor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dist, ok := d.distributors[id]
	return dist, ok
}

type shadowKey struct {
	module string
	path   string
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusRecorder{ResponseWriter: w}

	distID := d.dispatch(sw, r)

	if d.metrics != nil {
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		if distID == "" {
			distID = "unresolved"
		}
		d.metrics.RecordRequest(distID, r.Method, status, time.Since(start))
	}
}

// dispatch runs the request and returns the resolved distributor id, or ""
// when no site claimed the host.
func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request) string {
	distID, mount, ok := d.sites.Load().Resolve(r.Host, r.URL.Path)
	if !ok {
		errors.ErrNotFound.WriteJSON(w)
		return ""
	}
	contains := residualPath(mount, r.URL.Path)

	dist, ok := d.distributor(distID)
	if !ok {
		logging.Warn("Site resolves to unknown distributor",
			zap.String("host", r.Host),
			zap.String("distributor", distID))
		errors.ErrNotFound.WriteJSON(w)
		return distID
	}

	d.mu.RLock()
	be, bridged := d.bridges[distID]
	d.mu.RUnlock()
	if bridged && r.URL.Path == be.path {
		be.handler.ServeHTTP(w, r)
		return distID
	}

	match, ok := dist.Table().Match(r.Method, r.URL.Path)
	if !ok {
		d.mu.RLock()
		fallbackID := d.fallbacks[distID]
		d.mu.RUnlock()
		if fallbackID != "" {
			if fb, found := d.distributor(fallbackID); found {
				if m, matched := fb.Table().Match(r.Method, r.URL.Path); matched {
					d.run(w, r, fb, m, false, contains)
					return fallbackID
				}
			}
		}
		errors.ErrNotFound.WriteJSON(w)
		return distID
	}

	binding, rebound, err := d.resolveShadow(dist, r.Method, match.Binding)
	if err != nil {
		logging.Error("Shadow route cycle",
			zap.String("distributor", distID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if d.metrics != nil {
			d.metrics.RecordShadowCycle()
		}
		errors.ErrShadowCycle.WriteJSON(w)
		return distID
	}

	d.run(w, r, dist, &routing.Match{Binding: binding, Args: match.Args}, rebound, contains)
	return distID
}

// residualPath returns the request path under a non-root site mount, so a
// handler mounted at "/admin" can see "/users" for "/admin/users".
func residualPath(mount, path string) string {
	if mount == "" || mount == "/" {
		return ""
	}
	rest := strings.TrimPrefix(path, mount)
	if rest == "" {
		return "/"
	}
	return rest
}

// resolveShadow follows shadow bindings to a concrete handler, guarding
// against cycles with a per-request visited set.
func (d *Dispatcher) resolveShadow(dist *distributor.Distributor, method string, b *routing.Binding) (*routing.Binding, bool, error) {
	if b.Type != routing.TypeShadow {
		return b, false, nil
	}

	visited := make(map[shadowKey]bool)
	current := b
	for current.Type == routing.TypeShadow {
		target := current.Shadow
		key := shadowKey{module: target.Module, path: target.ClosurePath}
		if visited[key] {
			return nil, true, errors.ErrRouteCycle
		}
		visited[key] = true

		// The target path may itself be a bound route (possibly another
		// shadow). Unbound targets invoke the module's closure directly; a
		// self-match means the default target path hit the shadow again.
		if m, ok := dist.Table().Match(method, target.ClosurePath); ok && m.Binding != current {
			current = m.Binding
			continue
		}
		return &routing.Binding{
			Method:      current.Method,
			ModuleCode:  target.Module,
			ClosurePath: target.ClosurePath,
			Type:        routing.TypeStandard,
		}, true, nil
	}
	return current, true, nil
}

// run builds the request state, assembles the middleware chain, and invokes
// the final handler.
func (d *Dispatcher) run(w http.ResponseWriter, r *http.Request, dist *distributor.Distributor, match *routing.Match, isShadow bool, contains string) {
	b := match.Binding
	state := &middleware.State{
		Query:       r.URL.Query(),
		Route:       b,
		Module:      b.ModuleCode,
		ClosurePath: b.ClosurePath,
		Arguments:   match.Args,
		Method:      r.Method,
		Type:        b.Type,
		IsShadow:    isShadow,
		Contains:    contains,
		Distributor: dist.ID().String(),
	}
	r = middleware.WithState(r, state)

	d.mu.RLock()
	chain := middleware.NewChain(d.global...)
	for _, name := range b.Middleware {
		mw, ok := d.named[name]
		if !ok {
			logging.Warn("Route names unknown middleware",
				zap.String("module", b.ModuleCode),
				zap.String("middleware", name))
			continue
		}
		chain = chain.Append(mw)
	}
	d.mu.RUnlock()

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := dist.Loader().Invoke(w, r, b, match.Args); err != nil {
			logging.Error("Handler invocation failed",
				zap.String("distributor", dist.ID().String()),
				zap.String("module", b.ModuleCode),
				zap.String("closure_path", b.ClosurePath),
				zap.Error(err))
			errors.ErrInternalServer.WriteJSON(w)
		}
	})
	handler.ServeHTTP(w, r)
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}
