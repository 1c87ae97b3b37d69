package distributor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/module"
	"github.com/razy-dev/razy/internal/routing"
)

type loadedModule struct {
	info module.Info
	ctrl module.Controller
	deps []string
}

// Distributor is one isolated runtime: its modules, route table, command
// registry, and event dispatcher. Registration happens before Boot; after
// Boot the route table is frozen and the distributor serves requests.
type Distributor struct {
	id ID

	// BaseURL is the distributor's bound host, when any. Empty means no
	// HTTP endpoint; bridge calls reach it via subprocess instead.
	baseURL string

	bridgeSecret string
	allow        []string

	mu      sync.RWMutex
	modules map[string]*loadedModule
	booted  bool

	table    *routing.Table
	loader   *module.ClosureLoader
	commands *module.CommandRegistry
	events   *module.EventDispatcher
	bridge   module.BridgeFunc
}

// Config carries the distributor's static settings.
type Config struct {
	ID           ID
	BaseURL      string
	BridgeSecret string
	// Allow lists distributor ids permitted to bridge in: exact "code@tag"
	// or wildcard "code@*".
	Allow []string
}

// New creates an empty distributor.
func New(cfg Config) *Distributor {
	return &Distributor{
		id:           cfg.ID,
		baseURL:      cfg.BaseURL,
		bridgeSecret: cfg.BridgeSecret,
		allow:        cfg.Allow,
		modules:      make(map[string]*loadedModule),
		table:        routing.NewTable(),
		loader:       module.NewClosureLoader(),
		commands:     module.NewCommandRegistry(),
		events:       module.NewEventDispatcher(),
	}
}

// ID returns the distributor's identity.
func (d *Distributor) ID() ID { return d.id }

// BaseURL returns the bound host base, or "" when none.
func (d *Distributor) BaseURL() string { return d.baseURL }

// BridgeSecret returns the shared HMAC secret for bridge envelopes.
func (d *Distributor) BridgeSecret() string { return d.bridgeSecret }

// Table returns the route table.
func (d *Distributor) Table() *routing.Table { return d.table }

// Loader returns the closure loader.
func (d *Distributor) Loader() *module.ClosureLoader { return d.loader }

// Commands returns the command registry.
func (d *Distributor) Commands() *module.CommandRegistry { return d.commands }

// Events returns the event dispatcher.
func (d *Distributor) Events() *module.EventDispatcher { return d.events }

// SetBridge installs the cross-distributor transport handed to module
// emitters. Call before Boot.
func (d *Distributor) SetBridge(fn module.BridgeFunc) {
	d.mu.Lock()
	d.bridge = fn
	d.mu.Unlock()
}

// Register adds a module before boot. deps names module codes that must
// initialize first.
func (d *Distributor) Register(info module.Info, ctrl module.Controller, deps ...string) error {
	if _, _, err := module.ParseCode(info.Code); err != nil {
		return err
	}
	if ctrl == nil {
		return fmt.Errorf("module %s: nil controller", info.Code)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.booted {
		return fmt.Errorf("module %s: distributor %s already booted", info.Code, d.id)
	}
	if _, exists := d.modules[info.Code]; exists {
		return fmt.Errorf("module %s: already registered in %s", info.Code, d.id)
	}

	info.Distributor = d.id.String()
	d.modules[info.Code] = &loadedModule{info: info, ctrl: ctrl, deps: deps}
	return nil
}

// Module returns a registered module's info.
func (d *Distributor) Module(code string) (module.Info, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.modules[code]
	if !ok {
		return module.Info{}, false
	}
	return m.info, true
}

// Modules returns the registered module codes, sorted.
func (d *Distributor) Modules() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	codes := make([]string, 0, len(d.modules))
	for code := range d.modules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Boot runs the module lifecycle: init in dependency order, then load, then
// table freeze, then ready. Boot is one-shot.
func (d *Distributor) Boot() error {
	d.mu.Lock()
	if d.booted {
		d.mu.Unlock()
		return fmt.Errorf("distributor %s: already booted", d.id)
	}
	d.booted = true
	d.mu.Unlock()

	order, err := d.initOrder()
	if err != nil {
		return err
	}

	for _, code := range order {
		m := d.modules[code]
		d.commands.SetController(code, m.ctrl)
		reg := module.NewRegistrar(m.info, d.table, d.loader, d.commands, d.events, d.bridge)
		if err := m.ctrl.OnInit(reg); err != nil {
			return fmt.Errorf("distributor %s: init %s: %w", d.id, code, err)
		}
		logging.Debug("Module initialized",
			zap.String("distributor", d.id.String()),
			zap.String("module", code),
			zap.String("version", m.info.Version))
	}

	for _, code := range order {
		if hook, ok := d.modules[code].ctrl.(module.LoadHook); ok {
			if err := hook.OnLoad(); err != nil {
				return fmt.Errorf("distributor %s: load %s: %w", d.id, code, err)
			}
		}
	}

	d.table.Freeze()

	for _, code := range order {
		if hook, ok := d.modules[code].ctrl.(module.ReadyHook); ok {
			if err := hook.OnReady(); err != nil {
				return fmt.Errorf("distributor %s: ready %s: %w", d.id, code, err)
			}
		}
	}

	logging.Info("Distributor booted",
		zap.String("distributor", d.id.String()),
		zap.Int("modules", len(order)),
		zap.Int("routes", d.table.Len()))
	return nil
}

// initOrder topologically sorts modules by declared dependencies, breaking
// ties by module code for determinism.
func (d *Distributor) initOrder() ([]string, error) {
	codes := d.Modules()

	indeg := make(map[string]int, len(codes))
	dependents := make(map[string][]string, len(codes))
	for _, code := range codes {
		indeg[code] += 0
		for _, dep := range d.modules[code].deps {
			if _, ok := d.modules[dep]; !ok {
				return nil, fmt.Errorf("distributor %s: module %s depends on unregistered %s", d.id, code, dep)
			}
			indeg[code]++
			dependents[dep] = append(dependents[dep], code)
		}
	}

	var ready []string
	for _, code := range codes {
		if indeg[code] == 0 {
			ready = append(ready, code)
		}
	}

	order := make([]string, 0, len(codes))
	for len(ready) > 0 {
		sort.Strings(ready)
		code := ready[0]
		ready = ready[1:]
		order = append(order, code)
		for _, dep := range dependents[code] {
			indeg[dep]--
			if indeg[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(codes) {
		var stuck []string
		for _, code := range codes {
			if indeg[code] > 0 {
				stuck = append(stuck, code)
			}
		}
		return nil, fmt.Errorf("distributor %s: dependency cycle among %s", d.id, strings.Join(stuck, ", "))
	}
	return order, nil
}

// Allows reports whether source may bridge into this distributor. The
// allowlist matches exact ids and "code@*" wildcards.
func (d *Distributor) Allows(source ID) bool {
	for _, entry := range d.allow {
		code, tag, found := strings.Cut(entry, "@")
		if !found {
			tag = DefaultTag
		}
		if code != source.Code {
			continue
		}
		if tag == "*" || tag == source.Tag {
			return true
		}
	}
	return false
}
