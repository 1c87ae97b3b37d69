package distributor

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/razy-dev/razy/internal/module"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{"shop", ID{Code: "shop", Tag: "default"}, false},
		{"shop@eu", ID{Code: "shop", Tag: "eu"}, false},
		{"@eu", ID{}, true},
		{"shop@", ID{}, true},
		{"shop@eu@x", ID{}, true},
		{"", ID{}, true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseID(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if MustParseID("shop@eu").String() != "shop@eu" {
		t.Error("round trip failed")
	}
}

type lifecycleController struct {
	name   string
	events *[]string
	routes map[string]module.Closure // pattern → closure, registered at init
}

func (c *lifecycleController) OnInit(reg *module.Registrar) error {
	*c.events = append(*c.events, "init:"+c.name)
	i := 0
	for pattern, fn := range c.routes {
		if err := reg.Route("GET", pattern, "h"+strconv.Itoa(i), fn); err != nil {
			return err
		}
		i++
	}
	return nil
}

func (c *lifecycleController) OnLoad() error {
	*c.events = append(*c.events, "load:"+c.name)
	return nil
}

func (c *lifecycleController) OnReady() error {
	*c.events = append(*c.events, "ready:"+c.name)
	return nil
}

func TestBootLifecycleOrder(t *testing.T) {
	var events []string
	d := New(Config{ID: MustParseID("shop")})

	// b depends on a; c is independent. Init order must be a, then b and c
	// interleaved deterministically (code-sorted among ready modules).
	d.Register(module.Info{Code: "acme/a"}, &lifecycleController{name: "a", events: &events})
	d.Register(module.Info{Code: "acme/b"}, &lifecycleController{name: "b", events: &events}, "acme/a")
	d.Register(module.Info{Code: "acme/c"}, &lifecycleController{name: "c", events: &events})

	if err := d.Boot(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"init:a", "init:c", "init:b",
		"load:a", "load:c", "load:b",
		"ready:a", "ready:c", "ready:b",
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestBootFreezesTable(t *testing.T) {
	var events []string
	d := New(Config{ID: MustParseID("shop")})
	d.Register(module.Info{Code: "acme/a"}, &lifecycleController{
		name:   "a",
		events: &events,
		routes: map[string]module.Closure{
			"/items": func(w http.ResponseWriter, r *http.Request, args []string) {},
		},
	})

	if err := d.Boot(); err != nil {
		t.Fatal(err)
	}

	if err := d.Table().Add("GET", "/late", "acme/a", "late"); err == nil {
		t.Error("route table must be frozen after boot")
	}
	if _, ok := d.Table().Match("GET", "/items"); !ok {
		t.Error("registered route should match after boot")
	}
}

func TestBootDependencyCycle(t *testing.T) {
	var events []string
	d := New(Config{ID: MustParseID("shop")})
	d.Register(module.Info{Code: "acme/a"}, &lifecycleController{name: "a", events: &events}, "acme/b")
	d.Register(module.Info{Code: "acme/b"}, &lifecycleController{name: "b", events: &events}, "acme/a")

	if err := d.Boot(); err == nil {
		t.Error("expected cycle error")
	}
}

func TestRegisterValidation(t *testing.T) {
	var events []string
	d := New(Config{ID: MustParseID("shop")})

	if err := d.Register(module.Info{Code: "badcode"}, &lifecycleController{name: "x", events: &events}); err == nil {
		t.Error("invalid module code must fail")
	}
	if err := d.Register(module.Info{Code: "acme/a"}, nil); err == nil {
		t.Error("nil controller must fail")
	}

	d.Register(module.Info{Code: "acme/a"}, &lifecycleController{name: "a", events: &events})
	if err := d.Register(module.Info{Code: "acme/a"}, &lifecycleController{name: "a2", events: &events}); err == nil {
		t.Error("duplicate module must fail")
	}
	if err := d.Register(module.Info{Code: "acme/b"}, &lifecycleController{name: "b", events: &events}, "acme/missing"); err == nil {
		// Missing deps surface at boot, not registration.
		if bootErr := d.Boot(); bootErr == nil {
			t.Error("unregistered dependency must fail at boot")
		}
	}

	// Info gets stamped with the owning distributor.
	if info, ok := d.Module("acme/a"); !ok || info.Distributor != "shop@default" {
		t.Errorf("module info = %+v", info)
	}
}

func TestRegisterAfterBoot(t *testing.T) {
	var events []string
	d := New(Config{ID: MustParseID("shop")})
	d.Register(module.Info{Code: "acme/a"}, &lifecycleController{name: "a", events: &events})
	if err := d.Boot(); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(module.Info{Code: "acme/b"}, &lifecycleController{name: "b", events: &events}); err == nil {
		t.Error("registration after boot must fail")
	}
	if err := d.Boot(); err == nil {
		t.Error("double boot must fail")
	}
}

func TestSetBridgeReachesModules(t *testing.T) {
	var em *module.Emitter
	var events []string
	ctrl := &lifecycleController{name: "a", events: &events}

	d := New(Config{ID: MustParseID("shop")})
	d.SetBridge(func(ctx context.Context, target, moduleCode, command string, args []any) (any, error) {
		return target + "/" + moduleCode + "." + command, nil
	})
	d.Register(module.Info{Code: "acme/a"}, &captureController{inner: ctrl, emitter: &em})
	if err := d.Boot(); err != nil {
		t.Fatal(err)
	}

	got := em.Bridge(context.Background(), "warehouse@default", "acme/inventory", "stock")
	if got != "warehouse@default/acme/inventory.stock" {
		t.Errorf("bridge result = %v", got)
	}
}

type captureController struct {
	inner   module.Controller
	emitter **module.Emitter
}

func (c *captureController) OnInit(reg *module.Registrar) error {
	*c.emitter = reg.Emitter()
	return c.inner.OnInit(reg)
}

func TestAllows(t *testing.T) {
	d := New(Config{
		ID:    MustParseID("shop"),
		Allow: []string{"partner@eu", "internal@*", "bare"},
	})

	tests := []struct {
		source string
		want   bool
	}{
		{"partner@eu", true},
		{"partner@us", false},
		{"partner@default", false},
		{"internal@eu", true},
		{"internal@default", true},
		{"bare@default", true}, // entry without tag means default
		{"bare@eu", false},
		{"stranger@default", false},
	}
	for _, tt := range tests {
		if got := d.Allows(MustParseID(tt.source)); got != tt.want {
			t.Errorf("Allows(%s) = %v, want %v", tt.source, got, tt.want)
		}
	}
}
