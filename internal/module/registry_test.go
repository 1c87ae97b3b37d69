package module

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubController struct {
	apiAllow    func(caller, command string) bool
	bridgeAllow func(source, command string) bool
	handle      func(command string, args []any) (any, bool, error)
	errs        []string
}

func (c *stubController) OnInit(reg *Registrar) error { return nil }

func (c *stubController) OnAPICall(caller, command string) bool {
	if c.apiAllow == nil {
		return true
	}
	return c.apiAllow(caller, command)
}

func (c *stubController) OnBridgeCall(source, command string) bool {
	if c.bridgeAllow == nil {
		return true
	}
	return c.bridgeAllow(source, command)
}

func (c *stubController) HandleCommand(ctx context.Context, command string, args []any) (any, bool, error) {
	if c.handle == nil {
		return nil, false, nil
	}
	return c.handle(command, args)
}

func (c *stubController) OnError(command string, err error) {
	c.errs = append(c.errs, command)
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"acme/shop", false},
		{"acme", true},
		{"/shop", true},
		{"acme/", true},
		{"acme/shop/extra", true},
	}
	for _, tt := range tests {
		_, _, err := ParseCode(tt.code)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCode(%q) err = %v, wantErr %v", tt.code, err, tt.wantErr)
		}
	}
}

func TestRegisterAPIDuplicate(t *testing.T) {
	cr := NewCommandRegistry()
	fn := func(ctx context.Context, args []any) (any, error) { return nil, nil }

	if err := cr.RegisterAPI("acme/shop", "list", fn); err != nil {
		t.Fatal(err)
	}
	if err := cr.RegisterAPI("acme/shop", "list", fn); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	// Same name on another module is fine.
	if err := cr.RegisterAPI("acme/blog", "list", fn); err != nil {
		t.Errorf("cross-module name reuse should pass: %v", err)
	}
}

func TestInternalPrefixBinding(t *testing.T) {
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", &stubController{})

	fn := func(ctx context.Context, args []any) (any, error) { return "priced", nil }
	if err := cr.RegisterAPI("acme/shop", "#price", fn); err != nil {
		t.Fatal(err)
	}

	if !cr.InternallyBound("acme/shop", "price") {
		t.Error("expected stripped name to be internally bound")
	}
	if cr.InternallyBound("acme/shop", "#price") {
		t.Error("prefixed name must not appear in the table")
	}

	// Callable through the API surface under the stripped name.
	res, err := cr.ExecuteAPI(context.Background(), "acme/blog", "acme/shop", "price", nil)
	if err != nil || res != "priced" {
		t.Errorf("ExecuteAPI = %v, %v", res, err)
	}

	// And directly by the owner, bypassing gates.
	res, err = cr.CallInternal(context.Background(), "acme/shop", "price", nil)
	if err != nil || res != "priced" {
		t.Errorf("CallInternal = %v, %v", res, err)
	}
}

func TestExecuteSentinels(t *testing.T) {
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", &stubController{})

	if _, err := cr.ExecuteAPI(context.Background(), "x", "acme/none", "cmd", nil); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("missing module err = %v, want ErrModuleNotFound", err)
	}
	if _, err := cr.ExecuteAPI(context.Background(), "x", "acme/shop", "cmd", nil); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("missing command err = %v, want ErrCommandNotFound", err)
	}
}

func TestAPIGateDenies(t *testing.T) {
	ctrl := &stubController{apiAllow: func(caller, command string) bool {
		return caller == "acme/admin"
	}}
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", ctrl)
	cr.RegisterAPI("acme/shop", "restock", func(ctx context.Context, args []any) (any, error) {
		return "ok", nil
	})

	if _, err := cr.ExecuteAPI(context.Background(), "acme/blog", "acme/shop", "restock", nil); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("denied caller err = %v, want ErrAccessDenied", err)
	}
	if res, err := cr.ExecuteAPI(context.Background(), "acme/admin", "acme/shop", "restock", nil); err != nil || res != "ok" {
		t.Errorf("allowed caller = %v, %v", res, err)
	}
}

func TestBridgeGateDenies(t *testing.T) {
	ctrl := &stubController{bridgeAllow: func(source, command string) bool {
		return source == "partner@default"
	}}
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", ctrl)
	cr.RegisterBridge("acme/shop", "sync", func(ctx context.Context, args []any) (any, error) {
		return 7, nil
	})

	if _, err := cr.ExecuteBridge(context.Background(), "rogue@default", "acme/shop", "sync", nil); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("denied source err = %v, want ErrAccessDenied", err)
	}
	if res, err := cr.ExecuteBridge(context.Background(), "partner@default", "acme/shop", "sync", nil); err != nil || res != 7 {
		t.Errorf("allowed source = %v, %v", res, err)
	}
}

func TestCommandHandlerPrecedence(t *testing.T) {
	// A controller-level handler wins over a registered command of the same
	// name; unhandled commands fall through to the table.
	ctrl := &stubController{handle: func(command string, args []any) (any, bool, error) {
		if command == "price" {
			return "from-handler", true, nil
		}
		return nil, false, nil
	}}
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", ctrl)
	cr.RegisterAPI("acme/shop", "#price", func(ctx context.Context, args []any) (any, error) {
		return "from-table", nil
	})
	cr.RegisterAPI("acme/shop", "list", func(ctx context.Context, args []any) (any, error) {
		return "listed", nil
	})

	res, err := cr.ExecuteAPI(context.Background(), "x", "acme/shop", "price", nil)
	if err != nil || res != "from-handler" {
		t.Errorf("handled command = %v, %v, want from-handler", res, err)
	}
	res, err = cr.ExecuteAPI(context.Background(), "x", "acme/shop", "list", nil)
	if err != nil || res != "listed" {
		t.Errorf("fallthrough command = %v, %v, want listed", res, err)
	}
}

func TestErrorHookNotified(t *testing.T) {
	ctrl := &stubController{}
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", ctrl)
	cr.RegisterAPI("acme/shop", "explode", func(ctx context.Context, args []any) (any, error) {
		return nil, fmt.Errorf("out of stock")
	})

	res, err := cr.ExecuteAPI(context.Background(), "x", "acme/shop", "explode", nil)
	if err == nil || res != nil {
		t.Errorf("failing command = %v, %v, want nil result and error", res, err)
	}
	if len(ctrl.errs) != 1 || ctrl.errs[0] != "explode" {
		t.Errorf("error hook calls = %v", ctrl.errs)
	}
}

func TestEmitterFlattensFailures(t *testing.T) {
	cr := NewCommandRegistry()
	cr.SetController("acme/shop", &stubController{})
	cr.RegisterAPI("acme/shop", "list", func(ctx context.Context, args []any) (any, error) {
		return []string{"a", "b"}, nil
	})
	cr.RegisterAPI("acme/shop", "explode", func(ctx context.Context, args []any) (any, error) {
		return nil, fmt.Errorf("nope")
	})

	em := NewEmitter("acme/blog", cr, NewEventDispatcher())

	if res := em.Call(context.Background(), "acme/shop", "list"); res == nil {
		t.Error("expected result from successful call")
	}
	if res := em.Call(context.Background(), "acme/shop", "missing"); res != nil {
		t.Errorf("missing command should flatten to nil, got %v", res)
	}
	if res := em.Call(context.Background(), "acme/none", "list"); res != nil {
		t.Errorf("missing module should flatten to nil, got %v", res)
	}
	if res := em.Call(context.Background(), "acme/shop", "explode"); res != nil {
		t.Errorf("failing handler should flatten to nil, got %v", res)
	}
}
