package module

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/razy-dev/razy/internal/routing"
)

func TestRegisterAndInvokeClosure(t *testing.T) {
	l := NewClosureLoader()

	err := l.Register("acme/shop", "handlers/list", func(w http.ResponseWriter, r *http.Request, args []string) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("items"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Register("acme/shop", "handlers/list", nil); err == nil {
		t.Error("nil closure must fail")
	}
	if err := l.Register("acme/shop", "handlers/list", func(w http.ResponseWriter, r *http.Request, args []string) {}); err == nil {
		t.Error("duplicate registration must fail")
	}

	rec := httptest.NewRecorder()
	b := &routing.Binding{ModuleCode: "acme/shop", ClosurePath: "handlers/list", Type: routing.TypeStandard}
	if err := l.Invoke(rec, httptest.NewRequest("GET", "/shop", nil), b, nil); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "items" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestInvokeUnknownClosure(t *testing.T) {
	l := NewClosureLoader()
	b := &routing.Binding{ModuleCode: "acme/shop", ClosurePath: "missing", Type: routing.TypeStandard}
	if err := l.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), b, nil); err == nil {
		t.Error("expected error for unregistered closure")
	}
}

func TestInvokeRejectsShadow(t *testing.T) {
	l := NewClosureLoader()
	b := &routing.Binding{ModuleCode: "acme/shop", ClosurePath: "/x", Type: routing.TypeShadow}
	if err := l.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), b, nil); err == nil {
		t.Error("shadow bindings must be rebound before invocation")
	}
}

func TestScriptHandler(t *testing.T) {
	root := t.TempDir()
	script := `
body = "hello " .. args[1] .. " via " .. method
status = 201
`
	if err := os.WriteFile(filepath.Join(root, "greet.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewClosureLoader()
	l.SetRoot("acme/shop", root)

	rec := httptest.NewRecorder()
	b := &routing.Binding{ModuleCode: "acme/shop", ClosurePath: "greet.lua", Type: routing.TypeScript}
	if err := l.Invoke(rec, httptest.NewRequest("GET", "/greet/world", nil), b, []string{"world"}); err != nil {
		t.Fatal(err)
	}

	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Body.String() != "hello world via GET" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestScriptPathEscapeRejected(t *testing.T) {
	l := NewClosureLoader()
	l.SetRoot("acme/shop", t.TempDir())

	b := &routing.Binding{ModuleCode: "acme/shop", ClosurePath: "../outside.lua", Type: routing.TypeScript}
	err := l.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), b, nil)
	if err == nil {
		t.Error("expected traversal rejection")
	}
}

func TestScriptWithoutRoot(t *testing.T) {
	l := NewClosureLoader()
	b := &routing.Binding{ModuleCode: "acme/shop", ClosurePath: "x.lua", Type: routing.TypeScript}
	if err := l.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), b, nil); err == nil {
		t.Error("expected error when module root is unset")
	}
}
