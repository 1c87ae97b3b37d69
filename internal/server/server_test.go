package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/razy-dev/razy/internal/config"
	"github.com/razy-dev/razy/internal/module"
)

type homeController struct{}

func (homeController) OnInit(reg *module.Registrar) error {
	return reg.Route("GET", "/", "home", func(w http.ResponseWriter, r *http.Request, args []string) {
		w.Write([]byte("welcome"))
	})
}

type extraController struct{}

func (extraController) OnInit(reg *module.Registrar) error {
	return reg.Route("GET", "/extra", "extra", func(w http.ResponseWriter, r *http.Request, args []string) {
		w.Write([]byte("extra"))
	})
}

func init() {
	RegisterModule(module.Info{Code: "test/home", Version: "1.0.0"}, func() module.Controller {
		return homeController{}
	})
	RegisterModule(module.Info{Code: "test/extra", Version: "1.0.0"}, func() module.Controller {
		return extraController{}
	})
}

func TestSelectModules(t *testing.T) {
	all, err := selectModules(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 2 {
		t.Fatalf("available modules = %v", all)
	}

	only, err := selectModules(map[string]string{"test/home": ""}, nil)
	if err != nil || len(only) != 1 || only[0] != "test/home" {
		t.Errorf("include map = %v, %v", only, err)
	}

	trimmed, err := selectModules(nil, []string{"test/extra"})
	if err != nil {
		t.Fatal(err)
	}
	for _, code := range trimmed {
		if code == "test/extra" {
			t.Error("excluded module still selected")
		}
	}

	if _, err := selectModules(map[string]string{"test/ghost": ""}, nil); err == nil {
		t.Error("unknown include must fail")
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Distributors = []config.DistributorConfig{
		{Dist: "shop", Modules: map[string]string{"test/home": ""}},
	}
	cfg.Sites.Domains = map[string]map[string]string{
		"shop.example.com": {"/": "shop"},
	}
	return cfg
}

func TestServerServesConfiguredSite(t *testing.T) {
	srv, err := NewServer(testConfig(), "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("GET", "http://shop.example.com/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "welcome" {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
	// Global session middleware mints a cookie.
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected session cookie on response")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServerCatchAllHost(t *testing.T) {
	cfg := testConfig()
	cfg.Distributors[0].CatchAll = true

	srv, err := NewServer(cfg, "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("GET", "http://anything.example.com/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("catch-all status = %d", rec.Code)
	}
}

func TestServerGreedyLoadsAllModules(t *testing.T) {
	cfg := testConfig()
	cfg.Distributors[0].Modules = nil
	cfg.Distributors[0].Greedy = true

	srv, err := NewServer(cfg, "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("GET", "http://shop.example.com/extra", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "extra" {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
}

func TestServerModuleVersionPin(t *testing.T) {
	cfg := testConfig()
	cfg.Distributors[0].Modules = map[string]string{"test/home": "2.0.0"}

	if _, err := NewServer(cfg, ""); err == nil {
		t.Error("version mismatch must fail assembly")
	}

	cfg.Distributors[0].Modules = map[string]string{"test/home": "1.0.0"}
	if _, err := NewServer(cfg, ""); err != nil {
		t.Errorf("matching pin failed: %v", err)
	}
}

func TestServerBridgeEndpointGating(t *testing.T) {
	cfg := testConfig()
	srv, err := NewServer(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("POST", "http://shop.example.com/__internal/bridge", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("bridge endpoint without enabled flag status = %d, want 404", rec.Code)
	}

	cfg = testConfig()
	cfg.Distributors[0].InternalBridge.Enabled = true
	cfg.Distributors[0].InternalBridge.Secret = "s"
	srv, err = NewServer(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("POST", "http://shop.example.com/__internal/bridge", nil))
	if rec.Code == http.StatusNotFound {
		t.Error("enabled bridge endpoint must be served")
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true

	srv, err := NewServer(cfg, "")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("GET", "http://shop.example.com/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}
