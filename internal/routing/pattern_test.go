package routing

import (
	"errors"
	"reflect"
	"testing"

	razyerr "github.com/razy-dev/razy/internal/errors"
)

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		wantOK   bool
		wantArgs []string
	}{
		{name: "literal", pattern: "/hello", path: "/hello", wantOK: true},
		{name: "literal miss", pattern: "/hello", path: "/hellx", wantOK: false},
		{name: "digit capture", pattern: "/user/(:d)", path: "/user/42", wantOK: true, wantArgs: []string{"42"}},
		{name: "digit capture rejects alpha", pattern: "/user/(:d)", path: "/user/abc", wantOK: false},
		{name: "any segment", pattern: "/file/:a", path: "/file/report.pdf", wantOK: true},
		{name: "any does not cross slash", pattern: "/file/:a", path: "/file/a/b", wantOK: false},
		{name: "letters only", pattern: "/tag/(:w)", path: "/tag/golang", wantOK: true, wantArgs: []string{"golang"}},
		{name: "letters reject digits", pattern: "/tag/(:w)", path: "/tag/go2", wantOK: false},
		{name: "non-digits", pattern: "/x/(:D)", path: "/x/abc-def", wantOK: true, wantArgs: []string{"abc-def"}},
		{name: "exact length", pattern: "/code/(:d{4})", path: "/code/2024", wantOK: true, wantArgs: []string{"2024"}},
		{name: "exact length too short", pattern: "/code/(:d{4})", path: "/code/99", wantOK: false},
		{name: "length range", pattern: "/pin/(:d{2,4})", path: "/pin/123", wantOK: true, wantArgs: []string{"123"}},
		{name: "length range too long", pattern: "/pin/(:d{2,4})", path: "/pin/12345", wantOK: false},
		{name: "character class", pattern: "/hex/(:[0-9a-f])", path: "/hex/deadbeef", wantOK: true, wantArgs: []string{"deadbeef"}},
		{name: "character class miss", pattern: "/hex/(:[0-9a-f])", path: "/hex/xyz", wantOK: false},
		{name: "multiple captures", pattern: "/(:w)/(:d)", path: "/posts/7", wantOK: true, wantArgs: []string{"posts", "7"}},
		{name: "uncaptured token", pattern: "/v:d/(:a)", path: "/v2/users", wantOK: true, wantArgs: []string{"users"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.pattern, err)
			}
			args, ok := p.Match(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("match %q against %q = %v, want %v", tt.path, tt.pattern, ok, tt.wantOK)
			}
			if tt.wantOK && len(tt.wantArgs) > 0 && !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestCompileSyntaxErrors(t *testing.T) {
	bad := []string{
		"",
		"no-leading-slash",
		"/user/(:d",
		"/user/:d)",
		"/user/:x",
		"/user/:",
		"/user/:[0-9",
		"/user/{3}",
	}
	for _, pattern := range bad {
		if _, err := Compile(pattern); !errors.Is(err, razyerr.ErrPatternSyntax) {
			t.Errorf("Compile(%q) err = %v, want ErrPatternSyntax", pattern, err)
		}
	}
}

func TestSpecificityOrdering(t *testing.T) {
	compile := func(raw string) *Pattern {
		p, err := Compile(raw)
		if err != nil {
			t.Fatalf("compile %q: %v", raw, err)
		}
		return p
	}

	// Each pair: more specific, less specific.
	pairs := [][2]string{
		{"/users/all", "/users/(:a)"},
		{"/users/(:a)", "/(:a)/(:a)"},
		{"/api/v1/users", "/api/(:a)/users"},
		{"/longer-literal/(:d)", "/(:d)"},
	}
	for _, pair := range pairs {
		hi, lo := compile(pair[0]), compile(pair[1])
		if hi.Specificity() <= lo.Specificity() {
			t.Errorf("specificity(%q)=%d not greater than specificity(%q)=%d",
				pair[0], hi.Specificity(), pair[1], lo.Specificity())
		}
	}
}
