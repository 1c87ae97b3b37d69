// Package server assembles the runtime: drivers, distributors, dispatcher,
// and the HTTP listener, from one configuration.
package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/razy-dev/razy/internal/module"
)

// Factory builds one module's controller for a distributor instance. A
// fresh controller is built per distributor so two tags of the same code
// never share state.
type Factory func() module.Controller

type registration struct {
	info  module.Info
	build Factory
	deps  []string
}

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]registration)
)

// RegisterModule makes a module available to distributors. Modules
// self-register from init functions; importing a module package for side
// effects is enough to offer it.
func RegisterModule(info module.Info, build Factory, deps ...string) {
	if _, _, err := module.ParseCode(info.Code); err != nil {
		panic(fmt.Sprintf("server: %v", err))
	}
	if build == nil {
		panic(fmt.Sprintf("server: module %s: nil factory", info.Code))
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[info.Code]; exists {
		panic(fmt.Sprintf("server: module %s: registered twice", info.Code))
	}
	factories[info.Code] = registration{info: info, build: build, deps: deps}
}

// availableModules returns registered module codes, sorted.
func availableModules() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	codes := make([]string, 0, len(factories))
	for code := range factories {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func lookupModule(code string) (registration, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	reg, ok := factories[code]
	return reg, ok
}

// selectModules applies a distributor's enabled-module map and exclude list
// to the registered module set. A nil or empty map selects everything.
func selectModules(include map[string]string, exclude []string) ([]string, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, code := range exclude {
		excluded[code] = true
	}

	var selected []string
	if len(include) > 0 {
		for code := range include {
			if _, ok := lookupModule(code); !ok {
				return nil, fmt.Errorf("module %s is not registered", code)
			}
			if !excluded[code] {
				selected = append(selected, code)
			}
		}
		sort.Strings(selected)
		return selected, nil
	}

	for _, code := range availableModules() {
		if !excluded[code] {
			selected = append(selected, code)
		}
	}
	return selected, nil
}
