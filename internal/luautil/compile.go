// Package luautil provides the Lua plumbing shared by script route
// handlers: chunk compilation with caching, and the utility modules
// scripts may call.
package luautil

import (
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// CompileScript parses and compiles a Lua source string into a FunctionProto.
func CompileScript(source, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, err
	}
	return proto, nil
}

// DefaultCacheSize bounds the number of compiled scripts kept in memory.
const DefaultCacheSize = 256

// Cache keeps compiled scripts keyed by file path. Module script trees are
// static for the life of the process, so entries are never invalidated.
type Cache struct {
	protos *lru.Cache[string, *lua.FunctionProto]
}

// NewCache creates a compile cache holding up to size scripts.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	protos, _ := lru.New[string, *lua.FunctionProto](size)
	return &Cache{protos: protos}
}

// LoadFile returns the compiled form of the script at path, compiling and
// caching it on first use.
func (c *Cache) LoadFile(path string) (*lua.FunctionProto, error) {
	if proto, ok := c.protos.Get(path); ok {
		return proto, nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	proto, err := CompileScript(string(source), path)
	if err != nil {
		return nil, err
	}
	c.protos.Add(path, proto)
	return proto, nil
}
