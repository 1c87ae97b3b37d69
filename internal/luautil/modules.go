package luautil

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

// RegisterAll installs the helper globals route scripts may use: json,
// base64, url, re, and log.
func RegisterAll(L *lua.LState) {
	for name, fns := range helperModules {
		mod := L.NewTable()
		for fn, impl := range fns {
			L.SetField(mod, fn, L.NewFunction(impl))
		}
		L.SetGlobal(name, mod)
	}
}

var helperModules = map[string]map[string]lua.LGFunction{
	"json": {
		"encode": jsonEncode,
		"decode": jsonDecode,
	},
	"base64": {
		"encode": base64Encode,
		"decode": base64Decode,
	},
	"url": {
		"encode": urlEncode,
		"decode": urlDecode,
	},
	"re": {
		"match": reMatch,
		"find":  reFind,
	},
	"log": {
		"info":  logAt(logging.Info),
		"warn":  logAt(logging.Warn),
		"error": logAt(logging.Error),
	},
}

func jsonEncode(L *lua.LState) int {
	data, err := json.Marshal(fromLua(L.CheckAny(1)))
	if err != nil {
		L.ArgError(1, "json encode: "+err.Error())
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

func jsonDecode(L *lua.LState) int {
	var v any
	if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
		L.ArgError(1, "json decode: "+err.Error())
		return 0
	}
	L.Push(toLua(L, v))
	return 1
}

func base64Encode(L *lua.LState) int {
	L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(L.CheckString(1)))))
	return 1
}

func base64Decode(L *lua.LState) int {
	data, err := base64.StdEncoding.DecodeString(L.CheckString(1))
	if err != nil {
		L.ArgError(1, "base64 decode: "+err.Error())
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

func urlEncode(L *lua.LState) int {
	L.Push(lua.LString(url.QueryEscape(L.CheckString(1))))
	return 1
}

func urlDecode(L *lua.LState) int {
	decoded, err := url.QueryUnescape(L.CheckString(1))
	if err != nil {
		L.ArgError(1, "url decode: "+err.Error())
		return 0
	}
	L.Push(lua.LString(decoded))
	return 1
}

func reMatch(L *lua.LState) int {
	matched, err := regexp.MatchString(L.CheckString(1), L.CheckString(2))
	if err != nil {
		L.ArgError(1, "re match: "+err.Error())
		return 0
	}
	L.Push(lua.LBool(matched))
	return 1
}

func reFind(L *lua.LState) int {
	re, err := regexp.Compile(L.CheckString(1))
	if err != nil {
		L.ArgError(1, "re find: "+err.Error())
		return 0
	}
	L.Push(lua.LString(re.FindString(L.CheckString(2))))
	return 1
}

func logAt(emit func(string, ...zap.Field)) lua.LGFunction {
	return func(L *lua.LState) int {
		emit("script_log", zap.String("message", L.CheckString(1)))
		return 0
	}
}

// fromLua converts a Lua value to its Go equivalent. Tables with sequential
// integer keys from 1 become slices; everything else becomes a string map.
func fromLua(v lua.LValue) any {
	switch t := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(t)
	case lua.LNumber:
		return float64(t)
	case lua.LString:
		return string(t)
	case *lua.LTable:
		if n := t.MaxN(); n > 0 {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, fromLua(t.RawGetInt(i)))
			}
			return arr
		}
		m := make(map[string]any)
		t.ForEach(func(k, val lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = fromLua(val)
			}
		})
		return m
	default:
		return v.String()
	}
}

// toLua converts a decoded JSON value to a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case string:
		return lua.LString(t)
	case []any:
		tbl := L.NewTable()
		for _, item := range t {
			tbl.Append(toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, val := range t {
			L.SetField(tbl, k, toLua(L, val))
		}
		return tbl
	default:
		return lua.LString("")
	}
}
