// Package luascript provides a layout strategy implemented by a user Lua
// script. Importing the package registers it under the name "lua":
//
//	import _ "github.com/matzehuels/gridflow/pkg/strategy/luascript"
//
//	s, err := strategy.New("lua", strategy.Params{"file": "layout.lua"})
//
// The script must define a global function
//
//	function layout(items, direction, outline, env)
//
// items is an array of tables with the fields inlinePos, contentPos,
// inlineSize and contentSize (the current geometry). The script assigns new
// values to those fields and returns a table {start = {...}, ["end"] = {...}}.
// direction is "start" or "end"; env has inlineSize, gap and horizontal.
//
// Scripts run with only the base, table, string and math libraries. Every
// call into the script is bounded by CallTimeout and by the context given
// to Bind; a script that overruns is aborted and the call falls back to the
// input outline.
package luascript

import (
	"context"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

func init() {
	strategy.Register("lua", New)
}

// Param names accepted by New.
const (
	ScriptParam = "script"
	FileParam   = "file"
)

// DefaultCallTimeout bounds one call into a script.
const DefaultCallTimeout = time.Second

// Strategy runs a Lua layout function. A Strategy owns one Lua state and
// serializes calls into it.
type Strategy struct {
	// CallTimeout bounds each layout call; zero disables the per-call limit.
	CallTimeout time.Duration

	mu  sync.Mutex
	ctx context.Context
	L   *lua.LState
}

// New builds a Strategy from the "script" (source) or "file" (path) param.
func New(p strategy.Params) (strategy.Strategy, error) {
	src, err := p.String(ScriptParam, "")
	if err != nil {
		return nil, err
	}
	path, err := p.String(FileParam, "")
	if err != nil {
		return nil, err
	}
	switch {
	case src == "" && path == "":
		return nil, errors.New(errors.ErrCodeInvalidStrategy, "lua strategy needs a script or file parameter")
	case src == "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidStrategy, err, "read lua script")
		}
		src = string(data)
	}
	return Compile(src)
}

// Compile loads src into a fresh sandboxed state.
func Compile(src string) (*Strategy, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultCallTimeout)
	defer cancel()
	L.SetContext(ctx)
	err := L.DoString(src)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, errors.Wrap(errors.ErrCodeInvalidStrategy, err, "load lua script")
	}
	if fn := L.GetGlobal("layout"); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, errors.New(errors.ErrCodeInvalidStrategy, "lua script must define function layout(items, direction, outline, env)")
	}
	return &Strategy{CallTimeout: DefaultCallTimeout, ctx: context.Background(), L: L}, nil
}

// Bind makes every later call abort once ctx is done.
func (s *Strategy) Bind(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

// Name implements strategy.Strategy.
func (s *Strategy) Name() string { return "lua" }

// Close releases the Lua state.
func (s *Strategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
}

// Apply implements strategy.Strategy. A failing script leaves item
// geometry untouched and returns the input outline unchanged.
func (s *Strategy) Apply(env strategy.Env, items []*item.Item, dir strategy.Direction, outline []float64) strategy.Outlines {
	s.mu.Lock()
	defer s.mu.Unlock()
	L := s.L

	tItems := L.NewTable()
	for _, it := range items {
		t := L.NewTable()
		t.RawSetString("inlinePos", lua.LNumber(it.InlinePos()))
		t.RawSetString("contentPos", lua.LNumber(it.ContentPos()))
		t.RawSetString("inlineSize", lua.LNumber(it.InlineSize()))
		t.RawSetString("contentSize", lua.LNumber(it.ContentSize()))
		tItems.Append(t)
	}
	tEnv := L.NewTable()
	tEnv.RawSetString("inlineSize", lua.LNumber(env.InlineSize))
	tEnv.RawSetString("gap", lua.LNumber(env.Gap))
	tEnv.RawSetString("horizontal", lua.LBool(env.Horizontal))

	fallback := strategy.Outlines{Start: append([]float64(nil), outline...), End: append([]float64(nil), outline...)}
	ctx, cancel := s.callContext()
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()
	err := L.CallByParam(lua.P{Fn: L.GetGlobal("layout"), NRet: 1, Protect: true},
		tItems, lua.LString(dir), numbers(L, outline), tEnv)
	if err != nil {
		return fallback
	}
	ret := L.Get(-1)
	L.Pop(1)

	for i, it := range items {
		t, ok := tItems.RawGetInt(i + 1).(*lua.LTable)
		if !ok {
			continue
		}
		if v, ok := number(t, "inlinePos"); ok {
			it.SetInlinePos(v)
		}
		if v, ok := number(t, "contentPos"); ok {
			it.SetContentPos(v)
		}
		if v, ok := number(t, "inlineSize"); ok && v != it.InlineSize() {
			it.SetInlineSize(v)
		}
		if v, ok := number(t, "contentSize"); ok && v != it.ContentSize() {
			it.SetContentSize(v)
		}
	}

	out, ok := ret.(*lua.LTable)
	if !ok {
		return fallback
	}
	return strategy.Outlines{
		Start: floats(out.RawGetString("start"), fallback.Start),
		End:   floats(out.RawGetString("end"), fallback.End),
	}
}

func (s *Strategy) callContext() (context.Context, context.CancelFunc) {
	if s.CallTimeout > 0 {
		return context.WithTimeout(s.ctx, s.CallTimeout)
	}
	return context.WithCancel(s.ctx)
}

func numbers(L *lua.LState, vs []float64) *lua.LTable {
	t := L.NewTable()
	for _, v := range vs {
		t.Append(lua.LNumber(v))
	}
	return t
}

func number(t *lua.LTable, key string) (float64, bool) {
	n, ok := t.RawGetString(key).(lua.LNumber)
	return float64(n), ok
}

func floats(v lua.LValue, def []float64) []float64 {
	t, ok := v.(*lua.LTable)
	if !ok {
		return def
	}
	out := make([]float64, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		n, ok := t.RawGetInt(i).(lua.LNumber)
		if !ok {
			return def
		}
		out = append(out, float64(n))
	}
	return out
}
