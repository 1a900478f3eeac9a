/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/mapfs"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

type recorder struct {
	name     string
	priority int
	calls    *[]string
	resolve  string
	suffix   string
	err      error
	veto     bool
}

func (r *recorder) Name() string  { return r.name }
func (r *recorder) Priority() int { return r.priority }

func (r *recorder) Resolve(p *core.ResolveParam, _ *core.Context, _ *core.HookContext) (*core.ResolveResult, error) {
	*r.calls = append(*r.calls, r.name)
	if r.err != nil {
		return nil, r.err
	}
	if r.resolve == "" {
		return nil, nil
	}
	return &core.ResolveResult{ResolvedPath: r.resolve}, nil
}

func (r *recorder) Transform(p *core.TransformParam, _ *core.Context) (*core.TransformResult, error) {
	*r.calls = append(*r.calls, r.name)
	if r.suffix == "" {
		return nil, nil
	}
	return &core.TransformResult{Content: p.Content + r.suffix, SourceMap: r.name}, nil
}

func (r *recorder) HandlePersistentCachedModule(*module.Module, *core.Context) (bool, error) {
	*r.calls = append(*r.calls, r.name)
	return r.veto, nil
}

// plain has no Priority method.
type plain struct {
	calls *[]string
}

func (p *plain) Name() string { return "plain" }

func (p *plain) BuildStart(*core.Context) error {
	*p.calls = append(*p.calls, "plain")
	return nil
}

func newContext(t *testing.T, plugins ...core.Plugin) *core.Context {
	t.Helper()
	cfg := config.Default()
	cfg.Root = "/project"
	require.NoError(t, cfg.Normalize())
	return core.NewContext(cfg, mapfs.New(), nil, plugins...)
}

func TestDriverOrdersByPriority(t *testing.T) {
	var calls []string
	d := core.NewDriver(
		&recorder{name: "late", priority: 200, calls: &calls},
		&plain{calls: &calls},
		&recorder{name: "early", priority: 10, calls: &calls},
		&recorder{name: "default", priority: core.DefaultPriority, calls: &calls},
	)
	assert.Equal(t, []string{"early", "plain", "default", "late"}, d.Names())
}

func TestResolveFirstMatch(t *testing.T) {
	var calls []string
	ctx := newContext(t,
		&recorder{name: "a", priority: 1, calls: &calls},
		&recorder{name: "b", priority: 2, calls: &calls, resolve: "/b.js"},
		&recorder{name: "c", priority: 3, calls: &calls, resolve: "/c.js"},
	)
	res, err := ctx.Driver().Resolve(&core.ResolveParam{Source: "./x"}, ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "/b.js", res.ResolvedPath)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestResolveNoMatch(t *testing.T) {
	var calls []string
	ctx := newContext(t, &recorder{name: "a", calls: &calls})
	res, err := ctx.Driver().Resolve(&core.ResolveParam{Source: "./x"}, ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestHookErrorsNamePlugin(t *testing.T) {
	var calls []string
	boom := &core.ResolveError{Source: "x"}
	ctx := newContext(t, &recorder{name: "broken", calls: &calls, err: boom})

	_, err := ctx.Driver().Resolve(&core.ResolveParam{Source: "x"}, ctx, nil)
	require.Error(t, err)

	var pe *core.PluginError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken", pe.Plugin)
	assert.Equal(t, "resolve", pe.Hook)

	var re *core.ResolveError
	assert.ErrorAs(t, err, &re)
}

func TestTransformThreadsContent(t *testing.T) {
	var calls []string
	ctx := newContext(t,
		&recorder{name: "one", priority: 1, calls: &calls, suffix: "+1"},
		&recorder{name: "skip", priority: 2, calls: &calls},
		&recorder{name: "two", priority: 3, calls: &calls, suffix: "+2"},
	)
	p := &core.TransformParam{Content: "src", ModuleType: module.TypeJs}
	require.NoError(t, ctx.Driver().Transform(p, ctx))
	assert.Equal(t, "src+1+2", p.Content)
	assert.Equal(t, []string{"one", "two"}, p.SourceMapChain)
	assert.Equal(t, []string{"one", "skip", "two"}, calls)
}

type resetter struct{}

func (resetter) Name() string { return "resetter" }

func (resetter) Transform(p *core.TransformParam, _ *core.Context) (*core.TransformResult, error) {
	return &core.TransformResult{Content: p.Content, ModuleType: module.TypeJs, IgnorePreviousSourceMap: true}, nil
}

func TestTransformIgnorePreviousSourceMap(t *testing.T) {
	ctx := newContext(t, resetter{})
	p := &core.TransformParam{Content: "x", ModuleType: module.TypeTs, SourceMapChain: []string{"old"}}
	require.NoError(t, ctx.Driver().Transform(p, ctx))
	assert.Empty(t, p.SourceMapChain)
	assert.Equal(t, module.TypeJs, p.ModuleType)
}

func TestHandlePersistentCachedModuleVeto(t *testing.T) {
	var calls []string
	ctx := newContext(t,
		&recorder{name: "keep", priority: 1, calls: &calls},
		&recorder{name: "discard", priority: 2, calls: &calls, veto: true},
		&recorder{name: "never", priority: 3, calls: &calls, veto: true},
	)
	veto, err := ctx.Driver().HandlePersistentCachedModule(module.New(module.ParseID("a.js")), ctx)
	require.NoError(t, err)
	assert.True(t, veto)
	assert.Equal(t, []string{"keep", "discard"}, calls)
}

func TestNotifyHooksAndObserver(t *testing.T) {
	var calls []string
	ctx := newContext(t, &plain{calls: &calls})
	var observed []string
	ctx.Driver().Observe = func(hook, plugin string, _ time.Duration) {
		observed = append(observed, hook+":"+plugin)
	}
	require.NoError(t, ctx.Driver().BuildStart(ctx))
	require.NoError(t, ctx.Driver().Finish(ctx))
	assert.Equal(t, []string{"plain"}, calls)
	assert.Equal(t, []string{"build_start:plain"}, observed)
}

func TestHookContext(t *testing.T) {
	var hc *core.HookContext
	assert.False(t, hc.ContainCaller("x"))

	inner := hc.WithCaller("resolve-plugin").WithCaller("css")
	assert.True(t, inner.ContainCaller("resolve-plugin"))
	assert.True(t, inner.ContainCaller("css"))
	assert.False(t, inner.ContainCaller("html"))
}

func TestContextResourcesAndWarnings(t *testing.T) {
	ctx := newContext(t)
	ctx.EmitResource(&resource.Resource{Name: "b.js", Bytes: []byte("b")})
	ctx.EmitResource(&resource.Resource{Name: "a.js", Bytes: []byte("a")})

	var names []string
	for _, r := range ctx.Resources() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a.js", "b.js"}, names)

	ctx.RemoveResource("a.js")
	_, ok := ctx.Resource("a.js")
	assert.False(t, ok)

	ctx.Warn("export %s not found", "x")
	assert.Equal(t, []string{"export x not found"}, ctx.Warnings())
}

func TestCompilationErrors(t *testing.T) {
	errs := core.CompilationErrors{
		&core.LoadError{ResolvedPath: "/a.js", Err: errors.New("denied")},
		&core.ParseError{ResolvedPath: "/b.js", Msg: "bad"},
	}
	var le *core.LoadError
	require.ErrorAs(t, errs, &le)
	assert.Equal(t, "/a.js", le.ResolvedPath)
	assert.Contains(t, errs.Error(), "2 errors occurred")
}
