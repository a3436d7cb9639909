package processor_test

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/processor"
)

type noopProcessor struct{}

func (noopProcessor) Init(context.Context, *module.Handle) error { return nil }
func (noopProcessor) Main(ctx context.Context, m *module.Handle) { <-ctx.Done() }
func (noopProcessor) Clean(*module.Handle, bool)                 {}

func loadProcessor(t *testing.T, reg *module.Registry, name string) *module.Handle {
	t.Helper()
	id := module.ID{Class: module.ClassProcessor, Name: name}
	reg.Register(id, func() (module.Interface, []module.Param, error) {
		return noopProcessor{}, nil, nil
	})
	h, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, reg.Init(context.Background(), h))
	return h
}

func TestResolveBuildsAndMemoizesPath(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	loadProcessor(t, reg, "filter-1")

	m := processor.NewMaster(reg, nil)
	m.AddTemplate(processor.PathTemplate{
		Prefix:     netip.MustParsePrefix("10.0.0.0/8"),
		Listener:   -1,
		Processors: []string{"filter-1"},
	})

	from := netip.MustParseAddr("10.1.2.3")
	p1 := m.Resolve(from, netip.Addr{}, 0)
	require.NotNil(t, p1)
	require.Len(t, p1.Nodes, 1)
	assert.Equal(t, "filter-1", p1.Nodes[0].Name)

	p2 := m.Resolve(from, netip.Addr{}, 0)
	assert.Same(t, p1, p2)
	assert.EqualValues(t, 3, p1.RefCount()) // cache + 2 callers
}

func TestResolveUnmatchedReturnsEmptyPath(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	m := processor.NewMaster(reg, nil)

	p := m.Resolve(netip.MustParseAddr("192.168.1.1"), netip.Addr{}, 0)
	require.NotNil(t, p)
	assert.True(t, p.Empty())
}

func TestEvictUnreferencedDropsIdleEntries(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	loadProcessor(t, reg, "filter-1")

	m := processor.NewMaster(reg, nil)
	m.AddTemplate(processor.PathTemplate{
		Prefix:     netip.MustParsePrefix("10.0.0.0/8"),
		Listener:   -1,
		Processors: []string{"filter-1"},
	})

	from := netip.MustParseAddr("10.1.2.3")
	p := m.Resolve(from, netip.Addr{}, 0)
	p.Release() // caller done with it; only cache's own ref remains

	m.EvictUnreferenced()

	p2 := m.Resolve(from, netip.Addr{}, 0)
	assert.NotSame(t, p, p2)
}
