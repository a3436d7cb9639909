package module_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/errctx"
	"github.com/dantte-lp/goreflector/internal/module"
)

type stubModule struct {
	mu        sync.Mutex
	initErr   error
	mainRan   chan struct{}
	stopCalls int
}

func (s *stubModule) Init(ctx context.Context, m *module.Handle) error {
	return s.initErr
}

func (s *stubModule) Main(ctx context.Context, m *module.Handle) {
	close(s.mainRan)
	<-ctx.Done()
}

func (s *stubModule) Clean(m *module.Handle, forRestart bool) {}

func (s *stubModule) Stop(m *module.Handle) {
	s.mu.Lock()
	s.stopCalls++
	s.mu.Unlock()
}

func TestRegistryLoadInitStartStopDestroy(t *testing.T) {
	t.Parallel()

	stub := &stubModule{mainRan: make(chan struct{})}
	id := module.ID{Class: module.ClassProcessor, Name: "stub-1"}

	reg := module.NewRegistry(nil)
	reg.Register(id, func() (module.Interface, []module.Param, error) {
		return stub, nil, nil
	})

	h, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, module.StateInserted, h.State())

	require.NoError(t, reg.Init(context.Background(), h))
	require.Equal(t, module.StateInitialised, h.State())

	require.NoError(t, reg.Start(context.Background(), h))
	require.Equal(t, module.StateRunning, h.State())

	select {
	case <-stub.mainRan:
	case <-time.After(time.Second):
		t.Fatal("Main never ran")
	}

	require.NoError(t, reg.Stop(h))
	require.Equal(t, module.StateStopped, h.State())
	require.Equal(t, 1, stub.stopCalls)

	require.NoError(t, reg.Destroy(h))
	require.Equal(t, module.StateDestroyed, h.State())

	_, found := reg.Find(module.ClassProcessor, "stub-1")
	require.False(t, found)
}

func TestRegistryLoadInitFailureRemovesModule(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	id := module.ID{Class: module.ClassSender, Name: "bad"}

	reg := module.NewRegistry(nil)
	reg.Register(id, func() (module.Interface, []module.Param, error) {
		return &stubModule{initErr: boom, mainRan: make(chan struct{})}, nil, nil
	})

	h, err := reg.Load(context.Background(), id)
	require.NoError(t, err)

	err = reg.Init(context.Background(), h)
	require.ErrorIs(t, err, boom)
	require.Equal(t, module.StateDestroyed, h.State())
}

func TestRegistryDuplicateLoadFails(t *testing.T) {
	t.Parallel()

	id := module.ID{Class: module.ClassAAA, Name: "routing"}
	reg := module.NewRegistry(nil)
	reg.Register(id, func() (module.Interface, []module.Param, error) {
		return &stubModule{mainRan: make(chan struct{})}, nil, nil
	})

	_, err := reg.Load(context.Background(), id)
	require.NoError(t, err)

	_, err = reg.Load(context.Background(), id)
	require.Error(t, err)
}

type versionedStubModule struct {
	stubModule
	version int
}

func (s *versionedStubModule) InterfaceVersion() int { return s.version }

func TestRegistryLoadRejectsIncompatibleVersion(t *testing.T) {
	t.Parallel()

	id := module.ID{Class: module.ClassProcessor, Name: "stub-old"}
	reg := module.NewRegistry(nil)
	reg.Register(id, func() (module.Interface, []module.Param, error) {
		return &versionedStubModule{
			stubModule: stubModule{mainRan: make(chan struct{})},
			version:    module.Version - 1,
		}, nil, nil
	})

	_, err := reg.Load(context.Background(), id)
	require.Error(t, err)
	kind, ok := errctx.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errctx.KindModuleIncompatible, kind)

	_, found := reg.Find(module.ClassProcessor, "stub-old")
	require.False(t, found)
}
