package processor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dantte-lp/goreflector/internal/errctx"
	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/queue"
)

// FilterParamSample names the processor/filter module's configured byte
// sample, the original's PARAM_FILTER.
const FilterParamSample = "sample"

// filterBaseName is the processor/filter module's compile-time name
// before a Namer disambiguates it ("filter-<id>" in the original).
const filterBaseName = "filter"

// NewFilterInitializer returns a module.Initializer for the reference
// filter processor (§4.5, original_source/filter.c): it masks out every
// client in a fan-out record whose packet buffer byte-for-byte matches
// the configured sample, then always passes the record on.
func NewFilterInitializer(master *Master) module.Initializer {
	return func() (module.Interface, []module.Param, error) {
		return &filterModule{master: master}, []module.Param{
			{Name: FilterParamSample, Desc: "byte sample to match and drop", Default: ""},
		}, nil
	}
}

type filterModule struct {
	master *Master

	sample []byte
	qgroup *queue.Group
}

var _ module.Interface = (*filterModule)(nil)
var _ module.Namer = (*filterModule)(nil)

// Name mirrors filter.c's m_name(): "filter-<id>".
func (f *filterModule) Name(_ *module.Handle, id int) (string, error) {
	return fmt.Sprintf("%s-%d", filterBaseName, id), nil
}

// Init mirrors filter.c's m_init(): register a one-queue queue group on
// the module's input data queue and read the configured sample.
func (f *filterModule) Init(_ context.Context, m *module.Handle) error {
	sample, ok := m.Params().Get(FilterParamSample)
	if !ok || sample == "" {
		return errctx.Wrap(m.ErrCtx(), errctx.KindModuleParameterSet,
			fmt.Errorf("processor/filter: %s parameter not set", FilterParamSample))
	}
	f.sample = []byte(sample)

	f.qgroup = queue.NewGroup()
	f.qgroup.Register(m.InputData)

	m.Logger().Info("pre-start init done")
	return nil
}

// Main mirrors filter.c's m_main(): pop metadata, compare its packet
// buffer against the sample, mask on match, and always pass it on.
func (f *filterModule) Main(ctx context.Context, m *module.Handle) {
	m.Logger().Info("filter started", slog.String("sample", string(f.sample)))

	for {
		select {
		case <-ctx.Done():
			m.Logger().Info("filtering ended")
			return
		default:
		}

		item, ok := m.InputData.Pop()
		if !ok {
			f.qgroup.Wait()
			continue
		}

		meta, ok := item.(*packet.Meta)
		if !ok || meta == nil || meta.Packet == nil {
			m.Logger().Error("received malformed item on input queue")
			continue
		}

		// Compare over min(len(sample), len(buffer)): the original's
		// memcmp(sample, buffer, sizeof(sample)) compares only as many
		// bytes as a pointer's sizeof, a bug this implementation avoids.
		n := len(f.sample)
		if len(meta.Packet.Buffer) < n {
			n = len(meta.Packet.Buffer)
		}
		if bytes.Equal(f.sample[:n], meta.Packet.Buffer[:n]) {
			meta.MaskAll(false)
			m.Logger().Info("removing matched data from output queue")
		}

		f.master.Pass(meta)
	}
}

// Clean mirrors filter.c's m_clean(): free private data, and on a
// genuine (non-restart) teardown restore the pre-Namer base name.
func (f *filterModule) Clean(m *module.Handle, forRestart bool) {
	f.sample = nil
	f.qgroup = nil
	if !forRestart {
		m.Rename(filterBaseName)
	}
}
