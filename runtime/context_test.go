package runtime_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/runtime"
)

type captureSuccessor struct{ got []memsys.Buffer }

func (c *captureSuccessor) Accept(buf memsys.Buffer) { c.got = append(c.got, buf) }

type noopHandler struct{ tag string }

func (noopHandler) Setup(*runtime.PipelineExecutionContext, any) error { return nil }
func (noopHandler) Start(*runtime.PipelineExecutionContext, runtime.StateManager, uint64) error {
	return nil
}
func (noopHandler) Stop(runtime.TerminationKind, *runtime.PipelineExecutionContext) error { return nil }

var _ = Describe("PipelineExecutionContext", func() {
	var (
		pool *memsys.BufferPool
		wc   *runtime.WorkerContext
	)

	BeforeEach(func() {
		pool = memsys.NewBufferPool(memsys.Config{SegmentSize: 32, Capacity: 4}, nil)
		var err error
		wc, err = runtime.NewWorkerContext(0, pool, 2, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = wc.Close()
	})

	It("dispatches an independent strong handle to every successor", func() {
		s1, s2 := &captureSuccessor{}, &captureSuccessor{}
		ctx := runtime.NewPipelineExecutionContext(wc, []runtime.Successor{s1, s2}, nil, 1)
		buf, err := ctx.AllocateBuffer()
		Expect(err).NotTo(HaveOccurred())

		ctx.DispatchBuffer(buf)
		buf.Release()

		Expect(s1.got).To(HaveLen(1))
		Expect(s2.got).To(HaveLen(1))
		s1.got[0].Release()
		s2.got[0].Release()
	})

	It("resolves operator handlers by compile-time index", func() {
		h0 := noopHandler{tag: "first"}
		ctx := runtime.NewPipelineExecutionContext(wc, nil, []runtime.OperatorHandler{h0}, 1)
		got, err := runtime.GetOperatorHandler[noopHandler](ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.tag).To(Equal("first"))
	})

	It("rejects an out-of-range handler index", func() {
		ctx := runtime.NewPipelineExecutionContext(wc, nil, nil, 1)
		_, err := runtime.GetOperatorHandler[noopHandler](ctx, 0)
		Expect(err).To(HaveOccurred())
	})
})
