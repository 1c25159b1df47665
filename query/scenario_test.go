package query_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/query"
	"github.com/streamforge/corex/runtime"
	"github.com/streamforge/corex/windowing"
)

var rowSchema = memsys.NewSchema(memsys.RowMajor,
	memsys.Field{Name: "id", Type: memsys.Int64},
	memsys.Field{Name: "one", Type: memsys.Int64},
)

// filterLess6 is a hand-written Stage implementing `filter(id < 6)`,
// standing in for the opaque compiled stage a real query plan would supply
// (spec §6: stages are opaque to the core).
type filterLess6 struct{}

func (f *filterLess6) Setup(*runtime.PipelineExecutionContext) error     { return nil }
func (f *filterLess6) Start(*runtime.PipelineExecutionContext) error     { return nil }
func (f *filterLess6) Open(*runtime.PipelineExecutionContext, int) error { return nil }
func (f *filterLess6) Execute(buf memsys.Buffer, ctx *runtime.PipelineExecutionContext, worker int) runtime.ExecutionResult {
	inCapacity := rowSchema.Capacity(buf.Size())
	out, err := ctx.AllocateBuffer()
	if err != nil {
		return runtime.Error
	}
	outCapacity := rowSchema.Capacity(out.Size())
	n := 0
	for i := 0; i < inCapacity && i < buf.NumberOfTuples(); i++ {
		rec := memsys.Record{Buf: buf, Schema: rowSchema, TupleIndex: i, Capacity: inCapacity}
		id, err := rec.GetInt64("id")
		if err != nil {
			out.Release()
			return runtime.Error
		}
		if id >= 6 {
			continue
		}
		dst := memsys.Record{Buf: out, Schema: rowSchema, TupleIndex: n, Capacity: outCapacity}
		_ = dst.SetInt64("id", id)
		one, _ := rec.GetInt64("one")
		_ = dst.SetInt64("one", one)
		n++
	}
	out.SetNumberOfTuples(n)
	ctx.DispatchBuffer(out)
	out.Release()
	return runtime.Ok
}
func (f *filterLess6) Close(*runtime.PipelineExecutionContext, int) error { return nil }
func (f *filterLess6) Stop(*runtime.PipelineExecutionContext) error      { return nil }

// captureSink is both a runtime.Successor (wired as the filter stage's
// downstream) and a query.Sink (wired into the deployed plan for the
// refcount/shutdown half of the protocol).
type captureSink struct {
	got       []memsys.Buffer
	shutdowns int
}

func (s *captureSink) Accept(buf memsys.Buffer)                      { s.got = append(s.got, buf) }
func (s *captureSink) Setup(*runtime.PipelineExecutionContext) error { return nil }
func (s *captureSink) WriteData(memsys.Buffer, int) bool             { return true }
func (s *captureSink) Shutdown() error {
	s.shutdowns++
	return nil
}

var _ = Describe("end-to-end filter (spec scenario S1)", func() {
	It("emits exactly 6 tuples (id=0..5, one=1) from a 10-tuple input", func() {
		pool := memsys.NewBufferPool(memsys.Config{SegmentSize: 1024, Capacity: 4}, nil)
		wc, err := runtime.NewWorkerContext(0, pool, 2, nil)
		Expect(err).NotTo(HaveOccurred())
		defer wc.Close()

		sink := &captureSink{}
		filterCtx := runtime.NewPipelineExecutionContext(wc, []runtime.Successor{sink}, nil, 1)
		filter := &filterLess6{}
		stage := runtime.NewExecutableStage(filter)

		m := query.NewManager(query.Config{})
		sinkEntry := query.NewSinkEntry("sink0", sink, filterCtx, 1)
		Expect(m.Deploy(nil, []query.StageEntry{{Name: "filter", Stage: stage, Ctx: filterCtx}}, []*query.SinkEntry{sinkEntry})).To(Succeed())

		in, err := filterCtx.AllocateBuffer()
		Expect(err).NotTo(HaveOccurred())
		inCapacity := rowSchema.Capacity(in.Size())
		in.SetNumberOfTuples(10)
		for i := int64(0); i < 10; i++ {
			rec := memsys.Record{Buf: in, Schema: rowSchema, TupleIndex: int(i), Capacity: inCapacity}
			Expect(rec.SetInt64("id", i)).To(Succeed())
			Expect(rec.SetInt64("one", 1)).To(Succeed())
		}

		res := stage.Execute(in, filterCtx, 0)
		in.Release()
		Expect(res).To(Equal(runtime.Ok))

		Expect(sink.got).To(HaveLen(1))
		out := sink.got[0]
		Expect(out.NumberOfTuples()).To(Equal(6))
		outCapacity := rowSchema.Capacity(out.Size())
		for i := 0; i < 6; i++ {
			rec := memsys.Record{Buf: out, Schema: rowSchema, TupleIndex: i, Capacity: outCapacity}
			id, err := rec.GetInt64("id")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(int64(i)))
			one, err := rec.GetInt64("one")
			Expect(err).NotTo(HaveOccurred())
			Expect(one).To(Equal(int64(1)))
		}
		out.Release()

		m.NotifyEndOfStream(sinkEntry)
		Expect(sink.shutdowns).To(Equal(1))
	})
})

// windowFlushStage wraps a windowing.LocalSliceStore behind the Stage
// contract: Execute contributes incoming tuples to the thread-local store;
// Stop (called by graceful termination) force-drains whatever slice is
// still open, exactly the "windows emit final results" behavior spec §4.5
// describes for graceful stop.
type windowFlushStage struct {
	store     *windowing.LocalSliceStore
	agg       windowing.Aggregation
	resultSeq ratomic.Int64
	emitted   []*windowing.Slice
}

func (w *windowFlushStage) Setup(*runtime.PipelineExecutionContext) error     { return nil }
func (w *windowFlushStage) Start(*runtime.PipelineExecutionContext) error     { return nil }
func (w *windowFlushStage) Open(*runtime.PipelineExecutionContext, int) error { return nil }
func (w *windowFlushStage) Execute(memsys.Buffer, *runtime.PipelineExecutionContext, int) runtime.ExecutionResult {
	return runtime.Ok
}
func (w *windowFlushStage) Close(*runtime.PipelineExecutionContext, int) error { return nil }
func (w *windowFlushStage) Stop(*runtime.PipelineExecutionContext) error {
	for _, tr := range w.store.DrainAll(&w.resultSeq) {
		w.emitted = append(w.emitted, tr.Slice)
	}
	return nil
}

var _ = Describe("graceful stop drains windows (spec scenario S6)", func() {
	It("flushes the open window exactly once when the query terminates gracefully", func() {
		agg := windowing.Aggregation{
			Init:    func() any { return int64(0) },
			Combine: func(acc, v any) any { return acc.(int64) + v.(int64) },
			Merge:   func(a, b any) any { return a.(int64) + b.(int64) },
			Finish:  func(acc any) any { return acc },
		}
		store := windowing.NewLocalSliceStore(5, false)
		sl, err := store.FindSliceByTs(0)
		Expect(err).NotTo(HaveOccurred())
		sl.UpsertNonKeyed(int64(7), agg)

		wf := &windowFlushStage{store: store, agg: agg}
		stage := runtime.NewExecutableStage(wf)

		m := query.NewManager(query.Config{Keepalive: 1, HardTimeout: 1})
		Expect(m.Deploy(nil, []query.StageEntry{{Name: "window", Stage: stage}}, nil)).To(Succeed())

		Expect(m.Terminate(runtime.Graceful, nil)).NotTo(HaveOccurred())

		Expect(wf.emitted).To(HaveLen(1))
		Expect(wf.emitted[0].Start).To(Equal(int64(0)))
		Expect(wf.emitted[0].End).To(Equal(int64(5)))
		Expect(wf.emitted[0].NonKeyed().(int64)).To(Equal(int64(7)))
	})
})
