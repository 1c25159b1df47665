package query_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/query"
	"github.com/streamforge/corex/runtime"
)

type recordingHandler struct {
	calls []string
}

func (h *recordingHandler) Setup(*runtime.PipelineExecutionContext, any) error {
	h.calls = append(h.calls, "setup")
	return nil
}
func (h *recordingHandler) Start(*runtime.PipelineExecutionContext, runtime.StateManager, uint64) error {
	h.calls = append(h.calls, "start")
	return nil
}
func (h *recordingHandler) Stop(kind runtime.TerminationKind, _ *runtime.PipelineExecutionContext) error {
	h.calls = append(h.calls, "stop:"+kind.String())
	return nil
}

type recordingStage struct {
	calls []string
}

func (s *recordingStage) Setup(*runtime.PipelineExecutionContext) error {
	s.calls = append(s.calls, "setup")
	return nil
}
func (s *recordingStage) Start(*runtime.PipelineExecutionContext) error {
	s.calls = append(s.calls, "start")
	return nil
}
func (s *recordingStage) Open(*runtime.PipelineExecutionContext, int) error { return nil }
func (s *recordingStage) Execute(memsys.Buffer, *runtime.PipelineExecutionContext, int) runtime.ExecutionResult {
	return runtime.Ok
}
func (s *recordingStage) Close(*runtime.PipelineExecutionContext, int) error { return nil }
func (s *recordingStage) Stop(*runtime.PipelineExecutionContext) error {
	s.calls = append(s.calls, "stop")
	return nil
}

type noopSink struct {
	shutdowns int
}

func (s *noopSink) Setup(*runtime.PipelineExecutionContext) error { return nil }
func (s *noopSink) WriteData(memsys.Buffer, int) bool             { return true }
func (s *noopSink) Shutdown() error {
	s.shutdowns++
	return nil
}

type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) Run(*query.Manager) error {
	<-s.release
	return nil
}

var _ = Describe("Manager deploy/terminate protocol", func() {
	It("runs handler setup, stage setup+start, handler start, then starts sources", func() {
		h := &recordingHandler{}
		st := &recordingStage{}
		src := &blockingSource{release: make(chan struct{})}
		defer close(src.release)

		m := query.NewManager(query.Config{})
		stage := runtime.NewExecutableStage(st)

		err := m.Deploy(
			[]query.HandlerBinding{{Handler: h, Ctx: nil, VarID: 1}},
			[]query.StageEntry{{Name: "src", Stage: stage, SourceHandle: src}},
			nil,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.calls).To(Equal([]string{"setup", "start"}))
		Expect(st.calls).To(Equal([]string{"setup", "start"}))
		Expect(m.State()).To(Equal("Deployed"))
	})

	It("rejects a second Deploy call", func() {
		m := query.NewManager(query.Config{})
		Expect(m.Deploy(nil, nil, nil)).To(Succeed())
		Expect(m.Deploy(nil, nil, nil)).To(HaveOccurred())
	})

	It("hard-stops immediately, calling stage and handler Stop", func() {
		h := &recordingHandler{}
		st := &recordingStage{}
		m := query.NewManager(query.Config{})
		stage := runtime.NewExecutableStage(st)

		Expect(m.Deploy(
			[]query.HandlerBinding{{Handler: h}},
			[]query.StageEntry{{Name: "s0", Stage: stage}},
			nil,
		)).To(Succeed())

		Expect(m.Terminate(runtime.HardStop, nil)).NotTo(HaveOccurred())
		Expect(st.calls).To(ContainElement("stop"))
		Expect(h.calls).To(ContainElement("stop:HardStop"))
		Expect(m.State()).To(Equal("Terminated"))
	})

	It("carries a failure cause through Failure termination", func() {
		m := query.NewManager(query.Config{})
		Expect(m.Deploy(nil, nil, nil)).To(Succeed())

		cause := errBoom{}
		Expect(m.Terminate(runtime.Failure, cause)).To(Equal(cause))
		Expect(m.Failure()).To(Equal(cause))
	})

	It("shuts a sink down exactly once its activeProducers count reaches zero", func() {
		sink := &noopSink{}
		entry := query.NewSinkEntry("sink0", sink, nil, 2)

		m := query.NewManager(query.Config{Keepalive: 20 * time.Millisecond, HardTimeout: time.Second})
		Expect(m.Deploy(nil, nil, []*query.SinkEntry{entry})).To(Succeed())

		m.NotifyEndOfStream(entry)
		Expect(sink.shutdowns).To(Equal(0))
		Expect(m.State()).To(Equal("Deployed"))

		m.NotifyEndOfStream(entry)
		Expect(sink.shutdowns).To(Equal(1))

		Eventually(m.State, time.Second).Should(Equal("Terminated"))
	})
})

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
