package runtime_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/runtime"
)

type recordingStage struct {
	calls   []string
	execRes runtime.ExecutionResult
}

func (s *recordingStage) Setup(*runtime.PipelineExecutionContext) error {
	s.calls = append(s.calls, "setup")
	return nil
}
func (s *recordingStage) Start(*runtime.PipelineExecutionContext) error {
	s.calls = append(s.calls, "start")
	return nil
}
func (s *recordingStage) Open(*runtime.PipelineExecutionContext, int) error {
	s.calls = append(s.calls, "open")
	return nil
}
func (s *recordingStage) Execute(memsys.Buffer, *runtime.PipelineExecutionContext, int) runtime.ExecutionResult {
	s.calls = append(s.calls, "execute")
	return s.execRes
}
func (s *recordingStage) Close(*runtime.PipelineExecutionContext, int) error {
	s.calls = append(s.calls, "close")
	return nil
}
func (s *recordingStage) Stop(*runtime.PipelineExecutionContext) error {
	s.calls = append(s.calls, "stop")
	return nil
}

var _ = Describe("ExecutableStage", func() {
	var (
		inner *recordingStage
		es    *runtime.ExecutableStage
	)

	BeforeEach(func() {
		inner = &recordingStage{execRes: runtime.Ok}
		es = runtime.NewExecutableStage(inner)
	})

	It("starts NotInitialized", func() {
		Expect(es.State()).To(Equal("NotInitialized"))
	})

	It("follows setup -> start -> (open -> execute -> close)* -> stop", func() {
		Expect(es.Setup(nil)).To(Succeed())
		Expect(es.State()).To(Equal("Initialized"))
		Expect(es.Start(nil)).To(Succeed())
		Expect(es.State()).To(Equal("Running"))
		Expect(es.Open(nil, 0)).To(Succeed())
		Expect(es.Execute(memsys.Buffer{}, nil, 0)).To(Equal(runtime.Ok))
		Expect(es.Close(nil, 0)).To(Succeed())
		Expect(es.Stop(nil)).To(Succeed())
		Expect(es.State()).To(Equal("Stopped"))
		Expect(inner.calls).To(Equal([]string{"setup", "start", "open", "execute", "close", "stop"}))
	})

	It("rejects start before setup", func() {
		err := es.Start(nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects execute before running", func() {
		Expect(es.Execute(memsys.Buffer{}, nil, 0)).To(Equal(runtime.Error))
	})

	It("rejects setup twice", func() {
		Expect(es.Setup(nil)).To(Succeed())
		err := es.Setup(nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects any call after stop (terminal)", func() {
		Expect(es.Setup(nil)).To(Succeed())
		Expect(es.Start(nil)).To(Succeed())
		Expect(es.Stop(nil)).To(Succeed())
		Expect(es.Start(nil)).To(HaveOccurred())
		Expect(es.Execute(memsys.Buffer{}, nil, 0)).To(Equal(runtime.Error))
	})
})
