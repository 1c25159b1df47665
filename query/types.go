package query

import (
	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/runtime"
)

// Source is the contract named in spec §6: it produces buffers, stamps
// them with (originId, sequenceNumber, watermark, creationTs) and submits
// them downstream, and owns per-origin sequence monotonicity. Run blocks
// until the source is told to stop or its upstream adapter is exhausted;
// the Manager starts it in its own goroutine (spec §4.5 deploy step 3).
type Source interface {
	Run(qm *Manager) error
}

// Sink is the contract named in spec §6: setup, writeData, shutdown, plus
// the EoS refcount bookkeeping in §4.5.
type Sink interface {
	Setup(ctx *runtime.PipelineExecutionContext) error
	WriteData(buf memsys.Buffer, worker int) bool
	Shutdown() error
}

// HandlerBinding pairs one OperatorHandler with the pipeline context and
// var-id it should start under (spec §4.4: "handlers are registered at
// pipeline compile time in a fixed order").
type HandlerBinding struct {
	Handler runtime.OperatorHandler
	Extra   any
	Ctx     *runtime.PipelineExecutionContext
	VarID   uint64
}

// StageEntry is one node of the deployed plan. Stages are listed in the
// order the Manager should Setup+Start them in (spec §4.5 step 2:
// "topological order, sources last"); SourceHandle is non-nil exactly for
// the stages wrapping a Source.
type StageEntry struct {
	Name         string
	Stage        *runtime.ExecutableStage
	Ctx          *runtime.PipelineExecutionContext
	NumWorkers   int
	SourceHandle Source
}

// SinkEntry is one terminal consumer of the plan, tracking the refcounted
// activeProducers counter from spec §4.5: every upstream origin feeding
// this sink counts as one producer; each EoS reconfiguration the sink
// observes decrements it, and it is shut down exactly once the count
// reaches zero.
type SinkEntry struct {
	Name string
	Sink Sink
	Ctx  *runtime.PipelineExecutionContext

	producers ratomic.Int32
	done      ratomic.Bool
	writes    uint64
}

// NewSinkEntry builds a SinkEntry tracking activeProducers initial
// upstream producers (origins) feeding it.
func NewSinkEntry(name string, sink Sink, ctx *runtime.PipelineExecutionContext, activeProducers int32) *SinkEntry {
	se := &SinkEntry{Name: name, Sink: sink, Ctx: ctx}
	se.producers.Store(activeProducers)
	return se
}
