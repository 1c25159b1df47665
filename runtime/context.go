package runtime

import (
	"github.com/streamforge/corex/internal/xerrors"
	"github.com/streamforge/corex/memsys"
)

// Successor receives a buffer dispatched by a stage: either a downstream
// ExecutableStage (via its own PipelineExecutionContext wiring) or a Sink.
// Kept minimal and index-free, per spec §9 ("stages hold no direct
// references to their source or sinks").
type Successor interface {
	Accept(buf memsys.Buffer)
}

// PipelineExecutionContext is the host-side plumbing a Stage uses to
// allocate buffers, dispatch output to every registered successor, and
// resolve operator handlers by their compile-time-known index (spec §4.4,
// §9: replace dynamic_cast lookup with index-based resolution).
type PipelineExecutionContext struct {
	worker     *WorkerContext
	successors []Successor
	handlers   []OperatorHandler
	numWorkers int
}

// NewPipelineExecutionContext builds a context bound to one worker, the
// pipeline's statically ordered successor list and handler list.
func NewPipelineExecutionContext(worker *WorkerContext, successors []Successor, handlers []OperatorHandler, numWorkers int) *PipelineExecutionContext {
	return &PipelineExecutionContext{worker: worker, successors: successors, handlers: handlers, numWorkers: numWorkers}
}

// AllocateBuffer draws a buffer from the worker's local pool.
func (c *PipelineExecutionContext) AllocateBuffer() (memsys.Buffer, error) {
	return c.worker.LocalPool.GetBufferBlocking()
}

// DispatchBuffer enqueues buf for every downstream successor registered on
// this pipeline; each successor receives an independent strong handle, and
// the caller's own handle is still valid until it releases it explicitly
// (spec §4.4).
func (c *PipelineExecutionContext) DispatchBuffer(buf memsys.Buffer) {
	for _, s := range c.successors {
		s.Accept(buf.Retain())
	}
}

// GetOperatorHandler resolves the i-th registered handler with a
// compile-time-known type, replacing dynamic_cast-based lookup (spec §9).
func GetOperatorHandler[T OperatorHandler](c *PipelineExecutionContext, index int) (T, error) {
	var zero T
	if index < 0 || index >= len(c.handlers) {
		return zero, &xerrors.BufferAccessError{Index: index, Bound: len(c.handlers), What: "operator handler index"}
	}
	h, ok := c.handlers[index].(T)
	if !ok {
		return zero, xerrors.ErrBufferAccess
	}
	return h, nil
}

// GetBufferManager exposes the worker's local pool for stage-internal use.
func (c *PipelineExecutionContext) GetBufferManager() *memsys.LocalPool { return c.worker.LocalPool }

// GetNumberOfWorkerThreads reports the fleet-wide worker count, needed by
// thread-local structures to size their per-worker slices.
func (c *PipelineExecutionContext) GetNumberOfWorkerThreads() int { return c.numWorkers }

// WorkerContext returns the worker this context is bound to.
func (c *PipelineExecutionContext) WorkerContext() *WorkerContext { return c.worker }
