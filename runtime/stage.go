// Package runtime implements the pipeline execution core: worker contexts,
// the ExecutableStage state machine, the PipelineExecutionContext a stage
// uses to allocate buffers and dispatch output, and the OperatorHandler
// contract (spec §4.3, §4.4, §6).
//
// Grounded on aistore's xaction lifecycle (xact.Base / XactTCB in
// xact/xs/tcb.go: Start/Run/TxnAbort with an explicit state progression)
// and on spec §9's prescribed redesign away from dynamic_cast-based handler
// lookup toward small-integer indices resolved at compile time.
package runtime

import (
	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/internal/xerrors"
	"github.com/streamforge/corex/memsys"
)

// ExecutionResult is the sum-typed result of Stage.Execute (spec §4.3,
// redesign note §9: replace exceptions-for-flow with a Result enum).
type ExecutionResult int

const (
	Ok ExecutionResult = iota
	Error
	NeedMoreInput
	Finished
)

func (r ExecutionResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Error:
		return "Error"
	case NeedMoreInput:
		return "NeedMoreInput"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Stage is the pipeline stage contract (spec §6): opaque to the core,
// possibly interpreted IR, bytecode, JIT-generated native code, or
// hand-written. The core only guarantees the call order in stageState below
// and that worker indices lie in [0, NumberOfWorkerThreads).
type Stage interface {
	Setup(ctx *PipelineExecutionContext) error
	Start(ctx *PipelineExecutionContext) error
	Open(ctx *PipelineExecutionContext, worker int) error
	Execute(buf memsys.Buffer, ctx *PipelineExecutionContext, worker int) ExecutionResult
	Close(ctx *PipelineExecutionContext, worker int) error
	Stop(ctx *PipelineExecutionContext) error
}

type stageState int32

const (
	notInitialized stageState = iota
	initialized
	running
	stopped
)

func (s stageState) String() string {
	switch s {
	case notInitialized:
		return "NotInitialized"
	case initialized:
		return "Initialized"
	case running:
		return "Running"
	case stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ExecutableStage wraps a caller-supplied Stage with the state machine from
// spec §4.3: NotInitialized -> Initialized -> Running -> Stopped (terminal).
// open/close bracket batched Execute calls without leaving Running.
//
// The state is an atomic int32: lifecycle calls (setup/start/stop) come
// from a single controlling goroutine (the QueryManager) while Execute is
// read concurrently from every worker, so the field needs to be race-free
// without needing a full mutex around the hot Execute path.
type ExecutableStage struct {
	stage Stage
	state ratomic.Int32
}

func NewExecutableStage(stage Stage) *ExecutableStage {
	es := &ExecutableStage{stage: stage}
	es.state.Store(int32(notInitialized))
	return es
}

func (s *ExecutableStage) State() string { return stageState(s.state.Load()).String() }

func (s *ExecutableStage) Setup(ctx *PipelineExecutionContext) error {
	if !s.state.CAS(int32(notInitialized), int32(initialized)) {
		return &xerrors.InvalidStageState{From: s.State(), Call: "setup"}
	}
	return s.stage.Setup(ctx)
}

func (s *ExecutableStage) Start(ctx *PipelineExecutionContext) error {
	if !s.state.CAS(int32(initialized), int32(running)) {
		return &xerrors.InvalidStageState{From: s.State(), Call: "start"}
	}
	return s.stage.Start(ctx)
}

func (s *ExecutableStage) Open(ctx *PipelineExecutionContext, worker int) error {
	if stageState(s.state.Load()) != running {
		return &xerrors.InvalidStageState{From: s.State(), Call: "open"}
	}
	return s.stage.Open(ctx, worker)
}

func (s *ExecutableStage) Close(ctx *PipelineExecutionContext, worker int) error {
	if stageState(s.state.Load()) != running {
		return &xerrors.InvalidStageState{From: s.State(), Call: "close"}
	}
	return s.stage.Close(ctx, worker)
}

func (s *ExecutableStage) Execute(buf memsys.Buffer, ctx *PipelineExecutionContext, worker int) ExecutionResult {
	if stageState(s.state.Load()) != running {
		return Error
	}
	return s.stage.Execute(buf, ctx, worker)
}

func (s *ExecutableStage) Stop(ctx *PipelineExecutionContext) error {
	if !s.state.CAS(int32(running), int32(stopped)) {
		return &xerrors.InvalidStageState{From: s.State(), Call: "stop"}
	}
	return s.stage.Stop(ctx)
}
