// Package query implements the QueryManager named in spec §4.5: it binds
// sources, pipeline stages and sinks into a deployed plan, runs the
// deploy/terminate protocol, and routes reconfiguration messages.
//
// Grounded on aistore's xaction lifecycle: XactTCB (xact/xs/tcb.go) plays
// almost exactly this role for a single "copy bucket" xaction — Start sets
// up a DataMover and refcounts remote senders, Run opens the mover and
// blocks on the local job, then waits out stragglers with Quiesce before
// closing. Manager generalizes that to an arbitrary stage DAG: it is
// xreg (renewal/registration) and XactTCB (lifecycle) combined into one
// type, since this engine has no separate global registry process.
package query

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/runtime"
)

// managerState mirrors the coarse lifecycle a deployed query moves through;
// distinct from runtime.stageState, which tracks one stage.
type managerState int32

const (
	notDeployed managerState = iota
	deployed
	draining
	terminated
)

// Manager is the QueryManager of spec §4.5. One Manager owns exactly one
// deployed query plan.
type Manager struct {
	QueryID uuid.UUID

	log   *zap.Logger
	state ratomic.Int32

	handlers []HandlerBinding
	states   *stateManager

	stages []StageEntry
	sinks  []*SinkEntry

	buffersPerEpoch uint64
	onEpoch         func(watermark int64)
	onFailure       func(err error)

	quiesce *qcb

	mu        sync.Mutex
	failure   error
	sourcesWG sync.WaitGroup
}

// Config bundles the tunables the coordinator supplies at deploy time.
type Config struct {
	Log             *zap.Logger
	BuffersPerEpoch uint64             // 0 disables epoch reporting
	OnEpoch         func(watermark int64)
	OnFailure       func(err error)
	Keepalive       time.Duration // max idle gap before a drained query is considered quiesced
	HardTimeout     time.Duration // upper bound on how long graceful drain waits for stragglers
}

// NewManager allocates an undeployed Manager with a fresh query id.
func NewManager(cfg Config) *Manager {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	keepalive := cfg.Keepalive
	if keepalive <= 0 {
		keepalive = 2 * time.Second
	}
	hardTimeout := cfg.HardTimeout
	if hardTimeout <= 0 {
		hardTimeout = 30 * time.Second
	}
	m := &Manager{
		QueryID:         uuid.New(),
		log:             log,
		states:          newStateManager(),
		buffersPerEpoch: cfg.BuffersPerEpoch,
		onEpoch:         cfg.OnEpoch,
		onFailure:       cfg.OnFailure,
		quiesce:         newQCB(keepalive, hardTimeout),
	}
	m.state.Store(int32(notDeployed))
	return m
}

// Deploy runs the three-step protocol from spec §4.5:
//  1. instantiate+setup every operator handler;
//  2. setup then start every stage in the caller-supplied order (the
//     caller is responsible for ordering stages topologically with
//     sources last, so that every consumer is already running before any
//     source begins producing);
//  3. start every source, each in its own goroutine.
func (m *Manager) Deploy(handlers []HandlerBinding, stages []StageEntry, sinks []*SinkEntry) error {
	if !m.state.CAS(int32(notDeployed), int32(deployed)) {
		return &stateError{from: m.state.Load(), op: "deploy"}
	}
	m.handlers = handlers
	m.stages = stages
	m.sinks = sinks
	m.quiesce.addProducers(int32(len(sinks)))

	for _, h := range handlers {
		if err := h.Handler.Setup(h.Ctx, h.Extra); err != nil {
			return err
		}
	}
	for _, se := range stages {
		if err := se.Stage.Setup(se.Ctx); err != nil {
			return err
		}
		if err := se.Stage.Start(se.Ctx); err != nil {
			return err
		}
	}
	for _, h := range handlers {
		if err := h.Handler.Start(h.Ctx, m.states, h.VarID); err != nil {
			return err
		}
	}
	for _, se := range sinks {
		if err := se.Sink.Setup(se.Ctx); err != nil {
			return err
		}
	}

	for _, se := range stages {
		if se.SourceHandle == nil {
			continue
		}
		src := se.SourceHandle
		m.sourcesWG.Add(1)
		go func() {
			defer m.sourcesWG.Done()
			if err := src.Run(m); err != nil {
				m.log.Error("source failed", zap.Error(err))
				m.Terminate(runtime.Failure, err)
			}
		}()
	}
	return nil
}

// Touch records that a buffer flowed through the query, resetting the
// quiescence idle timer (spec supplement: graceful drain requires no
// buffers for a keepalive window, not just a zero refcount).
func (m *Manager) Touch() { m.quiesce.touch() }

// RecordSinkWrite counts one buffer written by sink and, every
// buffersPerEpoch buffers, reports the current watermark upstream so the
// coordinator can trim logs (spec §4.5 epoch/watermark notification).
func (m *Manager) RecordSinkWrite(sink *SinkEntry, watermark int64) {
	m.Touch()
	if m.buffersPerEpoch == 0 || m.onEpoch == nil {
		return
	}
	m.mu.Lock()
	sink.writes++
	fire := sink.writes%m.buffersPerEpoch == 0
	m.mu.Unlock()
	if fire {
		m.onEpoch(watermark)
	}
}

// NotifyEndOfStream records one EoS reconfiguration arriving at sink,
// decrementing its activeProducers counter (spec §4.5 refcount rule). The
// sink is shut down exactly once its own counter reaches zero; once every
// sink in the plan has reached zero, graceful termination begins
// automatically.
func (m *Manager) NotifyEndOfStream(sink *SinkEntry) {
	m.Touch()
	left := sink.producers.Dec()
	if left > 0 {
		return
	}
	if !sink.done.CAS(false, true) {
		return // another EoS already drained this sink to zero
	}
	if err := sink.Sink.Shutdown(); err != nil {
		m.log.Warn("sink shutdown error", zap.String("sink", sink.Name), zap.Error(err))
	}
	if m.quiesce.refc.Dec() <= 0 {
		go m.Terminate(runtime.Graceful, nil)
	}
}

// Terminate runs the termination protocol for kind (spec §4.5):
//
//   - Graceful waits for quiescence (no traffic for the keepalive window
//     and zero remaining producers) before stopping every stage in order,
//     letting windowed stages flush final results from their own Stop.
//   - HardStop and Failure stop every stage immediately, dropping
//     whatever is in flight.
//
// Terminate is idempotent: only the first caller performs the teardown.
func (m *Manager) Terminate(kind runtime.TerminationKind, cause error) error {
	if !m.state.CAS(int32(deployed), int32(draining)) {
		return nil // not deployed, or already draining/terminated
	}

	if kind == runtime.Graceful {
		m.quiesce.wait(100 * time.Millisecond)
	}

	m.mu.Lock()
	if cause != nil && m.failure == nil {
		m.failure = cause
	}
	m.mu.Unlock()

	for _, se := range m.stages {
		if err := se.Stage.Stop(se.Ctx); err != nil {
			m.log.Warn("stage stop error", zap.String("stage", se.Name), zap.Error(err))
		}
	}
	for _, h := range m.handlers {
		if err := h.Handler.Stop(kind, h.Ctx); err != nil {
			m.log.Warn("handler stop error", zap.Error(err))
		}
	}
	for _, se := range m.sinks {
		if se.done.CAS(false, true) {
			_ = se.Sink.Shutdown()
		}
	}

	m.state.Store(int32(terminated))
	if kind == runtime.Failure && m.onFailure != nil {
		m.onFailure(cause)
	}
	return cause
}

// Failure returns the first error that triggered termination, if any.
func (m *Manager) Failure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// State reports the coarse lifecycle state, for tests and diagnostics.
func (m *Manager) State() string {
	switch managerState(m.state.Load()) {
	case notDeployed:
		return "NotDeployed"
	case deployed:
		return "Deployed"
	case draining:
		return "Draining"
	case terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

type stateError struct {
	from int32
	op   string
}

func (e *stateError) Error() string {
	return "query: invalid manager state for " + e.op
}
