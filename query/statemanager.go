package query

import "sync"

// stateManager is the Manager's implementation of runtime.StateManager: a
// var-id-keyed registry operator handlers use to publish state other
// handlers sharing the same varID resolve without a type switch (spec §6:
// "start(ctx, stateManager, varId)"), e.g. a windowing.LocalSliceStore
// published by a thread-local pre-aggregation handler and looked up by its
// merging counterpart.
type stateManager struct {
	mu    sync.RWMutex
	state map[uint64]any
}

func newStateManager() *stateManager {
	return &stateManager{state: make(map[uint64]any)}
}

func (s *stateManager) Register(varID uint64, state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[varID] = state
}

func (s *stateManager) Lookup(varID uint64) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state[varID]
	return v, ok
}
