// Package bundle multiplexes transport.Streams by destination, mirroring
// the teacher's transport/bundle package (other_examples' stream_bundle.go):
// there, a Streams bundle keeps one robin of streams per cluster node,
// resynced as cluster membership changes. This engine has no cluster
// membership to track, so Mover simplifies that down to its essential
// shape: one Stream per (Partition, destination), looked up and created
// lazily, giving every partition its own backpressured send queue for free
// from Go channel semantics (spec §4.8.5).
package bundle

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/internal/xerrors"
	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/transport"
)

// idleTick bounds how often the idle-GC sweep wakes up; it is independent
// of extra.IdleTeardown so a short teardown window still gets noticed
// promptly without spinning a sub-millisecond ticker.
const idleTick = 200 * time.Millisecond

// streamEntry pairs a lazily-created Stream with the last time it was
// handed a buffer, for the idle-GC sweep below.
type streamEntry struct {
	stream   *transport.Stream
	lastUsed ratomic.Int64 // unix nano
}

// Mover is a runtime.ChannelRegistry: it resolves a partition to a sender.
type Mover struct {
	mu        sync.RWMutex
	client    *fasthttp.Client
	burst     int
	extra     transport.Extra
	log       *zap.Logger
	streams   map[transport.Partition]*streamEntry
	endpoints map[transport.Partition]string

	stopGC chan struct{}
	gcDone chan struct{}
}

// NewMover builds a Mover and, when extra.IdleTeardown > 0, starts the
// idle-GC sweep: a stream that has carried no traffic for IdleTeardown is
// torn down and removed, mirroring the teacher's StreamCollector house-
// keeping (it terminates an idle session "and renews upon the very next
// send"). The next streamFor for that partition lazily reopens it.
func NewMover(client *fasthttp.Client, burst int, extra transport.Extra, log *zap.Logger) *Mover {
	if log == nil {
		log = zap.NewNop()
	}
	if client == nil {
		client = &fasthttp.Client{}
	}
	m := &Mover{
		client:    client,
		burst:     burst,
		extra:     extra,
		log:       log,
		streams:   make(map[transport.Partition]*streamEntry),
		endpoints: make(map[transport.Partition]string),
	}
	if extra.IdleTeardown > 0 {
		m.stopGC = make(chan struct{})
		m.gcDone = make(chan struct{})
		go m.idleGC()
	}
	return m
}

func (m *Mover) idleGC() {
	defer close(m.gcDone)
	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopGC:
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

func (m *Mover) sweepIdle() {
	now := time.Now()
	var idle []*transport.Stream

	m.mu.Lock()
	for p, e := range m.streams {
		if now.Sub(time.Unix(0, e.lastUsed.Load())) < m.extra.IdleTeardown {
			continue
		}
		idle = append(idle, e.stream)
		delete(m.streams, p)
	}
	m.mu.Unlock()

	for _, s := range idle {
		go s.Fin()
	}
	if len(idle) > 0 {
		m.log.Debug("idle-GC tore down streams", zap.Int("count", len(idle)))
	}
}

// Register binds partition to a destination URL; subsequent Send calls for
// that partition lazily open a Stream to it.
func (m *Mover) Register(partition transport.Partition, dstURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[partition] = dstURL
}

func (m *Mover) streamFor(partition transport.Partition) (*transport.Stream, error) {
	m.mu.RLock()
	e, ok := m.streams[partition]
	m.mu.RUnlock()
	if ok {
		e.lastUsed.Store(time.Now().UnixNano())
		return e.stream, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.streams[partition]; ok {
		e.lastUsed.Store(time.Now().UnixNano())
		return e.stream, nil
	}
	dstURL, ok := m.endpoints[partition]
	if !ok {
		return nil, &xerrors.ChannelError{Partition: partition.String(), Cause: xerrors.ErrChannelError}
	}
	s := transport.NewStream(partition, dstURL, m.client, m.burst, m.extra, m.log)
	e := &streamEntry{stream: s}
	e.lastUsed.Store(time.Now().UnixNano())
	m.streams[partition] = e
	return s, nil
}

// Lookup implements runtime.ChannelRegistry.
func (m *Mover) Lookup(partitionKey string) (func(memsys.Buffer) error, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p, e := range m.streams {
		if p.String() == partitionKey {
			entry := e
			return func(buf memsys.Buffer) error {
				entry.lastUsed.Store(time.Now().UnixNano())
				return entry.stream.Send(buf, nil)
			}, true
		}
	}
	return nil, false
}

// Send ships buf on partition's stream, opening one on first use.
func (m *Mover) Send(partition transport.Partition, buf memsys.Buffer, cb func(error)) error {
	s, err := m.streamFor(partition)
	if err != nil {
		return err
	}
	return s.Send(buf, cb)
}

// Close stops the idle-GC sweep (if running), then drains and terminates
// every open stream (spec §4.5 graceful teardown: finish in-flight sends
// before stopping).
func (m *Mover) Close() {
	if m.stopGC != nil {
		close(m.stopGC)
		<-m.gcDone
	}

	m.mu.Lock()
	streams := make([]*transport.Stream, 0, len(m.streams))
	for _, e := range m.streams {
		streams = append(streams, e.stream)
	}
	m.streams = make(map[transport.Partition]*streamEntry)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s *transport.Stream) {
			defer wg.Done()
			s.Fin()
		}(s)
	}
	wg.Wait()
}
