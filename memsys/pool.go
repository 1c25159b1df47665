package memsys

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/internal/xerrors"
)

// Config configures a BufferPool. Config *loading* (files, env, flags) is
// out of scope for this core (spec §1 non-goals) — callers populate this
// struct directly.
type Config struct {
	SegmentSize int // fixed size of every pooled segment, in bytes
	Capacity    int // total number of pooled segments
}

// BufferPool is the global, process-wide pool of fixed-size segments (spec
// §4.1). Its free list is a buffered channel, the same MPMC-queue-via-channel
// idiom the teacher's transport.Stream uses for its send/completion queues.
type BufferPool struct {
	cfg      Config
	free     chan *segment
	destroyed ratomic.Bool
	log      *zap.Logger
}

// NewBufferPool allocates cfg.Capacity segments of cfg.SegmentSize bytes up
// front. Allocation failure here is fatal (spec §4.1: "failed allocation on
// creation is fatal") — NewBufferPool panics rather than returning a
// half-initialized pool.
func NewBufferPool(cfg Config, log *zap.Logger) *BufferPool {
	if cfg.SegmentSize <= 0 || cfg.Capacity <= 0 {
		panic("memsys: invalid BufferPool config")
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &BufferPool{
		cfg:  cfg,
		free: make(chan *segment, cfg.Capacity),
		log:  log,
	}
	for i := 0; i < cfg.Capacity; i++ {
		p.free <- &segment{data: make([]byte, cfg.SegmentSize), owner: p}
	}
	return p
}

func (p *BufferPool) recycle(seg *segment) {
	seg.numTuples = 0
	seg.originID = 0
	seg.watermarkTS = 0
	seg.sequenceNum = 0
	seg.creationTS = 0
	seg.children = nil
	seg.onRecycle = nil
	seg.refcount.Store(0)
	if p.destroyed.Load() {
		// pool gone: let the segment's memory be collected rather than
		// blocking forever on a channel nobody drains.
		return
	}
	select {
	case p.free <- seg:
	default:
		// capacity exceeded (should not happen: we never issue more
		// segments than we created); drop rather than deadlock.
		p.log.Warn("memsys: free list full on recycle, dropping segment")
	}
}

// GetBufferBlocking blocks until a segment is free. Fails only if the pool
// was destroyed in the meantime.
func (p *BufferPool) GetBufferBlocking() (Buffer, error) {
	if p.destroyed.Load() {
		return Buffer{}, xerrors.ErrPoolDestroyed
	}
	seg, ok := <-p.free
	if !ok || seg == nil {
		return Buffer{}, xerrors.ErrPoolDestroyed
	}
	return p.wrap(seg), nil
}

// GetBufferTimeout is GetBufferBlocking bounded by d; returns ok=false on
// timeout without error.
func (p *BufferPool) GetBufferTimeout(d time.Duration) (buf Buffer, ok bool, err error) {
	if p.destroyed.Load() {
		return Buffer{}, false, xerrors.ErrPoolDestroyed
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case seg, chOK := <-p.free:
		if !chOK || seg == nil {
			return Buffer{}, false, xerrors.ErrPoolDestroyed
		}
		return p.wrap(seg), true, nil
	case <-t.C:
		return Buffer{}, false, nil
	}
}

// GetBufferNonBlocking returns immediately, ok=false if no segment is free.
func (p *BufferPool) GetBufferNonBlocking() (buf Buffer, ok bool) {
	if p.destroyed.Load() {
		return Buffer{}, false
	}
	select {
	case seg, chOK := <-p.free:
		if !chOK || seg == nil {
			return Buffer{}, false
		}
		return p.wrap(seg), true
	default:
		return Buffer{}, false
	}
}

// GetUnpooledBuffer allocates a one-off segment of exactly size bytes, whose
// recycler simply drops the backing slice on refcount->0 instead of
// returning it to the free list.
func (p *BufferPool) GetUnpooledBuffer(size int) (Buffer, bool) {
	if size < 0 {
		return Buffer{}, false
	}
	seg := &segment{data: make([]byte, size), owner: unpooledRecycler{}}
	return p.wrap(seg), true
}

func (p *BufferPool) wrap(seg *segment) Buffer {
	seg.refcount.Store(1)
	return Buffer{seg: seg}
}

// Destroy marks the pool destroyed: subsequent acquisitions fail; buffers
// already in flight remain valid, and a segment released after Destroy is
// dropped (left to the GC) instead of being returned to the free list.
func (p *BufferPool) Destroy() {
	if !p.destroyed.CAS(false, true) {
		return
	}
	close(p.free)
}

// SegmentSize reports the fixed size of segments this pool issues.
func (p *BufferPool) SegmentSize() int { return p.cfg.SegmentSize }

// LocalPool is a per-worker pool that holds an exclusive reservation of N
// segments taken from a parent (global) BufferPool at creation, serving
// acquisitions from that reserve before falling back to the parent (spec
// §4.1 "Local pool design").
type LocalPool struct {
	parent    *BufferPool
	exclusive chan *segment
	destroyed ratomic.Bool
}

// NewLocalPool draws n exclusive segments from parent. Fails (returns nil)
// if the parent cannot supply n segments without blocking indefinitely;
// callers are expected to size worker reserves within the parent's capacity.
func NewLocalPool(parent *BufferPool, n int) (*LocalPool, error) {
	lp := &LocalPool{parent: parent, exclusive: make(chan *segment, n)}
	for i := 0; i < n; i++ {
		buf, ok, err := parent.GetBufferTimeout(0)
		if err != nil {
			lp.release(i)
			return nil, errors.Wrap(err, "memsys: local pool reservation")
		}
		if !ok {
			lp.release(i)
			return nil, errors.New("memsys: parent pool cannot satisfy local reservation")
		}
		// detach the buffer's normal refcount bookkeeping: the reserved
		// segment is owned directly by the local pool's channel now.
		seg := buf.seg
		seg.refcount.Store(0)
		lp.exclusive <- seg
	}
	return lp, nil
}

func (lp *LocalPool) release(got int) {
	for i := 0; i < got; i++ {
		seg := <-lp.exclusive
		seg.owner = lp.parent
		seg.refcount.Store(0)
		lp.parent.recycle(seg)
	}
}

func (lp *LocalPool) recycle(seg *segment) {
	seg.numTuples, seg.originID, seg.watermarkTS, seg.sequenceNum, seg.creationTS = 0, 0, 0, 0, 0
	seg.children, seg.onRecycle = nil, nil
	seg.refcount.Store(0)
	if lp.destroyed.Load() {
		seg.owner = lp.parent
		lp.parent.recycle(seg)
		return
	}
	select {
	case lp.exclusive <- seg:
	default:
		// shouldn't happen; fall back to parent rather than deadlock
		seg.owner = lp.parent
		lp.parent.recycle(seg)
	}
}

// GetBufferBlocking serves from the exclusive reserve first, then the
// parent pool.
func (lp *LocalPool) GetBufferBlocking() (Buffer, error) {
	// prefer the exclusive reserve without blocking on it ahead of the parent
	select {
	case seg, ok := <-lp.exclusive:
		if !ok || seg == nil {
			return Buffer{}, xerrors.ErrPoolDestroyed
		}
		seg.owner = lp
		return lp.wrap(seg), nil
	default:
	}
	select {
	case seg, ok := <-lp.exclusive:
		if !ok || seg == nil {
			return Buffer{}, xerrors.ErrPoolDestroyed
		}
		seg.owner = lp
		return lp.wrap(seg), nil
	case seg, ok := <-lp.parent.free:
		if !ok || seg == nil {
			return Buffer{}, xerrors.ErrPoolDestroyed
		}
		seg.owner = lp.parent
		return lp.wrap(seg), nil
	}
}

// GetBufferTimeout is GetBufferBlocking bounded by d.
func (lp *LocalPool) GetBufferTimeout(d time.Duration) (Buffer, bool, error) {
	if buf, ok := lp.GetBufferNonBlocking(); ok {
		return buf, true, nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case seg, ok := <-lp.exclusive:
		if !ok || seg == nil {
			return Buffer{}, false, xerrors.ErrPoolDestroyed
		}
		seg.owner = lp
		return lp.wrap(seg), true, nil
	case seg, ok := <-lp.parent.free:
		if !ok || seg == nil {
			return Buffer{}, false, xerrors.ErrPoolDestroyed
		}
		seg.owner = lp.parent
		return lp.wrap(seg), true, nil
	case <-t.C:
		return Buffer{}, false, nil
	}
}

// GetBufferNonBlocking mirrors BufferPool's variant across both the
// exclusive reserve and the parent.
func (lp *LocalPool) GetBufferNonBlocking() (Buffer, bool) {
	select {
	case seg, ok := <-lp.exclusive:
		if !ok || seg == nil {
			return Buffer{}, false
		}
		seg.owner = lp
		return lp.wrap(seg), true
	default:
	}
	return lp.parent.GetBufferNonBlocking()
}

func (lp *LocalPool) wrap(seg *segment) Buffer {
	seg.refcount.Store(1)
	return Buffer{seg: seg}
}

// Destroy returns the exclusive reserve to the parent pool.
func (lp *LocalPool) Destroy() {
	if !lp.destroyed.CAS(false, true) {
		return
	}
	close(lp.exclusive)
	for seg := range lp.exclusive {
		seg.owner = lp.parent
		seg.refcount.Store(0)
		lp.parent.recycle(seg)
	}
}
