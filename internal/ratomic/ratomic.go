// Package ratomic provides thin, typed wrappers around sync/atomic for the
// counters used throughout the engine: segment refcounts, watermarks,
// sequence numbers and result sequence counters.
package ratomic

import "sync/atomic"

// Int32 is an atomically accessed int32.
type Int32 struct{ v int32 }

func (i *Int32) Load() int32        { return atomic.LoadInt32(&i.v) }
func (i *Int32) Store(n int32)      { atomic.StoreInt32(&i.v, n) }
func (i *Int32) Inc() int32         { return atomic.AddInt32(&i.v, 1) }
func (i *Int32) Dec() int32         { return atomic.AddInt32(&i.v, -1) }
func (i *Int32) Add(n int32) int32  { return atomic.AddInt32(&i.v, n) }
func (i *Int32) CAS(old, new int32) bool {
	return atomic.CompareAndSwapInt32(&i.v, old, new)
}

// Int64 is an atomically accessed int64.
type Int64 struct{ v int64 }

func (i *Int64) Load() int64       { return atomic.LoadInt64(&i.v) }
func (i *Int64) Store(n int64)     { atomic.StoreInt64(&i.v, n) }
func (i *Int64) Inc() int64        { return atomic.AddInt64(&i.v, 1) }
func (i *Int64) Add(n int64) int64 { return atomic.AddInt64(&i.v, n) }

// SetIfGreater atomically stores n when n > current, returning whether it did.
// Used for monotonic watermark and sequence advancement.
func (i *Int64) SetIfGreater(n int64) bool {
	for {
		cur := atomic.LoadInt64(&i.v)
		if n <= cur {
			return false
		}
		if atomic.CompareAndSwapInt64(&i.v, cur, n) {
			return true
		}
	}
}

// Bool is an atomically accessed bool.
type Bool struct{ v int32 }

func (b *Bool) Load() bool { return atomic.LoadInt32(&b.v) != 0 }
func (b *Bool) Store(v bool) {
	if v {
		atomic.StoreInt32(&b.v, 1)
	} else {
		atomic.StoreInt32(&b.v, 0)
	}
}
func (b *Bool) CAS(old, new bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if new {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.v, o, n)
}
