// Package xerrors defines the error taxonomy shared across the engine's
// subsystems (spec §7): buffer lifetime, pool exhaustion, stage lifecycle
// misuse, watermark violations and channel failures.
package xerrors

import "github.com/pkg/errors"

// Sentinel errors of the taxonomy; the typed errors below unwrap to them, so
// callers can classify a failure with errors.Is / errors.Cause.
var (
	ErrPoolDestroyed      = errors.New("buffer pool destroyed")
	ErrPoolExhausted      = errors.New("buffer pool exhausted")
	ErrInvalidStageState  = errors.New("invalid stage state transition")
	ErrWatermarkViolation = errors.New("watermark violation: tuple is late")
	ErrChannelError       = errors.New("network channel error")
	ErrBufferAccess       = errors.New("buffer access out of range")
	ErrAlreadyMerged      = errors.New("hash join state already merged")
)

// BufferAccessError reports an out-of-range field or tuple access.
type BufferAccessError struct {
	Index, Bound int
	What         string
}

func (e *BufferAccessError) Error() string {
	return errors.Wrapf(ErrBufferAccess, "%s: index %d, bound %d", e.What, e.Index, e.Bound).Error()
}

func (e *BufferAccessError) Unwrap() error { return ErrBufferAccess }

// InvalidStageState reports an out-of-order stage lifecycle call.
type InvalidStageState struct {
	From, Call string
}

func (e *InvalidStageState) Error() string {
	return errors.Wrapf(ErrInvalidStageState, "%s while in state %s", e.Call, e.From).Error()
}

func (e *InvalidStageState) Unwrap() error { return ErrInvalidStageState }

// ChannelError wraps a network transport failure with the partition it
// occurred on, so the QueryManager can attach it to a Failure reconfiguration.
type ChannelError struct {
	Partition string
	Cause     error
}

func (e *ChannelError) Error() string {
	return errors.Wrapf(ErrChannelError, "partition %s: %v", e.Partition, e.Cause).Error()
}

func (e *ChannelError) Unwrap() error { return ErrChannelError }
