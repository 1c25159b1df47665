package transport

import (
	"encoding/binary"
	"io"

	"github.com/streamforge/corex/internal/xerrors"
	"github.com/streamforge/corex/memsys"
)

// frameHeader is the fixed-size preamble in front of every frame's payload
// (spec §4.8.2 / §6): {payloadSize, numberOfTuples, originId, watermark,
// creationTimestamp, sequenceNumber, numberOfChildren}, little-endian
// 64-bit fields throughout.
type frameHeader struct {
	PayloadSize       uint64
	NumberOfTuples    uint64
	OriginID          uint64
	Watermark         int64
	CreationTimestamp int64
	SequenceNumber    uint64
	NumberOfChildren  uint64
}

const frameHeaderSize = 7 * 8

func writeFrameHeader(w io.Writer, fh frameHeader) error {
	var buf [frameHeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:], fh.PayloadSize)
	binary.LittleEndian.PutUint64(buf[8:], fh.NumberOfTuples)
	binary.LittleEndian.PutUint64(buf[16:], fh.OriginID)
	binary.LittleEndian.PutUint64(buf[24:], uint64(fh.Watermark))
	binary.LittleEndian.PutUint64(buf[32:], uint64(fh.CreationTimestamp))
	binary.LittleEndian.PutUint64(buf[40:], fh.SequenceNumber)
	binary.LittleEndian.PutUint64(buf[48:], fh.NumberOfChildren)
	_, err := w.Write(buf[:])
	return err
}

func readFrameHeader(r io.Reader) (frameHeader, error) {
	var buf [frameHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return frameHeader{}, err
	}
	return frameHeader{
		PayloadSize:       binary.LittleEndian.Uint64(buf[0:]),
		NumberOfTuples:    binary.LittleEndian.Uint64(buf[8:]),
		OriginID:          binary.LittleEndian.Uint64(buf[16:]),
		Watermark:         int64(binary.LittleEndian.Uint64(buf[24:])),
		CreationTimestamp: int64(binary.LittleEndian.Uint64(buf[32:])),
		SequenceNumber:    binary.LittleEndian.Uint64(buf[40:]),
		NumberOfChildren:  binary.LittleEndian.Uint64(buf[48:]),
	}, nil
}

// EncodeBuffer writes buf as the multipart frame sequence from spec §4.8.2:
// a header frame, one {child-header, child-payload} pair per attached
// child (in order), then the parent payload frame. A zero-tuple buffer is
// a no-op success (spec §8 boundary behavior).
func EncodeBuffer(w io.Writer, buf memsys.Buffer) error {
	if buf.NumberOfTuples() == 0 {
		return nil
	}

	numChildren := buf.NumberOfChildren()
	if err := writeFrameHeader(w, frameHeader{
		PayloadSize:       uint64(buf.Size()),
		NumberOfTuples:    uint64(buf.NumberOfTuples()),
		OriginID:          buf.OriginID(),
		Watermark:         buf.WatermarkTS(),
		CreationTimestamp: buf.CreationTS(),
		SequenceNumber:    buf.SequenceNumber(),
		NumberOfChildren:  uint64(numChildren),
	}); err != nil {
		return err
	}

	for i := 0; i < numChildren; i++ {
		child, err := buf.LoadChild(i)
		if err != nil {
			return err
		}
		if err := writeFrameHeader(w, frameHeader{
			PayloadSize:       uint64(len(child.Data())),
			NumberOfTuples:    1,
			OriginID:          buf.OriginID(),
			Watermark:         buf.WatermarkTS(),
			CreationTimestamp: buf.CreationTS(),
			SequenceNumber:    buf.SequenceNumber(),
			NumberOfChildren:  0,
		}); err != nil {
			child.Release()
			return err
		}
		_, err = w.Write(child.Data())
		child.Release()
		if err != nil {
			return err
		}
	}

	_, err := w.Write(buf.Data())
	return err
}

// DecodeBuffer reassembles a buffer encoded by EncodeBuffer, allocating the
// parent and every child from pool, attaching children in their original
// order and restoring metadata. Loss of any frame is a fatal *xerrors.ChannelError
// (spec §4.8.3: "loss of any frame within a multipart message is a fatal
// channel error").
func DecodeBuffer(r io.Reader, pool *memsys.BufferPool, partition string) (memsys.Buffer, error) {
	hdr, err := readFrameHeader(r)
	if err == io.EOF {
		// nothing was sent: the zero-tuple no-op case (spec §8).
		return memsys.Buffer{}, nil
	}
	if err != nil {
		return memsys.Buffer{}, &xerrors.ChannelError{Partition: partition, Cause: err}
	}

	children := make([]memsys.Buffer, 0, hdr.NumberOfChildren)
	for i := uint64(0); i < hdr.NumberOfChildren; i++ {
		chdr, err := readFrameHeader(r)
		if err != nil {
			releaseAll(children)
			return memsys.Buffer{}, &xerrors.ChannelError{Partition: partition, Cause: err}
		}
		child, ok := pool.GetUnpooledBuffer(int(chdr.PayloadSize))
		if !ok {
			releaseAll(children)
			return memsys.Buffer{}, &xerrors.ChannelError{Partition: partition, Cause: xerrors.ErrPoolExhausted}
		}
		if _, err := io.ReadFull(r, child.Data()); err != nil {
			child.Release()
			releaseAll(children)
			return memsys.Buffer{}, &xerrors.ChannelError{Partition: partition, Cause: err}
		}
		children = append(children, child)
	}

	parent, ok := pool.GetUnpooledBuffer(int(hdr.PayloadSize))
	if !ok {
		releaseAll(children)
		return memsys.Buffer{}, &xerrors.ChannelError{Partition: partition, Cause: xerrors.ErrPoolExhausted}
	}
	if _, err := io.ReadFull(r, parent.Data()); err != nil {
		parent.Release()
		releaseAll(children)
		return memsys.Buffer{}, &xerrors.ChannelError{Partition: partition, Cause: err}
	}

	parent.Stamp(hdr.OriginID, hdr.SequenceNumber, hdr.Watermark)
	parent.SetCreationTS(hdr.CreationTimestamp)
	parent.SetNumberOfTuples(int(hdr.NumberOfTuples))
	for _, c := range children {
		parent.AttachChild(c)
		c.Release() // parent now holds the sole strong reference
	}
	return parent, nil
}

func releaseAll(bufs []memsys.Buffer) {
	for _, b := range bufs {
		b.Release()
	}
}
