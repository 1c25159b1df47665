package transport

import (
	"encoding/binary"
	"io"
)

// EventType is the small enum of upstream-bound control messages carried on
// a partition's reverse event channel (spec §6).
type EventType uint8

const (
	EventEndOfStream EventType = iota
	EventQueryFailure
	EventEpochBarrier
)

// Event is {eventType, payload} (spec §6). EndOfStream carries a
// TerminationKind byte as payload[0] (Graceful=0, HardStop=1); EpochBarrier
// carries an int64 timestamp; QueryFailure carries a UTF-8 reason string.
type Event struct {
	Type    EventType
	Payload []byte
}

// WriteEvent encodes {eventType uint8, payloadLen uint64, payload} onto w.
func WriteEvent(w io.Writer, ev Event) error {
	var hdr [9]byte
	hdr[0] = byte(ev.Type)
	binary.LittleEndian.PutUint64(hdr[1:], uint64(len(ev.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(ev.Payload) == 0 {
		return nil
	}
	_, err := w.Write(ev.Payload)
	return err
}

func ReadEvent(r io.Reader) (Event, error) {
	var hdr [9]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Event{}, err
	}
	n := binary.LittleEndian.Uint64(hdr[1:])
	ev := Event{Type: EventType(hdr[0])}
	if n == 0 {
		return ev, nil
	}
	ev.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, ev.Payload); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func EpochBarrierEvent(ts int64) Event {
	var p [8]byte
	binary.LittleEndian.PutUint64(p[:], uint64(ts))
	return Event{Type: EventEpochBarrier, Payload: p[:]}
}

func EndOfStreamEvent(kindByte byte) Event {
	return Event{Type: EventEndOfStream, Payload: []byte{kindByte}}
}

func QueryFailureEvent(reason string) Event {
	return Event{Type: EventQueryFailure, Payload: []byte(reason)}
}
