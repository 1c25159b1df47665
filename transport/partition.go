// Package transport implements the zero-copy buffer-shipment wire protocol
// from spec §4.8: per-partition addressing, the header+children+parent
// multipart frame sequence, and the sending/receiving Stream.
//
// Grounded directly on aistore's transport package (streaming object-based
// transport over HTTP, `other_examples/...transport-api.go.go` and
// `...transport-send.go.go`): a Stream per destination pumping a buffered
// "send queue" (SQ) channel drained by a sendLoop goroutine, paired with a
// completion queue (SCQ) goroutine. The HTTP/TCP transport itself is
// realized over valyala/fasthttp rather than net/http, per this module's
// domain-stack choice; optional lz4 compression mirrors the teacher's
// lz4Stream wrapping of the outgoing body.
package transport

import "strconv"

// Partition identifies one inter-operator stream (spec §4.8.1, §6 wire
// protocol channel identifier).
type Partition struct {
	QueryID        uint64
	OperatorID     uint64
	PartitionID    uint32
	SubpartitionID uint32
}

// String renders the channel identifier "queryId::operatorId::partitionId::subpartitionId"
// (spec §6).
func (p Partition) String() string {
	return strconv.FormatUint(p.QueryID, 10) + "::" +
		strconv.FormatUint(p.OperatorID, 10) + "::" +
		strconv.FormatUint(uint64(p.PartitionID), 10) + "::" +
		strconv.FormatUint(uint64(p.SubpartitionID), 10)
}

// Less gives Partition a total lexicographic order over (QueryID,
// OperatorID, PartitionID, SubpartitionID).
func (p Partition) Less(o Partition) bool {
	if p.QueryID != o.QueryID {
		return p.QueryID < o.QueryID
	}
	if p.OperatorID != o.OperatorID {
		return p.OperatorID < o.OperatorID
	}
	if p.PartitionID != o.PartitionID {
		return p.PartitionID < o.PartitionID
	}
	return p.SubpartitionID < o.SubpartitionID
}
