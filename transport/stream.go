package transport

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/pierrec/lz4/v3"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/streamforge/corex/internal/xerrors"
	"github.com/streamforge/corex/memsys"
)

// sendItem is one queued buffer send, paired with the completion callback
// (spec §4.8.2's zero-copy release callback) the teacher calls ObjSentCB.
type sendItem struct {
	buf memsys.Buffer
	cb  func(error)
}

// Extra mirrors the teacher's transport.Extra: advanced, optional
// per-stream knobs.
type Extra struct {
	Compress     bool
	IdleTeardown time.Duration
	WaitTime     time.Duration // spec §4.8.4: connect-retry backoff
	RetryTimes   int           // spec §4.8.4: connect-retry attempts
}

// Stream ships buffers for one Partition to one destination URL: a send
// queue (SQ, workCh) drained by sendLoop, paired with a completion queue
// (SCQ, cmplCh) drained by cmplLoop — the same split FIFO the teacher's
// transport.Stream uses, so Send() never blocks on network I/O itself, only
// on SQ backpressure (spec §4.8.5).
type Stream struct {
	partition Partition
	dstURL    string
	client    *fasthttp.Client
	extra     Extra
	log       *zap.Logger

	workCh chan sendItem
	cmplCh chan sendItem

	mu      sync.Mutex
	failed  bool
	failure error

	wg sync.WaitGroup
}

// NewStream starts sendLoop/cmplLoop immediately, queue depth burst.
func NewStream(partition Partition, dstURL string, client *fasthttp.Client, burst int, extra Extra, log *zap.Logger) *Stream {
	if log == nil {
		log = zap.NewNop()
	}
	if burst <= 0 {
		burst = 1
	}
	s := &Stream{
		partition: partition,
		dstURL:    dstURL,
		client:    client,
		extra:     extra,
		log:       log,
		workCh:    make(chan sendItem, burst),
		cmplCh:    make(chan sendItem, burst),
	}
	s.wg.Add(2)
	go s.sendLoop()
	go s.cmplLoop()
	return s
}

// Send retains buf for the wire and enqueues it; it blocks once the SQ is
// full, which is the per-partition backpressure spec §4.8.5 asks for.
func (s *Stream) Send(buf memsys.Buffer, cb func(error)) error {
	s.mu.Lock()
	failed := s.failed
	s.mu.Unlock()
	if failed {
		return &xerrors.ChannelError{Partition: s.partition.String(), Cause: s.failure}
	}
	s.workCh <- sendItem{buf: buf.Retain(), cb: cb}
	return nil
}

// Fin closes the send queue and waits for in-flight sends to complete.
func (s *Stream) Fin() {
	close(s.workCh)
	s.wg.Wait()
}

func (s *Stream) sendLoop() {
	defer s.wg.Done()
	defer close(s.cmplCh)
	for item := range s.workCh {
		err := s.doSendWithRetry(item.buf)
		s.cmplCh <- sendItem{buf: item.buf, cb: item.cb}
		if err != nil {
			s.mu.Lock()
			s.failed = true
			s.failure = err
			s.mu.Unlock()
			s.log.Warn("stream send failed, channel failed", zap.String("partition", s.partition.String()), zap.Error(err))
			return
		}
	}
}

func (s *Stream) cmplLoop() {
	defer s.wg.Done()
	for item := range s.cmplCh {
		item.buf.Release()
		if item.cb != nil {
			item.cb(nil)
		}
	}
}

// doSendWithRetry implements spec §4.8.4: waitTime/retryTimes-bounded retry
// on the connect side; permanent failure is returned to the caller, who
// transitions the channel to Failed.
func (s *Stream) doSendWithRetry(buf memsys.Buffer) error {
	attempts := s.extra.RetryTimes
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.doSend(buf); err != nil {
			lastErr = err
			if s.extra.WaitTime > 0 && i < attempts-1 {
				time.Sleep(s.extra.WaitTime)
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (s *Stream) doSend(buf memsys.Buffer) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.dstURL)
	req.Header.SetMethod(fasthttp.MethodPut)
	req.Header.Set("X-Partition", s.partition.String())
	if s.extra.Compress {
		req.Header.Set("X-Compression", "lz4")
	}

	req.SetBodyStreamWriter(func(w *bufio.Writer) {
		var dst = io.Writer(w)
		var zw *lz4.Writer
		if s.extra.Compress {
			zw = lz4.NewWriter(w)
			dst = zw
		}
		if err := EncodeBuffer(dst, buf); err != nil {
			s.log.Warn("encode error mid-stream", zap.Error(err))
			return
		}
		if zw != nil {
			_ = zw.Flush()
		}
		_ = w.Flush()
	})

	return s.client.Do(req, resp)
}
