package transport

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/streamforge/corex/memsys"
)

// Receiver is the handler-side counterpart of Stream: it reassembles the
// multipart frame sequence from spec §4.8.3 and hands the reconstructed
// buffer to onBuffer. Any frame loss is surfaced as a fatal channel error
// (via DecodeBuffer) and is not retried here — the sender owns retry.
type Receiver struct {
	pool     *memsys.BufferPool
	log      *zap.Logger
	onBuffer func(partition string, buf memsys.Buffer) error
}

func NewReceiver(pool *memsys.BufferPool, onBuffer func(partition string, buf memsys.Buffer) error, log *zap.Logger) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{pool: pool, onBuffer: onBuffer, log: log}
}

// Handler returns a fasthttp.RequestHandler that decodes the request body
// as one EncodeBuffer-framed message and dispatches it. The server must be
// configured with StreamRequestBody: true so RequestBodyStream() yields an
// io.Reader instead of buffering the whole body.
func (r *Receiver) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		partition := string(ctx.Request.Header.Peek("X-Partition"))
		body := ctx.RequestBodyStream()
		if body == nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}

		buf, err := DecodeBuffer(body, r.pool, partition)
		if err != nil {
			r.log.Warn("decode failed, channel error", zap.String("partition", partition), zap.Error(err))
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		if !buf.IsValid() {
			// zero-tuple buffer: nothing was sent, nothing to dispatch.
			ctx.SetStatusCode(fasthttp.StatusOK)
			return
		}
		if err := r.onBuffer(partition, buf); err != nil {
			buf.Release()
			r.log.Warn("downstream dispatch failed", zap.String("partition", partition), zap.Error(err))
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
}
