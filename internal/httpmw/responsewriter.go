package httpmw

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

const tracerName = "portfolio/httpmw"

// recorder tracks status and body size for the access log. When the request
// span is recording it also opens a response.write child span at the first
// byte, so slow clients show up apart from slow handlers.
type recorder struct {
	http.ResponseWriter
	ctx   context.Context
	start time.Time

	status  int
	bytes   int64
	blocked time.Duration
	err     error

	ttfb      time.Duration
	wrote     bool
	writeSpan trace.Span
}

func newRecorder(w http.ResponseWriter, r *http.Request, start time.Time) *recorder {
	return &recorder{ResponseWriter: w, ctx: r.Context(), start: start}
}

func (rw *recorder) firstByte() {
	if rw.wrote {
		return
	}
	rw.wrote = true
	rw.ttfb = time.Since(rw.start)

	if !trace.SpanFromContext(rw.ctx).IsRecording() {
		return
	}
	_, rw.writeSpan = otel.Tracer(tracerName).Start(rw.ctx, "response.write",
		trace.WithAttributes(attribute.Float64("http.server.ttfb_seconds", rw.ttfb.Seconds())))
}

func (rw *recorder) code() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *recorder) WriteHeader(code int) {
	rw.firstByte()
	if rw.status == 0 {
		rw.status = code
	}
	t := time.Now()
	rw.ResponseWriter.WriteHeader(code)
	rw.blocked += time.Since(t)
}

func (rw *recorder) Write(b []byte) (int, error) {
	rw.firstByte()
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	t := time.Now()
	n, err := rw.ResponseWriter.Write(b)
	rw.blocked += time.Since(t)
	rw.bytes += int64(n)
	if err != nil && rw.err == nil {
		rw.err = err
	}
	return n, err
}

// done ends the response.write span, if one was started.
func (rw *recorder) done() {
	if rw.writeSpan == nil {
		return
	}
	rw.writeSpan.SetAttributes(
		attribute.Int("http.response.status_code", rw.code()),
		attribute.Int64("http.response.body.size", rw.bytes),
		attribute.Float64("http.server.write.block_seconds", rw.blocked.Seconds()),
	)
	if rw.err != nil {
		rw.writeSpan.RecordError(rw.err)
		rw.writeSpan.SetStatus(codes.Error, rw.err.Error())
	}
	rw.writeSpan.End()
}

func (rw *recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, xerrors.New("response writer does not support hijacking")
}

func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
