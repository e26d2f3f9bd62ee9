package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/irclight/unfurl/internal/preview"
)

// streamChunkSize is how many bytes Stream hands the sink per read, and
// therefore the lookahead past an early-stop marker in the worst case.
const streamChunkSize = 8 << 10

// Sink consumes streamed chunks and reports when it has seen enough for
// the caller to stop reading early.
type Sink interface {
	io.Writer
	Done() bool
}

// Response is one in-flight GET after headers. Reads are cumulative
// against the ceiling the caller supplies, and Close aborts the
// underlying connection so no further bytes are delivered.
type Response struct {
	// URL is the final URL after redirects, used as the base for
	// resolving relative links found in the body.
	URL         string
	StatusCode  int
	Header      http.Header
	ContentType string
	Class       Class

	body      io.ReadCloser
	ctx       context.Context
	cancel    context.CancelFunc
	bytesRead int64
	closeOnce sync.Once
}

// ReadAll drains the body into memory, allowing at most limit bytes
// (zero means unbounded). A body that exceeds the limit aborts the
// connection and fails with ErrTooLarge; no partial payload is returned
// as success.
func (r *Response) ReadAll(limit int64) ([]byte, error) {
	reader := io.Reader(r.body)
	if limit > 0 {
		reader = io.LimitReader(r.body, limit+1)
	}
	data, err := io.ReadAll(reader)
	r.bytesRead += int64(len(data))
	if err != nil {
		r.Close()
		return nil, r.mapReadErr(err)
	}
	if limit > 0 && int64(len(data)) > limit {
		r.Close()
		return nil, fmt.Errorf("%w: body exceeds %d bytes", preview.ErrTooLarge, limit)
	}
	return data, nil
}

// Stream copies the body into sink chunk by chunk until the sink
// reports done, the cumulative limit is reached, the stream ends, or
// the request context finishes. Early stop and reaching the limit both
// abort the connection and return the bytes consumed without error;
// reaching the limit is truncation, not a failure.
func (r *Response) Stream(limit int64, sink Sink) (int64, error) {
	buf := make([]byte, streamChunkSize)
	var total int64
	for {
		if err := r.ctx.Err(); err != nil {
			r.Close()
			return total, r.mapReadErr(err)
		}
		if sink.Done() {
			r.Close()
			return total, nil
		}

		chunk := buf
		if limit > 0 {
			remain := limit - total
			if remain <= 0 {
				r.Close()
				return total, nil
			}
			if remain < int64(len(chunk)) {
				chunk = chunk[:remain]
			}
		}

		n, err := r.body.Read(chunk)
		if n > 0 {
			total += int64(n)
			r.bytesRead += int64(n)
			if _, werr := sink.Write(chunk[:n]); werr != nil {
				r.Close()
				return total, fmt.Errorf("scrape sink: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			r.Close()
			return total, r.mapReadErr(err)
		}
	}
}

// BytesRead returns the cumulative bytes consumed from the transport.
func (r *Response) BytesRead() int64 {
	return r.bytesRead
}

// Close aborts the request: the connection is torn down and buffered
// but undelivered bytes are discarded. Safe to call more than once.
func (r *Response) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		_ = r.body.Close()
	})
}

func (r *Response) mapReadErr(err error) error {
	switch {
	case errors.Is(r.ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: body read: %v", preview.ErrTimeout, err)
	case errors.Is(r.ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: body read: %v", preview.ErrCancelled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: body read: %v", preview.ErrTimeout, err)
	}
	return fmt.Errorf("%w: body read: %v", preview.ErrTransport, err)
}
