package http1

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// transferKind tags the response body framing.
type transferKind uint8

const (
	transferNone transferKind = iota
	transferContentLength
	transferChunked
)

// ResponseTransfer declares how the response body is framed on the wire:
// no body, a fixed Content-Length, or chunked.
type ResponseTransfer struct {
	kind   transferKind
	length uint64
}

// TransferNone declares a response without a body.
func TransferNone() ResponseTransfer { return ResponseTransfer{} }

// TransferChunked declares a chunked response body.
func TransferChunked() ResponseTransfer { return ResponseTransfer{kind: transferChunked} }

// TransferContentLength declares a fixed-length response body of n bytes.
func TransferContentLength(n uint64) ResponseTransfer {
	return ResponseTransfer{kind: transferContentLength, length: n}
}

// SetStatus stages the response status code. Legal before Send.
func (e *Exchange) SetStatus(code int) {
	if e.state != StateWaited {
		panic("http1: SetStatus outside Waited, state " + e.state.String())
	}
	e.status = code
}

// SetReason stages a custom reason phrase; empty selects the standard one.
func (e *Exchange) SetReason(reason string) {
	if e.state != StateWaited {
		panic("http1: SetReason outside Waited, state " + e.state.String())
	}
	e.reason = reason
}

// SetTransfer stages the response body framing. Ignored if the application
// supplies its own Content-Length or Transfer-Encoding header, which take
// precedence in Send.
func (e *Exchange) SetTransfer(t ResponseTransfer) {
	if e.state != StateWaited {
		panic("http1: SetTransfer outside Waited, state " + e.state.String())
	}
	e.transfer = t
}

// ResponseHeader returns the staged response headers.
func (e *Exchange) ResponseHeader() *Header { return &e.respHeader }

// Send writes the response head. Legal only from Waited.
//
// A 100 Continue head leaves the exchange in Waited: the client still owes
// the request body and the real response. The staged headers go out with
// the interim head and are cleared for the final one. Any other status
// moves to Responded.
//
// Unless the application supplied them, Send synthesises:
//
//   - Connection: keep-alive when the request carried a Connection header
//     whose value is not "close", close otherwise;
//   - the framing header matching the staged ResponseTransfer. An
//     application-supplied Content-Length is parsed into the framing
//     (ErrInvalidContentLength on garbage); an application-supplied
//     Transfer-Encoding must be exactly "chunked"
//     (ErrUnsupportedTransferEncoding otherwise).
//
// For a HEAD request the head is written normally but body writes are
// suppressed on the wire.
func (e *Exchange) Send() error {
	if e.state != StateWaited {
		panic("http1: Send outside Waited, state " + e.state.String())
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	appendStatusLine(bb, e.version, e.status, e.reason)

	if e.status == 100 {
		e.respHeader.VisitAll(func(name, value string) bool {
			appendHeaderLine(bb, name, value)
			return true
		})
		bb.WriteString("\r\n")
		if err := e.conn.WriteAll(bb.B); err != nil {
			return err
		}
		e.respHeader.Reset()
		return nil
	}

	// Application-supplied framing headers override the staged transfer.
	var hasConnection, hasFraming bool
	var headerErr error
	e.respHeader.VisitAll(func(name, value string) bool {
		switch {
		case equalFold(name, "Connection"):
			hasConnection = true
			if equalFold(value, "close") {
				e.respClose = true
			}
		case equalFold(name, "Content-Length"):
			hasFraming = true
			n, err := parseContentLength(value)
			if err != nil {
				headerErr = err
				return false
			}
			e.transfer = TransferContentLength(n)
		case equalFold(name, "Transfer-Encoding"):
			hasFraming = true
			if !equalFold(value, "chunked") {
				headerErr = ErrUnsupportedTransferEncoding
				return false
			}
			e.transfer = TransferChunked()
		}
		return true
	})
	if headerErr != nil {
		return headerErr
	}

	e.respHeader.VisitAll(func(name, value string) bool {
		appendHeaderLine(bb, name, value)
		return true
	})

	// Note: a synthesised close does not set respClose. Reset's reuse
	// decision reads the request's own wishes plus an application-set
	// Connection header; the synthesised default must not override a
	// connection the peer is happy to keep.
	if !hasConnection {
		v, ok := e.req.Header.Get("Connection")
		if ok && !equalFold(v, "close") {
			appendHeaderLine(bb, "Connection", "keep-alive")
		} else {
			appendHeaderLine(bb, "Connection", "close")
		}
	}

	if !hasFraming {
		switch e.transfer.kind {
		case transferChunked:
			appendHeaderLine(bb, "Transfer-Encoding", "chunked")
		case transferContentLength:
			bb.WriteString("Content-Length: ")
			bb.B = strconv.AppendUint(bb.B, e.transfer.length, 10)
			bb.WriteString("\r\n")
		}
	}

	bb.WriteString("\r\n")
	if err := e.conn.WriteAll(bb.B); err != nil {
		return err
	}

	e.remaining = e.transfer.length
	if e.req.MethodID == MethodHEAD {
		e.headOnly = true
	}
	e.state = StateResponded
	return nil
}

// Write emits response body bytes. Legal only from Responded.
//
// Under chunked framing each call emits one chunk; an empty p is a no-op
// and does not terminate the body. Under Content-Length framing a write
// past the declared length fails ErrMessageTooLong and emits nothing.
// With no body framing, Write fails ErrNotWriteable.
func (e *Exchange) Write(p []byte) (int, error) {
	if e.state != StateResponded {
		panic("http1: Write outside Responded, state " + e.state.String())
	}
	switch e.transfer.kind {
	case transferChunked:
		if len(p) == 0 {
			return 0, nil
		}
		if e.headOnly {
			return len(p), nil
		}
		bb := bytebufferpool.Get()
		defer bytebufferpool.Put(bb)
		bb.B = strconv.AppendUint(bb.B, uint64(len(p)), 16)
		bb.WriteString("\r\n")
		bb.Write(p)
		bb.WriteString("\r\n")
		if err := e.conn.WriteAll(bb.B); err != nil {
			return 0, err
		}
		return len(p), nil

	case transferContentLength:
		if uint64(len(p)) > e.remaining {
			return 0, ErrMessageTooLong
		}
		e.remaining -= uint64(len(p))
		if e.headOnly {
			return len(p), nil
		}
		if err := e.conn.WriteAll(p); err != nil {
			return 0, err
		}
		return len(p), nil

	default:
		return 0, ErrNotWriteable
	}
}

// WriteString emits s as body bytes.
func (e *Exchange) WriteString(s string) (int, error) {
	return e.Write([]byte(s))
}

// Finish completes the response body. Legal only from Responded.
//
// Chunked framing gets its terminating 0-chunk; Content-Length framing
// requires the declared length to have been fully written
// (ErrMessageNotCompleted otherwise).
func (e *Exchange) Finish() error {
	if e.state != StateResponded {
		panic("http1: Finish outside Responded, state " + e.state.String())
	}
	switch e.transfer.kind {
	case transferChunked:
		if !e.headOnly {
			if err := e.conn.WriteAll([]byte("0\r\n\r\n")); err != nil {
				return err
			}
		}
	case transferContentLength:
		if e.remaining != 0 {
			return ErrMessageNotCompleted
		}
	}
	e.state = StateFinished
	return nil
}

func appendHeaderLine(bb *bytebufferpool.ByteBuffer, name, value string) {
	bb.WriteString(name)
	bb.WriteString(": ")
	bb.WriteString(value)
	bb.WriteString("\r\n")
}
