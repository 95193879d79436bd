// Package http1 implements an embeddable HTTP/1.x exchange engine: a
// per-connection request/response state machine that parses request heads,
// streams bodies under transfer codings and content codings, frames
// response bodies, and decides connection reuse.
//
// The engine is driven synchronously by one goroutine per accepted
// connection; it never schedules work of its own. Operations follow a
// strict ordering protocol (Wait, Send, Write, Finish, Reset) and calling
// one outside its legal state is a programmer error that panics rather
// than surfacing in the error taxonomy.
package http1

import "net"

// State is the lifecycle position of an Exchange.
type State uint8

const (
	// StateFirst is the state of a freshly accepted connection, before
	// the first Wait.
	StateFirst State = iota

	// StateStart is the state after a successful Reset, before the next
	// Wait on the same connection.
	StateStart

	// StateWaited means a request head has been read; the response may
	// be configured and sent.
	StateWaited

	// StateResponded means the response head is on the wire; the body
	// may be written.
	StateResponded

	// StateFinished means the response body is complete; Reset decides
	// whether the connection survives.
	StateFinished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFirst:
		return "first"
	case StateStart:
		return "start"
	case StateWaited:
		return "waited"
	case StateResponded:
		return "responded"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Options configures a new Exchange.
type Options struct {
	// HeaderBuffer is the client header buffer the exchange borrows for
	// its lifetime. It bounds the size of a request head (and trailer
	// head); 8-64KB is the typical policy. It must not be shared with a
	// concurrently running exchange. When nil, a DefaultReadBufferSize
	// buffer is allocated.
	HeaderBuffer []byte

	// ReadBufferSize sizes the connection read buffer.
	// Zero selects DefaultReadBufferSize.
	ReadBufferSize int
}

// Exchange binds one request/response state machine to an accepted
// connection. It is not safe for concurrent use: the scheduling model is
// strictly one caller goroutine per exchange, with every operation free to
// block on the underlying socket.
type Exchange struct {
	conn    *Conn
	netConn net.Conn
	peer    net.Addr

	scanner *HeadScanner
	req     Request
	decomp  *decompressor
	state   State

	// Response staging, consumed by Send.
	status     int
	reason     string
	version    Version
	respHeader Header
	transfer   ResponseTransfer

	remaining uint64 // bytes still owed under a Content-Length response
	headOnly  bool   // HEAD request: body writes are accounted, not sent
	respClose bool   // the response head carried Connection: close
}

// NewExchange binds an exchange to an accepted connection.
func NewExchange(conn net.Conn, opts Options) *Exchange {
	hbuf := opts.HeaderBuffer
	if hbuf == nil {
		hbuf = make([]byte, DefaultReadBufferSize)
	}
	return &Exchange{
		conn:    NewConn(conn, opts.ReadBufferSize),
		netConn: conn,
		peer:    conn.RemoteAddr(),
		scanner: NewHeadScanner(hbuf),
		status:  200,
		version: Version11,
	}
}

// Request returns the request parsed by the last successful Wait.
func (e *Exchange) Request() *Request { return &e.req }

// Peer returns the remote address of the connection, if known.
func (e *Exchange) Peer() net.Addr { return e.peer }

// State returns the lifecycle state.
func (e *Exchange) State() State { return e.state }

// Wait reads and parses the next request head. Legal from First or Start.
//
// On success the exchange moves to Waited. On a parse failure the exchange
// also moves to Waited with the connection marked for close, so the caller
// can meet its obligation to answer 431 (ErrHeadersOversize) or 400 (any
// other parse error) before tearing down. I/O failures leave the state
// unchanged; no response is possible.
func (e *Exchange) Wait() error {
	if e.state != StateFirst && e.state != StateStart {
		panic("http1: Wait outside First/Start, state " + e.state.String())
	}

	for !e.scanner.Complete() {
		if e.conn.Buffered() == 0 {
			if err := e.conn.Fill(); err != nil {
				return err
			}
		}
		n, err := e.scanner.ScanHead(e.conn.Peek())
		e.conn.Discard(n)
		if err != nil {
			return e.failWait(err)
		}
	}

	if err := parseRequestHead(&e.req, e.scanner.Head()); err != nil {
		return e.failWait(err)
	}

	// Fix the body framing. Chunked wins over Content-Length.
	s := e.scanner
	switch {
	case e.req.Chunked:
		s.state = scanChunkSize
		s.chunkRemain = 0
		s.chunkDigits = 0
	case e.req.hasContentLength && e.req.contentLength > 0:
		s.state = scanChunkData
		s.chunkRemain = e.req.contentLength
	default:
		s.state = scanComplete
	}

	if e.req.HasBody() && e.req.Compression != CompressionIdentity {
		if e.req.Compression == CompressionCompress {
			return e.failWait(ErrCompressionNotSupported)
		}
		e.decomp = newDecompressor(e.req.Compression, rawBody{e})
	}

	e.version = e.req.Version
	e.state = StateWaited
	return nil
}

// failWait records that the head cannot be recovered: the stream position
// is lost, so the connection must close, but the caller may still emit the
// status its obligations require.
func (e *Exchange) failWait(err error) error {
	e.conn.closing = true
	e.state = StateWaited
	return err
}

// Reset concludes the exchange and reports whether the connection may
// serve another. Legal from First (trivially reusable) or Finished.
//
// The connection is kept alive iff the request body was fully consumed
// (otherwise the stream cannot be re-synchronised), the request did not
// ask for close (a Connection header equal to "close"), and the response
// did not declare close. All per-exchange state is released either way.
func (e *Exchange) Reset() bool {
	if e.state == StateFirst {
		e.state = StateStart
		return true
	}
	if e.state != StateFinished {
		panic("http1: Reset outside First/Finished, state " + e.state.String())
	}

	if !e.scanner.Complete() {
		e.conn.closing = true
	}
	reuse := !e.conn.closing
	if reuse {
		if v, ok := e.req.Header.Get("Connection"); ok && equalFold(v, "close") {
			reuse = false
		}
	}
	if reuse && e.respClose {
		reuse = false
	}

	if e.decomp != nil {
		e.decomp.release()
		e.decomp = nil
	}
	e.req.reset()
	e.respHeader.Reset()
	e.status = 200
	e.reason = ""
	e.transfer = ResponseTransfer{}
	e.remaining = 0
	e.headOnly = false
	e.respClose = false
	e.scanner.Reset()

	if !reuse {
		return false
	}
	e.state = StateStart
	return true
}

// Close releases exchange resources and closes the underlying connection.
// Safe to call in any state and more than once.
func (e *Exchange) Close() error {
	if e.decomp != nil {
		e.decomp.release()
		e.decomp = nil
	}
	if e.netConn != nil {
		c := e.netConn
		e.netConn = nil
		return c.Close()
	}
	return nil
}
