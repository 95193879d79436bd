package http1

import "errors"

// I/O errors - every OS-level read/write failure is projected onto one of
// these before it leaves the package. See errno.go for the projection.
var (
	// ErrConnectionResetByPeer indicates the peer closed or reset the
	// connection mid-operation. EPIPE and ECONNRESET both map here.
	ErrConnectionResetByPeer = errors.New("http1: connection reset by peer")

	// ErrConnectionTimedOut indicates a read or write deadline expired.
	ErrConnectionTimedOut = errors.New("http1: connection timed out")

	// ErrUnexpectedReadFailure wraps any read error with no specific mapping.
	ErrUnexpectedReadFailure = errors.New("http1: unexpected read failure")

	// ErrUnexpectedWriteFailure wraps any write error with no specific mapping.
	ErrUnexpectedWriteFailure = errors.New("http1: unexpected write failure")

	// ErrEndOfStream indicates the peer cleanly closed the stream.
	// Between exchanges this is a normal keep-alive termination.
	ErrEndOfStream = errors.New("http1: end of stream")
)

// Head framing errors
var (
	// ErrHeadersOversize indicates the request head (or trailer head) did
	// not fit in the client header buffer.
	ErrHeadersOversize = errors.New("http1: request head exceeds header buffer")
)

// Request syntax errors
var (
	// ErrHeadersInvalid indicates a malformed request line, header line,
	// duplicate Content-Length, conflicting codings, or broken chunk framing.
	ErrHeadersInvalid = errors.New("http1: invalid request head")

	// ErrHeaderContinuationsUnsupported indicates an obs-fold continuation
	// line (leading whitespace). Folding is obsolete per RFC 7230 §3.2.4
	// and rejected outright.
	ErrHeaderContinuationsUnsupported = errors.New("http1: header continuations unsupported")

	// ErrUnknownMethod indicates the request method contains non-token bytes.
	ErrUnknownMethod = errors.New("http1: unknown HTTP method")

	// ErrInvalidContentLength indicates a Content-Length value that is not
	// a base-10 unsigned integer, on either a request or a response header.
	ErrInvalidContentLength = errors.New("http1: invalid Content-Length")
)

// Coding errors
var (
	// ErrTransferEncodingUnsupported indicates an unknown coding token or
	// more than two codings in Transfer-Encoding.
	ErrTransferEncodingUnsupported = errors.New("http1: transfer encoding unsupported")

	// ErrCompressionNotSupported indicates a coding this engine recognises
	// but does not decode (compress, x-compress).
	ErrCompressionNotSupported = errors.New("http1: compression scheme not supported")

	// ErrDecompressionFailure indicates the body decoder rejected the stream.
	ErrDecompressionFailure = errors.New("http1: decompression failure")

	// ErrInvalidTrailers indicates the trailer head after a chunked body
	// failed to parse.
	ErrInvalidTrailers = errors.New("http1: invalid trailers")
)

// Response ordering and framing errors
var (
	// ErrUnsupportedTransferEncoding indicates an application-supplied
	// response Transfer-Encoding header with a value other than "chunked".
	ErrUnsupportedTransferEncoding = errors.New("http1: unsupported response transfer encoding")

	// ErrNotWriteable indicates a body write on a response declared to
	// have no body.
	ErrNotWriteable = errors.New("http1: response has no body framing")

	// ErrMessageTooLong indicates a write past the declared Content-Length.
	ErrMessageTooLong = errors.New("http1: write exceeds declared content length")

	// ErrMessageNotCompleted indicates Finish was called before the
	// declared Content-Length was fully written.
	ErrMessageNotCompleted = errors.New("http1: declared content length not fully written")
)

// isWireError reports whether err already belongs to the package taxonomy,
// so layered readers (decompressors) can pass it through unchanged.
func isWireError(err error) bool {
	for _, e := range []error{
		ErrConnectionResetByPeer, ErrConnectionTimedOut,
		ErrUnexpectedReadFailure, ErrUnexpectedWriteFailure,
		ErrEndOfStream, ErrHeadersOversize, ErrHeadersInvalid,
		ErrInvalidTrailers,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
