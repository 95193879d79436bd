package http1

import (
	"errors"
	"io"
)

// The body reader demultiplexes identity and chunked framing by stepping
// the scanner's chunk states directly over the connection buffer. Unread
// bytes beyond the body always stay in the connection buffer, so the next
// head on a kept-alive connection is never swallowed.

// rawBody adapts the framed body stream to io.Reader for the decompressor.
type rawBody struct{ e *Exchange }

func (r rawBody) Read(p []byte) (int, error) { return r.e.rawRead(p) }

// Read streams the request body. It returns io.EOF once the body is
// exhausted; for chunked bodies the trailer head has been parsed into the
// request headers by that point. Legal from Waited or Responded, so body
// reads may interleave with response writes.
func (e *Exchange) Read(p []byte) (int, error) {
	if e.state != StateWaited && e.state != StateResponded {
		panic("http1: Read outside Waited/Responded")
	}
	if e.decomp == nil {
		return e.rawRead(p)
	}
	n, err := e.decomp.Read(p)
	if err == io.EOF {
		// The decoder is self-delimiting and may stop short of the
		// framing's end; the stream counts as exhausted only once
		// the raw reader is too, so drain the remaining framing to
		// keep the connection re-usable.
		if derr := e.drainRaw(); derr != nil {
			return n, derr
		}
	}
	return n, err
}

// ReadAll reads the remaining body into one buffer.
func (e *Exchange) ReadAll() ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := e.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

func (e *Exchange) drainRaw() error {
	var buf [512]byte
	for {
		_, err := e.rawRead(buf[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// rawRead streams body bytes according to the framing fixed by Wait.
func (e *Exchange) rawRead(p []byte) (int, error) {
	s := e.scanner
	for {
		switch s.state {
		case scanComplete:
			return 0, io.EOF

		case scanChunkSize, scanChunkExt, scanChunkLF:
			if err := e.readChunkHead(); err != nil {
				return 0, err
			}

		case scanChunkData:
			if len(p) == 0 {
				return 0, nil
			}
			max := len(p)
			if uint64(max) > s.chunkRemain {
				max = int(s.chunkRemain)
			}
			n, err := e.conn.ReadAtLeast(p[:max], 1)
			s.chunkRemain -= uint64(n)
			if s.chunkRemain == 0 {
				if e.req.Chunked {
					s.state = scanChunkSuffixCR
				} else {
					s.state = scanComplete
				}
			}
			return n, err

		case scanChunkSuffixCR, scanChunkSuffixLF:
			if err := e.readChunkSuffix(); err != nil {
				return 0, err
			}

		default:
			panic("http1: body read while head incomplete")
		}
	}
}

// readWireByte pulls one framing byte through the connection buffer.
func (e *Exchange) readWireByte() (byte, error) {
	if e.conn.Buffered() == 0 {
		if err := e.conn.Fill(); err != nil {
			return 0, err
		}
	}
	b := e.conn.Peek()[0]
	e.conn.Discard(1)
	return b, nil
}

// readChunkHead consumes "hex-size [;ext] CRLF". A zero size hands off to
// the trailer head; otherwise the scanner is parked on the chunk payload.
func (e *Exchange) readChunkHead() error {
	s := e.scanner
	for {
		b, err := e.readWireByte()
		if err != nil {
			return err
		}
		switch s.state {
		case scanChunkSize:
			switch {
			case b >= '0' && b <= '9':
				if err := s.pushChunkDigit(uint64(b - '0')); err != nil {
					return err
				}
			case b >= 'a' && b <= 'f':
				if err := s.pushChunkDigit(uint64(b-'a') + 10); err != nil {
					return err
				}
			case b >= 'A' && b <= 'F':
				if err := s.pushChunkDigit(uint64(b-'A') + 10); err != nil {
					return err
				}
			case b == ';':
				if s.chunkDigits == 0 {
					return ErrHeadersInvalid
				}
				s.state = scanChunkExt
			case b == '\r':
				if s.chunkDigits == 0 {
					return ErrHeadersInvalid
				}
				s.state = scanChunkLF
			default:
				return ErrHeadersInvalid
			}
		case scanChunkExt:
			switch b {
			case '\r':
				s.state = scanChunkLF
			case '\n':
				return ErrHeadersInvalid
			}
		case scanChunkLF:
			if b != '\n' {
				return ErrHeadersInvalid
			}
			if s.chunkRemain == 0 {
				return e.readTrailerHead()
			}
			s.state = scanChunkData
			return nil
		default:
			panic("http1: chunk head read in wrong state")
		}
	}
}

// pushChunkDigit folds one hex digit into the pending chunk size.
func (s *HeadScanner) pushChunkDigit(v uint64) error {
	if s.chunkRemain>>60 != 0 {
		return ErrHeadersInvalid
	}
	s.chunkRemain = s.chunkRemain<<4 | v
	s.chunkDigits++
	return nil
}

// readChunkSuffix consumes the CRLF after a chunk payload and re-arms the
// scanner for the next chunk size.
func (e *Exchange) readChunkSuffix() error {
	s := e.scanner
	for {
		b, err := e.readWireByte()
		if err != nil {
			return err
		}
		if s.state == scanChunkSuffixCR {
			if b != '\r' {
				return ErrHeadersInvalid
			}
			s.state = scanChunkSuffixLF
			continue
		}
		if b != '\n' {
			return ErrHeadersInvalid
		}
		s.state = scanChunkSize
		s.chunkRemain = 0
		s.chunkDigits = 0
		return nil
	}
}

// readTrailerHead accumulates the trailer head through the scanner and
// parses it into the request headers. Parsing the main head a second time
// is impossible here: only the bytes after BeginTrailers are consumed.
func (e *Exchange) readTrailerHead() error {
	s := e.scanner
	s.BeginTrailers()
	for !s.Complete() {
		if e.conn.Buffered() == 0 {
			if err := e.conn.Fill(); err != nil {
				return err
			}
		}
		n, err := s.ScanHead(e.conn.Peek())
		e.conn.Discard(n)
		if err != nil {
			if errors.Is(err, ErrHeadersOversize) {
				return err
			}
			return ErrInvalidTrailers
		}
	}
	return parseTrailerHead(&e.req, s.Trailers())
}
