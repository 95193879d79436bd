package http1

import (
	"bytes"
	"strings"
)

var crlf = []byte("\r\n")

// minRequestLine is the shortest request line accepted before the line is
// split. It is a lower bound, not the exact minimum: the shortest
// well-formed line ("M / HTTP/1.1") is 12 bytes.
const minRequestLine = 10

// parseRequestHead interprets a complete head captured by the scanner and
// fills req. The head grammar is strict: CRLF line endings (already
// enforced by the scanner), single-space request line, exact version
// tokens, colon-separated header lines with no obs-fold continuations.
func parseRequestHead(req *Request, head []byte) error {
	rest := head

	// Robustness: tolerate empty line(s) before the request line; the
	// request line is the first non-empty line.
	var line []byte
	for {
		var ok bool
		line, rest, ok = cutLine(rest)
		if !ok {
			return ErrHeadersInvalid
		}
		if len(line) > 0 {
			break
		}
	}

	if err := parseRequestLine(req, line); err != nil {
		return err
	}

	var (
		teTokens      []string
		teCompression = CompressionIdentity
		ceCompression = CompressionIdentity
		hasCE         bool
	)

	for {
		var ok bool
		line, rest, ok = cutLine(rest)
		if !ok || len(line) == 0 {
			break
		}
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return err
		}
		if err := req.Header.Add(name, value); err != nil {
			return err
		}

		switch {
		case equalFold(name, "Content-Length"):
			if req.hasContentLength {
				return ErrHeadersInvalid
			}
			n, err := parseContentLength(value)
			if err != nil {
				return err
			}
			req.contentLength = n
			req.hasContentLength = true
		case equalFold(name, "Transfer-Encoding"):
			for _, tok := range strings.Split(value, ",") {
				teTokens = append(teTokens, strings.ToLower(strings.TrimSpace(tok)))
			}
		case equalFold(name, "Content-Encoding"):
			if hasCE {
				return ErrHeadersInvalid
			}
			hasCE = true
			scheme, ok := parseCompressionToken(strings.ToLower(strings.TrimSpace(value)))
			if !ok {
				return ErrTransferEncodingUnsupported
			}
			ceCompression = scheme
		}
	}

	// Transfer-Encoding is read right to left: the outermost (last
	// applied) coding is last in the header and decoded first. At most
	// one framing coding plus one compression are accepted.
	if len(teTokens) > 0 {
		i := len(teTokens) - 1
		if teTokens[i] == "chunked" {
			req.Chunked = true
			i--
		}
		if i >= 0 {
			tok := teTokens[i]
			if tok == "chunked" {
				return ErrHeadersInvalid
			}
			scheme, ok := parseCompressionToken(tok)
			if !ok {
				return ErrTransferEncodingUnsupported
			}
			teCompression = scheme
			i--
		}
		if i >= 0 {
			// A third coding. Another framing coding is a
			// re-appearance; anything else is past the supported
			// layering depth.
			for ; i >= 0; i-- {
				if teTokens[i] == "chunked" {
					return ErrHeadersInvalid
				}
			}
			return ErrTransferEncodingUnsupported
		}
	}

	// Content-Encoding conflicts with a compression already layered via
	// Transfer-Encoding: double compression is not supported.
	switch {
	case teCompression != CompressionIdentity && ceCompression != CompressionIdentity:
		return ErrHeadersInvalid
	case teCompression != CompressionIdentity:
		req.Compression = teCompression
	default:
		req.Compression = ceCompression
	}

	return nil
}

// parseTrailerHead parses the trailer head after a chunked body: header
// lines only, appended to the request's header map. Any syntax failure
// surfaces as ErrInvalidTrailers.
func parseTrailerHead(req *Request, trailers []byte) error {
	rest := trailers
	for {
		line, next, ok := cutLine(rest)
		if !ok || len(line) == 0 {
			return nil
		}
		rest = next
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return ErrInvalidTrailers
		}
		if err := req.Header.Add(name, value); err != nil {
			return ErrInvalidTrailers
		}
	}
}

// cutLine splits the next CRLF-terminated line off head bytes.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	idx := bytes.Index(b, crlf)
	if idx < 0 {
		return nil, nil, false
	}
	return b[:idx], b[idx+2:], true
}

// parseRequestLine parses "METHOD SP TARGET SP VERSION". The target is the
// substring between the first and the last space, so targets containing
// spaces survive unmangled.
func parseRequestLine(req *Request, line []byte) error {
	if len(line) < minRequestLine {
		return ErrHeadersInvalid
	}
	first := bytes.IndexByte(line, ' ')
	last := bytes.LastIndexByte(line, ' ')
	if first < 0 || first == last {
		return ErrHeadersInvalid
	}

	method := line[:first]
	if len(method) == 0 || len(method) > MaxMethodLength {
		return ErrHeadersInvalid
	}
	if !isToken(method) {
		return ErrUnknownMethod
	}

	target := line[first+1 : last]
	if len(target) == 0 {
		return ErrHeadersInvalid
	}

	version := line[last+1:]
	switch {
	case bytes.Equal(version, []byte("HTTP/1.1")):
		req.Version = Version11
	case bytes.Equal(version, []byte("HTTP/1.0")):
		req.Version = Version10
	default:
		return ErrHeadersInvalid
	}

	req.Method = string(method)
	req.MethodID = ParseMethodID(method)
	req.Target = string(target)
	return nil
}

// parseHeaderLine splits one header line into name and value. The split is
// on the first colon only, so values keep any colons they carry. OWS
// around the value is trimmed; whitespace before the colon or at the start
// of the line is rejected.
func parseHeaderLine(line []byte) (name, value string, err error) {
	if line[0] == ' ' || line[0] == '\t' {
		return "", "", ErrHeaderContinuationsUnsupported
	}
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", ErrHeadersInvalid
	}
	rawName := line[:colon]
	if c := rawName[len(rawName)-1]; c == ' ' || c == '\t' {
		return "", "", ErrHeadersInvalid
	}
	if !isToken(rawName) {
		return "", "", ErrHeadersInvalid
	}
	return string(rawName), string(trimOWS(line[colon+1:])), nil
}

// trimOWS trims optional whitespace (SP / HTAB) from both ends.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// parseContentLength parses a base-10 u64 Content-Length value.
func parseContentLength(s string) (uint64, error) {
	if len(s) == 0 {
		return 0, ErrInvalidContentLength
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, ErrInvalidContentLength
		}
		d := uint64(c - '0')
		if n > (^uint64(0)-d)/10 {
			return 0, ErrInvalidContentLength
		}
		n = n*10 + d
	}
	return n, nil
}
