package http1

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// Version identifies the HTTP/1.x wire version of a request or response.
type Version uint8

const (
	Version10 Version = iota // HTTP/1.0
	Version11                // HTTP/1.1
)

// String returns the wire form of the version.
func (v Version) String() string {
	if v == Version10 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}

// Pre-compiled HTTP/1.1 status lines for the codes that cover nearly all
// responses. Uncommon codes, custom reasons, and HTTP/1.0 responses fall
// back to building the line.
var statusLines11 = map[int][]byte{
	100: []byte("HTTP/1.1 100 Continue\r\n"),
	101: []byte("HTTP/1.1 101 Switching Protocols\r\n"),
	200: []byte("HTTP/1.1 200 OK\r\n"),
	201: []byte("HTTP/1.1 201 Created\r\n"),
	202: []byte("HTTP/1.1 202 Accepted\r\n"),
	204: []byte("HTTP/1.1 204 No Content\r\n"),
	206: []byte("HTTP/1.1 206 Partial Content\r\n"),
	301: []byte("HTTP/1.1 301 Moved Permanently\r\n"),
	302: []byte("HTTP/1.1 302 Found\r\n"),
	304: []byte("HTTP/1.1 304 Not Modified\r\n"),
	400: []byte("HTTP/1.1 400 Bad Request\r\n"),
	401: []byte("HTTP/1.1 401 Unauthorized\r\n"),
	403: []byte("HTTP/1.1 403 Forbidden\r\n"),
	404: []byte("HTTP/1.1 404 Not Found\r\n"),
	405: []byte("HTTP/1.1 405 Method Not Allowed\r\n"),
	408: []byte("HTTP/1.1 408 Request Timeout\r\n"),
	411: []byte("HTTP/1.1 411 Length Required\r\n"),
	413: []byte("HTTP/1.1 413 Payload Too Large\r\n"),
	417: []byte("HTTP/1.1 417 Expectation Failed\r\n"),
	429: []byte("HTTP/1.1 429 Too Many Requests\r\n"),
	431: []byte("HTTP/1.1 431 Request Header Fields Too Large\r\n"),
	500: []byte("HTTP/1.1 500 Internal Server Error\r\n"),
	501: []byte("HTTP/1.1 501 Not Implemented\r\n"),
	502: []byte("HTTP/1.1 502 Bad Gateway\r\n"),
	503: []byte("HTTP/1.1 503 Service Unavailable\r\n"),
	504: []byte("HTTP/1.1 504 Gateway Timeout\r\n"),
}

// StatusText returns the standard reason phrase for code, or "" if the
// code has none.
func StatusText(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 101:
		return "Switching Protocols"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 202:
		return "Accepted"
	case 203:
		return "Non-Authoritative Information"
	case 204:
		return "No Content"
	case 205:
		return "Reset Content"
	case 206:
		return "Partial Content"
	case 300:
		return "Multiple Choices"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 303:
		return "See Other"
	case 304:
		return "Not Modified"
	case 307:
		return "Temporary Redirect"
	case 308:
		return "Permanent Redirect"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 406:
		return "Not Acceptable"
	case 408:
		return "Request Timeout"
	case 409:
		return "Conflict"
	case 410:
		return "Gone"
	case 411:
		return "Length Required"
	case 412:
		return "Precondition Failed"
	case 413:
		return "Payload Too Large"
	case 414:
		return "URI Too Long"
	case 415:
		return "Unsupported Media Type"
	case 417:
		return "Expectation Failed"
	case 429:
		return "Too Many Requests"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	case 504:
		return "Gateway Timeout"
	default:
		return ""
	}
}

// appendStatusLine writes "VERSION SP code SP reason CRLF" into bb, using
// the pre-compiled table when it applies.
func appendStatusLine(bb *bytebufferpool.ByteBuffer, v Version, code int, reason string) {
	if v == Version11 && reason == "" {
		if line, ok := statusLines11[code]; ok {
			bb.Write(line)
			return
		}
	}
	if reason == "" {
		reason = StatusText(code)
		if reason == "" {
			reason = "Status " + strconv.Itoa(code)
		}
	}
	bb.WriteString(v.String())
	bb.WriteByte(' ')
	bb.B = strconv.AppendInt(bb.B, int64(code), 10)
	bb.WriteByte(' ')
	bb.WriteString(reason)
	bb.WriteString("\r\n")
}
