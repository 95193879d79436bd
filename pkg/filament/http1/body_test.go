package http1

import (
	"errors"
	"io"
	"testing"
)

// newTestExchange builds an exchange over a scripted connection.
func newTestExchange(t *testing.T, segments ...string) (*Exchange, *mockConn) {
	t.Helper()
	m := newMockConn(segments...)
	return NewExchange(m, Options{}), m
}

func TestReadIdentityBody(t *testing.T) {
	ex, _ := newTestExchange(t, "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	body, err := ex.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
	// Reading past the end keeps returning EOF.
	var buf [8]byte
	if n, err := ex.Read(buf[:]); n != 0 || err != io.EOF {
		t.Errorf("Read after end = %d, %v, want 0, EOF", n, err)
	}
}

func TestReadIdentityBodyAcrossReads(t *testing.T) {
	ex, _ := newTestExchange(t,
		"POST / HTTP/1.1\r\nContent-Len", "gth: 10\r\n\r\nhel", "lo ", "world")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	body, err := ex.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "hello worl" {
		t.Errorf("body = %q, want %q", body, "hello worl")
	}
}

func TestReadChunkedBody(t *testing.T) {
	// Literal scenario: three chunks then the 0-chunk.
	ex, _ := newTestExchange(t,
		"POST / HTTP/1.1\r\nContent-Type: text/plain\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"1\r\nA\r\n1\r\nB\r\n2\r\nCD\r\n0\r\n\r\n")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !ex.Request().Chunked {
		t.Fatal("Chunked = false, want true")
	}
	body, err := ex.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "ABCD" {
		t.Errorf("body = %q, want %q", body, "ABCD")
	}
}

func TestReadChunkedBodyAnyChunking(t *testing.T) {
	// Round-trip invariant: any byte-chunking of the same wire yields
	// the same payload.
	wire := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\nE\r\n in\r\n\r\nchunks.\r\n0\r\n\r\n"
	want := "Wikipedia in\r\n\r\nchunks."
	for cut := 1; cut < len(wire); cut += 7 {
		ex, _ := newTestExchange(t, wire[:cut], wire[cut:])
		if err := ex.Wait(); err != nil {
			t.Fatalf("cut %d: Wait failed: %v", cut, err)
		}
		body, err := ex.ReadAll()
		if err != nil {
			t.Fatalf("cut %d: ReadAll failed: %v", cut, err)
		}
		if string(body) != want {
			t.Errorf("cut %d: body = %q, want %q", cut, body, want)
		}
	}
}

func TestReadChunkedExtensionsIgnored(t *testing.T) {
	ex, _ := newTestExchange(t,
		"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"3;name=value\r\nabc\r\n0\r\n\r\n")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	body, err := ex.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "abc" {
		t.Errorf("body = %q, want %q", body, "abc")
	}
}

func TestReadChunkedTrailers(t *testing.T) {
	ex, _ := newTestExchange(t,
		"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"3\r\nabc\r\n0\r\nX-Checksum: 900150\r\nX-Count: 1\r\n\r\n")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	body, err := ex.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != "abc" {
		t.Errorf("body = %q, want %q", body, "abc")
	}
	if v, _ := ex.Request().Header.Get("X-Checksum"); v != "900150" {
		t.Errorf("X-Checksum = %q, want %q", v, "900150")
	}
	if v, _ := ex.Request().Header.Get("X-Count"); v != "1" {
		t.Errorf("X-Count = %q, want %q", v, "1")
	}
}

func TestReadChunkedInvalidTrailers(t *testing.T) {
	ex, _ := newTestExchange(t,
		"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"3\r\nabc\r\n0\r\nNotAHeaderLine\r\n\r\n")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	_, err := ex.ReadAll()
	if !errors.Is(err, ErrInvalidTrailers) {
		t.Errorf("ReadAll = %v, want ErrInvalidTrailers", err)
	}
}

func TestReadChunkedFramingErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no hex digits", ";\r\nabc\r\n0\r\n\r\n"},
		{"bad size char", "q\r\nabc\r\n0\r\n\r\n"},
		{"missing suffix CRLF", "3\r\nabcX\r\n0\r\n\r\n"},
		{"bare LF in size line", "3\nabc\r\n0\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(t,
				"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"+tt.body)
			if err := ex.Wait(); err != nil {
				t.Fatalf("Wait failed: %v", err)
			}
			if _, err := ex.ReadAll(); !errors.Is(err, ErrHeadersInvalid) {
				t.Errorf("ReadAll = %v, want ErrHeadersInvalid", err)
			}
		})
	}
}

func TestReadZeroLengthBody(t *testing.T) {
	ex, _ := newTestExchange(t, "POST / HTTP/1.1\r\nContent-Length: 0\r\n\r\n")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if ex.Request().HasBody() {
		t.Error("HasBody = true, want false")
	}
	var buf [4]byte
	if n, err := ex.Read(buf[:]); n != 0 || err != io.EOF {
		t.Errorf("Read = %d, %v, want 0, EOF", n, err)
	}
}

func TestReadTruncatedIdentityBody(t *testing.T) {
	ex, _ := newTestExchange(t, "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nshort")
	if err := ex.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	_, err := ex.ReadAll()
	if !errors.Is(err, ErrEndOfStream) {
		t.Errorf("ReadAll = %v, want ErrEndOfStream", err)
	}
}
