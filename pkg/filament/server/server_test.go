package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watt-toolkit/filament/pkg/filament/http1"
)

// startServer serves handler on a loopback listener and returns its address.
func startServer(t *testing.T, cfg Config, handler Handler) string {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cfg.Logger = log

	srv := New(cfg, handler)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		srv.Serve(ln)
		close(done)
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		<-done
	})
	return ln.Addr().String()
}

// echoHandler answers with the request body, or a plain OK for bodyless
// requests.
func echoHandler(ex *http1.Exchange) error {
	if !ex.Request().HasBody() {
		ex.SetTransfer(http1.TransferContentLength(2))
		if err := ex.Send(); err != nil {
			return err
		}
		if _, err := ex.WriteString("ok"); err != nil {
			return err
		}
		return ex.Finish()
	}
	body, err := ex.ReadAll()
	if err != nil {
		return err
	}
	ex.SetTransfer(http1.TransferContentLength(uint64(len(body))))
	if err := ex.Send(); err != nil {
		return err
	}
	if _, err := ex.Write(body); err != nil {
		return err
	}
	return ex.Finish()
}

// readResponse reads one head plus a Content-Length body off the wire.
func readResponse(t *testing.T, r *bufio.Reader) (status string, headers map[string]string, body string) {
	t.Helper()
	status, err := r.ReadString('\n')
	require.NoError(t, err)

	headers = make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ": ")
		require.True(t, ok, "header line %q", line)
		headers[strings.ToLower(name)] = value
	}

	if cl, ok := headers["content-length"]; ok && cl != "0" {
		var n int
		_, err := fmt.Sscanf(cl, "%d", &n)
		require.NoError(t, err)
		buf := make([]byte, n)
		_, err = io.ReadFull(r, buf)
		require.NoError(t, err)
		body = string(buf)
	}
	return status, headers, body
}

func TestServerEcho(t *testing.T) {
	addr := startServer(t, Config{}, echoHandler)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, headers, body := readResponse(t, r)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)
	assert.Equal(t, "5", headers["content-length"])
	assert.Equal(t, "hello", body)
}

func TestServerKeepAlive(t *testing.T) {
	addr := startServer(t, Config{}, echoHandler)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	r := bufio.NewReader(conn)
	for i := 0; i < 3; i++ {
		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		require.NoError(t, err, "request %d", i+1)
		status, _, body := readResponse(t, r)
		assert.Equal(t, "HTTP/1.1 200 OK\r\n", status, "request %d", i+1)
		assert.Equal(t, "ok", body, "request %d", i+1)
	}
}

func TestServerConnectionClose(t *testing.T) {
	addr := startServer(t, Config{}, echoHandler)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, headers, _ := readResponse(t, r)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)
	assert.Equal(t, "close", headers["connection"])

	// The server closes its side; the next read hits EOF.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestServerOversizedHeadGets431(t *testing.T) {
	addr := startServer(t, Config{HeaderBufferSize: 2048}, echoHandler)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	big := strings.Repeat("a", 4096)
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nX-Big: " + big + "\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, _, _ := readResponse(t, r)
	assert.Equal(t, "HTTP/1.1 431 Request Header Fields Too Large\r\n", status)
}

func TestServerMalformedHeadGets400(t *testing.T) {
	addr := startServer(t, Config{}, echoHandler)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / SPDY/3\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, _, _ := readResponse(t, r)
	assert.Equal(t, "HTTP/1.1 400 Bad Request\r\n", status)
}

func TestServerShutdownWaits(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	srv := New(Config{Logger: log}, echoHandler)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)
	readResponse(t, bufio.NewReader(conn))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
