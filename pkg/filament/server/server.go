// Package server wraps the http1 exchange engine with the thin
// operational layer the engine deliberately excludes: a listener, one
// goroutine per accepted connection, the error-response obligations after
// a failed Wait, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/watt-toolkit/filament/pkg/filament"
	"github.com/watt-toolkit/filament/pkg/filament/http1"
)

// Handler serves one exchange whose request head has already been read.
// It must Send and Finish the response; returning an error closes the
// connection after logging.
type Handler func(ex *http1.Exchange) error

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// HeaderBufferSize bounds a request head. Zero selects 16KB.
	HeaderBufferSize int

	// ReadBufferSize sizes each connection's read buffer.
	// Zero selects the engine default.
	ReadBufferSize int

	// MaxConns caps concurrently served connections. Zero is unlimited.
	MaxConns int

	// ReusePort enables a SO_REUSEPORT listener where the platform
	// supports it, so multiple server processes can share Addr.
	ReusePort bool

	// Logger receives connection-level logs. Nil selects the standard
	// logrus logger.
	Logger *logrus.Logger

	// Metrics, when set, gets the buffer-pool collector registered.
	Metrics prometheus.Registerer
}

// Server accepts connections and runs the exchange loop on each.
type Server struct {
	cfg     Config
	log     *logrus.Logger
	handler Handler
	pool    *filament.BufferPool

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	group      errgroup.Group
	inShutdown atomic.Bool
}

// New creates a server around handler.
func New(cfg Config, handler Handler) *Server {
	if cfg.HeaderBufferSize <= 0 {
		cfg.HeaderBufferSize = filament.BufferSize16KB
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		handler: handler,
		pool:    filament.NewBufferPool(),
		conns:   make(map[net.Conn]struct{}),
	}
	if cfg.Metrics != nil {
		cfg.Metrics.MustRegister(filament.NewPoolCollector(s.pool))
	}
	return s
}

// Listen binds the configured address. MaxConns is applied by wrapping the
// listener; ReusePort falls back to a plain listener (with a warning) on
// platforms without support.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := listen(s.cfg.Addr, s.cfg.ReusePort, s.log)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	return ln, nil
}

// ListenAndServe binds Addr and serves until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown, the listener is closed,
// or Accept fails, then waits for in-flight connections. Accept errors are
// not retried: any other error is returned.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.WithField("addr", ln.Addr().String()).Info("serving")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.group.Wait()
			return err
		}
		s.group.Go(func() error {
			s.serveConn(conn)
			return nil
		})
	}
	return s.group.Wait()
}

// Shutdown stops accepting and waits for in-flight connections until ctx
// expires, at which point remaining connections are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Closing the raw connections unblocks any goroutine parked in
		// a read or write; each then tears down its own exchange.
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

// serveConn runs the exchange loop on one accepted connection.
func (s *Server) serveConn(conn net.Conn) {
	log := s.log.WithFields(logrus.Fields{
		"conn":   uuid.NewString(),
		"remote": conn.RemoteAddr().String(),
	})

	hbuf := s.pool.Get(s.cfg.HeaderBufferSize)
	defer s.pool.Put(hbuf)

	ex := http1.NewExchange(conn, http1.Options{
		HeaderBuffer:   hbuf,
		ReadBufferSize: s.cfg.ReadBufferSize,
	})
	s.trackConn(conn, true)
	defer s.trackConn(conn, false)
	defer ex.Close()

	for {
		if err := ex.Wait(); err != nil {
			s.respondWaitError(ex, err, log)
			return
		}
		req := ex.Request()
		log.WithFields(logrus.Fields{
			"method": req.Method,
			"target": req.Target,
		}).Debug("request")

		if err := s.handler(ex); err != nil {
			log.WithError(err).Warn("handler failed")
			return
		}
		if ex.State() != http1.StateFinished {
			log.Warn("handler left response unfinished")
			return
		}
		if !ex.Reset() {
			return
		}
	}
}

// respondWaitError meets the caller obligations after a failed Wait: pure
// I/O failures get no response, an oversized head gets 431, every other
// parse failure gets 400. The connection closes either way.
func (s *Server) respondWaitError(ex *http1.Exchange, err error, log *logrus.Entry) {
	switch {
	case errors.Is(err, http1.ErrEndOfStream):
		// Peer finished with the connection between requests.
		return
	case errors.Is(err, http1.ErrConnectionResetByPeer),
		errors.Is(err, http1.ErrConnectionTimedOut),
		errors.Is(err, http1.ErrUnexpectedReadFailure):
		log.WithError(err).Debug("read failed")
		return
	case errors.Is(err, http1.ErrHeadersOversize):
		ex.SetStatus(431)
	default:
		ex.SetStatus(400)
	}
	log.WithError(err).Info("rejected request head")
	if err := ex.Send(); err != nil {
		return
	}
	if err := ex.Finish(); err != nil {
		return
	}
	ex.Reset()
}

func (s *Server) trackConn(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}
