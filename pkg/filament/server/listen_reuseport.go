//go:build linux || darwin

package server

import (
	"net"

	"github.com/sirupsen/logrus"
	"github.com/valyala/tcplisten"
)

// listen binds addr, with SO_REUSEPORT when requested. tcplisten only
// speaks tcp4/tcp6, so reuseport listeners bind tcp4.
func listen(addr string, reusePort bool, log *logrus.Logger) (net.Listener, error) {
	if !reusePort {
		return net.Listen("tcp", addr)
	}
	cfg := tcplisten.Config{ReusePort: true}
	ln, err := cfg.NewListener("tcp4", addr)
	if err != nil {
		log.WithError(err).Warn("reuseport listener failed, falling back")
		return net.Listen("tcp", addr)
	}
	return ln, nil
}
