//go:build !linux && !darwin

package server

import (
	"net"

	"github.com/sirupsen/logrus"
)

func listen(addr string, reusePort bool, log *logrus.Logger) (net.Listener, error) {
	if reusePort {
		log.Warn("reuseport is not supported on this platform")
	}
	return net.Listen("tcp", addr)
}
