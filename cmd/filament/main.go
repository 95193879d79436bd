// Command filament runs a demo echo server on the exchange engine.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/watt-toolkit/filament/pkg/filament/http1"
	"github.com/watt-toolkit/filament/pkg/filament/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filament",
		Short: "Embeddable HTTP/1.x exchange engine",
	}
	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		addr         string
		headerBuffer int
		maxConns     int
		reusePort    bool
		logLevel     string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			srv := server.New(server.Config{
				Addr:             addr,
				HeaderBufferSize: headerBuffer,
				MaxConns:         maxConns,
				ReusePort:        reusePort,
				Logger:           log,
				Metrics:          prometheus.NewRegistry(),
			}, echo)
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&headerBuffer, "header-buffer", 16*1024, "request head size limit in bytes")
	cmd.Flags().IntVar(&maxConns, "max-conns", 0, "maximum concurrent connections (0 = unlimited)")
	cmd.Flags().BoolVar(&reusePort, "reuse-port", false, "bind with SO_REUSEPORT")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

// echo answers GET with a banner and echoes the request body for anything
// that carries one, honoring Expect: 100-continue.
func echo(ex *http1.Exchange) error {
	req := ex.Request()

	if v, ok := req.Header.Get("Expect"); ok {
		if !equalsFold(v, "100-continue") {
			ex.SetStatus(417)
			if err := ex.Send(); err != nil {
				return err
			}
			return ex.Finish()
		}
		ex.SetStatus(100)
		if err := ex.Send(); err != nil {
			return err
		}
		ex.SetStatus(200)
	}

	if !req.HasBody() {
		body := "filament echo server: send a body to get it back\n"
		ex.SetTransfer(http1.TransferContentLength(uint64(len(body))))
		ex.ResponseHeader().Set("Content-Type", "text/plain; charset=utf-8")
		if err := ex.Send(); err != nil {
			return err
		}
		if _, err := ex.WriteString(body); err != nil {
			return err
		}
		return ex.Finish()
	}

	ex.SetTransfer(http1.TransferChunked())
	if ct, ok := req.Header.Get("Content-Type"); ok {
		ex.ResponseHeader().Set("Content-Type", ct)
	}
	if err := ex.Send(); err != nil {
		return err
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := ex.Read(buf)
		if n > 0 {
			if _, werr := ex.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return ex.Finish()
}

func equalsFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 32
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 32
		}
		if ca != cb {
			return false
		}
	}
	return true
}
