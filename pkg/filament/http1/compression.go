package http1

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// CompressionScheme identifies the coding applied to a request body under
// its framing, from Transfer-Encoding or Content-Encoding.
type CompressionScheme uint8

const (
	CompressionIdentity CompressionScheme = iota
	CompressionDeflate                    // deflate (zlib container per RFC 9110)
	CompressionGzip                       // gzip, x-gzip
	CompressionCompress                   // compress, x-compress: recognised, not decoded
	CompressionZstd                       // zstd
	CompressionBrotli                     // br
)

// String returns the canonical coding token.
func (c CompressionScheme) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionGzip:
		return "gzip"
	case CompressionCompress:
		return "compress"
	case CompressionZstd:
		return "zstd"
	case CompressionBrotli:
		return "br"
	default:
		return "identity"
	}
}

// parseCompressionToken maps a lowercased coding token to its scheme.
// The x- variants are historical aliases and collapse onto their base
// scheme. Returns false for tokens outside the recognised set.
func parseCompressionToken(tok string) (CompressionScheme, bool) {
	switch tok {
	case "identity":
		return CompressionIdentity, true
	case "deflate":
		return CompressionDeflate, true
	case "gzip", "x-gzip":
		return CompressionGzip, true
	case "compress", "x-compress":
		return CompressionCompress, true
	case "zstd":
		return CompressionZstd, true
	case "br":
		return CompressionBrotli, true
	default:
		return CompressionIdentity, false
	}
}

// decompressor layers a decoder over the raw body stream.
//
// The decoder set is closed, so it is modelled as a tagged variant rather
// than a generic reader graph: one of rc (zlib, gzip or brotli readers) or
// zr (zstd) is active once initialised.
//
// Construction is lazy: gzip and zlib read their stream header inside
// NewReader, and with Expect: 100-continue that data does not exist until
// after the interim response has been sent. The decoder therefore comes up
// on the first body read, not during Wait.
type decompressor struct {
	scheme CompressionScheme
	src    io.Reader // raw (framed) body stream

	rc io.ReadCloser
	zr *zstd.Decoder
}

func newDecompressor(scheme CompressionScheme, src io.Reader) *decompressor {
	return &decompressor{scheme: scheme, src: src}
}

func (d *decompressor) init() error {
	switch d.scheme {
	case CompressionDeflate:
		rc, err := zlib.NewReader(d.src)
		if err != nil {
			return d.mapErr(err)
		}
		d.rc = rc
	case CompressionGzip:
		rc, err := gzip.NewReader(d.src)
		if err != nil {
			return d.mapErr(err)
		}
		d.rc = rc
	case CompressionBrotli:
		d.rc = io.NopCloser(brotli.NewReader(d.src))
	case CompressionZstd:
		// Decoder concurrency is pinned to one: the exchange is
		// single-threaded by contract and must not spawn workers.
		zr, err := zstd.NewReader(d.src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return d.mapErr(err)
		}
		d.zr = zr
	default:
		panic("http1: decompressor over unsupported scheme")
	}
	return nil
}

// Read decodes body bytes, initialising the decoder on first use.
func (d *decompressor) Read(p []byte) (int, error) {
	if d.rc == nil && d.zr == nil {
		if err := d.init(); err != nil {
			return 0, err
		}
	}
	var (
		n   int
		err error
	)
	if d.zr != nil {
		n, err = d.zr.Read(p)
	} else {
		n, err = d.rc.Read(p)
	}
	if err != nil && err != io.EOF {
		return n, d.mapErr(err)
	}
	return n, err
}

// mapErr keeps taxonomy errors from the underlying stream intact and
// projects decoder-originated failures onto ErrDecompressionFailure.
func (d *decompressor) mapErr(err error) error {
	if isWireError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDecompressionFailure, err)
}

// release frees decoder resources. Safe to call on an uninitialised or
// already-released decompressor.
func (d *decompressor) release() {
	if d.zr != nil {
		d.zr.Close()
		d.zr = nil
	}
	if d.rc != nil {
		d.rc.Close()
		d.rc = nil
	}
}
