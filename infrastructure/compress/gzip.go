// Package compress expands gzip-compressed bundles.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

// DefaultMaxSize bounds the expanded size of a bundle.
const DefaultMaxSize = 64 << 20

// Gzip decompresses bundles with klauspost/compress.
type Gzip struct {
	maxSize int64
}

var _ ports.Decompressor = (*Gzip)(nil)

// NewGzip returns a decompressor that refuses output larger than maxSize
// bytes. A non-positive maxSize selects DefaultMaxSize.
func NewGzip(maxSize int64) *Gzip {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Gzip{maxSize: maxSize}
}

// Decompress expands data.
func (g *Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, g.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress bundle: %w", err)
	}
	if int64(len(out)) > g.maxSize {
		return nil, fmt.Errorf("decompressed bundle exceeds %d bytes", g.maxSize)
	}
	return out, nil
}
