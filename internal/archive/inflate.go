package archive

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/xenonrt/kernel/internal/kernelerr"
)

// inflate decompresses a raw deflate stream to exactly wantSize bytes,
// reporting ErrDecompressionError on any stream failure or a short read
// (spec.md §4.8's "raw deflate streams").
func inflate(compressed []byte, wantSize int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	out := make([]byte, wantSize)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, kernelerr.ErrDecompressionError
	}
	if int64(n) != wantSize {
		return nil, kernelerr.ErrDecompressionError
	}
	return out, nil
}
