package imagestream

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"io"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// CompressionMethod selects the per-chunk codec a bevy's chunks are
// compressed with. This is independent of
// zip64.CompressionMethod: a bevy/index pair is always written to its
// ZIP volume as a Stored member, since the compression already
// happened at the chunk level here.
type CompressionMethod int

const (
	MethodStored CompressionMethod = iota
	MethodZlib
	MethodDeflate
	MethodSnappy
	MethodLZ4
)

func (m CompressionMethod) String() string {
	switch m {
	case MethodStored:
		return "stored"
	case MethodZlib:
		return "zlib"
	case MethodDeflate:
		return "deflate"
	case MethodSnappy:
		return "snappy"
	case MethodLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// compressChunk compresses one chunk's bytes with the configured
// codec. MethodStored is a passthrough.
func compressChunk(method CompressionMethod, chunk []byte) ([]byte, error) {
	switch method {
	case MethodStored:
		return chunk, nil
	case MethodZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(chunk); err != nil {
			return nil, aff4error.Wrap(aff4error.IoError, err, "zlib chunk compress")
		}
		if err := w.Close(); err != nil {
			return nil, aff4error.Wrap(aff4error.IoError, err, "zlib chunk compress close")
		}
		return buf.Bytes(), nil
	case MethodDeflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, aff4error.Wrap(aff4error.MemoryError, err, "deflate chunk writer init")
		}
		if _, err := w.Write(chunk); err != nil {
			return nil, aff4error.Wrap(aff4error.IoError, err, "deflate chunk compress")
		}
		if err := w.Close(); err != nil {
			return nil, aff4error.Wrap(aff4error.IoError, err, "deflate chunk compress close")
		}
		return buf.Bytes(), nil
	case MethodSnappy:
		return snappy.Encode(nil, chunk), nil
	case MethodLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(chunk); err != nil {
			return nil, aff4error.Wrap(aff4error.IoError, err, "lz4 chunk compress")
		}
		if err := w.Close(); err != nil {
			return nil, aff4error.Wrap(aff4error.IoError, err, "lz4 chunk compress close")
		}
		return buf.Bytes(), nil
	default:
		return nil, aff4error.Newf(aff4error.NotImplemented, "unsupported chunk compression method %d", method)
	}
}

// decompressChunk inflates data back to its uncompressedLen bytes.
// MethodStored is a passthrough (the caller only reaches this branch
// when the chunk was not stored verbatim, i.e. data is genuinely
// compressed).
func decompressChunk(method CompressionMethod, data []byte, uncompressedLen int) ([]byte, error) {
	switch method {
	case MethodStored:
		return data, nil
	case MethodZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, aff4error.Wrap(aff4error.ParsingError, err, "zlib chunk decompress init")
		}
		defer r.Close()
		return readExact(r, uncompressedLen)
	case MethodDeflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		return readExact(r, uncompressedLen)
	case MethodSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, aff4error.Wrap(aff4error.ParsingError, err, "snappy chunk decompress")
		}
		return out, nil
	case MethodLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return readExact(r, uncompressedLen)
	default:
		return nil, aff4error.Newf(aff4error.NotImplemented, "unsupported chunk compression method %d", method)
	}
}

func readExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, aff4error.Wrap(aff4error.ParsingError, err, "decompressing chunk")
	}
	return buf, nil
}
