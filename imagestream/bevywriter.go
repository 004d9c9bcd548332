package imagestream

import (
	"bytes"
	"context"
	"sync"

	"github.com/Velocidex/c-aff4-sub000/aff4ctx"
	"github.com/Velocidex/c-aff4-sub000/aff4error"
)

// BevyWriter batches one bevy's worth of chunks: a single-owner
// producer submits (chunk_id, data) jobs which fan out across the
// shared thread pool for compression. Per the Design Notes' simplification of the merged
// future-list/index mutex design, one mutex here guards both the
// append-only payload buffer and the index array -- chunk_id slots
// are disjoint, so the lock is only ever held for the length of one
// append, never across a whole job.
type BevyWriter struct {
	method    CompressionMethod
	chunkSize int

	mu      sync.Mutex
	payload bytes.Buffer
	index   []BevyIndex

	g errGroup
}

// errGroup is the minimal surface imagestream needs from
// golang.org/x/sync/errgroup.Group, so this file doesn't have to name
// the concrete type in every signature.
type errGroup interface {
	Go(func() error)
	Wait() error
}

// NewBevyWriter creates a writer for a bevy of up to maxChunks chunks,
// each chunkSize bytes uncompressed (the last chunk of the final bevy
// of a stream may be shorter; callers pass its actual length to
// Submit via len(data)). Compression jobs run on ctxPool's shared
// thread pool.
func NewBevyWriter(ctx context.Context, ctxPool *aff4ctx.Context, method CompressionMethod, chunkSize, maxChunks int) *BevyWriter {
	g, _ := ctxPool.Pool(ctx)
	return &BevyWriter{
		method:    method,
		chunkSize: chunkSize,
		index:     make([]BevyIndex, maxChunks),
		g:         g,
	}
}

// Submit enqueues chunk chunkID (0-based within this bevy) for
// compression. It must not be called again for the same chunkID, and
// must not be called after Finalize.
func (w *BevyWriter) Submit(chunkID int, data []byte) {
	w.g.Go(func() error {
		compressed, err := compressChunk(w.method, data)
		if err != nil {
			return err
		}
		// Incompressible bypass: compare against this chunk's own uncompressed
		// length so the final, possibly short, chunk of a stream is
		// judged against its real size rather than the nominal
		// chunk_size.
		stored := w.method == MethodStored || len(compressed) >= len(data)-16
		if stored {
			compressed = data
		}

		w.mu.Lock()
		offset := uint64(w.payload.Len())
		w.payload.Write(compressed)
		length := uint32(len(compressed))
		if stored {
			length = uint32(len(data))
		}
		w.index[chunkID] = BevyIndex{Offset: offset, Length: length}
		w.mu.Unlock()
		return nil
	})
}

// Finalize awaits every submitted compression job, propagating the
// first error, and returns the finished payload bytes and the chunk_id-ordered
// index, trimmed to actualChunks (the number of chunks this bevy
// actually holds, which may be less than its configured maxChunks for
// the final partial bevy of a stream).
func (w *BevyWriter) Finalize(actualChunks int) ([]byte, []BevyIndex, error) {
	if err := w.g.Wait(); err != nil {
		return nil, nil, aff4error.Wrap(aff4error.IoError, err, "compressing bevy chunk")
	}
	if actualChunks > len(w.index) {
		actualChunks = len(w.index)
	}
	return w.payload.Bytes(), w.index[:actualChunks], nil
}
