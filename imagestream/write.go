package imagestream

import (
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4io"
	"github.com/Velocidex/c-aff4-sub000/rdf"
	"github.com/Velocidex/c-aff4-sub000/resolver"
	"github.com/Velocidex/c-aff4-sub000/zip64"
)

// Write implements aff4io.Stream's "small-write" path: bytes accumulate in an internal buffer; full chunks are
// handed to the current bevy as they complete; the bevy itself is
// flushed once it reaches ChunksPerSegment chunks. The final partial
// chunk is only flushed on Flush.
func (s *ImageStream) Write(p []byte) (int, error) {
	if !s.writable {
		return 0, aff4error.New(aff4error.InvalidInput, "image stream is not writable")
	}
	written := len(p)
	s.writeBuf = append(s.writeBuf, p...)
	for len(s.writeBuf) >= s.opts.ChunkSize {
		chunk := make([]byte, s.opts.ChunkSize)
		copy(chunk, s.writeBuf[:s.opts.ChunkSize])
		s.writeBuf = s.writeBuf[s.opts.ChunkSize:]
		if err := s.emitChunk(chunk); err != nil {
			return 0, err
		}
	}
	s.size += int64(written)
	return written, nil
}

// emitChunk appends chunk to the in-flight bevy, flushing the bevy
// once it is full.
func (s *ImageStream) emitChunk(chunk []byte) error {
	s.checkpoint = false
	s.bevyChunks = append(s.bevyChunks, chunk)
	if len(s.bevyChunks) >= s.opts.ChunksPerSegment {
		return s.flushBevy()
	}
	return nil
}

// flushBevy compresses and writes out the current bevy (payload +
// index members), then awaits both before marking the stream
// checkpointed again -- readers never observe a partially finalized
// bevy.
func (s *ImageStream) flushBevy() error {
	if len(s.bevyChunks) == 0 {
		s.checkpoint = true
		return nil
	}
	writer := NewBevyWriter(bgContext(), s.actx, s.opts.Compression, s.opts.ChunkSize, len(s.bevyChunks))
	for i, chunk := range s.bevyChunks {
		writer.Submit(i, chunk)
	}
	payload, index, err := writer.Finalize(len(s.bevyChunks))
	if err != nil {
		return err
	}

	payloadName := rdf.BevyMemberPath(s.urn, s.bevyIndex, "")
	indexName := rdf.BevyMemberPath(s.urn, s.bevyIndex, ".index")

	if err := writeBufferedMember(s.volume, payloadName, payload); err != nil {
		return err
	}
	if err := writeBufferedMember(s.volume, indexName, encodeBevyIndex(index)); err != nil {
		return err
	}

	s.bevyChunks = nil
	s.bevyIndex++
	s.checkpoint = true
	return nil
}

func writeBufferedMember(v MemberVolume, name string, data []byte) error {
	seg := v.CreateMemberBuffered(name, zip64.MethodStored)
	if _, err := seg.Write(data); err != nil {
		return err
	}
	return seg.Close()
}

// Flush finalizes any partial chunk and any partial bevy, and records
// the stream's final size on the resolver.
func (s *ImageStream) Flush() error {
	if !s.writable {
		return nil
	}
	if len(s.writeBuf) > 0 {
		last := make([]byte, len(s.writeBuf))
		copy(last, s.writeBuf)
		s.writeBuf = nil
		if err := s.emitChunk(last); err != nil {
			return err
		}
	}
	if err := s.flushBevy(); err != nil {
		return err
	}
	s.res.Set(s.urn, resolver.PredSize, rdf.XSDInteger(s.size), true)
	return nil
}

// WriteStream implements the "optimized" bulk-write path: it pulls
// chunk-sized buffers directly from src (any aff4io.Stream positioned
// at its start) instead of accumulating through the small-write
// buffer, submitting each chunk to the current bevy writer as it is
// read. progress, if non-nil, is consulted between chunks the way
// CopyToStream consults it between buffer writes.
func (s *ImageStream) WriteStream(src aff4io.Stream, progress *aff4io.ProgressContext) (int64, error) {
	if !s.writable {
		return 0, aff4error.New(aff4error.InvalidInput, "image stream is not writable")
	}
	var total int64
	buf := make([]byte, s.opts.ChunkSize)
	for {
		n, eof, err := readChunk(src, buf)
		if err != nil {
			return total, err
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cerr := s.emitChunk(chunk); cerr != nil {
				return total, cerr
			}
			total += int64(n)
			s.size += int64(n)
			if progress != nil {
				ok := true
				if progress.Report != nil {
					ok = progress.Report(total)
				} else if progress.Abort != nil {
					ok = !progress.Abort.Aborted()
				}
				if !ok {
					return total, aff4error.New(aff4error.Aborted, "WriteStream aborted")
				}
			}
		}
		if eof {
			break
		}
	}
	return total, nil
}

// readChunk fills buf as far as src allows, stopping early (without
// error) on EOF rather than treating a short final chunk as an
// unexpected-EOF failure the way io.ReadFull/aff4io.ReadFull do --
// the last chunk of a stream is legitimately shorter than chunkSize.
func readChunk(src aff4io.Stream, buf []byte) (n int, eof bool, err error) {
	for n < len(buf) {
		m, rerr := src.Read(buf[n:])
		n += m
		if rerr != nil {
			if rerr == io.EOF {
				return n, true, nil
			}
			return n, false, aff4error.Wrap(aff4error.IoError, rerr, "reading WriteStream source")
		}
		if m == 0 {
			return n, true, nil
		}
	}
	return n, false, nil
}
