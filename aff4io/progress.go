package aff4io

import (
	"errors"
	"io"

	"github.com/Velocidex/c-aff4-sub000/aff4error"
	"github.com/Velocidex/c-aff4-sub000/aff4log"
)

// CopyBufferSize is the minimum buffer size bulk-copy helpers use
// (: "32 KiB (or larger)").
const CopyBufferSize = 32 * 1024

// Aborter is the minimal hook CopyToStream/WriteStream consult between
// iterations. A *aff4ctx.Context satisfies this (its Aborted method),
// but the interface lives here rather than importing aff4ctx directly
// to keep aff4io dependency-free of anything above it in the stack.
type Aborter interface {
	Aborted() bool
}

// ProgressContext is consulted between each bulk-copy iteration.
// Report is called with the number of bytes transferred so far;
// returning false unwinds the copy with Aborted.
type ProgressContext struct {
	// Report is called after each buffer's worth of data is
	// transferred. If nil, DefaultProgress's logic runs instead.
	Report func(offset int64) bool

	// Abort is consulted by DefaultProgress when Report is nil. It is
	// typically a *aff4ctx.Context.
	Abort Aborter
}

// report invokes the configured callback, defaulting to checking Abort.
func (p *ProgressContext) report(offset int64) bool {
	if p == nil {
		return true
	}
	if p.Report != nil {
		return p.Report(offset)
	}
	if p.Abort != nil {
		return !p.Abort.Aborted()
	}
	return true
}

// CopyToStream copies up to length bytes from src's current read
// pointer into dst, using a CopyBufferSize-or-larger buffer, invoking
// progress.Report(offset) between writes. length < 0 means
// "until EOF". Returns the number of bytes copied.
func CopyToStream(dst, src Stream, length int64, progress *ProgressContext) (int64, error) {
	buf := make([]byte, CopyBufferSize)
	var copied int64
	for length < 0 || copied < length {
		want := int64(len(buf))
		if length >= 0 {
			if remaining := length - copied; remaining < want {
				want = remaining
			}
		}
		n, rerr := src.Read(buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return copied, aff4error.Wrap(aff4error.IoError, werr, "copy write")
			}
			copied += int64(n)
			aff4log.Debugf(nil, "copied %d bytes (%d total)", n, copied)
			if !progress.report(copied) {
				return copied, aff4error.New(aff4error.Aborted, "copy aborted")
			}
		}
		if rerr != nil {
			if isEOF(rerr) {
				break
			}
			return copied, aff4error.Wrap(aff4error.IoError, rerr, "copy read")
		}
		if n == 0 {
			break
		}
	}
	return copied, nil
}

// WriteStream copies src (any io.Reader-like Stream positioned at its
// start) into dst in full, reusing CopyToStream's semantics.
func WriteStream(dst Stream, src Stream, progress *ProgressContext) (int64, error) {
	return CopyToStream(dst, src, -1, progress)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
