package streamset

import (
	"fmt"
	"io"
)

type readStream struct {
	// next is the offset, relative to the stream set, of the next header to
	// follow, or nextHeadNone once the chain is exhausted.
	next uint32

	buf    []byte
	bufp   int
	buflen int
}

// Reader is a read session over one file. Reads are sequential per stream;
// there is no repositioning within a stream.
type Reader struct {
	f       File
	streams []readStream

	// base is the absolute file offset where the stream set starts, past
	// any legacy sentinel.
	base int64

	// totalRead counts header and payload bytes consumed so far. Close
	// leaves the file positioned at base+totalRead.
	totalRead int64

	err error
}

// OpenReader starts a read session for a stream set of the given width at
// the file's current offset. The N placeholder headers are read and
// validated immediately; a legacy 13-zero-byte sentinel in front of them is
// skipped.
func OpenReader(f File, streams int) (*Reader, error) {
	if streams < 1 {
		return nil, fmt.Errorf("streamset: invalid stream count %d", streams)
	}
	base, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("streamset: tell: %w", err)
	}

	heads, shift, err := readHeads(f, streams)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		f:         f,
		streams:   make([]readStream, streams),
		base:      base + shift,
		totalRead: int64(streams) * headerSize,
	}
	for i, next := range heads {
		r.streams[i].next = next
	}
	return r, nil
}

// ReadStream copies up to len(p) bytes from the stream into p, following
// the stream's chunk chain as buffers drain. A count shorter than len(p)
// with a nil error means the stream is exhausted; that is the only way a
// short count is returned. On error no partial progress is reported.
func (r *Reader) ReadStream(stream int, p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if stream < 0 || stream >= len(r.streams) {
		return 0, fmt.Errorf("streamset: stream %d out of range", stream)
	}
	s := &r.streams[stream]
	copied := 0
	for copied < len(p) {
		if n := copy(p[copied:], s.buf[s.bufp:s.buflen]); n > 0 {
			s.bufp += n
			copied += n
			continue
		}
		if err := r.fill(s); err != nil {
			r.err = err
			return 0, err
		}
		if s.buflen == 0 {
			break
		}
	}
	return copied, nil
}

// fill loads the stream's next chunk into its buffer, inflating it if the
// chunk was deflated. At the end of the chain the buffer is left empty.
func (r *Reader) fill(s *readStream) error {
	s.buf, s.bufp, s.buflen = nil, 0, 0
	if s.next == nextHeadNone {
		return nil
	}

	if err := seekTo(r.f, r.base+int64(s.next)); err != nil {
		return err
	}
	var h chunkHeader
	if err := h.readFrom(r.f); err != nil {
		return err
	}
	s.next = h.next
	r.totalRead += headerSize

	switch h.ctype {
	case chunkStored:
		if h.clen != h.ulen {
			return fmt.Errorf("%w: stored chunk with clen=%d ulen=%d",
				ErrBadHeader, h.clen, h.ulen)
		}
	case chunkDeflated:
	default:
		return fmt.Errorf("%w: unknown chunk type %d", ErrBadHeader, h.ctype)
	}

	if h.ulen == 0 {
		if h.clen != 0 {
			return fmt.Errorf("%w: empty chunk with clen=%d", ErrBadHeader, h.clen)
		}
		// Nothing to load and nothing to allocate.
		return nil
	}

	raw := make([]byte, h.clen)
	if err := readFull(r.f, raw); err != nil {
		return err
	}
	r.totalRead += int64(h.clen)

	if h.ctype == chunkDeflated {
		dec, err := inflateBlock(raw, h.ulen)
		if err != nil {
			return err
		}
		s.buf = dec
	} else {
		s.buf = raw
	}
	s.buflen = int(h.ulen)
	return nil
}

// TotalRead reports how many bytes of the stream set, headers included, the
// session has consumed.
func (r *Reader) TotalRead() int64 {
	return r.totalRead
}

// Close ends the session and positions the file just past the last byte
// consumed, so the caller can keep parsing whatever follows the stream set.
// The file itself stays open.
func (r *Reader) Close() error {
	err := seekTo(r.f, r.base+r.totalRead)
	for i := range r.streams {
		r.streams[i].buf = nil
		r.streams[i].bufp = 0
		r.streams[i].buflen = 0
	}
	r.err = errClosed
	return err
}
