package streamset

import (
	"fmt"
	"io"
	"math"
)

// Buffer sizing. Higher compression levels buffer more input per chunk so
// the codec has more to work with.
const (
	baseBufSize = 100 * 1024
	maxBufSize  = baseBufSize * maxLevel

	maxLevel = 9
)

type writeStream struct {
	// patch is the offset, relative to the stream set, of the 4-byte
	// next-header field inside the stream's most recent header. It is
	// overwritten with the location of the next chunk once that is known.
	patch uint32

	buf    []byte
	buflen int
}

// Writer is a write session over one file. It owns its stream records for
// its lifetime and has sole use of the file between OpenWriter and Close,
// but never closes the file itself.
type Writer struct {
	f       File
	streams []writeStream

	// base is the absolute file offset where the stream set starts.
	base int64

	// pos is the offset of the next append, relative to base. It always
	// equals the stream set's current length between operations.
	pos uint32

	level   int
	bufsize int

	err error
}

// OpenWriter starts a write session for the given number of streams at the
// file's current offset. level 0 disables compression; levels 1 through 9
// select the deflate effort. The placeholder headers reserving each
// stream's chain head are written immediately.
func OpenWriter(f File, streams, level int) (*Writer, error) {
	if streams < 1 || uint64(streams)*headerSize > math.MaxUint32 {
		return nil, fmt.Errorf("streamset: invalid stream count %d", streams)
	}
	if level < 0 || level > maxLevel {
		return nil, fmt.Errorf("streamset: invalid compression level %d", level)
	}
	base, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("streamset: tell: %w", err)
	}

	bufsize := baseBufSize
	if level > 0 {
		bufsize = baseBufSize * level
	}

	w := &Writer{
		f:       f,
		streams: make([]writeStream, streams),
		base:    base,
		level:   level,
		bufsize: bufsize,
	}
	for i := range w.streams {
		s := &w.streams[i]
		s.patch = w.pos + 9
		hdr := chunkHeader{ctype: chunkStored}
		if err := hdr.writeTo(f); err != nil {
			return nil, err
		}
		w.pos += headerSize
		s.buf = make([]byte, bufsize)
	}
	return w, nil
}

// WriteStream queues p on stream's buffer, emitting a chunk each time the
// buffer fills. Either all of p is accepted or an error is returned.
func (w *Writer) WriteStream(stream int, p []byte) error {
	if w.err != nil {
		return w.err
	}
	if stream < 0 || stream >= len(w.streams) {
		return fmt.Errorf("streamset: stream %d out of range", stream)
	}
	s := &w.streams[stream]
	for len(p) > 0 {
		n := copy(s.buf[s.buflen:], p)
		s.buflen += n
		p = p[n:]
		if s.buflen == w.bufsize {
			if err := w.flush(s); err != nil {
				w.err = err
				return err
			}
		}
	}
	return nil
}

// Flush emits whatever stream has buffered as a chunk of its own. Flushing
// an empty buffer writes nothing. Containers call this at their own record
// boundaries; WriteStream and Close call flush as needed without it.
func (w *Writer) Flush(stream int) error {
	if w.err != nil {
		return w.err
	}
	if stream < 0 || stream >= len(w.streams) {
		return fmt.Errorf("streamset: stream %d out of range", stream)
	}
	s := &w.streams[stream]
	if s.buflen == 0 {
		return nil
	}
	if err := w.flush(s); err != nil {
		w.err = err
		return err
	}
	return nil
}

// flush emits the stream's buffer as one chunk: back-patch the previous
// header's next field with the upcoming chunk's location, then append the
// new header and payload at the end of the stream set.
func (w *Writer) flush(s *writeStream) error {
	if s.buflen > w.bufsize || w.bufsize > maxBufSize {
		panic("streamset: bad writer buffer state")
	}

	// Worst case the payload goes out stored, so buflen bounds the growth.
	if uint64(w.pos)+headerSize+uint64(s.buflen) > math.MaxUint32 {
		return ErrStreamSetFull
	}

	if err := seekTo(w.f, w.base+int64(s.patch)); err != nil {
		return err
	}
	if err := writeU32(w.f, w.pos); err != nil {
		return err
	}
	s.patch = w.pos + 9

	if err := seekTo(w.f, w.base+int64(w.pos)); err != nil {
		return err
	}

	payload := s.buf[:s.buflen]
	hdr := chunkHeader{ctype: chunkStored, ulen: uint32(s.buflen)}
	if comp, ok := deflateBlock(payload, w.level); ok {
		payload = comp
		hdr.ctype = chunkDeflated
	}
	hdr.clen = uint32(len(payload))

	if err := hdr.writeTo(w.f); err != nil {
		return err
	}
	w.pos += headerSize
	if err := writeFull(w.f, payload); err != nil {
		return err
	}
	w.pos += hdr.clen

	s.buflen = 0
	s.buf = make([]byte, w.bufsize)
	return nil
}

// Offset returns the absolute file offset of the next append, i.e. the
// current end of the stream set.
func (w *Writer) Offset() int64 {
	return w.base + int64(w.pos)
}

// Close flushes every stream with buffered data and ends the session. The
// file stays open and positioned at the end of the stream set.
func (w *Writer) Close() error {
	firstErr := w.err
	for i := range w.streams {
		s := &w.streams[i]
		if firstErr == nil && s.buflen > 0 {
			if err := w.flush(s); err != nil {
				firstErr = err
			}
		}
		s.buf = nil
		s.buflen = 0
	}
	w.err = errClosed
	return firstErr
}
