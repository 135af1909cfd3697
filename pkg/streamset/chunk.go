package streamset

import (
	"errors"
	"fmt"
	"io"
)

// These constants are part of the wire format and must not be changed.
const (
	chunkStored   = 3
	chunkDeflated = 4

	headerSize = 13

	// nextHeadNone in a header's next field means the chain ends here.
	// Offset 0 always holds stream 0's placeholder, so the value is
	// unambiguous.
	nextHeadNone = 0
)

var (
	// ErrSeek is returned when the file lands at an unexpected offset.
	ErrSeek = errors.New("streamset: seek landed at wrong offset")

	// ErrBadHeader is returned when a chunk header fails validation.
	ErrBadHeader = errors.New("streamset: bad chunk header")

	// ErrStreamSetFull is returned when an append would push the stream set
	// past the 4 GiB the 32-bit header offsets can address.
	ErrStreamSetFull = errors.New("streamset: stream set exceeds 4 GiB")

	errClosed = errors.New("streamset: session is closed")
)

// chunkHeader is the fixed 13-byte frame in front of every payload.
type chunkHeader struct {
	ctype uint8  // chunkStored or chunkDeflated
	clen  uint32 // payload bytes on disk
	ulen  uint32 // payload bytes after inflation; equals clen when stored
	next  uint32 // offset of the stream's next header, nextHeadNone if unknown
}

func (h *chunkHeader) writeTo(w io.Writer) error {
	if err := writeU8(w, h.ctype); err != nil {
		return err
	}
	if err := writeU32(w, h.clen); err != nil {
		return err
	}
	if err := writeU32(w, h.ulen); err != nil {
		return err
	}
	return writeU32(w, h.next)
}

func (h *chunkHeader) readFrom(r io.Reader) error {
	var err error
	if h.ctype, err = readU8(r); err != nil {
		return err
	}
	if h.clen, err = readU32(r); err != nil {
		return err
	}
	if h.ulen, err = readU32(r); err != nil {
		return err
	}
	h.next, err = readU32(r)
	return err
}

func (h *chunkHeader) isZero() bool {
	return h.ctype == 0 && h.clen == 0 && h.ulen == 0 && h.next == 0
}

// readHeads consumes the n placeholder headers at the file's current
// position and returns each stream's first-chunk offset.
//
// Some historical writers emitted 13 stray zero bytes in front of the real
// placeholders. If stream 0's header is all zero it is taken to be such a
// sentinel: the stream set is shifted by one header and stream 0 is re-read.
// The workaround applies at most once and only to stream 0; a genuine
// placeholder always has ctype chunkStored.
//
// The returned shift is how many sentinel bytes were skipped (0 or 13); the
// caller folds it into the stream set's base offset.
func readHeads(f File, n int) (heads []uint32, shift int64, err error) {
	heads = make([]uint32, n)
	for i := 0; i < n; i++ {
		var h chunkHeader
		if err := h.readFrom(f); err != nil {
			return nil, 0, err
		}
		if i == 0 && shift == 0 && h.isZero() {
			shift = headerSize
			i--
			continue
		}
		if h.ctype != chunkStored || h.clen != 0 || h.ulen != 0 {
			return nil, 0, fmt.Errorf(
				"%w: stream %d placeholder has type=%d clen=%d ulen=%d",
				ErrBadHeader, i, h.ctype, h.clen, h.ulen)
		}
		heads[i] = h.next
	}
	return heads, shift, nil
}

// ChunkInfo describes one on-disk chunk of a stream.
type ChunkInfo struct {
	// Offset of the chunk's header, relative to the start of the stream set.
	Offset uint32

	// Type is chunk type 3 (stored) or 4 (deflated).
	Type uint8

	// CompLen is the payload length on disk.
	CompLen uint32

	// DecLen is the payload length after inflation.
	DecLen uint32

	// Next is the offset of the stream's next header, or 0 at the end of
	// the chain.
	Next uint32
}

// Chunks walks every stream's header chain starting at the file's current
// position and returns the chunks of each stream in chain order. Payloads
// are not read or inflated. The file offset is unspecified afterwards.
func Chunks(f File, streams int) ([][]ChunkInfo, error) {
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
	base += shift

	all := make([][]ChunkInfo, streams)
	for i, next := range heads {
		for next != nextHeadNone {
			if err := seekTo(f, base+int64(next)); err != nil {
				return nil, err
			}
			var h chunkHeader
			if err := h.readFrom(f); err != nil {
				return nil, err
			}
			if h.ctype != chunkStored && h.ctype != chunkDeflated {
				return nil, fmt.Errorf("%w: stream %d chunk at %d has type %d",
					ErrBadHeader, i, next, h.ctype)
			}
			all[i] = append(all[i], ChunkInfo{
				Offset:  next,
				Type:    h.ctype,
				CompLen: h.clen,
				DecLen:  h.ulen,
				Next:    h.next,
			})
			next = h.next
		}
	}
	return all, nil
}
