package streamset

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// errNoGain aborts a deflate attempt whose output would reach the size of
// the input. Capping the destination at one byte less than the source makes
// compression a strict win or nothing.
var errNoGain = errors.New("streamset: deflate output not smaller than input")

// cappedBuffer accepts writes up to a fixed capacity and fails beyond it.
type cappedBuffer struct {
	b []byte
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if len(c.b)+len(p) > cap(c.b) {
		return 0, errNoGain
	}
	c.b = append(c.b, p...)
	return len(p), nil
}

// deflateBlock compresses src at the given level and returns the result
// only if it came out strictly smaller than src. Failure of any kind,
// including "would not fit", is not an error: the chunk is simply stored.
func deflateBlock(src []byte, level int) ([]byte, bool) {
	if level <= 0 || len(src) < 2 {
		return nil, false
	}
	dst := &cappedBuffer{b: make([]byte, 0, len(src)-1)}
	zw, err := flate.NewWriter(dst, level)
	if err != nil {
		return nil, false
	}
	if _, err := zw.Write(src); err != nil {
		return nil, false
	}
	if err := zw.Close(); err != nil {
		return nil, false
	}
	return dst.b, true
}

// inflateBlock decompresses src into a fresh buffer of exactly ulen bytes.
// Producing any other length is a format error, as is trailing garbage in
// src.
func inflateBlock(src []byte, ulen uint32) ([]byte, error) {
	br := bytes.NewReader(src)
	zr := flate.NewReader(br)
	defer zr.Close()

	dst := make([]byte, ulen)
	if _, err := io.ReadFull(zr, dst); err != nil {
		return nil, fmt.Errorf("streamset: inflate: %w", err)
	}
	var tail [1]byte
	if _, err := io.ReadFull(zr, tail[:]); err != io.EOF {
		return nil, fmt.Errorf("%w: inflated size exceeds declared %d",
			ErrBadHeader, ulen)
	}
	if br.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes of trailing data after deflate stream",
			ErrBadHeader, br.Len())
	}
	return dst, nil
}
