package streamset

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestWireLittleEndianLayout(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := writeU8(buf, 0x7f); err != nil {
		t.Fatalf("writeU8: %v", err)
	}
	if err := writeU16(buf, 0x1234); err != nil {
		t.Fatalf("writeU16: %v", err)
	}
	if err := writeU32(buf, 0xdeadbeef); err != nil {
		t.Fatalf("writeU32: %v", err)
	}

	want := []byte{0x7f, 0x34, 0x12, 0xef, 0xbe, 0xad, 0xde}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	if v, err := readU8(buf); err != nil || v != 0x7f {
		t.Fatalf("readU8: got %#x, %v", v, err)
	}
	if v, err := readU16(buf); err != nil || v != 0x1234 {
		t.Fatalf("readU16: got %#x, %v", v, err)
	}
	if v, err := readU32(buf); err != nil || v != 0xdeadbeef {
		t.Fatalf("readU32: got %#x, %v", v, err)
	}
}

func TestWireShortRead(t *testing.T) {
	if _, err := readU32(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("readU32 on 3 bytes: expected error")
	}
}

func TestChunkHeaderLayout(t *testing.T) {
	h := chunkHeader{ctype: chunkDeflated, clen: 0x0102, ulen: 0x0a0b0c0d, next: 5}
	buf := new(bytes.Buffer)
	if err := h.writeTo(buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}
	if buf.Len() != headerSize {
		t.Fatalf("header is %d bytes, want %d", buf.Len(), headerSize)
	}

	want := []byte{
		4,
		0x02, 0x01, 0x00, 0x00,
		0x0d, 0x0c, 0x0b, 0x0a,
		0x05, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	var got chunkHeader
	if err := got.readFrom(buf); err != nil {
		t.Fatalf("readFrom: %v", err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestDeflateBlockStrictWin(t *testing.T) {
	compressible := bytes.Repeat([]byte("streamset "), 1000)
	comp, ok := deflateBlock(compressible, 6)
	if !ok {
		t.Fatal("compressible input did not deflate")
	}
	if len(comp) >= len(compressible) {
		t.Fatalf("deflated to %d bytes, input was %d", len(comp), len(compressible))
	}

	dec, err := inflateBlock(comp, uint32(len(compressible)))
	if err != nil {
		t.Fatalf("inflateBlock: %v", err)
	}
	if !bytes.Equal(dec, compressible) {
		t.Fatal("round trip mismatch")
	}
}

func TestDeflateBlockRefusesNoGain(t *testing.T) {
	noise := make([]byte, 64)
	rand.New(rand.NewSource(1)).Read(noise)
	if _, ok := deflateBlock(noise, 9); ok {
		t.Fatal("64 random bytes should not deflate to 63 or fewer")
	}

	if _, ok := deflateBlock([]byte("abc"), 0); ok {
		t.Fatal("level 0 must never deflate")
	}
	if _, ok := deflateBlock([]byte{1}, 9); ok {
		t.Fatal("single byte must never deflate")
	}
}

func TestInflateBlockLengthMismatch(t *testing.T) {
	src := bytes.Repeat([]byte("0123456789"), 500)
	comp, ok := deflateBlock(src, 6)
	if !ok {
		t.Fatal("input did not deflate")
	}

	// Declared size smaller than actual: trailing bytes are a format error.
	if _, err := inflateBlock(comp, uint32(len(src)-1)); err == nil {
		t.Fatal("expected error for understated size")
	}

	// Declared size larger than actual: the payload runs dry.
	if _, err := inflateBlock(comp, uint32(len(src)+1)); err == nil {
		t.Fatal("expected error for overstated size")
	}
}
