// Package streamset multiplexes N independent logical byte streams into a
// single seekable file, compressing each stream's data one chunk at a time.
//
// A stream set occupies a region of the file starting wherever the file
// offset is when the session is opened. The region begins with N back-to-back
// 13-byte chunk headers, one per stream, acting as the heads of N singly
// linked lists. Every header has the form:
//
//	offset 0  u8      chunk type: 3 = stored, 4 = deflated
//	offset 1  u32 LE  payload length on disk
//	offset 5  u32 LE  payload length after decompression
//	offset 9  u32 LE  offset of the stream's next header, 0 if none yet
//
// followed by the payload bytes. All offsets in headers are relative to the
// start of the stream set. The u32 fields are written as two little-endian
// u16 halves, low half first.
//
// Writing appends chunks at the end of the region in whatever order the
// per-stream buffers fill up, so chunks of different streams interleave
// freely. Each time a chunk is emitted, the previous header of the same
// stream is back-patched so its next-header field points at the new chunk.
// The initial N headers are placeholders that exist only to be back-patched;
// they carry no payload.
//
// Reading follows a stream's chain of headers, inflating each payload into a
// per-stream buffer. A next-header offset of zero marks the end of a chain:
// no real chunk can live at offset zero, which is always stream 0's
// placeholder.
//
// When reading, call OpenReader and then ReadStream; a short count with a
// nil error means the stream is exhausted. When writing, call OpenWriter,
// WriteStream as often as needed, and Close to flush whatever is still
// buffered. Neither Readers nor Writers are safe to use concurrently.
//
// The session uses the caller's file but never closes it. After a read
// session closes, the file offset is positioned just past the last byte the
// session consumed, so a surrounding container format can keep parsing.
package streamset
