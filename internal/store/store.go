package store

import (
	"context"
	"fmt"
	"os"

	"github.com/muxfile/muxfile/internal/observability"
	"github.com/muxfile/muxfile/pkg/streamset"
)

// Store is a stream set bound to a file on disk. Unlike the engine, which
// borrows a file from its caller, the store owns the file for the lifetime
// of the session.
type Store struct {
	// ctx is the context for the store
	ctx context.Context

	// name is the name of the underlying file
	name string

	// streams is the width of the stream set
	streams int

	// level is the compression level used when writing
	level int

	// writer is the underlying write session
	writer *streamset.Writer

	// reader is the underlying read session
	reader *streamset.Reader

	// db is the underlying database file
	db *os.File

	// logger is the logger for the store
	logger *observability.Logger
}

// New creates a new store over the named file with the given stream count.
// level only matters when the store is opened for writing.
func New(
	ctx context.Context,
	fileName string,
	streams int,
	level int,
	logger *observability.Logger,
) *Store {
	return &Store{
		ctx:     ctx,
		name:    fileName,
		streams: streams,
		level:   level,
		logger:  logger,
	}
}

// Open opens the store. flag must be os.O_RDONLY or os.O_WRONLY; writing
// truncates any existing file.
func (sr *Store) Open(flag int) error {
	switch flag {
	case os.O_RDONLY:
		f, err := os.Open(sr.name)
		if err != nil {
			sr.logger.CaptureError(err, "file", sr.name)
			return err
		}
		sr.db = f
		reader, err := streamset.OpenReader(f, sr.streams)
		if err != nil {
			sr.logger.CaptureError(err, "file", sr.name)
			_ = f.Close()
			sr.db = nil
			return err
		}
		sr.reader = reader
		return nil
	case os.O_WRONLY:
		f, err := os.Create(sr.name)
		if err != nil {
			sr.logger.CaptureError(err, "file", sr.name)
			return err
		}
		sr.db = f
		writer, err := streamset.OpenWriter(f, sr.streams, sr.level)
		if err != nil {
			sr.logger.CaptureError(err, "file", sr.name)
			_ = f.Close()
			sr.db = nil
			return err
		}
		sr.writer = writer
		return nil
	default:
		err := fmt.Errorf("store: invalid flag %d", flag)
		sr.logger.CaptureError(err, "file", sr.name)
		return err
	}
}

// WriteStream appends p to the given stream.
func (sr *Store) WriteStream(stream int, p []byte) error {
	if err := sr.writer.WriteStream(stream, p); err != nil {
		sr.logger.CaptureError(err, "stream", stream)
		return err
	}
	return nil
}

// FlushStream forces out whatever the given stream has buffered.
func (sr *Store) FlushStream(stream int) error {
	if err := sr.writer.Flush(stream); err != nil {
		sr.logger.CaptureError(err, "stream", stream)
		return err
	}
	return nil
}

// ReadStream reads up to len(p) bytes from the given stream. A short count
// with a nil error means the stream is exhausted.
func (sr *Store) ReadStream(stream int, p []byte) (int, error) {
	n, err := sr.reader.ReadStream(stream, p)
	if err != nil {
		sr.logger.CaptureError(err, "stream", stream)
		return 0, err
	}
	return n, nil
}

// Close ends the session and closes the file.
func (sr *Store) Close() error {
	if sr.db == nil {
		return nil
	}

	var sessionErr error
	switch {
	case sr.writer != nil:
		sessionErr = sr.writer.Close()
		sr.writer = nil
	case sr.reader != nil:
		sessionErr = sr.reader.Close()
		sr.reader = nil
	}
	if sessionErr != nil {
		sr.logger.CaptureError(sessionErr, "file", sr.name)
	}

	err := sr.db.Close()
	if err != nil {
		sr.logger.CaptureError(err, "file", sr.name)
	}
	sr.db = nil

	if sessionErr != nil {
		return sessionErr
	}
	return err
}
