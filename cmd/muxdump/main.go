// muxdump inspects a stream set file: it lists every chunk of every stream,
// or extracts one stream's bytes to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/muxfile/muxfile/internal/observability"
	"github.com/muxfile/muxfile/internal/store"
	"github.com/muxfile/muxfile/internal/version"
	"github.com/muxfile/muxfile/pkg/streamset"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	var (
		streams     int
		extract     int
		debug       bool
		showVersion bool
	)
	flag.IntVar(&streams, "streams", 1, "number of streams in the stream set")
	flag.IntVar(&extract, "extract", -1,
		"stream index to copy to stdout instead of listing chunks")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "muxdump - inspect multiplexed stream set files\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  muxdump [-streams N] [-extract I] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version.Version)
		return 0
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	path := flag.Arg(0)

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := observability.NewLogger(
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		})),
		nil,
	)

	if extract >= 0 {
		return extractStream(path, streams, extract, logger)
	}
	return listChunks(path, streams, logger)
}

func listChunks(path string, streams int, logger *observability.Logger) int {
	f, err := os.Open(path)
	if err != nil {
		logger.CaptureError(err, "file", path)
		return 1
	}
	defer f.Close()

	chains, err := streamset.Chunks(f, streams)
	if err != nil {
		logger.CaptureError(err, "file", path)
		return 1
	}

	for i, chain := range chains {
		fmt.Printf("stream %d: %d chunks\n", i, len(chain))
		for _, c := range chain {
			kind := "stored"
			if c.Type == 4 {
				kind = "deflated"
			}
			fmt.Printf("  %10d  %-8s  disk=%-10d decoded=%-10d next=%d\n",
				c.Offset, kind, c.CompLen, c.DecLen, c.Next)
		}
	}
	return 0
}

func extractStream(path string, streams, which int, logger *observability.Logger) int {
	st := store.New(context.Background(), path, streams, 0, logger)
	if err := st.Open(os.O_RDONLY); err != nil {
		return 1
	}
	defer st.Close()

	buf := make([]byte, 64*1024)
	for {
		n, err := st.ReadStream(which, buf)
		if err != nil {
			return 1
		}
		if n == 0 {
			return 0
		}
		if _, err := os.Stdout.Write(buf[:n]); err != nil {
			logger.CaptureError(err)
			return 1
		}
	}
}
