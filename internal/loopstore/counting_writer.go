package loopstore

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// CountingWriter is an append-only line writer that always tracks how many
// lines it has seen, whether or not it actually touches disk. Grounded on
// original_source/.../structs/couting_file.rs's CountingEntity enum
// (CountingVoid/CountingFile): a dry run (e.g. `loops --dry-run` counting
// destinations without writing `.dest` files) and a real run share the same
// counting contract, so callers never branch on which they hold.
type CountingWriter struct {
	path   string
	dryRun bool
	count  uint64
	file   *os.File
	writer *bufio.Writer
}

// NewCountingWriter opens path for appending, creating the file if needed,
// unless dryRun is set — in which case no file is ever touched and
// WriteLine only increments the counter. The parent directory must already
// exist; a missing one is reported as a CannotWrite error.
func NewCountingWriter(path string, dryRun bool) (*CountingWriter, error) {
	if dryRun {
		return &CountingWriter{path: path, dryRun: true}, nil
	}

	parent := filepath.Dir(path)
	if _, err := os.Stat(parent); err != nil {
		return nil, yerr.Wrap(yerr.CannotWrite, parent, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotWrite, path, err)
	}
	return &CountingWriter{path: path, file: f, writer: bufio.NewWriter(f)}, nil
}

// WriteLine appends input plus a trailing newline, counting it regardless of
// whether the write succeeds; it reports whether the write itself succeeded.
func (c *CountingWriter) WriteLine(input string) bool {
	c.count++
	if c.dryRun {
		return true
	}
	if _, err := c.writer.WriteString(input); err != nil {
		return false
	}
	return c.writer.WriteByte('\n') == nil
}

// Len reports how many lines have been counted so far.
func (c *CountingWriter) Len() uint64 { return c.count }

// Close flushes and closes the backing file, if any.
func (c *CountingWriter) Close() error {
	if c.dryRun || c.file == nil {
		return nil
	}
	if err := c.writer.Flush(); err != nil {
		return yerr.Wrap(yerr.CannotWrite, c.path, err)
	}
	return c.file.Close()
}
