package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// JSONLWriter writes Records as JSON Lines (one JSON object per line).
// It is safe for concurrent use by multiple goroutines.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // optional, only set when we own the underlying writer
	closed bool
}

// ErrWriterClosed is returned when Write is called after Close.
var ErrWriterClosed = errors.New("jsonl trace writer is closed")

// NewJSONLWriter creates a JSONLWriter over the provided io.Writer. The
// writer passed in is NOT closed by JSONLWriter; Close only flushes the
// internal buffer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	return &JSONLWriter{
		enc: enc,
		buf: buf,
	}
}

// NewJSONLWriterFile opens path for writing (truncate or create) and
// returns a JSONLWriter that owns the file. Close will flush and close
// the underlying file.
func NewJSONLWriterFile(path string) (*JSONLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriterSize(f, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	return &JSONLWriter{
		enc:    enc,
		buf:    buf,
		closer: f,
	}, nil
}

// Write encodes a single Record as a JSON object followed by a newline.
// Safe to call from multiple goroutines concurrently.
func (w *JSONLWriter) Write(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	return w.enc.Encode(rec)
}

// Flush forces buffered data out to the underlying writer.
func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	return w.buf.Flush()
}

// Close flushes any buffered data and, when the JSONLWriter owns the
// underlying writer, closes it.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			_ = w.closer.Close()
		}
		return err
	}

	if w.closer != nil {
		return w.closer.Close()
	}

	return nil
}
