// Package trace writes translated instruction records as JSON Lines.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/taintlift/taintlift"
)

// ErrWriterClosed is returned when writing to a closed Writer.
var ErrWriterClosed = errors.New("trace writer is closed")

// Record is the JSON form of one translated instruction.
type Record struct {
	Address string `json:"address"`
	Thread  uint32 `json:"thread"`
	Disasm  string `json:"disasm"`
	Exprs   []Unit `json:"exprs"`
}

// Unit is the JSON form of one symbolic unit.
type Unit struct {
	ID      uint64 `json:"id"`
	Dest    string `json:"dest,omitempty"`
	Expr    string `json:"expr"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// NewRecord converts an instruction record.
func NewRecord(inst *taintlift.Instruction) *Record {
	rec := &Record{
		Address: fmt.Sprintf("%#x", inst.Address),
		Thread:  inst.ThreadID,
		Disasm:  inst.Disasm,
		Exprs:   make([]Unit, 0, len(inst.Exprs)),
	}
	for _, u := range inst.Exprs {
		unit := Unit{
			ID:      u.ID,
			Expr:    u.Expr.String(),
			Value:   fmt.Sprintf("%#x", u.Value),
			Comment: u.Comment,
		}
		if u.Dest != nil {
			unit.Dest = u.Dest.String()
		}
		rec.Exprs = append(rec.Exprs, unit)
	}
	return rec
}

// Writer writes one JSON object per instruction record.
// It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // set when the Writer owns the underlying file
	closed bool
}

// NewWriter returns a Writer over w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc, buf: buf}
}

// Create truncates or creates the file at path and returns a Writer that
// closes it on Close.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write encodes inst as a single line.
func (w *Writer) Write(inst *taintlift.Instruction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return errors.WithStack(w.enc.Encode(NewRecord(inst)))
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return errors.WithStack(w.buf.Flush())
}

// Close flushes buffered records and closes the file if the Writer owns it.
// Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return errors.WithStack(err)
	}
	if w.closer != nil {
		return errors.WithStack(w.closer.Close())
	}
	return nil
}
