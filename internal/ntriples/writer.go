package ntriples

import (
	"bufio"
	"io"
	"iter"

	"github.com/roach88/widetriple/internal/ir"
)

// Encoder writes triples as N-Triples lines. Call Flush when done.
type Encoder struct {
	w *bufio.Writer
	n int
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes one statement line.
func (e *Encoder) Encode(t ir.Triple) error {
	if _, err := e.w.WriteString(t.String()); err != nil {
		return err
	}
	e.n++
	return e.w.WriteByte('\n')
}

// Flush writes buffered output.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Count returns the number of triples encoded.
func (e *Encoder) Count() int { return e.n }

// WriteAll encodes every triple of seq and flushes. It stops at the first
// error from seq or the writer and returns the number written.
func WriteAll(w io.Writer, seq iter.Seq2[ir.Triple, error]) (int, error) {
	enc := NewEncoder(w)
	for t, err := range seq {
		if err != nil {
			enc.Flush()
			return enc.Count(), err
		}
		if err := enc.Encode(t); err != nil {
			return enc.Count(), err
		}
	}
	return enc.Count(), enc.Flush()
}
