package ntriples

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/roach88/widetriple/internal/ir"
)

// MaxLineSize bounds one statement line.
const MaxLineSize = 16 << 20

// SyntaxError reports a malformed statement.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Decoder reads triples from an N-Triples stream.
type Decoder struct {
	sc     *bufio.Scanner
	line   int
	prefix string
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLoadID prefixes every blank-node label with id, so _:b becomes
// _:<id>_b. An empty id leaves labels unchanged.
func WithLoadID(id string) DecoderOption {
	return func(d *Decoder) {
		if id != "" {
			d.prefix = id + "_"
		}
	}
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), MaxLineSize)
	d := &Decoder{sc: sc}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Line returns the number of the last line read.
func (d *Decoder) Line() int { return d.line }

// Decode returns the next triple, skipping blank and comment lines.
// It returns io.EOF at the end of input.
func (d *Decoder) Decode() (ir.Triple, error) {
	for d.sc.Scan() {
		d.line++
		line := strings.TrimSpace(d.sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		t, err := parseStatement(line)
		if err != nil {
			return ir.Triple{}, &SyntaxError{Line: d.line, Err: err}
		}
		return d.relabel(t), nil
	}
	if err := d.sc.Err(); err != nil {
		return ir.Triple{}, fmt.Errorf("read line %d: %w", d.line+1, err)
	}
	return ir.Triple{}, io.EOF
}

// All returns the remaining triples. The sequence ends after the first
// error.
func (d *Decoder) All() iter.Seq2[ir.Triple, error] {
	return func(yield func(ir.Triple, error) bool) {
		for {
			t, err := d.Decode()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(t, err) || err != nil {
				return
			}
		}
	}
}

func (d *Decoder) relabel(t ir.Triple) ir.Triple {
	if d.prefix == "" {
		return t
	}
	if b, ok := t.Subject.(ir.BlankNode); ok {
		t.Subject = ir.BlankNode(d.prefix + string(b))
	}
	if b, ok := t.Object.(ir.BlankNode); ok {
		t.Object = ir.BlankNode(d.prefix + string(b))
	}
	return t
}

func parseStatement(line string) (ir.Triple, error) {
	s, rest, err := ir.ReadTerm(line)
	if err != nil {
		return ir.Triple{}, fmt.Errorf("subject: %w", err)
	}
	p, rest, err := ir.ReadTerm(rest)
	if err != nil {
		return ir.Triple{}, fmt.Errorf("predicate: %w", err)
	}
	pred, ok := p.(ir.IRI)
	if !ok {
		return ir.Triple{}, fmt.Errorf("predicate must be an IRI, got %s", p)
	}
	o, rest, err := ir.ReadTerm(rest)
	if err != nil {
		return ir.Triple{}, fmt.Errorf("object: %w", err)
	}

	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, ".") {
		return ir.Triple{}, errors.New("missing terminating '.'")
	}
	if tail := strings.TrimSpace(rest[1:]); tail != "" && tail[0] != '#' {
		return ir.Triple{}, fmt.Errorf("unexpected %q after '.'", tail)
	}

	t := ir.NewTriple(s, pred, o)
	if err := t.Validate(); err != nil {
		return ir.Triple{}, err
	}
	return t, nil
}
