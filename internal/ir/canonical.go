package ir

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseError reports a malformed N-Triples term.
type ParseError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	in := e.Input
	if len(in) > 60 {
		in = in[:60] + "..."
	}
	return fmt.Sprintf("parse term %q at offset %d: %s", in, e.Offset, e.Msg)
}

// ParseTerm parses exactly one canonical N-Triples term.
// Trailing non-whitespace input is an error.
func ParseTerm(s string) (Term, error) {
	t, rest, err := ReadTerm(s)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rest) != "" {
		return nil, &ParseError{Input: s, Offset: len(s) - len(rest), Msg: "trailing input"}
	}
	return t, nil
}

// MustParseTerm is like ParseTerm but panics on error.
// Use only in tests or with constant input.
func MustParseTerm(s string) Term {
	t, err := ParseTerm(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ReadTerm reads one term from the front of s, skipping leading whitespace,
// and returns the unconsumed remainder.
func ReadTerm(s string) (Term, string, error) {
	in := strings.TrimLeft(s, " \t")
	off := len(s) - len(in)
	if in == "" {
		return nil, s, &ParseError{Input: s, Offset: off, Msg: "empty term"}
	}

	switch in[0] {
	case '<':
		iri, rest, err := readIRI(in)
		if err != nil {
			return nil, s, &ParseError{Input: s, Offset: off, Msg: err.Error()}
		}
		return iri, rest, nil
	case '_':
		if !strings.HasPrefix(in, "_:") {
			return nil, s, &ParseError{Input: s, Offset: off, Msg: "blank node must start with _:"}
		}
		end := 2
		for end < len(in) && in[end] != ' ' && in[end] != '\t' {
			end++
		}
		label := in[2:end]
		// A label may contain dots but never ends with one; the dot belongs
		// to the statement terminator.
		for strings.HasSuffix(label, ".") {
			label = label[:len(label)-1]
			end--
		}
		if label == "" {
			return nil, s, &ParseError{Input: s, Offset: off, Msg: "empty blank node label"}
		}
		return BlankNode(label), in[end:], nil
	case '"':
		lit, rest, err := readLiteral(in)
		if err != nil {
			return nil, s, &ParseError{Input: s, Offset: off, Msg: err.Error()}
		}
		return lit, rest, nil
	default:
		return nil, s, &ParseError{Input: s, Offset: off, Msg: fmt.Sprintf("unexpected character %q", in[0])}
	}
}

func readIRI(in string) (IRI, string, error) {
	if !strings.HasPrefix(in, "<") {
		return "", in, fmt.Errorf("IRI must start with <")
	}
	end := strings.IndexByte(in, '>')
	if end < 0 {
		return "", in, fmt.Errorf("unterminated IRI")
	}
	raw := in[1:end]
	if raw == "" {
		return "", in, fmt.Errorf("empty IRI")
	}
	val, err := unescape(raw, false)
	if err != nil {
		return "", in, err
	}
	return IRI(val), in[end+1:], nil
}

func readLiteral(in string) (Literal, string, error) {
	// Find the closing quote, skipping escaped characters.
	i := 1
	for ; i < len(in); i++ {
		if in[i] == '\\' {
			i++
			continue
		}
		if in[i] == '"' {
			break
		}
	}
	if i >= len(in) {
		return Literal{}, in, fmt.Errorf("unterminated literal")
	}
	lex, err := unescape(in[1:i], true)
	if err != nil {
		return Literal{}, in, err
	}
	rest := in[i+1:]

	switch {
	case strings.HasPrefix(rest, "@"):
		end := 1
		for end < len(rest) && (isAlnum(rest[end]) || rest[end] == '-') {
			end++
		}
		lang := rest[1:end]
		if lang == "" || lang[0] == '-' {
			return Literal{}, in, fmt.Errorf("invalid language tag")
		}
		return NewLangLiteral(lex, lang), rest[end:], nil
	case strings.HasPrefix(rest, "^^"):
		dt, after, err := readIRI(rest[2:])
		if err != nil {
			return Literal{}, in, fmt.Errorf("datatype: %w", err)
		}
		return NewTypedLiteral(lex, dt), after, nil
	default:
		return NewLiteral(lex), rest, nil
	}
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// unescape decodes N-Triples escapes. Only \u and \U are legal in IRIs.
func unescape(s string, literal bool) (string, error) {
	if !strings.Contains(s, `\`) {
		if !utf8.ValidString(s) {
			return "", fmt.Errorf("invalid UTF-8")
		}
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		i++
		switch e := s[i]; e {
		case 'u', 'U':
			n := 4
			if e == 'U' {
				n = 8
			}
			if i+1+n > len(s) {
				return "", fmt.Errorf("short \\%c escape", e)
			}
			cp, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad \\%c escape: %w", e, err)
			}
			b.WriteRune(rune(cp))
			i += n
		case 't', 'b', 'n', 'r', 'f', '"', '\'', '\\':
			if !literal {
				return "", fmt.Errorf("escape \\%c not allowed in IRI", e)
			}
			b.WriteByte(unescapeByte(e))
		default:
			return "", fmt.Errorf("unknown escape \\%c", e)
		}
	}
	return b.String(), nil
}

func unescapeByte(e byte) byte {
	switch e {
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 'f':
		return '\f'
	default:
		return e
	}
}

func escapeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ \t\n\r") && !hasControl(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			fmt.Fprintf(&b, `\u%04X`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 {
			return true
		}
	}
	return false
}
