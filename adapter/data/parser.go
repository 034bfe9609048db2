package data

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

var (
	// ErrTrailingData is returned when there are unskippable bytes after
	// the JSON data structure in the content ends.
	ErrTrailingData = errors.New("trailing data after JSON")
	// ErrInvalidUTF8Char is returned when the parser finds an incomplete or
	// invalid \u escape.
	ErrInvalidUTF8Char = errors.New("invalid utf8 char")
	// ErrExpectedString is returned when a JSON object is started, but no
	// string is found for the key.
	ErrExpectedString = errors.New("expected string")
	// ErrUnterminatedString is returned when a string starts, but is not
	// terminated before end of bytes.
	ErrUnterminatedString = errors.New("unterminated string")
	// ErrNoComma is returned when there is no comma between object members.
	ErrNoComma = errors.New("expected comma")
	// ErrNoColon is returned when there is no colon after the definition of
	// a key in a JSON object.
	ErrNoColon = errors.New("expected colon")
	// ErrInvalidNumber is returned when a number literal is not an integer
	// that fits int64.
	ErrInvalidNumber = errors.New("invalid JSON integer")
	// ErrUnsupportedJSON is returned for JSON arrays and booleans, which
	// have no document value counterpart.
	ErrUnsupportedJSON = errors.New("unsupported JSON value")
)

// ErrInvalidLiteral is returned when null starts but is not correctly
// finished.
type ErrInvalidLiteral struct {
	Value string
}

// Error implements [error].
func (e ErrInvalidLiteral) Error() string {
	return fmt.Sprintf("invalid literal %q", e.Value)
}

// ErrUnknownEscapeChar is returned when the escape character (\) does not
// precede a valid escapable char.
type ErrUnknownEscapeChar struct {
	Char byte
}

// Error implements [error].
func (e ErrUnknownEscapeChar) Error() string {
	return fmt.Sprintf("unknown escape char, %q", e.Char)
}

// ErrInvalidControlChar indicates a raw control character inside a string.
type ErrInvalidControlChar struct {
	Char byte
}

// Error implements [error].
func (e ErrInvalidControlChar) Error() string {
	return fmt.Sprintf("invalid control char, %q", e.Char)
}

// ParseJSON reads one JSON object into an ordered document. Member order is
// kept and numbers must be integers.
func ParseJSON(b []byte) (*domain.Document, error) {
	p := &parser{data: b, n: len(b)}
	v, err := p.parse()
	if err != nil {
		return nil, err
	}
	doc, ok := v.AsDocument()
	if !ok {
		return nil, fmt.Errorf("expected object, received %s", v.Kind())
	}
	return doc, nil
}

type parser struct {
	data []byte
	i    int
	n    int
}

func (p *parser) parse() (domain.Value, error) {
	p.skip()
	val, err := p.value()
	if err != nil {
		return domain.Null(), err
	}
	p.skip()
	if p.i != p.n {
		return domain.Null(), ErrTrailingData
	}
	return val, nil
}

func (p *parser) skip() {
	for p.i < p.n {
		switch p.data[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *parser) value() (domain.Value, error) {
	if p.i >= p.n {
		return domain.Null(), io.ErrUnexpectedEOF
	}
	switch p.data[p.i] {
	case '{':
		d, err := p.obj()
		if err != nil {
			return domain.Null(), err
		}
		return domain.Doc(d), nil
	case '"':
		s, err := p.str()
		if err != nil {
			return domain.Null(), err
		}
		return domain.String(s), nil
	case 'n':
		return p.null()
	case '[', 't', 'f':
		return domain.Null(), fmt.Errorf("%w at offset %d", ErrUnsupportedJSON, p.i)
	default:
		return p.num()
	}
}

func (p *parser) obj() (*domain.Document, error) {
	p.i++ // skip '{'
	p.skip()
	d := domain.NewDocument()
	if p.i < p.n && p.data[p.i] == '}' {
		p.i++
		return d, nil
	}
	for {
		p.skip()
		if p.i >= p.n {
			return nil, io.ErrUnexpectedEOF
		}
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		p.skip()
		if p.i >= p.n || p.data[p.i] != ':' {
			return nil, ErrNoColon
		}
		p.i++
		p.skip()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		d.Set(key, val)
		p.skip()
		if p.i >= p.n {
			return nil, io.ErrUnexpectedEOF
		}
		if p.data[p.i] == '}' {
			p.i++
			return d, nil
		}
		if p.data[p.i] != ',' {
			return nil, ErrNoComma
		}
		p.i++
	}
}

func (p *parser) str() (string, error) {
	if p.data[p.i] != '"' {
		return "", ErrExpectedString
	}
	var b strings.Builder
	for i := p.i + 1; i < p.n; {
		c := p.data[i]
		switch {
		case c == '"':
			p.i = i + 1
			return b.String(), nil
		case c == '\\':
			if i+1 >= p.n {
				return "", ErrUnterminatedString
			}
			size, err := p.escape(&b, i)
			if err != nil {
				return "", err
			}
			i += size
		case c < ' ':
			return "", ErrInvalidControlChar{Char: c}
		case c < utf8.RuneSelf:
			b.WriteByte(c)
			i++
		default:
			r, size := utf8.DecodeRune(p.data[i:])
			b.WriteRune(r)
			i += size
		}
	}
	return "", ErrUnterminatedString
}

// escape decodes the escape sequence starting at p.data[i] and returns the
// number of bytes consumed.
func (p *parser) escape(b *strings.Builder, i int) (int, error) {
	switch c := p.data[i+1]; c {
	case '"', '\\', '/':
		b.WriteByte(c)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, ok := p.hex4(i)
		if !ok {
			return 0, ErrInvalidUTF8Char
		}
		if utf16.IsSurrogate(r) {
			if r2, ok := p.hex4(i + 6); ok {
				if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
					b.WriteRune(dec)
					return 12, nil
				}
			}
			r = utf8.RuneError
		}
		b.WriteRune(r)
		return 6, nil
	default:
		return 0, ErrUnknownEscapeChar{Char: c}
	}
	return 2, nil
}

func (p *parser) hex4(i int) (rune, bool) {
	if i+6 > p.n || p.data[i] != '\\' || p.data[i+1] != 'u' {
		return 0, false
	}
	r, err := strconv.ParseUint(string(p.data[i+2:i+6]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(r), true
}

func (p *parser) num() (domain.Value, error) {
	start := p.i
	for p.i < p.n {
		c := p.data[p.i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.i++
		} else {
			break
		}
	}
	n, err := strconv.ParseInt(string(p.data[start:p.i]), 10, 64)
	if err != nil {
		return domain.Null(), fmt.Errorf("%w: %w", ErrInvalidNumber, err)
	}
	return domain.Int(n), nil
}

func (p *parser) null() (domain.Value, error) {
	end := p.i + len("null")
	if end > p.n || string(p.data[p.i:end]) != "null" {
		return domain.Null(), ErrInvalidLiteral{Value: string(p.data[p.i:min(p.n, end)])}
	}
	p.i = end
	return domain.Null(), nil
}
