package mri

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pghmri/mri/errs"
)

// initialHeaderSize is the allocated header block a freshly created
// dataset starts with; writeHeader only ever grows this, never shrinks
// it, so an in-place rewrite never has to displace chunk data packed
// right after the header.
const initialHeaderSize = 4096

// sizeFieldWidth is the width, in bytes, of the leading decimal field
// that records how many bytes the header block occupies. Scanning for
// the format's FF/SUB terminator alone cannot distinguish "the header
// really ends here" from "these zero bytes are unused slack", so the
// block records its own length explicitly; this is the one place this
// port departs from the reference library's incremental-read approach,
// documented as an Open Question resolution in DESIGN.md.
const sizeFieldWidth = 16

const headerTerminator = "\x0c\x1a"

// isUnquotedChar reports whether c may appear in a bare (unquoted)
// value token: printable ASCII, excluding the characters that would
// make the token ambiguous with the quoting/escaping grammar.
func isUnquotedChar(c byte) bool {
	if c <= 0x20 || c >= 0x7f {
		return false
	}
	switch c {
	case '"', '\\', '=':
		return false
	}
	return true
}

func needsQuoting(v string) bool {
	if v == "" {
		return true
	}
	for i := 0; i < len(v); i++ {
		if !isUnquotedChar(v[i]) {
			return true
		}
	}
	return false
}

// quoteValue renders v as a double-quoted token with C-style
// backslash escapes, octal-escaping any byte that is neither a
// recognized short escape nor printable ASCII.
func quoteValue(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func encodeValue(v string) string {
	if needsQuoting(v) {
		return quoteValue(v)
	}
	return v
}

// unquoteValue reverses quoteValue: s must begin with '"'.
func unquoteValue(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' {
		return "", errs.New(errs.KindParse, "malformed quoted value %q", s)
	}
	body := s[1:]
	var b strings.Builder
	i := 0
	closed := false
	for i < len(body) {
		c := body[i]
		if c == '"' {
			closed = true
			break
		}
		if c == '\\' && i+1 < len(body) {
			nc := body[i+1]
			switch nc {
			case '"':
				b.WriteByte('"')
				i += 2
			case '\\':
				b.WriteByte('\\')
				i += 2
			case 'n':
				b.WriteByte('\n')
				i += 2
			case 't':
				b.WriteByte('\t')
				i += 2
			default:
				if nc >= '0' && nc <= '7' && i+4 <= len(body) {
					v, err := strconv.ParseUint(body[i+1:i+4], 8, 8)
					if err == nil {
						b.WriteByte(byte(v))
						i += 4
						continue
					}
				}
				b.WriteByte(nc)
				i += 2
			}
			continue
		}
		b.WriteByte(c)
		i++
	}
	if !closed {
		return "", errs.New(errs.KindParse, "unterminated quoted value %q", s)
	}
	return b.String(), nil
}

func decodeValueToken(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if s[0] == '"' {
		return unquoteValue(s)
	}
	return s, nil
}

func nextPow2(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// serializeHeaderBody renders the whole header block: the self-length
// field, one "key = value" line per key in ascending lexicographic
// order, and the FF/SUB terminator. It does not pad to ds.headerSize;
// the caller does that.
func (ds *Dataset) serializeHeaderBody() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%0*d\n", sizeFieldWidth, ds.headerSize)
	for _, key := range ds.kv.keysSorted() {
		p := ds.kv.find(key)
		fmt.Fprintf(&b, "%s = %s\n", key, encodeValue(p.value))
	}
	b.WriteString(headerTerminator)
	return b.Bytes()
}

// writeHeader serializes the kv table and writes it to the header
// file, growing ds.headerSize (and reflowing layout around the larger
// reserved block) if the current allocation is too small. Per spec
// section 3, the allocated size is always a power of two with
// 10*len(keys) bytes of slack so ordinary edits need no reflow.
func (ds *Dataset) writeHeader() error {
	for attempt := 0; attempt < 4; attempt++ {
		body := ds.serializeHeaderBody()
		target := nextPow2(int64(len(body)) + 10*int64(ds.kv.count))
		if target <= ds.headerSize {
			buf := make([]byte, ds.headerSize)
			copy(buf, body)
			return ds.writeAt(ds.headerFile, 0, buf)
		}
		ds.headerSize = target
		ds.recomputeLayout = true
		if err := ds.flushLayout(); err != nil {
			return err
		}
	}
	return errs.New(errs.KindState, "header size failed to converge for %q", ds.name)
}

// parseHeader reads the self-length field from the front of a file's
// header block and then the key/value pairs within it, in file order.
func parseHeader(data []byte) ([]kvPair, int64, error) {
	if len(data) < sizeFieldWidth+1 {
		return nil, 0, errs.New(errs.KindParse, "file too short to contain a header")
	}
	sizeField := strings.TrimSpace(string(data[:sizeFieldWidth]))
	headerSize, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil || headerSize <= 0 {
		return nil, 0, errs.Wrap(errs.KindParse, err, "malformed header size field %q", sizeField)
	}
	if int64(len(data)) < headerSize {
		return nil, 0, errs.New(errs.KindParse, "file shorter than its declared header size")
	}

	body := data[sizeFieldWidth+1 : headerSize]
	termIdx := bytes.Index(body, []byte(headerTerminator))
	if termIdx < 0 {
		return nil, 0, errs.New(errs.KindParse, "header missing terminator")
	}
	content := body[:termIdx]

	var pairs []kvPair
	for _, lineBytes := range bytes.Split(content, []byte("\n")) {
		if len(lineBytes) == 0 {
			continue
		}
		eq := bytes.IndexByte(lineBytes, '=')
		if eq < 0 {
			return nil, 0, errs.New(errs.KindParse, "malformed header line %q", string(lineBytes))
		}
		key := strings.TrimRight(string(lineBytes[:eq]), " ")
		rest := strings.TrimLeft(string(lineBytes[eq+1:]), " ")
		value, err := decodeValueToken(rest)
		if err != nil {
			return nil, 0, err
		}
		if err := validateKey(key); err != nil {
			return nil, 0, err
		}
		pairs = append(pairs, kvPair{key: key, value: value})
	}
	return pairs, headerSize, nil
}
