package dbf

import (
	"github.com/axgle/mahonia"
	"github.com/pkg/errors"
)

// Encoding converts between the table's byte encoding and Go strings.
// Implementations must be safe for concurrent use.
type Encoding interface {
	Name() string
	Decode(b []byte) (string, error)
	Encode(s string) ([]byte, error)
}

type charsetEncoding struct {
	name    string
	encoder mahonia.Encoder
	decoder mahonia.Decoder
}

// NewEncoding returns the Encoding for a charset name known to mahonia,
// e.g. "utf-8", "gbk", "windows-1252".
func NewEncoding(name string) (Encoding, error) {
	if mahonia.GetCharset(name) == nil {
		return nil, errors.Errorf("unsupported encoding %q", name)
	}
	return &charsetEncoding{
		name:    name,
		encoder: mahonia.NewEncoder(name),
		decoder: mahonia.NewDecoder(name),
	}, nil
}

func (e *charsetEncoding) Name() string { return e.name }

// Decode never fails: undecodable bytes become the replacement character,
// which keeps one bad byte from hiding the rest of a record.
func (e *charsetEncoding) Decode(b []byte) (string, error) {
	return e.decoder.ConvertString(string(b)), nil
}

// Encode converts one rune at a time so that a character missing from the
// charset is reported instead of being replaced.
func (e *charsetEncoding) Encode(s string) ([]byte, error) {
	dest := make([]byte, 0, len(s))
	buf := make([]byte, 8)
	for _, r := range s {
		for done := false; !done; {
			n, status := e.encoder(buf, r)
			switch status {
			case mahonia.SUCCESS:
				dest = append(dest, buf[:n]...)
				done = true
			case mahonia.STATE_ONLY:
				// shift bytes were written, r itself is still pending
				dest = append(dest, buf[:n]...)
			case mahonia.NO_ROOM:
				if len(buf) >= maxEncodedRune {
					return nil, errors.Wrapf(ErrInvalidFieldValue, "encoding %q in %s", r, e.name)
				}
				buf = make([]byte, 2*len(buf))
			default:
				return nil, errors.Wrapf(ErrInvalidFieldValue, "%q is not representable in %s", r, e.name)
			}
		}
	}
	return dest, nil
}

const defaultCharset = "utf-8"

const maxEncodedRune = 64

// codepages maps the language driver byte at header offset 29 to a charset.
var codepages = map[byte]string{
	0x01: "IBM437",
	0x02: "IBM850",
	0x03: "windows-1252",
	0x08: "IBM865",
	0x09: "IBM437",
	0x0A: "IBM850",
	0x0B: "IBM437",
	0x13: "shift_jis",
	0x1F: "IBM852",
	0x22: "IBM852",
	0x26: "IBM866",
	0x4D: "gbk",
	0x4E: "euc-kr",
	0x4F: "big5",
	0x57: "windows-1252",
	0x58: "windows-1252",
	0x59: "windows-1252",
	0x64: "IBM852",
	0x65: "IBM866",
	0x66: "IBM865",
	0x67: "IBM861",
	0x78: "big5",
	0x79: "euc-kr",
	0x7A: "gbk",
	0x7B: "shift_jis",
	0x7C: "windows-874",
	0x7D: "windows-1255",
	0x7E: "windows-1256",
	0xC8: "windows-1250",
	0xC9: "windows-1251",
	0xCA: "windows-1254",
	0xCB: "windows-1253",
	0xCC: "windows-1257",
}

// CodepageName returns the charset registered for a codepage mark. Mark 0
// (unspecified) maps to UTF-8.
func CodepageName(mark byte) (string, bool) {
	if mark == 0 {
		return defaultCharset, true
	}
	name, ok := codepages[mark]
	return name, ok
}

// CodepageMark returns the mark to store in a header for a charset name, or 0.
func CodepageMark(name string) byte {
	want := mahonia.GetCharset(name)
	if want == nil {
		return 0
	}
	for _, mark := range []byte{0x03, 0x01, 0x02, 0x7A, 0x7B, 0x78, 0x79, 0x7C, 0x7D, 0x7E, 0xC8, 0xC9, 0xCA, 0xCB, 0xCC, 0x64, 0x65, 0x66, 0x67} {
		if cs := mahonia.GetCharset(codepages[mark]); cs != nil && cs.Name == want.Name {
			return mark
		}
	}
	return 0
}

// EncodingForCodepage resolves the Encoding for a header codepage mark.
func EncodingForCodepage(mark byte) (Encoding, error) {
	name, ok := CodepageName(mark)
	if !ok {
		return nil, errors.Errorf("unknown codepage mark 0x%02X", mark)
	}
	return NewEncoding(name)
}
