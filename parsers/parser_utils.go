package parsers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SkipBOM drops a leading UTF-8 byte order mark.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(len(utf8BOM))
	if err != nil {
		return br
	}
	if bytes.Equal(peeked, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// Encodings accepted for uploads. "auto" picks UTF-8 when the data is valid
// UTF-8 and Windows-1252 otherwise.
const (
	EncodingAuto        = "auto"
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingShiftJIS    = "shift_jis"
)

// Decoder returns the text decoder for name, resolving "auto" against data.
func Decoder(name string, data []byte) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingAuto:
		if utf8.Valid(data) {
			return unicode.UTF8.NewDecoder(), nil
		}
		return charmap.Windows1252.NewDecoder(), nil
	case EncodingUTF8, "utf8":
		return unicode.UTF8.NewDecoder(), nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case EncodingShiftJIS, "sjis":
		return japanese.ShiftJIS.NewDecoder(), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// DecodeText returns a UTF-8 reader over data in the given encoding, without
// a byte order mark.
func DecodeText(data []byte, name string) (io.Reader, error) {
	dec, err := Decoder(name, data)
	if err != nil {
		return nil, err
	}
	return SkipBOM(transform.NewReader(bytes.NewReader(data), dec)), nil
}

// IsCSV reports whether data sniffs as CSV or plain text. Spreadsheets and
// other binaries saved with a .csv name are rejected.
func IsCSV(data []byte) bool {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/csv") || m.Is("text/plain") {
			return true
		}
	}
	return false
}

// getColIndex maps header names to column positions and checks the required
// ones are present.
func getColIndex(header []string, required []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, colName := range header {
		colIndex[strings.ToLower(strings.TrimSpace(colName))] = i
	}
	var missing []string
	for _, req := range required {
		if _, ok := colIndex[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return colIndex, nil
}
