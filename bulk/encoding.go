package bulk

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText detects the encoding of real-world export files, strips any
// BOM, and returns UTF-8 bytes plus the detected encoding name. Inputs that
// are neither BOM-marked nor valid UTF-8 fall back to Latin-1, which maps
// every byte to a code point and therefore cannot fail.
func DecodeText(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return data, "utf-8", nil
	}
	if bytes.HasPrefix(data, bomUTF8) {
		return data[len(bomUTF8):], "utf-8-bom", nil
	}
	if bytes.HasPrefix(data, bomUTF16LE) {
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), data[2:], "utf-16le")
	}
	if bytes.HasPrefix(data, bomUTF16BE) {
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), data[2:], "utf-16be")
	}
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}
	return decodeWith(charmap.ISO8859_1, data, "latin-1")
}

func decodeWith(enc encoding.Encoding, data []byte, name string) ([]byte, string, error) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, "", err
	}
	return decoded, name, nil
}
