package bulk

import (
	"testing"

	"github.com/nalgeon/be"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func TestDecodeTextPlainUTF8(t *testing.T) {
	decoded, name, err := DecodeText([]byte("Motörhead"))
	be.Err(t, err, nil)
	be.Equal(t, name, "utf-8")
	be.Equal(t, string(decoded), "Motörhead")
}

func TestDecodeTextUTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,type")...)
	decoded, name, err := DecodeText(input)
	be.Err(t, err, nil)
	be.Equal(t, name, "utf-8-bom")
	be.Equal(t, string(decoded), "name,type")
}

func TestDecodeTextUTF16LE(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	input, _, err := transform.Bytes(enc, []byte("Björk,radio"))
	be.Err(t, err, nil)

	decoded, name, err := DecodeText(input)
	be.Err(t, err, nil)
	be.Equal(t, name, "utf-16le")
	be.Equal(t, string(decoded), "Björk,radio")
}

func TestDecodeTextUTF16BE(t *testing.T) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	input, _, err := transform.Bytes(enc, []byte("Sigur Rós"))
	be.Err(t, err, nil)

	decoded, name, err := DecodeText(input)
	be.Err(t, err, nil)
	be.Equal(t, name, "utf-16be")
	be.Equal(t, string(decoded), "Sigur Rós")
}

func TestDecodeTextLatin1Fallback(t *testing.T) {
	// "Motörhead" as Latin-1: ö is a single 0xF6 byte, invalid as UTF-8
	input := []byte{'M', 'o', 't', 0xF6, 'r', 'h', 'e', 'a', 'd'}
	decoded, name, err := DecodeText(input)
	be.Err(t, err, nil)
	be.Equal(t, name, "latin-1")
	be.Equal(t, string(decoded), "Motörhead")
}

func TestDecodeTextEmpty(t *testing.T) {
	decoded, name, err := DecodeText(nil)
	be.Err(t, err, nil)
	be.Equal(t, name, "utf-8")
	be.Equal(t, len(decoded), 0)
}
