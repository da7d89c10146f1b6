package pdf

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"unicode"

	"golang.org/x/image/font/sfnt"
)

// DejaVu Sans covers Latin, Greek, Cyrillic and several other scripts. The
// license is in fonts/LICENSE.
var (
	//go:embed fonts/DejaVuSans.ttf
	regularFont []byte

	//go:embed fonts/DejaVuSans-Bold.ttf
	boldFont []byte
)

const fontFamily = "DejaVuSans"

// ErrUnsupportedText is returned for text containing a character with no
// glyph in the certificate font.
var ErrUnsupportedText = errors.New("unsupported characters")

var parsedFont = sync.OnceValues(func() (*sfnt.Font, error) {
	return sfnt.Parse(regularFont)
})

// CheckPrintable returns an error wrapping ErrUnsupportedText when text has a
// character the certificate font cannot draw. Whitespace is always accepted.
func CheckPrintable(text string) error {
	font, err := parsedFont()
	if err != nil {
		return fmt.Errorf("parse certificate font: %w", err)
	}

	var buf sfnt.Buffer
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		idx, err := font.GlyphIndex(&buf, r)
		if err != nil {
			return fmt.Errorf("look up glyph %q: %w", r, err)
		}
		if idx == 0 {
			return fmt.Errorf("%w: %q cannot be printed on the certificate", ErrUnsupportedText, r)
		}
	}
	return nil
}
