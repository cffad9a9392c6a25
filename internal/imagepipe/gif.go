package imagepipe

import (
	"errors"
	"fmt"
)

// GIF block markers.
const (
	gifExtensionIntroducer = 0x21
	gifImageSeparator      = 0x2C
	gifTrailer             = 0x3B
	gifGraphicControlLabel = 0xF9
)

var errGIFTruncated = errors.New("gif: truncated block")

// gifScanner walks the block structure of a GIF stream without decoding any
// pixel data, so memory stays constant regardless of frame count.
type gifScanner struct {
	data []byte
	pos  int
}

func (s *gifScanner) byte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, errGIFTruncated
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *gifScanner) skip(n int) error {
	if n > len(s.data)-s.pos {
		return errGIFTruncated
	}
	s.pos += n
	return nil
}

// skipSubBlocks advances past a run of length-prefixed sub-blocks and its
// zero terminator.
func (s *gifScanner) skipSubBlocks() error {
	for {
		n, err := s.byte()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := s.skip(int(n)); err != nil {
			return err
		}
	}
}

// colorTableSize returns the byte length of the color table flagged in a
// packed descriptor field.
func colorTableSize(packed byte) int {
	if packed&0x80 == 0 {
		return 0
	}
	return 3 * (1 << ((packed & 0x07) + 1))
}

// scanGIF reports whether any frame declares a transparent color index and
// whether the stream holds more than one frame.
func scanGIF(data []byte) (hasAlpha, isAnimated bool, err error) {
	s := &gifScanner{data: data}

	// Header and logical screen descriptor.
	if err := s.skip(6 + 4); err != nil {
		return false, false, err
	}
	packed, err := s.byte()
	if err != nil {
		return false, false, err
	}
	if err := s.skip(2 + colorTableSize(packed)); err != nil {
		return false, false, err
	}

	frames := 0
	for {
		marker, err := s.byte()
		if err != nil {
			// A missing trailer after complete frames is common in the wild.
			if frames > 0 {
				return hasAlpha, frames > 1, nil
			}
			return false, false, err
		}

		switch marker {
		case gifExtensionIntroducer:
			label, err := s.byte()
			if err != nil {
				return false, false, err
			}
			if label == gifGraphicControlLabel && s.pos+1 < len(s.data) && s.data[s.pos] >= 1 {
				if s.data[s.pos+1]&0x01 != 0 {
					hasAlpha = true
				}
			}
			if err := s.skipSubBlocks(); err != nil {
				return false, false, err
			}

		case gifImageSeparator:
			// Position and size, then the packed field.
			if err := s.skip(8); err != nil {
				return false, false, err
			}
			packed, err := s.byte()
			if err != nil {
				return false, false, err
			}
			// Local color table, then the LZW minimum code size.
			if err := s.skip(colorTableSize(packed) + 1); err != nil {
				return false, false, err
			}
			if err := s.skipSubBlocks(); err != nil {
				return false, false, err
			}
			frames++

		case gifTrailer:
			if frames == 0 {
				return false, false, errors.New("gif: no image data")
			}
			return hasAlpha, frames > 1, nil

		default:
			return false, false, fmt.Errorf("gif: unknown block 0x%02x at offset %d", marker, s.pos-1)
		}
	}
}
