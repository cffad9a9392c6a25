package imagepipe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	_ "github.com/gen2brain/webp" // register decoder
	"github.com/phrazzld/scry-avatars/internal/domain"
)

// Default dimension bounds, inclusive on both axes.
const (
	DefaultMinDimension = 16
	DefaultMaxDimension = 5000
)

// Metadata describes an image without its pixel data.
type Metadata struct {
	Format     Format
	Width      int
	Height     int
	HasAlpha   bool
	IsAnimated bool
}

// Limits bounds the accepted image dimensions.
type Limits struct {
	MinDimension int
	MaxDimension int
}

// DefaultLimits returns the standard [16, 5000] bounds.
func DefaultLimits() Limits {
	return Limits{MinDimension: DefaultMinDimension, MaxDimension: DefaultMaxDimension}
}

// Validate checks data against the default limits.
func Validate(data []byte) (Metadata, error) {
	return DefaultLimits().Validate(data)
}

// Validate decodes the header of data and enforces the supported formats and
// dimension bounds. Failures are domain.IngestErrors of kind InvalidImage.
func (l Limits) Validate(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, invalidImage("empty payload", nil)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, invalidImage("unrecognized image data", err)
	}

	format := Format(name)
	if !inputFormats[format] {
		return Metadata{}, invalidImage(fmt.Sprintf("unsupported format %q", name), nil)
	}

	if cfg.Width < l.MinDimension || cfg.Height < l.MinDimension {
		return Metadata{}, invalidImage(fmt.Sprintf("dimensions %dx%d below minimum %dx%d",
			cfg.Width, cfg.Height, l.MinDimension, l.MinDimension), nil)
	}
	if cfg.Width > l.MaxDimension || cfg.Height > l.MaxDimension {
		return Metadata{}, invalidImage(fmt.Sprintf("dimensions %dx%d exceed maximum %dx%d",
			cfg.Width, cfg.Height, l.MaxDimension, l.MaxDimension), nil)
	}

	meta := Metadata{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	switch format {
	case FormatWebP:
		meta.HasAlpha, meta.IsAnimated = webpFlags(data)
	case FormatGIF:
		// The GIF header carries no transparency or frame count. The block
		// structure is scanned instead of decoding frames.
		hasAlpha, animated, err := scanGIF(data)
		if err != nil {
			return Metadata{}, invalidImage("corrupt gif", err)
		}
		meta.HasAlpha, meta.IsAnimated = hasAlpha, animated
	default:
		meta.HasAlpha = modelHasAlpha(cfg.ColorModel)
	}

	return meta, nil
}

func invalidImage(message string, err error) error {
	return domain.NewIngestError(domain.KindInvalidImage, message, err)
}

// webpFlags reads the alpha and animation bits from a RIFF WebP header.
// Simple lossy (VP8) files carry neither.
func webpFlags(data []byte) (hasAlpha, isAnimated bool) {
	if len(data) < 25 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return false, false
	}

	switch string(data[12:16]) {
	case "VP8X":
		flags := data[20]
		return flags&0x10 != 0, flags&0x02 != 0
	case "VP8L":
		// 14 bits width-1, 14 bits height-1, then the alpha_is_used bit.
		bits := binary.LittleEndian.Uint32(data[21:25])
		return (bits>>28)&1 == 1, false
	default:
		return false, false
	}
}

func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		return paletteHasAlpha(p)
	}
	return false
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}
