package imagepipe

import (
	"fmt"
	"strings"
)

// Format identifies an image codec.
type Format string

// Supported formats. WebP, JPEG and PNG are valid output targets; GIF is
// accepted as input only.
const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

var inputFormats = map[Format]bool{
	FormatJPEG: true,
	FormatPNG:  true,
	FormatGIF:  true,
	FormatWebP: true,
}

// ParseFormat parses an output format name. "jpg" is accepted as an alias
// for jpeg.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", name)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension used in object paths, without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// IsLossy reports whether quality affects the encoded output.
func (f Format) IsLossy() bool {
	return f == FormatWebP || f == FormatJPEG
}
