package imagepipe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
)

// Default optimizer settings.
const (
	DefaultWidth        = 128
	DefaultHeight       = 128
	DefaultQuality      = 80
	DefaultMaxSizeBytes = 50 * 1024
	DefaultQualityFloor = 30
	DefaultQualityStep  = 20
)

// Options controls a single Optimize call.
type Options struct {
	Width        int
	Height       int
	Quality      int
	Format       Format
	MaxSizeBytes int
	QualityFloor int
	QualityStep  int
}

// DefaultOptions returns 128x128 WebP at quality 80 within 50KB.
func DefaultOptions() Options {
	return Options{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		Quality:      DefaultQuality,
		Format:       FormatWebP,
		MaxSizeBytes: DefaultMaxSizeBytes,
		QualityFloor: DefaultQualityFloor,
		QualityStep:  DefaultQualityStep,
	}
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", o.Width, o.Height)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("quality %d out of range [1, 100]", o.Quality)
	}
	if o.QualityFloor < 1 || o.QualityFloor > o.Quality {
		return fmt.Errorf("quality floor %d out of range [1, %d]", o.QualityFloor, o.Quality)
	}
	if o.QualityStep <= 0 {
		return fmt.Errorf("quality step must be positive, got %d", o.QualityStep)
	}
	if o.MaxSizeBytes <= 0 {
		return fmt.Errorf("size budget must be positive, got %d", o.MaxSizeBytes)
	}
	switch o.Format {
	case FormatWebP, FormatJPEG, FormatPNG:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", o.Format)
	}
}

// Result is an optimized image and its metadata.
type Result struct {
	Bytes        []byte
	Format       Format
	Width        int
	Height       int
	Size         int
	OriginalSize int
	// Quality is the encode quality of Bytes.
	Quality int
	// Passes is the number of encodes performed.
	Passes int
	// CompressionRatio is (original - final) / original * 100.
	CompressionRatio float64
}

// ContentType returns the MIME type of the result.
func (r *Result) ContentType() string {
	return r.Format.ContentType()
}

// Optimizer resizes and re-encodes avatar images.
type Optimizer struct {
	logger *slog.Logger
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(logger *slog.Logger) *Optimizer {
	return &Optimizer{logger: logger.With("component", "optimizer")}
}

// Optimize center-crops data to exactly opts.Width x opts.Height and encodes
// it in opts.Format. While the encoded size exceeds opts.MaxSizeBytes and the
// quality is above opts.QualityFloor, it re-encodes the same resized image at
// a lower quality. The last encode is returned even if it is over budget.
//
// Failures are domain.IngestErrors of kind OptimizationError.
func (o *Optimizer) Optimize(ctx context.Context, data []byte, opts Options) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	if err := opts.validate(); err != nil {
		return nil, domain.NewIngestError(domain.KindOptimizationError, "invalid options", err)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.NewIngestError(domain.KindOptimizationError, "failed to decode image", err)
	}

	resized := imaging.Fill(src, opts.Width, opts.Height, imaging.Center, imaging.Lanczos)

	quality := opts.Quality
	out, err := encode(resized, opts.Format, quality)
	if err != nil {
		return nil, err
	}
	passes := 1

	for opts.Format.IsLossy() && len(out) > opts.MaxSizeBytes && quality > opts.QualityFloor {
		quality = max(quality-opts.QualityStep, opts.QualityFloor)
		log.Debug("output over budget, reducing quality",
			slog.Int("size", len(out)),
			slog.Int("max_size", opts.MaxSizeBytes),
			slog.Int("quality", quality))

		out, err = encode(resized, opts.Format, quality)
		if err != nil {
			return nil, err
		}
		passes++
	}

	if len(out) > opts.MaxSizeBytes {
		log.Warn("optimized image exceeds size budget at quality floor",
			slog.Int("size", len(out)),
			slog.Int("max_size", opts.MaxSizeBytes),
			slog.Int("quality", quality))
	}

	result := &Result{
		Bytes:            out,
		Format:           opts.Format,
		Width:            resized.Bounds().Dx(),
		Height:           resized.Bounds().Dy(),
		Size:             len(out),
		OriginalSize:     len(data),
		Quality:          quality,
		Passes:           passes,
		CompressionRatio: compressionRatio(len(data), len(out)),
	}
	return result, nil
}

func encode(img *image.NRGBA, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case FormatWebP:
		err = webp.Encode(&buf, img, webp.Options{Quality: quality})
	case FormatJPEG:
		err = imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		err = fmt.Errorf("unsupported output format %q", format)
	}

	if err != nil {
		return nil, domain.NewIngestError(domain.KindOptimizationError,
			fmt.Sprintf("failed to encode %s at quality %d", format, quality), err)
	}
	return buf.Bytes(), nil
}

// flatten composites img over white, since JPEG has no alpha channel.
func flatten(img *image.NRGBA) image.Image {
	if img.Opaque() {
		return img
	}
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func compressionRatio(original, final int) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-final) / float64(original) * 100
}
