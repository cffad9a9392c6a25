package imagepipe

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer() *Optimizer {
	return NewOptimizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodedSize(t *testing.T, data []byte) (string, int, int) {
	t.Helper()
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return name, cfg.Width, cfg.Height
}

func TestOptimize_LargeJPEGDefaults(t *testing.T) {
	t.Parallel()

	const target = 2 << 20
	src := sizedJPEG(t, 4000, 3000, 92, target)
	require.InDelta(t, target, len(src), target/4, "source should be a ~2MB photo-like JPEG")

	result, err := newTestOptimizer().Optimize(context.Background(), src, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, FormatWebP, result.Format)
	assert.Equal(t, 128, result.Width)
	assert.Equal(t, 128, result.Height)
	assert.LessOrEqual(t, result.Size, DefaultMaxSizeBytes)
	assert.Equal(t, len(result.Bytes), result.Size)
	assert.Equal(t, len(src), result.OriginalSize)
	assert.Equal(t, "image/webp", result.ContentType())

	name, w, h := decodedSize(t, result.Bytes)
	assert.Equal(t, "webp", name)
	assert.Equal(t, 128, w)
	assert.Equal(t, 128, h)

	want := float64(len(src)-result.Size) / float64(len(src)) * 100
	assert.InDelta(t, want, result.CompressionRatio, 0.0001)
	assert.Greater(t, result.CompressionRatio, 90.0)
}

func TestOptimize_ExactDimensionsAnyAspect(t *testing.T) {
	t.Parallel()

	sources := map[string]image.Image{
		"landscape": gradientImage(300, 100),
		"portrait":  gradientImage(100, 300),
		"upscale":   gradientImage(20, 17),
		"alpha":     transparentImage(64, 256),
	}

	for _, format := range []Format{FormatWebP, FormatJPEG, FormatPNG} {
		for name, img := range sources {
			t.Run(string(format)+"/"+name, func(t *testing.T) {
				opts := DefaultOptions()
				opts.Format = format
				opts.Width = 96
				opts.Height = 64

				result, err := newTestOptimizer().Optimize(context.Background(), encodePNG(t, img), opts)
				require.NoError(t, err)

				decodedName, w, h := decodedSize(t, result.Bytes)
				assert.Equal(t, string(format), decodedName)
				assert.Equal(t, 96, w)
				assert.Equal(t, 64, h)
				assert.Equal(t, 96, result.Width)
				assert.Equal(t, 64, result.Height)
			})
		}
	}
}

func TestOptimize_UnderBudgetSinglePass(t *testing.T) {
	t.Parallel()

	result, err := newTestOptimizer().Optimize(context.Background(),
		encodePNG(t, gradientImage(256, 256)), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, DefaultQuality, result.Quality)
}

func TestOptimize_QualityReducedToFloor(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatWebP, FormatJPEG} {
		t.Run(string(format), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Format = format
			opts.MaxSizeBytes = 512

			result, err := newTestOptimizer().Optimize(context.Background(),
				encodePNG(t, noiseImage(256, 256, 7)), opts)
			require.NoError(t, err)

			// 80 -> 60 -> 40 -> 30
			assert.Equal(t, 4, result.Passes)
			assert.Equal(t, DefaultQualityFloor, result.Quality)
			assert.Greater(t, result.Size, opts.MaxSizeBytes)
			assert.Equal(t, 128, result.Width)
		})
	}
}

func TestOptimize_SingleCorrectivePass(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Format = FormatJPEG
	opts.MaxSizeBytes = 512
	opts.QualityStep = opts.Quality - opts.QualityFloor

	result, err := newTestOptimizer().Optimize(context.Background(),
		encodePNG(t, noiseImage(200, 200, 11)), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passes)
	assert.Equal(t, DefaultQualityFloor, result.Quality)
}

func TestOptimize_BudgetOrFloor(t *testing.T) {
	t.Parallel()

	src := encodePNG(t, noiseImage(300, 200, 3))
	for _, budget := range []int{256, 4 * 1024, 8 * 1024, 16 * 1024, 64 * 1024} {
		opts := DefaultOptions()
		opts.Format = FormatJPEG
		opts.MaxSizeBytes = budget

		result, err := newTestOptimizer().Optimize(context.Background(), src, opts)
		require.NoError(t, err)

		if result.Size > budget {
			assert.Equal(t, opts.QualityFloor, result.Quality, "budget %d", budget)
		}
	}
}

func TestOptimize_PNGEncodedOnce(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.Format = FormatPNG
	opts.MaxSizeBytes = 100

	result, err := newTestOptimizer().Optimize(context.Background(),
		encodePNG(t, noiseImage(128, 128, 5)), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, "image/png", result.ContentType())
}

func TestOptimize_Errors(t *testing.T) {
	t.Parallel()

	valid := encodePNG(t, gradientImage(32, 32))

	tests := []struct {
		name   string
		data   []byte
		modify func(*Options)
	}{
		{name: "undecodable", data: []byte("definitely not an image"), modify: func(*Options) {}},
		{name: "zero width", data: valid, modify: func(o *Options) { o.Width = 0 }},
		{name: "quality too high", data: valid, modify: func(o *Options) { o.Quality = 101 }},
		{name: "floor above quality", data: valid, modify: func(o *Options) { o.QualityFloor = 90 }},
		{name: "zero step", data: valid, modify: func(o *Options) { o.QualityStep = 0 }},
		{name: "zero budget", data: valid, modify: func(o *Options) { o.MaxSizeBytes = 0 }},
		{name: "gif output", data: valid, modify: func(o *Options) { o.Format = FormatGIF }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)

			result, err := newTestOptimizer().Optimize(context.Background(), tt.data, opts)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, domain.KindOptimizationError, domain.KindOf(err))
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in          string
		want        Format
		ext         string
		contentType string
	}{
		{"webp", FormatWebP, "webp", "image/webp"},
		{"JPG", FormatJPEG, "jpg", "image/jpeg"},
		{" jpeg ", FormatJPEG, "jpg", "image/jpeg"},
		{"png", FormatPNG, "png", "image/png"},
	} {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ext, got.Extension())
		assert.Equal(t, tt.contentType, got.ContentType())
	}

	_, err := ParseFormat("bmp")
	assert.Error(t, err)
	assert.False(t, FormatPNG.IsLossy())
	assert.True(t, FormatWebP.IsLossy())
}
