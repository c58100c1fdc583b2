package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess_DownscalesLargeImage(t *testing.T) {
	p := NewImagePreprocessor(2048, 85, 0)
	data := pngBytes(t, 3000, 1500, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	out := p.Preprocess(data)
	require.True(t, out.Preprocessed)
	assert.Equal(t, "image/jpeg", out.MIMEType)
	assert.Equal(t, 2048, out.Width)
	assert.Equal(t, 1024, out.Height)
	assert.Equal(t, len(data), out.OriginalSize)
	assert.Equal(t, len(out.Data), out.ProcessedSize)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Width)
	assert.Equal(t, 1024, cfg.Height)
}

func TestPreprocess_PortraitUsesHeightLimit(t *testing.T) {
	p := NewImagePreprocessor(100, 85, 0)
	out := p.Preprocess(pngBytes(t, 50, 400, color.White))
	require.True(t, out.Preprocessed)
	assert.Equal(t, 12, out.Width)
	assert.Equal(t, 100, out.Height)
}

func TestPreprocess_NeverUpscales(t *testing.T) {
	p := NewImagePreprocessor(2048, 85, 0)
	out := p.Preprocess(pngBytes(t, 120, 80, color.Black))
	require.True(t, out.Preprocessed)
	assert.Equal(t, 120, out.Width)
	assert.Equal(t, 80, out.Height)
	assert.Equal(t, "image/jpeg", out.MIMEType)
}

func TestPreprocess_FlattensTransparency(t *testing.T) {
	p := NewImagePreprocessor(2048, 95, 0)
	out := p.Preprocess(pngBytes(t, 16, 16, color.NRGBA{A: 0}))
	require.True(t, out.Preprocessed)

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Greater(t, g, uint32(0xf000))
	assert.Greater(t, b, uint32(0xf000))
}

func TestPreprocess_FailOpen(t *testing.T) {
	p := NewImagePreprocessor(0, 0, 0)
	assert.Equal(t, defaultMaxDimension, p.MaxDimension)
	assert.Equal(t, defaultJPEGQuality, p.Quality)
	assert.Equal(t, defaultMaxPixels, p.MaxPixels)

	garbage := []byte("this is not an image at all")
	out := p.Preprocess(garbage)
	assert.False(t, out.Preprocessed)
	assert.Equal(t, garbage, out.Data)
	assert.Equal(t, len(garbage), out.OriginalSize)
	assert.Equal(t, len(garbage), out.ProcessedSize)
	assert.NotEqual(t, "image/jpeg", out.MIMEType)

	// A truncated PNG keeps its sniffed type.
	truncated := pngBytes(t, 10, 10, color.White)[:40]
	out = p.Preprocess(truncated)
	assert.False(t, out.Preprocessed)
	assert.Equal(t, "image/png", out.MIMEType)
}

func TestPreprocess_PixelBudget(t *testing.T) {
	data := pngBytes(t, 200, 150, color.White)

	out := NewImagePreprocessor(100, 85, 200*150).Preprocess(data)
	assert.True(t, out.Preprocessed, "exactly at the budget is decoded")

	out = NewImagePreprocessor(100, 85, 200*150-1).Preprocess(data)
	assert.False(t, out.Preprocessed)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Zero(t, out.Width)
}

func TestPreprocess_SkipsDecompressionBomb(t *testing.T) {
	if testing.Short() {
		t.Skip("encodes a 144 megapixel image")
	}
	// A uniform gray 12000x12000 PNG compresses to well under the upload limit.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 12000, 12000))))
	data := buf.Bytes()
	require.Less(t, len(data), 5*1024*1024)

	p := NewImagePreprocessor(2048, 85, 0)
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	out := p.Preprocess(data)
	runtime.ReadMemStats(&after)

	assert.False(t, out.Preprocessed)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Equal(t, len(data), out.ProcessedSize)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16*1024*1024))
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 100, 200, 100, 100},
		{400, 200, 200, 200, 100},
		{200, 400, 200, 100, 200},
		{5000, 1, 100, 100, 1},
		{2048, 2048, 2048, 2048, 2048},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage(pngBytes(t, 2, 2, color.White)))
	assert.False(t, IsImage([]byte("%PDF-1.4 not an image")))
	assert.False(t, IsImage(nil))
}
