package services

import (
	"bytes"
	"image"
	"image/jpeg"
	"strings"

	// Registered decoders for image.Decode
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxDimension = 2048
	defaultJPEGQuality  = 85
	// 6000x6000; an RGBA decode of that size is about 144 MiB.
	defaultMaxPixels = 36_000_000
)

// ProcessedImage is an image ready to be sent to the AI provider.
type ProcessedImage struct {
	Data          []byte
	MIMEType      string
	OriginalSize  int
	ProcessedSize int
	Width         int
	Height        int
	// Preprocessed is false when the original bytes were passed through.
	Preprocessed bool
}

// ImagePreprocessor downsizes uploads to fit a square bounding box and
// re-encodes them as JPEG.
type ImagePreprocessor struct {
	MaxDimension int
	Quality      int
	// MaxPixels caps width*height of images that get decoded at all.
	MaxPixels int
}

// NewImagePreprocessor returns a preprocessor with the given limits, falling
// back to 2048px, quality 85 and 36 megapixels for non-positive values.
func NewImagePreprocessor(maxDimension, quality, maxPixels int) *ImagePreprocessor {
	if maxDimension <= 0 {
		maxDimension = defaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &ImagePreprocessor{MaxDimension: maxDimension, Quality: quality, MaxPixels: maxPixels}
}

// Preprocess never fails. Anything that cannot be decoded or encoded is
// returned unchanged with its sniffed MIME type, and so is anything whose
// header declares more than MaxPixels pixels.
func (p *ImagePreprocessor) Preprocess(data []byte) ProcessedImage {
	passthrough := ProcessedImage{
		Data:          data,
		MIMEType:      SniffMIME(data),
		OriginalSize:  len(data),
		ProcessedSize: len(data),
	}

	// The header is enough to reject decompression bombs before allocating.
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || !p.withinPixelBudget(hdr.Width, hdr.Height) {
		return passthrough
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return passthrough
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), p.maxDimension())
	var out image.Image = src
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flattenAlpha(out), &jpeg.Options{Quality: p.quality()}); err != nil {
		return passthrough
	}

	return ProcessedImage{
		Data:          buf.Bytes(),
		MIMEType:      "image/jpeg",
		OriginalSize:  len(data),
		ProcessedSize: buf.Len(),
		Width:         w,
		Height:        h,
		Preprocessed:  true,
	}
}

func (p *ImagePreprocessor) maxDimension() int {
	if p.MaxDimension <= 0 {
		return defaultMaxDimension
	}
	return p.MaxDimension
}

func (p *ImagePreprocessor) withinPixelBudget(w, h int) bool {
	limit := p.MaxPixels
	if limit <= 0 {
		limit = defaultMaxPixels
	}
	if w <= 0 || h <= 0 {
		return false
	}
	return int64(w)*int64(h) <= int64(limit)
}

func (p *ImagePreprocessor) quality() int {
	if p.Quality <= 0 || p.Quality > 100 {
		return defaultJPEGQuality
	}
	return p.Quality
}

// fitWithin scales w×h down to fit max×max keeping the aspect ratio. It never upscales.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

// flattenAlpha draws img over white so transparent regions do not turn black in JPEG.
func flattenAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

// SniffMIME detects the content type from the leading bytes.
func SniffMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImage reports whether data sniffs as an image/* type.
func IsImage(data []byte) bool {
	return strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}
