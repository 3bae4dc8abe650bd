package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const defaultJPEGQuality = 85

// ImageProcessor prepares cached page bytes for an EPUB. Formats every reader
// understands pass through untouched unless resizing or grayscale is asked for;
// anything else is re-encoded as JPEG.
type ImageProcessor struct {
	MaxWidth  int
	Quality   int
	Grayscale bool
}

// Prepare returns the bytes to embed and their file extension.
func (p *ImageProcessor) Prepare(raw []byte) ([]byte, string, error) {
	mtype := mimetype.Detect(raw)
	switch {
	case mtype.Is("image/jpeg"), mtype.Is("image/png"), mtype.Is("image/gif"):
		if p.MaxWidth <= 0 && !p.Grayscale {
			return raw, mtype.Extension(), nil
		}
	case mtype.Is("image/webp"):
	default:
		return nil, "", fmt.Errorf("unsupported image type %s", mtype.String())
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if w, h := p.dimensions(img.Bounds().Dx(), img.Bounds().Dy()); w != img.Bounds().Dx() {
		img = resize(img, w, h)
	}
	if p.Grayscale {
		img = toGrayscale(img)
	}

	quality := p.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), ".jpg", nil
}

// dimensions scales width down to MaxWidth, keeping the aspect ratio.
func (p *ImageProcessor) dimensions(width, height int) (int, int) {
	if p.MaxWidth <= 0 || width <= p.MaxWidth {
		return width, height
	}
	scale := float64(p.MaxWidth) / float64(width)
	h := int(float64(height) * scale)
	if h < 1 {
		h = 1
	}
	return p.MaxWidth, h
}

func resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func toGrayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
