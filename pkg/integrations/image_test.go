package integrations

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: 80, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageProcessor_PassThrough(t *testing.T) {
	raw := createTestPNG(t, 4, 4)
	p := &ImageProcessor{}

	out, ext, err := p.Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, ".png", ext)
	assert.Equal(t, raw, out)
}

func TestImageProcessor_Resize(t *testing.T) {
	raw := createTestPNG(t, 20, 10)
	p := &ImageProcessor{MaxWidth: 10, Quality: 90}

	out, ext, err := p.Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())
}

func TestImageProcessor_Grayscale(t *testing.T) {
	raw := createTestPNG(t, 4, 4)
	p := &ImageProcessor{Grayscale: true}

	out, ext, err := p.Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, isGray := img.(*image.Gray)
	assert.True(t, isGray)
}

func TestImageProcessor_Unsupported(t *testing.T) {
	p := &ImageProcessor{}

	_, _, err := p.Prepare([]byte("definitely not an image"))
	assert.ErrorContains(t, err, "unsupported image type")
}

func TestImageProcessor_Dimensions(t *testing.T) {
	p := &ImageProcessor{MaxWidth: 100}

	w, h := p.dimensions(50, 80)
	assert.Equal(t, 50, w)
	assert.Equal(t, 80, h)

	w, h = p.dimensions(400, 1000)
	assert.Equal(t, 100, w)
	assert.Equal(t, 250, h)
}
