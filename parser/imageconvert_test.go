package parser

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

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	return img
}

func TestDetectImageFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	format, err := DetectImageFormat(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	buf.Reset()
	require.NoError(t, jpeg.Encode(&buf, testImage(), nil))
	format, err = DetectImageFormat(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, err = DetectImageFormat([]byte("short"))
	assert.Error(t, err)

	_, err = DetectImageFormat([]byte("this is not an image at all"))
	assert.Error(t, err)
}

func TestConvertToJPEGFromPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	out, err := ConvertToJPEG(buf.Bytes())
	require.NoError(t, err)

	format, err := DetectImageFormat(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestConvertToJPEGPassthrough(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), nil))

	out, err := ConvertToJPEG(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
}

func TestConvertToJPEGRejectsGarbage(t *testing.T) {
	_, err := ConvertToJPEG(nil)
	assert.Error(t, err)

	_, err = ConvertToJPEG([]byte("definitely not image bytes"))
	assert.Error(t, err)
}
