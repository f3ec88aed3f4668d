package parser

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

// DetectImageFormat reads the magic bytes and returns the image format string
// ("jpeg", "png", "gif", "webp").
func DetectImageFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errors.New("data too short to determine format")
	}

	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg", nil
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "png", nil
	}
	if string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a" {
		return "gif", nil
	}
	if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp", nil
	}

	return "", errors.New("unknown image format")
}

// ConvertToJPEG transcodes image bytes to JPEG (quality 90). Bytes that are
// already JPEG come back unchanged, without re-encoding.
func ConvertToJPEG(imgBytes []byte) ([]byte, error) {
	if len(imgBytes) == 0 {
		return nil, errors.New("empty image data")
	}

	format, err := DetectImageFormat(imgBytes)
	if err != nil {
		return nil, err
	}

	if format == "jpeg" {
		return imgBytes, nil
	}

	var img image.Image
	reader := bytes.NewReader(imgBytes)

	switch format {
	case "png":
		img, err = png.Decode(reader)
	case "gif":
		img, err = gif.Decode(reader)
	case "webp":
		img, err = webp.Decode(reader)
	default:
		return nil, errors.New("unsupported image format: " + format)
	}
	if err != nil {
		return nil, errors.New("failed to decode " + format + " image: " + err.Error())
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
