package utils

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/nfnt/resize"
)

// IsOptimizableImage reports whether the content type is a format the inline
// preview path can decode and re-encode.
func IsOptimizableImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/jpeg") ||
		strings.HasPrefix(contentType, "image/png")
}

// OptimizeImage scales an image down to maxWidth, preserving aspect ratio.
// Images already within bounds come back untouched.
func OptimizeImage(data []byte, maxWidth uint) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, nil
	}

	scaled := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 85})
	case "png":
		err = png.Encode(&buf, scaled)
	default:
		return data, nil
	}
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
