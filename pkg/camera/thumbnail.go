package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ThumbnailMaxDim is the longest edge of a frame sent to the model.
const ThumbnailMaxDim = 1024

// ThumbnailQuality is the JPEG quality for re-encoded thumbnails.
const ThumbnailQuality = 85

// Thumbnail downscales a JPEG so its longest edge is at most maxDim pixels,
// preserving aspect ratio. Frames already within the limit are re-encoded
// as-is. CatmullRom gives quality close to Lanczos at reasonable cost.
func Thumbnail(jpegData []byte, maxDim int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("camera: decode thumbnail input: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return jpegData, nil
	}

	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("camera: encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
