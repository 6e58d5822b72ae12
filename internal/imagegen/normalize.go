package imagegen

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// DefaultMaxSourceDimension bounds the longest edge of an uploaded image
// before it is sent for editing.
const DefaultMaxSourceDimension = 2048

// Normalize shrinks img so neither edge exceeds maxDim. Images already in
// bounds are returned unchanged.
func Normalize(img *Image, maxDim int) (*Image, error) {
	if img == nil || maxDim <= 0 {
		return img, nil
	}
	decoded, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return img, nil
	}

	resized := imaging.Fit(decoded, maxDim, maxDim, imaging.Lanczos)

	format := imaging.JPEG
	mimeType := "image/jpeg"
	if img.MIMEType == "image/png" {
		format = imaging.PNG
		mimeType = "image/png"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, fmt.Errorf("failed to encode source image: %w", err)
	}
	return &Image{MIMEType: mimeType, Data: buf.Bytes()}, nil
}
