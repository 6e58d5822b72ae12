package imagegen

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURI is returned for anything that is not a base64 data URI
var ErrInvalidDataURI = errors.New("invalid data URI")

// Image is raw image bytes with their MIME type
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI encodes the image as data:<mime>;base64,<data>
func (img *Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
}

// ParseDataURI decodes a data:<mime>;base64,<data> string
func ParseDataURI(uri string) (*Image, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, ErrInvalidDataURI
	}
	mimeType, params, _ := strings.Cut(header, ";")
	if mimeType == "" || !strings.Contains(params, "base64") {
		return nil, ErrInvalidDataURI
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some encoders drop padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
	}
	if len(data) == 0 {
		return nil, ErrInvalidDataURI
	}
	return &Image{MIMEType: mimeType, Data: data}, nil
}
