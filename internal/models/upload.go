package models

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyUpload is returned when no file content was received.
	ErrEmptyUpload = errors.New("no image selected")
	// ErrNotAnImage is returned when the upload content is not an image.
	ErrNotAnImage = errors.New("uploaded file is not an image")
)

// decodableTypes are the formats whose headers must parse for the upload to be accepted.
var decodableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadedImage is a validated user photo.
type UploadedImage struct {
	ImagePayload
	Width  int // 0 when the format is not decoded locally (e.g. heic)
	Height int
}

// InspectUpload sniffs the content type of data and, for common formats,
// checks that the image header decodes. The declared type from the client is
// ignored in favour of the detected one.
func InspectUpload(data []byte) (*UploadedImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	mt := mimetype.Detect(data)
	mimeType := mt.String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mimeType)
	}

	img := &UploadedImage{ImagePayload: ImagePayload{Data: data, MIMEType: mimeType}}
	if decodableTypes[mimeType] {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
		}
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, nil
}
