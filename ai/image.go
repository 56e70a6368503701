package ai

import (
	"bytes"
	"fmt"
	"image"
	"os"

	// Decoders for the accepted scan formats.
	_ "image/jpeg"
	_ "image/png"
)

// Image is a note scan loaded into memory, ready to hand to a model
// service. Data holds the original encoded bytes; the gateway
// implementations forward them as-is and let each service do its own
// preprocessing.
type Image struct {
	Path   string
	Data   []byte
	Format string // "png" or "jpeg"
	Width  int
	Height int
}

// LoadImage reads and decodes the image header at path. It fails when the
// file cannot be read or is not a decodable PNG or JPEG; this is the one
// failure ingestion treats as fatal.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	return &Image{
		Path:   path,
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// MimeType returns the MIME type for the image's encoded bytes.
func (i *Image) MimeType() string {
	if i.Format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}
