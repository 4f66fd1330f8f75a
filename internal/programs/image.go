package programs

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// ImageFormat is the manifest format understood by the reference prover.
const ImageFormat = "zkdrop-guest/v1"

// Image is the decoded manifest of a program image.
type Image struct {
	Format      string `yaml:"format"`
	Name        string `yaml:"name"`
	Entry       string `yaml:"entry"`
	Version     int    `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

// ParseImage decodes and checks an image manifest. Unknown keys are rejected.
func ParseImage(data []byte) (*Image, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var img Image
	if err := dec.Decode(&img); err != nil {
		return nil, fmt.Errorf("%w: %w", zkerrors.ErrInvalidImage, err)
	}
	if img.Format != ImageFormat {
		return nil, fmt.Errorf("%w: unsupported format %q", zkerrors.ErrInvalidImage, img.Format)
	}
	if img.Name == "" || img.Entry == "" {
		return nil, fmt.Errorf("%w: name and entry are required", zkerrors.ErrInvalidImage)
	}
	return &img, nil
}
