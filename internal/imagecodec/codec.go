// Package imagecodec wraps decode/encode of photo and watermark buffers.
// Everything downstream of the ingestion boundary works on raw bytes only.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"

	// Output quality for composited photos. Size-optimized previews, not
	// archival copies.
	jpegQuality = 85
)

type Codec struct{}

func New() *Codec {
	return &Codec{}
}

// Decode reads an image buffer in any registered format (jpeg, png, gif,
// tiff, bmp).
func (c *Codec) Decode(data []byte) (image.Image, error) {
	const op = "imagecodec.Decode"
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return img, nil
}

func (c *Codec) Dimensions(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// EncodeJPEG re-encodes to the fixed output format for composited photos.
func (c *Codec) EncodeJPEG(img image.Image) ([]byte, error) {
	const op = "imagecodec.EncodeJPEG"
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) EncodePNG(img image.Image) ([]byte, error) {
	const op = "imagecodec.EncodePNG"
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return buf.Bytes(), nil
}

// Normalize decodes a watermark asset and re-encodes it as PNG so the
// overlay always carries an alpha channel. Returns the PNG buffer and the
// decoded image ready for compositing.
func (c *Codec) Normalize(data []byte) ([]byte, image.Image, error) {
	const op = "imagecodec.Normalize"
	img, err := c.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v", op, err)
	}
	// Clone converts any source into NRGBA, which guarantees alpha.
	nrgba := imaging.Clone(img)
	png, err := c.EncodePNG(nrgba)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v", op, err)
	}
	return png, nrgba, nil
}
