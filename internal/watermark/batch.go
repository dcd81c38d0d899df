package watermark

import (
	"image"

	"fotolio/internal/imagecodec"
)

// Batch carries the per-request watermark state for one render pass: the
// album's asset, a single slot for its normalized overlay, and the sticky
// flag that disables personalized-watermark attempts after one bad
// normalization. Request-scoped; never share a Batch across requests.
type Batch struct {
	AlbumName string
	Position  string
	Asset     imagecodec.ImageData

	normalized     image.Image
	normalizedPNG  []byte
	attempted      bool
	broken         bool
	normalizeCalls int
}

func NewBatch(albumName, position string, asset imagecodec.ImageData) *Batch {
	return &Batch{
		AlbumName: albumName,
		Position:  position,
		Asset:     asset,
	}
}

// overlay returns the normalized watermark image, normalizing at most once
// per batch. A nil image with nil error means the personalized path is
// unavailable (no asset, or a previous attempt failed); a non-nil error is
// returned only on the attempt that fails, so the caller logs it once.
func (b *Batch) overlay(codec *imagecodec.Codec) (image.Image, error) {
	if b.broken || b.Asset.Empty() {
		return nil, nil
	}
	if !b.attempted {
		b.attempted = true
		b.normalizeCalls++
		png, img, err := codec.Normalize(b.Asset.Bytes())
		if err != nil {
			b.broken = true
			return nil, err
		}
		b.normalizedPNG = png
		b.normalized = img
	}
	return b.normalized, nil
}
