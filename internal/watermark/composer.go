// Package watermark composites an album's watermark onto photos under the
// lateral, fill and centered position policies, with a synthesized text
// overlay as fallback when the asset is unusable.
package watermark

import (
	"fmt"
	"image"
	"image/color"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/goregular"

	"fotolio/internal/imagecodec"
	"fotolio/internal/models"
)

const (
	// lateral overlay height relative to the photo.
	lateralHeightRatio = 0.20
	// fill overlay width relative to the photo; tiled on a 3x3 grid.
	fillWidthRatio = 0.30
	fillGrid       = 3

	textOpacity = 0.4
	textAngle   = -30 // degrees, clockwise tilt
)

type Composer struct {
	codec *imagecodec.Codec
	font  *truetype.Font
	log   *zap.Logger
}

func NewComposer(codec *imagecodec.Codec, log *zap.Logger) (*Composer, error) {
	const op = "watermark.NewComposer"
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &Composer{codec: codec, font: f, log: log}, nil
}

// Compose produces the watermarked output for one photo. It never fails past
// this boundary: a broken asset flips the batch to the text fallback, and a
// photo whose composition fails is returned with its original bytes.
func (c *Composer) Compose(photo []byte, photoMime string, b *Batch) ([]byte, string) {
	if b.Position == models.WatermarkDisabled {
		return photo, passthroughMime(photo, photoMime)
	}

	out, mime, err := c.compose(photo, b)
	if err == nil {
		return out, mime
	}
	c.log.Warn("photo composition failed, returning original bytes",
		zap.String("album", b.AlbumName), zap.Error(err))
	return photo, passthroughMime(photo, photoMime)
}

func (c *Composer) compose(photo []byte, b *Batch) (out []byte, mime string, err error) {
	const op = "watermark.compose"
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()

	img, err := c.codec.Decode(photo)
	if err != nil {
		return nil, "", err
	}
	photoW, photoH := c.codec.Dimensions(img)
	base := imaging.Clone(img)

	overlay, normErr := b.overlay(c.codec)
	if normErr != nil {
		// One bad asset disables personalized watermarks for the whole
		// batch; every remaining photo takes the text path.
		c.log.Warn("watermark asset unusable, switching batch to text fallback",
			zap.String("album", b.AlbumName), zap.Error(normErr))
	}

	if overlay == nil {
		text, terr := c.textOverlay(photoW, photoH, b.AlbumName)
		if terr != nil {
			return nil, "", terr
		}
		base = imaging.Overlay(base, text, image.Pt(0, 0), textOpacity)
	} else {
		base = c.applyPolicy(base, overlay, b.Position, photoW, photoH)
	}

	out, err = c.codec.EncodeJPEG(base)
	if err != nil {
		return nil, "", err
	}
	return out, imagecodec.MimeJPEG, nil
}

func (c *Composer) applyPolicy(base *image.NRGBA, overlay image.Image, position string, photoW, photoH int) *image.NRGBA {
	switch position {
	case models.WatermarkLateral:
		ov := resizeToHeight(overlay, int(float64(photoH)*lateralHeightRatio))
		ov = fitInside(ov, photoW, photoH)
		ow, oh := c.codec.Dimensions(ov)
		margin := photoW / 50
		x := clampOffset(photoW - ow - margin)
		y := clampOffset(photoH - oh - margin)
		return imaging.Overlay(base, ov, image.Pt(x, y), 1.0)

	case models.WatermarkFill:
		var ov image.Image = imaging.Resize(overlay, int(float64(photoW)*fillWidthRatio), 0, imaging.Lanczos)
		ov = fitInside(ov, photoW, photoH)
		ow, oh := c.codec.Dimensions(ov)
		cellW, cellH := photoW/fillGrid, photoH/fillGrid
		for row := 0; row < fillGrid; row++ {
			for col := 0; col < fillGrid; col++ {
				x := clampOffset(col*cellW + (cellW-ow)/2)
				y := clampOffset(row*cellH + (cellH-oh)/2)
				base = imaging.Overlay(base, ov, image.Pt(x, y), 1.0)
			}
		}
		return base

	default:
		// Unknown non-disabled values degrade to a single centered overlay.
		ov := fitInside(overlay, photoW, photoH)
		ow, oh := c.codec.Dimensions(ov)
		x := clampOffset((photoW - ow) / 2)
		y := clampOffset((photoH - oh) / 2)
		return imaging.Overlay(base, ov, image.Pt(x, y), 1.0)
	}
}

// textOverlay rasterizes the translucent diagonal notice used when no usable
// watermark asset exists: "© <album> - Não compartilhar".
func (c *Composer) textOverlay(photoW, photoH int, albumName string) (image.Image, error) {
	const op = "watermark.textOverlay"

	text := fmt.Sprintf("© %s - Não compartilhar", albumName)
	size := float64(photoW) / 16
	if size < 12 {
		size = 12
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, photoW, photoH))
	fc := freetype.NewContext()
	fc.SetDPI(72)
	fc.SetFont(c.font)
	fc.SetFontSize(size)
	fc.SetClip(canvas.Bounds())
	fc.SetDst(canvas)
	fc.SetSrc(image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}))

	pt := freetype.Pt(photoW/12, photoH/2)
	if _, err := fc.DrawString(text, pt); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	rotated := imaging.Rotate(canvas, textAngle, color.NRGBA{})
	// Rotation grows the bounding box; crop back so the overlay spans
	// exactly the photo canvas.
	return imaging.CropAnchor(rotated, photoW, photoH, imaging.Center), nil
}

// resizeToHeight scales the overlay to the target height preserving aspect
// ratio, but never enlarges it past its native size.
func resizeToHeight(img image.Image, targetH int) image.Image {
	if targetH <= 0 || img.Bounds().Dy() <= targetH {
		return img
	}
	return imaging.Resize(img, 0, targetH, imaging.Lanczos)
}

// fitInside shrinks the overlay (aspect preserved, never enlarged) so it
// fits entirely within the photo.
func fitInside(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}

func clampOffset(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func passthroughMime(photo []byte, declared string) string {
	if declared != "" {
		return declared
	}
	return http.DetectContentType(photo)
}
