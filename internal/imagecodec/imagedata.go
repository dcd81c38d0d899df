package imagecodec

import (
	"encoding/base64"
	"fmt"
)

// ImageData normalizes the two shapes photo bytes arrive in at the ingestion
// boundary (raw upload buffers and base64 strings from older clients). The
// composer and codec only ever see raw bytes.
type ImageData struct {
	raw []byte
}

func Raw(b []byte) ImageData {
	return ImageData{raw: b}
}

func FromBase64(s string) (ImageData, error) {
	const op = "imagecodec.FromBase64"
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ImageData{}, fmt.Errorf("%s: %v", op, err)
	}
	return ImageData{raw: b}, nil
}

func (d ImageData) Bytes() []byte {
	return d.raw
}

func (d ImageData) Empty() bool {
	return len(d.raw) == 0
}

// Base64 renders the payload the way the share and listing endpoints emit it.
func (d ImageData) Base64() string {
	return base64.StdEncoding.EncodeToString(d.raw)
}
