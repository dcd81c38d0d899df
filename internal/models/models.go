// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Watermark position policies stored on the album row. Values are kept in
// Portuguese because they are what the mobile clients persist.
const (
	WatermarkLateral  = "lateral"
	WatermarkFill     = "preencher"
	WatermarkDisabled = "desativado"
)

// Share link target types.
const (
	TargetAlbum    = "album"
	TargetSubalbum = "subalbum"
)

type Album struct {
	ID                int64  `db:"id"`
	AdminID           string `db:"admin_id"`
	Name              string `db:"name"`
	WatermarkData     []byte `db:"watermark_data"`
	WatermarkMime     string `db:"watermark_mime"`
	WatermarkPosition string `db:"watermark_position"` // lateral, preencher, desativado
}

type Subalbum struct {
	ID      int64  `db:"id"`
	AlbumID int64  `db:"album_id"`
	Name    string `db:"name"`
}

type Photo struct {
	ID            uuid.UUID `db:"id"`
	AlbumID       int64     `db:"album_id"`
	SubalbumID    *int64    `db:"subalbum_id"`
	Name          string    `db:"name"`
	Data          []byte    `db:"data"`
	Mime          string    `db:"mime"`
	Thumbnail     []byte    `db:"thumbnail"`
	IsPhysical    bool      `db:"is_physical"`
	IsDigital     bool      `db:"is_digital"`
	PriceDigital  float64   `db:"price_digital"`
	PricePhysical float64   `db:"price_physical"`
}

// CompositedPhoto is the transient share-path payload. Data carries the
// watermarked (or passthrough) bytes base64-encoded; nothing here is persisted.
type CompositedPhoto struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Data          string    `json:"dados"`
	Mime          string    `json:"mime"`
	IsPhysical    bool      `json:"isPhysical"`
	IsDigital     bool      `json:"isDigital"`
	PriceDigital  float64   `json:"priceDigital"`
	PricePhysical float64   `json:"pricePhysical"`
}

type ShareToken struct {
	ID         int64     `db:"id"`
	Token      string    `db:"token"`
	TargetType string    `db:"target_type"` // album, subalbum
	TargetID   int64     `db:"target_id"`
	URL        string    `db:"url"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

func (t *ShareToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
