package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fotolio/internal/models"
)

// Repository interfaces are defined on the consumer side; *storage.Storage
// satisfies all of them.

type AlbumRepo interface {
	GetAlbum(ctx context.Context, id int64) (*models.Album, error)
	GetSubalbum(ctx context.Context, id int64) (*models.Subalbum, error)
}

type PhotoRepo interface {
	ListAlbumPhotos(ctx context.Context, albumID int64, limit, offset int) ([]models.Photo, error)
	CountAlbumPhotos(ctx context.Context, albumID int64) (int, error)
	ListTargetPhotos(ctx context.Context, targetType string, targetID int64) ([]models.Photo, error)
	SavePhoto(ctx context.Context, p *models.Photo) error
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	UpdatePhotoThumbnail(ctx context.Context, id uuid.UUID, thumb []byte) error
}

type ShareTokenRepo interface {
	LatestValidShareToken(ctx context.Context, targetType string, targetID int64, now time.Time) (*models.ShareToken, error)
	SaveShareToken(ctx context.Context, t *models.ShareToken) error
	GetShareToken(ctx context.Context, token string) (*models.ShareToken, error)
}

type Repository interface {
	AlbumRepo
	PhotoRepo
	ShareTokenRepo
}
