package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fotolio/internal/apperr"
	"fotolio/internal/imagecodec"
	"fotolio/internal/models"
)

type UploadRequest struct {
	EncryptedAlbumID string
	SubalbumID       *int64
	Name             string
	Data             imagecodec.ImageData
	Mime             string
	IsPhysical       bool
	IsDigital        bool
	PriceDigital     float64
	PricePhysical    float64
}

// UploadPhoto is the guarded write path. Same contract as the listing:
// business outcomes settle into a Result, infra faults return an error for
// the breaker to count. On success Result.Data carries the new photo id.
func (s *PhotoService) UploadPhoto(ctx context.Context, adminID string, req UploadRequest) (Result, error) {
	if req.Data.Empty() {
		return Result{Status: http.StatusBadRequest, Data: "nenhuma imagem enviada"}, nil
	}

	albumID, derr := s.cipher.Decrypt(req.EncryptedAlbumID)
	if derr != nil {
		return Result{Status: http.StatusNotFound, Data: "Álbum não encontrado"}, nil
	}

	album, aerr := s.repo.GetAlbum(ctx, albumID)
	if errors.Is(aerr, apperr.ErrorNotFound) {
		return Result{Status: http.StatusNotFound, Data: "Álbum não encontrado"}, nil
	}
	if aerr != nil {
		return Result{}, aerr
	}
	if album.AdminID != adminID {
		return Result{Status: http.StatusNotFound, Data: "Álbum não encontrado"}, nil
	}

	photo := &models.Photo{
		ID:            uuid.New(),
		AlbumID:       album.ID,
		SubalbumID:    req.SubalbumID,
		Name:          req.Name,
		Data:          req.Data.Bytes(),
		Mime:          req.Mime,
		IsPhysical:    req.IsPhysical,
		IsDigital:     req.IsDigital,
		PriceDigital:  req.PriceDigital,
		PricePhysical: req.PricePhysical,
	}
	if err := s.repo.SavePhoto(ctx, photo); err != nil {
		return Result{}, err
	}

	s.log.Info("photo uploaded",
		zap.String("photo_id", photo.ID.String()),
		zap.Int64("album_id", album.ID))

	return Result{Status: http.StatusOK, Data: photo.ID.String()}, nil
}
