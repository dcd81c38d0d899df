package service

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fotolio/internal/imagecodec"
)

const thumbnailSize = 256

// GenerateThumbnail is the async half of the upload pipeline: the Kafka
// consumer replays photo ids through it after the write path has persisted
// the row.
func (s *PhotoService) GenerateThumbnail(ctx context.Context, photoID uuid.UUID) error {
	const op = "service.GenerateThumbnail"

	photo, err := s.repo.GetPhoto(ctx, photoID)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	codec := imagecodec.New()
	img, err := codec.Decode(photo.Data)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	thumb := imaging.Thumbnail(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	data, err := codec.EncodeJPEG(thumb)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	if err := s.repo.UpdatePhotoThumbnail(ctx, photoID, data); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	s.log.Debug("thumbnail generated", zap.String("photo_id", photoID.String()))
	return nil
}
