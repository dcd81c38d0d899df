// Package service implements the photo retrieval and share-link lifecycle
// behind the HTTP handlers. Business failures come back as structured
// results or sentinel errors; only infrastructure faults are plain errors,
// because those are what the circuit breaker counts.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fotolio/internal/apperr"
	"fotolio/internal/imagecodec"
	"fotolio/internal/models"
	"fotolio/internal/secure"
	"fotolio/internal/watermark"
)

const defaultPageLimit = 50

// Result is the settled outcome of the owner-facing listing path. The
// breaker wrapping that path sees an error only on genuine infra faults.
type Result struct {
	Status int
	Data   any
}

type ListingPage struct {
	Images      []models.CompositedPhoto `json:"images"`
	TotalImages int                      `json:"totalImages"`
}

// TargetInfo is the metadata row exposed on the share route ("dados").
type TargetInfo struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	AlbumID *int64 `json:"albumId,omitempty"`
}

// ShareTarget is a resolved share token: the target metadata plus the
// album's watermark policy for the render batch.
type ShareTarget struct {
	Tipo       string
	Dados      TargetInfo
	TargetType string
	TargetID   int64

	AlbumName string
	Position  string
	Asset     []byte
}

type PhotoService struct {
	repo     Repository
	cipher   *secure.IDCipher
	composer *watermark.Composer
	log      *zap.Logger
	now      func() time.Time
}

func NewPhotoService(repo Repository, cipher *secure.IDCipher, composer *watermark.Composer, log *zap.Logger) *PhotoService {
	return &PhotoService{
		repo:     repo,
		cipher:   cipher,
		composer: composer,
		log:      log,
		now:      time.Now,
	}
}

// GetAlbumPhotos is the owner-facing listing. No watermarking here; the
// share path is the only one that composites. All business outcomes settle
// into a Result; the returned error is reserved for infra faults.
func (s *PhotoService) GetAlbumPhotos(ctx context.Context, adminID, encryptedAlbumID string, page, limit int) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in album listing", zap.Any("panic", r))
			res = Result{Status: http.StatusInternalServerError, Data: "erro interno ao listar fotos"}
			err = nil
		}
	}()

	albumID, derr := s.cipher.Decrypt(encryptedAlbumID)
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

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}

	total, cerr := s.repo.CountAlbumPhotos(ctx, album.ID)
	if cerr != nil {
		return Result{}, cerr
	}
	photos, perr := s.repo.ListAlbumPhotos(ctx, album.ID, limit, (page-1)*limit)
	if perr != nil {
		return Result{}, perr
	}

	images := make([]models.CompositedPhoto, 0, len(photos))
	for _, p := range photos {
		images = append(images, models.CompositedPhoto{
			ID:            p.ID,
			Name:          p.Name,
			Data:          imagecodec.Raw(p.Data).Base64(),
			Mime:          p.Mime,
			IsPhysical:    p.IsPhysical,
			IsDigital:     p.IsDigital,
			PriceDigital:  p.PriceDigital,
			PricePhysical: p.PricePhysical,
		})
	}

	return Result{Status: http.StatusOK, Data: ListingPage{Images: images, TotalImages: total}}, nil
}

// ResolveShare maps a public token to its target. Returns
// apperr.ErrorNotFound for unknown tokens and apperr.ErrorTokenExpired for
// dead ones; anything else is an infra fault.
func (s *PhotoService) ResolveShare(ctx context.Context, token string) (*ShareTarget, error) {
	const op = "service.ResolveShare"

	t, err := s.repo.GetShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.Expired(s.now()) {
		return nil, apperr.ErrorTokenExpired
	}

	switch t.TargetType {
	case models.TargetAlbum:
		album, err := s.repo.GetAlbum(ctx, t.TargetID)
		if err != nil {
			return nil, err
		}
		return &ShareTarget{
			Tipo:       models.TargetAlbum,
			Dados:      TargetInfo{ID: album.ID, Name: album.Name},
			TargetType: t.TargetType,
			TargetID:   t.TargetID,
			AlbumName:  album.Name,
			Position:   album.WatermarkPosition,
			Asset:      album.WatermarkData,
		}, nil

	case models.TargetSubalbum:
		sub, err := s.repo.GetSubalbum(ctx, t.TargetID)
		if err != nil {
			return nil, err
		}
		// Watermark policy lives on the parent album.
		album, err := s.repo.GetAlbum(ctx, sub.AlbumID)
		if err != nil {
			return nil, err
		}
		return &ShareTarget{
			Tipo:       models.TargetSubalbum,
			Dados:      TargetInfo{ID: sub.ID, Name: sub.Name, AlbumID: &sub.AlbumID},
			TargetType: t.TargetType,
			TargetID:   t.TargetID,
			AlbumName:  album.Name,
			Position:   album.WatermarkPosition,
			Asset:      album.WatermarkData,
		}, nil

	default:
		return nil, fmt.Errorf("%s: unknown target type %q", op, t.TargetType)
	}
}

// SharedPhotos runs the watermark batch over a resolved target's photos.
// Output order matches retrieval order. Per-photo composition can never fail
// the batch; the composer settles each photo on its own.
func (s *PhotoService) SharedPhotos(ctx context.Context, target *ShareTarget) ([]models.CompositedPhoto, error) {
	photos, err := s.repo.ListTargetPhotos(ctx, target.TargetType, target.TargetID)
	if err != nil {
		return nil, err
	}

	batch := watermark.NewBatch(target.AlbumName, target.Position, imagecodec.Raw(target.Asset))

	out := make([]models.CompositedPhoto, 0, len(photos))
	for _, p := range photos {
		data, mime := s.composer.Compose(p.Data, p.Mime, batch)
		out = append(out, models.CompositedPhoto{
			ID:            p.ID,
			Name:          p.Name,
			Data:          imagecodec.Raw(data).Base64(),
			Mime:          mime,
			IsPhysical:    p.IsPhysical,
			IsDigital:     p.IsDigital,
			PriceDigital:  p.PriceDigital,
			PricePhysical: p.PricePhysical,
		})
	}
	return out, nil
}
