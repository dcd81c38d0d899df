package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fotolio/internal/apperr"
	"fotolio/internal/models"
	"fotolio/internal/secure"
)

type IssuedLink struct {
	URL       string
	ExpiresAt time.Time
	IsNew     bool
}

// ShareLinkService mints and reuses the time-boxed public tokens. Repeated
// share-button clicks for the same live target always come back with the
// same URL.
type ShareLinkService struct {
	repo    ShareTokenRepo
	albums  AlbumRepo
	baseURL string
	ttl     time.Duration
	group   singleflight.Group
	log     *zap.Logger
	now     func() time.Time
}

func NewShareLinkService(repo ShareTokenRepo, albums AlbumRepo, baseURL string, ttl time.Duration, log *zap.Logger) *ShareLinkService {
	return &ShareLinkService{
		repo:    repo,
		albums:  albums,
		baseURL: baseURL,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// Issue returns the latest unexpired token for the target, minting one when
// none is live. Concurrent first-requests for the same target are collapsed
// into a single mint through singleflight, so the lookup-then-insert pair
// cannot race with itself in-process.
func (s *ShareLinkService) Issue(ctx context.Context, targetType string, targetID int64) (*IssuedLink, error) {
	const op = "service.Issue"

	if targetType != models.TargetAlbum && targetType != models.TargetSubalbum {
		return nil, fmt.Errorf("%w: invalid target type %q", apperr.ErrorValidation, targetType)
	}
	if err := s.verifyTarget(ctx, targetType, targetID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%d", targetType, targetID)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.lookupOrMint(ctx, targetType, targetID)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v.(*IssuedLink), nil
}

func (s *ShareLinkService) verifyTarget(ctx context.Context, targetType string, targetID int64) error {
	var err error
	if targetType == models.TargetAlbum {
		_, err = s.albums.GetAlbum(ctx, targetID)
	} else {
		_, err = s.albums.GetSubalbum(ctx, targetID)
	}
	return err
}

func (s *ShareLinkService) lookupOrMint(ctx context.Context, targetType string, targetID int64) (*IssuedLink, error) {
	now := s.now()

	existing, err := s.repo.LatestValidShareToken(ctx, targetType, targetID, now)
	if err == nil {
		return &IssuedLink{URL: existing.URL, ExpiresAt: existing.ExpiresAt, IsNew: false}, nil
	}
	if !errors.Is(err, apperr.ErrorNotFound) {
		return nil, err
	}

	token, err := secure.NewShareToken()
	if err != nil {
		return nil, err
	}

	t := &models.ShareToken{
		Token:      token,
		TargetType: targetType,
		TargetID:   targetID,
		URL:        s.baseURL + "/fotos/shared/" + token,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.repo.SaveShareToken(ctx, t); err != nil {
		return nil, err
	}

	s.log.Info("share link minted",
		zap.String("target_type", targetType),
		zap.Int64("target_id", targetID),
		zap.Time("expires_at", t.ExpiresAt))

	return &IssuedLink{URL: t.URL, ExpiresAt: t.ExpiresAt, IsNew: true}, nil
}
