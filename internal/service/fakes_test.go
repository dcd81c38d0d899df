package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fotolio/internal/apperr"
	"fotolio/internal/models"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	mu sync.Mutex

	albums    map[int64]*models.Album
	subalbums map[int64]*models.Subalbum
	photos    []models.Photo
	tokens    []models.ShareToken
	nextID    int64

	saveTokenCalls int

	listErr  error
	countErr error
	saveErr  error
	tokenErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		albums:    make(map[int64]*models.Album),
		subalbums: make(map[int64]*models.Subalbum),
	}
}

func (f *fakeRepo) GetAlbum(ctx context.Context, id int64) (*models.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.albums[id]; ok {
		return a, nil
	}
	return nil, apperr.ErrorNotFound
}

func (f *fakeRepo) GetSubalbum(ctx context.Context, id int64) (*models.Subalbum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subalbums[id]; ok {
		return s, nil
	}
	return nil, apperr.ErrorNotFound
}

func (f *fakeRepo) ListAlbumPhotos(ctx context.Context, albumID int64, limit, offset int) ([]models.Photo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Photo{}
	for _, p := range f.photos {
		if p.AlbumID == albumID {
			out = append(out, p)
		}
	}
	if offset >= len(out) {
		return []models.Photo{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CountAlbumPhotos(ctx context.Context, albumID int64) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.photos {
		if p.AlbumID == albumID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListTargetPhotos(ctx context.Context, targetType string, targetID int64) ([]models.Photo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Photo{}
	for _, p := range f.photos {
		if targetType == models.TargetSubalbum {
			if p.SubalbumID != nil && *p.SubalbumID == targetID {
				out = append(out, p)
			}
		} else if p.AlbumID == targetID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) SavePhoto(ctx context.Context, p *models.Photo) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, *p)
	return nil
}

func (f *fakeRepo) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.photos {
		if f.photos[i].ID == id {
			return &f.photos[i], nil
		}
	}
	return nil, apperr.ErrorNotFound
}

func (f *fakeRepo) UpdatePhotoThumbnail(ctx context.Context, id uuid.UUID, thumb []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.photos {
		if f.photos[i].ID == id {
			f.photos[i].Thumbnail = thumb
			return nil
		}
	}
	return apperr.ErrorNotFound
}

func (f *fakeRepo) LatestValidShareToken(ctx context.Context, targetType string, targetID int64, now time.Time) (*models.ShareToken, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.ShareToken
	for i := range f.tokens {
		t := &f.tokens[i]
		if t.TargetType != targetType || t.TargetID != targetID || !t.ExpiresAt.After(now) {
			continue
		}
		if best == nil || t.ExpiresAt.After(best.ExpiresAt) {
			best = t
		}
	}
	if best == nil {
		return nil, apperr.ErrorNotFound
	}
	return best, nil
}

func (f *fakeRepo) SaveShareToken(ctx context.Context, t *models.ShareToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveTokenCalls++
	f.nextID++
	t.ID = f.nextID
	f.tokens = append(f.tokens, *t)
	return nil
}

func (f *fakeRepo) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tokens {
		if f.tokens[i].Token == token {
			return &f.tokens[i], nil
		}
	}
	return nil, apperr.ErrorNotFound
}
