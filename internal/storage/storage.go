// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"fotolio/internal/apperr"
	"fotolio/internal/models"
)

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

func (s *Storage) GetAlbum(ctx context.Context, id int64) (*models.Album, error) {
	const op = "storage.GetAlbum"
	var a models.Album
	err := s.pool.QueryRow(ctx,
		`SELECT id, admin_id, name, COALESCE(watermark_data, ''::bytea), COALESCE(watermark_mime, ''), watermark_position
		 FROM albums WHERE id = $1`,
		id).Scan(&a.ID, &a.AdminID, &a.Name, &a.WatermarkData, &a.WatermarkMime, &a.WatermarkPosition)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &a, nil
}

func (s *Storage) GetSubalbum(ctx context.Context, id int64) (*models.Subalbum, error) {
	const op = "storage.GetSubalbum"
	var sa models.Subalbum
	err := s.pool.QueryRow(ctx,
		`SELECT id, album_id, name FROM subalbums WHERE id = $1`,
		id).Scan(&sa.ID, &sa.AlbumID, &sa.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &sa, nil
}

func (s *Storage) ListAlbumPhotos(ctx context.Context, albumID int64, limit, offset int) ([]models.Photo, error) {
	const op = "storage.ListAlbumPhotos"
	rows, err := s.pool.Query(ctx,
		`SELECT id, album_id, subalbum_id, name, data, mime, is_physical, is_digital, price_digital, price_physical
		 FROM photos WHERE album_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		albumID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()
	return scanPhotos(rows, op)
}

func (s *Storage) CountAlbumPhotos(ctx context.Context, albumID int64) (int, error) {
	const op = "storage.CountAlbumPhotos"
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE album_id = $1`, albumID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}
	return n, nil
}

// ListTargetPhotos fetches the photos behind a share target in stable
// retrieval order; the share path preserves this order in its output.
func (s *Storage) ListTargetPhotos(ctx context.Context, targetType string, targetID int64) ([]models.Photo, error) {
	const op = "storage.ListTargetPhotos"

	query := `SELECT id, album_id, subalbum_id, name, data, mime, is_physical, is_digital, price_digital, price_physical
		 FROM photos WHERE album_id = $1 ORDER BY created_at, id`
	if targetType == models.TargetSubalbum {
		query = `SELECT id, album_id, subalbum_id, name, data, mime, is_physical, is_digital, price_digital, price_physical
		 FROM photos WHERE subalbum_id = $1 ORDER BY created_at, id`
	}

	rows, err := s.pool.Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()
	return scanPhotos(rows, op)
}

func scanPhotos(rows pgx.Rows, op string) ([]models.Photo, error) {
	photos := []models.Photo{}
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.AlbumID, &p.SubalbumID, &p.Name, &p.Data, &p.Mime,
			&p.IsPhysical, &p.IsDigital, &p.PriceDigital, &p.PricePhysical); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return photos, nil
}

func (s *Storage) SavePhoto(ctx context.Context, p *models.Photo) error {
	const op = "storage.SavePhoto"
	_, err := s.pool.Exec(ctx,
		`INSERT INTO photos (id, album_id, subalbum_id, name, data, mime, is_physical, is_digital, price_digital, price_physical)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.AlbumID, p.SubalbumID, p.Name, p.Data, p.Mime, p.IsPhysical, p.IsDigital, p.PriceDigital, p.PricePhysical)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	const op = "storage.GetPhoto"
	var p models.Photo
	err := s.pool.QueryRow(ctx,
		`SELECT id, album_id, subalbum_id, name, data, mime, is_physical, is_digital, price_digital, price_physical
		 FROM photos WHERE id = $1`,
		id).Scan(&p.ID, &p.AlbumID, &p.SubalbumID, &p.Name, &p.Data, &p.Mime,
		&p.IsPhysical, &p.IsDigital, &p.PriceDigital, &p.PricePhysical)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &p, nil
}

func (s *Storage) UpdatePhotoThumbnail(ctx context.Context, id uuid.UUID, thumb []byte) error {
	const op = "storage.UpdatePhotoThumbnail"
	_, err := s.pool.Exec(ctx, `UPDATE photos SET thumbnail = $2 WHERE id = $1`, id, thumb)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// LatestValidShareToken returns the newest unexpired token for a target, or
// apperr.ErrorNotFound. Expired rows may pile up; lookups always prefer the
// latest live one.
func (s *Storage) LatestValidShareToken(ctx context.Context, targetType string, targetID int64, now time.Time) (*models.ShareToken, error) {
	const op = "storage.LatestValidShareToken"
	var t models.ShareToken
	err := s.pool.QueryRow(ctx,
		`SELECT id, token, target_type, target_id, url, expires_at, created_at
		 FROM share_tokens
		 WHERE target_type = $1 AND target_id = $2 AND expires_at > $3
		 ORDER BY expires_at DESC LIMIT 1`,
		targetType, targetID, now).Scan(&t.ID, &t.Token, &t.TargetType, &t.TargetID, &t.URL, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &t, nil
}

func (s *Storage) SaveShareToken(ctx context.Context, t *models.ShareToken) error {
	const op = "storage.SaveShareToken"
	err := s.pool.QueryRow(ctx,
		`INSERT INTO share_tokens (token, target_type, target_id, url, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.Token, t.TargetType, t.TargetID, t.URL, t.ExpiresAt, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	const op = "storage.GetShareToken"
	var t models.ShareToken
	err := s.pool.QueryRow(ctx,
		`SELECT id, token, target_type, target_id, url, expires_at, created_at
		 FROM share_tokens WHERE token = $1`,
		token).Scan(&t.ID, &t.Token, &t.TargetType, &t.TargetID, &t.URL, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &t, nil
}
