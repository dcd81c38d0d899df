package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fotolio/internal/apperr"
	"fotolio/internal/breaker"
	"fotolio/internal/imagecodec"
	"fotolio/internal/models"
	"fotolio/internal/secure"
	"fotolio/internal/server"
	"fotolio/internal/service"
	"fotolio/internal/watermark"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// stubRepo implements service.Repository for handler tests.
type stubRepo struct {
	albums    map[int64]*models.Album
	subalbums map[int64]*models.Subalbum
	photos    []models.Photo
	tokens    map[string]*models.ShareToken
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		albums:    map[int64]*models.Album{},
		subalbums: map[int64]*models.Subalbum{},
		tokens:    map[string]*models.ShareToken{},
	}
}

func (r *stubRepo) GetAlbum(ctx context.Context, id int64) (*models.Album, error) {
	if a, ok := r.albums[id]; ok {
		return a, nil
	}
	return nil, apperr.ErrorNotFound
}

func (r *stubRepo) GetSubalbum(ctx context.Context, id int64) (*models.Subalbum, error) {
	if s, ok := r.subalbums[id]; ok {
		return s, nil
	}
	return nil, apperr.ErrorNotFound
}

func (r *stubRepo) ListAlbumPhotos(ctx context.Context, albumID int64, limit, offset int) ([]models.Photo, error) {
	return r.photos, nil
}

func (r *stubRepo) CountAlbumPhotos(ctx context.Context, albumID int64) (int, error) {
	return len(r.photos), nil
}

func (r *stubRepo) ListTargetPhotos(ctx context.Context, targetType string, targetID int64) ([]models.Photo, error) {
	return r.photos, nil
}

func (r *stubRepo) SavePhoto(ctx context.Context, p *models.Photo) error {
	r.photos = append(r.photos, *p)
	return nil
}

func (r *stubRepo) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	return nil, apperr.ErrorNotFound
}

func (r *stubRepo) UpdatePhotoThumbnail(ctx context.Context, id uuid.UUID, thumb []byte) error {
	return nil
}

func (r *stubRepo) LatestValidShareToken(ctx context.Context, targetType string, targetID int64, now time.Time) (*models.ShareToken, error) {
	for _, t := range r.tokens {
		if t.TargetType == targetType && t.TargetID == targetID && t.ExpiresAt.After(now) {
			return t, nil
		}
	}
	return nil, apperr.ErrorNotFound
}

func (r *stubRepo) SaveShareToken(ctx context.Context, t *models.ShareToken) error {
	r.tokens[t.Token] = t
	return nil
}

func (r *stubRepo) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	if t, ok := r.tokens[token]; ok {
		return t, nil
	}
	return nil, apperr.ErrorNotFound
}

type testEnv struct {
	repo     *stubRepo
	cipher   *secure.IDCipher
	breakers *breaker.Registry
	srv      *server.Server
	cfg      *models.Config
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubRepo()
	cipher, err := secure.NewIDCipher(testKey)
	require.NoError(t, err)
	composer, err := watermark.NewComposer(imagecodec.New(), zap.NewNop())
	require.NoError(t, err)

	cfg := &models.Config{
		ServerAddr:    ":0",
		PublicBaseURL: "http://test",
		JWTSecret:     "test-secret",
	}
	breakers := breaker.NewRegistry(breaker.Config{
		Timeout:                  time.Second,
		ResetTimeout:             10 * time.Second,
		RollingWindow:            30 * time.Second,
		ErrorThresholdPercentage: 50,
		VolumeThreshold:          1,
	})

	photos := service.NewPhotoService(repo, cipher, composer, zap.NewNop())
	links := service.NewShareLinkService(repo, repo, cfg.PublicBaseURL, 168*time.Hour, zap.NewNop())
	srv := server.NewServer(cfg, photos, links, cipher, breakers, &kafka.Writer{}, zap.NewNop())

	return &testEnv{repo: repo, cipher: cipher, breakers: breakers, srv: srv, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) bearer(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, server.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
	})
	signed, err := token.SignedString([]byte(e.cfg.JWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	data, err := imagecodec.New().EncodeJPEG(img)
	require.NoError(t, err)
	return data
}

func TestSharedRouteUnknownToken(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, httptest.NewRequest(http.MethodGet, "/fotos/shared/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSharedRouteExpiredToken(t *testing.T) {
	e := newEnv(t)
	e.repo.albums[1] = &models.Album{ID: 1, AdminID: "a", Name: "Alb", WatermarkPosition: models.WatermarkDisabled}
	e.repo.tokens["dead"] = &models.ShareToken{
		Token: "dead", TargetType: models.TargetAlbum, TargetID: 1,
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/fotos/shared/dead", nil))
	require.Equal(t, http.StatusGone, w.Code)
}

func TestSharedRouteReturnsPhotos(t *testing.T) {
	e := newEnv(t)
	e.repo.albums[1] = &models.Album{ID: 1, AdminID: "a", Name: "Alb", WatermarkPosition: models.WatermarkDisabled}
	e.repo.photos = append(e.repo.photos, models.Photo{ID: uuid.New(), AlbumID: 1, Data: testJPEG(t, 40, 30), Mime: "image/jpeg"})
	e.repo.tokens["live"] = &models.ShareToken{
		Token: "live", TargetType: models.TargetAlbum, TargetID: 1,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/fotos/shared/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tipo  string                   `json:"tipo"`
		Fotos []models.CompositedPhoto `json:"fotos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, models.TargetAlbum, body.Tipo)
	require.Len(t, body.Fotos, 1)
	require.NotEmpty(t, body.Fotos[0].Data)
}

func TestSharedRouteDegradesWhenBreakerOpen(t *testing.T) {
	e := newEnv(t)
	e.repo.albums[1] = &models.Album{ID: 1, AdminID: "a", Name: "Alb", WatermarkPosition: models.WatermarkDisabled}
	e.repo.tokens["live"] = &models.ShareToken{
		Token: "live", TargetType: models.TargetAlbum, TargetID: 1,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	// Trip the retrieval breaker (volume threshold is 1 in tests).
	b := e.breakers.Get(server.BreakerRetrieval)
	_, _ = b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("backend down")
	})
	require.Equal(t, breaker.StateOpen, b.State())

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/fotos/shared/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tipo    string                   `json:"tipo"`
		Fotos   []models.CompositedPhoto `json:"fotos"`
		Message string                   `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, models.TargetAlbum, body.Tipo)
	require.Empty(t, body.Fotos)
	require.NotEmpty(t, body.Message)
}

func TestGetAlbumPhotosRequiresAuth(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, httptest.NewRequest(http.MethodGet, "/fotos/getAlbumsPhotos?albumId=x", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetAlbumPhotosListsOwnerAlbum(t *testing.T) {
	e := newEnv(t)
	e.repo.albums[1] = &models.Album{ID: 1, AdminID: "admin-1", Name: "Alb", WatermarkPosition: models.WatermarkDisabled}
	e.repo.photos = append(e.repo.photos, models.Photo{ID: uuid.New(), AlbumID: 1, Data: testJPEG(t, 20, 20), Mime: "image/jpeg"})

	enc, err := e.cipher.Encrypt(1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/fotos/getAlbumsPhotos?albumId="+enc, nil)
	req.Header.Set("Authorization", e.bearer(t, "admin-1"))
	w := e.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body service.ListingPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.TotalImages)
	require.Len(t, body.Images, 1)
}

func TestGenerateShareLinkIdempotent(t *testing.T) {
	e := newEnv(t)
	e.repo.albums[1] = &models.Album{ID: 1, AdminID: "admin-1", Name: "Alb", WatermarkPosition: models.WatermarkDisabled}

	enc, err := e.cipher.Encrypt(1)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{"albumId": enc, "isSubalbum": false})
	require.NoError(t, err)

	mk := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/album/generateShareLink", bytes.NewReader(payload))
		req.Header.Set("Authorization", e.bearer(t, "admin-1"))
		req.Header.Set("Content-Type", "application/json")
		return e.do(t, req)
	}

	w1 := mk()
	require.Equal(t, http.StatusOK, w1.Code)
	w2 := mk()
	require.Equal(t, http.StatusOK, w2.Code)

	var r1, r2 struct {
		ShareLink string `json:"shareLink"`
	}
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &r1))
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &r2))
	require.Equal(t, r1.ShareLink, r2.ShareLink)
	require.Contains(t, r1.ShareLink, "http://test/fotos/shared/")
}

func TestHealthReportsBreakers(t *testing.T) {
	e := newEnv(t)
	e.breakers.Get(server.BreakerRetrieval)

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string            `json:"status"`
		Breakers []breaker.Metrics `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.NotEmpty(t, body.Breakers)
}
