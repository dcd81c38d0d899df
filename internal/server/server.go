package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fotolio/internal/breaker"
	"fotolio/internal/models"
	"fotolio/internal/secure"
	"fotolio/internal/service"
)

// Breaker names, one per guarded operation.
const (
	BreakerRetrieval = "photos.retrieval"
	BreakerUpload    = "photos.upload"
)

type Server struct {
	cfg      *models.Config
	router   *gin.Engine
	photos   *service.PhotoService
	links    *service.ShareLinkService
	cipher   *secure.IDCipher
	breakers *breaker.Registry
	producer *kafka.Writer
	log      *zap.Logger
}

func NewServer(cfg *models.Config, photos *service.PhotoService, links *service.ShareLinkService,
	cipher *secure.IDCipher, breakers *breaker.Registry, producer *kafka.Writer, log *zap.Logger) *Server {

	r := gin.Default()

	s := &Server{
		cfg:      cfg,
		router:   r,
		photos:   photos,
		links:    links,
		cipher:   cipher,
		breakers: breakers,
		producer: producer,
		log:      log,
	}

	r.GET("/health", s.handleHealth)
	r.GET("/fotos/shared/:token", s.handleSharedPhotos)

	auth := r.Group("/", s.authMiddleware())
	auth.GET("/fotos/getAlbumsPhotos", s.handleGetAlbumPhotos)
	auth.POST("/fotos/upload", s.handleUpload)
	auth.POST("/album/generateShareLink", s.handleGenerateShareLink)

	return s
}

func (s *Server) Start() error {
	return s.router.Run(s.cfg.ServerAddr)
}

func (s *Server) Stop() {
	// No shutdown needed for gin
}

// Router exposes the engine for handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"breakers": s.breakers.Snapshot(),
	})
}
