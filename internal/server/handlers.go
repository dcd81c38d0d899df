package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"

	"fotolio/internal/apperr"
	"fotolio/internal/breaker"
	"fotolio/internal/imagecodec"
	"fotolio/internal/models"
	"fotolio/internal/service"
)

// breakerTripped reports whether the error is the breaker shedding load
// rather than the operation itself failing.
func breakerTripped(err error) bool {
	return errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrTimeout)
}

func (s *Server) handleGetAlbumPhotos(c *gin.Context) {
	encID := c.Query("albumId")
	if encID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "albumId é obrigatório"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	admin := adminID(c)

	b := s.breakers.Get(BreakerRetrieval)
	res, err := breaker.Do(b, c.Request.Context(), func(ctx context.Context) (service.Result, error) {
		return s.photos.GetAlbumPhotos(ctx, admin, encID, page, limit)
	})
	if breakerTripped(err) {
		// Degraded-but-successful: availability over completeness.
		c.JSON(http.StatusOK, gin.H{
			"message": "serviço de fotos temporariamente indisponível",
			"images":  []models.CompositedPhoto{},
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "erro interno"})
		return
	}

	if res.Status == http.StatusOK {
		c.JSON(http.StatusOK, res.Data)
		return
	}
	c.JSON(res.Status, gin.H{"message": res.Data})
}

func (s *Server) handleSharedPhotos(c *gin.Context) {
	token := c.Param("token")

	target, err := s.photos.ResolveShare(c.Request.Context(), token)
	if errors.Is(err, apperr.ErrorNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "link não encontrado"})
		return
	}
	if errors.Is(err, apperr.ErrorTokenExpired) {
		c.JSON(http.StatusGone, gin.H{"message": "link expirado"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "erro interno"})
		return
	}

	b := s.breakers.Get(BreakerRetrieval)
	fotos, err := breaker.Do(b, c.Request.Context(), func(ctx context.Context) ([]models.CompositedPhoto, error) {
		return s.photos.SharedPhotos(ctx, target)
	})
	if breakerTripped(err) {
		// Metadata without pixels beats a hard failure for viewers.
		c.JSON(http.StatusOK, gin.H{
			"tipo":    target.Tipo,
			"dados":   target.Dados,
			"fotos":   []models.CompositedPhoto{},
			"message": "fotos temporariamente indisponíveis",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "erro interno"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tipo":  target.Tipo,
		"dados": target.Dados,
		"fotos": fotos,
	})
}

type shareLinkRequest struct {
	AlbumID    string `json:"albumId" binding:"required"`
	IsSubalbum bool   `json:"isSubalbum"`
}

func (s *Server) handleGenerateShareLink(c *gin.Context) {
	const op = "server.handleGenerateShareLink"

	var req shareLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "corpo da requisição inválido"})
		return
	}

	targetID, err := s.cipher.Decrypt(req.AlbumID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "álbum não encontrado"})
		return
	}
	targetType := models.TargetAlbum
	if req.IsSubalbum {
		targetType = models.TargetSubalbum
	}

	link, err := s.links.Issue(c.Request.Context(), targetType, targetID)
	if errors.Is(err, apperr.ErrorValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "requisição inválida"})
		return
	}
	if errors.Is(err, apperr.ErrorNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "álbum não encontrado"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": fmt.Sprintf("%s: erro interno", op)})
		return
	}

	message := "link já existente"
	if link.IsNew {
		message = "link gerado com sucesso"
	}
	c.JSON(http.StatusOK, gin.H{
		"shareLink": link.URL,
		"expiresAt": link.ExpiresAt,
		"message":   message,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"
	admin := adminID(c)

	req := service.UploadRequest{
		EncryptedAlbumID: c.PostForm("albumId"),
		Name:             c.PostForm("name"),
		IsPhysical:       c.PostForm("isPhysical") == "true",
		IsDigital:        c.PostForm("isDigital") == "true",
	}
	req.PriceDigital, _ = strconv.ParseFloat(c.PostForm("priceDigital"), 64)
	req.PricePhysical, _ = strconv.ParseFloat(c.PostForm("pricePhysical"), 64)
	if sub := c.PostForm("subalbumId"); sub != "" {
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "subalbumId inválido"})
			return
		}
		req.SubalbumID = &id
	}

	// Either a multipart file or a legacy base64 "data" field; both settle
	// into the same raw representation at this boundary.
	if file, err := c.FormFile("photo"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": fmt.Sprintf("%s: %v", op, err)})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": fmt.Sprintf("%s: %v", op, err)})
			return
		}
		req.Data = imagecodec.Raw(data)
		req.Mime = file.Header.Get("Content-Type")
		if req.Name == "" {
			req.Name = file.Filename
		}
	} else if b64 := c.PostForm("data"); b64 != "" {
		data, err := imagecodec.FromBase64(b64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "imagem base64 inválida"})
			return
		}
		req.Data = data
		req.Mime = c.PostForm("mime")
	}

	b := s.breakers.Get(BreakerUpload)
	res, err := breaker.Do(b, c.Request.Context(), func(ctx context.Context) (service.Result, error) {
		return s.photos.UploadPhoto(ctx, admin, req)
	})
	if breakerTripped(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "upload temporariamente indisponível"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "erro interno"})
		return
	}
	if res.Status != http.StatusOK {
		c.JSON(res.Status, gin.H{"message": res.Data})
		return
	}

	photoID := res.Data.(string)

	// Queue thumbnail generation; the consumer picks it up.
	if err := s.producer.WriteMessages(c.Request.Context(), kafka.Message{Value: []byte(photoID)}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": photoID})
}
