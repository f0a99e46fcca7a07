package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Marga-Ghale/statement-saas/internal/converter"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/models"
	"github.com/gin-gonic/gin"
)

// ============================================
// Converter Handler
// ============================================

type ConverterHandler struct {
	store *converter.Store
	log   *logger.Logger
}

// Upload stores the submitted statements for the session named by the
// X-Session-Id header.
func (h *ConverterHandler) Upload(c *gin.Context) {
	sessionID := c.GetHeader("X-Session-Id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing session id"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	exports := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "File upload failed"})
			return
		}
		name, err := h.store.Save(sessionID, fh.Filename, f)
		f.Close()
		if err != nil {
			h.respondStoreError(c, err, "File upload failed")
			return
		}
		exports = append(exports, name)
	}

	c.JSON(http.StatusOK, models.UploadResponse{Message: "Files uploaded successfully", Files: exports})
}

// Files lists the session's CSV exports.
func (h *ConverterHandler) Files(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, models.FilesResponse{Files: []models.FileResponse{}})
		return
	}

	files, err := h.store.List(sessionID)
	if err != nil {
		switch {
		case errors.Is(err, converter.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, models.FilesResponse{Files: []models.FileResponse{}})
		case errors.Is(err, converter.ErrInvalidSessionID):
			c.JSON(http.StatusBadRequest, models.FilesResponse{Files: []models.FileResponse{}})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, models.FilesResponse{Files: []models.FileResponse{}})
		}
		return
	}

	response := models.FilesResponse{Files: make([]models.FileResponse, len(files))}
	for i, f := range files {
		response.Files[i] = models.FileResponse{Name: f.Name, Modified: f.Modified}
	}
	c.JSON(http.StatusOK, response)
}

// Download streams one CSV export.
func (h *ConverterHandler) Download(c *gin.Context) {
	filename := c.Query("filename")
	sessionID := c.Query("uuid")
	if filename == "" || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Filename and UUID are required"})
		return
	}

	f, err := h.store.Open(sessionID, filename)
	if err != nil {
		h.respondStoreError(c, err, "Internal server error")
		return
	}
	defer f.Close()

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodeFilename(filename))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		h.log.Warn("[Converter] download interrupted", "file", filename, "error", err)
	}
}

func (h *ConverterHandler) respondStoreError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, converter.ErrInvalidSessionID), errors.Is(err, converter.ErrInvalidFilename):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, converter.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": converter.ErrUnsupportedType.Error()})
	case errors.Is(err, converter.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, converter.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// encodeFilename percent-encodes name for an RFC 5987 header value.
func encodeFilename(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
