package handler

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type tokenParser interface {
	Parse(token string) (bucket, path string, expiresAt time.Time, err error)
}

type objectOpener interface {
	Open(bucket, path string) (*os.File, error)
}

// FileHandler streams stored objects behind signed public URLs.
type FileHandler struct {
	signer  tokenParser
	objects objectOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(signer tokenParser, objects objectOpener) *FileHandler {
	return &FileHandler{signer: signer, objects: objects}
}

// Download godoc
// @Summary Download a stored file
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	bucket, path, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired link"))
		return
	}
	file, err := h.objects.Open(bucket, path)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(path)
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		c.Header("Content-Type", ct)
	}
	c.Header("Content-Disposition", "inline; filename=\""+name+"\"")
	http.ServeContent(c.Writer, c.Request, name, time.Time{}, file)
}
