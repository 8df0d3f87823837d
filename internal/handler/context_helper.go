package handler

import (
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func accessFromContext(c *gin.Context) (service.AccessState, bool) {
	return middleware.Access(c)
}

func invalidPayload(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}

// formFile opens the multipart file under field. The returned closer must be
// called once the upload has been consumed.
func formFile(c *gin.Context, field string) (service.FileUpload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Field(field, "file is required")
	}
	src, err := header.Open()
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return uploadOf(header, src), func() { _ = src.Close() }, nil
}

func uploadOf(header *multipart.FileHeader, src multipart.File) service.FileUpload {
	return service.FileUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     src,
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
