package service

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// FileUpload carries an uploaded file and the metadata the client sent with it.
type FileUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadPolicy bounds file size and content types.
type UploadPolicy struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

type uploadChecker struct {
	maxSize int64
	mimeSet map[string]struct{}
}

func newUploadChecker(policy UploadPolicy) uploadChecker {
	if policy.MaxFileSize <= 0 {
		policy.MaxFileSize = 5 * 1024 * 1024
	}
	if len(policy.AllowedMIMEs) == 0 {
		policy.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	set := make(map[string]struct{}, len(policy.AllowedMIMEs))
	for _, mt := range policy.AllowedMIMEs {
		set[strings.ToLower(mt)] = struct{}{}
	}
	return uploadChecker{maxSize: policy.MaxFileSize, mimeSet: set}
}

// read loads the file, enforcing the size limit on the bytes actually read,
// and sniffs its content type.
func (c uploadChecker) read(field string, upload FileUpload) ([]byte, string, error) {
	if upload.Content == nil {
		return nil, "", appErrors.Field(field, "file is required")
	}
	if upload.Size > c.maxSize {
		return nil, "", appErrors.Field(field, fmt.Sprintf("file exceeds %d bytes limit", c.maxSize))
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, c.maxSize+1))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	if len(data) == 0 {
		return nil, "", appErrors.Field(field, "file is empty")
	}
	if int64(len(data)) > c.maxSize {
		return nil, "", appErrors.Field(field, fmt.Sprintf("file exceeds %d bytes limit", c.maxSize))
	}
	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if _, ok := c.mimeSet[strings.ToLower(mimeType)]; !ok {
		return nil, "", appErrors.Field(field, fmt.Sprintf("file type %s is not allowed", mimeType))
	}
	return data, mimeType, nil
}

func fileExtension(name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != "" && len(ext) <= 6 {
		return ext
	}
	switch strings.ToLower(mimeType) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func readerOf(data []byte) io.Reader {
	return bytes.NewReader(data)
}
