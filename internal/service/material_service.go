package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// MaterialsBucket holds uploaded learning material.
const MaterialsBucket = "materials"

type materialRepository interface {
	Create(ctx context.Context, material *models.Material) error
	List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error)
}

// UploadMaterialRequest is the metadata sent with a material file.
type UploadMaterialRequest struct {
	Title    string  `form:"title" validate:"required,max=200"`
	Category string  `form:"category" validate:"required,max=60"`
	Subject  *string `form:"subject"`
	Grade    *string `form:"grade"`
}

// MaterialService stores learning material files and their metadata rows.
type MaterialService struct {
	repo      materialRepository
	storage   blobStore
	signer    publicURLSigner
	uploads   uploadChecker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMaterialService constructs a MaterialService.
func NewMaterialService(repo materialRepository, storage blobStore, signer publicURLSigner, policy UploadPolicy, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		uploads:   newUploadChecker(policy),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the file and inserts its metadata row. The stored object is
// removed again when the row cannot be written.
func (s *MaterialService) Upload(ctx context.Context, uploaderID string, req UploadMaterialRequest, file FileUpload) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	data, mimeType, err := s.uploads.read("file", file)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	category := sanitize(req.Category)
	if category == "" {
		category = "general"
	}
	path := category + "/" + id + fileExtension(file.FileName, mimeType)
	if _, err := s.storage.Upload(MaterialsBucket, path, readerOf(data)); err != nil {
		return nil, appErrors.Remote(err, "failed to upload material")
	}

	material := &models.Material{
		ID:          id,
		Title:       strings.TrimSpace(req.Title),
		Category:    strings.TrimSpace(req.Category),
		Subject:     optionalPtr(req.Subject),
		Grade:       optionalPtr(req.Grade),
		Bucket:      MaterialsBucket,
		Path:        path,
		FileName:    file.FileName,
		ContentType: mimeType,
		SizeBytes:   int64(len(data)),
		UploadedBy:  uploaderID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, material); err != nil {
		if delErr := s.storage.Delete(MaterialsBucket, path); delErr != nil {
			s.logger.Warn("failed to remove orphaned material", zap.String("path", path), zap.Error(delErr))
		}
		return nil, appErrors.Remote(err, "failed to save material")
	}
	if material.URL, err = s.signer.PublicURL(MaterialsBucket, path); err != nil {
		return nil, appErrors.Remote(err, "failed to publish material")
	}
	return material, nil
}

// List returns materials with their public URLs.
func (s *MaterialService) List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Remote(err, "failed to list materials")
	}
	for i := range rows {
		url, err := s.signer.PublicURL(rows[i].Bucket, rows[i].Path)
		if err != nil {
			return nil, appErrors.Remote(err, "failed to publish material")
		}
		rows[i].URL = url
	}
	return rows, nil
}
