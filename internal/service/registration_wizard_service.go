package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type draftStore interface {
	Save(ctx context.Context, draft *models.RegistrationDraft, ttl time.Duration) error
	Load(ctx context.Context, id string) (*models.RegistrationDraft, error)
	Delete(ctx context.Context, draft *models.RegistrationDraft) error
	SaveFile(ctx context.Context, id string, kind models.DocumentKind, data []byte, ttl time.Duration) error
	LoadFile(ctx context.Context, id string, kind models.DocumentKind) ([]byte, error)
	DeleteFile(ctx context.Context, id string, kind models.DocumentKind) error
	AcquireSubmitLock(ctx context.Context, id string, ttl time.Duration) (bool, error)
	ReleaseSubmitLock(ctx context.Context, id string) error
}

type registrationSubmitter interface {
	Submit(ctx context.Context, draft *models.RegistrationDraft) (*SubmissionResult, error)
}

// WizardConfig tunes draft lifetime and attachment limits.
type WizardConfig struct {
	DraftTTL      time.Duration
	SubmitLockTTL time.Duration
	Upload        UploadPolicy
}

// RegistrationWizardService drives the registration step machine over drafts
// kept in the draft store.
type RegistrationWizardService struct {
	drafts    draftStore
	submitter registrationSubmitter
	uploads   uploadChecker
	logger    *zap.Logger
	cfg       WizardConfig
	now       func() time.Time
}

// NewRegistrationWizardService constructs the wizard.
func NewRegistrationWizardService(drafts draftStore, submitter registrationSubmitter, logger *zap.Logger, cfg WizardConfig) *RegistrationWizardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 24 * time.Hour
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 2 * time.Minute
	}
	return &RegistrationWizardService{
		drafts:    drafts,
		submitter: submitter,
		uploads:   newUploadChecker(cfg.Upload),
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start opens an empty draft on the role step.
func (s *RegistrationWizardService) Start(ctx context.Context) (*dto.WizardState, error) {
	now := s.now()
	draft := &models.RegistrationDraft{
		ID:          uuid.NewString(),
		Attachments: map[models.DocumentKind]models.Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// Get returns the current state of a draft.
func (s *RegistrationWizardService) Get(ctx context.Context, id string) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// SelectRole fixes the role while on the first step. Fields and documents
// that do not apply to the new role are dropped.
func (s *RegistrationWizardService) SelectRole(ctx context.Context, id, rawRole string) (*dto.WizardState, error) {
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return nil, appErrors.Field("role", "please select a valid role")
	}
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Step != 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "role can only be changed on the first step")
	}
	if draft.Role != role {
		draft.Role = role
		s.pruneForRole(ctx, draft)
	}
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// UpdateFields merges a patch into the draft form.
func (s *RegistrationWizardService) UpdateFields(ctx context.Context, id string, patch models.DraftPatch) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	shape := draft.Role.Shape()
	if field := patch.TouchesLearnerFields(); field != "" && !shape.HasLearnerFields() {
		return nil, appErrors.Field(field, "only learners provide this field")
	}
	if field := patch.TouchesProfessionalFields(); field != "" && !shape.HasProfessionalFields() {
		return nil, appErrors.Field(field, "only teaching staff provide this field")
	}
	patch.Apply(&draft.Fields)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// Attach stages a document on the draft.
func (s *RegistrationWizardService) Attach(ctx context.Context, id string, kind models.DocumentKind, upload FileUpload) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Role == "" {
		return nil, appErrors.Field("role", "please select a role first")
	}
	if !draft.Role.Shape().AcceptsDocument(kind) {
		return nil, appErrors.Field(string(kind), fmt.Sprintf("a %s is not required for %s", kind.Label(), draft.Role.Label()))
	}
	data, mimeType, err := s.uploads.read(string(kind), upload)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.SaveFile(ctx, draft.ID, kind, data, s.cfg.DraftTTL); err != nil {
		return nil, appErrors.Remote(err, "failed to store file")
	}
	draft.Attachments[kind] = models.Attachment{
		Kind:        kind,
		FileName:    upload.FileName,
		ContentType: mimeType,
		Size:        int64(len(data)),
		AttachedAt:  s.now(),
	}
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// Detach removes a staged document.
func (s *RegistrationWizardService) Detach(ctx context.Context, id string, kind models.DocumentKind) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := draft.Attachments[kind]; !ok {
		return dto.NewWizardState(draft), nil
	}
	if err := s.drafts.DeleteFile(ctx, draft.ID, kind); err != nil {
		return nil, appErrors.Remote(err, "failed to remove file")
	}
	delete(draft.Attachments, kind)
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// Advance runs the guard of the current step and moves one step forward.
// The last step before completion is left through Submit.
func (s *RegistrationWizardService) Advance(ctx context.Context, id string) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := draft.Role.Steps()
	current := steps[draft.Step]
	if current == models.StepComplete {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration is already complete")
	}
	if draft.Step == len(steps)-2 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "this is the last step: submit the registration to finish")
	}
	if fieldErr := CheckStep(current, draft); fieldErr != nil {
		return nil, fieldErr
	}
	draft.Step++
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// Back moves one step backwards.
func (s *RegistrationWizardService) Back(ctx context.Context, id string) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := draft.Role.Steps()
	if draft.Step == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "already on the first step")
	}
	if steps[draft.Step] == models.StepComplete {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration is already complete")
	}
	draft.Step--
	if err := s.save(ctx, draft); err != nil {
		return nil, err
	}
	return dto.NewWizardState(draft), nil
}

// Submit finishes the wizard from its last step. On success the draft is
// deleted and the terminal state is returned; on failure the draft is kept.
func (s *RegistrationWizardService) Submit(ctx context.Context, id string) (*dto.WizardState, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := draft.Role.Steps()
	if draft.Role == "" || draft.Step != len(steps)-2 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration can only be submitted from the last step")
	}
	if fieldErr := CheckStep(steps[draft.Step], draft); fieldErr != nil {
		return nil, fieldErr
	}

	locked, err := s.drafts.AcquireSubmitLock(ctx, draft.ID, s.cfg.SubmitLockTTL)
	if err != nil {
		return nil, appErrors.Remote(err, "failed to start submission")
	}
	if !locked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this registration is already being submitted")
	}
	defer func() {
		if err := s.drafts.ReleaseSubmitLock(context.WithoutCancel(ctx), draft.ID); err != nil {
			s.logger.Warn("failed to release submit lock", zap.String("draft_id", draft.ID), zap.Error(err))
		}
	}()

	result, err := s.submitter.Submit(ctx, draft)
	if err != nil {
		return nil, err
	}

	if err := s.drafts.Delete(ctx, draft); err != nil {
		s.logger.Warn("failed to delete submitted draft", zap.String("draft_id", draft.ID), zap.Error(err))
	}
	draft.Step = len(steps) - 1
	state := dto.NewWizardState(draft)
	state.Message = result.Message
	state.RegistrationID = result.Registration.ID
	state.Status = string(result.Registration.Status)
	return state, nil
}

func (s *RegistrationWizardService) pruneForRole(ctx context.Context, draft *models.RegistrationDraft) {
	shape := draft.Role.Shape()
	if !shape.HasLearnerFields() {
		draft.Fields.ClearLearnerFields()
	}
	if !shape.HasProfessionalFields() {
		draft.Fields.ClearProfessionalFields()
	}
	for kind := range draft.Attachments {
		if shape.AcceptsDocument(kind) {
			continue
		}
		delete(draft.Attachments, kind)
		if err := s.drafts.DeleteFile(ctx, draft.ID, kind); err != nil {
			s.logger.Warn("failed to drop document after role change", zap.String("draft_id", draft.ID), zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

func (s *RegistrationWizardService) load(ctx context.Context, id string) (*models.RegistrationDraft, error) {
	draft, err := s.drafts.Load(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration draft not found or expired")
		}
		return nil, appErrors.Remote(err, "failed to load registration draft")
	}
	if draft.Attachments == nil {
		draft.Attachments = map[models.DocumentKind]models.Attachment{}
	}
	steps := draft.Role.Steps()
	if draft.Role == "" || draft.Step < 0 {
		draft.Step = 0
	}
	if draft.Step > len(steps)-2 {
		draft.Step = len(steps) - 2
	}
	return draft, nil
}

func (s *RegistrationWizardService) save(ctx context.Context, draft *models.RegistrationDraft) error {
	draft.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, draft, s.cfg.DraftTTL); err != nil {
		return appErrors.Remote(err, "failed to save registration draft")
	}
	return nil
}
