package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// RegistrationBucket is the storage bucket holding registration documents.
const RegistrationBucket = "registration-documents"

// Submission outcomes reported to metrics.
const (
	SubmissionCreated     = "created"
	SubmissionResubmitted = "resubmitted"
	SubmissionFailed      = "failed"
)

type submissionAccounts interface {
	CreateAccount(ctx context.Context, email, password string, profile models.AccountProfile) (*models.User, error)
	SignIn(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	SignOut(ctx context.Context, userID, refreshToken string) error
	UpdateProfile(ctx context.Context, userID string, profile models.AccountProfile) error
}

type registrationStore interface {
	Upsert(ctx context.Context, reg *models.Registration) error
	FindByAccountID(ctx context.Context, accountID string) (*models.Registration, error)
}

type blobStore interface {
	Upload(bucket, path string, r io.Reader) (string, error)
	Delete(bucket, path string) error
}

type publicURLSigner interface {
	PublicURL(bucket, path string) (string, error)
}

type draftFileLoader interface {
	LoadFile(ctx context.Context, id string, kind models.DocumentKind) ([]byte, error)
}

type submissionMetrics interface {
	RecordRegistrationSubmission(outcome string)
}

// SubmissionResult is the outcome of a successful submission.
type SubmissionResult struct {
	Registration *models.Registration
	Resubmitted  bool
	Message      string
}

// CompletionMessage is the confirmation shown once a registration is submitted.
func CompletionMessage(role models.Role) string {
	if role.SelfApproving() {
		return "Your admin account is active. You can sign in now."
	}
	return "Your application has been submitted and will be reviewed within 48 hours."
}

// RegistrationSubmitService turns a finished draft into stored documents, an
// account and a persisted registration.
type RegistrationSubmitService struct {
	files         draftFileLoader
	storage       blobStore
	signer        publicURLSigner
	accounts      submissionAccounts
	registrations registrationStore
	notifier      notifier
	audit         auditRecorder
	metrics       submissionMetrics
	logger        *zap.Logger
}

// NewRegistrationSubmitService constructs the submission saga.
func NewRegistrationSubmitService(files draftFileLoader, storage blobStore, signer publicURLSigner, accounts submissionAccounts, registrations registrationStore, notify notifier, audit auditRecorder, metrics submissionMetrics, logger *zap.Logger) *RegistrationSubmitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationSubmitService{
		files:         files,
		storage:       storage,
		signer:        signer,
		accounts:      accounts,
		registrations: registrations,
		notifier:      notify,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
	}
}

type uploadedDocument struct {
	kind models.DocumentKind
	path string
	url  string
}

// submission is the state threaded through the saga steps.
type submission struct {
	draft    *models.RegistrationDraft
	uploads  []uploadedDocument
	user     *models.User
	session  *models.Session
	existing *models.Registration
	record   *models.Registration
}

type sagaStep struct {
	name       string
	run        func(ctx context.Context, sub *submission) error
	compensate func(ctx context.Context, sub *submission)
}

// Submit runs verify-documents, upload-documents, create-account and
// persist-registration in order. A failing step compensates the steps before
// it in reverse order. A session opened for a resubmission is always closed.
func (s *RegistrationSubmitService) Submit(ctx context.Context, draft *models.RegistrationDraft) (*SubmissionResult, error) {
	sub := &submission{draft: draft}
	steps := []sagaStep{
		{name: "verify-documents", run: s.verifyDocuments},
		{name: "upload-documents", run: s.uploadDocuments, compensate: s.removeUploads},
		{name: "create-account", run: s.createAccount},
		{name: "persist-registration", run: s.persistRegistration},
	}

	err := s.runSaga(ctx, sub, steps)
	if sub.session != nil {
		if signOutErr := s.accounts.SignOut(context.WithoutCancel(ctx), sub.session.User.ID, sub.session.RefreshToken); signOutErr != nil {
			s.logger.Warn("failed to sign out after resubmission", zap.String("account_id", sub.session.User.ID), zap.Error(signOutErr))
		}
	}
	if err != nil {
		s.observe(SubmissionFailed)
		return nil, err
	}

	resubmitted := sub.session != nil
	if resubmitted {
		s.observe(SubmissionResubmitted)
	} else {
		s.observe(SubmissionCreated)
		s.notifyCreated(ctx, sub.record)
	}
	s.recordAudit(ctx, sub.record, resubmitted)

	return &SubmissionResult{
		Registration: sub.record,
		Resubmitted:  resubmitted,
		Message:      CompletionMessage(sub.record.Role),
	}, nil
}

func (s *RegistrationSubmitService) runSaga(ctx context.Context, sub *submission, steps []sagaStep) error {
	for i, step := range steps {
		if err := step.run(ctx, sub); err != nil {
			s.logger.Warn("registration submission step failed",
				zap.String("draft_id", sub.draft.ID),
				zap.String("step", step.name),
				zap.Error(err),
			)
			for j := i; j >= 0; j-- {
				if steps[j].compensate != nil {
					steps[j].compensate(context.WithoutCancel(ctx), sub)
				}
			}
			return err
		}
	}
	return nil
}

func (s *RegistrationSubmitService) verifyDocuments(_ context.Context, sub *submission) error {
	if fieldErr := CheckDocuments(sub.draft); fieldErr != nil {
		return fieldErr
	}
	return nil
}

func (s *RegistrationSubmitService) uploadDocuments(ctx context.Context, sub *submission) error {
	kinds := make([]models.DocumentKind, 0, len(sub.draft.Attachments))
	for kind := range sub.draft.Attachments {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		attachment := sub.draft.Attachments[kind]
		data, err := s.files.LoadFile(ctx, sub.draft.ID, kind)
		if err != nil {
			if errors.Is(err, appErrors.ErrCacheMiss) {
				return appErrors.Field(string(kind), fmt.Sprintf("your %s upload expired, please upload it again", kind.Label()))
			}
			return appErrors.Remote(err, fmt.Sprintf("failed to read %s", kind.Label()))
		}
		path := sub.draft.ID + "/" + string(kind) + fileExtension(attachment.FileName, attachment.ContentType)
		if _, err := s.storage.Upload(RegistrationBucket, path, readerOf(data)); err != nil {
			return appErrors.Remote(err, fmt.Sprintf("failed to upload %s", kind.Label()))
		}
		doc := uploadedDocument{kind: kind, path: path}
		sub.uploads = append(sub.uploads, doc)
		url, err := s.signer.PublicURL(RegistrationBucket, path)
		if err != nil {
			return appErrors.Remote(err, fmt.Sprintf("failed to publish %s", kind.Label()))
		}
		sub.uploads[len(sub.uploads)-1].url = url
	}
	return nil
}

func (s *RegistrationSubmitService) removeUploads(_ context.Context, sub *submission) {
	for _, doc := range sub.uploads {
		if err := s.storage.Delete(RegistrationBucket, doc.path); err != nil {
			s.logger.Warn("failed to remove uploaded document", zap.String("path", doc.path), zap.Error(err))
		}
	}
	sub.uploads = nil
}

func (s *RegistrationSubmitService) createAccount(ctx context.Context, sub *submission) error {
	f := sub.draft.Fields
	email := strings.ToLower(strings.TrimSpace(f.Email))
	profile := models.AccountProfile{FullName: strings.TrimSpace(f.FirstName + " " + f.Surname), Role: sub.draft.Role}

	user, err := s.accounts.CreateAccount(ctx, email, f.Password, profile)
	if err == nil {
		sub.user = user
		return nil
	}
	if !errors.Is(err, appErrors.ErrAccountExists) {
		return err
	}

	session, err := s.accounts.SignIn(ctx, models.LoginRequest{Email: email, Password: f.Password})
	if err != nil {
		return appErrors.Clone(appErrors.ErrAccountExists, "email already registered: use the correct password or sign in")
	}
	sub.session = session
	return nil
}

func (s *RegistrationSubmitService) persistRegistration(ctx context.Context, sub *submission) error {
	accountID := ""
	if sub.user != nil {
		accountID = sub.user.ID
	} else {
		accountID = sub.session.User.ID
	}
	record := registrationFromDraft(sub.draft, accountID, sub.uploads)

	if sub.session != nil {
		existing, err := s.registrations.FindByAccountID(ctx, accountID)
		switch {
		case err == nil:
			if existing.Status == models.RegistrationApproved {
				return appErrors.Clone(appErrors.ErrConflict, "this account is already approved: sign in instead")
			}
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			sub.existing = existing
		case errors.Is(err, sql.ErrNoRows):
		default:
			return appErrors.Remote(err, "failed to load existing registration")
		}
	}

	if sub.session != nil {
		profile := models.AccountProfile{FullName: record.FullName(), Role: record.Role}
		if err := s.accounts.UpdateProfile(ctx, accountID, profile); err != nil {
			return err
		}
	}

	if err := s.registrations.Upsert(ctx, record); err != nil {
		if sub.existing != nil {
			s.restoreProfile(context.WithoutCancel(ctx), sub.existing)
		}
		return appErrors.Remote(err, "failed to save registration")
	}
	sub.record = record
	return nil
}

func (s *RegistrationSubmitService) restoreProfile(ctx context.Context, reg *models.Registration) {
	profile := models.AccountProfile{FullName: reg.FullName(), Role: reg.Role}
	if err := s.accounts.UpdateProfile(ctx, reg.AccountID, profile); err != nil {
		s.logger.Warn("failed to restore account profile", zap.String("account_id", reg.AccountID), zap.Error(err))
	}
}

func (s *RegistrationSubmitService) notifyCreated(ctx context.Context, reg *models.Registration) {
	if s.notifier == nil {
		return
	}
	payload := RegistrationConfirmationPayload{Email: reg.Email, FullName: reg.FullName(), Role: reg.Role, Status: reg.Status}
	if err := s.notifier.Invoke(ctx, NotifyRegistrationConfirmation, payload); err != nil {
		s.logger.Warn("failed to send registration confirmation", zap.String("registration_id", reg.ID), zap.Error(err))
	}
}

func (s *RegistrationSubmitService) recordAudit(ctx context.Context, reg *models.Registration, resubmitted bool) {
	if s.audit == nil {
		return
	}
	values := fmt.Sprintf(`{"status":%q,"role":%q,"resubmitted":%t}`, reg.Status, reg.Role, resubmitted)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reg.AccountID,
		Action:     models.AuditActionRegistrationSubmit,
		Resource:   "registration",
		ResourceID: &reg.ID,
		NewValues:  []byte(values),
	}); err != nil {
		s.logger.Warn("failed to record submission audit log", zap.Error(err))
	}
}

func (s *RegistrationSubmitService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRegistrationSubmission(outcome)
	}
}

func registrationFromDraft(draft *models.RegistrationDraft, accountID string, uploads []uploadedDocument) *models.Registration {
	f := draft.Fields
	shape := draft.Role.Shape()
	reg := &models.Registration{
		AccountID:      accountID,
		Role:           draft.Role,
		Status:         models.InitialStatus(draft.Role),
		FirstName:      strings.TrimSpace(f.FirstName),
		Surname:        strings.TrimSpace(f.Surname),
		IDNumber:       strings.TrimSpace(f.IDNumber),
		DateOfBirth:    optional(f.DateOfBirth),
		Email:          strings.ToLower(strings.TrimSpace(f.Email)),
		Phone:          strings.TrimSpace(f.Phone),
		Address:        strings.TrimSpace(f.Address),
		NextOfKinName:  strings.TrimSpace(f.NextOfKinName),
		NextOfKinPhone: strings.TrimSpace(f.NextOfKinPhone),
		Disability:     optional(f.Disability),
	}
	if shape.HasLearnerFields() {
		reg.Grade = optional(f.Grade)
		reg.ClassName = optional(f.ClassName)
		reg.Electives = nonBlank(f.Electives)
		reg.ParentName = optional(f.ParentName)
		reg.ParentPhone = optional(f.ParentPhone)
		reg.ParentEmail = optional(f.ParentEmail)
	}
	if shape.HasProfessionalFields() {
		reg.Department = optional(f.Department)
		reg.GradeTaught = optional(f.GradeTaught)
		reg.Subjects = nonBlank(f.Subjects)
	}
	for _, doc := range uploads {
		reg.SetDocumentURL(doc.kind, doc.url)
	}
	return reg
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
