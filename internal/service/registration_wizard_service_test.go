package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

const pdfBody = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"

type wizardHarness struct {
	wizard        *RegistrationWizardService
	drafts        *fakeDraftStore
	accounts      *fakeAccounts
	registrations *fakeRegistrations
	blobs         *fakeBlobs
	notifier      *fakeNotifier
	audit         *fakeAudit
	metrics       *fakeMetrics
}

func newWizardHarness() *wizardHarness {
	h := &wizardHarness{
		drafts:        newFakeDraftStore(),
		accounts:      newFakeAccounts(),
		registrations: newFakeRegistrations(),
		blobs:         newFakeBlobs(),
		notifier:      &fakeNotifier{},
		audit:         &fakeAudit{},
		metrics:       &fakeMetrics{},
	}
	submitter := NewRegistrationSubmitService(h.drafts, h.blobs, fakeSigner{}, h.accounts, h.registrations, h.notifier, h.audit, h.metrics, zap.NewNop())
	h.wizard = NewRegistrationWizardService(h.drafts, submitter, zap.NewNop(), WizardConfig{})
	return h
}

func pdfUpload(name string) FileUpload {
	return FileUpload{FileName: name, ContentType: "application/pdf", Size: int64(len(pdfBody)), Content: strings.NewReader(pdfBody)}
}

func personalPatch(grade string, electives ...string) models.DraftPatch {
	return models.DraftPatch{
		FirstName:       sp("Thandi"),
		Surname:         sp("Mokoena"),
		IDNumber:        sp("8001015009087"),
		Password:        sp("Passw0rd!"),
		ConfirmPassword: sp("Passw0rd!"),
		Grade:           sp(grade),
		ClassName:       sp("10A"),
		Electives:       &electives,
	}
}

func contactPatch(email string) models.DraftPatch {
	return models.DraftPatch{
		Email:          sp(email),
		Phone:          sp("0821234567"),
		Address:        sp("12 Main Road, Soweto"),
		NextOfKinName:  sp("Sipho Mokoena"),
		NextOfKinPhone: sp("+27821234567"),
	}
}

// fillLearner walks a learner draft up to the payment step.
func (h *wizardHarness) fillLearner(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	id := state.DraftID

	_, err = h.wizard.SelectRole(ctx, id, "learner")
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)

	_, err = h.wizard.UpdateFields(ctx, id, personalPatch("Grade 10", "Physics", "Life Sciences", "Geography", "Accounting"))
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)

	_, err = h.wizard.UpdateFields(ctx, id, contactPatch(email))
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)

	_, err = h.wizard.UpdateFields(ctx, id, models.DraftPatch{ParentName: sp("Lerato Mokoena"), ParentPhone: sp("0831234567")})
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)

	for _, kind := range []models.DocumentKind{models.DocumentIDDocument, models.DocumentProofOfAddress, models.DocumentPriorReport, models.DocumentProofOfPayment} {
		_, err = h.wizard.Attach(ctx, id, kind, pdfUpload(string(kind)+".pdf"))
		require.NoError(t, err)
	}
	state, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StepPayment, state.StepName)
	return id
}

func TestWizardLearnerHappyPath(t *testing.T) {
	h := newWizardHarness()
	id := h.fillLearner(t, "thandi@gmail.com")

	state, err := h.wizard.Submit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, state.Complete)
	assert.Equal(t, models.StepComplete, state.StepName)
	assert.Equal(t, string(models.RegistrationPending), state.Status)
	assert.Equal(t, "Your application has been submitted and will be reviewed within 48 hours.", state.Message)

	require.Len(t, h.registrations.byAccount, 1)
	for _, reg := range h.registrations.byAccount {
		assert.Equal(t, models.RegistrationPending, reg.Status)
		assert.Len(t, reg.Electives, 4)
		assert.Equal(t, "https://files.test/registration-documents/"+id+"/id_document.pdf", reg.DocumentURL(models.DocumentIDDocument))
		assert.NotEmpty(t, reg.DocumentURL(models.DocumentProofOfPayment))
	}
	assert.Len(t, h.blobs.objects, 4)
	assert.Equal(t, []NotificationFunction{NotifyRegistrationConfirmation}, h.notifier.calls)
	assert.Equal(t, []string{SubmissionCreated}, h.metrics.submissions)
	require.Len(t, h.audit.logs, 1)
	assert.Equal(t, models.AuditActionRegistrationSubmit, h.audit.logs[0].Action)

	_, err = h.wizard.Get(context.Background(), id)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Empty(t, h.drafts.locks)
}

func TestWizardDuplicateEmailResubmits(t *testing.T) {
	h := newWizardHarness()
	h.accounts.accounts["thandi@gmail.com"] = fakeAccount{id: "acc-1", password: "Passw0rd!"}
	h.registrations.byAccount["acc-1"] = &models.Registration{ID: "reg-1", AccountID: "acc-1", Role: models.RoleLearner, Status: models.RegistrationDeclined, FirstName: "Old"}
	id := h.fillLearner(t, "thandi@gmail.com")

	state, err := h.wizard.Submit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, state.Complete)
	assert.Equal(t, "reg-1", state.RegistrationID)

	reg := h.registrations.byAccount["acc-1"]
	assert.Equal(t, models.RegistrationPending, reg.Status)
	assert.Equal(t, "Thandi", reg.FirstName)
	assert.Equal(t, []string{"acc-1"}, h.accounts.signedOut)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, []string{SubmissionResubmitted}, h.metrics.submissions)
}

func TestWizardResubmitUpdatesAccountProfile(t *testing.T) {
	h := newWizardHarness()
	h.accounts.accounts["thandi@gmail.com"] = fakeAccount{id: "acc-1", password: "Passw0rd!"}
	h.registrations.byAccount["acc-1"] = &models.Registration{ID: "reg-1", AccountID: "acc-1", Role: models.RoleTeacher, Status: models.RegistrationDeclined, FirstName: "Old"}
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AccountProfile{FullName: "Thandi Mokoena", Role: models.RoleLearner}, h.accounts.profiles["acc-1"])
	assert.Equal(t, models.RoleLearner, h.registrations.byAccount["acc-1"].Role)
}

func TestWizardResubmitProfileFailureStillSignsOut(t *testing.T) {
	h := newWizardHarness()
	h.accounts.accounts["thandi@gmail.com"] = fakeAccount{id: "acc-1", password: "Passw0rd!"}
	h.accounts.profileErr = appErrors.Remote(errors.New("db down"), "failed to update account")
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	assert.Equal(t, appErrors.ErrRemote.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"acc-1"}, h.accounts.signedOut)
	assert.Empty(t, h.blobs.objects)
	assert.Empty(t, h.registrations.byAccount)
	assert.Equal(t, []string{SubmissionFailed}, h.metrics.submissions)
}

func TestWizardResubmitPersistFailureRestoresProfile(t *testing.T) {
	h := newWizardHarness()
	h.accounts.accounts["thandi@gmail.com"] = fakeAccount{id: "acc-1", password: "Passw0rd!"}
	h.registrations.byAccount["acc-1"] = &models.Registration{ID: "reg-1", AccountID: "acc-1", Role: models.RoleTeacher, Status: models.RegistrationDeclined, FirstName: "Old", Surname: "Name"}
	h.registrations.upsertErr = errors.New("connection reset")
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, models.AccountProfile{FullName: "Old Name", Role: models.RoleTeacher}, h.accounts.profiles["acc-1"])
	assert.Equal(t, models.RoleTeacher, h.registrations.byAccount["acc-1"].Role)
}

func TestWizardDuplicateEmailWrongPassword(t *testing.T) {
	h := newWizardHarness()
	h.accounts.accounts["thandi@gmail.com"] = fakeAccount{id: "acc-1", password: "Different1!"}
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAccountExists.Code, appErr.Code)
	assert.Equal(t, "email already registered: use the correct password or sign in", appErr.Message)

	assert.Empty(t, h.blobs.objects)
	assert.Len(t, h.blobs.deleted, 4)
	assert.Empty(t, h.accounts.signedOut)
	assert.Equal(t, []string{SubmissionFailed}, h.metrics.submissions)

	state, err := h.wizard.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StepPayment, state.StepName)
}

func TestWizardResubmitOverApprovedRecordIsRefused(t *testing.T) {
	h := newWizardHarness()
	h.accounts.accounts["thandi@gmail.com"] = fakeAccount{id: "acc-1", password: "Passw0rd!"}
	h.registrations.byAccount["acc-1"] = &models.Registration{ID: "reg-1", AccountID: "acc-1", Role: models.RoleLearner, Status: models.RegistrationApproved}
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, models.RegistrationApproved, h.registrations.byAccount["acc-1"].Status)
	assert.Equal(t, []string{"acc-1"}, h.accounts.signedOut)
}

func TestWizardUploadFailureRemovesEarlierUploads(t *testing.T) {
	h := newWizardHarness()
	h.blobs.failOn = "proof_of_address"
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRemote.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Empty(t, h.blobs.objects)
	assert.Empty(t, h.accounts.accounts)
	assert.Empty(t, h.registrations.byAccount)
}

func TestWizardNotificationFailureStillCompletes(t *testing.T) {
	h := newWizardHarness()
	h.notifier.err = errors.New("mail queue full")
	id := h.fillLearner(t, "thandi@gmail.com")

	state, err := h.wizard.Submit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, state.Complete)
	assert.Equal(t, []NotificationFunction{NotifyRegistrationConfirmation}, h.notifier.calls)
	assert.Len(t, h.registrations.byAccount, 1)
	assert.Len(t, h.blobs.objects, 4)
	assert.Equal(t, []string{SubmissionCreated}, h.metrics.submissions)

	_, err = h.wizard.Get(context.Background(), id)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestWizardPersistFailureKeepsDraft(t *testing.T) {
	h := newWizardHarness()
	h.registrations.upsertErr = errors.New("connection reset")
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Submit(context.Background(), id)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRemote.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "connection reset")

	assert.Empty(t, h.blobs.objects)
	assert.Len(t, h.blobs.deleted, 4)
	assert.Empty(t, h.registrations.byAccount)
	assert.Empty(t, h.notifier.calls)
	assert.Empty(t, h.audit.logs)
	assert.Equal(t, []string{SubmissionFailed}, h.metrics.submissions)
	assert.Empty(t, h.drafts.locks)

	state, err := h.wizard.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StepPayment, state.StepName)
	assert.False(t, state.Complete)
	assert.Len(t, state.Attachments, 4)
}

func TestWizardMissingElectivesBlocksPersonalStep(t *testing.T) {
	h := newWizardHarness()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	id := state.DraftID
	_, err = h.wizard.SelectRole(ctx, id, "learner")
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)

	_, err = h.wizard.UpdateFields(ctx, id, personalPatch("Grade 11", "Physics", "Geography"))
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.Error(t, err)
	assert.Equal(t, "electives", appErrors.FromError(err).Field)

	state, err = h.wizard.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Step)
	assert.Equal(t, models.StepPersonal, state.StepName)
}

func TestWizardGradeNineNeedsNoElectives(t *testing.T) {
	h := newWizardHarness()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	id := state.DraftID
	_, err = h.wizard.SelectRole(ctx, id, "learner")
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)
	_, err = h.wizard.UpdateFields(ctx, id, personalPatch("Grade 9"))
	require.NoError(t, err)

	state, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepContact, state.StepName)
}

func TestWizardRoleSwitchClearsElectives(t *testing.T) {
	h := newWizardHarness()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	id := state.DraftID

	_, err = h.wizard.SelectRole(ctx, id, "learner")
	require.NoError(t, err)
	electives := []string{"Physics", "Life Sciences", "Geography", "Accounting"}
	state, err = h.wizard.UpdateFields(ctx, id, models.DraftPatch{Electives: &electives})
	require.NoError(t, err)
	require.Len(t, state.Fields.Electives, 4)

	_, err = h.wizard.SelectRole(ctx, id, "teacher")
	require.NoError(t, err)
	_, err = h.wizard.UpdateFields(ctx, id, models.DraftPatch{Electives: &electives})
	assert.Equal(t, "electives", appErrors.FromError(err).Field)

	state, err = h.wizard.SelectRole(ctx, id, "learner")
	require.NoError(t, err)
	assert.Empty(t, state.Fields.Electives)
}

func TestWizardRoleLockedAfterFirstStep(t *testing.T) {
	h := newWizardHarness()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	_, err = h.wizard.SelectRole(ctx, state.DraftID, "teacher")
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, state.DraftID)
	require.NoError(t, err)

	_, err = h.wizard.SelectRole(ctx, state.DraftID, "learner")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	state, err = h.wizard.Back(ctx, state.DraftID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Step)
	_, err = h.wizard.Back(ctx, state.DraftID)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestWizardAdminIsApprovedImmediately(t *testing.T) {
	h := newWizardHarness()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	id := state.DraftID

	_, err = h.wizard.SelectRole(ctx, id, "admin")
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)
	patch := personalPatch("")
	patch.Grade, patch.ClassName, patch.Electives = nil, nil, nil
	_, err = h.wizard.UpdateFields(ctx, id, patch)
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)
	_, err = h.wizard.UpdateFields(ctx, id, contactPatch("admin.office@gmail.com"))
	require.NoError(t, err)
	state, err = h.wizard.Advance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StepDocuments, state.StepName)

	_, err = h.wizard.Submit(ctx, id)
	assert.Equal(t, string(models.DocumentIDDocument), appErrors.FromError(err).Field)

	for _, kind := range []models.DocumentKind{models.DocumentIDDocument, models.DocumentProofOfAddress, models.DocumentQualification} {
		_, err = h.wizard.Attach(ctx, id, kind, pdfUpload(string(kind)+".pdf"))
		require.NoError(t, err)
	}
	state, err = h.wizard.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(models.RegistrationApproved), state.Status)
	assert.Equal(t, "Your admin account is active. You can sign in now.", state.Message)
}

func TestWizardAttachRejectsForeignDocument(t *testing.T) {
	h := newWizardHarness()
	ctx := context.Background()
	state, err := h.wizard.Start(ctx)
	require.NoError(t, err)
	_, err = h.wizard.SelectRole(ctx, state.DraftID, "finance")
	require.NoError(t, err)

	_, err = h.wizard.Attach(ctx, state.DraftID, models.DocumentProofOfPayment, pdfUpload("pop.pdf"))
	assert.Equal(t, string(models.DocumentProofOfPayment), appErrors.FromError(err).Field)

	_, err = h.wizard.Attach(ctx, state.DraftID, models.DocumentIDDocument, FileUpload{FileName: "id.txt", Size: 5, Content: strings.NewReader("hello")})
	assert.Contains(t, err.Error(), "not allowed")
}

func TestWizardConcurrentSubmitIsRefused(t *testing.T) {
	h := newWizardHarness()
	id := h.fillLearner(t, "thandi@gmail.com")
	h.drafts.locks[id] = true

	_, err := h.wizard.Submit(context.Background(), id)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, h.registrations.byAccount)
}

func TestWizardLastStepRequiresSubmit(t *testing.T) {
	h := newWizardHarness()
	id := h.fillLearner(t, "thandi@gmail.com")

	_, err := h.wizard.Advance(context.Background(), id)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestWizardUnknownDraft(t *testing.T) {
	h := newWizardHarness()
	_, err := h.wizard.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
