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
	"github.com/noah-isme/school-portal-api/pkg/validation"
)

func TestAnnouncementCreateNormalisesAudience(t *testing.T) {
	repo := &fakeAnnouncements{}
	svc := NewAnnouncementService(repo, validation.New(), zap.NewNop())
	actor := AccessState{AccountID: "p1", Role: models.RolePrincipal}

	ann, err := svc.Create(context.Background(), actor, CreateAnnouncementRequest{Title: "Exams", Body: "Exams start Monday", Audience: []string{"Learner", "learner", "teacher"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"learner", "teacher"}, []string(ann.Audience))
	assert.Equal(t, models.RolePrincipal, ann.AuthorRole)

	_, err = svc.Create(context.Background(), actor, CreateAnnouncementRequest{Title: "x", Body: "y", Audience: []string{"parents"}})
	assert.Equal(t, "audience", appErrors.FromError(err).Field)

	_, err = svc.Create(context.Background(), actor, CreateAnnouncementRequest{Body: "y"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	items, err := svc.List(context.Background(), models.RoleFinance, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 20, repo.filters[0].Limit)
}

func TestComplaintLifecycle(t *testing.T) {
	repo := &fakeComplaints{}
	svc := NewComplaintService(repo, validation.New(), zap.NewNop())
	ctx := context.Background()

	complaint, err := svc.File(ctx, "l1", FileComplaintRequest{Subject: "Bullying", Body: "In the bus"})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintOpen, complaint.Status)

	_, err = svc.List(ctx, AccessState{AccountID: "l1", Role: models.RoleLearner}, "")
	require.NoError(t, err)
	assert.Equal(t, "l1", repo.filters[0].LearnerID)

	_, err = svc.List(ctx, AccessState{AccountID: "f1", Role: models.RoleFinance}, "")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	answered, err := svc.Respond(ctx, complaint.ID, "llc-1", RespondComplaintRequest{Response: "We are on it"})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintResponded, answered.Status)
	assert.Equal(t, "We are on it", repo.responded[complaint.ID])

	_, err = svc.Respond(ctx, "missing", "llc-1", RespondComplaintRequest{Response: "x"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMaterialUploadAndList(t *testing.T) {
	repo := &fakeMaterials{}
	blobs := newFakeBlobs()
	svc := NewMaterialService(repo, blobs, fakeSigner{}, UploadPolicy{}, validation.New(), zap.NewNop())

	material, err := svc.Upload(context.Background(), "t1", UploadMaterialRequest{Title: "Algebra notes", Category: "Past Papers", Subject: sp("Maths")}, pdfUpload("algebra.pdf"))
	require.NoError(t, err)
	assert.Equal(t, MaterialsBucket, material.Bucket)
	assert.True(t, strings.HasPrefix(material.Path, "past_papers/"))
	assert.True(t, strings.HasSuffix(material.Path, ".pdf"))
	assert.Equal(t, "application/pdf", material.ContentType)
	assert.Equal(t, "https://files.test/materials/"+material.Path, material.URL)
	assert.Len(t, blobs.objects, 1)

	rows, err := svc.List(context.Background(), models.MaterialFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, material.URL, rows[0].URL)
}

func TestMaterialUploadRemovesFileWhenRowFails(t *testing.T) {
	repo := &fakeMaterials{createErr: errors.New("insert failed")}
	blobs := newFakeBlobs()
	svc := NewMaterialService(repo, blobs, fakeSigner{}, UploadPolicy{}, validation.New(), zap.NewNop())

	_, err := svc.Upload(context.Background(), "t1", UploadMaterialRequest{Title: "Notes", Category: "notes"}, pdfUpload("notes.pdf"))
	assert.Equal(t, appErrors.ErrRemote.Code, appErrors.FromError(err).Code)
	assert.Empty(t, blobs.objects)
	assert.Len(t, blobs.deleted, 1)
}

type fakeMarkWriter struct {
	marks []*models.Mark
}

func (f *fakeMarkWriter) Create(_ context.Context, m *models.Mark) error {
	f.marks = append(f.marks, m)
	return nil
}

func TestMarkRecord(t *testing.T) {
	repo := &fakeMarkWriter{}
	svc := NewMarkService(repo, validation.New(), zap.NewNop())
	actor := AccessState{AccountID: "t1", Role: models.RoleTeacher, Registration: &models.Registration{Subjects: []string{"Maths"}}}
	req := RecordMarkRequest{LearnerID: "l1", LearnerName: "Ayanda", Subject: "maths", Grade: "Grade 10", Assessment: "Test 1", Score: 40, Total: 50}

	mark, err := svc.Record(context.Background(), actor, req)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, mark.Percentage(), 1e-9)
	assert.Equal(t, "t1", mark.RecordedBy)

	req.Score = 60
	_, err = svc.Record(context.Background(), actor, req)
	assert.Equal(t, "score", appErrors.FromError(err).Field)

	req.Score, req.Subject = 10, "History"
	_, err = svc.Record(context.Background(), actor, req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Len(t, repo.marks, 1)
}

func TestMarkRecordRequiresRegisteredSubjects(t *testing.T) {
	repo := &fakeMarkWriter{}
	svc := NewMarkService(repo, validation.New(), zap.NewNop())
	req := RecordMarkRequest{LearnerID: "l1", LearnerName: "Ayanda", Subject: "History", Grade: "Grade 10", Assessment: "Essay", Score: 30, Total: 50}

	actors := map[string]AccessState{
		"no subjects":     {AccountID: "t1", Role: models.RoleTeacher, Registration: &models.Registration{}},
		"blank subjects":  {AccountID: "t2", Role: models.RoleTeacher, Registration: &models.Registration{Subjects: []string{" "}}},
		"no registration": {AccountID: "t3", Role: models.RoleHOD},
	}
	for name, actor := range actors {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), actor, req)
			assert.ErrorIs(t, err, appErrors.ErrForbidden)
		})
	}
	assert.Empty(t, repo.marks)
}

func TestBalanceSet(t *testing.T) {
	repo := &fakeBalances{}
	svc := NewBalanceService(repo, validation.New(), zap.NewNop())
	amount := 1500.0

	balance, err := svc.Set(context.Background(), "l1", "fin-1", SetBalanceRequest{LearnerName: "Ayanda", Amount: &amount})
	require.NoError(t, err)
	assert.True(t, balance.InArrears())
	require.Len(t, repo.upserts, 1)

	_, err = svc.Set(context.Background(), "l1", "fin-1", SetBalanceRequest{LearnerName: "Ayanda"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestBulkMailPropagatesFailure(t *testing.T) {
	notify := &fakeNotifier{}
	audit := &fakeAudit{}
	svc := NewMailService(notify, audit, validation.New(), zap.NewNop())
	req := BulkMailRequest{Recipients: []string{"A@gmail.com", "a@gmail.com", "b@gmail.com"}, Subject: "Closure", Body: "School closes early."}

	sent, err := svc.SendBulk(context.Background(), "admin-1", req)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"a@gmail.com", "b@gmail.com"}, notify.payloads[0].(BulkEmailPayload).Recipients)
	assert.Len(t, audit.logs, 1)

	notify.err = appErrors.Remote(errors.New("smtp down"), "failed to send bulk-email")
	_, err = svc.SendBulk(context.Background(), "admin-1", req)
	assert.ErrorIs(t, err, appErrors.ErrRemote)

	_, err = svc.SendBulk(context.Background(), "admin-1", BulkMailRequest{Subject: "x", Body: "y"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
