package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

func newReviewHarness() (*ReviewService, *fakeRegistrations, *fakeMetrics, *fakeAudit) {
	regs := newFakeRegistrations()
	regs.byAccount["acc-1"] = &models.Registration{ID: "reg-1", AccountID: "acc-1", Role: models.RoleLearner, Status: models.RegistrationPending, FirstName: "Thandi", Surname: "Mokoena", Grade: sp("Grade 10")}
	metrics := &fakeMetrics{}
	audit := &fakeAudit{}
	return NewReviewService(regs, audit, metrics, zap.NewNop()), regs, metrics, audit
}

func TestReviewApprove(t *testing.T) {
	svc, regs, metrics, audit := newReviewHarness()

	reg, err := svc.Approve(context.Background(), "reg-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, reg.Status)
	assert.Equal(t, "admin-1", *reg.ReviewedBy)
	assert.Equal(t, models.RegistrationApproved, regs.byAccount["acc-1"].Status)
	assert.Equal(t, []models.RegistrationStatus{models.RegistrationApproved}, metrics.reviews)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRegistrationReview, audit.logs[0].Action)

	_, err = svc.Approve(context.Background(), "reg-1", "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestReviewDeclineKeepsReason(t *testing.T) {
	svc, regs, _, _ := newReviewHarness()

	reg, err := svc.Decline(context.Background(), "reg-1", "principal-1", " proof of address is unreadable ")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationDeclined, reg.Status)
	require.NotNil(t, regs.byAccount["acc-1"].DeclineReason)
	assert.Equal(t, "proof of address is unreadable", *regs.byAccount["acc-1"].DeclineReason)

	_, err = svc.Decline(context.Background(), "missing", "principal-1", "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReviewListValidatesStatus(t *testing.T) {
	svc, _, _, _ := newReviewHarness()

	_, _, err := svc.List(context.Background(), models.RegistrationFilter{Status: "archived"})
	assert.Equal(t, "status", appErrors.FromError(err).Field)

	rows, page, err := svc.List(context.Background(), models.RegistrationFilter{Status: models.RegistrationPending})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
}

func TestReviewExport(t *testing.T) {
	svc, _, _, _ := newReviewHarness()

	csvOut, err := svc.Export(context.Background(), models.RegistrationFilter{}, export.FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(csvOut), "Surname,First name,Role,Status")
	assert.Contains(t, string(csvOut), "Mokoena,Thandi,Learner,pending")

	pdfOut, err := svc.Export(context.Background(), models.RegistrationFilter{Role: models.RoleLearner}, export.FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfOut, []byte("%PDF")))
}
