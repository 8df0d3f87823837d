package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type fakeMarks struct {
	marks   []models.Mark
	filters []models.MarkFilter
	err     error
}

func (f *fakeMarks) List(_ context.Context, filter models.MarkFilter) ([]models.Mark, error) {
	f.filters = append(f.filters, filter)
	return f.marks, f.err
}

type fakeBalances struct {
	balances map[string]models.Balance
	upserts  []*models.Balance
}

func (f *fakeBalances) Get(_ context.Context, learnerID string) (*models.Balance, error) {
	b, ok := f.balances[learnerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeBalances) List(context.Context) ([]models.Balance, error) {
	out := make([]models.Balance, 0, len(f.balances))
	for _, b := range f.balances {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBalances) Upsert(_ context.Context, balance *models.Balance) error {
	f.upserts = append(f.upserts, balance)
	return nil
}

type fakeComplaints struct {
	complaints []models.Complaint
	filters    []models.ComplaintFilter
	responded  map[string]string
}

func (f *fakeComplaints) Create(_ context.Context, c *models.Complaint) error {
	f.complaints = append(f.complaints, *c)
	return nil
}

func (f *fakeComplaints) GetByID(_ context.Context, id string) (*models.Complaint, error) {
	for _, c := range f.complaints {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeComplaints) List(_ context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	f.filters = append(f.filters, filter)
	return f.complaints, nil
}

func (f *fakeComplaints) Respond(_ context.Context, id, response, _ string, _ time.Time) error {
	if f.responded == nil {
		f.responded = map[string]string{}
	}
	f.responded[id] = response
	return nil
}

type fakeMaterials struct {
	materials []models.Material
	createErr error
}

func (f *fakeMaterials) Create(_ context.Context, m *models.Material) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.materials = append(f.materials, *m)
	return nil
}

func (f *fakeMaterials) List(context.Context, models.MaterialFilter) ([]models.Material, error) {
	return f.materials, nil
}

type fakeAnnouncements struct {
	items   []models.Announcement
	filters []models.AnnouncementFilter
}

func (f *fakeAnnouncements) List(_ context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error) {
	f.filters = append(f.filters, filter)
	var out []models.Announcement
	for _, a := range f.items {
		if a.AddressedTo(filter.Role) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnnouncements) Create(_ context.Context, a *models.Announcement) error {
	f.items = append(f.items, *a)
	return nil
}

type dashboardHarness struct {
	svc           *DashboardService
	marks         *fakeMarks
	balances      *fakeBalances
	complaints    *fakeComplaints
	materials     *fakeMaterials
	announcements *fakeAnnouncements
	registrations *fakeRegistrations
}

func newDashboardHarness() *dashboardHarness {
	h := &dashboardHarness{
		marks:         &fakeMarks{marks: sampleMarks()},
		balances:      &fakeBalances{balances: map[string]models.Balance{}},
		complaints:    &fakeComplaints{},
		materials:     &fakeMaterials{},
		announcements: &fakeAnnouncements{},
		registrations: newFakeRegistrations(),
	}
	h.svc = NewDashboardService(DashboardRepositories{
		Marks:         h.marks,
		Balances:      h.balances,
		Complaints:    h.complaints,
		Materials:     h.materials,
		Announcements: h.announcements,
		Registrations: h.registrations,
	}, DashboardConfig{}, zap.NewNop())
	return h
}

func approvedState(reg *models.Registration) AccessState {
	reg.Status = models.RegistrationApproved
	return AccessState{Authenticated: true, AccountID: reg.AccountID, Status: reg.Status, Role: reg.Role, Registration: reg}
}

func TestDashboardLearner(t *testing.T) {
	h := newDashboardHarness()
	h.balances.balances["l1"] = models.Balance{LearnerID: "l1", Amount: 1200}
	h.announcements.items = []models.Announcement{
		{ID: "a1", Title: "Sports day"},
		{ID: "a2", Title: "Staff meeting", Audience: []string{"teacher"}},
	}

	board, err := h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "l1", Role: models.RoleLearner, Grade: sp("Grade 10")}))
	require.NoError(t, err)
	assert.Equal(t, "l1", h.marks.filters[0].LearnerID)
	require.NotNil(t, board.Average)
	require.NotNil(t, board.PassRate)
	assert.Equal(t, "Grade 10", board.Scope.Grade)
	require.NotNil(t, board.Balance)
	assert.Equal(t, 1200.0, board.Balance.Amount)
	require.Len(t, board.Announcements, 1)
	assert.Equal(t, "a1", board.Announcements[0].ID)
	assert.Equal(t, 5, h.announcements.filters[0].Limit)
}

func TestDashboardTeacherScope(t *testing.T) {
	h := newDashboardHarness()
	reg := &models.Registration{AccountID: "t1", Role: models.RoleTeacher, GradeTaught: sp("Grade 10"), Subjects: []string{"Maths", "Physics"}}

	board, err := h.svc.Build(context.Background(), approvedState(reg))
	require.NoError(t, err)
	assert.Equal(t, models.MarkFilter{Grade: "Grade 10", Subjects: []string{"Maths", "Physics"}}, h.marks.filters[0])
	assert.Len(t, board.ClassAverages, 2)
	require.Len(t, board.AtRisk, 1)
	assert.Equal(t, "l2", board.AtRisk[0].LearnerID)
	assert.Nil(t, board.Balance)
}

func TestDashboardHODScopedToDepartmentSubjects(t *testing.T) {
	h := newDashboardHarness()
	reg := &models.Registration{AccountID: "h1", Role: models.RoleHOD, Department: sp("Science"), Subjects: []string{"Physics", " "}}

	board, err := h.svc.Build(context.Background(), approvedState(reg))
	require.NoError(t, err)
	assert.Equal(t, models.MarkFilter{Subjects: []string{"Physics"}}, h.marks.filters[0])
	assert.Equal(t, "Science", board.Scope.Department)
	require.NotNil(t, board.PassRate)
}

func TestDashboardIncompleteStaffScopeIsEmpty(t *testing.T) {
	cases := map[string]*models.Registration{
		"teacher without subjects":   {AccountID: "t1", Role: models.RoleTeacher, GradeTaught: sp("Grade 10")},
		"teacher without grade":      {AccountID: "t2", Role: models.RoleTeacher, Subjects: []string{"Maths"}},
		"grade head without grade":   {AccountID: "g1", Role: models.RoleGradeHead, GradeTaught: sp("  ")},
		"hod without subjects":       {AccountID: "h1", Role: models.RoleHOD, Department: sp("Science")},
		"hod without department":     {AccountID: "h2", Role: models.RoleHOD, Subjects: []string{"Physics"}},
		"teacher with blank subject": {AccountID: "t3", Role: models.RoleTeacher, GradeTaught: sp("Grade 10"), Subjects: []string{""}},
	}
	for name, reg := range cases {
		t.Run(name, func(t *testing.T) {
			h := newDashboardHarness()
			board, err := h.svc.Build(context.Background(), approvedState(reg))
			require.NoError(t, err)
			assert.Empty(t, h.marks.filters)
			assert.Empty(t, board.ClassAverages)
			assert.Empty(t, board.SubjectAverages)
			assert.Empty(t, board.AtRisk)
			assert.Nil(t, board.PassRate)
		})
	}
}

func TestDashboardPrincipalCountsRegistrations(t *testing.T) {
	h := newDashboardHarness()
	h.registrations.byAccount["a"] = &models.Registration{ID: "1", Role: models.RoleLearner, Status: models.RegistrationPending}
	h.registrations.byAccount["b"] = &models.Registration{ID: "2", Role: models.RoleTeacher, Status: models.RegistrationApproved}

	board, err := h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "p1", Role: models.RolePrincipal}))
	require.NoError(t, err)
	require.NotNil(t, board.Registrations)
	assert.Equal(t, 1, board.Registrations.ByStatus[models.RegistrationPending])
	assert.Nil(t, board.Registrations.ByRole)
	require.Len(t, board.GradeAverages, 1)
	assert.InDelta(t, 75.0, *board.PassRate, 1e-9)
}

func TestDashboardAdminPendingCount(t *testing.T) {
	h := newDashboardHarness()
	h.registrations.byAccount["a"] = &models.Registration{ID: "1", Role: models.RoleLearner, Status: models.RegistrationPending}
	h.registrations.byAccount["b"] = &models.Registration{ID: "2", Role: models.RoleLearner, Status: models.RegistrationPending}
	h.registrations.byAccount["c"] = &models.Registration{ID: "3", Role: models.RoleAdmin, Status: models.RegistrationApproved}

	board, err := h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "c", Role: models.RoleAdmin}))
	require.NoError(t, err)
	require.NotNil(t, board.Pending)
	assert.Equal(t, 2, *board.Pending)
	assert.Equal(t, 2, board.Registrations.ByRole[models.RoleLearner])
}

func TestDashboardFinance(t *testing.T) {
	h := newDashboardHarness()
	h.balances.balances["l1"] = models.Balance{LearnerID: "l1", Amount: 300}
	h.balances.balances["l2"] = models.Balance{LearnerID: "l2", Amount: -100}
	h.balances.balances["l3"] = models.Balance{LearnerID: "l3", Amount: 100}

	board, err := h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "f1", Role: models.RoleFinance}))
	require.NoError(t, err)
	require.NotNil(t, board.Finance)
	assert.Equal(t, 400.0, board.Finance.Outstanding)
	assert.Len(t, board.Finance.InArrears, 2)
	assert.InDelta(t, 100.0, board.Finance.AverageBalance, 1e-9)
}

func TestDashboardLLCAndLibrarian(t *testing.T) {
	h := newDashboardHarness()
	h.complaints.complaints = []models.Complaint{
		{ID: "c1", Status: models.ComplaintOpen},
		{ID: "c2", Status: models.ComplaintResponded},
		{ID: "c3", Status: models.ComplaintOpen},
	}
	h.materials.materials = []models.Material{{Category: "past papers"}, {Category: "past papers"}, {Category: "novels"}}

	board, err := h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "x", Role: models.RoleLLC}))
	require.NoError(t, err)
	assert.Equal(t, 2, board.Complaints.Open)
	assert.Equal(t, 1, board.Complaints.Responded)
	assert.Len(t, board.Complaints.Recent, 3)

	board, err = h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "y", Role: models.RoleLibrarian}))
	require.NoError(t, err)
	assert.Equal(t, 3, board.Library.Total)
	assert.Equal(t, 2, board.Library.ByCategory["past papers"])
}

func TestDashboardRequiresApproval(t *testing.T) {
	h := newDashboardHarness()
	_, err := h.svc.Build(context.Background(), AccessState{Authenticated: true, Status: models.RegistrationPending})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDashboardSurfacesStoreErrors(t *testing.T) {
	h := newDashboardHarness()
	h.marks.err = errors.New("timeout")
	_, err := h.svc.Build(context.Background(), approvedState(&models.Registration{AccountID: "h1", Role: models.RoleHOD, Department: sp("Science"), Subjects: []string{"Physics"}}))
	assert.Equal(t, appErrors.ErrRemote.Code, appErrors.FromError(err).Code)
}
