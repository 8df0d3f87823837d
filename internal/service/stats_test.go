package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func sampleMarks() []models.Mark {
	return []models.Mark{
		{LearnerID: "l1", LearnerName: "Ayanda", Subject: "Maths", ClassName: "10A", Grade: "Grade 10", Score: 80, Total: 100},
		{LearnerID: "l1", LearnerName: "Ayanda", Subject: "Physics", ClassName: "10A", Grade: "Grade 10", Score: 30, Total: 50},
		{LearnerID: "l2", LearnerName: "Bongi", Subject: "Maths", ClassName: "10B", Grade: "Grade 10", Score: 20, Total: 100},
		{LearnerID: "l2", LearnerName: "Bongi", Subject: "Physics", ClassName: "10B", Grade: "Grade 10", Score: 25, Total: 50},
	}
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, Average(nil))
	assert.InDelta(t, 2.5, Average([]float64{1, 2, 3, 4}), 1e-9)
}

func TestPassRate(t *testing.T) {
	marks := sampleMarks()
	assert.InDelta(t, 75.0, PassRate(marks, 50), 1e-9)
	assert.Equal(t, 0.0, PassRate(nil, 50))
}

func TestAverageBy(t *testing.T) {
	groups := AverageBy(sampleMarks(), bySubject)
	require.Len(t, groups, 2)
	assert.Equal(t, "Maths", groups[0].Key)
	assert.InDelta(t, 50.0, groups[0].Average, 1e-9)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "Physics", groups[1].Key)
	assert.InDelta(t, 55.0, groups[1].Average, 1e-9)
}

func TestAtRisk(t *testing.T) {
	risk := AtRisk(sampleMarks(), 50)
	require.Len(t, risk, 1)
	assert.Equal(t, "l2", risk[0].LearnerID)
	assert.InDelta(t, 35.0, risk[0].Average, 1e-9)
	assert.Empty(t, AtRisk(nil, 50))
}

func TestCountRegistrations(t *testing.T) {
	counts := CountRegistrations([]models.Registration{
		{Role: models.RoleLearner, Status: models.RegistrationPending},
		{Role: models.RoleLearner, Status: models.RegistrationApproved},
		{Role: models.RoleTeacher, Status: models.RegistrationPending},
	})
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.ByStatus[models.RegistrationPending])
	assert.Equal(t, 2, counts.ByRole[models.RoleLearner])
}
