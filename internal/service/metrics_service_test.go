package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/access", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/registration/wizards", http.StatusCreated, 30*time.Millisecond)
	m.RecordRegistrationSubmission("created")
	m.RecordRegistrationSubmission("created")
	m.RecordRegistrationSubmission("failed")
	m.RecordReviewDecision(models.RegistrationApproved)
	m.RecordNotification(NotifyBulkEmail, errors.New("smtp down"))
	m.RecordNotification(NotifyBulkEmail, nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snap.Submissions["created"])
	assert.Equal(t, uint64(1), snap.Submissions["failed"])
	assert.Equal(t, uint64(1), snap.ReviewDecisions[string(models.RegistrationApproved)])
	assert.Equal(t, uint64(1), snap.NotificationsFailed)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordRegistrationSubmission("resubmitted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `registration_submissions_total{outcome="resubmitted"} 1`))
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordRegistrationSubmission("created")
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
