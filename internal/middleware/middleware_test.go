package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type stubResolver struct {
	states map[string]service.AccessState
	err    error
}

func (s stubResolver) Resolve(_ context.Context, claims *models.JWTClaims) (service.AccessState, error) {
	if s.err != nil {
		return service.AccessState{}, s.err
	}
	if claims == nil {
		return service.AccessState{}, nil
	}
	return s.states[claims.UserID], nil
}

type envelope struct {
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJWT(t *testing.T) {
	tokens := stubTokens{"good": {UserID: "u1", Role: models.RoleLearner}}
	router := gin.New()
	router.GET("/me", JWT(tokens), func(c *gin.Context) {
		claims, ok := Claims(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "bad").Code)

	rec := serve(router, http.MethodGet, "/me", "good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "invalid authorization header", decode(t, rec).Error.Message)
}

func TestOptionalJWT(t *testing.T) {
	router := gin.New()
	router.GET("/", OptionalJWT(stubTokens{"good": {UserID: "u1"}}), func(c *gin.Context) {
		_, ok := Claims(c)
		c.JSON(http.StatusOK, ok)
	})

	assert.Equal(t, "false", serve(router, http.MethodGet, "/", "bad").Body.String())
	assert.Equal(t, "true", serve(router, http.MethodGet, "/", "good").Body.String())
}

func TestRequireApproved(t *testing.T) {
	tokens := stubTokens{
		"approved": {UserID: "teacher"},
		"pending":  {UserID: "pending"},
		"declined": {UserID: "declined"},
		"nobody":   {UserID: "nobody"},
	}
	resolver := stubResolver{states: map[string]service.AccessState{
		"teacher":  {Authenticated: true, AccountID: "teacher", Status: models.RegistrationApproved, Role: models.RoleTeacher},
		"pending":  {Authenticated: true, AccountID: "pending", Status: models.RegistrationPending},
		"declined": {Authenticated: true, AccountID: "declined", Status: models.RegistrationDeclined},
		"nobody":   {Authenticated: true, AccountID: "nobody"},
	}}

	router := gin.New()
	router.Use(OptionalJWT(tokens))
	router.GET("/staff", RequireApproved(resolver, models.RoleTeacher, models.RoleHOD), func(c *gin.Context) {
		state, ok := Access(c)
		require.True(t, ok)
		c.String(http.StatusOK, string(state.Role))
	})
	router.GET("/finance", RequireApproved(resolver, models.RoleFinance), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name     string
		path     string
		token    string
		status   int
		redirect string
	}{
		{"anonymous", "/staff", "", http.StatusUnauthorized, service.RedirectLogin},
		{"pending", "/staff", "pending", http.StatusForbidden, service.RedirectPending},
		{"declined", "/staff", "declined", http.StatusForbidden, service.RedirectDeclined},
		{"unregistered", "/staff", "nobody", http.StatusForbidden, service.RedirectRegistration},
		{"wrong role", "/finance", "approved", http.StatusForbidden, "/dashboards/teacher"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, http.MethodGet, tc.path, tc.token)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.redirect, decode(t, rec).Meta["redirect"])
		})
	}

	rec := serve(router, http.MethodGet, "/staff", "approved")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "teacher", rec.Body.String())
}

func TestRequireApprovedResolverFailure(t *testing.T) {
	router := gin.New()
	router.Use(OptionalJWT(stubTokens{"t": {UserID: "u"}}))
	router.GET("/", RequireApproved(stubResolver{err: appErrors.Remote(errors.New("db down"), "failed to load registration")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusBadGateway, serve(router, http.MethodGet, "/", "t").Code)
}

type observed struct {
	method, path string
	status       int
}

type stubObserver struct{ calls []observed }

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.calls = append(s.calls, observed{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &stubObserver{}
	router := gin.New()
	router.Use(Metrics(obs))
	router.GET("/registrations/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	serve(router, http.MethodGet, "/registrations/42", "")
	serve(router, http.MethodGet, "/nowhere", "")

	require.Len(t, obs.calls, 2)
	assert.Equal(t, observed{http.MethodGet, "/registrations/:id", http.StatusAccepted}, obs.calls[0])
	assert.Equal(t, "unmatched", obs.calls[1].path)
}

type stubAudit struct{ logs []*models.AuditLog }

func (s *stubAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestAuditSkipsFailures(t *testing.T) {
	audit := &stubAudit{}
	router := gin.New()
	router.Use(OptionalJWT(stubTokens{"t": {UserID: "admin"}}))
	router.POST("/things/:id", Audit(audit, models.AuditActionWrite, "thing"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodPost, "/things/bad", "t")
	serve(router, http.MethodPost, "/things/7", "t")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "admin", *audit.logs[0].UserID)
	assert.Equal(t, "7", *audit.logs[0].ResourceID)
	assert.Equal(t, "thing", audit.logs[0].Resource)
}
