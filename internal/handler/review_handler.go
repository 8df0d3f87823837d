package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type reviewService interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error)
	Approve(ctx context.Context, id, reviewerID string) (*models.Registration, error)
	Decline(ctx context.Context, id, reviewerID, reason string) (*models.Registration, error)
	Export(ctx context.Context, filter models.RegistrationFilter, format export.Format) ([]byte, error)
}

// ReviewHandler lets reviewers act on submitted registrations.
type ReviewHandler struct {
	service reviewService
	now     func() time.Time
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(svc reviewService) *ReviewHandler {
	return &ReviewHandler{service: svc, now: time.Now}
}

type declineRequest struct {
	Reason string `json:"reason"`
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param status query string false "pending, approved or declined"
// @Param role query string false "Role"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *ReviewHandler) List(c *gin.Context) {
	filter, err := registrationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "pageSize", 20)

	rows, page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, page)
}

// Approve godoc
// @Summary Approve a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reg, err := h.service.Approve(c.Request.Context(), c.Param("id"), state.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Decline godoc
// @Summary Decline a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body declineRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/decline [post]
func (h *ReviewHandler) Decline(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req declineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err))
			return
		}
	}
	reg, err := h.service.Decline(c.Request.Context(), c.Param("id"), state.AccountID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Export godoc
// @Summary Export the registration roster
// @Tags Registrations
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param status query string false "Status filter"
// @Param role query string false "Role filter"
// @Success 200 {file} file
// @Router /registrations/export [get]
func (h *ReviewHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Field("format", err.Error()))
		return
	}
	filter, err := registrationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	body, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("registrations-%s.%s", h.now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, format.ContentType(), body)
}

func registrationFilter(c *gin.Context) (models.RegistrationFilter, error) {
	filter := models.RegistrationFilter{Status: models.RegistrationStatus(c.Query("status"))}
	if raw := c.Query("role"); raw != "" {
		role, err := models.ParseRole(raw)
		if err != nil {
			return filter, appErrors.Field("role", err.Error())
		}
		filter.Role = role
	}
	return filter, nil
}
