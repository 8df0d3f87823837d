package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type dashboardService interface {
	Build(ctx context.Context, state service.AccessState) (*dto.Dashboard, error)
}

// DashboardHandler serves role dashboards.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs a new handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Show godoc
// @Summary Role dashboard
// @Description Aggregates for the caller's approved role. Requesting another role's dashboard is forbidden.
// @Tags Dashboard
// @Produce json
// @Param role path string true "Role"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboards/{role} [get]
func (h *DashboardHandler) Show(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requested, err := models.ParseRole(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, err.Error()))
		return
	}
	if requested != state.Role {
		response.Error(c, appErrors.ErrForbidden, map[string]interface{}{
			"outcome":  service.OutcomeForbidden,
			"redirect": service.DashboardPath(state.Role),
		})
		return
	}

	dashboard, err := h.service.Build(c.Request.Context(), state)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
