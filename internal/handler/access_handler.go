package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// AccessHandler reports the approval gate state of the caller.
type AccessHandler struct {
	resolver middleware.AccessResolver
}

// NewAccessHandler constructs the handler.
func NewAccessHandler(resolver middleware.AccessResolver) *AccessHandler {
	return &AccessHandler{resolver: resolver}
}

type accessResponse struct {
	service.AccessState
	Decision  service.Decision `json:"decision"`
	Dashboard string           `json:"dashboard,omitempty"`
}

// Show godoc
// @Summary Current access state
// @Description Registration status, role and where the caller should be sent. Anonymous callers get an unauthenticated state.
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access [get]
func (h *AccessHandler) Show(c *gin.Context) {
	state, err := h.resolver.Resolve(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := accessResponse{AccessState: state, Decision: service.Decide(state)}
	if out.Decision.Granted() {
		out.Dashboard = service.DashboardPath(state.Role)
	}
	response.JSON(c, http.StatusOK, out, nil)
}
