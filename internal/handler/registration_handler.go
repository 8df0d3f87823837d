package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type wizardService interface {
	Start(ctx context.Context) (*dto.WizardState, error)
	Get(ctx context.Context, id string) (*dto.WizardState, error)
	SelectRole(ctx context.Context, id, rawRole string) (*dto.WizardState, error)
	UpdateFields(ctx context.Context, id string, patch models.DraftPatch) (*dto.WizardState, error)
	Attach(ctx context.Context, id string, kind models.DocumentKind, upload service.FileUpload) (*dto.WizardState, error)
	Detach(ctx context.Context, id string, kind models.DocumentKind) (*dto.WizardState, error)
	Advance(ctx context.Context, id string) (*dto.WizardState, error)
	Back(ctx context.Context, id string) (*dto.WizardState, error)
	Submit(ctx context.Context, id string) (*dto.WizardState, error)
}

// RegistrationHandler exposes the registration wizard.
type RegistrationHandler struct {
	wizard wizardService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(wizard wizardService) *RegistrationHandler {
	return &RegistrationHandler{wizard: wizard}
}

type selectRoleRequest struct {
	Role string `json:"role"`
}

// Start godoc
// @Summary Start a registration
// @Tags Registration
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /registration/wizards [post]
func (h *RegistrationHandler) Start(c *gin.Context) {
	state, err := h.wizard.Start(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// Get godoc
// @Summary Get a registration draft
// @Tags Registration
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registration/wizards/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	h.respond(c)(h.wizard.Get(c.Request.Context(), c.Param("id")))
}

// SelectRole godoc
// @Summary Choose the registration role
// @Description Only allowed on the first step
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body selectRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registration/wizards/{id}/role [put]
func (h *RegistrationHandler) SelectRole(c *gin.Context) {
	var req selectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	h.respond(c)(h.wizard.SelectRole(c.Request.Context(), c.Param("id"), req.Role))
}

// Update godoc
// @Summary Update draft fields
// @Description Absent fields are left unchanged
// @Tags Registration
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body models.DraftPatch true "Fields"
// @Success 200 {object} response.Envelope
// @Router /registration/wizards/{id} [patch]
func (h *RegistrationHandler) Update(c *gin.Context) {
	var patch models.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	h.respond(c)(h.wizard.UpdateFields(c.Request.Context(), c.Param("id"), patch))
}

// Attach godoc
// @Summary Attach a document
// @Tags Registration
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Draft ID"
// @Param kind path string true "Document kind"
// @Param file formData file true "Document"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registration/wizards/{id}/attachments/{kind} [post]
func (h *RegistrationHandler) Attach(c *gin.Context) {
	kind, ok := models.ParseDocumentKind(c.Param("kind"))
	if !ok {
		response.Error(c, appErrors.Field("kind", fmt.Sprintf("unknown document %q", c.Param("kind"))))
		return
	}
	upload, closeFile, err := formFile(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()
	h.respond(c)(h.wizard.Attach(c.Request.Context(), c.Param("id"), kind, upload))
}

// Detach godoc
// @Summary Remove a document
// @Tags Registration
// @Produce json
// @Param id path string true "Draft ID"
// @Param kind path string true "Document kind"
// @Success 200 {object} response.Envelope
// @Router /registration/wizards/{id}/attachments/{kind} [delete]
func (h *RegistrationHandler) Detach(c *gin.Context) {
	kind, ok := models.ParseDocumentKind(c.Param("kind"))
	if !ok {
		response.Error(c, appErrors.Field("kind", fmt.Sprintf("unknown document %q", c.Param("kind"))))
		return
	}
	h.respond(c)(h.wizard.Detach(c.Request.Context(), c.Param("id"), kind))
}

// Advance godoc
// @Summary Validate the current step and move forward
// @Tags Registration
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registration/wizards/{id}/advance [post]
func (h *RegistrationHandler) Advance(c *gin.Context) {
	h.respond(c)(h.wizard.Advance(c.Request.Context(), c.Param("id")))
}

// Back godoc
// @Summary Move to the previous step
// @Tags Registration
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Router /registration/wizards/{id}/back [post]
func (h *RegistrationHandler) Back(c *gin.Context) {
	h.respond(c)(h.wizard.Back(c.Request.Context(), c.Param("id")))
}

// Submit godoc
// @Summary Submit the registration
// @Description Uploads documents, creates or signs into the account and stores the registration
// @Tags Registration
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /registration/wizards/{id}/submit [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	h.respond(c)(h.wizard.Submit(c.Request.Context(), c.Param("id")))
}

func (h *RegistrationHandler) respond(c *gin.Context) func(*dto.WizardState, error) {
	return func(state *dto.WizardState, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, state, nil)
	}
}
