package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type announcementService interface {
	List(ctx context.Context, role models.Role, limit int) ([]models.Announcement, error)
	Create(ctx context.Context, actor service.AccessState, req service.CreateAnnouncementRequest) (*models.Announcement, error)
}

type complaintService interface {
	File(ctx context.Context, learnerID string, req service.FileComplaintRequest) (*models.Complaint, error)
	List(ctx context.Context, actor service.AccessState, status models.ComplaintStatus) ([]models.Complaint, error)
	Respond(ctx context.Context, id, responderID string, req service.RespondComplaintRequest) (*models.Complaint, error)
}

type materialService interface {
	Upload(ctx context.Context, uploaderID string, req service.UploadMaterialRequest, file service.FileUpload) (*models.Material, error)
	List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error)
}

type markService interface {
	Record(ctx context.Context, actor service.AccessState, req service.RecordMarkRequest) (*models.Mark, error)
}

type balanceService interface {
	Set(ctx context.Context, learnerID, updaterID string, req service.SetBalanceRequest) (*models.Balance, error)
}

type mailService interface {
	SendBulk(ctx context.Context, senderID string, req service.BulkMailRequest) (int, error)
}

// PortalServices groups the dashboard action services.
type PortalServices struct {
	Announcements announcementService
	Complaints    complaintService
	Materials     materialService
	Marks         markService
	Balances      balanceService
	Mail          mailService
}

// PortalHandler serves the single-write dashboard actions. Every route sits
// behind RequireApproved, which decides who may call it.
type PortalHandler struct {
	svc PortalServices
}

// NewPortalHandler constructs the handler.
func NewPortalHandler(services PortalServices) *PortalHandler {
	return &PortalHandler{svc: services}
}

// ListAnnouncements godoc
// @Summary Announcements addressed to the caller's role
// @Tags Announcements
// @Produce json
// @Param limit query int false "Max items"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *PortalHandler) ListAnnouncements(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.svc.Announcements.List(c.Request.Context(), state.Role, queryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateAnnouncement godoc
// @Summary Post an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.CreateAnnouncementRequest true "Announcement"
// @Success 201 {object} response.Envelope
// @Router /announcements [post]
func (h *PortalHandler) CreateAnnouncement(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.svc.Announcements.Create(c.Request.Context(), state, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// ListComplaints godoc
// @Summary List complaints
// @Description Learners see their own complaints
// @Tags Complaints
// @Produce json
// @Param status query string false "open or responded"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *PortalHandler) ListComplaints(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.svc.Complaints.List(c.Request.Context(), state, models.ComplaintStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// FileComplaint godoc
// @Summary File a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body service.FileComplaintRequest true "Complaint"
// @Success 201 {object} response.Envelope
// @Router /complaints [post]
func (h *PortalHandler) FileComplaint(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.FileComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.svc.Complaints.File(c.Request.Context(), state.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RespondComplaint godoc
// @Summary Respond to a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body service.RespondComplaintRequest true "Response"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /complaints/{id}/respond [post]
func (h *PortalHandler) RespondComplaint(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RespondComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	item, err := h.svc.Complaints.Respond(c.Request.Context(), c.Param("id"), state.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ListMaterials godoc
// @Summary List learning materials
// @Tags Materials
// @Produce json
// @Param category query string false "Category"
// @Param subject query string false "Subject"
// @Param grade query string false "Grade"
// @Success 200 {object} response.Envelope
// @Router /materials [get]
func (h *PortalHandler) ListMaterials(c *gin.Context) {
	filter := models.MaterialFilter{Category: c.Query("category"), Subject: c.Query("subject"), Grade: c.Query("grade")}
	items, err := h.svc.Materials.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UploadMaterial godoc
// @Summary Upload a learning material
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param category formData string true "Category"
// @Param subject formData string false "Subject"
// @Param grade formData string false "Grade"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /materials [post]
func (h *PortalHandler) UploadMaterial(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UploadMaterialRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	upload, closeFile, err := formFile(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	item, err := h.svc.Materials.Upload(c.Request.Context(), state.AccountID, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RecordMark godoc
// @Summary Record an assessment mark
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body service.RecordMarkRequest true "Mark"
// @Success 201 {object} response.Envelope
// @Router /marks [post]
func (h *PortalHandler) RecordMark(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RecordMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	mark, err := h.svc.Marks.Record(c.Request.Context(), state, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mark)
}

// SetBalance godoc
// @Summary Set a learner balance
// @Tags Balances
// @Accept json
// @Produce json
// @Param learnerId path string true "Learner account ID"
// @Param payload body service.SetBalanceRequest true "Balance"
// @Success 200 {object} response.Envelope
// @Router /balances/{learnerId} [put]
func (h *PortalHandler) SetBalance(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	balance, err := h.svc.Balances.Set(c.Request.Context(), c.Param("learnerId"), state.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// SendBulkMail godoc
// @Summary Send a bulk email
// @Description Delivered before the response; delivery failures are returned
// @Tags Mail
// @Accept json
// @Produce json
// @Param payload body service.BulkMailRequest true "Message"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /mail/bulk [post]
func (h *PortalHandler) SendBulkMail(c *gin.Context) {
	state, ok := accessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	sent, err := h.svc.Mail.SendBulk(c.Request.Context(), state.AccountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"sent": sent}, nil)
}
