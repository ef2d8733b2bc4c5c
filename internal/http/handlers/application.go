package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/http/response"
	"github.com/citrusqa/bitacora-backend/internal/services"
)

type ApplicationHandler struct {
	appService services.ApplicationService
}

func NewApplicationHandler(appService services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService}
}

type applicationRequest struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Version       string      `json:"version"`
	Platform      string      `json:"platform"`
	AssignedQAIDs []uuid.UUID `json:"assignedQAs"`
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	app, err := h.appService.Create(c.Request.Context(), services.ApplicationInput{
		Name:          req.Name,
		Description:   req.Description,
		Version:       req.Version,
		Platform:      req.Platform,
		AssignedQAIDs: req.AssignedQAIDs,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, app)
}

func (h *ApplicationHandler) List(c *gin.Context) {
	apps, err := h.appService.List(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, apps)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	app, err := h.appService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, app)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	app, err := h.appService.Update(c.Request.Context(), id, services.ApplicationInput{
		Name:          req.Name,
		Description:   req.Description,
		Version:       req.Version,
		Platform:      req.Platform,
		AssignedQAIDs: req.AssignedQAIDs,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if err := h.appService.Delete(c.Request.Context(), id); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

func (h *ApplicationHandler) UpdateVersion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		Version   string `json:"version" binding:"required"`
		Changelog string `json:"changelog" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	app, err := h.appService.UpdateVersion(c.Request.Context(), id, services.VersionUpdateInput{
		Version:   req.Version,
		Changelog: req.Changelog,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, app)
}

func (h *ApplicationHandler) ListVersions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	versions, err := h.appService.ListVersions(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, versions)
}
