package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/http/response"
	"github.com/citrusqa/bitacora-backend/internal/repos"
	"github.com/citrusqa/bitacora-backend/internal/services"
)

type BugReportHandler struct {
	bugService services.BugReportService
}

func NewBugReportHandler(bugService services.BugReportService) *BugReportHandler {
	return &BugReportHandler{bugService: bugService}
}

func (h *BugReportHandler) Create(c *gin.Context) {
	var req struct {
		Title            string    `json:"title" binding:"required"`
		Description      string    `json:"description" binding:"required"`
		StepsToReproduce string    `json:"stepsToReproduce" binding:"required"`
		ExpectedBehavior string    `json:"expectedBehavior" binding:"required"`
		ActualBehavior   string    `json:"actualBehavior" binding:"required"`
		Severity         string    `json:"severity" binding:"required"`
		ApplicationID    uuid.UUID `json:"applicationId" binding:"required"`
		Environment      string    `json:"environment" binding:"required"`
		Screenshots      []string  `json:"screenshots"`
		ConsoleErrors    string    `json:"consoleErrors"`
		Queries          string    `json:"queries"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	report, err := h.bugService.Create(c.Request.Context(), services.CreateBugReportInput{
		Title:            req.Title,
		Description:      req.Description,
		StepsToReproduce: req.StepsToReproduce,
		ExpectedBehavior: req.ExpectedBehavior,
		ActualBehavior:   req.ActualBehavior,
		Severity:         domain.Severity(req.Severity),
		ApplicationID:    req.ApplicationID,
		Environment:      req.Environment,
		Screenshots:      req.Screenshots,
		ConsoleErrors:    req.ConsoleErrors,
		Queries:          req.Queries,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, report)
}

func (h *BugReportHandler) List(c *gin.Context) {
	filter := repos.BugReportFilter{
		Status:   domain.BugStatus(c.Query("status")),
		Severity: domain.Severity(c.Query("severity")),
	}
	if appID := c.Query("applicationId"); appID != "" {
		id, err := uuid.Parse(appID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_application_id", err)
			return
		}
		filter.ApplicationID = id
	}
	reports, err := h.bugService.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, reports)
}

func (h *BugReportHandler) ListByApplication(c *gin.Context) {
	appID, err := uuid.Parse(c.Param("applicationId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_application_id", err)
		return
	}
	reports, err := h.bugService.ListByApplication(c.Request.Context(), appID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, reports)
}

func (h *BugReportHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	report, err := h.bugService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, report)
}

func (h *BugReportHandler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	report, err := h.bugService.SetStatus(c.Request.Context(), id, domain.BugStatus(req.Status))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, report)
}

func (h *BugReportHandler) RecordTesterDecision(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		Decision string `json:"decision" binding:"required"`
		Comment  string `json:"comment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	report, err := h.bugService.RecordTesterDecision(c.Request.Context(), id, domain.Decision(req.Decision), req.Comment)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, report)
}

func (h *BugReportHandler) AddComment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	report, err := h.bugService.AddComment(c.Request.Context(), id, req.Text)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, report)
}

func (h *BugReportHandler) StatsSummary(c *gin.Context) {
	summary, err := h.bugService.StatsSummary(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, summary)
}

func (h *BugReportHandler) StatsTrends(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_days", err)
			return
		}
		days = parsed
	}
	points, err := h.bugService.StatsTrends(c.Request.Context(), days)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, points)
}
