package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/ctxutil"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

type CreateBugReportInput struct {
	Title            string
	Description      string
	StepsToReproduce string
	ExpectedBehavior string
	ActualBehavior   string
	Severity         domain.Severity
	ApplicationID    uuid.UUID
	Environment      string
	Screenshots      []string
	ConsoleErrors    string
	Queries          string
}

type BugStatsSummary struct {
	Total           int64                      `json:"total"`
	ByStatus        map[domain.BugStatus]int64 `json:"byStatus"`
	BySeverity      map[domain.Severity]int64  `json:"bySeverity"`
	TopApplications []repos.ApplicationCount   `json:"topApplications"`
}

type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type BugReportService interface {
	Create(ctx context.Context, input CreateBugReportInput) (*domain.BugReport, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.BugReport, error)
	List(ctx context.Context, filter repos.BugReportFilter) ([]*domain.BugReport, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.BugReport, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus) (*domain.BugReport, error)
	RecordTesterDecision(ctx context.Context, id uuid.UUID, decision domain.Decision, comment string) (*domain.BugReport, error)
	AddComment(ctx context.Context, id uuid.UUID, text string) (*domain.BugReport, error)
	StatsSummary(ctx context.Context) (*BugStatsSummary, error)
	StatsTrends(ctx context.Context, days int) ([]TrendPoint, error)
}

type bugReportService struct {
	db       *gorm.DB
	log      *logger.Logger
	bugRepo  repos.BugReportRepo
	appRepo  repos.ApplicationRepo
	notifier Notifier
	emit     SSEEmitter
	now      func() time.Time
}

func NewBugReportService(
	db *gorm.DB,
	log *logger.Logger,
	bugRepo repos.BugReportRepo,
	appRepo repos.ApplicationRepo,
	notifier Notifier,
	emit SSEEmitter,
) BugReportService {
	return &bugReportService{
		db:       db,
		log:      log.With("service", "BugReportService"),
		bugRepo:  bugRepo,
		appRepo:  appRepo,
		notifier: notifier,
		emit:     emit,
		now:      time.Now,
	}
}

func requireActor(ctx context.Context) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}
	return rd, nil
}

func (s *bugReportService) Create(ctx context.Context, input CreateBugReportInput) (*domain.BugReport, error) {
	rd, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	required := map[string]string{
		"title":            input.Title,
		"description":      input.Description,
		"stepsToReproduce": input.StepsToReproduce,
		"expectedBehavior": input.ExpectedBehavior,
		"actualBehavior":   input.ActualBehavior,
		"environment":      input.Environment,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: %s required", domain.ErrInvalidInput, field)
		}
	}
	if !input.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidInput, input.Severity)
	}

	app, err := s.appRepo.GetByID(ctx, nil, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if rd.Role == string(domain.RoleQA) && !isAssigned(app, rd.UserID) {
		return nil, fmt.Errorf("%w: not assigned to this application", domain.ErrForbidden)
	}

	actor := domain.ActorRef{ID: rd.UserID, Name: rd.Name}
	report := &domain.BugReport{
		ID:               uuid.New(),
		Title:            strings.TrimSpace(input.Title),
		Description:      strings.TrimSpace(input.Description),
		StepsToReproduce: strings.TrimSpace(input.StepsToReproduce),
		ExpectedBehavior: strings.TrimSpace(input.ExpectedBehavior),
		ActualBehavior:   strings.TrimSpace(input.ActualBehavior),
		Severity:         input.Severity,
		ApplicationID:    app.ID,
		ReportedBy:       rd.UserID,
		Environment:      strings.TrimSpace(input.Environment),
		Screenshots:      datatypes.JSONSlice[string](input.Screenshots),
		ConsoleErrors:    input.ConsoleErrors,
		Queries:          input.Queries,
	}
	report.Open(actor, s.now())

	if _, err := s.bugRepo.Create(ctx, nil, report); err != nil {
		return nil, fmt.Errorf("create bug report: %w", err)
	}
	s.log.Info("Bug report created", "bugID", report.ID, "applicationID", app.ID, "severity", report.Severity)

	s.emitGlobal(ctx, realtime.SSEEventBugCreated, map[string]any{
		"bugId":         report.ID,
		"title":         report.Title,
		"severity":      report.Severity,
		"applicationId": app.ID,
		"reportedBy":    actor,
	})
	return report, nil
}

func (s *bugReportService) Get(ctx context.Context, id uuid.UUID) (*domain.BugReport, error) {
	rd, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.bugRepo.GetWithRelations(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rd.Role == string(domain.RoleQA) && report.ReportedBy != rd.UserID {
		return nil, fmt.Errorf("%w: not your report", domain.ErrForbidden)
	}
	return report, nil
}

// List shows QA users their own reports only; admins see everything.
func (s *bugReportService) List(ctx context.Context, filter repos.BugReportFilter) ([]*domain.BugReport, error) {
	rd, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Role == string(domain.RoleQA) {
		filter.ReportedBy = rd.UserID
	}
	return s.bugRepo.List(ctx, nil, filter)
}

func (s *bugReportService) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.BugReport, error) {
	return s.List(ctx, repos.BugReportFilter{ApplicationID: applicationID})
}

func (s *bugReportService) SetStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus) (*domain.BugReport, error) {
	rd, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Role != string(domain.RoleAdmin) {
		return nil, fmt.Errorf("%w: only admins change status", domain.ErrForbidden)
	}

	report, err := s.bugRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	actor := domain.ActorRef{ID: rd.UserID, Name: rd.Name}
	if err := report.ApplyStatus(status, actor, s.now()); err != nil {
		return nil, err
	}
	if err := s.bugRepo.Save(ctx, nil, report); err != nil {
		return nil, fmt.Errorf("save bug report: %w", err)
	}
	s.log.Info("Bug status changed", "bugID", report.ID, "status", report.Status)

	if report.Status == domain.StatusPendingTest {
		s.notifier.NotifyPendingTest(report)
	}
	s.emitStatusChanged(ctx, report, actor)
	return report, nil
}

func (s *bugReportService) RecordTesterDecision(ctx context.Context, id uuid.UUID, decision domain.Decision, comment string) (*domain.BugReport, error) {
	rd, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.bugRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	actor := domain.ActorRef{ID: rd.UserID, Name: rd.Name}
	if err := report.ApplyTesterDecision(decision, comment, actor, s.now()); err != nil {
		return nil, err
	}
	if err := s.bugRepo.Save(ctx, nil, report); err != nil {
		return nil, fmt.Errorf("save bug report: %w", err)
	}
	s.log.Info("Tester decision recorded", "bugID", report.ID, "decision", decision, "status", report.Status)

	s.notifier.NotifyTesterDecision(report)
	s.emitStatusChanged(ctx, report, actor)
	return report, nil
}

// AddComment appends an immutable comment. Admins and the reporting tester may
// comment; other QA users have no business on the report.
func (s *bugReportService) AddComment(ctx context.Context, id uuid.UUID, text string) (*domain.BugReport, error) {
	rd, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.bugRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rd.Role == string(domain.RoleQA) && report.ReportedBy != rd.UserID {
		return nil, fmt.Errorf("%w: not your report", domain.ErrForbidden)
	}

	actor := domain.ActorRef{ID: rd.UserID, Name: rd.Name}
	comment, err := report.AppendComment(text, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.bugRepo.Save(ctx, nil, report); err != nil {
		return nil, fmt.Errorf("save bug report: %w", err)
	}

	if rd.Role == string(domain.RoleAdmin) {
		s.notifier.NotifyAdminComment(report, comment)
	}
	s.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.BugChannel(report.ID),
		Event:   realtime.SSEEventBugCommented,
		Data: map[string]any{
			"bugId":   report.ID,
			"comment": comment,
		},
	})
	return report, nil
}

func (s *bugReportService) StatsSummary(ctx context.Context) (*BugStatsSummary, error) {
	total, err := s.bugRepo.CountAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count bugs: %w", err)
	}
	statusRows, err := s.bugRepo.CountsByStatus(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	severityRows, err := s.bugRepo.CountsBySeverity(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	topApps, err := s.bugRepo.TopApplications(ctx, nil, 5)
	if err != nil {
		return nil, fmt.Errorf("top applications: %w", err)
	}

	summary := &BugStatsSummary{
		Total:           total,
		ByStatus:        make(map[domain.BugStatus]int64),
		BySeverity:      make(map[domain.Severity]int64),
		TopApplications: topApps,
	}
	// Zero-filled so absent buckets still show up in the payload.
	for _, st := range []domain.BugStatus{domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved, domain.StatusPendingTest, domain.StatusClosed} {
		summary.ByStatus[st] = 0
	}
	for _, sev := range []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical} {
		summary.BySeverity[sev] = 0
	}
	for _, row := range statusRows {
		summary.ByStatus[row.Status] = row.Count
	}
	for _, row := range severityRows {
		summary.BySeverity[row.Severity] = row.Count
	}
	return summary, nil
}

func (s *bugReportService) StatsTrends(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := s.bugRepo.CountsByDay(ctx, nil, since)
	if err != nil {
		return nil, fmt.Errorf("count by day: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		day := row.Day
		// Drivers format DATE differently; the calendar day is the first
		// ten characters either way.
		if len(day) >= 10 {
			day = day[:10]
		}
		counts[day] += row.Count
	}

	points := make([]TrendPoint, 0, days)
	for d := 0; d < days; d++ {
		day := since.AddDate(0, 0, d).Format("2006-01-02")
		points = append(points, TrendPoint{Date: day, Count: counts[day]})
	}
	return points, nil
}

func (s *bugReportService) emitStatusChanged(ctx context.Context, report *domain.BugReport, actor domain.ActorRef) {
	data := map[string]any{
		"bugId":     report.ID,
		"status":    report.Status,
		"changedBy": actor,
	}
	if report.TesterDecision != nil {
		data["testerDecision"] = report.TesterDecision
	}
	s.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.BugChannel(report.ID),
		Event:   realtime.SSEEventBugStatusChanged,
		Data:    data,
	})
	s.emitGlobal(ctx, realtime.SSEEventBugStatusChanged, data)
}

func (s *bugReportService) emitGlobal(ctx context.Context, event realtime.SSEEvent, data any) {
	s.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.GlobalChannel,
		Event:   event,
		Data:    data,
	})
}

func isAssigned(app *domain.Application, userID uuid.UUID) bool {
	for _, qa := range app.AssignedQAs {
		if qa.ID == userID {
			return true
		}
	}
	return false
}
