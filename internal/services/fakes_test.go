package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/clients/sendgrid"
	"github.com/citrusqa/bitacora-backend/internal/clients/twilio"
	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/ctxutil"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func actorCtx(userID uuid.UUID, role domain.Role, name string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		UserID: userID,
		Role:   string(role),
		Name:   name,
	})
}

// fakeBugReportRepo keeps reports in a map. Only the methods the service tests
// touch are backed; the stats methods return canned rows.
type fakeBugReportRepo struct {
	mu         sync.Mutex
	reports    map[uuid.UUID]*domain.BugReport
	lastFilter repos.BugReportFilter
	saved      int

	statusRows   []repos.StatusCount
	severityRows []repos.SeverityCount
	topApps      []repos.ApplicationCount
	dayRows      []repos.DayCount
}

func newFakeBugReportRepo() *fakeBugReportRepo {
	return &fakeBugReportRepo{reports: make(map[uuid.UUID]*domain.BugReport)}
}

func (f *fakeBugReportRepo) Create(_ context.Context, _ *gorm.DB, report *domain.BugReport) (*domain.BugReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeBugReportRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.BugReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return report, nil
}

func (f *fakeBugReportRepo) GetWithRelations(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.BugReport, error) {
	return f.GetByID(ctx, tx, id)
}

func (f *fakeBugReportRepo) List(_ context.Context, _ *gorm.DB, filter repos.BugReportFilter) ([]*domain.BugReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []*domain.BugReport
	for _, r := range f.reports {
		if filter.ReportedBy != uuid.Nil && r.ReportedBy != filter.ReportedBy {
			continue
		}
		if filter.ApplicationID != uuid.Nil && r.ApplicationID != filter.ApplicationID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBugReportRepo) Save(_ context.Context, _ *gorm.DB, report *domain.BugReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = report
	f.saved++
	return nil
}

func (f *fakeBugReportRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reports, id)
	return nil
}

func (f *fakeBugReportRepo) CountAll(context.Context, *gorm.DB) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.reports)), nil
}

func (f *fakeBugReportRepo) CountsByStatus(context.Context, *gorm.DB) ([]repos.StatusCount, error) {
	return f.statusRows, nil
}

func (f *fakeBugReportRepo) CountsBySeverity(context.Context, *gorm.DB) ([]repos.SeverityCount, error) {
	return f.severityRows, nil
}

func (f *fakeBugReportRepo) TopApplications(context.Context, *gorm.DB, int) ([]repos.ApplicationCount, error) {
	return f.topApps, nil
}

func (f *fakeBugReportRepo) CountsByDay(context.Context, *gorm.DB, time.Time) ([]repos.DayCount, error) {
	return f.dayRows, nil
}

type fakeApplicationRepo struct {
	mu   sync.Mutex
	apps map[uuid.UUID]*domain.Application
}

func newFakeApplicationRepo(apps ...*domain.Application) *fakeApplicationRepo {
	f := &fakeApplicationRepo{apps: make(map[uuid.UUID]*domain.Application)}
	for _, a := range apps {
		f.apps[a.ID] = a
	}
	return f
}

func (f *fakeApplicationRepo) Create(_ context.Context, _ *gorm.DB, app *domain.Application) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[app.ID] = app
	return app, nil
}

func (f *fakeApplicationRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return app, nil
}

func (f *fakeApplicationRepo) List(context.Context, *gorm.DB) ([]*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Application
	for _, a := range f.apps {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeApplicationRepo) ListAssignedTo(_ context.Context, _ *gorm.DB, userID uuid.UUID) ([]*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Application
	for _, a := range f.apps {
		for _, qa := range a.AssignedQAs {
			if qa.ID == userID {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeApplicationRepo) NameExists(_ context.Context, _ *gorm.DB, name string, excludeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.Name == name && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeApplicationRepo) Update(_ context.Context, _ *gorm.DB, app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[app.ID] = app
	return nil
}

func (f *fakeApplicationRepo) ReplaceAssignedQAs(_ context.Context, _ *gorm.DB, app *domain.Application, qas []*domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app.AssignedQAs = nil
	for _, qa := range qas {
		app.AssignedQAs = append(app.AssignedQAs, *qa)
	}
	f.apps[app.ID] = app
	return nil
}

func (f *fakeApplicationRepo) UnassignEverywhere(_ context.Context, _ *gorm.DB, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		kept := a.AssignedQAs[:0]
		for _, qa := range a.AssignedQAs {
			if qa.ID != userID {
				kept = append(kept, qa)
			}
		}
		a.AssignedQAs = kept
	}
	return nil
}

func (f *fakeApplicationRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.apps, id)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(_ context.Context, _ *gorm.DB, user *domain.User) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, _ *gorm.DB, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, tx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeUserRepo) ListByRole(_ context.Context, _ *gorm.DB, role domain.Role) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) ListByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(_ context.Context, _ *gorm.DB, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeReminderRepo struct {
	mu        sync.Mutex
	reminders []*domain.TestingReminder
}

func (f *fakeReminderRepo) Create(_ context.Context, _ *gorm.DB, reminder *domain.TestingReminder) (*domain.TestingReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, reminder)
	return reminder, nil
}

func (f *fakeReminderRepo) ListByApplication(_ context.Context, _ *gorm.DB, applicationID uuid.UUID) ([]*domain.TestingReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.TestingReminder
	for _, r := range f.reminders {
		if r.ApplicationID == applicationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) DeleteByApplication(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}

// fakeEmitter records every emitted message.
type fakeEmitter struct {
	mu       sync.Mutex
	messages []realtime.SSEMessage
}

func (f *fakeEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeEmitter) byEvent(event realtime.SSEEvent) []realtime.SSEMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []realtime.SSEMessage
	for _, m := range f.messages {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// fakeNotifier records which notifications fired.
type fakeNotifier struct {
	mu            sync.Mutex
	pendingTest   []*domain.BugReport
	decisions     []*domain.BugReport
	versions      []*domain.Application
	adminComments []*domain.BugReport
}

func (f *fakeNotifier) NotifyPendingTest(report *domain.BugReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingTest = append(f.pendingTest, report)
}

func (f *fakeNotifier) NotifyTesterDecision(report *domain.BugReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, report)
}

func (f *fakeNotifier) NotifyVersionUpdate(app *domain.Application, _, _ string, _ domain.ActorRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, app)
}

func (f *fakeNotifier) NotifyAdminComment(report *domain.BugReport, _ domain.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminComments = append(f.adminComments, report)
}

func (f *fakeNotifier) SendTestNotification(context.Context, uuid.UUID) (*TestNotificationResult, error) {
	return &TestNotificationResult{}, nil
}

type fakeEmailClient struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
}

func (f *fakeEmailClient) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202}, nil
}

type fakeWhatsAppClient struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeWhatsAppClient) SendMessage(_ context.Context, req twilio.SendMessageRequest) (*twilio.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req.To)
	return &twilio.Message{}, nil
}

func (f *fakeWhatsAppClient) SendWhatsApp(_ context.Context, to string, _ string) (*twilio.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return &twilio.Message{}, nil
}
