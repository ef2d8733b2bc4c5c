package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

type bugServiceFixture struct {
	svc      *bugReportService
	bugs     *fakeBugReportRepo
	apps     *fakeApplicationRepo
	notifier *fakeNotifier
	emitter  *fakeEmitter
}

func newBugServiceFixture(t *testing.T, apps ...*domain.Application) *bugServiceFixture {
	t.Helper()
	f := &bugServiceFixture{
		bugs:     newFakeBugReportRepo(),
		apps:     newFakeApplicationRepo(apps...),
		notifier: &fakeNotifier{},
		emitter:  &fakeEmitter{},
	}
	f.svc = NewBugReportService(nil, mustTestLogger(t), f.bugs, f.apps, f.notifier, f.emitter).(*bugReportService)
	return f
}

func validInput(appID uuid.UUID) CreateBugReportInput {
	return CreateBugReportInput{
		Title:            "Crash on save",
		Description:      "Saving a draft crashes the app",
		StepsToReproduce: "1. Open draft 2. Press save",
		ExpectedBehavior: "Draft is saved",
		ActualBehavior:   "App crashes",
		Severity:         domain.SeverityHigh,
		ApplicationID:    appID,
		Environment:      "Android 14, v2.0.1",
	}
}

func TestCreateRequiresAssignment(t *testing.T) {
	qa := &domain.User{ID: uuid.New(), Name: "Ana", Role: domain.RoleQA}
	app := &domain.Application{ID: uuid.New(), Name: "Billing", AssignedQAs: []domain.User{*qa}}
	f := newBugServiceFixture(t, app)

	outsider := uuid.New()
	_, err := f.svc.Create(actorCtx(outsider, domain.RoleQA, "Maria"), validInput(app.ID))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unassigned QA: want=ErrForbidden got=%v", err)
	}

	report, err := f.svc.Create(actorCtx(qa.ID, domain.RoleQA, qa.Name), validInput(app.ID))
	if err != nil {
		t.Fatalf("assigned QA create: %v", err)
	}
	if report.Status != domain.StatusOpen {
		t.Fatalf("new report status: want=%s got=%s", domain.StatusOpen, report.Status)
	}
	if len(report.StatusHistory) != 1 {
		t.Fatalf("new report history: want=1 entry got=%d", len(report.StatusHistory))
	}

	created := f.emitter.byEvent(realtime.SSEEventBugCreated)
	if len(created) != 1 || created[0].Channel != realtime.GlobalChannel {
		t.Fatalf("bug:created on global feed: got=%v", created)
	}
}

func TestCreateValidatesFields(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)
	ctx := actorCtx(uuid.New(), domain.RoleAdmin, "Root")

	missing := validInput(app.ID)
	missing.Title = "  "
	if _, err := f.svc.Create(ctx, missing); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank title: want=ErrInvalidInput got=%v", err)
	}

	badSeverity := validInput(app.ID)
	badSeverity.Severity = "urgent"
	if _, err := f.svc.Create(ctx, badSeverity); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown severity: want=ErrInvalidInput got=%v", err)
	}

	if _, err := f.svc.Create(ctx, validInput(uuid.New())); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown application: want=ErrNotFound got=%v", err)
	}
}

func TestListScopesQAToOwnReports(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)
	qaID := uuid.New()

	if _, err := f.svc.List(actorCtx(qaID, domain.RoleQA, "Ana"), repos.BugReportFilter{}); err != nil {
		t.Fatalf("List as QA: %v", err)
	}
	if f.bugs.lastFilter.ReportedBy != qaID {
		t.Fatalf("QA list filter: want reportedBy=%s got=%s", qaID, f.bugs.lastFilter.ReportedBy)
	}

	if _, err := f.svc.List(actorCtx(uuid.New(), domain.RoleAdmin, "Root"), repos.BugReportFilter{}); err != nil {
		t.Fatalf("List as admin: %v", err)
	}
	if f.bugs.lastFilter.ReportedBy != uuid.Nil {
		t.Fatalf("admin list filter must not scope by reporter, got=%s", f.bugs.lastFilter.ReportedBy)
	}
}

func TestGetHidesForeignReportsFromQA(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)
	reporter := uuid.New()

	report, err := f.svc.Create(actorCtx(reporter, domain.RoleAdmin, "Root"), validInput(app.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Get(actorCtx(uuid.New(), domain.RoleQA, "Ana"), report.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign QA get: want=ErrForbidden got=%v", err)
	}
	if _, err := f.svc.Get(actorCtx(uuid.New(), domain.RoleAdmin, "Root2"), report.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestSetStatusIsAdminOnly(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)
	reporter := uuid.New()
	report, err := f.svc.Create(actorCtx(reporter, domain.RoleAdmin, "Root"), validInput(app.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.SetStatus(actorCtx(reporter, domain.RoleQA, "Ana"), report.ID, domain.StatusInProgress)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("QA status change: want=ErrForbidden got=%v", err)
	}

	admin := actorCtx(uuid.New(), domain.RoleAdmin, "Root")
	if _, err := f.svc.SetStatus(admin, report.ID, domain.StatusResolved); err != nil {
		t.Fatalf("SetStatus(resolved): %v", err)
	}
	got, err := f.svc.SetStatus(admin, report.ID, domain.StatusPendingTest)
	if err != nil {
		t.Fatalf("SetStatus(pending-test): %v", err)
	}
	if got.Status != domain.StatusPendingTest {
		t.Fatalf("status: want=%s got=%s", domain.StatusPendingTest, got.Status)
	}

	// pending-test pings the reporting tester and announces the change on the
	// bug room plus the global feed.
	if len(f.notifier.pendingTest) != 1 {
		t.Fatalf("pending-test notifications: want=1 got=%d", len(f.notifier.pendingTest))
	}
	changed := f.emitter.byEvent(realtime.SSEEventBugStatusChanged)
	if len(changed) != 4 {
		t.Fatalf("statusChanged emissions: want=4 got=%d", len(changed))
	}
}

func TestSetStatusRejectsInvalidTransition(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)
	report, err := f.svc.Create(actorCtx(uuid.New(), domain.RoleAdmin, "Root"), validInput(app.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.SetStatus(actorCtx(uuid.New(), domain.RoleAdmin, "Root"), report.ID, domain.StatusPendingTest)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("open->pending-test: want=ErrInvalidTransition got=%v", err)
	}
	if f.bugs.saved != 0 {
		t.Fatalf("rejected transition must not save, got %d saves", f.bugs.saved)
	}
}

func TestRecordTesterDecisionReporterOnly(t *testing.T) {
	qa := &domain.User{ID: uuid.New(), Name: "Ana", Role: domain.RoleQA}
	app := &domain.Application{ID: uuid.New(), Name: "Billing", AssignedQAs: []domain.User{*qa}}
	f := newBugServiceFixture(t, app)

	report, err := f.svc.Create(actorCtx(qa.ID, domain.RoleQA, qa.Name), validInput(app.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	admin := actorCtx(uuid.New(), domain.RoleAdmin, "Root")
	if _, err := f.svc.SetStatus(admin, report.ID, domain.StatusResolved); err != nil {
		t.Fatalf("SetStatus(resolved): %v", err)
	}
	if _, err := f.svc.SetStatus(admin, report.ID, domain.StatusPendingTest); err != nil {
		t.Fatalf("SetStatus(pending-test): %v", err)
	}

	_, err = f.svc.RecordTesterDecision(actorCtx(uuid.New(), domain.RoleQA, "Maria"), report.ID, domain.DecisionFixed, "looks good")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-reporter decision: want=ErrForbidden got=%v", err)
	}

	got, err := f.svc.RecordTesterDecision(actorCtx(qa.ID, domain.RoleQA, qa.Name), report.ID, domain.DecisionFixed, "verified on v2.1")
	if err != nil {
		t.Fatalf("reporter decision: %v", err)
	}
	if got.Status != domain.StatusClosed {
		t.Fatalf("status after fixed verdict: want=%s got=%s", domain.StatusClosed, got.Status)
	}
	if len(f.notifier.decisions) != 1 {
		t.Fatalf("decision notifications: want=1 got=%d", len(f.notifier.decisions))
	}
}

func TestAddCommentPermissionsAndNotify(t *testing.T) {
	qa := &domain.User{ID: uuid.New(), Name: "Ana", Role: domain.RoleQA}
	app := &domain.Application{ID: uuid.New(), Name: "Billing", AssignedQAs: []domain.User{*qa}}
	f := newBugServiceFixture(t, app)

	report, err := f.svc.Create(actorCtx(qa.ID, domain.RoleQA, qa.Name), validInput(app.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.AddComment(actorCtx(uuid.New(), domain.RoleQA, "Maria"), report.ID, "me too"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign QA comment: want=ErrForbidden got=%v", err)
	}

	if _, err := f.svc.AddComment(actorCtx(qa.ID, domain.RoleQA, qa.Name), report.ID, "still happening"); err != nil {
		t.Fatalf("reporter comment: %v", err)
	}
	if len(f.notifier.adminComments) != 0 {
		t.Fatalf("tester comment must not trigger admin-comment notification")
	}

	got, err := f.svc.AddComment(actorCtx(uuid.New(), domain.RoleAdmin, "Root"), report.ID, "fix deployed")
	if err != nil {
		t.Fatalf("admin comment: %v", err)
	}
	if len(got.Comments) != 2 {
		t.Fatalf("comments: want=2 got=%d", len(got.Comments))
	}
	if len(f.notifier.adminComments) != 1 {
		t.Fatalf("admin-comment notifications: want=1 got=%d", len(f.notifier.adminComments))
	}
	commented := f.emitter.byEvent(realtime.SSEEventBugCommented)
	if len(commented) != 2 || commented[0].Channel != realtime.BugChannel(report.ID) {
		t.Fatalf("bug:commented on bug room: got=%v", commented)
	}
}

func TestStatsSummaryZeroFillsBuckets(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)
	f.bugs.statusRows = []repos.StatusCount{{Status: domain.StatusOpen, Count: 3}}
	f.bugs.severityRows = []repos.SeverityCount{{Severity: domain.SeverityCritical, Count: 1}}
	f.bugs.topApps = []repos.ApplicationCount{{ApplicationID: app.ID, Name: app.Name, Count: 3}}

	summary, err := f.svc.StatsSummary(actorCtx(uuid.New(), domain.RoleAdmin, "Root"))
	if err != nil {
		t.Fatalf("StatsSummary: %v", err)
	}
	if len(summary.ByStatus) != 5 {
		t.Fatalf("status buckets: want=5 got=%d", len(summary.ByStatus))
	}
	if len(summary.BySeverity) != 4 {
		t.Fatalf("severity buckets: want=4 got=%d", len(summary.BySeverity))
	}
	if summary.ByStatus[domain.StatusOpen] != 3 || summary.ByStatus[domain.StatusClosed] != 0 {
		t.Fatalf("status counts wrong: %v", summary.ByStatus)
	}
}

func TestStatsTrendsZeroFillsDays(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing"}
	f := newBugServiceFixture(t, app)

	fixed := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }
	f.bugs.dayRows = []repos.DayCount{
		{Day: "2026-08-27T00:00:00Z", Count: 2},
		{Day: "2026-08-28", Count: 1},
	}

	points, err := f.svc.StatsTrends(actorCtx(uuid.New(), domain.RoleAdmin, "Root"), 7)
	if err != nil {
		t.Fatalf("StatsTrends: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("trend points: want=7 got=%d", len(points))
	}
	if points[0].Date != "2026-08-22" || points[6].Date != "2026-08-28" {
		t.Fatalf("trend range: got %s..%s", points[0].Date, points[6].Date)
	}
	if points[5].Count != 2 || points[6].Count != 1 {
		t.Fatalf("trend counts: got %d and %d", points[5].Count, points[6].Count)
	}
	for _, p := range points[:5] {
		if p.Count != 0 {
			t.Fatalf("empty day %s: want=0 got=%d", p.Date, p.Count)
		}
	}
}
