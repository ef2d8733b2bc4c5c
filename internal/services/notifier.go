package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/clients/sendgrid"
	"github.com/citrusqa/bitacora-backend/internal/clients/twilio"
	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/repos"
)

// Notifier fans workflow events out to email, WhatsApp and the realtime feed.
// Every Notify method is fire-and-forget: it detaches from the caller's
// request, and per-recipient failures are logged and swallowed so a channel
// outage never fails the mutation that triggered it.
type Notifier interface {
	NotifyPendingTest(report *domain.BugReport)
	NotifyTesterDecision(report *domain.BugReport)
	NotifyVersionUpdate(app *domain.Application, previousVersion, changelog string, actor domain.ActorRef)
	NotifyAdminComment(report *domain.BugReport, comment domain.Comment)
	SendTestNotification(ctx context.Context, userID uuid.UUID) (*TestNotificationResult, error)
}

type TestNotificationResult struct {
	EmailSent    bool `json:"emailSent"`
	WhatsAppSent bool `json:"whatsappSent"`
}

type notifier struct {
	log          *logger.Logger
	userRepo     repos.UserRepo
	appRepo      repos.ApplicationRepo
	reminderRepo repos.TestingReminderRepo
	email        sendgrid.Client
	whatsapp     twilio.Client
	emit         SSEEmitter
	timeout      time.Duration
}

func NewNotifier(
	log *logger.Logger,
	userRepo repos.UserRepo,
	appRepo repos.ApplicationRepo,
	reminderRepo repos.TestingReminderRepo,
	email sendgrid.Client,
	whatsapp twilio.Client,
	emit SSEEmitter,
) Notifier {
	return &notifier{
		log:          log.With("service", "Notifier"),
		userRepo:     userRepo,
		appRepo:      appRepo,
		reminderRepo: reminderRepo,
		email:        email,
		whatsapp:     whatsapp,
		emit:         emit,
		timeout:      30 * time.Second,
	}
}

type message struct {
	Subject string
	Text    string
	HTML    string
	// Event payload for the recipient's notification:new feed.
	Data map[string]any
}

func (n *notifier) NotifyPendingTest(report *domain.BugReport) {
	if n == nil || report == nil {
		return
	}
	go n.detached(func(ctx context.Context) {
		appName := n.applicationName(ctx, report.ApplicationID)
		reporter, err := n.userRepo.GetByID(ctx, nil, report.ReportedBy)
		if err != nil {
			n.log.Warn("Pending-test notify: reporter lookup failed", "bugID", report.ID, "error", err)
			return
		}
		msg := message{
			Subject: fmt.Sprintf("Bug ready for testing: %s", report.Title),
			Text: fmt.Sprintf("Hi %s,\n\nThe bug %q you reported on %s has been marked as resolved and is waiting for your validation.\n\nPlease test the fix and record your decision.",
				reporter.Name, report.Title, appName),
			HTML: fmt.Sprintf("<p>Hi %s,</p><p>The bug <strong>%s</strong> you reported on <strong>%s</strong> has been marked as resolved and is waiting for your validation.</p><p>Please test the fix and record your decision.</p>",
				reporter.Name, report.Title, appName),
			Data: map[string]any{
				"type":        "pending-test",
				"bugId":       report.ID,
				"title":       report.Title,
				"application": appName,
			},
		}
		n.dispatch(ctx, []*domain.User{reporter}, msg)
	})
}

func (n *notifier) NotifyTesterDecision(report *domain.BugReport) {
	if n == nil || report == nil || report.TesterDecision == nil {
		return
	}
	decision := *report.TesterDecision
	go n.detached(func(ctx context.Context) {
		appName := n.applicationName(ctx, report.ApplicationID)
		admins, err := n.userRepo.ListByRole(ctx, nil, domain.RoleAdmin)
		if err != nil {
			n.log.Warn("Tester-decision notify: admin lookup failed", "bugID", report.ID, "error", err)
			return
		}
		msg := message{
			Subject: fmt.Sprintf("Tester decision on %s: %s", report.Title, decision.Decision),
			Text: fmt.Sprintf("The reporter decided %q on bug %q (%s).\n\nComment: %s\nNew status: %s",
				decision.Decision, report.Title, appName, decision.Comment, report.Status),
			HTML: fmt.Sprintf("<p>The reporter decided <strong>%s</strong> on bug <strong>%s</strong> (%s).</p><p>Comment: %s</p><p>New status: <strong>%s</strong></p>",
				decision.Decision, report.Title, appName, decision.Comment, report.Status),
			Data: map[string]any{
				"type":        "tester-decision",
				"bugId":       report.ID,
				"title":       report.Title,
				"application": appName,
				"decision":    decision.Decision,
				"status":      report.Status,
			},
		}
		n.dispatch(ctx, admins, msg)
	})
}

func (n *notifier) NotifyVersionUpdate(app *domain.Application, previousVersion, changelog string, actor domain.ActorRef) {
	if n == nil || app == nil {
		return
	}
	go n.detached(func(ctx context.Context) {
		full, err := n.appRepo.GetByID(ctx, nil, app.ID)
		if err != nil {
			n.log.Warn("Version-update notify: application lookup failed", "applicationID", app.ID, "error", err)
			return
		}
		qas := make([]*domain.User, 0, len(full.AssignedQAs))
		notified := make([]uuid.UUID, 0, len(full.AssignedQAs))
		for i := range full.AssignedQAs {
			qas = append(qas, &full.AssignedQAs[i])
			notified = append(notified, full.AssignedQAs[i].ID)
		}
		if len(qas) == 0 {
			n.log.Info("Version-update notify: no assigned QAs", "applicationID", app.ID)
			return
		}

		msg := message{
			Subject: fmt.Sprintf("%s updated to %s - testing needed", full.Name, full.Version),
			Text: fmt.Sprintf("%s was updated from %s to %s.\n\nChangelog:\n%s\n\nPlease run your test passes against the new version.",
				full.Name, previousVersion, full.Version, changelog),
			HTML: fmt.Sprintf("<p><strong>%s</strong> was updated from %s to <strong>%s</strong>.</p><p>Changelog:</p><p>%s</p><p>Please run your test passes against the new version.</p>",
				full.Name, previousVersion, full.Version, changelog),
			Data: map[string]any{
				"type":            "version-update",
				"applicationId":   full.ID,
				"application":     full.Name,
				"version":         full.Version,
				"previousVersion": previousVersion,
			},
		}
		n.dispatch(ctx, qas, msg)

		reminder := &domain.TestingReminder{
			ID:            uuid.New(),
			ApplicationID: full.ID,
			SentBy:        actor.ID,
			NotifiedQAs:   datatypes.JSONSlice[uuid.UUID](notified),
		}
		if _, err := n.reminderRepo.Create(ctx, nil, reminder); err != nil {
			n.log.Warn("Version-update notify: reminder write failed", "applicationID", app.ID, "error", err)
		}
	})
}

func (n *notifier) NotifyAdminComment(report *domain.BugReport, comment domain.Comment) {
	if n == nil || report == nil {
		return
	}
	go n.detached(func(ctx context.Context) {
		app, err := n.appRepo.GetByID(ctx, nil, report.ApplicationID)
		if err != nil {
			n.log.Warn("Admin-comment notify: application lookup failed", "bugID", report.ID, "error", err)
			return
		}
		qas := make([]*domain.User, 0, len(app.AssignedQAs))
		for i := range app.AssignedQAs {
			// The commenting admin is never in the assigned set, but the
			// reporter might not be either; both get the realtime event
			// through the bug room instead.
			qas = append(qas, &app.AssignedQAs[i])
		}
		if len(qas) == 0 {
			return
		}
		msg := message{
			Subject: fmt.Sprintf("New admin comment on %s", report.Title),
			Text: fmt.Sprintf("%s commented on bug %q (%s):\n\n%s",
				comment.UserName, report.Title, app.Name, comment.Text),
			HTML: fmt.Sprintf("<p><strong>%s</strong> commented on bug <strong>%s</strong> (%s):</p><blockquote>%s</blockquote>",
				comment.UserName, report.Title, app.Name, comment.Text),
			Data: map[string]any{
				"type":        "admin-comment",
				"bugId":       report.ID,
				"title":       report.Title,
				"application": app.Name,
				"comment":     comment.Text,
			},
		}
		n.dispatch(ctx, qas, msg)
	})
}

func (n *notifier) SendTestNotification(ctx context.Context, userID uuid.UUID) (*TestNotificationResult, error) {
	user, err := n.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	prefs := user.Preferences.Data()
	result := &TestNotificationResult{}

	if prefs.Email && user.Email != "" && n.email != nil {
		_, err := n.email.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: user.Email, Name: user.Name}},
			Subject: "Test notification",
			Text:    fmt.Sprintf("Hi %s, this is a test notification. Your email channel works.", user.Name),
		})
		if err != nil {
			n.log.Warn("Test notification email failed", "userID", user.ID, "error", err)
		} else {
			result.EmailSent = true
		}
	}
	if prefs.WhatsApp && user.WhatsAppNumber != "" && n.whatsapp != nil {
		_, err := n.whatsapp.SendWhatsApp(ctx, user.WhatsAppNumber,
			fmt.Sprintf("Hi %s, this is a test notification. Your WhatsApp channel works.", user.Name))
		if err != nil {
			n.log.Warn("Test notification whatsapp failed", "userID", user.ID, "error", err)
		} else {
			result.WhatsAppSent = true
		}
	}
	return result, nil
}

// dispatch sends one message to every recipient over their enabled channels.
// Channel sends run concurrently; errors are logged, never returned.
func (n *notifier) dispatch(ctx context.Context, recipients []*domain.User, msg message) {
	g, gctx := errgroup.WithContext(ctx)

	for _, recipient := range recipients {
		r := recipient
		if r == nil {
			continue
		}
		prefs := r.Preferences.Data()

		if prefs.Email && r.Email != "" && n.email != nil {
			g.Go(func() error {
				_, err := n.email.Send(gctx, sendgrid.SendEmailRequest{
					To:      []sendgrid.EmailAddress{{Email: r.Email, Name: r.Name}},
					Subject: msg.Subject,
					Text:    msg.Text,
					HTML:    msg.HTML,
				})
				if err != nil {
					n.log.Warn("Notification email failed", "userID", r.ID, "error", err)
				}
				return nil
			})
		}
		if prefs.WhatsApp && r.WhatsAppNumber != "" && n.whatsapp != nil {
			g.Go(func() error {
				if _, err := n.whatsapp.SendWhatsApp(gctx, r.WhatsAppNumber, msg.Text); err != nil {
					n.log.Warn("Notification whatsapp failed", "userID", r.ID, "error", err)
				}
				return nil
			})
		}

		if n.emit != nil {
			n.emit.Emit(ctx, realtime.SSEMessage{
				Channel: realtime.UserChannel(r.ID),
				Event:   realtime.SSEEventNotificationNew,
				Data:    msg.Data,
			})
		}
	}

	_ = g.Wait()
}

func (n *notifier) detached(fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	fn(ctx)
}

func (n *notifier) applicationName(ctx context.Context, id uuid.UUID) string {
	app, err := n.appRepo.GetByID(ctx, nil, id)
	if err != nil {
		return "unknown application"
	}
	return app.Name
}
