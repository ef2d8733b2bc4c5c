package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
)

func prefUser(name string, email bool, whatsapp bool) *domain.User {
	u := &domain.User{
		ID:             uuid.New(),
		Name:           name,
		Email:          name + "@example.com",
		Role:           domain.RoleQA,
		WhatsAppNumber: "+5215512345678",
	}
	u.Preferences = datatypes.NewJSONType(domain.NotificationPreferences{Email: email, WhatsApp: whatsapp})
	return u
}

func newTestNotifier(t *testing.T, users *fakeUserRepo, apps *fakeApplicationRepo, email *fakeEmailClient, whatsapp *fakeWhatsAppClient, emitter *fakeEmitter) *notifier {
	t.Helper()
	return NewNotifier(mustTestLogger(t), users, apps, &fakeReminderRepo{}, email, whatsapp, emitter).(*notifier)
}

func TestDispatchHonorsChannelPreferences(t *testing.T) {
	both := prefUser("both", true, true)
	emailOnly := prefUser("emailonly", true, false)
	muted := prefUser("muted", false, false)
	noNumber := prefUser("nonumber", true, true)
	noNumber.WhatsAppNumber = ""

	email := &fakeEmailClient{}
	whatsapp := &fakeWhatsAppClient{}
	emitter := &fakeEmitter{}
	n := newTestNotifier(t, newFakeUserRepo(), newFakeApplicationRepo(), email, whatsapp, emitter)

	n.dispatch(context.Background(), []*domain.User{both, emailOnly, muted, noNumber}, message{
		Subject: "subject",
		Text:    "text",
		Data:    map[string]any{"type": "test"},
	})

	if len(email.sent) != 3 {
		t.Fatalf("emails sent: want=3 got=%d", len(email.sent))
	}
	if len(whatsapp.sent) != 1 {
		t.Fatalf("whatsapp sent: want=1 got=%d", len(whatsapp.sent))
	}

	// The realtime notification ignores channel preferences; every recipient
	// gets the feed entry.
	feed := emitter.byEvent(realtime.SSEEventNotificationNew)
	if len(feed) != 4 {
		t.Fatalf("notification:new events: want=4 got=%d", len(feed))
	}
	for _, m := range feed {
		if m.Channel == "" || m.Channel == realtime.GlobalChannel {
			t.Fatalf("feed entry must target a user channel, got=%q", m.Channel)
		}
	}
}

func TestDispatchWithNilClients(t *testing.T) {
	user := prefUser("ana", true, true)
	emitter := &fakeEmitter{}
	n := NewNotifier(mustTestLogger(t), newFakeUserRepo(), newFakeApplicationRepo(), &fakeReminderRepo{}, nil, nil, emitter).(*notifier)

	// Channels without a configured client are skipped, not crashed on.
	n.dispatch(context.Background(), []*domain.User{user}, message{Subject: "s", Text: "t"})

	if len(emitter.byEvent(realtime.SSEEventNotificationNew)) != 1 {
		t.Fatalf("realtime feed must still fire without outbound clients")
	}
}

func TestSendTestNotification(t *testing.T) {
	user := prefUser("ana", true, true)
	email := &fakeEmailClient{}
	whatsapp := &fakeWhatsAppClient{}
	n := newTestNotifier(t, newFakeUserRepo(user), newFakeApplicationRepo(), email, whatsapp, &fakeEmitter{})

	result, err := n.SendTestNotification(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("SendTestNotification: %v", err)
	}
	if !result.EmailSent || !result.WhatsAppSent {
		t.Fatalf("result: want both channels sent, got=%+v", result)
	}

	muted := prefUser("muted", false, false)
	n2 := newTestNotifier(t, newFakeUserRepo(muted), newFakeApplicationRepo(), email, whatsapp, &fakeEmitter{})
	result, err = n2.SendTestNotification(context.Background(), muted.ID)
	if err != nil {
		t.Fatalf("SendTestNotification muted: %v", err)
	}
	if result.EmailSent || result.WhatsAppSent {
		t.Fatalf("muted user: want no channels sent, got=%+v", result)
	}
}

func TestNotifyVersionUpdateWritesReminder(t *testing.T) {
	qa1 := prefUser("qa1", true, false)
	qa2 := prefUser("qa2", false, false)
	app := &domain.Application{
		ID:          uuid.New(),
		Name:        "Billing",
		Version:     "2.1.0",
		AssignedQAs: []domain.User{*qa1, *qa2},
	}

	email := &fakeEmailClient{}
	reminders := &fakeReminderRepo{}
	emitter := &fakeEmitter{}
	n := NewNotifier(mustTestLogger(t), newFakeUserRepo(qa1, qa2), newFakeApplicationRepo(app), reminders, email, nil, emitter).(*notifier)

	n.NotifyVersionUpdate(app, "2.0.0", "Fixed checkout flow", domain.ActorRef{ID: uuid.New(), Name: "Root"})

	// The notification runs detached from the caller; poll for the reminder.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, _ := reminders.ListByApplication(context.Background(), nil, app.ID)
		if len(rows) == 1 {
			if len(rows[0].NotifiedQAs) != 2 {
				t.Fatalf("notified QAs: want=2 got=%d", len(rows[0].NotifiedQAs))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for testing reminder row")
		}
		time.Sleep(10 * time.Millisecond)
	}

	email.mu.Lock()
	sent := len(email.sent)
	email.mu.Unlock()
	if sent != 1 {
		t.Fatalf("version update emails: want=1 (qa2 muted) got=%d", sent)
	}
}
