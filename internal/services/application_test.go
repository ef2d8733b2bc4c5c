package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citrusqa/bitacora-backend/internal/domain"
)

type fakeVersionHistoryRepo struct {
	mu      sync.Mutex
	entries []*domain.VersionHistory
}

func (f *fakeVersionHistoryRepo) Create(_ context.Context, _ *gorm.DB, entry *domain.VersionHistory) (*domain.VersionHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeVersionHistoryRepo) ListByApplication(_ context.Context, _ *gorm.DB, applicationID uuid.UUID) ([]*domain.VersionHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.VersionHistory
	for _, e := range f.entries {
		if e.ApplicationID == applicationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeVersionHistoryRepo) DeleteByApplication(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}

func newAppServiceFixture(t *testing.T, apps *fakeApplicationRepo, users *fakeUserRepo) (*applicationService, *fakeVersionHistoryRepo, *fakeNotifier) {
	t.Helper()
	versions := &fakeVersionHistoryRepo{}
	notifier := &fakeNotifier{}
	svc := NewApplicationService(nil, mustTestLogger(t), apps, users, versions, notifier).(*applicationService)
	return svc, versions, notifier
}

func TestUpdateVersionRecordsHistoryAndNotifies(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing", Version: "2.0.0"}
	apps := newFakeApplicationRepo(app)
	svc, versions, notifier := newAppServiceFixture(t, apps, newFakeUserRepo())

	admin := uuid.New()
	ctx := actorCtx(admin, domain.RoleAdmin, "Root")

	got, err := svc.UpdateVersion(ctx, app.ID, VersionUpdateInput{Version: "2.1.0", Changelog: "Fixed checkout"})
	if err != nil {
		t.Fatalf("UpdateVersion: %v", err)
	}
	if got.Version != "2.1.0" {
		t.Fatalf("version: want=2.1.0 got=%s", got.Version)
	}

	entries, _ := versions.ListByApplication(ctx, nil, app.ID)
	if len(entries) != 1 {
		t.Fatalf("history entries: want=1 got=%d", len(entries))
	}
	entry := entries[0]
	if entry.Version != "2.1.0" || entry.PreviousVersion != "2.0.0" {
		t.Fatalf("history entry: got version=%s previous=%s", entry.Version, entry.PreviousVersion)
	}
	if entry.UpdatedBy != admin {
		t.Fatalf("history actor: want=%s got=%s", admin, entry.UpdatedBy)
	}
	if len(notifier.versions) != 1 {
		t.Fatalf("version notifications: want=1 got=%d", len(notifier.versions))
	}
}

func TestUpdateVersionValidation(t *testing.T) {
	app := &domain.Application{ID: uuid.New(), Name: "Billing", Version: "2.0.0"}
	svc, _, _ := newAppServiceFixture(t, newFakeApplicationRepo(app), newFakeUserRepo())
	ctx := actorCtx(uuid.New(), domain.RoleAdmin, "Root")

	if _, err := svc.UpdateVersion(ctx, app.ID, VersionUpdateInput{Version: "", Changelog: "c"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank version: want=ErrInvalidInput got=%v", err)
	}
	if _, err := svc.UpdateVersion(ctx, app.ID, VersionUpdateInput{Version: "2.1.0", Changelog: "  "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank changelog: want=ErrInvalidInput got=%v", err)
	}
	if _, err := svc.UpdateVersion(ctx, app.ID, VersionUpdateInput{Version: "2.0.0", Changelog: "same"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unchanged version: want=ErrInvalidInput got=%v", err)
	}
	if _, err := svc.UpdateVersion(ctx, uuid.New(), VersionUpdateInput{Version: "2.1.0", Changelog: "c"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown application: want=ErrNotFound got=%v", err)
	}
	if _, err := svc.UpdateVersion(context.Background(), app.ID, VersionUpdateInput{Version: "2.1.0", Changelog: "c"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("no actor: want=ErrUnauthorized got=%v", err)
	}
}

func TestResolveQAsValidation(t *testing.T) {
	qa := &domain.User{ID: uuid.New(), Name: "Ana", Role: domain.RoleQA}
	admin := &domain.User{ID: uuid.New(), Name: "Root", Role: domain.RoleAdmin}
	svc, _, _ := newAppServiceFixture(t, newFakeApplicationRepo(), newFakeUserRepo(qa, admin))
	ctx := context.Background()

	users, err := svc.resolveQAs(ctx, []uuid.UUID{qa.ID})
	if err != nil {
		t.Fatalf("resolveQAs: %v", err)
	}
	if len(users) != 1 || users[0].ID != qa.ID {
		t.Fatalf("resolved users: got=%v", users)
	}

	if _, err := svc.resolveQAs(ctx, []uuid.UUID{qa.ID, uuid.New()}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown id: want=ErrInvalidInput got=%v", err)
	}
	if _, err := svc.resolveQAs(ctx, []uuid.UUID{admin.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("admin in assigned set: want=ErrInvalidInput got=%v", err)
	}
	if users, err := svc.resolveQAs(ctx, nil); err != nil || users != nil {
		t.Fatalf("empty set: want nil,nil got=%v,%v", users, err)
	}
}
