package jobs

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository/memrepo"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// testClock is a settable clock shared by services and sweepers.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memrepo.Store
	clock    *testClock
	mailer   *mockMailer
	capsules *services.CapsuleService
	notifier *services.NotificationService
	owner    *models.User
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	store := memrepo.New()
	ctx := context.Background()
	_, err := store.SeedTemplates(ctx, services.DefaultTemplates())
	require.NoError(t, err)
	owner, err := store.CreateUser(ctx, &models.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	clock := &testClock{now: start}
	mailer := new(mockMailer)
	return &fixture{
		store:    store,
		clock:    clock,
		mailer:   mailer,
		capsules: services.NewCapsuleService(store, services.NewEmotionService(nil, 0), services.NewTemplateService(store), nopStorage{}, clock.Now),
		notifier: services.NewNotificationService(store, store, mailer, "http://app", clock.Now),
		owner:    owner,
	}
}

func (f *fixture) createCapsule(t *testing.T, title string, unlockAt time.Time) primitive.ObjectID {
	t.Helper()
	res, err := f.capsules.CreateCapsule(context.Background(), f.owner.ID, services.CreateCapsuleInput{
		Title:    title,
		Message:  "see you in the future",
		UnlockAt: unlockAt,
	})
	require.NoError(t, err)
	return res.CapsuleID
}

type nopStorage struct{}

func (nopStorage) Save(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	return key, nil
}

func (nopStorage) Delete(context.Context, string) error { return nil }
