package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/internal/jobs"
	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository/memrepo"
	"github.com/Dias221467/TimeCapsule/internal/services"
	jwtutil "github.com/Dias221467/TimeCapsule/pkg/jwt"
	"github.com/Dias221467/TimeCapsule/pkg/middleware"
	"github.com/Dias221467/TimeCapsule/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	handlerNow = time.Date(2026, time.May, 20, 8, 0, 0, 0, time.UTC)
	// Unlock sweeps run well after every capsule created in these tests is due.
	sweepNow = time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
)

const (
	testSecret    = "test-secret"
	operatorEmail = "ops@example.com"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type testServer struct {
	store  *memrepo.Store
	router *mux.Router
	mailer *mockMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memrepo.New()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	clock := func() time.Time { return handlerNow }
	templates := services.NewTemplateService(store)
	require.NoError(t, templates.SeedDefaults(context.Background()))
	capsules := services.NewCapsuleService(store, services.NewEmotionService(nil, 0), templates, local, clock)
	mailer := new(mockMailer)
	notifications := services.NewNotificationService(store, store, mailer, "", clock)
	cfg := &config.Config{JWTSecret: testSecret, TokenExpiry: time.Hour}

	capsuleHandler := NewCapsuleHandler(capsules, 1<<20, time.UTC)
	notificationHandler := NewNotificationHandler(notifications)
	userHandler := NewUserHandler(services.NewUserService(store), cfg)

	adminHandler := NewAdminHandler(
		jobs.NewUnlockSweeper(store, notifications, func() time.Time { return sweepNow }, 0),
		jobs.NewReminderSweeper(store, notifications, clock, nil, time.UTC),
	)

	router := mux.NewRouter()
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AuthMiddleware(testSecret), middleware.RequireOperator([]string{operatorEmail}))
	admin.HandleFunc("/sweeps/unlock", adminHandler.RunUnlockSweepHandler).Methods("POST")
	admin.HandleFunc("/sweeps/reminders", adminHandler.RunReminderSweepHandler).Methods("POST")

	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")

	protected := router.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(testSecret))
	protected.HandleFunc("/capsules", capsuleHandler.CreateCapsuleHandler).Methods("POST")
	protected.HandleFunc("/capsules", capsuleHandler.GetCapsulesHandler).Methods("GET")
	protected.HandleFunc("/capsules/{id}", capsuleHandler.GetCapsuleHandler).Methods("GET")
	protected.HandleFunc("/capsules/{id}", capsuleHandler.UpdateCapsuleHandler).Methods("PUT")
	protected.HandleFunc("/capsules/{id}", capsuleHandler.DeleteCapsuleHandler).Methods("DELETE")
	protected.HandleFunc("/notifications", notificationHandler.GetUserNotificationsHandler).Methods("GET")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsReadHandler).Methods("POST")
	protected.HandleFunc("/templates", NewTemplateHandler(templates).GetTemplatesHandler).Methods("GET")

	return &testServer{store: store, router: router, mailer: mailer}
}

func (s *testServer) do(t *testing.T, req *http.Request, userID primitive.ObjectID) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, req, userID, "ann@example.com")
}

func (s *testServer) doAs(t *testing.T, req *http.Request, userID primitive.ObjectID, email string) *httptest.ResponseRecorder {
	t.Helper()
	if !userID.IsZero() {
		token, err := jwtutil.GenerateToken(userID.Hex(), email, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func capsuleForm(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("media", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (s *testServer) createCapsule(t *testing.T, owner primitive.ObjectID, unlockDate string) primitive.ObjectID {
	t.Helper()
	body, ct := capsuleForm(t, map[string]string{
		"title":       "Hello future",
		"message":     "Remember today",
		"unlock_date": unlockDate,
	}, map[string]string{"photo.png": "png-bytes"})
	req := httptest.NewRequest(http.MethodPost, "/capsules", body)
	req.Header.Set("Content-Type", ct)

	rr := s.do(t, req, owner)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res services.CreateCapsuleResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res.CapsuleID
}

func TestCapsuleEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner := primitive.NewObjectID()
	id := s.createCapsule(t, owner, "2026-06-01")

	t.Run("get", func(t *testing.T) {
		rr := s.do(t, httptest.NewRequest(http.MethodGet, "/capsules/"+id.Hex(), nil), owner)
		require.Equal(t, http.StatusOK, rr.Code)

		var view models.CapsuleView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
		assert.Equal(t, "Hello future", view.Title)
		assert.Len(t, view.Media, 1)
		require.NotNil(t, view.Template)
		assert.Equal(t, models.DefaultEmotion, view.Template.EmotionName)
	})

	t.Run("other owner gets 404", func(t *testing.T) {
		rr := s.do(t, httptest.NewRequest(http.MethodGet, "/capsules/"+id.Hex(), nil), primitive.NewObjectID())
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("list with filter", func(t *testing.T) {
		rr := s.do(t, httptest.NewRequest(http.MethodGet, "/capsules?status=locked", nil), owner)
		require.Equal(t, http.StatusOK, rr.Code)
		var list []models.CapsuleView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.Len(t, list, 1)

		rr = s.do(t, httptest.NewRequest(http.MethodGet, "/capsules?status=bogus", nil), owner)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("update locked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/capsules/"+id.Hex(), strings.NewReader(`{"title":"Renamed"}`))
		rr := s.do(t, req, owner)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), "Renamed")
	})

	t.Run("update unlocked is a conflict", func(t *testing.T) {
		won, err := s.store.MarkUnlocked(context.Background(), id, handlerNow)
		require.NoError(t, err)
		require.True(t, won)

		req := httptest.NewRequest(http.MethodPut, "/capsules/"+id.Hex(), strings.NewReader(`{"title":"Again"}`))
		assert.Equal(t, http.StatusConflict, s.do(t, req, owner).Code)
	})

	t.Run("delete", func(t *testing.T) {
		rr := s.do(t, httptest.NewRequest(http.MethodDelete, "/capsules/"+id.Hex(), nil), owner)
		assert.Equal(t, http.StatusOK, rr.Code)
		rr = s.do(t, httptest.NewRequest(http.MethodGet, "/capsules/"+id.Hex(), nil), owner)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCreateCapsuleValidation(t *testing.T) {
	s := newTestServer(t)
	owner := primitive.NewObjectID()

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"past date", map[string]string{"title": "t", "message": "m", "unlock_date": "2020-01-01"}},
		{"garbled date", map[string]string{"title": "t", "message": "m", "unlock_date": "soon"}},
		{"missing title", map[string]string{"message": "m", "unlock_date": "2027-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := capsuleForm(t, tt.fields, nil)
			req := httptest.NewRequest(http.MethodPost, "/capsules", body)
			req.Header.Set("Content-Type", ct)
			assert.Equal(t, http.StatusBadRequest, s.do(t, req, owner).Code)
		})
	}
	assert.Zero(t, s.store.CapsuleCount())
}

func TestCapsuleEndpointsRequireAuth(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, httptest.NewRequest(http.MethodGet, "/capsules", nil), primitive.NilObjectID)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner := primitive.NewObjectID()
	n := &models.Notification{UserID: owner, CapsuleID: primitive.NewObjectID(), Type: models.NotificationUnlocked, CreatedAt: handlerNow}
	require.NoError(t, s.store.CreateNotification(context.Background(), n))

	rr := s.do(t, httptest.NewRequest(http.MethodGet, "/notifications?limit=5", nil), owner)
	require.Equal(t, http.StatusOK, rr.Code)
	var feed []models.NotificationView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.False(t, feed[0].Read)

	rr = s.do(t, httptest.NewRequest(http.MethodGet, "/notifications?limit=abc", nil), owner)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, httptest.NewRequest(http.MethodPost, "/notifications/"+n.ID.Hex()+"/read", nil), owner)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, httptest.NewRequest(http.MethodPost, "/notifications/"+n.ID.Hex()+"/read", nil), primitive.NewObjectID())
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTemplatesEndpoint(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, httptest.NewRequest(http.MethodGet, "/templates", nil), primitive.NewObjectID())
	require.Equal(t, http.StatusOK, rr.Code)

	var templates []models.EmotionTemplate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &templates))
	assert.Len(t, templates, len(models.Emotions))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, httptest.NewRequest(http.MethodPost, "/users/register",
		strings.NewReader(`{"name":"Ann","email":"ann@example.com","password":"long-enough"}`)), primitive.NilObjectID)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	rr = s.do(t, httptest.NewRequest(http.MethodPost, "/users/register",
		strings.NewReader(`{"name":"Ann","email":"ann@example.com","password":"long-enough"}`)), primitive.NilObjectID)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, httptest.NewRequest(http.MethodPost, "/users/login",
		strings.NewReader(`{"email":"ann@example.com","password":"long-enough"}`)), primitive.NilObjectID)
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	claims, err := jwtutil.ParseToken(login.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email)

	rr = s.do(t, httptest.NewRequest(http.MethodPost, "/users/login",
		strings.NewReader(`{"email":"ann@example.com","password":"nope"}`)), primitive.NilObjectID)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestParseUnlockDate(t *testing.T) {
	loc := time.FixedZone("X", 3600)

	got, err := parseUnlockDate("2026-07-01", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, loc), got)

	got, err = parseUnlockDate("2026-07-01T10:00:00Z", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC)))

	got, err = parseUnlockDate("", loc)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseUnlockDate("July 1st", loc)
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler(nil)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	HealthHandler(func(context.Context) error { return context.DeadlineExceeded })(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func (s *testServer) createOwner(t *testing.T) primitive.ObjectID {
	t.Helper()
	user, err := s.store.CreateUser(context.Background(), &models.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	return user.ID
}

func TestAdminSweepsRequireOperator(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/admin/sweeps/unlock", "/admin/sweeps/reminders"} {
		t.Run(path, func(t *testing.T) {
			rr := s.do(t, httptest.NewRequest(http.MethodPost, path, nil), primitive.NilObjectID)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)

			rr = s.do(t, httptest.NewRequest(http.MethodPost, path, nil), primitive.NewObjectID())
			assert.Equal(t, http.StatusForbidden, rr.Code)
		})
	}
	s.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminUnlockSweep(t *testing.T) {
	s := newTestServer(t)
	owner := s.createOwner(t)
	s.createCapsule(t, owner, "2026-06-01")
	s.createCapsule(t, owner, "2026-06-15")
	s.mailer.On("Send", mock.Anything, "ann@example.com", mock.Anything, mock.Anything).Return(nil)

	rr := s.doAs(t, httptest.NewRequest(http.MethodPost, "/admin/sweeps/unlock", nil), primitive.NewObjectID(), operatorEmail)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res jobs.UnlockResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, jobs.UnlockResult{Due: 2, Unlocked: 2, Notified: 2}, res)
	assert.Contains(t, rr.Body.String(), `"notify_failed":0`)
	assert.Len(t, s.store.Notifications(models.NotificationUnlocked), 2)

	// A second run finds nothing left to do.
	rr = s.doAs(t, httptest.NewRequest(http.MethodPost, "/admin/sweeps/unlock", nil), primitive.NewObjectID(), operatorEmail)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Zero(t, res.Due)
	s.mailer.AssertNumberOfCalls(t, "Send", 2)
}

func TestAdminUnlockSweepOutlivesCancelledRequest(t *testing.T) {
	s := newTestServer(t)
	owner := s.createOwner(t)
	for _, day := range []string{"2026-06-01", "2026-06-02", "2026-06-03"} {
		s.createCapsule(t, owner, day)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The client disconnects while the first email is being sent.
	s.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/sweeps/unlock", nil).WithContext(ctx)
	rr := s.doAs(t, req, primitive.NewObjectID(), operatorEmail)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res jobs.UnlockResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Unlocked)
	assert.Equal(t, 3, res.Notified)

	due, err := s.store.FindDueForUnlock(context.Background(), sweepNow, 0)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestAdminReminderSweep(t *testing.T) {
	s := newTestServer(t)
	owner := s.createOwner(t)
	// Three calendar days after handlerNow.
	s.createCapsule(t, owner, "2026-05-23")
	s.mailer.On("Send", mock.Anything, "ann@example.com", mock.Anything, mock.Anything).Return(nil)

	rr := s.doAs(t, httptest.NewRequest(http.MethodPost, "/admin/sweeps/reminders", nil), primitive.NewObjectID(), operatorEmail)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res jobs.ReminderResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, jobs.ReminderResult{Candidates: 1, Sent: 1}, res)
	assert.Len(t, s.store.Notifications(models.NotificationUnlockReminder), 1)
}
