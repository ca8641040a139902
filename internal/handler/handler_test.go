package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/cloudinary"
	"attendance/internal/handler"
	"attendance/internal/logging"
	"attendance/internal/mail"
	"attendance/internal/memstore"
	"attendance/internal/metrics"
	"attendance/internal/notification"
	"attendance/internal/query"
	"attendance/internal/queue"
	"attendance/internal/staff"
	"attendance/internal/user"
)

func init() { gin.SetMode(gin.TestMode) }

var lagos = time.FixedZone("WAT", 3600)

const cookieName = "soultouch_session_token"

var queryAll = query.Pagination{Limit: 100}

type app struct {
	router   *gin.Engine
	sessions *auth.Sessions
	users    *user.Service
	notes    *notification.Service
	queue    *queue.InMemory
	images   *fakeUploader

	admin    user.User
	jane     staff.Staff
	adminTok string
	janeTok  string
}

type fakeUploader struct {
	configured bool
	uploads    int
}

func (f *fakeUploader) Configured() bool { return f.configured }

func (f *fakeUploader) Upload(_ context.Context, data []byte, filename string) (*cloudinary.UploadResult, error) {
	f.uploads++
	return &cloudinary.UploadResult{SecureURL: "https://img.example.com/" + filename}, nil
}

func (f *fakeUploader) UploadDataURL(_ context.Context, data string) (*cloudinary.UploadResult, error) {
	f.uploads++
	return &cloudinary.UploadResult{SecureURL: "https://img.example.com/inline.png"}, nil
}

func newApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()
	now := time.Date(2024, 3, 4, 7, 55, 0, 0, lagos)

	store := memstore.New()
	m := metrics.New()
	users := user.NewService(store.Users(), logger)
	notes := notification.NewService(store.Notifications(), notification.Options{Metrics: m, Logger: logger})
	staffSvc := staff.NewService(store.Staff(), store.Users(), logger)
	att := attendance.NewService(store.Attendance(), staffSvc, notes, attendance.Options{
		Location: lagos,
		Now:      func() time.Time { return now },
		Metrics:  m,
		Logger:   logger,
	})
	sessions := auth.NewSessions(auth.SessionConfig{
		Issuer:     "test",
		SigningKey: "secret",
		TTL:        time.Hour,
		CookieName: cookieName,
	}, auth.NewMemoryDenylist(), logger)
	q := queue.NewInMemory(32)

	a := &app{sessions: sessions, users: users, notes: notes, queue: q, images: &fakeUploader{}}
	h := handler.New(handler.Services{
		Users:         users,
		Staff:         staffSvc,
		Attendance:    att,
		Notifications: notes,
		Mail:          mail.NewDispatcher(q, m, logger),
		Sessions:      sessions,
		Images:        a.images,
		Logger:        logger,
	})
	a.router = h.Router(handler.RouterConfig{Metrics: m})

	created, err := users.EnsureAdmin(ctx, "Ada Admin", "admin@example.com", "admin-password")
	require.NoError(t, err)
	require.True(t, created)
	a.admin, err = store.Users().GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	adminP := auth.Principal{UserID: a.admin.ID, Role: auth.RoleAdmin}

	a.jane, err = staffSvc.Create(ctx, adminP, staff.NewStaff{
		FirstName: "Jane", LastName: "Doe", Department: "Nursing",
		Email: "jane@example.com", Password: "jane-password",
	})
	require.NoError(t, err)

	a.adminTok = a.token(t, a.admin.ID, auth.RoleAdmin)
	a.janeTok = a.token(t, *a.jane.UserID, auth.RoleStaff)
	return a
}

func (a *app) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	sess, err := a.sessions.Issue(userID, role)
	require.NoError(t, err)
	return sess.Token
}

// nextJob reads the next queued email job.
func (a *app) nextJob(t *testing.T) mail.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := a.queue.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		var job mail.Job
		require.NoError(t, json.Unmarshal(msg.Body, &job))
		return job
	case <-ctx.Done():
		t.Fatal("no email job was queued")
	}
	return mail.Job{}
}

type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func (a *app) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var res response
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &res)
	}
	return w, res
}

func TestLoginSetsSessionCookie(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "Jane@Example.com", "password": "jane-password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Success)
	assert.Equal(t, "Login successful", res.Message)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.NotContains(t, w.Body.String(), "password")

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jane@example.com")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid email or password", res.Message)

	w, res = a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, res.Errors, "email")
	assert.Contains(t, res.Errors, "password")
}

func TestSessionAndRoleGates(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodGet, "/api/attendance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", res.Message)

	w, _ = a.do(t, http.MethodGet, "/api/users", a.janeTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(t, http.MethodGet, "/api/users", a.adminTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	a := newApp(t)

	w, _ := a.do(t, http.MethodPost, "/api/auth/logout", a.janeTok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(t, http.MethodGet, "/api/user", a.janeTok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQuickCheckInTwice(t *testing.T) {
	a := newApp(t)
	body := gin.H{"staffId": a.jane.ID}

	w, res := a.do(t, http.MethodPost, "/api/attendance/quick-check-in", a.janeTok, body)
	require.Equal(t, http.StatusCreated, w.Code)
	var rec attendance.Attendance
	require.NoError(t, json.Unmarshal(res.Data, &rec))
	assert.Equal(t, attendance.StatusPresent, rec.Status)

	w, res = a.do(t, http.MethodPost, "/api/attendance/quick-check-in", a.janeTok, body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Already checked in today"}`, w.Body.String())
	assert.False(t, res.Success)
}

func TestMarkAttendanceValidation(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/attendance", a.adminTok, gin.H{
		"staffId": a.jane.ID,
		"status":  "Sleeping",
		"checkIn": time.Date(2024, 3, 4, 9, 0, 0, 0, lagos),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Status must be Present, Late or Absent", res.Errors["status"])
}

func TestStaffCannotMarkColleague(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/staff", a.adminTok, gin.H{
		"firstName": "John", "lastName": "Roe", "department": "Kitchen",
		"email": "john@example.com", "password": "john-password",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var john staff.Staff
	require.NoError(t, json.Unmarshal(res.Data, &john))

	w, res = a.do(t, http.MethodPost, "/api/attendance", a.janeTok, gin.H{
		"staffId": john.ID,
		"status":  "Absent",
		"checkIn": time.Date(2024, 3, 4, 9, 0, 0, 0, lagos),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only mark your own attendance", res.Message)

	johnTok := a.token(t, *john.UserID, auth.RoleStaff)
	w, _ = a.do(t, http.MethodPost, "/api/attendance/quick-check-in", johnTok, gin.H{"staffId": john.ID})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBulkDeleteAttendanceTally(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/attendance", a.adminTok, gin.H{
		"staffId": a.jane.ID,
		"status":  "Present",
		"checkIn": time.Date(2024, 3, 4, 7, 30, 0, 0, lagos),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var rec attendance.Attendance
	require.NoError(t, json.Unmarshal(res.Data, &rec))

	w, res = a.do(t, http.MethodPost, "/api/attendance/bulk-delete", a.adminTok, gin.H{
		"ids": []string{rec.ID, "00000000-0000-0000-0000-000000000000"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Success)
	assert.Equal(t, "Deleted attendance: 1 successful, 1 failed", res.Message)

	w, _ = a.do(t, http.MethodPost, "/api/attendance/bulk-delete", a.janeTok, gin.H{"ids": []string{rec.ID}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterNotifiesAdminsAndQueuesWelcome(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Sam Lee", "email": "sam@example.com", "password": "sam-password"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, res.Success)

	var u user.User
	require.NoError(t, json.Unmarshal(res.Data, &u))
	assert.Equal(t, auth.RoleStaff, u.Role)

	w, res = a.do(t, http.MethodGet, "/api/notifications/unread-count", a.adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, string(res.Data))

	job := a.nextJob(t)
	assert.Equal(t, mail.TemplateWelcome, job.Template)
	assert.Equal(t, []string{"sam@example.com"}, job.To)
}

func TestToggleUserNotifiesAccount(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPatch, "/api/users/"+*a.jane.UserID+"/toggle-status", a.adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deactivated successfully", res.Message)

	w, _ = a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "jane@example.com", "password": "jane-password"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	janeP := auth.Principal{UserID: *a.jane.UserID, Role: auth.RoleStaff}
	page, err := a.notes.List(context.Background(), janeP, notification.Filter{Type: notification.TypeAccount}, queryAll)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Your account has been deactivated.", page.Items[0].Message)

	job := a.nextJob(t)
	assert.Equal(t, mail.TemplateGeneral, job.Template)
	assert.Equal(t, []string{"jane@example.com"}, job.To)
	var data mail.GeneralData
	require.NoError(t, json.Unmarshal(job.Data, &data))
	assert.Equal(t, "Account status changed", data.Title)
	assert.Equal(t, "Your account has been deactivated.", data.Body)
}

func TestUploadImage(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodPost, "/api/user/image", a.janeTok, gin.H{"data": "data:image/png;base64,AAAA"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Image storage is not configured", res.Message)

	a.images.configured = true
	w, res = a.do(t, http.MethodPost, "/api/user/image", a.janeTok, gin.H{"data": "data:image/png;base64,AAAA"})
	require.Equal(t, http.StatusOK, w.Code)
	var u user.User
	require.NoError(t, json.Unmarshal(res.Data, &u))
	require.NotNil(t, u.Image)
	assert.Equal(t, "https://img.example.com/inline.png", *u.Image)
	assert.Equal(t, 1, a.images.uploads)
}

func TestUnknownRouteAndHealth(t *testing.T) {
	a := newApp(t)

	w, res := a.do(t, http.MethodGet, "/api/nope", a.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, res.Success)

	w, _ = a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
