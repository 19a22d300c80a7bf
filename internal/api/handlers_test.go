package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/service/dashboard"
	"github.com/ignite/leadfunnel/internal/service/lead"
	"github.com/ignite/leadfunnel/internal/storage"
)

type memSubscribers struct {
	mu        sync.Mutex
	rows      []domain.Subscriber
	findErr   error
	listCalls int
}

func (m *memSubscribers) FindByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := range m.rows {
		if m.rows[i].Email == email {
			s := m.rows[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memSubscribers) Insert(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == s.Email {
			return lead.ErrDuplicate
		}
	}
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now()
	m.rows = append(m.rows, *s)
	return nil
}

func (m *memSubscribers) ListRecent(_ context.Context, _ int) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]domain.Subscriber, len(m.rows))
	for i := range m.rows {
		out[len(m.rows)-1-i] = m.rows[i]
	}
	return out, nil
}

func (m *memSubscribers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memClicks struct {
	mu        sync.Mutex
	rows      []domain.PaymentClick
	insertErr error
}

func (m *memClicks) Insert(_ context.Context, c *domain.PaymentClick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	c.ID = uuid.New().String()
	c.ClickedAt = time.Now()
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memClicks) ListRecent(_ context.Context, _ int) ([]domain.PaymentClick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PaymentClick(nil), m.rows...), nil
}

type memAdmins struct {
	mu    sync.Mutex
	users map[string]*domain.AdminUser
}

func (m *memAdmins) Create(_ context.Context, u *domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return auth.ErrUserExists
	}
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memAdmins) FindByEmail(_ context.Context, email string) (*domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memAdmins) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return auth.ErrUserNotFound
}

type testEnv struct {
	handler http.Handler
	subs    *memSubscribers
	clicks  *memClicks
	admins  *memAdmins
	bucket  *storage.LocalBucket
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerWithStore(t, nil)
}

// setupTestServerWithStore lets a test wrap the bucket the dashboard sees.
func setupTestServerWithStore(t *testing.T, wrap func(*storage.LocalBucket) dashboard.FileStore) *testEnv {
	t.Helper()

	dir := t.TempDir()
	guide := filepath.Join(dir, "guide.pdf")
	require.NoError(t, os.WriteFile(guide, []byte("%PDF-1.4 free guide"), 0o644))

	bucket, err := storage.NewLocalBucket(filepath.Join(dir, "bucket"), storage.LocalURLPrefix)
	require.NoError(t, err)

	env := &testEnv{
		subs:   &memSubscribers{},
		clicks: &memClicks{},
		admins: &memAdmins{users: map[string]*domain.AdminUser{}},
		bucket: bucket,
	}

	am := auth.NewManager(config.AuthConfig{
		SessionSecret:     "test-secret",
		CookieName:        "leadfunnel_session",
		CookieMaxAge:      3600,
		AllowSignup:       true,
		MinPasswordLength: 6,
		LoginLinkMinutes:  15,
	}, "http://localhost:8080", env.admins, auth.NewMemorySessionStore())

	leadSvc := lead.NewService(env.subs, env.clicks, "/download")
	var files dashboard.FileStore = bucket
	if wrap != nil {
		files = wrap(bucket)
	}
	dashSvc := dashboard.NewService(env.subs, env.clicks, files, dashboard.Config{UploadPrefix: "pdf_"})

	h, err := NewHandlers(leadSvc, dashSvc, am, config.LandingConfig{
		DownloadPath: guide,
		DownloadName: "free-guide.pdf",
	}, 1<<20)
	require.NoError(t, err)

	srv := NewServer(config.ServerConfig{}, h, am, NewHealthChecker(nil, nil, bucket), bucket.Handler())
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// signIn creates an admin, signs in and returns the session cookies.
func (e *testEnv) signIn(t *testing.T) []*http.Cookie {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, e.admins.Create(context.Background(), &domain.AdminUser{Email: "admin@example.com", PasswordHash: hash}))

	rec := e.do(postForm("/auth/login", url.Values{"email": {"admin@example.com"}, "password": {"secret123"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func withSession(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestLanding_Renders(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/subscribe"`)
	assert.Contains(t, rec.Body.String(), `action="/premium"`)
}

func TestSubscribe_WithoutConsentWritesNothing(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(postForm("/subscribe", url.Values{"email": {"a@example.com"}, "marketing_agreed": {"on"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotContains(t, rec.Body.String(), "http-equiv")
	assert.Equal(t, 0, env.subs.count())
}

func TestSubscribe_CreatesAndDownloads(t *testing.T) {
	env := setupTestServer(t)
	form := url.Values{"email": {"a@example.com"}, "privacy_agreed": {"on"}}

	rec := env.do(postForm("/subscribe", form))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url=/download`)
	assert.Equal(t, 1, env.subs.count())

	// The same address again still downloads and adds no row.
	rec = env.do(postForm("/subscribe", form))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url=/download`)
	assert.Equal(t, 1, env.subs.count())
}

func TestSubscribe_StoreFailureStillDownloads(t *testing.T) {
	env := setupTestServer(t)
	env.subs.findErr = errors.New("connection refused")

	rec := env.do(postForm("/subscribe", url.Values{"email": {"a@example.com"}, "privacy_agreed": {"on"}}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url=/download`)
	assert.Equal(t, 0, env.subs.count())
}

func TestSubscribeAPI(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/subscribe",
		strings.NewReader(`{"email":"b@example.com","privacy_agreed":true,"marketing_agreed":true}`))
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res lead.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Download)
	assert.Equal(t, "/download", res.DownloadURL)
	assert.Equal(t, lead.OutcomeCreated, res.Outcome)

	req = httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(`{"email":"b@example.com"}`))
	rec = env.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPremium_AnonymousClickShowsModal(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(postForm("/premium", url.Values{}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="modal"`)
	require.Len(t, env.clicks.rows, 1)
	assert.Equal(t, domain.AnonymousEmail, env.clicks.rows[0].Email)
}

func TestPremiumAPI_InsertFailureStillShowsModal(t *testing.T) {
	env := setupTestServer(t)
	env.clicks.insertErr = errors.New("insert failed")

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/premium-click", strings.NewReader(`{"email":"c@example.com"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res lead.ClickResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.ShowModal)
	assert.Equal(t, "c@example.com", res.Email)
}

func TestDownload_Attachment(t *testing.T) {
	env := setupTestServer(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/download", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="free-guide.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 free guide", rec.Body.String())
}

func TestAdmin_EdgeGuardRunsBeforeData(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/files/anything", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?next=%2Fadmin%2Ffiles%2Fanything", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/admin/api/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 0, env.subs.listCalls)
}

func TestAdmin_DashboardAfterSignIn(t *testing.T) {
	env := setupTestServer(t)
	env.do(postForm("/subscribe", url.Values{"email": {"lead@example.com"}, "privacy_agreed": {"on"}, "marketing_agreed": {"on"}}))
	env.do(postForm("/premium", url.Values{"email": {"lead@example.com"}}))
	cookies := env.signIn(t)

	rec := env.do(withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lead@example.com")
	assert.Contains(t, rec.Body.String(), "100%")

	rec = env.do(withSession(httptest.NewRequest(http.MethodGet, "/admin/api/dashboard", nil), cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	var body dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Subscribers, 1)
	assert.Len(t, body.Clicks, 1)
	assert.Equal(t, 1, body.Stats.TotalSubscribers)
	assert.Equal(t, 100, body.Stats.MarketingRate)
	assert.Empty(t, body.Files)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := setupTestServer(t)
	env.signIn(t)

	rec := env.do(postForm("/auth/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password.")
}

func TestSignup_PasswordRules(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(postForm("/auth/signup", url.Values{
		"email": {"new@example.com"}, "password": {"secret123"}, "confirm_password": {"other123"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match.")

	long := strings.Repeat("a", 73)
	rec = env.do(postForm("/auth/signup", url.Values{
		"email": {"new@example.com"}, "password": {long}, "confirm_password": {long},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password is too long.")

	rec = env.do(postForm("/auth/signup", url.Values{
		"email": {"new@example.com"}, "password": {"secret123"}, "confirm_password": {"secret123"},
	}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestSetPassword(t *testing.T) {
	env := setupTestServer(t)
	cookies := env.signIn(t)

	rec := env.do(withSession(postForm("/auth/set-password", url.Values{
		"password": {"newsecret"}, "confirm_password": {"newsecret"},
	}), cookies))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin?notice=password_updated", rec.Header().Get("Location"))

	rec = env.do(postForm("/auth/login", url.Values{"email": {"admin@example.com"}, "password": {"newsecret"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLogout_AlwaysRedirects(t *testing.T) {
	env := setupTestServer(t)
	cookies := env.signIn(t)

	rec := env.do(withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), cookies))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?notice=signed_out", rec.Header().Get("Location"))

	rec = env.do(withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), cookies))
	assert.Equal(t, http.StatusFound, rec.Code)

	// Without any session it still lands on the login page.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	// Signing out changes state, so a plain link cannot trigger it.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoginLink_DoesNotRevealUnknownAddress(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(postForm("/auth/login-link", url.Values{"email": {"nobody@example.com"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?notice=link_sent", rec.Header().Get("Location"))
}

func TestCallback_InvalidCode(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=garbage", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/error?reason=invalid_code", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/auth/error?reason=invalid_code", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or has expired")
}

func multipartUpload(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFilesAPI_UploadListDelete(t *testing.T) {
	env := setupTestServer(t)
	cookies := env.signIn(t)

	rec := env.do(withSession(multipartUpload(t, "/admin/api/files", "Report.PDF", []byte("%PDF-1.4 report")), cookies))
	require.Equal(t, http.StatusCreated, rec.Code)

	var up struct {
		File  domain.StoredFile `json:"file"`
		Files []fileView        `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.True(t, strings.HasPrefix(up.File.Name, "pdf_"))
	assert.True(t, strings.HasSuffix(up.File.Name, ".pdf"))
	require.Len(t, up.Files, 1)
	assert.Equal(t, "/files/"+up.File.Name, up.Files[0].URL)

	// The object is served from the public prefix.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/files/"+up.File.Name, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 report", rec.Body.String())

	rec = env.do(withSession(httptest.NewRequest(http.MethodDelete, "/admin/api/files/"+up.File.Name, nil), cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())

	rec = env.do(withSession(httptest.NewRequest(http.MethodDelete, "/admin/api/files/"+up.File.Name, nil), cookies))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilesAPI_UploadRequiresFile(t *testing.T) {
	env := setupTestServer(t)
	cookies := env.signIn(t)

	rec := env.do(withSession(multipartUpload(t, "/admin/api/files", "", nil), cookies))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(withSession(multipartUpload(t, "/admin/files", "", nil), cookies))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin?notice=no_file", rec.Header().Get("Location"))
}

func TestFilesAPI_UploadTooLarge(t *testing.T) {
	env := setupTestServer(t)
	cookies := env.signIn(t)

	rec := env.do(withSession(multipartUpload(t, "/admin/api/files", "big.pdf", bytes.Repeat([]byte("x"), 2<<20)), cookies))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type failingListBucket struct {
	*storage.LocalBucket
}

func (b failingListBucket) List(context.Context) ([]domain.StoredFile, error) {
	return nil, errors.New("listing unavailable")
}

func TestUploadForm_StoredButRefreshFailed(t *testing.T) {
	env := setupTestServerWithStore(t, func(b *storage.LocalBucket) dashboard.FileStore {
		return failingListBucket{b}
	})
	cookies := env.signIn(t)

	rec := env.do(withSession(multipartUpload(t, "/admin/files", "guide.pdf", []byte("%PDF-1.4 guide")), cookies))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin?notice=uploaded", rec.Header().Get("Location"))

	files, err := env.bucket.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDeleteForm(t *testing.T) {
	env := setupTestServer(t)
	cookies := env.signIn(t)

	_, err := env.bucket.Upload(context.Background(), "pdf_1.pdf", strings.NewReader("x"), 1, "application/pdf")
	require.NoError(t, err)

	rec := env.do(withSession(postForm("/admin/files/delete", url.Values{"name": {"pdf_1.pdf"}}), cookies))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin?notice=deleted", rec.Header().Get("Location"))

	files, err := env.bucket.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "up", status.Checks["storage"].Status)
	assert.Equal(t, "not configured", status.Checks["redis"].Message)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "not configured"},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "ping failed: refused"},
	}))
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "down", Message: "ping failed"},
	}))
}
