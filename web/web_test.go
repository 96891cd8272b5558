package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/render"
	"github.com/sheetplot/sheetplot/web/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testClient struct {
	t      *testing.T
	server *httptest.Server
	http   *http.Client
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	s := NewServer(db)
	s.initServices()
	engine, err := s.initRouter()
	require.NoError(t, err)

	ts := httptest.NewServer(engine)
	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop()
		_ = database.CloseDB(db)
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{
		t:      t,
		server: ts,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *testClient) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *testClient) get(path string) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodGet, c.server.URL+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *testClient) postForm(path string, form url.Values) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodPost, c.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *testClient) postFile(path, filename string, data []byte, fields map[string]string) (*http.Response, string) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, w.Close())

	req, err := http.NewRequest(http.MethodPost, c.server.URL+path, &body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

func (c *testClient) register(username, email, password string) *http.Response {
	resp, _ := c.postForm("/register", url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
	return resp
}

func (c *testClient) login(email, password string, remember bool) *http.Response {
	form := url.Values{"email": {email}, "password": {password}}
	if remember {
		form.Set("remember", "y")
	}
	resp, _ := c.postForm("/login", form)
	return resp
}

// sessionCookie returns the last session cookie of resp, the one the
// browser keeps.
func sessionCookie(resp *http.Response) *http.Cookie {
	var last *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "sheetplot" {
			last = ck
		}
	}
	return last
}

func salesWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Month", "Sales", "Cost"},
		{"Jan", 100, 60},
		{"Feb", 150, 70},
		{"Mar", 90, 40},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestPublicPages(t *testing.T) {
	c := newTestClient(t)

	for _, path := range []string{"/", "/home", "/login", "/register"} {
		resp, _ := c.get(path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, body := c.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Page Not Found")

	resp, _ = c.get("/assets/css/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	c := newTestClient(t)

	for _, path := range []string{"/upload", "/upload/dashboard", "/profile", "/reports", "/dashboard"} {
		resp, _ := c.get(path)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	resp, _ := c.postFile("/get_columns", "sales.xlsx", salesWorkbook(t), nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, c.server.URL+"/reports", nil)
	require.NoError(t, err)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, body := c.do(req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, `"success":false`)
}

func TestRegisterLoginUploadLogout(t *testing.T) {
	c := newTestClient(t)

	resp := c.register("alice", "alice@example.com", "s3cret")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = c.login("alice@example.com", "s3cret", false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/upload/dashboard", resp.Header.Get("Location"))
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	assert.Equal(t, 0, ck.MaxAge, "without remember the cookie lasts for the browser session")

	resp, body := c.get("/upload/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Login successful!")

	resp, body = c.get("/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alice")

	resp, body = c.postFile("/get_columns", "sales.xlsx", salesWorkbook(t), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["Month","Sales","Cost"]`, body)

	resp, body = c.postFile("/get_columns", "sales.csv", []byte("Month,Sales\nJan,1\n"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)

	resp, body = c.postFile("/upload", "sales.xlsx", salesWorkbook(t), map[string]string{
		"graph_type": "bar",
		"x_axis":     "Month",
		"y_axis":     "Sales",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, render.XLSXContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "output.xlsx")

	out, err := excelize.OpenReader(strings.NewReader(body))
	require.NoError(t, err)
	defer out.Close()
	cells, err := out.GetPictureCells(out.GetSheetName(out.GetActiveSheetIndex()))
	require.NoError(t, err)
	assert.Equal(t, []string{"E5"}, cells)

	resp, body = c.get("/reports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "sales.xlsx")
	assert.Contains(t, body, "reports/sales.xlsx")

	resp, _ = c.get("/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = c.get("/upload/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = c.get("/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginRemember(t *testing.T) {
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("bob", "bob@example.com", "pw").StatusCode)

	resp := c.login("bob@example.com", "pw", true)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	assert.Equal(t, 43200*60, ck.MaxAge)
}

func TestLoginFailures(t *testing.T) {
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("carol", "carol@example.com", "right").StatusCode)

	resp, body := c.postForm("/login", url.Values{"email": {"carol@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid email or password")

	resp, body = c.postForm("/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid email address")

	resp, _ = c.get("/upload")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("dave", "dave@example.com", "pw").StatusCode)

	_, body := c.postForm("/register", url.Values{
		"username":         {"dave2"},
		"email":            {"dave@example.com"},
		"password":         {"pw"},
		"confirm_password": {"pw"},
	})
	assert.Contains(t, body, "That email is taken")

	_, body = c.postForm("/register", url.Values{
		"username":         {"erin"},
		"email":            {"erin@example.com"},
		"password":         {"pw"},
		"confirm_password": {"other"},
	})
	assert.Contains(t, body, "Field must be equal to password")

	_, body = c.postForm("/register", url.Values{
		"username":         {"e"},
		"email":            {"erin@example.com"},
		"password":         {"pw"},
		"confirm_password": {"pw"},
	})
	assert.Contains(t, body, "at least 2 characters")
}

func TestUploadErrors(t *testing.T) {
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("frank", "frank@example.com", "pw").StatusCode)
	require.Equal(t, http.StatusFound, c.login("frank@example.com", "pw", false).StatusCode)

	resp, body := c.postFile("/upload", "sales.xlsx", salesWorkbook(t), map[string]string{
		"graph_type": "line", "x_axis": "Month", "y_axis": "Profit",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Profit")

	resp, _ = c.postFile("/upload", "sales.csv", []byte("a,b"), map[string]string{
		"graph_type": "bar", "x_axis": "a", "y_axis": "b",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.postFile("/upload", "sales.xlsx", salesWorkbook(t), map[string]string{
		"graph_type": "radar", "x_axis": "Month", "y_axis": "Sales",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = c.get("/reports")
	assert.NotContains(t, body, "reports/sales.xlsx")
}

func TestUploadTooLarge(t *testing.T) {
	t.Setenv("SHEETPLOT_MAX_UPLOAD_MB", "1")
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("hank", "hank@example.com", "pw").StatusCode)
	require.Equal(t, http.StatusFound, c.login("hank@example.com", "pw", false).StatusCode)

	big := bytes.Repeat([]byte("x"), 2<<20)
	resp, body := c.postFile("/upload", "big.xlsx", big, map[string]string{
		"graph_type": "bar", "x_axis": "Month", "y_axis": "Sales",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, body, "The uploaded file is too large.")

	_, body = c.get("/reports")
	assert.NotContains(t, body, "big.xlsx")
}

func TestReportDownloadWithoutArchive(t *testing.T) {
	t.Setenv("SHEETPLOT_MINIO_ENDPOINT", "")
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("iris", "iris@example.com", "pw").StatusCode)
	require.Equal(t, http.StatusFound, c.login("iris@example.com", "pw", false).StatusCode)

	resp, _ := c.postFile("/upload", "sales.xlsx", salesWorkbook(t), map[string]string{
		"graph_type": "bar", "x_axis": "Month", "y_axis": "Sales",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := c.get("/reports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "/reports/1/download")

	resp, _ = c.get("/reports/1/download")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = c.get("/reports/999/download")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	c := newTestClient(t)

	resp, _ := c.get("/")
	id := resp.Header.Get(middleware.RequestIDHeader)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	resp, _ = c.get("/no-such-page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	given := uuid.NewString()
	req, err := http.NewRequest(http.MethodGet, c.server.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.RequestIDHeader, given)
	resp, _ = c.do(req)
	assert.Equal(t, given, resp.Header.Get(middleware.RequestIDHeader))
}

func TestServerLogs(t *testing.T) {
	c := newTestClient(t)

	resp, _ := c.postForm("/server/logs/10", url.Values{"level": {"WARNING"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	require.Equal(t, http.StatusFound, c.register("jane", "jane@example.com", "pw").StatusCode)
	require.Equal(t, http.StatusFound, c.login("jane@example.com", "pw", false).StatusCode)

	logger.Warning("disk almost full on /var/lib/sheetplot")
	resp, body := c.postForm("/server/logs/10", url.Values{"level": {"WARNING"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, "disk almost full")

	resp, body = c.postForm("/server/logs/0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"success":false`)
}

func TestProfile(t *testing.T) {
	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("gina", "gina@example.com", "old").StatusCode)
	require.Equal(t, http.StatusFound, c.register("hank", "hank@example.com", "pw").StatusCode)
	require.Equal(t, http.StatusFound, c.login("gina@example.com", "old", false).StatusCode)

	resp, body := c.get("/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "gina@example.com")

	_, body = c.postForm("/profile", url.Values{"form": {"profile"}, "username": {"gina"}, "email": {"hank@example.com"}})
	assert.Contains(t, body, "That email is taken")

	resp, _ = c.postForm("/profile", url.Values{"form": {"profile"}, "username": {"georgina"}, "email": {"georgina@example.com"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	_, body = c.get("/dashboard")
	assert.Contains(t, body, "georgina")

	_, body = c.postForm("/profile", url.Values{
		"form": {"password"}, "current_password": {"wrong"}, "new_password": {"new"}, "confirm_password": {"new"},
	})
	assert.Contains(t, body, "Current password is incorrect")

	resp, _ = c.postForm("/profile", url.Values{
		"form": {"password"}, "current_password": {"old"}, "new_password": {"new"}, "confirm_password": {"new"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	c.get("/logout")
	assert.Equal(t, http.StatusOK, c.login("georgina@example.com", "old", false).StatusCode)
	assert.Equal(t, http.StatusFound, c.login("georgina@example.com", "new", false).StatusCode)
}

func TestRedisSessionsAndRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("SHEETPLOT_SESSION_STORE", "redis")
	t.Setenv("SHEETPLOT_REDIS_ADDR", mr.Addr())
	t.Setenv("SHEETPLOT_LOGIN_RATE_LIMIT", "3")

	c := newTestClient(t)
	require.Equal(t, http.StatusFound, c.register("ivan", "ivan@example.com", "pw").StatusCode)
	require.Equal(t, http.StatusFound, c.login("ivan@example.com", "pw", false).StatusCode)

	resp, _ := c.get("/reports")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionKeys int
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "session:") {
			sessionKeys++
		}
	}
	assert.Positive(t, sessionKeys)

	c.login("ivan@example.com", "bad", false)
	c.login("ivan@example.com", "bad", false)
	resp = c.login("ivan@example.com", "pw", false)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
