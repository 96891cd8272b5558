package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(db) })
	return db
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	users := NewUserService(setupDB(t))
	ctx := context.Background()

	_, err := users.CreateUser(ctx, "alice", "alice@example.com", "secret")
	require.NoError(t, err)

	_, err = users.CreateUser(ctx, "alice2", "alice@example.com", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateField)
	var dup *DuplicateFieldError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	users := NewUserService(setupDB(t))
	ctx := context.Background()

	_, err := users.CreateUser(ctx, "alice", "alice@example.com", "secret")
	require.NoError(t, err)

	_, err = users.CreateUser(ctx, "alice", "other@example.com", "secret")
	var dup *DuplicateFieldError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "username", dup.Field)
}

func TestCreateUser_Validation(t *testing.T) {
	users := NewUserService(setupDB(t))
	ctx := context.Background()

	_, err := users.CreateUser(ctx, "a", "a@example.com", "secret")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.CreateUser(ctx, "alice", "not-an-email", "secret")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = users.CreateUser(ctx, "alice", "alice@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPasswordHashing(t *testing.T) {
	users := NewUserService(setupDB(t))
	ctx := context.Background()

	u, err := users.CreateUser(ctx, "bob", "bob@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", u.Password)

	stored, err := users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.Password)

	got := users.VerifyCredentials(ctx, "bob@example.com", "hunter22")
	require.NotNil(t, got)
	assert.Equal(t, u.Id, got.Id)

	for _, wrong := range []string{"", "hunter2", "hunter222", "HUNTER22"} {
		assert.Nil(t, users.VerifyCredentials(ctx, "bob@example.com", wrong), wrong)
	}
	assert.Nil(t, users.VerifyCredentials(ctx, "nobody@example.com", "hunter22"))
}

func TestChangePassword(t *testing.T) {
	users := NewUserService(setupDB(t))
	ctx := context.Background()

	u, err := users.CreateUser(ctx, "carol", "carol@example.com", "old-pass")
	require.NoError(t, err)
	before, err := users.GetUser(ctx, u.Id)
	require.NoError(t, err)

	err = users.ChangePassword(ctx, u, "wrong", "new-pass")
	assert.ErrorIs(t, err, ErrAuth)
	after, err := users.GetUser(ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, before.Password, after.Password)

	require.NoError(t, users.ChangePassword(ctx, u, "old-pass", "new-pass"))
	assert.Nil(t, users.VerifyCredentials(ctx, "carol@example.com", "old-pass"))
	assert.NotNil(t, users.VerifyCredentials(ctx, "carol@example.com", "new-pass"))
}

func TestUpdateProfile(t *testing.T) {
	users := NewUserService(setupDB(t))
	ctx := context.Background()

	dave, err := users.CreateUser(ctx, "dave", "dave@example.com", "pw")
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, "erin", "erin@example.com", "pw")
	require.NoError(t, err)

	// keeping your own values is not a conflict
	require.NoError(t, users.UpdateProfile(ctx, dave, "dave", "dave@example.com"))

	err = users.UpdateProfile(ctx, dave, "dave", "erin@example.com")
	assert.ErrorIs(t, err, ErrDuplicateField)
	err = users.UpdateProfile(ctx, dave, "dave", "bad address")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, users.UpdateProfile(ctx, dave, "david", "david@example.com"))
	assert.Equal(t, "david", dave.Username)
	stored, err := users.GetUser(ctx, dave.Id)
	require.NoError(t, err)
	assert.Equal(t, "david@example.com", stored.Email)

	taken, err := users.IsEmailTaken(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = users.IsUsernameTaken(ctx, "erin")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestIsEmailValid(t *testing.T) {
	assert.True(t, IsEmailValid("user@example.com"))
	assert.False(t, IsEmailValid(""))
	assert.False(t, IsEmailValid("user@"))
	assert.False(t, IsEmailValid("plainaddress"))
}

func TestReportList_CreationOrder(t *testing.T) {
	reports := NewReportService(setupDB(t))
	ctx := context.Background()

	_, err := reports.Create(ctx, "a.xlsx", nil)
	require.NoError(t, err)
	_, err = reports.Create(ctx, "b.xlsx", nil)
	require.NoError(t, err)

	list, err := reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.xlsx", list[0].Title)
	assert.Equal(t, "b.xlsx", list[1].Title)
	assert.Equal(t, "reports/a.xlsx", list[0].FilePath)
	assert.False(t, list[0].CreatedAt.IsZero())
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func (a *memArchive) Put(_ context.Context, key string, data []byte, _ string) error {
	if a.putErr != nil {
		return a.putErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = data
	return nil
}

func (a *memArchive) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, ErrArchiveMissing
	}
	return data, nil
}

func salesXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Month", "Sales"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Jan", 10}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Feb", 20}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestChartService_Render(t *testing.T) {
	db := setupDB(t)
	archive := &memArchive{}
	charts := NewChartService(NewReportService(db), archive)
	ctx := context.Background()
	owner := 7

	out, report, err := charts.Render(ctx, &owner, "sales.xlsx", salesXLSX(t), "bar", "Month", "Sales")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "sales.xlsx", report.Title)
	require.NotNil(t, report.UserId)
	assert.Equal(t, owner, *report.UserId)

	data, got, err := charts.Download(ctx, report.Id)
	require.NoError(t, err)
	assert.Equal(t, report.Id, got.Id)
	assert.True(t, bytes.Equal(out, data))
}

func TestChartService_RenderErrors(t *testing.T) {
	db := setupDB(t)
	reports := NewReportService(db)
	charts := NewChartService(reports, nil)
	ctx := context.Background()

	_, _, err := charts.Render(ctx, nil, "sales.csv", []byte("x"), "bar", "Month", "Sales")
	assert.ErrorIs(t, err, render.ErrUnsupportedFormat)

	_, _, err = charts.Render(ctx, nil, "sales.xlsx", salesXLSX(t), "donut", "Month", "Sales")
	assert.ErrorIs(t, err, render.ErrUnsupportedChartType)

	_, _, err = charts.Render(ctx, nil, "sales.xlsx", salesXLSX(t), "line", "Month", "Profit")
	assert.ErrorIs(t, err, render.ErrMissingColumn)

	list, err := reports.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "failed renders must not record reports")

	_, _, err = charts.Download(ctx, 1)
	assert.ErrorIs(t, err, ErrNoArchive)
}

func TestChartService_ArchiveFailureIsNotFatal(t *testing.T) {
	db := setupDB(t)
	charts := NewChartService(NewReportService(db), &memArchive{putErr: errors.New("bucket gone")})

	out, report, err := charts.Render(context.Background(), nil, "sales.xlsx", salesXLSX(t), "pie", "Sales", "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Nil(t, report.UserId)
}

func TestSettingService(t *testing.T) {
	settings := NewSettingService(setupDB(t))

	port, err := settings.GetPort()
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	require.NoError(t, settings.SetPort(9090))
	port, err = settings.GetPort()
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	first, err := settings.GetSecret()
	require.NoError(t, err)
	assert.Len(t, first, 32)
	second, err := settings.GetSecret()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	all, err := settings.GetAllSetting()
	require.NoError(t, err)
	assert.NoError(t, all.CheckValid())
	assert.Equal(t, 43200, all.RememberMaxAge)

	require.NoError(t, settings.ResetSettings())
	port, err = settings.GetPort()
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	all.WebPort = 70000
	assert.Error(t, all.CheckValid())
}
