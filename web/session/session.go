// Package session keeps the authentication state of a browser on top of
// gin-contrib/sessions.
package session

import (
	"encoding/gob"
	"net/http"

	"github.com/sheetplot/sheetplot/database/model"
	"github.com/sheetplot/sheetplot/logger"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Name is the cookie name of the session.
const Name = "sheetplot"

const (
	loginUser = "LOGIN_USER"
	// dashboardUser is read by /dashboard only and holds the username.
	dashboardUser = "user"
)

func init() {
	// flashes are stored as a slice of interface values
	gob.Register([]any{})
}

// SetLoginUser marks the session as authenticated for user. Only the id
// and username are kept; the gate reloads the account on every request.
func SetLoginUser(c *gin.Context, user *model.User) error {
	s := sessions.Default(c)
	s.Set(loginUser, user.Id)
	s.Set(dashboardUser, user.Username)
	return s.Save()
}

// SetMaxAge sets the cookie lifetime in seconds. Zero keeps the cookie for
// the browser session only.
func SetMaxAge(c *gin.Context, maxAge int) error {
	s := sessions.Default(c)
	s.Options(cookieOptions(c, maxAge))
	return s.Save()
}

// cookieOptions mirrors the store options; Secure follows the connection.
func cookieOptions(c *gin.Context, maxAge int) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

// GetLoginUserID returns the id of the authenticated user, or 0.
func GetLoginUserID(c *gin.Context) int {
	s := sessions.Default(c)
	if id, ok := s.Get(loginUser).(int); ok {
		return id
	}
	return 0
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUserID(c) > 0
}

// GetDashboardUser returns the username stored for the dashboard page.
func GetDashboardUser(c *gin.Context) string {
	s := sessions.Default(c)
	name, _ := s.Get(dashboardUser).(string)
	return name
}

// SetDashboardUser refreshes the dashboard username, e.g. after a profile
// update.
func SetDashboardUser(c *gin.Context, username string) error {
	s := sessions.Default(c)
	s.Set(dashboardUser, username)
	return s.Save()
}

// AddFlash queues a one-shot message for the next rendered page.
func AddFlash(c *gin.Context, category, msg string) error {
	s := sessions.Default(c)
	s.AddFlash(msg, category)
	return s.Save()
}

// Flashes drains the queued messages of a category.
func Flashes(c *gin.Context, category string) []string {
	s := sessions.Default(c)
	raw := s.Flashes(category)
	if len(raw) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(string); ok {
			msgs = append(msgs, m)
		}
	}
	if err := s.Save(); err != nil {
		logger.Warning("save session after reading flashes:", err)
	}
	return msgs
}

func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(cookieOptions(c, -1))
	return s.Save()
}
