// Package controller holds the gin handlers of the sheetplot web panel.
package controller

import (
	"errors"
	"net/http"

	"github.com/sheetplot/sheetplot/database/model"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/web/locale"
	"github.com/sheetplot/sheetplot/web/service"
	"github.com/sheetplot/sheetplot/web/session"

	"github.com/gin-gonic/gin"
)

const currentUserKey = "current_user"

// BaseController provides the login gate shared by the protected controllers.
type BaseController struct {
	userService *service.UserService
}

// checkLogin lets authenticated requests through with the account loaded
// into the context. Anonymous requests are sent to /login, AJAX ones get 401.
func (a *BaseController) checkLogin(c *gin.Context) {
	user := a.loadUser(c)
	if user == nil {
		if isAjax(c) {
			pureJsonMsg(c, http.StatusUnauthorized, false, locale.T(c, "flash.loginAgain"))
		} else {
			if err := session.AddFlash(c, flashInfo, locale.T(c, "flash.loginRequired")); err != nil {
				logger.Warning("save flash failed:", err)
			}
			c.Redirect(http.StatusFound, "/login")
		}
		c.Abort()
		return
	}
	c.Set(currentUserKey, user)
	c.Next()
}

// loadUser resolves the session user id. A session pointing at a missing
// account is cleared.
func (a *BaseController) loadUser(c *gin.Context) *model.User {
	id := session.GetLoginUserID(c)
	if id <= 0 {
		return nil
	}
	user, err := a.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrUserNotFound) {
			logger.Warning("load session user failed:", err)
			return nil
		}
		if err := session.ClearSession(c); err != nil {
			logger.Warning("clear stale session failed:", err)
		}
		return nil
	}
	return user
}

// currentUser returns the account loaded by checkLogin.
func currentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(currentUserKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}
