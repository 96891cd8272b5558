package controller

import (
	"errors"
	"net/http"

	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/web/service"
	"github.com/sheetplot/sheetplot/web/session"

	"github.com/gin-gonic/gin"
)

// ProfileController lets a user change their identity and password.
type ProfileController struct {
	BaseController
}

func NewProfileController(g *gin.RouterGroup, users *service.UserService) *ProfileController {
	a := &ProfileController{BaseController: BaseController{userService: users}}
	a.initRouter(g)
	return a
}

func (a *ProfileController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/profile", a.checkLogin)

	g.GET("", a.profilePage)
	g.POST("", a.update)
}

func (a *ProfileController) profilePage(c *gin.Context) {
	user := currentUser(c)
	a.renderProfile(c, &ProfileForm{Username: user.Username, Email: user.Email}, nil, nil)
}

func (a *ProfileController) renderProfile(c *gin.Context, form *ProfileForm, profileErrs, passwordErrs gin.H) {
	html(c, http.StatusOK, "profile.html", "pages.profile.title", gin.H{
		"form":            form,
		"errors":          profileErrs,
		"password_errors": passwordErrs,
	})
}

// update dispatches on the hidden "form" field: "password" selects the
// password form, anything else the profile form.
func (a *ProfileController) update(c *gin.Context) {
	if c.PostForm("form") == "password" {
		a.changePassword(c)
		return
	}
	a.updateProfile(c)
}

func (a *ProfileController) updateProfile(c *gin.Context) {
	user := currentUser(c)
	form := &ProfileForm{}
	if err := c.ShouldBind(form); err != nil {
		a.renderProfile(c, form, formErrors(c, form, err), nil)
		return
	}

	if err := a.userService.UpdateProfile(c.Request.Context(), user, form.Username, form.Email); err != nil {
		fieldErrs, ok := serviceFieldErrors(c, err)
		if !ok {
			serverError(c, err)
			return
		}
		a.renderProfile(c, form, fieldErrs, nil)
		return
	}
	if err := session.SetDashboardUser(c, user.Username); err != nil {
		logger.Warning("refresh session username failed:", err)
	}

	flash(c, flashSuccess, "flash.profileUpdated")
	c.Redirect(http.StatusFound, "/profile")
}

func (a *ProfileController) changePassword(c *gin.Context) {
	user := currentUser(c)
	profile := &ProfileForm{Username: user.Username, Email: user.Email}
	form := &PasswordForm{}
	if err := c.ShouldBind(form); err != nil {
		a.renderProfile(c, profile, nil, formErrors(c, form, err))
		return
	}

	err := a.userService.ChangePassword(c.Request.Context(), user, form.CurrentPassword, form.NewPassword)
	switch {
	case err == nil:
		flash(c, flashSuccess, "flash.passwordUpdated")
		c.Redirect(http.StatusFound, "/profile")
	case errors.Is(err, service.ErrAuth):
		flash(c, flashDanger, "flash.passwordIncorrect")
		a.renderProfile(c, profile, nil, nil)
	default:
		if fieldErrs, ok := serviceFieldErrors(c, err); ok {
			a.renderProfile(c, profile, nil, fieldErrs)
			return
		}
		serverError(c, err)
	}
}
