package controller

import (
	"errors"
	"net/http"

	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/web/service"
	"github.com/sheetplot/sheetplot/web/session"

	"github.com/gin-gonic/gin"
)

// IndexController serves the public pages and the login flow.
type IndexController struct {
	BaseController

	settingService *service.SettingService
}

func NewIndexController(g *gin.RouterGroup, users *service.UserService, settings *service.SettingService) *IndexController {
	a := &IndexController{
		BaseController: BaseController{userService: users},
		settingService: settings,
	}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.GET("/", a.home)
	g.GET("/home", a.home)
	g.GET("/dashboard", a.dashboard)
	g.GET("/logout", a.logout)

	g.GET("/login", a.loginPage)
	g.POST("/login", a.login)
	g.GET("/register", a.registerPage)
	g.POST("/register", a.register)
}

func (a *IndexController) home(c *gin.Context) {
	html(c, http.StatusOK, "index.html", "pages.home.title", nil)
}

// dashboard only looks at the plain username kept in the session.
func (a *IndexController) dashboard(c *gin.Context) {
	username := session.GetDashboardUser(c)
	if username == "" {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	html(c, http.StatusOK, "dashboard.html", "pages.dashboard.title", gin.H{"username": username})
}

func (a *IndexController) loginPage(c *gin.Context) {
	html(c, http.StatusOK, "login.html", "pages.login.title", gin.H{"form": &LoginForm{}})
}

func (a *IndexController) login(c *gin.Context) {
	form := &LoginForm{}
	if err := c.ShouldBind(form); err != nil {
		html(c, http.StatusOK, "login.html", "pages.login.title", gin.H{
			"form":   form,
			"errors": formErrors(c, form, err),
		})
		return
	}

	user := a.userService.VerifyCredentials(c.Request.Context(), form.Email, form.Password)
	if user == nil {
		logger.Warningf("failed login for %q from %s", form.Email, getRemoteIp(c))
		flash(c, flashDanger, "flash.loginFailed")
		html(c, http.StatusOK, "login.html", "pages.login.title", gin.H{"form": form})
		return
	}

	maxAge, err := a.sessionMaxAge(form.remember())
	if err != nil {
		logger.Warning("unable to read session max age:", err)
	}
	if err := session.SetMaxAge(c, maxAge*60); err != nil {
		serverError(c, err)
		return
	}
	if err := session.SetLoginUser(c, user); err != nil {
		serverError(c, err)
		return
	}
	logger.Infof("%s logged in from %s", user.Username, getRemoteIp(c))

	flash(c, flashSuccess, "flash.loginSuccess")
	c.Redirect(http.StatusFound, "/upload/dashboard")
}

// sessionMaxAge returns the cookie lifetime in minutes.
func (a *IndexController) sessionMaxAge(remember bool) (int, error) {
	if remember {
		return a.settingService.GetRememberMaxAge()
	}
	return a.settingService.GetSessionMaxAge()
}

func (a *IndexController) registerPage(c *gin.Context) {
	if a.loadUser(c) != nil {
		c.Redirect(http.StatusFound, "/home")
		return
	}
	html(c, http.StatusOK, "register.html", "pages.register.title", gin.H{"form": &RegisterForm{}})
}

func (a *IndexController) register(c *gin.Context) {
	if a.loadUser(c) != nil {
		c.Redirect(http.StatusFound, "/home")
		return
	}

	form := &RegisterForm{}
	if err := c.ShouldBind(form); err != nil {
		html(c, http.StatusOK, "register.html", "pages.register.title", gin.H{
			"form":   form,
			"errors": formErrors(c, form, err),
		})
		return
	}

	_, err := a.userService.CreateUser(c.Request.Context(), form.Username, form.Email, form.Password)
	if err != nil {
		fieldErrs, ok := serviceFieldErrors(c, err)
		if !ok {
			serverError(c, err)
			return
		}
		html(c, http.StatusOK, "register.html", "pages.register.title", gin.H{
			"form":   form,
			"errors": fieldErrs,
		})
		return
	}

	flash(c, flashSuccess, "flash.accountCreated")
	c.Redirect(http.StatusFound, "/login")
}

func (a *IndexController) logout(c *gin.Context) {
	if username := session.GetDashboardUser(c); username != "" {
		logger.Infof("%s logged out", username)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("unable to clear session:", err)
	}
	c.Redirect(http.StatusFound, "/")
}

// serviceFieldErrors turns account store errors into per-field messages.
func serviceFieldErrors(c *gin.Context, err error) (gin.H, bool) {
	var dup *service.DuplicateFieldError
	if errors.As(err, &dup) {
		return gin.H{dup.Field: translateTaken(c, dup.Field)}, true
	}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return gin.H{verr.Field: verr.Msg}, true
	}
	return nil, false
}
