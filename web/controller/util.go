package controller

import (
	"errors"
	"net"
	"net/http"
	"reflect"
	"strings"

	"github.com/sheetplot/sheetplot/config"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/web/entity"
	"github.com/sheetplot/sheetplot/web/locale"
	"github.com/sheetplot/sheetplot/web/session"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// flash categories, used as CSS classes by the templates
const (
	flashSuccess = "success"
	flashDanger  = "danger"
	flashInfo    = "info"
)

var flashCategories = []string{flashSuccess, flashDanger, flashInfo}

// getRemoteIp extracts the real IP address from the request headers or remote address.
func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	value = c.GetHeader("X-Forwarded-For")
	if value != "" {
		ips := strings.Split(value, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

func isAjax(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

// flash queues a message for the next rendered page.
func flash(c *gin.Context, category, key string, params ...string) {
	if err := session.AddFlash(c, category, locale.T(c, key, params...)); err != nil {
		logger.Warning("save flash failed:", err)
	}
}

// html renders a page. title is a translation key.
func html(c *gin.Context, status int, name string, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	for _, key := range []string{"errors", "password_errors"} {
		if v, ok := data[key]; !ok || v == nil {
			data[key] = gin.H{}
		}
	}
	data["title"] = locale.T(c, title)
	data["loc"] = locale.Localizer(c)
	data["cur_ver"] = config.GetVersion()
	data["request_uri"] = c.Request.RequestURI
	data["logged_in"] = session.IsLogin(c)
	if user := currentUser(c); user != nil {
		data["user"] = user
	}

	flashes := gin.H{}
	for _, category := range flashCategories {
		if msgs := session.Flashes(c, category); len(msgs) > 0 {
			flashes[category] = msgs
		}
	}
	data["flashes"] = flashes

	c.HTML(status, name, data)
}

func notFound(c *gin.Context) {
	html(c, http.StatusNotFound, "404.html", "pages.notFound.title", nil)
}

// serverError logs err and renders the 500 page.
func serverError(c *gin.Context, err error) {
	logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	html(c, http.StatusInternalServerError, "500.html", "pages.serverError.title", nil)
}

// formErrors maps binding failures to a translated message per form field
// name. Errors that are not validation errors land under "_form".
func formErrors(c *gin.Context, form any, err error) gin.H {
	out := gin.H{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_form"] = locale.T(c, "form.invalid")
		return out
	}

	t := reflect.TypeOf(form)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for _, fe := range verrs {
		field := fe.Field()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if name := sf.Tag.Get("form"); name != "" {
				field = name
			}
		}
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = fieldMessage(c, t, fe)
	}
	return out
}

func fieldMessage(c *gin.Context, t reflect.Type, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "email", "min", "max":
		return locale.T(c, "form."+fe.Tag(), "Param=="+fe.Param())
	case "eqfield":
		param := fe.Param()
		if sf, ok := t.FieldByName(param); ok {
			if name := sf.Tag.Get("form"); name != "" {
				param = name
			}
		}
		return locale.T(c, "form.eqfield", "Param=="+param)
	default:
		return locale.T(c, "form.invalid")
	}
}

func translateTaken(c *gin.Context, field string) string {
	return locale.T(c, "form.taken", "Field=="+field)
}

// NotFound is the NoRoute handler.
func NotFound(c *gin.Context) {
	notFound(c)
}

// PanicHandler renders the 500 page for a recovered panic.
func PanicHandler(c *gin.Context, recovered any) {
	logger.Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
	html(c, http.StatusInternalServerError, "500.html", "pages.serverError.title", nil)
	c.Abort()
}
