package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/render"
	"github.com/sheetplot/sheetplot/web/service"

	"github.com/gin-gonic/gin"
)

// UploadController runs the upload-and-render flow.
type UploadController struct {
	BaseController

	chartService   *service.ChartService
	maxUploadBytes int64
}

func NewUploadController(g *gin.RouterGroup, users *service.UserService, charts *service.ChartService, maxUploadBytes int64) *UploadController {
	a := &UploadController{
		BaseController: BaseController{userService: users},
		chartService:   charts,
		maxUploadBytes: maxUploadBytes,
	}
	a.initRouter(g)
	return a
}

func (a *UploadController) initRouter(g *gin.RouterGroup) {
	g = g.Group("", a.checkLogin, a.limitBody)

	g.GET("/upload", a.uploadPage)
	g.GET("/upload/dashboard", a.uploadPage)
	g.POST("/upload", a.upload)
	g.POST("/get_columns", a.getColumns)
}

// limitBody caps the request body before multipart parsing starts.
func (a *UploadController) limitBody(c *gin.Context) {
	if a.maxUploadBytes > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadBytes)
	}
	c.Next()
}

func (a *UploadController) uploadPage(c *gin.Context) {
	a.renderUpload(c, http.StatusOK, &UploadForm{})
}

func (a *UploadController) renderUpload(c *gin.Context, status int, form *UploadForm) {
	html(c, status, "upload.html", "pages.upload.title", gin.H{
		"form":  form,
		"kinds": render.Kinds(),
	})
}

func (a *UploadController) upload(c *gin.Context) {
	form := &UploadForm{}
	header, err := c.FormFile("file")
	if err != nil {
		a.uploadFailed(c, form, err)
		return
	}
	if err := c.ShouldBind(form); err != nil {
		a.renderUpload(c, http.StatusBadRequest, form)
		return
	}
	data, err := readUpload(header)
	if err != nil {
		serverError(c, err)
		return
	}

	user := currentUser(c)
	out, _, err := a.chartService.Render(c.Request.Context(), &user.Id, header.Filename, data, form.GraphType, form.XAxis, form.YAxis)
	if err != nil {
		a.uploadFailed(c, form, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+render.OutputName+`"`)
	c.Data(http.StatusOK, render.XLSXContentType, out)
}

// uploadFailed maps render and upload errors to a flash message on the
// upload page. Anything unexpected becomes the 500 page.
func (a *UploadController) uploadFailed(c *gin.Context, form *UploadForm, err error) {
	var missing *render.MissingColumnError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		flash(c, flashDanger, "upload.tooLarge")
		a.renderUpload(c, http.StatusRequestEntityTooLarge, form)
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		flash(c, flashDanger, "upload.fileRequired")
	case errors.Is(err, render.ErrUnsupportedFormat):
		flash(c, flashDanger, "upload.unsupportedFormat")
	case errors.Is(err, render.ErrUnsupportedChartType):
		flash(c, flashDanger, "upload.unsupportedChart", "Type=="+form.GraphType)
	case errors.As(err, &missing):
		flash(c, flashDanger, "upload.missingColumn", "Column=="+missing.Column)
	case errors.Is(err, render.ErrRender):
		logger.Warning("render failed:", err)
		flash(c, flashDanger, "upload.renderFailed")
	default:
		serverError(c, err)
		return
	}
	a.renderUpload(c, http.StatusBadRequest, form)
}

// getColumns answers with the header row, or [] for anything that is not
// a readable workbook.
func (a *UploadController) getColumns(c *gin.Context) {
	columns := []string{}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusOK, columns)
		return
	}
	data, err := readUpload(header)
	if err != nil {
		c.JSON(http.StatusOK, columns)
		return
	}
	if names, err := a.chartService.Columns(header.Filename, data); err == nil {
		columns = names
	} else {
		logger.Debugf("get_columns for %q: %v", header.Filename, err)
	}
	c.JSON(http.StatusOK, columns)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
