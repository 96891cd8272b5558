package controller

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/sheetplot/sheetplot/render"
	"github.com/sheetplot/sheetplot/web/service"

	"github.com/gin-gonic/gin"
)

// ReportController lists generated reports.
type ReportController struct {
	BaseController

	reportService *service.ReportService
	chartService  *service.ChartService
}

func NewReportController(g *gin.RouterGroup, users *service.UserService, reports *service.ReportService, charts *service.ChartService) *ReportController {
	a := &ReportController{
		BaseController: BaseController{userService: users},
		reportService:  reports,
		chartService:   charts,
	}
	a.initRouter(g)
	return a
}

func (a *ReportController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/reports", a.checkLogin)

	g.GET("", a.list)
	g.GET("/:id/download", a.download)
}

func (a *ReportController) list(c *gin.Context) {
	reports, err := a.reportService.List(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	html(c, http.StatusOK, "reports.html", "pages.reports.title", gin.H{
		"reports":      reports,
		"downloadable": a.chartService.CanDownload(),
	})
}

// download streams an archived report back to the browser.
func (a *ReportController) download(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		notFound(c)
		return
	}
	data, report, err := a.chartService.Download(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrNoArchive), errors.Is(err, service.ErrReportNotFound), errors.Is(err, service.ErrArchiveMissing):
		notFound(c)
		return
	case err != nil:
		serverError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+path.Base(report.FilePath)+`"`)
	c.Data(http.StatusOK, render.XLSXContentType, data)
}
