package controller

import (
	"net/http"
	"strconv"

	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/web/entity"
	"github.com/sheetplot/sheetplot/web/service"

	"github.com/gin-gonic/gin"
)

const maxLogCount = 10000

// ServerController exposes the recent in-memory log entries of the running
// server.
type ServerController struct {
	BaseController
}

func NewServerController(g *gin.RouterGroup, users *service.UserService) *ServerController {
	a := &ServerController{BaseController: BaseController{userService: users}}
	a.initRouter(g)
	return a
}

func (a *ServerController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/server", a.checkLogin)

	g.POST("/logs/:count", a.getLogs)
}

// getLogs returns up to count entries at or above the posted level,
// newest first.
func (a *ServerController) getLogs(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil || count < 1 || count > maxLogCount {
		pureJsonMsg(c, http.StatusBadRequest, false, "count must be between 1 and 10000")
		return
	}
	level := c.DefaultPostForm("level", "INFO")
	c.JSON(http.StatusOK, entity.Msg{
		Success: true,
		Obj:     logger.GetLogs(count, level),
	})
}
