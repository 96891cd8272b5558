// Package web assembles the sheetplot web server: routing, templates,
// sessions, background jobs and the listener.
package web

import (
	"context"
	"crypto/tls"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sheetplot/sheetplot/config"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/util/common"
	"github.com/sheetplot/sheetplot/web/cache"
	"github.com/sheetplot/sheetplot/web/controller"
	"github.com/sheetplot/sheetplot/web/job"
	"github.com/sheetplot/sheetplot/web/locale"
	"github.com/sheetplot/sheetplot/web/middleware"
	"github.com/sheetplot/sheetplot/web/network"
	"github.com/sheetplot/sheetplot/web/service"
	"github.com/sheetplot/sheetplot/web/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

//go:embed assets
var assetsFS embed.FS

//go:embed html/*
var htmlFS embed.FS

//go:embed translation/*
var i18nFS embed.FS

var startTime = time.Now()

// wrapAssetsFS serves the embedded assets with the process start time as
// modification time so browsers can revalidate them.
type wrapAssetsFS struct {
	embed.FS
}

func (f *wrapAssetsFS) Open(name string) (fs.File, error) {
	file, err := f.FS.Open("assets/" + name)
	if err != nil {
		return nil, err
	}
	return &wrapAssetsFile{File: file}, nil
}

type wrapAssetsFile struct {
	fs.File
}

func (f *wrapAssetsFile) Stat() (fs.FileInfo, error) {
	info, err := f.File.Stat()
	if err != nil {
		return nil, err
	}
	return &wrapAssetsFileInfo{FileInfo: info}, nil
}

type wrapAssetsFileInfo struct {
	fs.FileInfo
}

func (f *wrapAssetsFileInfo) ModTime() time.Time {
	return startTime
}

// Server is the sheetplot web server with its services and scheduled jobs.
type Server struct {
	db         *gorm.DB
	httpServer *http.Server
	listener   net.Listener
	redis      *cache.Redis
	secure     bool

	settingService *service.SettingService
	userService    *service.UserService
	reportService  *service.ReportService
	chartService   *service.ChartService

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server on top of an open database.
func NewServer(db *gorm.DB) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{db: db, ctx: ctx, cancel: cancel}
}

// initServices builds the services. The report archive is optional: a
// misconfigured or unreachable MinIO only disables downloads.
func (s *Server) initServices() {
	s.settingService = service.NewSettingService(s.db)
	s.userService = service.NewUserService(s.db)
	s.reportService = service.NewReportService(s.db)

	var archive service.Archive
	if cfg := config.GetArchiveConfig(); cfg.Enabled() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if a, err := service.NewMinioArchive(ctx, cfg); err != nil {
			logger.Warning("report archive disabled:", err)
		} else {
			archive = a
			logger.Infof("archiving reports to bucket %s at %s", cfg.Bucket, cfg.Endpoint)
		}
	}
	s.chartService = service.NewChartService(s.reportService, archive)
}

// redisClient connects to Redis on first use.
func (s *Server) redisClient() (*redis.Client, error) {
	if s.redis == nil {
		r, err := cache.NewRedis(s.ctx, config.GetRedisAddr(), config.GetRedisPassword())
		if err != nil {
			return nil, err
		}
		s.redis = r
	}
	return s.redis.Client(), nil
}

func (s *Server) sessionStore() (sessions.Store, error) {
	secret, err := s.settingService.GetSecret()
	if err != nil {
		return nil, err
	}

	var store sessions.Store
	if config.GetSessionStore() == config.SessionStoreRedis {
		client, err := s.redisClient()
		if err != nil {
			return nil, err
		}
		store = cache.NewRedisStore(client, secret)
	} else {
		store = cookie.NewStore(secret)
	}
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

func (s *Server) getHtmlTemplate(funcMap template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(htmlFS, "html/*.html")
}

// initRouter registers middleware, templates, static assets and controllers.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	if err := locale.InitLocalizer(i18nFS, "translation"); err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.MaxMultipartMemory = config.GetMaxUploadBytes()
	engine.Use(gin.Logger(), gin.CustomRecovery(controller.PanicHandler))
	engine.Use(middleware.RequestID())

	// workbooks are already zip archives
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/upload$`, `^/reports/\d+/download$`}),
	))

	store, err := s.sessionStore()
	if err != nil {
		return nil, err
	}
	engine.Use(sessions.Sessions(session.Name, store))
	engine.Use(locale.LocalizerMiddleware())

	funcMap := template.FuncMap{"i18n": locale.Translate}
	tpl, err := s.getHtmlTemplate(funcMap)
	if err != nil {
		return nil, err
	}
	engine.SetHTMLTemplate(tpl)
	engine.StaticFS("/assets", http.FS(&wrapAssetsFS{FS: assetsFS}))

	var limiter []gin.HandlerFunc
	if n := config.GetLoginRateLimit(); n > 0 {
		client, err := s.redisClient()
		if err != nil {
			return nil, err
		}
		limiter = append(limiter, middleware.RateLimitMiddleware(client, middleware.RateLimitConfig{
			Requests: n,
			Window:   time.Minute,
			Methods:  []string{http.MethodPost},
		}))
	}

	controller.NewIndexController(engine.Group("/", limiter...), s.userService, s.settingService)

	g := engine.Group("/")
	controller.NewUploadController(g, s.userService, s.chartService, config.GetMaxUploadBytes())
	controller.NewProfileController(g, s.userService)
	controller.NewReportController(g, s.userService, s.reportService, s.chartService)
	controller.NewServerController(g, s.userService)

	engine.NoRoute(controller.NotFound)

	return engine, nil
}

// startTask schedules the background jobs.
func (s *Server) startTask() {
	if _, err := s.cron.AddJob("@hourly", job.NewCheckpointJob(s.db)); err != nil {
		logger.Warning("add checkpoint job failed:", err)
	}
	if _, err := s.cron.AddJob("@daily", job.NewClearLogsJob(logger.GetLogPath())); err != nil {
		logger.Warning("add clear logs job failed:", err)
	}
	if _, err := s.cron.AddJob("@every 1m", job.NewCheckMemJob(s.settingService)); err != nil {
		logger.Warning("add memory check job failed:", err)
	}
}

// Start builds the router and begins serving in the background.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	s.initServices()

	loc, err := s.settingService.GetTimeLocation()
	if err != nil {
		return err
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(job.CronLogger{})),
	)

	certFile, err := s.settingService.GetCertFile()
	if err != nil {
		return err
	}
	keyFile, err := s.settingService.GetKeyFile()
	if err != nil {
		return err
	}
	var tlsConfig *tls.Config
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			logger.Error("error loading certificates:", err)
		} else {
			tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
			s.secure = true
		}
	}

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listen, err := s.settingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.settingService.GetPort()
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(listen, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	if tlsConfig != nil {
		listener = tls.NewListener(network.NewRedirectListener(listener), tlsConfig)
		logger.Info("Web server running HTTPS on", listener.Addr())
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()
	s.cron.Start()
	return nil
}

// Stop shuts down the listener, the cron scheduler and Redis.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var err1, err2, err3 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	} else if s.listener != nil {
		err2 = s.listener.Close()
	}
	if s.redis != nil {
		err3 = s.redis.Close()
	}
	return common.Combine(err1, err2, err3)
}

func (s *Server) GetCtx() context.Context { return s.ctx }

func (s *Server) GetCron() *cron.Cron { return s.cron }
