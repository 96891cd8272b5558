package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sheetplot/sheetplot/config"
	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/web"
	"github.com/sheetplot/sheetplot/web/service"

	"github.com/goccy/go-json"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func initLogger() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
}

func openDB() (*gorm.DB, error) {
	return database.InitDB(config.GetDBPath())
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	defer logger.CloseLogger()

	db, err := openDB()
	if err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB(db)

	server := web.NewServer(db)
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, restarting web server")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer(db)
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			logger.Infof("received %v, shutting down", sig)
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func resetSetting() {
	db, err := openDB()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB(db)

	if err := service.NewSettingService(db).ResetSettings(); err != nil {
		fmt.Println("reset setting failed:", err)
	} else {
		fmt.Println("reset setting success")
	}
}

func showSetting(asJSON bool) {
	db, err := openDB()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB(db)

	all, err := service.NewSettingService(db).GetAllSetting()
	if err != nil {
		fmt.Println("get current settings failed:", err)
		return
	}
	if asJSON {
		out, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(string(out))
		return
	}
	fmt.Println("current panel settings as follows:")
	fmt.Println("listen:", all.WebListen)
	fmt.Println("port:", all.WebPort)
	fmt.Println("certFile:", all.WebCertFile)
	fmt.Println("keyFile:", all.WebKeyFile)
	fmt.Println("sessionMaxAge:", all.SessionMaxAge)
	fmt.Println("rememberMaxAge:", all.RememberMaxAge)
	fmt.Println("timeLocation:", all.TimeLocation)
	fmt.Println("memThreshold:", all.MemThreshold)
}

func updateSetting(listen string, port int, certFile, keyFile string, rememberMaxAge, memThreshold int) {
	db, err := openDB()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB(db)

	settingService := service.NewSettingService(db)
	all, err := settingService.GetAllSetting()
	if err != nil {
		fmt.Println(err)
		return
	}
	if listen != "" {
		all.WebListen = listen
	}
	if port > 0 {
		all.WebPort = port
	}
	if certFile != "" || keyFile != "" {
		all.WebCertFile, all.WebKeyFile = certFile, keyFile
	}
	if rememberMaxAge > 0 {
		all.RememberMaxAge = rememberMaxAge
	}
	if memThreshold >= 0 {
		all.MemThreshold = memThreshold
	}
	if err := all.CheckValid(); err != nil {
		fmt.Println("invalid settings:", err)
		return
	}

	if listen != "" {
		if err := settingService.SetListen(listen); err != nil {
			fmt.Println("set listen failed:", err)
			return
		}
	}
	if port > 0 {
		if err := settingService.SetPort(port); err != nil {
			fmt.Println("set port failed:", err)
			return
		}
	}
	if certFile != "" || keyFile != "" {
		if err := settingService.SetCert(certFile, keyFile); err != nil {
			fmt.Println("set cert failed:", err)
			return
		}
	}
	if rememberMaxAge > 0 {
		if err := settingService.SetRememberMaxAge(rememberMaxAge); err != nil {
			fmt.Println("set remember max age failed:", err)
			return
		}
	}
	if memThreshold >= 0 {
		if err := settingService.SetMemThreshold(memThreshold); err != nil {
			fmt.Println("set memory threshold failed:", err)
			return
		}
	}
	fmt.Println("update settings success")
}

func addUser(username, email, password string) {
	db, err := openDB()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer database.CloseDB(db)

	user, err := service.NewUserService(db).CreateUser(context.Background(), username, email, password)
	if err != nil {
		fmt.Println("add user failed:", err)
		return
	}
	fmt.Printf("user %s <%s> created with id %d\n", user.Username, user.Email, user.Id)
}

// migrateDb imports an existing sqlite database file, when given, and
// brings the schema up to date.
func migrateDb(from string) {
	if from != "" {
		if err := importDB(from, config.GetDBPath()); err != nil {
			fmt.Println("import database failed:", err)
			return
		}
		fmt.Printf("imported %s into %s\n", from, config.GetDBPath())
	}

	fmt.Println("Start migrating database...")
	db, err := openDB()
	if err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB(db)
	fmt.Println("Migration done!")
}

func importDB(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	ok, err := database.IsSQLiteDB(in)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a sqlite database", src)
	}
	if _, err := os.Stat(dst); err == nil {
		backup := dst + ".bak"
		if err := os.Rename(dst, backup); err != nil {
			return err
		}
		fmt.Println("existing database moved to", backup)
	}
	if err := os.MkdirAll(config.GetDBFolderPath(), 0o750); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Println(err)
	}

	var rootCmd = &cobra.Command{
		Use:   config.GetName(),
		Short: "Chart-embedding panel for xlsx workbooks",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema, optionally importing an existing database",
		Run: func(cmd *cobra.Command, args []string) {
			from, _ := cmd.Flags().GetString("from")
			migrateDb(from)
		},
	}
	migrateCmd.Flags().String("from", "", "import this sqlite database file before migrating")

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Set settings",
	}

	var resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset all settings",
		Run: func(cmd *cobra.Command, args []string) {
			resetSetting()
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			asJSON, _ := cmd.Flags().GetBool("json")
			showSetting(asJSON)
		},
	}
	showCmd.Flags().Bool("json", false, "print settings as json")

	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update settings",
		Run: func(cmd *cobra.Command, args []string) {
			listen, _ := cmd.Flags().GetString("listen")
			port, _ := cmd.Flags().GetInt("port")
			certFile, _ := cmd.Flags().GetString("cert")
			keyFile, _ := cmd.Flags().GetString("key")
			remember, _ := cmd.Flags().GetInt("rememberMaxAge")
			memThreshold, _ := cmd.Flags().GetInt("memThreshold")
			updateSetting(listen, port, certFile, keyFile, remember, memThreshold)
		},
	}
	updateCmd.Flags().String("listen", "", "set listen ip")
	updateCmd.Flags().Int("port", 0, "set panel port")
	updateCmd.Flags().String("cert", "", "set tls certificate file")
	updateCmd.Flags().String("key", "", "set tls key file")
	updateCmd.Flags().Int("rememberMaxAge", 0, "set remember-me session length in minutes")
	updateCmd.Flags().Int("memThreshold", -1, "set memory warning threshold in percent, 0 disables")

	settingCmd.AddCommand(resetCmd, showCmd, updateCmd)

	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var addCmd = &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			addUser(username, email, password)
		},
	}
	addCmd.Flags().String("username", "", "login username")
	addCmd.Flags().String("email", "", "login email")
	addCmd.Flags().String("password", "", "login password")
	_ = addCmd.MarkFlagRequired("username")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("password")

	userCmd.AddCommand(addCmd)

	rootCmd.AddCommand(runCmd, migrateCmd, settingCmd, userCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
