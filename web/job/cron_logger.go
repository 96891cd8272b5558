package job

import (
	"fmt"

	"github.com/sheetplot/sheetplot/logger"

	"github.com/robfig/cron/v3"
)

// CronLogger routes scheduler messages, including recovered job panics, to
// the application log.
type CronLogger struct{}

var _ cron.Logger = CronLogger{}

func (CronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: ", msg, " ", fmt.Sprint(keysAndValues...))
}

func (CronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: ", msg, " ", fmt.Sprint(keysAndValues...), ": ", err)
}
