// Package job contains the cron jobs run by the web server.
package job

import (
	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/util/common"

	"go.uber.org/atomic"
	"gorm.io/gorm"
)

// CheckpointJob folds the sqlite write-ahead log back into the database
// file so it does not grow without bound.
type CheckpointJob struct {
	db      *gorm.DB
	running atomic.Bool
}

func NewCheckpointJob(db *gorm.DB) *CheckpointJob {
	return &CheckpointJob{db: db}
}

// Run skips the tick when the previous checkpoint is still running.
func (j *CheckpointJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		logger.Debug("checkpoint still running, skipping")
		return
	}
	defer j.running.Store(false)
	defer common.Recover("checkpoint job panic")

	if err := database.Checkpoint(j.db); err != nil {
		logger.Warning("checkpoint job err:", err)
	}
}
