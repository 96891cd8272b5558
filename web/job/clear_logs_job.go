package job

import (
	"io"
	"os"

	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/util/common"
)

// ClearLogsJob moves the log file into <log>.prev and truncates it, keeping
// one previous generation.
type ClearLogsJob struct {
	path string
}

func NewClearLogsJob(path string) *ClearLogsJob {
	return &ClearLogsJob{path: path}
}

func (j *ClearLogsJob) Run() {
	defer common.Recover("clear logs job")

	if err := rotate(j.path, j.path+".prev"); err != nil {
		logger.Warning("clear logs job err:", err)
	}
}

// rotate copies src over dst and truncates src. The logger keeps src open
// in append mode, so truncating in place is safe.
func rotate(src, dst string) error {
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Truncate(src, 0)
}
