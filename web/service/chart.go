package service

import (
	"context"
	"fmt"

	"github.com/sheetplot/sheetplot/database/model"
	"github.com/sheetplot/sheetplot/logger"
	"github.com/sheetplot/sheetplot/render"
)

// ChartService runs the render pipeline for an upload and records the
// resulting report.
type ChartService struct {
	reports *ReportService
	archive Archive
}

// NewChartService returns a ChartService. archive may be nil.
func NewChartService(reports *ReportService, archive Archive) *ChartService {
	return &ChartService{reports: reports, archive: archive}
}

// Columns lists the header row of an uploaded workbook.
func (s *ChartService) Columns(filename string, data []byte) ([]string, error) {
	return render.ListColumns(filename, data)
}

// Render draws graphType from the x/y columns into a copy of the upload,
// records a Report owned by userID and archives the output when an archive
// is configured. Archive failures are logged and do not fail the render.
func (s *ChartService) Render(ctx context.Context, userID *int, filename string, data []byte, graphType, x, y string) ([]byte, *model.Report, error) {
	if err := render.CheckFilename(filename); err != nil {
		return nil, nil, err
	}
	kind, err := render.ParseChartKind(graphType)
	if err != nil {
		return nil, nil, err
	}

	out, err := render.Render(render.Request{
		Filename: filename,
		Data:     data,
		Kind:     kind,
		XColumn:  x,
		YColumn:  y,
	})
	if err != nil {
		return nil, nil, err
	}

	report, err := s.reports.Create(ctx, filename, userID)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("rendered %s chart for %q (report %d)", kind, filename, report.Id)

	if s.archive != nil {
		if err := s.archive.Put(ctx, archiveKey(report), out, render.XLSXContentType); err != nil {
			logger.Warningf("archive report %d failed: %v", report.Id, err)
		}
	}
	return out, report, nil
}

// CanDownload reports whether archived reports can be fetched.
func (s *ChartService) CanDownload() bool {
	return s.archive != nil
}

// Download fetches the archived workbook of a report.
func (s *ChartService) Download(ctx context.Context, reportID int) ([]byte, *model.Report, error) {
	if s.archive == nil {
		return nil, nil, ErrNoArchive
	}
	report, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.archive.Get(ctx, archiveKey(report))
	if err != nil {
		return nil, nil, err
	}
	return data, report, nil
}

// archiveKey prefixes the report path with its id so repeated uploads of
// the same file name do not overwrite each other.
func archiveKey(r *model.Report) string {
	return fmt.Sprintf("%d/%s", r.Id, r.FilePath)
}
