package service

import (
	"context"
	"path"

	"github.com/sheetplot/sheetplot/database"
	"github.com/sheetplot/sheetplot/database/model"

	"gorm.io/gorm"
)

const reportFolder = "reports"

type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// ReportPath is the conventional storage path recorded for a report title.
func ReportPath(title string) string {
	return reportFolder + "/" + path.Base(title)
}

// Create records a generated workbook. userID may be nil.
func (s *ReportService) Create(ctx context.Context, title string, userID *int) (*model.Report, error) {
	report := &model.Report{
		Title:    title,
		FilePath: ReportPath(title),
		UserId:   userID,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

// List returns every report in creation order.
func (s *ReportService) List(ctx context.Context) ([]model.Report, error) {
	reports := make([]model.Report, 0)
	err := s.db.WithContext(ctx).Model(model.Report{}).Order("id ASC").Find(&reports).Error
	return reports, err
}

func (s *ReportService) Get(ctx context.Context, id int) (*model.Report, error) {
	report := &model.Report{}
	err := s.db.WithContext(ctx).Model(model.Report{}).Where("id = ?", id).First(report).Error
	if database.IsNotFound(err) {
		return nil, ErrReportNotFound
	} else if err != nil {
		return nil, err
	}
	return report, nil
}
