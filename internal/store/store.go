package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

// Run is one stored analysis. Report holds the JSON form of the report.
type Run struct {
	ID            uint      `gorm:"column:id;primaryKey"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`
	Target        string    `gorm:"column:target;index"`
	RiskScore     float64   `gorm:"column:risk_score"`
	Findings      int       `gorm:"column:findings"`
	Critical      int       `gorm:"column:critical"`
	High          int       `gorm:"column:high"`
	Medium        int       `gorm:"column:medium"`
	Low           int       `gorm:"column:low"`
	Informational int       `gorm:"column:informational"`
	Diagnostics   int       `gorm:"column:diagnostics"`
	Report        []byte    `gorm:"column:report"`
}

func (Run) TableName() string { return "runs" }

// Store keeps report history in sqlite. It only ever reads reports.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores r under target.
func (s *Store) Record(ctx context.Context, target string, r *report.Report, at time.Time) (Run, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return Run{}, fmt.Errorf("encode report: %w", err)
	}
	sum := r.Summary()
	run := Run{
		CreatedAt:     at.UTC(),
		Target:        target,
		RiskScore:     r.RiskScore(),
		Findings:      sum.TotalFindings,
		Critical:      sum.BySeverity[model.SeverityCritical],
		High:          sum.BySeverity[model.SeverityHigh],
		Medium:        sum.BySeverity[model.SeverityMedium],
		Low:           sum.BySeverity[model.SeverityLow],
		Informational: sum.BySeverity[model.SeverityInformational],
		Diagnostics:   len(r.Diagnostics()),
		Report:        data,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

// Recent lists the newest runs first. An empty target lists every target.
func (s *Store) Recent(ctx context.Context, target string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Omit("report").Order("created_at DESC, id DESC").Limit(limit)
	if target != "" {
		q = q.Where("target = ?", target)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Load returns the stored report of run id.
func (s *Store) Load(ctx context.Context, id uint) (*report.Report, error) {
	var run Run
	if err := s.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, fmt.Errorf("load run %d: %w", id, err)
	}
	return report.Parse(run.Report)
}
