// Package history keeps a local SQLite record of finished runs.
package history

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/ending"
	"github.com/mensylisir/xmupgrade/file"
	"github.com/mensylisir/xmupgrade/ip"
	"github.com/mensylisir/xmupgrade/util"
)

const fileName = "history.db"

// Run is one recorded invocation.
type Run struct {
	ID         string `gorm:"primaryKey"`
	Hostname   string
	Address    string
	Mode       string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	Succeeded  int
	Skipped    int
	Failed     int
	ExitCode   int
	Entries    []Entry `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// Entry is one line of a recorded report.
type Entry struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index"`
	Position   int
	Name       string
	Phase      string
	Status     string
	Detail     string
	DurationMS int64
}

// Store persists runs via SQLite.
type Store struct {
	db *gorm.DB
}

// DefaultPath is misc.history_path when set, otherwise a file next to the
// user's xmupgrade config directory.
func DefaultPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, common.AppName, fileName), nil
	}
	home, err := util.Home()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate history file")
	}
	return filepath.Join(home, "."+common.AppName, fileName), nil
}

// Open creates the database and its parent directory if needed.
func Open(path string) (*Store, error) {
	if err := file.CreateDir(filepath.Dir(path)); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history %s", path)
	}
	if err := db.AutoMigrate(&Run{}, &Entry{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate history")
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

// Record stores a finished report.
func (s *Store) Record(ctx context.Context, report *ending.Report, mode string) (*Run, error) {
	success, skipped, failed := report.Counts()
	run := &Run{
		ID:         report.RunID,
		Hostname:   util.Hostname(),
		Mode:       mode,
		StartedAt:  report.Started.UTC(),
		FinishedAt: report.Finished.UTC(),
		Succeeded:  success,
		Skipped:    skipped,
		Failed:     failed,
		ExitCode:   report.ExitCode(),
	}
	if addr, err := ip.GetHostLocalIP(); err == nil {
		run.Address = addr
	}
	for i, e := range report.Entries() {
		run.Entries = append(run.Entries, Entry{
			RunID:      report.RunID,
			Position:   i,
			Name:       e.Name,
			Phase:      e.Phase,
			Status:     e.Outcome.Status.String(),
			Detail:     e.Outcome.Detail(),
			DurationMS: e.Duration.Milliseconds(),
		})
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to record run %s", run.ID)
	}
	return run, nil
}

// Recent returns up to n runs, newest first, with their entries in report
// order.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("started_at DESC").
		Limit(n).
		Find(&runs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", id).
		First(&run).Error
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", id)
	}
	return &run, nil
}
