// Package store provides the sqlite-backed reference implementations of the
// collaborator interfaces the message core consumes: tasks, users, check-in
// history, and the outbound message log.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store owns the shared sqlite database and hands out typed sub-stores.
type Store struct {
	db     *gorm.DB
	dbPath string
}

// Open creates or loads the bot database under baseDir.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "mhm.db")
	dsn := dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bot database: %w", err)
	}

	if err := db.AutoMigrate(&Task{}, &User{}, &CheckinRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate bot database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Tasks returns the task sub-store.
func (s *Store) Tasks() *TaskStore {
	return &TaskStore{db: s.db}
}

// Users returns the user sub-store.
func (s *Store) Users() *UserStore {
	return &UserStore{db: s.db}
}

// Checkins returns the check-in history sub-store.
func (s *Store) Checkins() *CheckinStore {
	return &CheckinStore{db: s.db}
}

// Messages returns the outbound message log sub-store.
func (s *Store) Messages() *MessageStore {
	return &MessageStore{db: s.db}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
