// Package store persists chat messages in a SQLite database. The log is
// append-only: rows are never updated or deleted, and the store-assigned id
// is the canonical total order for history replay.
package store

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/pkg/errors"
)

// Store implements domain.MessageStore on top of gorm/SQLite.
type Store struct {
	db     *gorm.DB
	logger *logging.Logger
}

// Open opens (creating if necessary) the message database at path and runs
// migrations.
func Open(path string, logger *logging.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "STORE_OPEN", "failed to open message database")
	}

	// SQLite allows a single writer; funnel all access through one
	// connection so concurrent session appends serialize instead of
	// failing with SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "STORE_OPEN", "failed to access database handle")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "STORE_MIGRATE", "failed to migrate messages table")
	}

	logger.Info("message store opened", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// Append implements domain.MessageStore. ID and Timestamp are assigned here,
// never by the caller.
func (s *Store) Append(ctx context.Context, msg *domain.Message) error {
	msg.ID = 0
	msg.Timestamp = time.Now().UTC()
	if msg.Receiver == "" {
		msg.Receiver = domain.ReceiverAll
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "STORE_APPEND", "failed to append message")
	}
	return nil
}

// Recent implements domain.MessageStore.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "STORE_QUERY", "failed to query recent messages")
	}
	return messages, nil
}

// ForUser implements domain.MessageStore. Broadcast messages are visible in
// every user's history.
func (s *Store) ForUser(ctx context.Context, username string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.WithContext(ctx).
		Where("sender = ? OR receiver = ? OR receiver = ?", username, username, domain.ReceiverAll).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "STORE_QUERY", "failed to query user history")
	}
	return messages, nil
}

// Close implements domain.MessageStore.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
