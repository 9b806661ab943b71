package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/docrefine/internal/config"
	apperrors "github.com/gmsas95/docrefine/internal/errors"
	"github.com/gmsas95/docrefine/internal/ocr"
)

const ocrCachePrefix = "ocr:"

// Store provides run history in SQLite and the OCR cache in BadgerDB
type Store struct {
	db     *gorm.DB
	badger *badger.DB
}

// New opens the databases at the configured paths
func New(cfg config.StorageConfig) (*Store, error) {
	sqlitePath := cfg.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.DataDir, "docrefine.db")
	}

	badgerPath := cfg.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.DataDir, "ocr-cache")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	return open(sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", 10, badgerOpts)
}

// NewInMemory opens throwaway databases that live as long as the Store
func NewInMemory() (*Store, error) {
	return open(":memory:", 1, badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(dsn string, maxConns int, badgerOpts badger.Options) (*Store, error) {
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(maxConns)
	sqliteDB.SetMaxIdleConns(maxConns)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&Run{}); err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, badger: badgerDB}, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var errs []error
	if sqlDB, err := s.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	errs = append(errs, s.badger.Close())
	return stderrors.Join(errs...)
}

// ==================== Run History (SQLite) ====================

// CreateRun stores a run, assigning an ID if it has none
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// GetRun returns the run with the given ID
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapAs(apperrors.ErrNotFound, fmt.Errorf("run %s", id))
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}

// RunsForSource returns every run of one source document, newest first
func (s *Store) RunsForSource(ctx context.Context, sourcePath string) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Where("source_path = ?", sourcePath).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}

// ==================== OCR Cache (BadgerDB) ====================

// CacheKey identifies OCR output by document content and engine languages
func CacheKey(content []byte, languages []string) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(languages, "+")))
	return hex.EncodeToString(h.Sum(nil))
}

// GetOCR returns a cached OCR result. The bool is false on a miss.
func (s *Store) GetOCR(key string) (*ocr.Result, bool, error) {
	var raw []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ocrCachePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			raw = append([]byte{}, v...)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result ocr.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &result, true, nil
}

// PutOCR caches an OCR result
func (s *Store) PutOCR(key string, result *ocr.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode OCR result: %w", err)
	}
	return s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ocrCachePrefix+key), raw)
	})
}

// PurgeOCR drops every cached OCR result and returns how many were removed
func (s *Store) PurgeOCR() (int, error) {
	var keys [][]byte
	prefix := []byte(ocrCachePrefix)

	err := s.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	err = s.badger.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
