// Package demo is the keyed-blob store behind the offline demo mode.
//
// Every logical collection (users, reports, photos, ...) is one JSON value
// under a fixed key. Writers go through Atomic, which serialises
// read-modify-write cycles and commits all touched keys together.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Keys used by the demo adapter.
const (
	KeyUsers    = "users"
	KeySession  = "session"
	KeyReports  = "reports"
	KeyPhotos   = "photos"
	KeyActivity = "activity_logs"
	KeySeeded   = "seeded"
)

type blob struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     datatypes.JSON
	UpdatedAt time.Time
}

func (blob) TableName() string { return "demo_blobs" }

type KV struct {
	db  *gorm.DB
	mu  sync.Mutex
	Now func() time.Time
}

// Open opens (and creates) the blob table behind dsn using the pure-Go sqlite driver.
func Open(dsn string) (*KV, error) {
	gdb, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open demo store: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := gdb.AutoMigrate(&blob{}); err != nil {
		return nil, fmt.Errorf("migrate demo store: %w", err)
	}
	return &KV{db: gdb, Now: time.Now}, nil
}

func (kv *KV) Close() error {
	sqlDB, err := kv.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get decodes the value under key into dst. It reports false when the key is unset.
func (kv *KV) Get(ctx context.Context, key string, dst any) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return Txn{db: kv.db.WithContext(ctx)}.Get(key, dst)
}

// Atomic runs fn with exclusive access; every Put inside commits or none does.
func (kv *KV) Atomic(ctx context.Context, fn func(tx Txn) error) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	now := kv.Now
	if now == nil {
		now = time.Now
	}
	return kv.db.WithContext(ctx).Transaction(func(g *gorm.DB) error {
		return fn(Txn{db: g, now: now})
	})
}

// Txn reads and writes blobs inside KV.Atomic.
type Txn struct {
	db  *gorm.DB
	now func() time.Time
}

// keyIs lets gorm quote the column; key is a keyword in some dialects.
func keyIs(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func (t Txn) Get(key string, dst any) (bool, error) {
	var b blob
	err := t.db.Where(keyIs(key)).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(b.Value) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b.Value, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (t Txn) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	b := blob{Key: key, Value: datatypes.JSON(data), UpdatedAt: t.now().UTC()}
	err = t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&b).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (t Txn) Delete(key string) error {
	if err := t.db.Where(keyIs(key)).Delete(&blob{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
