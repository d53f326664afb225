// Package sqlite implements a SQLite-based transcript driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens transcripts.db and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "transcripts.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(&store.Exchange{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	d.db = nil
	return sqlDB.Close()
}

func (d *Driver) conn() (*gorm.DB, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}
	return d.db, nil
}

// AppendExchange inserts a new exchange row.
func (d *Driver) AppendExchange(ctx context.Context, ex *store.Exchange) error {
	db, err := d.conn()
	if err != nil {
		return err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&store.Exchange{}).Where("id = ?", ex.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return store.ErrAlreadyExists
	}

	cp := *ex
	return db.WithContext(ctx).Create(&cp).Error
}

// GetExchange retrieves an exchange by id.
func (d *Driver) GetExchange(ctx context.Context, id string) (*store.Exchange, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	var ex store.Exchange
	result := db.WithContext(ctx).First(&ex, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &ex, nil
}

// ListExchanges returns the exchanges of a session ordered by Seq.
func (d *Driver) ListExchanges(ctx context.Context, sessionID string) ([]*store.Exchange, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	var exchanges []*store.Exchange
	result := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").Order("created_at ASC").
		Find(&exchanges)
	if result.Error != nil {
		return nil, result.Error
	}
	return exchanges, nil
}

// ListSessions returns the distinct sorted session ids.
func (d *Driver) ListSessions(ctx context.Context) ([]string, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	var ids []string
	result := db.WithContext(ctx).Model(&store.Exchange{}).
		Distinct("session_id").
		Order("session_id ASC").
		Pluck("session_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// DeleteSession removes all exchange rows of a session.
func (d *Driver) DeleteSession(ctx context.Context, sessionID string) error {
	db, err := d.conn()
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&store.Exchange{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.TranscriptStore = (*Driver)(nil)
