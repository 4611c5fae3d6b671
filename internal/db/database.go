package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"keygate/internal/config"
	"keygate/internal/model"
)

// Sentinel errors for the storage layer. Callers map these onto HTTP
// statuses; anything else is an internal storage failure.
var (
	// ErrKeyNotFound covers both a missing record and an inactive one on
	// the validation path, so probing clients cannot tell them apart.
	ErrKeyNotFound = errors.New("api key not found")

	// ErrDuplicateKey is returned when a create collides with an existing
	// key value on the unique index.
	ErrDuplicateKey = errors.New("api key value already exists")

	// ErrLimitExceeded is returned when a usage increment finds no
	// headroom left under the key's limit.
	ErrLimitExceeded = errors.New("usage limit exceeded")
)

// UsageSnapshot is the usage state of a key after a successful increment.
type UsageSnapshot struct {
	Current int `json:"current"`
	Limit   int `json:"limit"`
}

// Service is the storage interface for API key records. It decouples the
// handlers and core service from the concrete gorm implementation and
// allows mocking in tests.
type Service interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error)
	UpdateAPIKey(ctx context.Context, id uint, updates map[string]any) (*model.APIKey, error)
	DeleteAPIKey(ctx context.Context, id uint) error
	FindActiveAPIKey(ctx context.Context, value string) (*model.APIKey, error)
	ConsumeUsage(ctx context.Context, id uint) (*UsageSnapshot, error)
	ResetAllUsage(ctx context.Context) error
	Close() error
}

type gormService struct {
	db *gorm.DB
}

// NewService opens the database described by the configuration and runs the
// schema migration.
func NewService(cfg config.DatabaseConfig) (Service, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Type == "sqlite" {
		// SQLite allows a single writer; funnel everything through one
		// connection so concurrent conditional updates queue instead of
		// failing with SQLITE_BUSY. This must happen before the migration:
		// with an in-memory DSN every new connection is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.APIKey{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &gormService{db: db}, nil
}

func (s *gormService) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ListAPIKeys returns all key records, newest first.
func (s *gormService) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	result := s.db.WithContext(ctx).Order("created_at desc").Find(&keys)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", result.Error)
	}
	return keys, nil
}

func (s *gormService) GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.WithContext(ctx).First(&key, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key %d: %w", id, err)
	}
	return &key, nil
}

// UpdateAPIKey applies a partial update (name, status, usage_limit) to the
// record with the given id and returns the refreshed record.
func (s *gormService) UpdateAPIKey(ctx context.Context, id uint, updates map[string]any) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.WithContext(ctx).First(&key, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key %d: %w", id, err)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&key).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update api key %d: %w", id, err)
		}
		// Re-read so the returned record carries the refreshed UpdatedAt.
		if err := s.db.WithContext(ctx).First(&key, id).Error; err != nil {
			return nil, fmt.Errorf("failed to re-read api key %d: %w", id, err)
		}
	}
	return &key, nil
}

// DeleteAPIKey permanently removes the record. There is no soft delete.
func (s *gormService) DeleteAPIKey(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.APIKey{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete api key %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// FindActiveAPIKey looks up a record by its exact key value, restricted to
// active keys. Inactive and missing keys both come back as ErrKeyNotFound.
func (s *gormService) FindActiveAPIKey(ctx context.Context, value string) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.WithContext(ctx).
		Where("key = ? AND status = ?", value, model.StatusActive).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	return &key, nil
}

// ConsumeUsage increments the key's usage counter by one, but only while
// the counter is below the limit. The check and the increment are a single
// conditional UPDATE, so two concurrent calls with one unit of headroom
// left cannot both succeed.
func (s *gormService) ConsumeUsage(ctx context.Context, id uint) (*UsageSnapshot, error) {
	result := s.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ? AND usage_count < usage_limit", id).
		Updates(map[string]any{"usage_count": gorm.Expr("usage_count + 1")})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume usage for api key %d: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		// Either the key is gone or it is out of headroom; re-read to tell
		// the two apart.
		var key model.APIKey
		if err := s.db.WithContext(ctx).First(&key, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrKeyNotFound
			}
			return nil, fmt.Errorf("failed to re-check api key %d: %w", id, err)
		}
		return nil, ErrLimitExceeded
	}

	var key model.APIKey
	if err := s.db.WithContext(ctx).First(&key, id).Error; err != nil {
		return nil, fmt.Errorf("failed to read usage for api key %d: %w", id, err)
	}
	// The snapshot is a re-read; a concurrent consumer may already have
	// advanced the counter further.
	return &UsageSnapshot{Current: key.UsageCount, Limit: key.UsageLimit}, nil
}

// ResetAllUsage resets the usage count of all API keys to 0. Only the
// scheduler calls this; it is never exposed over HTTP.
func (s *gormService) ResetAllUsage(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("usage_count > 0").
		Update("usage_count", 0)
	if result.Error != nil {
		return fmt.Errorf("failed to reset api key usage: %w", result.Error)
	}
	return nil
}

func (s *gormService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
