package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"keygate/internal/db"
	"keygate/internal/keygen"
	"keygate/internal/model"
	"keygate/internal/notifier"
)

// ErrInvalidInput is returned when caller-supplied data is malformed:
// an empty key, an empty name, a bad status value, a non-positive limit.
// Such input is rejected before any store access.
var ErrInvalidInput = errors.New("invalid input")

// createRetries bounds how many times key generation is retried when a
// freshly generated value collides with an existing one.
const createRetries = 3

// KeyService implements validation, usage accounting and key management on
// top of the storage layer. Validation never mutates anything; only
// RecordUsage consumes quota.
type KeyService struct {
	db                db.Service
	gen               keygen.Generator
	notifier          notifier.Notifier
	logger            *slog.Logger
	defaultUsageLimit int
}

func NewKeyService(dbService db.Service, gen keygen.Generator, n notifier.Notifier, logger *slog.Logger, defaultUsageLimit int) *KeyService {
	if defaultUsageLimit <= 0 {
		defaultUsageLimit = 1000
	}
	return &KeyService{
		db:                dbService,
		gen:               gen,
		notifier:          n,
		logger:            logger.With("component", "keyservice"),
		defaultUsageLimit: defaultUsageLimit,
	}
}

// Validate checks a raw key string and returns the matching record with the
// secret value stripped. A missing key and an inactive key both come back
// as db.ErrKeyNotFound, so callers cannot probe for which keys exist.
func (s *KeyService) Validate(ctx context.Context, rawKey string) (*model.APIKey, error) {
	trimmed := strings.TrimSpace(rawKey)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	key, err := s.db.FindActiveAPIKey(ctx, trimmed)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
		s.logger.Error("api key lookup failed", "error", err)
		return nil, fmt.Errorf("api key lookup: %w", err)
	}
	return key.Sanitized(), nil
}

// RecordUsage consumes one usage unit for a previously validated key. The
// check against the limit and the increment are one atomic store operation;
// with one unit of headroom left, concurrent calls yield exactly one
// success. Returns db.ErrLimitExceeded when the key is exhausted.
func (s *KeyService) RecordUsage(ctx context.Context, key *model.APIKey) (*db.UsageSnapshot, error) {
	snapshot, err := s.db.ConsumeUsage(ctx, key.ID)
	if err != nil {
		if errors.Is(err, db.ErrLimitExceeded) {
			s.notifier.LimitReached(key)
			return nil, err
		}
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
		s.logger.Error("usage increment failed", "key_id", key.ID, "error", err)
		return nil, fmt.Errorf("usage increment: %w", err)
	}
	return snapshot, nil
}

// CreateKey generates a key value and persists a new record. A collision
// with an existing value triggers regeneration; after createRetries
// attempts the conflict is surfaced to the caller.
func (s *KeyService) CreateKey(ctx context.Context, name string, usageLimit int) (*model.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if usageLimit < 0 {
		return nil, ErrInvalidInput
	}
	if usageLimit == 0 {
		usageLimit = s.defaultUsageLimit
	}

	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		value, err := s.gen.Generate(name)
		if err != nil {
			return nil, fmt.Errorf("key generation: %w", err)
		}

		key := &model.APIKey{
			Name:       name,
			Key:        value,
			Status:     model.StatusActive,
			UsageLimit: usageLimit,
		}
		err = s.db.CreateAPIKey(ctx, key)
		if err == nil {
			s.notifier.KeyCreated(key)
			return key, nil
		}
		if !errors.Is(err, db.ErrDuplicateKey) {
			s.logger.Error("api key create failed", "name", name, "error", err)
			return nil, fmt.Errorf("api key create: %w", err)
		}
		lastErr = err
		s.logger.Warn("generated key value collided, retrying", "attempt", attempt+1)
	}
	return nil, lastErr
}

// UpdateParams is a partial update of the mutable fields. Nil fields are
// left untouched; the key value itself is immutable.
type UpdateParams struct {
	Name       *string
	Status     *string
	UsageLimit *int
}

func (s *KeyService) UpdateKey(ctx context.Context, id uint, params UpdateParams) (*model.APIKey, error) {
	updates := map[string]any{}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		updates["name"] = name
	}
	if params.Status != nil {
		if *params.Status != model.StatusActive && *params.Status != model.StatusInactive {
			return nil, ErrInvalidInput
		}
		updates["status"] = *params.Status
	}
	if params.UsageLimit != nil {
		if *params.UsageLimit <= 0 {
			return nil, ErrInvalidInput
		}
		updates["usage_limit"] = *params.UsageLimit
	}

	key, err := s.db.UpdateAPIKey(ctx, id, updates)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
		s.logger.Error("api key update failed", "key_id", id, "error", err)
		return nil, fmt.Errorf("api key update: %w", err)
	}
	return key, nil
}

func (s *KeyService) DeleteKey(ctx context.Context, id uint) error {
	key, err := s.db.GetAPIKey(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return err
		}
		s.logger.Error("api key fetch failed", "key_id", id, "error", err)
		return fmt.Errorf("api key fetch: %w", err)
	}

	if err := s.db.DeleteAPIKey(ctx, id); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return err
		}
		s.logger.Error("api key delete failed", "key_id", id, "error", err)
		return fmt.Errorf("api key delete: %w", err)
	}
	s.notifier.KeyDeleted(key.ID, key.Name)
	return nil
}

func (s *KeyService) ListKeys(ctx context.Context) ([]model.APIKey, error) {
	keys, err := s.db.ListAPIKeys(ctx)
	if err != nil {
		s.logger.Error("api key list failed", "error", err)
		return nil, fmt.Errorf("api key list: %w", err)
	}
	return keys, nil
}

func (s *KeyService) GetKey(ctx context.Context, id uint) (*model.APIKey, error) {
	key, err := s.db.GetAPIKey(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
		s.logger.Error("api key fetch failed", "key_id", id, "error", err)
		return nil, fmt.Errorf("api key fetch: %w", err)
	}
	return key, nil
}
