package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"keygate/internal/config"
	"keygate/internal/db"
	"keygate/internal/keygen"
	"keygate/internal/logger"
	"keygate/internal/model"
)

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu           sync.Mutex
	created      []string
	deleted      []string
	limitReached []string
}

func (n *recordingNotifier) KeyCreated(key *model.APIKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, key.Name)
}

func (n *recordingNotifier) KeyDeleted(id uint, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, name)
}

func (n *recordingNotifier) LimitReached(key *model.APIKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.limitReached = append(n.limitReached, key.Name)
}

func (n *recordingNotifier) Close() error { return nil }

// stubGenerator returns scripted key values in order.
type stubGenerator struct {
	values []string
	calls  int
}

func (g *stubGenerator) Generate(name string) (string, error) {
	v := g.values[g.calls%len(g.values)]
	g.calls++
	return v, nil
}

func setupService(t *testing.T, gen keygen.Generator) (*KeyService, *recordingNotifier) {
	t.Helper()
	dbService, err := db.NewService(config.DatabaseConfig{Type: "sqlite", DSN: "file::memory:"})
	if err != nil {
		t.Fatalf("Failed to create test db service: %v", err)
	}
	t.Cleanup(func() { dbService.Close() })

	if gen == nil {
		gen = keygen.New()
	}
	n := &recordingNotifier{}
	return NewKeyService(dbService, gen, n, logger.New(false), 1000), n
}

func TestValidate(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	key, err := svc.CreateKey(ctx, "Test Key", 0)
	assert.NoError(t, err)

	t.Run("active key with surrounding whitespace", func(t *testing.T) {
		validated, err := svc.Validate(ctx, "  "+key.Key+"  ")
		assert.NoError(t, err)
		assert.Equal(t, key.ID, validated.ID)
		assert.Equal(t, "Test Key", validated.Name)
		assert.Empty(t, validated.Key, "secret value must be stripped from validation results")
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := svc.Validate(ctx, "   ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.Validate(ctx, "pk_dev_doesnotexist")
		assert.ErrorIs(t, err, db.ErrKeyNotFound)
	})

	t.Run("inactive key is indistinguishable from a missing one", func(t *testing.T) {
		status := model.StatusInactive
		_, err := svc.UpdateKey(ctx, key.ID, UpdateParams{Status: &status})
		assert.NoError(t, err)

		_, errInactive := svc.Validate(ctx, key.Key)
		_, errMissing := svc.Validate(ctx, "pk_dev_doesnotexist")
		assert.ErrorIs(t, errInactive, db.ErrKeyNotFound)
		assert.Equal(t, errMissing, errInactive)
	})

	t.Run("deleted key is indistinguishable from a missing one", func(t *testing.T) {
		deleted, err := svc.CreateKey(ctx, "Short Lived", 0)
		assert.NoError(t, err)
		assert.NoError(t, svc.DeleteKey(ctx, deleted.ID))

		_, errDeleted := svc.Validate(ctx, deleted.Key)
		_, errMissing := svc.Validate(ctx, "pk_dev_doesnotexist")
		assert.ErrorIs(t, errDeleted, db.ErrKeyNotFound)
		assert.Equal(t, errMissing, errDeleted)
	})
}

func TestCreateKey(t *testing.T) {
	t.Run("defaults and prefixes", func(t *testing.T) {
		svc, n := setupService(t, nil)
		ctx := context.Background()

		key, err := svc.CreateKey(ctx, "Production Key", 0)
		assert.NoError(t, err)
		assert.Contains(t, key.Key, keygen.LivePrefix)
		assert.Equal(t, 1000, key.UsageLimit)
		assert.Equal(t, model.StatusActive, key.Status)
		assert.Equal(t, 0, key.UsageCount)
		assert.Equal(t, []string{"Production Key"}, n.created)

		dev, err := svc.CreateKey(ctx, "Staging Key", 50)
		assert.NoError(t, err)
		assert.Contains(t, dev.Key, keygen.DevPrefix)
		assert.Equal(t, 50, dev.UsageLimit)
	})

	t.Run("empty name", func(t *testing.T) {
		svc, _ := setupService(t, nil)
		_, err := svc.CreateKey(context.Background(), "   ", 0)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("collision retries with fresh value", func(t *testing.T) {
		gen := &stubGenerator{values: []string{"pk_dev_collide", "pk_dev_collide", "pk_dev_fresh"}}
		svc, _ := setupService(t, gen)
		ctx := context.Background()

		first, err := svc.CreateKey(ctx, "First", 0)
		assert.NoError(t, err)
		assert.Equal(t, "pk_dev_collide", first.Key)

		second, err := svc.CreateKey(ctx, "Second", 0)
		assert.NoError(t, err)
		assert.Equal(t, "pk_dev_fresh", second.Key)
		assert.Equal(t, 3, gen.calls)
	})

	t.Run("persistent collision surfaces conflict", func(t *testing.T) {
		gen := &stubGenerator{values: []string{"pk_dev_stuck"}}
		svc, _ := setupService(t, gen)
		ctx := context.Background()

		_, err := svc.CreateKey(ctx, "First", 0)
		assert.NoError(t, err)

		_, err = svc.CreateKey(ctx, "Second", 0)
		assert.ErrorIs(t, err, db.ErrDuplicateKey)
	})
}

func TestRecordUsage(t *testing.T) {
	svc, n := setupService(t, nil)
	ctx := context.Background()

	key, err := svc.CreateKey(ctx, "Metered", 2)
	assert.NoError(t, err)

	snapshot, err := svc.RecordUsage(ctx, key)
	assert.NoError(t, err)
	assert.Equal(t, 1, snapshot.Current)
	assert.Equal(t, 2, snapshot.Limit)

	snapshot, err = svc.RecordUsage(ctx, key)
	assert.NoError(t, err)
	assert.Equal(t, 2, snapshot.Current)

	_, err = svc.RecordUsage(ctx, key)
	assert.ErrorIs(t, err, db.ErrLimitExceeded)
	assert.Equal(t, []string{"Metered"}, n.limitReached)

	// Validation alone never consumes usage.
	_, err = svc.Validate(ctx, key.Key)
	assert.NoError(t, err)
	fetched, err := svc.GetKey(ctx, key.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, fetched.UsageCount)
}

func TestUpdateKey(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	key, err := svc.CreateKey(ctx, "Before", 0)
	assert.NoError(t, err)

	name := "X"
	updated, err := svc.UpdateKey(ctx, key.ID, UpdateParams{Name: &name})
	assert.NoError(t, err)
	assert.Equal(t, "X", updated.Name)
	assert.Equal(t, key.Key, updated.Key, "key value is immutable")

	bad := ""
	_, err = svc.UpdateKey(ctx, key.ID, UpdateParams{Name: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	badStatus := "paused"
	_, err = svc.UpdateKey(ctx, key.ID, UpdateParams{Status: &badStatus})
	assert.ErrorIs(t, err, ErrInvalidInput)

	badLimit := 0
	_, err = svc.UpdateKey(ctx, key.ID, UpdateParams{UsageLimit: &badLimit})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateKey(ctx, 9999, UpdateParams{Name: &name})
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}

func TestDeleteKey(t *testing.T) {
	svc, n := setupService(t, nil)
	ctx := context.Background()

	key, err := svc.CreateKey(ctx, "Doomed", 0)
	assert.NoError(t, err)

	assert.NoError(t, svc.DeleteKey(ctx, key.ID))
	assert.Equal(t, []string{"Doomed"}, n.deleted)

	assert.ErrorIs(t, svc.DeleteKey(ctx, key.ID), db.ErrKeyNotFound)
}
