package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

const (
	draftKeyPrefix      = "registration:draft:"
	submitLockKeyPrefix = "registration:submit:"
)

// DraftRepository keeps registration drafts and their staged files in redis.
type DraftRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewDraftRepository constructs a draft repository.
func NewDraftRepository(client *redis.Client, logger *zap.Logger) *DraftRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftRepository{client: client, logger: logger}
}

func draftKey(id string) string {
	return draftKeyPrefix + id
}

func draftFileKey(id string, kind models.DocumentKind) string {
	return draftKeyPrefix + id + ":file:" + string(kind)
}

func submitLockKey(id string) string {
	return submitLockKeyPrefix + id
}

// Save stores the draft and refreshes the TTL of its staged files.
func (r *DraftRepository) Save(ctx context.Context, draft *models.RegistrationDraft, ttl time.Duration) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft %s: %w", draft.ID, err)
	}
	if err := r.client.Set(ctx, draftKey(draft.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft %s: %w", draft.ID, err)
	}
	for kind := range draft.Attachments {
		if err := r.client.Expire(ctx, draftFileKey(draft.ID, kind), ttl).Err(); err != nil {
			r.logger.Warn("refresh draft file ttl", zap.String("draft_id", draft.ID), zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return nil
}

// Load returns the draft or appErrors.ErrCacheMiss when it expired or never existed.
func (r *DraftRepository) Load(ctx context.Context, id string) (*models.RegistrationDraft, error) {
	raw, err := r.client.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get draft %s: %w", id, err)
	}
	var draft models.RegistrationDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft %s: %w", id, err)
	}
	if draft.Attachments == nil {
		draft.Attachments = map[models.DocumentKind]models.Attachment{}
	}
	return &draft, nil
}

// Delete removes the draft together with every staged file.
func (r *DraftRepository) Delete(ctx context.Context, draft *models.RegistrationDraft) error {
	keys := []string{draftKey(draft.ID)}
	for kind := range draft.Attachments {
		keys = append(keys, draftFileKey(draft.ID, kind))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete draft %s: %w", draft.ID, err)
	}
	return nil
}

// SaveFile stages the bytes of an attachment.
func (r *DraftRepository) SaveFile(ctx context.Context, id string, kind models.DocumentKind, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, draftFileKey(id, kind), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft file %s/%s: %w", id, kind, err)
	}
	return nil
}

// LoadFile returns the staged bytes of an attachment.
func (r *DraftRepository) LoadFile(ctx context.Context, id string, kind models.DocumentKind) ([]byte, error) {
	data, err := r.client.Get(ctx, draftFileKey(id, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get draft file %s/%s: %w", id, kind, err)
	}
	return data, nil
}

// DeleteFile drops a staged attachment.
func (r *DraftRepository) DeleteFile(ctx context.Context, id string, kind models.DocumentKind) error {
	if err := r.client.Del(ctx, draftFileKey(id, kind)).Err(); err != nil {
		return fmt.Errorf("redis delete draft file %s/%s: %w", id, kind, err)
	}
	return nil
}

// AcquireSubmitLock takes the per-draft submission lock. It reports false
// when another submission holds it.
func (r *DraftRepository) AcquireSubmitLock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, submitLockKey(id), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire submit lock %s: %w", id, err)
	}
	return ok, nil
}

// ReleaseSubmitLock frees the submission lock.
func (r *DraftRepository) ReleaseSubmitLock(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, submitLockKey(id)).Err(); err != nil {
		return fmt.Errorf("redis release submit lock %s: %w", id, err)
	}
	return nil
}
