package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/apierror"
	"github.com/spectraquiz/api-gateway/internal/keys"
	"github.com/spectraquiz/api-gateway/internal/models"
	"github.com/spectraquiz/api-gateway/internal/tier"
)

// KeyStore is the persistence contract for credentials. Implemented by
// repository.APIKeyRepository; faked in tests.
type KeyStore interface {
	Create(ctx context.Context, apiKey *models.APIKey) error
	FindByHash(ctx context.Context, hash string) (*models.APIKey, error)
	FindByID(ctx context.Context, id string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Cache holds resolved credentials keyed by lookup hash. Satisfied by
// storage.RedisClient; a nil cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

const credentialCacheTTL = 5 * time.Minute

type APIKeyService struct {
	store KeyStore
	cache Cache

	now func() time.Time
}

func NewAPIKeyService(store KeyStore, cache Cache) *APIKeyService {
	return &APIKeyService{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

type CreateParams struct {
	Name               string
	CreatedBy          string
	Tier               string
	Environment        string // "live" or "test"
	RateLimitPerMinute int
	RateLimitPerDay    int
	ExpiresAt          *time.Time
}

// Create issues a new credential and returns the plaintext key. This is the
// only moment the plaintext exists outside the caller's hands; only its hash
// and display prefix are stored.
func (s *APIKeyService) Create(ctx context.Context, p CreateParams) (string, *models.APIKey, error) {
	if !tier.Valid(p.Tier) {
		return "", nil, fmt.Errorf("unknown tier %q", p.Tier)
	}

	plaintext, err := keys.Generate(p.Environment)
	if err != nil {
		return "", nil, err
	}

	apiKey := &models.APIKey{
		KeyHash:            keys.Hash(plaintext),
		KeyPrefix:          keys.Prefix(plaintext),
		Name:               p.Name,
		CreatedBy:          p.CreatedBy,
		Tier:               p.Tier,
		Status:             models.StatusActive,
		RateLimitPerMinute: p.RateLimitPerMinute,
		RateLimitPerDay:    p.RateLimitPerDay,
		ExpiresAt:          p.ExpiresAt,
	}

	if err := s.store.Create(ctx, apiKey); err != nil {
		return "", nil, fmt.Errorf("failed to create API key: %w", err)
	}

	return plaintext, apiKey, nil
}

// Validate runs the full credential check for one request: format, hash
// lookup, then lifecycle state in the order revoked, suspended, expired.
// A store failure is reported as invalid_api_key on purpose - callers must
// not be able to tell "unknown key" from "store down".
func (s *APIKeyService) Validate(ctx context.Context, rawKey string) (*models.APIKey, *apierror.Error) {
	if !keys.IsValidFormat(rawKey) {
		return nil, apierror.New(apierror.CodeInvalidAPIKey, "Invalid API key")
	}

	hash := keys.Hash(rawKey)

	apiKey, err := s.resolve(ctx, hash)
	if err != nil {
		log.Printf("API key lookup failed: %v", err)
		return nil, apierror.New(apierror.CodeInvalidAPIKey, "Invalid API key")
	}
	if apiKey == nil {
		return nil, apierror.New(apierror.CodeInvalidAPIKey, "Invalid API key")
	}

	switch apiKey.Status {
	case models.StatusRevoked:
		e := apierror.New(apierror.CodeAPIKeyRevoked, "API key has been revoked")
		if apiKey.RevokeReason != "" {
			e.WithDetails(map[string]any{"reason": apiKey.RevokeReason})
		}
		return nil, e
	case models.StatusSuspended:
		return nil, apierror.New(apierror.CodeAPIKeySuspended, "API key is suspended")
	}

	if apiKey.Expired(s.now()) {
		return nil, apierror.New(apierror.CodeAPIKeyExpired, "API key has expired")
	}

	s.touchLastUsed(apiKey.ID)

	return apiKey, nil
}

func (s *APIKeyService) resolve(ctx context.Context, hash string) (*models.APIKey, error) {
	cacheKey := "apikey:cache:" + hash

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var apiKey models.APIKey
			if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
				return &apiKey, nil
			}
		}
	}

	apiKey, err := s.store.FindByHash(ctx, hash)
	if err != nil || apiKey == nil {
		return apiKey, err
	}

	if s.cache != nil {
		if blob, err := json.Marshal(apiKey); err == nil {
			s.cache.Set(ctx, cacheKey, blob, credentialCacheTTL)
		}
	}

	return apiKey, nil
}

// touchLastUsed is fire-and-forget: it runs detached from the request with
// its own deadline, and a failure is only logged.
func (s *APIKeyService) touchLastUsed(id uuid.UUID) {
	at := s.now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.store.TouchLastUsed(ctx, id, at); err != nil {
			log.Printf("Failed to update last_used_at for key %s: %v", id, err)
		}
	}()
}

func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	return s.store.FindByID(ctx, id)
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.store.List(ctx)
}

// Update applies field changes and drops the credential from the cache so
// tier or limit changes take effect without waiting out the TTL.
func (s *APIKeyService) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if t, ok := updates["tier"].(string); ok && !tier.Valid(t) {
		return fmt.Errorf("unknown tier %q", t)
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return err
	}

	s.invalidateCache(ctx, id)
	return nil
}

// Suspend disables a credential reversibly. Revoked keys stay revoked.
func (s *APIKeyService) Suspend(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.StatusSuspended, nil)
}

// Reactivate lifts a suspension. Reactivating a revoked key is refused:
// revocation is one-directional.
func (s *APIKeyService) Reactivate(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.StatusActive, nil)
}

// Revoke permanently disables a credential. The reason, if given, is shown
// to callers that keep using the key.
func (s *APIKeyService) Revoke(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, models.StatusRevoked, map[string]interface{}{
		"revoke_reason": reason,
	})
}

func (s *APIKeyService) transition(ctx context.Context, id, newStatus string, extra map[string]interface{}) error {
	apiKey, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if apiKey == nil {
		return fmt.Errorf("API key %s not found", id)
	}

	if apiKey.Status == models.StatusRevoked && newStatus != models.StatusRevoked {
		return fmt.Errorf("API key %s is revoked and cannot be reactivated", id)
	}

	updates := map[string]interface{}{"status": newStatus}
	for k, v := range extra {
		updates[k] = v
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return err
	}

	s.invalidateCacheByHash(ctx, apiKey.KeyHash)
	return nil
}

func (s *APIKeyService) Delete(ctx context.Context, id string) error {
	s.invalidateCache(ctx, id)
	return s.store.Delete(ctx, id)
}

func (s *APIKeyService) invalidateCache(ctx context.Context, id string) {
	apiKey, err := s.store.FindByID(ctx, id)
	if err != nil || apiKey == nil {
		return
	}
	s.invalidateCacheByHash(ctx, apiKey.KeyHash)
}

func (s *APIKeyService) invalidateCacheByHash(ctx context.Context, hash string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, "apikey:cache:"+hash); err != nil {
		log.Printf("Failed to invalidate key cache: %v", err)
	}
}
