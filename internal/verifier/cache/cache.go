// Package cache holds a short-TTL Redis cache for verification outcomes.
// Verification is the hot read path; caching outcomes keeps repeated checks
// of the same credential off the primary store. The registry core invalidates
// entries on revocation and status updates, so the TTL only bounds staleness
// for expiry rollover.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "attesta/pkg/domain"
)

// Entry is the cached verification outcome.
type Entry struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// Cache wraps a Redis client. A nil *Cache is a valid no-op cache so wiring
// stays optional.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func key(credID id.CredentialID) string {
	return "attesta:verify:" + credID.String()
}

// Get returns the cached entry and whether it was present. Redis errors are
// reported so callers can decide to fall through to the store.
func (c *Cache) Get(ctx context.Context, credID id.CredentialID) (Entry, bool, error) {
	if c == nil {
		return Entry{}, false, nil
	}
	raw, err := c.client.Get(ctx, key(credID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("verify cache get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("verify cache decode: %w", err)
	}
	return entry, true, nil
}

// Set stores an outcome for the configured TTL. Not-found outcomes are never
// cached: a credential issued a moment later must verify immediately.
func (c *Cache) Set(ctx context.Context, credID id.CredentialID, entry Entry) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("verify cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(credID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("verify cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached outcome for a credential. Called by the
// registry core after revocation or a status update.
func (c *Cache) Invalidate(ctx context.Context, credID id.CredentialID) {
	if c == nil {
		return
	}
	// Best effort: a failed delete only extends staleness to the TTL bound.
	_ = c.client.Del(ctx, key(credID)).Err()
}
