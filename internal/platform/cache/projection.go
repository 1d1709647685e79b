package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Projection caches JSON-encoded read projections per organization with a
// version-bump invalidation scheme: writers bump the org version, which
// orphans every key built against the previous version.
type Projection struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProjection instantiates the projection cache helper.
func NewProjection(client *redis.Client, ttl time.Duration) *Projection {
	return &Projection{client: client, ttl: ttl}
}

func versionKey(orgID int64) string {
	return fmt.Sprintf("proj:version:%d", orgID)
}

// Version returns the current cache version for the org, initialising when missing.
func (c *Projection) Version(ctx context.Context, orgID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(orgID)).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, versionKey(orgID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates every projection for the org.
func (c *Projection) Bump(ctx context.Context, orgID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(orgID)).Err()
}

// BuildKey composes the cache key with the current org version.
func (c *Projection) BuildKey(ctx context.Context, orgID int64, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, orgID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%d", joined, orgID, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. A nil
// receiver or client degrades to calling the loader directly.
func (c *Projection) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
