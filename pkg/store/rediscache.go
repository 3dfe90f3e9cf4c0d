/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/goal"
)

// RedisCache implements Cache over go-redis/v9.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. ttl is applied to cached goal
// states (a stale cache entry is worse than a cache miss, so entries
// expire rather than live forever); preferences do not expire.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func preferenceKey(repoKey, name string) string {
	return "sdm:pref:" + repoKey + ":" + name
}

func goalStateKey(goalSetID, uniqueName, environment string) string {
	return "sdm:goalstate:" + goalSetID + ":" + environment + ":" + uniqueName
}

func (c *RedisCache) GetPreference(ctx context.Context, repoKey, name string) (string, bool, error) {
	v, err := c.client.Get(ctx, preferenceKey(repoKey, name)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, sdmerrors.Wrap(sdmerrors.KindTransient, err, "store: redis get preference")
	}
	return v, true, nil
}

func (c *RedisCache) SetPreference(ctx context.Context, repoKey, name, value string) error {
	if err := c.client.Set(ctx, preferenceKey(repoKey, name), value, 0).Err(); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "store: redis set preference")
	}
	return nil
}

func (c *RedisCache) CacheGoalState(ctx context.Context, goalSetID, uniqueName, environment string, state goal.State) error {
	if err := c.client.Set(ctx, goalStateKey(goalSetID, uniqueName, environment), string(state), c.ttl).Err(); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "store: redis cache goal state")
	}
	return nil
}

func (c *RedisCache) CachedGoalState(ctx context.Context, goalSetID, uniqueName, environment string) (goal.State, bool, error) {
	v, err := c.client.Get(ctx, goalStateKey(goalSetID, uniqueName, environment)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, sdmerrors.Wrap(sdmerrors.KindTransient, err, "store: redis get goal state")
	}
	return goal.State(v), true, nil
}
