package health

import (
	"context"
	"errors"
	"fmt"

	"kairo-hq/guardrails/pkg/guardrail/registry"

	"github.com/redis/go-redis/v9"
)

// RulesCheck fails until a rule registry has been published to holder.
func RulesCheck(holder *registry.Holder) CheckFunc {
	return func(context.Context) error {
		reg := holder.Current()
		if reg == nil {
			return errors.New("no rule registry published")
		}
		if reg.Len() == 0 {
			return errors.New("rule registry is empty")
		}
		return nil
	}
}

// RedisCheck pings the verdict cache.
func RedisCheck(client redis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}
