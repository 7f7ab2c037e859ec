package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript increments the window counter and starts its expiry on the
// first hit. It returns {count, pttl}.
var consumeScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// KeyPrefix namespaces governor keys in Redis.
const KeyPrefix = "ratelimit"

// RedisGovernor keeps counters in Redis so replicas share one budget.
type RedisGovernor struct {
	client redis.Scripter
	policy Policy
}

var _ Governor = (*RedisGovernor)(nil)

// NewRedisGovernor creates a governor backed by client.
func NewRedisGovernor(client redis.Scripter, policy Policy) *RedisGovernor {
	return &RedisGovernor{client: client, policy: policy}
}

func (g *RedisGovernor) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, g.policy.Name, id)
}

// Consume atomically spends one point for id.
func (g *RedisGovernor) Consume(ctx context.Context, id string) (Decision, error) {
	res, err := consumeScript.Run(ctx, g.client, []string{g.key(id)}, g.policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: redis consume: %w", ErrGovernorFault, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: redis consume: unexpected reply %v", ErrGovernorFault, res)
	}
	return decide(g.policy, int(res[0]), time.Duration(res[1])*time.Millisecond), nil
}
