package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// fakeScripter evaluates the limiter script against an in-memory counter.
type fakeScripter struct {
	counts map[string]int64
	err    error
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{counts: make(map[string]int64)}
}

func (f *fakeScripter) run(ctx context.Context, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[keys[0]]++
	limit := int64(args[1].(int))
	if f.counts[keys[0]] > limit {
		cmd.SetVal(int64(0))
	} else {
		cmd.SetVal(int64(1))
	}
	return cmd
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) EvalRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("sha")
	return cmd
}

func TestRedisLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	client := newFakeScripter()
	limiter := NewRedisLimiter(client, 3, time.Minute, "login", nil)

	for i := 1; i <= 3; i++ {
		assert.True(t, limiter.Allow(ctx, "student@ubb.cl"), "attempt %d", i)
	}
	assert.False(t, limiter.Allow(ctx, "student@ubb.cl"))
	assert.True(t, limiter.Allow(ctx, "other@ubb.cl"))
	assert.Equal(t, int64(4), client.counts["login:student@ubb.cl"])
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client := newFakeScripter()
	client.err = errors.New("connection refused")
	limiter := NewRedisLimiter(client, 1, time.Minute, "login", nil)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(context.Background(), "student@ubb.cl"))
	}
}

func TestRedisLimiter_Disabled(t *testing.T) {
	client := newFakeScripter()
	tests := []struct {
		name    string
		limiter *RedisLimiter
		key     string
	}{
		{name: "no limit", limiter: NewRedisLimiter(client, 0, time.Minute, "", nil), key: "a"},
		{name: "no window", limiter: NewRedisLimiter(client, 1, 0, "", nil), key: "a"},
		{name: "no key", limiter: NewRedisLimiter(client, 1, time.Minute, "", nil), key: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				assert.True(t, tt.limiter.Allow(context.Background(), tt.key))
			}
		})
	}
	assert.Empty(t, client.counts)
}
