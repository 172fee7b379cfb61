package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultEmailCodeTTL = 5 * time.Minute
	EmailCodePrefix     = "email:code"

	ScopeRegister = "register"
	ScopeReset    = "reset"

	// 两阶段键：邮件发出前 pending，发出后 confirmed
	PendingSuffix   = "pending"
	ConfirmedSuffix = "confirmed"
)

var (
	ErrEmailNotFound       = errors.New("email code not found")
	ErrEmailCodeDelFailed  = errors.New("email code delete failed")
	ErrCodePendingFailed   = errors.New("code pending failed")
	ErrCodeConfirmedFailed = errors.New("code confirmed failed")
)

// 原子执行：取值+写入目标+设置 TTL+删除源
var confirmScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then
  return 0
end
redis.call("SET", KEYS[2], val, "PX", ARGV[1])
redis.call("DEL", KEYS[1])
return 1
`)

type EmailRepository struct {
	Client *redis.Client
}

func codeKey(scope, phase, email string) string {
	return fmt.Sprintf("%s:%s:%s:%s", EmailCodePrefix, scope, phase, email)
}

// SavePending 写入 pending 键
func (e *EmailRepository) SavePending(ctx context.Context, scope, email, code string) error {
	if err := e.Client.Set(ctx, codeKey(scope, PendingSuffix, email), code, DefaultEmailCodeTTL).Err(); err != nil {
		return ErrCodePendingFailed
	}
	return nil
}

// Confirm 将 pending 转为 confirmed 并重置 TTL
func (e *EmailRepository) Confirm(ctx context.Context, scope, email string) error {
	keys := []string{codeKey(scope, PendingSuffix, email), codeKey(scope, ConfirmedSuffix, email)}
	ok, err := confirmScript.Run(ctx, e.Client, keys, DefaultEmailCodeTTL.Milliseconds()).Int()
	if err != nil || ok != 1 {
		return ErrCodeConfirmedFailed
	}
	return nil
}

// DeletePending 幂等
func (e *EmailRepository) DeletePending(ctx context.Context, scope, email string) error {
	if err := e.Client.Del(ctx, codeKey(scope, PendingSuffix, email)).Err(); err != nil {
		return ErrEmailCodeDelFailed
	}
	return nil
}

func (e *EmailRepository) GetConfirmed(ctx context.Context, scope, email string) (string, error) {
	val, err := e.Client.Get(ctx, codeKey(scope, ConfirmedSuffix, email)).Result()
	if err != nil {
		return "", ErrEmailNotFound
	}
	return val, nil
}

func (e *EmailRepository) DeleteConfirmed(ctx context.Context, scope, email string) error {
	if err := e.Client.Del(ctx, codeKey(scope, ConfirmedSuffix, email)).Err(); err != nil {
		return ErrEmailCodeDelFailed
	}
	return nil
}
