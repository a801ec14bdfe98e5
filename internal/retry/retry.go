package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TransientError 网络/HTTP类可自愈错误，调用方不做进一步区分
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient 把底层错误标记为瞬时错误
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient 判断是否为瞬时错误
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrExhausted 重试预算耗尽，对当前工作单元是致命错误，由上层监督重启
var ErrExhausted = errors.New("connection could not be re-established within the retry budget")

// Notifier 重试过程中向仪表盘上报连接状态。
// NotifyConnected 是幂等的，即使之前没有上报过错误也可以安全发送。
type Notifier interface {
	NotifyConnected()
	NotifyConnectionError()
}

// Policy 重试策略：固定退避间隔，总预算决定尝试次数上限。
// 每次调用从零开始计数，调用之间不保留状态。
type Policy struct {
	Backoff time.Duration
	Budget  time.Duration
}

// AttemptLimit 允许的尝试次数 = 预算 / 退避间隔
func (p Policy) AttemptLimit() int {
	if p.Backoff <= 0 {
		return 1
	}
	limit := int(p.Budget / p.Backoff)
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Do 用重试策略包裹任意可能返回瞬时错误的操作。
// 成功时上报 Connected 并返回结果；瞬时失败时上报 ConnectionError、
// 退避后重试；超出预算返回 ErrExhausted；非瞬时错误立即返回。
func Do[T any](ctx context.Context, p Policy, n Notifier, op func() (T, error)) (T, error) {
	var zero T
	limit := p.AttemptLimit()
	attempts := 0

	for {
		result, err := op()
		if err == nil {
			if n != nil {
				n.NotifyConnected() // 确保之前的错误状态被清除
			}
			return result, nil
		}

		if !IsTransient(err) {
			return zero, err
		}

		attempts++
		if n != nil {
			n.NotifyConnectionError()
		}
		zap.L().Warn("⚠️ 连接异常，准备重试",
			zap.Int("attempt", attempts),
			zap.Int("limit", limit),
			zap.Error(err))

		if attempts >= limit {
			return zero, fmt.Errorf("%w (%d attempts): %v", ErrExhausted, attempts, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
}
