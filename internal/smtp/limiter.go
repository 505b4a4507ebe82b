package smtp

import (
	"sync"

	"golang.org/x/time/rate"
)

// ConnectionLimiter SMTP 连接限流器。
//
// 两层约束：并发会话数上限，以及新建会话的令牌桶速率。任一
// 不满足都拒绝建立会话。
type ConnectionLimiter struct {
	mu       sync.Mutex
	maxConns int
	current  int
	rate     *rate.Limiter
}

// NewConnectionLimiter 创建连接限流器。
//
// 参数:
//   - maxConns: 最大并发会话数
//   - maxRate: 每秒允许新建的会话数
func NewConnectionLimiter(maxConns, maxRate int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxConns: maxConns,
		rate:     rate.NewLimiter(rate.Limit(maxRate), maxRate),
	}
}

// Acquire 获取会话许可。
func (l *ConnectionLimiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current >= l.maxConns {
		return false
	}
	if !l.rate.Allow() {
		return false
	}

	l.current++
	return true
}

// Release 释放会话。
func (l *ConnectionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
}

// Current 当前会话数。
func (l *ConnectionLimiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
