package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== Throttle 冷却限流器 ====================

// Throttle 按 key 的冷却限流器
// 防止同一会话在短时间内重复触发提交
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	locks    sync.Map // key -> *lockEntry
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// NewThrottle 创建限流器，interval <= 0 时不限流
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Check 检查并在允许时记录本次执行
func (t *Throttle) Check(key string) CheckResult {
	if t.interval <= 0 {
		return CheckResult{Allowed: true}
	}
	actual, _ := t.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := t.now()
	if elapsed := now.Sub(entry.lastTime); elapsed < t.interval {
		return CheckResult{RetryAfter: t.interval - elapsed}
	}
	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 清除 key 的冷却（会话关闭后调用）
func (t *Throttle) Reset(key string) {
	t.locks.Delete(key)
}

// ==================== Gin 中间件 ====================

// ConfirmThrottle 按路径参数 param（会话 ID）限流
//
// 使用示例:
//
//	sessions.POST("/:id/confirm", middleware.ConfirmThrottle(throttle, "id"), ctl.Confirm)
func ConfirmThrottle(t *Throttle, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := t.Check(ConfirmKey(c.Param(param)))
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ConfirmKey 会话提交限流 key
func ConfirmKey(sessionID string) string {
	return "confirm:" + sessionID
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		return "提交过于频繁，请稍后重试"
	}
	if seconds < 60 {
		return fmt.Sprintf("提交冷却中，请 %d 秒后重试", seconds)
	}
	return fmt.Sprintf("提交冷却中，请 %d 分 %d 秒后重试", seconds/60, seconds%60)
}
