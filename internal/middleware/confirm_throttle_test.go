package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestThrottle_Check(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(3 * time.Second)
	th.now = func() time.Time { return now }

	assert.True(t, th.Check("a").Allowed)

	now = now.Add(time.Second)
	res := th.Check("a")
	assert.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)
	assert.True(t, th.Check("b").Allowed, "不同 key 互不影响")

	th.Reset("a")
	assert.True(t, th.Check("a").Allowed)

	now = now.Add(3 * time.Second)
	assert.True(t, th.Check("a").Allowed)
}

func TestThrottle_Disabled(t *testing.T) {
	th := NewThrottle(0)
	assert.True(t, th.Check("a").Allowed)
	assert.True(t, th.Check("a").Allowed)
}

func TestConfirmThrottle_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/s/:id/confirm", ConfirmThrottle(NewThrottle(time.Minute), "id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(id string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/s/"+id+"/confirm", nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("x"))
	assert.Equal(t, http.StatusTooManyRequests, send("x"))
	assert.Equal(t, http.StatusOK, send("y"))
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "提交过于频繁，请稍后重试", formatRetryMessage(500*time.Millisecond))
	assert.Equal(t, "提交冷却中，请 5 秒后重试", formatRetryMessage(5*time.Second))
	assert.Equal(t, "提交冷却中，请 1 分 30 秒后重试", formatRetryMessage(90*time.Second))
}
