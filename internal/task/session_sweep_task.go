package task

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"crm_configurator_v1/pkg/logger"
)

// SessionSweeper 可按空闲时长清理的会话存储
type SessionSweeper interface {
	SweepIdle(ttl time.Duration) []string
}

// SweepHook 会话被清理后的回调（如清除限流状态）
type SweepHook func(sessionID string)

// SessionSweepTask 定时清理空闲配置会话
type SessionSweepTask struct {
	Sweeper SessionSweeper
	Cron    *cron.Cron

	spec    string
	idleTTL time.Duration
	hooks   []SweepHook
	log     *logger.Logger
}

// NewSessionSweepTask spec 为 6 段 cron 表达式（支持秒）
func NewSessionSweepTask(sweeper SessionSweeper, spec string, idleTTL time.Duration, log *logger.Logger, hooks ...SweepHook) *SessionSweepTask {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionSweepTask{
		Sweeper: sweeper,
		Cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		idleTTL: idleTTL,
		hooks:   hooks,
		log:     log,
	}
}

// Start 注册并启动定时任务
func (t *SessionSweepTask) Start() error {
	if _, err := t.Cron.AddFunc(t.spec, t.RunOnce); err != nil {
		return fmt.Errorf("无法启动会话清理任务: %w", err)
	}
	t.Cron.Start()
	t.log.Info("会话清理任务已启动", "spec", t.spec, "idle_ttl", t.idleTTL.String())
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (t *SessionSweepTask) Stop() {
	<-t.Cron.Stop().Done()
}

// RunOnce 执行一次清理
func (t *SessionSweepTask) RunOnce() {
	swept := t.Sweeper.SweepIdle(t.idleTTL)
	for _, id := range swept {
		for _, hook := range t.hooks {
			hook(id)
		}
	}
	if len(swept) > 0 {
		t.log.Debug("[Cron] 本轮会话清理完成", "swept", len(swept))
	}
}
