package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"crm_configurator_v1/internal/model"
	"crm_configurator_v1/internal/repository"
	"crm_configurator_v1/pkg/logger"
)

// SessionManager 管理进程内的配置会话
type SessionManager struct {
	oracle Oracle
	repo   repository.SubmissionRepository
	rules  Rules
	log    *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager 创建会话管理器；repo 为 nil 时不记录提交
func NewSessionManager(o Oracle, repo repository.SubmissionRepository, rules Rules, log *logger.Logger) *SessionManager {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionManager{
		oracle:   o,
		repo:     repo,
		rules:    rules,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open 创建并加载会话
func (m *SessionManager) Open(ctx context.Context, params LoadParams) (*Session, error) {
	s := NewSession(uuid.NewString(), m.oracle, m.rules, m.log)
	s.now = m.now
	if err := s.Load(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get 查找会话
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close 丢弃会话，返回是否存在
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count 当前会话数
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepIdle 清理空闲超过 ttl 的会话，返回被清理的 ID
// 空闲判断不持有管理器锁，慢提交不会阻塞其他会话的访问
func (m *SessionManager) SweepIdle(ttl time.Duration) []string {
	now := m.now()

	m.mu.RLock()
	candidates := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.RUnlock()

	var idle []string
	for id, s := range candidates {
		if s.IdleSince(now) >= ttl {
			idle = append(idle, id)
		}
	}
	if len(idle) == 0 {
		return nil
	}

	m.mu.Lock()
	var swept []string
	for _, id := range idle {
		// 期间被关闭或替换的会话不动
		if m.sessions[id] == candidates[id] {
			delete(m.sessions, id)
			swept = append(swept, id)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if len(swept) > 0 {
		m.log.Info("清理空闲会话", "count", len(swept), "remaining", remaining)
	}
	return swept
}

// Confirm 提交会话并记录结果；提交成功后会话从管理器移除
func (m *SessionManager) Confirm(ctx context.Context, id string, correlationID int64) (*model.SavePayload, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	payload, err := s.Confirm(ctx, correlationID)
	m.record(ctx, s, correlationID, payload, err)
	if err != nil {
		return nil, err
	}

	m.Close(id)
	return payload, nil
}

// Submissions 按关联 ID 查询提交记录
func (m *SessionManager) Submissions(ctx context.Context, correlationID int64, limit int) ([]model.Submission, error) {
	if m.repo == nil {
		return []model.Submission{}, nil
	}
	return m.repo.ListByCorrelation(ctx, correlationID, limit)
}

// SubmissionStats 按状态统计关联 ID 的提交次数
func (m *SessionManager) SubmissionStats(ctx context.Context, correlationID int64) (map[string]int64, error) {
	if m.repo == nil {
		return map[string]int64{}, nil
	}
	return m.repo.CountByStatus(ctx, correlationID)
}

// record 写提交记录，失败只记日志
func (m *SessionManager) record(ctx context.Context, s *Session, correlationID int64, payload *model.SavePayload, submitErr error) {
	if m.repo == nil {
		return
	}
	if errors.Is(submitErr, ErrSessionClosed) || errors.Is(submitErr, ErrSessionNotFound) {
		return
	}

	sub := &model.Submission{
		SessionID:     s.ID,
		CorrelationID: correlationID,
		MainTmplID:    s.mainTmplIDSafe(),
		Status:        model.SubmissionStatusSubmitted,
	}
	switch {
	case errors.Is(submitErr, ErrSubmitRefused):
		sub.Status = model.SubmissionStatusRefused
		sub.Error = submitErr.Error()
	case submitErr != nil:
		sub.Status = model.SubmissionStatusFailed
		sub.Error = submitErr.Error()
	}
	if payload != nil {
		sub.LineCount = 1 + len(payload.OptionalProducts)
		if raw, err := json.Marshal(withoutFileData(payload)); err == nil {
			sub.Payload = datatypes.JSON(raw)
		}
	}

	if err := m.repo.Create(ctx, sub); err != nil {
		m.log.Error("写入提交记录失败", "session_id", s.ID, "error", err)
	}
}

func (s *Session) mainTmplIDSafe() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mainTmplID
}

// withoutFileData 落库时不保存文件内容
func withoutFileData(p *model.SavePayload) *model.SavePayload {
	cp := *p
	strip := func(l model.PayloadLine) model.PayloadLine {
		if l.FileUpload != nil {
			l.FileUpload = &model.FilePayload{FileName: l.FileUpload.FileName}
		}
		return l
	}
	cp.MainProduct = strip(p.MainProduct)
	cp.OptionalProducts = make([]model.PayloadLine, len(p.OptionalProducts))
	for i, l := range p.OptionalProducts {
		cp.OptionalProducts[i] = strip(l)
	}
	return &cp
}
