package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"crm_configurator_v1/internal/exclusion"
	"crm_configurator_v1/internal/model"
	"crm_configurator_v1/pkg/logger"
	"crm_configurator_v1/pkg/oracle"
)

// Oracle 配置器后端（定价、变体、可选商品、引用数据、提交）
type Oracle interface {
	LoadInitial(ctx context.Context, req oracle.LoadRequest) ([]*model.ProductConfiguration, []*model.ProductConfiguration, error)
	CreateIdentity(ctx context.Context, tmplID int64, combination []int64) (int64, error)
	RefreshCombination(ctx context.Context, req oracle.RefreshRequest) (*oracle.RefreshResult, error)
	RevealOptional(ctx context.Context, req oracle.RevealRequest) ([]*model.ProductConfiguration, error)
	ResolveReference(ctx context.Context, modelName string, ids []int64, fields []string) ([]map[string]any, error)
	Submit(ctx context.Context, payload *model.SavePayload) (*model.SubmitResult, error)
}

var _ Oracle = (*oracle.Client)(nil)

// ProductState 商品在会话中的状态
type ProductState string

const (
	StateNotLoaded ProductState = "not_loaded"
	StateOptional  ProductState = "optional"
	StateIncluded  ProductState = "included"
	StateRemoved   ProductState = "removed"
)

// SessionStatus 会话状态
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionOpen      SessionStatus = "open"
	SessionSubmitted SessionStatus = "submitted"
)

// sideKey 文件/引用附表的键
type sideKey struct {
	TmplID int64
	LineID int64
}

// InitialCustomValue 加载时预填的自定义文本
type InitialCustomValue struct {
	ValueID int64  `json:"ptav_id"`
	Value   string `json:"value"`
}

// LoadParams 会话初始化参数
type LoadParams struct {
	ProductTmplID int64
	ValueIDs      []int64
	CustomValues  []InitialCustomValue
	Quantity      float64
	Pricing       oracle.Pricing
	// Edit 编辑已有明细时只加载主商品
	Edit bool
}

// ==================== 会话 ====================

// Session 单个用户的配置会话
//
// 本地变更与排除重算在锁内完成；oracle 调用期间释放锁，
// 回来后重新加锁并校验商品仍在会话中、且本次刷新仍是最新的一次，否则丢弃结果。
// Confirm 全程持锁。
type Session struct {
	ID string

	oracle Oracle
	rules  Rules
	log    *logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	status      SessionStatus
	mainTmplID  int64
	pricing     oracle.Pricing
	included    []*model.ProductConfiguration
	optional    []*model.ProductConfiguration
	removed     map[int64]bool
	files       map[sideKey]model.FilePayload
	refs        map[sideKey]model.ReferencePick
	refreshSeq  map[int64]uint64
	// lastTouched UnixNano，空闲检查不占用会话锁
	lastTouched atomic.Int64
}

// NewSession 创建空会话，需调用 Load 后使用
func NewSession(id string, o Oracle, rules Rules, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	s := &Session{
		ID:         id,
		oracle:     o,
		rules:      rules,
		log:        log.With("session_id", id),
		now:        time.Now,
		status:     SessionPending,
		removed:    make(map[int64]bool),
		files:      make(map[sideKey]model.FilePayload),
		refs:       make(map[sideKey]model.ReferencePick),
		refreshSeq: make(map[int64]uint64),
	}
	s.touch()
	return s
}

// graph 供排除引擎遍历的只读视图，调用方必须持锁
type graph struct{ s *Session }

func (g graph) Find(tmplID int64) *model.ProductConfiguration { return g.s.find(tmplID) }

func (g graph) Children(tmplID int64) []*model.ProductConfiguration { return g.s.children(tmplID) }

// ==================== 加载 ====================

// Load 从 oracle 加载主商品与可选商品，并应用加载期规则
func (s *Session) Load(ctx context.Context, params LoadParams) error {
	s.mu.Lock()
	if s.status != SessionPending {
		s.mu.Unlock()
		return ErrSessionAlreadyReady
	}
	s.mu.Unlock()

	qty := params.Quantity
	if qty <= 0 {
		qty = 1
	}
	products, optional, err := s.oracle.LoadInitial(ctx, oracle.LoadRequest{
		ProductTmplID:   params.ProductTmplID,
		CurrencyID:      params.Pricing.CurrencyID,
		Quantity:        qty,
		UOMID:           params.Pricing.UOMID,
		CompanyID:       params.Pricing.CompanyID,
		ValueIDs:        params.ValueIDs,
		OnlyMainProduct: params.Edit,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}

	s.mu.Lock()
	var main *model.ProductConfiguration
	for _, p := range products {
		if p.TmplID == params.ProductTmplID {
			main = p
			break
		}
	}
	if main == nil {
		s.mu.Unlock()
		return ErrMainProductMissing
	}
	if main.Quantity <= 0 {
		main.Quantity = qty
	}

	s.mainTmplID = main.TmplID
	s.pricing = params.Pricing
	s.included = products
	s.optional = optional
	s.status = SessionOpen

	touched := s.applyLoadRules(main, params.CustomValues)
	exclusion.Recompute(main, graph{s})
	for _, p := range s.optional {
		exclusion.Recompute(p, graph{s})
	}
	s.touch()
	s.mu.Unlock()

	s.log.Info("配置会话已加载",
		"main_tmpl_id", main.TmplID,
		"included", len(products),
		"optional", len(optional))

	// 加载期预选的商品需要刷新一次价格/变体，失败不影响会话
	for _, p := range touched {
		if err := s.refresh(ctx, p); err != nil {
			s.log.Warn("加载后刷新失败", "tmpl_id", p.TmplID, "error", err)
		}
	}
	return nil
}

// applyLoadRules 单值预选、默认值、初始自定义文本；返回选择有变化的商品
func (s *Session) applyLoadRules(main *model.ProductConfiguration, customs []InitialCustomValue) []*model.ProductConfiguration {
	changed := make(map[int64]bool)

	if s.rules.PreselectSingleValues {
		for _, p := range append(append([]*model.ProductConfiguration{}, s.included...), s.optional...) {
			for _, l := range p.Lines {
				if l.Attribute.DisplayType == model.DisplayReference {
					continue
				}
				if len(l.Values) == 1 && len(l.SelectedValueIDs) == 0 {
					l.SelectedValueIDs = []int64{l.Values[0].ID}
					changed[p.TmplID] = true
				}
			}
		}
	}

	for _, rule := range s.rules.DefaultValues {
		line := main.LineByAttributeName(rule.Attribute)
		if line == nil || len(line.SelectedValueIDs) > 0 {
			continue
		}
		for _, v := range line.Values {
			if v.Name == rule.Value {
				line.SelectedValueIDs = []int64{v.ID}
				changed[main.TmplID] = true
				break
			}
		}
	}

	for _, cv := range customs {
		if line := main.LineSelecting(cv.ValueID); line != nil {
			line.CustomValue = cv.Value
		}
	}

	var out []*model.ProductConfiguration
	for _, p := range s.included {
		if changed[p.TmplID] {
			out = append(out, p)
		}
	}
	return out
}

// ==================== 选择 ====================

// SelectAttributeValue 切换属性值选择，重算排除；组合可行时刷新价格/变体
func (s *Session) SelectAttributeValue(ctx context.Context, tmplID, lineID, valueID int64, multiAllowed bool) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	p := s.find(tmplID)
	if p == nil {
		s.mu.Unlock()
		return ErrProductNotFound
	}
	line, err := p.FindLine(lineID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	multi := multiAllowed && line.Attribute.DisplayType.AllowsMultiple()
	if err := line.Select(valueID, multi); err != nil {
		s.mu.Unlock()
		return err
	}
	exclusion.Recompute(p, graph{s})
	s.touch()
	s.mu.Unlock()

	return s.refresh(ctx, p)
}

// refresh 组合可行时向 oracle 请求价格/变体并合并结果
func (s *Session) refresh(ctx context.Context, p *model.ProductConfiguration) error {
	return s.refreshCombination(ctx, p, true)
}

// refreshCombination possibleOnly 为 false 时组合不可行也请求价格（数量变化）
func (s *Session) refreshCombination(ctx context.Context, p *model.ProductConfiguration, possibleOnly bool) error {
	s.mu.Lock()
	if s.find(p.TmplID) != p || (possibleOnly && !exclusion.IsPossibleCombination(p)) {
		s.mu.Unlock()
		return nil
	}
	req := oracle.RefreshRequest{
		ProductTmplID: p.TmplID,
		Combination:   p.Combination(),
		Quantity:      p.Quantity,
		Pricing:       s.pricing,
	}
	s.refreshSeq[p.TmplID]++
	seq := s.refreshSeq[p.TmplID]
	s.mu.Unlock()

	res, err := s.oracle.RefreshCombination(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn("组合刷新失败", "tmpl_id", p.TmplID, "error", err)
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if s.find(p.TmplID) != p || s.refreshSeq[p.TmplID] != seq {
		s.log.Debug("丢弃过期的刷新结果", "tmpl_id", p.TmplID, "seq", seq)
		return nil
	}

	p.Price = res.Price
	p.ProductID = int64(res.ProductID)
	if name := string(res.DisplayName); name != "" {
		p.DisplayName = name
	}

	// 没有对应变体且全部为 always 的组合：归档，防止同一会话内重复选出
	if p.ProductID == 0 && p.AllLinesAlways() && exclusion.IsPossibleCombination(p) {
		p.ArchiveCombination(req.Combination)
		exclusion.Recompute(p, graph{s})
	}
	return nil
}

// SetCustomValue 设置属性行的自由文本
func (s *Session) SetCustomValue(tmplID, lineID int64, text string) (*model.ValidationNotice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p := s.find(tmplID)
	if p == nil {
		return nil, ErrProductNotFound
	}
	line, err := p.FindLine(lineID)
	if err != nil {
		return nil, err
	}
	s.touch()
	return line.SetCustomValue(text)
}

// ==================== 数量 ====================

// SetQuantity 修改数量
// 主商品数量 <= 0 时归一为 1；其他商品数量 <= 0 视为移除
func (s *Session) SetQuantity(ctx context.Context, tmplID int64, qty float64) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	p := s.find(tmplID)
	if p == nil {
		s.mu.Unlock()
		return ErrProductNotFound
	}
	s.touch()
	if qty <= 0 {
		if tmplID != s.mainTmplID {
			s.removeLocked(tmplID)
			s.mu.Unlock()
			return nil
		}
		qty = 1
	}
	p.Quantity = qty
	s.mu.Unlock()

	return s.refreshCombination(ctx, p, false)
}

// ==================== 可选商品 ====================

// AddOptional 把可选商品加入配置，并拉取它带出的可选商品
func (s *Session) AddOptional(ctx context.Context, tmplID int64) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.indexOf(s.included, tmplID) >= 0 {
		s.mu.Unlock()
		return nil
	}
	idx := s.indexOf(s.optional, tmplID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrProductNotFound
	}
	p := s.optional[idx]
	s.optional = append(s.optional[:idx:idx], s.optional[idx+1:]...)
	s.included = append(s.included, p)
	delete(s.removed, tmplID)
	req := oracle.RevealRequest{
		ProductTmplID:     p.TmplID,
		Combination:       p.Combination(),
		ParentCombination: exclusion.ParentCombination(p, graph{s}),
		Pricing:           s.pricing,
	}
	s.touch()
	s.mu.Unlock()

	revealed, err := s.oracle.RevealOptional(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn("查询可选商品失败", "tmpl_id", tmplID, "error", err)
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if s.indexOf(s.included, tmplID) < 0 || s.find(tmplID) != p {
		return nil
	}

	for _, np := range revealed {
		// 主商品与自身不作为子商品登记
		if np.TmplID == s.mainTmplID || np.TmplID == p.TmplID {
			continue
		}
		if existing := s.find(np.TmplID); existing != nil {
			// 已经由其他路径带出：只登记新的父商品
			existing.AddParent(p.TmplID)
			continue
		}
		np.AddParent(p.TmplID)
		delete(s.removed, np.TmplID)
		s.optional = append(s.optional, np)
	}
	exclusion.Recompute(p, graph{s})

	s.log.Info("可选商品已加入", "tmpl_id", tmplID, "revealed", len(revealed))
	return nil
}

// RemoveOptional 把商品移回可选列表，并级联处理只由它带出的子商品
func (s *Session) RemoveOptional(tmplID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if tmplID == s.mainTmplID {
		return ErrMainNotRemovable
	}
	if s.indexOf(s.included, tmplID) < 0 {
		if s.find(tmplID) == nil {
			return ErrProductNotFound
		}
		return nil
	}
	s.removeLocked(tmplID)
	s.touch()
	return nil
}

// removeLocked 调用方持锁
func (s *Session) removeLocked(tmplID int64) {
	idx := s.indexOf(s.included, tmplID)
	if idx < 0 {
		return
	}
	p := s.included[idx]
	s.included = append(s.included[:idx:idx], s.included[idx+1:]...)
	s.optional = append(s.optional, p)
	// 让在途刷新失效
	s.refreshSeq[tmplID]++

	var remaining []*model.ProductConfiguration
	for _, child := range s.children(tmplID) {
		if child.TmplID == s.mainTmplID {
			continue
		}
		if child.RemoveParent(tmplID) > 0 {
			remaining = append(remaining, child)
			continue
		}
		s.removeLocked(child.TmplID)
		s.evict(child.TmplID)
	}
	for _, child := range remaining {
		if s.find(child.TmplID) == child {
			exclusion.Recompute(child, graph{s})
		}
	}
	s.log.Info("商品已移除", "tmpl_id", tmplID)
}

// evict 从可选列表中彻底移除并清理附表
func (s *Session) evict(tmplID int64) {
	if idx := s.indexOf(s.optional, tmplID); idx >= 0 {
		s.optional = append(s.optional[:idx:idx], s.optional[idx+1:]...)
	}
	s.removed[tmplID] = true
	s.refreshSeq[tmplID]++
	for k := range s.files {
		if k.TmplID == tmplID {
			delete(s.files, k)
		}
	}
	for k := range s.refs {
		if k.TmplID == tmplID {
			delete(s.refs, k)
		}
	}
}

// ==================== 文件 / 引用 ====================

// AttachFile 记录文件类型属性行的上传内容；file 为 nil 时清除
func (s *Session) AttachFile(tmplID, lineID int64, file *model.FilePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	p := s.find(tmplID)
	if p == nil {
		return ErrProductNotFound
	}
	line, err := p.FindLine(lineID)
	if err != nil {
		return err
	}
	if line.Attribute.DisplayType != model.DisplayFileUpload {
		return ErrLineKindMismatch
	}
	key := sideKey{TmplID: tmplID, LineID: lineID}
	if file == nil || file.FileData == "" {
		delete(s.files, key)
	} else {
		s.files[key] = *file
	}
	s.touch()
	return nil
}

// AttachReference 记录引用类型属性行的选择；pick 为 nil 时清除。
// 命中自动填充规则时会读取引用记录字段，写入目标属性行。
func (s *Session) AttachReference(ctx context.Context, tmplID, lineID int64, pick *model.ReferencePick) error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	p := s.find(tmplID)
	if p == nil {
		s.mu.Unlock()
		return ErrProductNotFound
	}
	line, err := p.FindLine(lineID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if line.Attribute.DisplayType != model.DisplayReference {
		s.mu.Unlock()
		return ErrLineKindMismatch
	}

	key := sideKey{TmplID: tmplID, LineID: lineID}
	var resID int64
	if pick == nil || pick.ResID == 0 {
		delete(s.refs, key)
	} else {
		s.refs[key] = *pick
		resID = pick.ResID
	}
	if v := line.SelectedValue(); v != nil {
		v.RefResID = resID
	}
	s.touch()

	rule, ok := s.rules.autoFillFor(line.Attribute.ReferenceModel)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if resID == 0 {
		s.applyAutoFill(p, rule, "")
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	rows, err := s.oracle.ResolveReference(ctx, rule.ReferenceModel, []int64{resID}, []string{rule.SourceField})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn("读取引用记录失败", "model", rule.ReferenceModel, "res_id", resID, "error", err)
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	// 期间引用被更换或商品被移除：放弃
	if s.find(tmplID) != p || s.refs[key].ResID != resID {
		return nil
	}
	var value string
	if len(rows) > 0 {
		value = formatFieldValue(rows[0][rule.SourceField])
	}
	s.applyAutoFill(p, rule, value)
	return nil
}

// applyAutoFill 选中目标属性行的自定义值并直接写入文本（不经过数字清洗）
func (s *Session) applyAutoFill(p *model.ProductConfiguration, rule AutoFillRule, value string) {
	target := p.LineByAttributeName(rule.TargetAttribute)
	if target == nil {
		return
	}
	if cv := target.CustomValueOf(); cv != nil && !target.IsSelected(cv.ID) {
		target.SelectedValueIDs = []int64{cv.ID}
		exclusion.Recompute(p, graph{s})
	}
	target.CustomValue = value
}

// ==================== 提交 ====================

// Confirm 校验并提交配置
//
// 缺少关联 ID 或配置无效时直接拒绝，不联系 oracle。
// 变体 ID 先暂存，只有提交成功后才写回会话；任何失败都不改变会话状态。
func (s *Session) Confirm(ctx context.Context, correlationID int64) (*model.SavePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.touch()
	if correlationID <= 0 {
		s.log.Info("拒绝提交：缺少关联 ID")
		return nil, fmt.Errorf("%w: %w", ErrSubmitRefused, ErrMissingCorrelationID)
	}
	if !exclusion.IsPossibleConfiguration(s.included) {
		s.log.Info("拒绝提交：配置包含被排除的值", "correlation_id", correlationID)
		return nil, fmt.Errorf("%w: %w", ErrSubmitRefused, ErrInvalidConfiguration)
	}

	identities := make(map[int64]int64)
	for _, p := range s.included {
		if p.ProductID != 0 || !p.HasDynamicLine() {
			continue
		}
		id, err := s.oracle.CreateIdentity(ctx, p.TmplID, p.Combination())
		if err != nil {
			s.log.Error("创建变体失败", "tmpl_id", p.TmplID, "error", err)
			return nil, fmt.Errorf("%w: create variant for %d: %w", ErrSubmitFailed, p.TmplID, err)
		}
		identities[p.TmplID] = id
	}

	payload, err := BuildPayload(s.payloadInput(correlationID, identities))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	res, err := s.oracle.Submit(ctx, payload)
	if err != nil {
		s.log.Error("提交配置失败", "correlation_id", correlationID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	if res == nil || !res.Success {
		msg := "rejected by oracle"
		if res != nil && res.Error != "" {
			msg = res.Error
		}
		s.log.Error("oracle 拒绝提交", "correlation_id", correlationID, "reason", msg)
		return nil, fmt.Errorf("%w: %s", ErrSubmitFailed, msg)
	}

	for tmplID, id := range identities {
		if p := s.find(tmplID); p != nil {
			p.ProductID = id
		}
	}
	s.status = SessionSubmitted
	s.log.Info("配置已提交",
		"correlation_id", correlationID,
		"optional_products", len(payload.OptionalProducts))
	return payload, nil
}

// Preview 按当前状态构建载荷，不做校验也不提交；文件只保留文件名
func (s *Session) Preview(correlationID int64) (*model.SavePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := BuildPayload(s.payloadInput(correlationID, nil))
	if err != nil {
		return nil, err
	}
	return withoutFileData(payload), nil
}

func (s *Session) payloadInput(correlationID int64, identities map[int64]int64) PayloadInput {
	in := PayloadInput{
		MainTmplID:    s.mainTmplID,
		Products:      s.included,
		Files:         make(map[int64][]LineFile),
		References:    make(map[int64][]LineReference),
		Identities:    identities,
		CorrelationID: correlationID,
	}
	for k, f := range s.files {
		in.Files[k.TmplID] = append(in.Files[k.TmplID], LineFile{LineID: k.LineID, File: f})
	}
	for k, r := range s.refs {
		in.References[k.TmplID] = append(in.References[k.TmplID], LineReference{LineID: k.LineID, Pick: r})
	}
	return in
}

// ==================== 查询 ====================

// IsValid 会话级有效性
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return exclusion.IsPossibleConfiguration(s.included)
}

// State 商品在会话中的状态
func (s *Session) State(tmplID int64) ProductState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.indexOf(s.included, tmplID) >= 0:
		return StateIncluded
	case s.indexOf(s.optional, tmplID) >= 0:
		return StateOptional
	case s.removed[tmplID]:
		return StateRemoved
	}
	return StateNotLoaded
}

// Status 会话状态
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Product 返回商品的拷贝
func (s *Session) Product(tmplID int64) (*model.ProductConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(tmplID)
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p.Clone(), nil
}

// IdleSince 距离最后一次操作的时长；提交进行中也可调用
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastTouched.Load()))
}

// Snapshot 会话视图
type Snapshot struct {
	SessionID  string                        `json:"session_id"`
	Status     SessionStatus                 `json:"status"`
	MainTmplID int64                         `json:"main_product_tmpl_id"`
	Valid      bool                          `json:"valid"`
	Included   []*model.ProductConfiguration `json:"included"`
	Optional   []*model.ProductConfiguration `json:"optional"`
	Files      []FileState                   `json:"files"`
	References []ReferenceState              `json:"references"`
}

// FileState 快照中的文件（不含内容）
type FileState struct {
	TmplID   int64  `json:"product_tmpl_id"`
	LineID   int64  `json:"ptal_id"`
	FileName string `json:"file_name"`
	Size     int    `json:"size"`
}

// ReferenceState 快照中的引用选择
type ReferenceState struct {
	TmplID      int64  `json:"product_tmpl_id"`
	LineID      int64  `json:"ptal_id"`
	ResID       int64  `json:"res_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Snapshot 返回当前状态的深拷贝
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		SessionID:  s.ID,
		Status:     s.status,
		MainTmplID: s.mainTmplID,
		Valid:      exclusion.IsPossibleConfiguration(s.included),
		Included:   make([]*model.ProductConfiguration, 0, len(s.included)),
		Optional:   make([]*model.ProductConfiguration, 0, len(s.optional)),
		Files:      make([]FileState, 0, len(s.files)),
		References: make([]ReferenceState, 0, len(s.refs)),
	}
	for _, p := range s.included {
		snap.Included = append(snap.Included, p.Clone())
	}
	for _, p := range s.optional {
		snap.Optional = append(snap.Optional, p.Clone())
	}
	for k, f := range s.files {
		snap.Files = append(snap.Files, FileState{TmplID: k.TmplID, LineID: k.LineID, FileName: f.FileName, Size: len(f.FileData)})
	}
	for k, r := range s.refs {
		snap.References = append(snap.References, ReferenceState{TmplID: k.TmplID, LineID: k.LineID, ResID: r.ResID, DisplayName: r.DisplayName})
	}
	sort.Slice(snap.Files, func(i, j int) bool {
		if snap.Files[i].TmplID != snap.Files[j].TmplID {
			return snap.Files[i].TmplID < snap.Files[j].TmplID
		}
		return snap.Files[i].LineID < snap.Files[j].LineID
	})
	sort.Slice(snap.References, func(i, j int) bool {
		if snap.References[i].TmplID != snap.References[j].TmplID {
			return snap.References[i].TmplID < snap.References[j].TmplID
		}
		return snap.References[i].LineID < snap.References[j].LineID
	})
	return snap
}

// ==================== 内部方法 ====================

func (s *Session) checkOpen() error {
	switch s.status {
	case SessionOpen:
		return nil
	case SessionPending:
		return ErrSessionNotFound
	}
	return ErrSessionClosed
}

func (s *Session) touch() { s.lastTouched.Store(s.now().UnixNano()) }

func (s *Session) find(tmplID int64) *model.ProductConfiguration {
	for _, p := range s.included {
		if p.TmplID == tmplID {
			return p
		}
	}
	for _, p := range s.optional {
		if p.TmplID == tmplID {
			return p
		}
	}
	return nil
}

func (s *Session) children(tmplID int64) []*model.ProductConfiguration {
	var out []*model.ProductConfiguration
	for _, list := range [][]*model.ProductConfiguration{s.included, s.optional} {
		for _, p := range list {
			if p.HasParent(tmplID) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (s *Session) indexOf(list []*model.ProductConfiguration, tmplID int64) int {
	for i, p := range list {
		if p.TmplID == tmplID {
			return i
		}
	}
	return -1
}
