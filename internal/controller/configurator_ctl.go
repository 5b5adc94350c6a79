package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crm_configurator_v1/internal/api/dto"
	"crm_configurator_v1/internal/model"
	"crm_configurator_v1/internal/service"
	"crm_configurator_v1/pkg/oracle"
)

// ConfiguratorController 商品配置会话接口
type ConfiguratorController struct {
	mgr *service.SessionManager
	// onClose 会话关闭/提交后的回调（如清除限流状态）
	onClose func(sessionID string)
}

func NewConfiguratorController(mgr *service.SessionManager, onClose func(sessionID string)) *ConfiguratorController {
	if onClose == nil {
		onClose = func(string) {}
	}
	return &ConfiguratorController{mgr: mgr, onClose: onClose}
}

// OpenSession 打开配置会话
// @Summary 打开配置会话
// @Tags Configurator
// @Accept json
// @Produce json
// @Param request body dto.OpenSessionReq true "会话参数"
// @Router /api/configurator/sessions [post]
func (c *ConfiguratorController) OpenSession(ctx *gin.Context) {
	var req dto.OpenSessionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}

	pricing := oracle.Pricing{
		CurrencyID:  req.CurrencyID,
		CompanyID:   req.CompanyID,
		PricelistID: req.PricelistID,
		UOMID:       req.UOMID,
	}
	if req.Date != "" {
		// binding 已校验格式
		pricing.Date, _ = time.Parse("2006-01-02", req.Date)
	}
	customs := make([]service.InitialCustomValue, 0, len(req.CustomValues))
	for _, cv := range req.CustomValues {
		customs = append(customs, service.InitialCustomValue{ValueID: cv.ValueID, Value: cv.Value})
	}

	s, err := c.mgr.Open(ctx.Request.Context(), service.LoadParams{
		ProductTmplID: req.ProductTmplID,
		ValueIDs:      req.ValueIDs,
		CustomValues:  customs,
		Quantity:      req.Quantity,
		Pricing:       pricing,
		Edit:          req.Edit,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "success",
		"data":    s.Snapshot(),
	})
}

// GetSession 查看会话状态
// @Router /api/configurator/sessions/{id} [get]
func (c *ConfiguratorController) GetSession(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	ok200(ctx, s.Snapshot(), nil)
}

// CloseSession 丢弃会话
// @Router /api/configurator/sessions/{id} [delete]
func (c *ConfiguratorController) CloseSession(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.mgr.Close(id) {
		writeError(ctx, service.ErrSessionNotFound)
		return
	}
	c.onClose(id)
	ctx.JSON(http.StatusOK, gin.H{"code": 0, "message": "会话已关闭"})
}

// AddProduct 加入可选商品
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/add [post]
func (c *ConfiguratorController) AddProduct(ctx *gin.Context) {
	s, tmplID, ok := c.sessionProduct(ctx)
	if !ok {
		return
	}
	err := s.AddOptional(ctx.Request.Context(), tmplID)
	c.respond(ctx, s, err, nil)
}

// RemoveProduct 移除商品（级联）
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/remove [post]
func (c *ConfiguratorController) RemoveProduct(ctx *gin.Context) {
	s, tmplID, ok := c.sessionProduct(ctx)
	if !ok {
		return
	}
	err := s.RemoveOptional(tmplID)
	c.respond(ctx, s, err, nil)
}

// SetQuantity 修改数量
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/quantity [put]
func (c *ConfiguratorController) SetQuantity(ctx *gin.Context) {
	s, tmplID, ok := c.sessionProduct(ctx)
	if !ok {
		return
	}
	var req dto.QuantityReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	err := s.SetQuantity(ctx.Request.Context(), tmplID, *req.Quantity)
	c.respond(ctx, s, err, nil)
}

// SelectValue 切换属性值
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/lines/{line_id}/select [post]
func (c *ConfiguratorController) SelectValue(ctx *gin.Context) {
	s, tmplID, lineID, ok := c.sessionLine(ctx)
	if !ok {
		return
	}
	var req dto.SelectValueReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	err := s.SelectAttributeValue(ctx.Request.Context(), tmplID, lineID, req.ValueID, req.Multi)
	c.respond(ctx, s, err, nil)
}

// SetCustomValue 设置自定义文本
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/lines/{line_id}/custom [put]
func (c *ConfiguratorController) SetCustomValue(ctx *gin.Context) {
	s, tmplID, lineID, ok := c.sessionLine(ctx)
	if !ok {
		return
	}
	var req dto.CustomTextReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	notice, err := s.SetCustomValue(tmplID, lineID, req.Value)
	c.respond(ctx, s, err, notice)
}

// AttachFile 上传文件
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/lines/{line_id}/file [put]
func (c *ConfiguratorController) AttachFile(ctx *gin.Context) {
	s, tmplID, lineID, ok := c.sessionLine(ctx)
	if !ok {
		return
	}
	var req dto.FileReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	err := s.AttachFile(tmplID, lineID, &model.FilePayload{FileName: req.FileName, FileData: req.FileData})
	c.respond(ctx, s, err, nil)
}

// ClearFile 清除文件
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/lines/{line_id}/file [delete]
func (c *ConfiguratorController) ClearFile(ctx *gin.Context) {
	s, tmplID, lineID, ok := c.sessionLine(ctx)
	if !ok {
		return
	}
	err := s.AttachFile(tmplID, lineID, nil)
	c.respond(ctx, s, err, nil)
}

// AttachReference 选择引用记录
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/lines/{line_id}/reference [put]
func (c *ConfiguratorController) AttachReference(ctx *gin.Context) {
	s, tmplID, lineID, ok := c.sessionLine(ctx)
	if !ok {
		return
	}
	var req dto.ReferenceReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	err := s.AttachReference(ctx.Request.Context(), tmplID, lineID, &model.ReferencePick{
		ResID:       req.ResID,
		DisplayName: req.DisplayName,
	})
	c.respond(ctx, s, err, nil)
}

// ClearReference 清除引用记录
// @Router /api/configurator/sessions/{id}/products/{tmpl_id}/lines/{line_id}/reference [delete]
func (c *ConfiguratorController) ClearReference(ctx *gin.Context) {
	s, tmplID, lineID, ok := c.sessionLine(ctx)
	if !ok {
		return
	}
	err := s.AttachReference(ctx.Request.Context(), tmplID, lineID, nil)
	c.respond(ctx, s, err, nil)
}

// Confirm 确认提交
// @Summary 确认并提交配置
// @Description 缺少 crm_lead_id 或配置无效时返回 422，不会联系后端
// @Router /api/configurator/sessions/{id}/confirm [post]
func (c *ConfiguratorController) Confirm(ctx *gin.Context) {
	id := ctx.Param("id")
	var req dto.ConfirmReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}

	payload, err := c.mgr.Confirm(ctx.Request.Context(), id, req.CorrelationID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	c.onClose(id)
	ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "提交成功",
		"data":    payload,
	})
}

// PreviewPayload 按当前配置预览提交载荷（不校验、不提交）
// @Router /api/configurator/sessions/{id}/payload [get]
func (c *ConfiguratorController) PreviewPayload(ctx *gin.Context) {
	var req dto.PreviewReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	payload, err := s.Preview(req.CorrelationID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ok200(ctx, payload, nil)
}

// SubmissionStats 按状态统计提交次数
// @Router /api/configurator/submissions/stats [get]
func (c *ConfiguratorController) SubmissionStats(ctx *gin.Context) {
	var req dto.SubmissionStatsReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	stats, err := c.mgr.SubmissionStats(ctx.Request.Context(), req.CorrelationID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ok200(ctx, stats, nil)
}

// ListSubmissions 查询提交记录
// @Router /api/configurator/submissions [get]
func (c *ConfiguratorController) ListSubmissions(ctx *gin.Context) {
	var req dto.SubmissionListReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, "参数错误: "+err.Error())
		return
	}
	list, err := c.mgr.Submissions(ctx.Request.Context(), req.CorrelationID, req.Limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": list})
}

// ==================== 辅助函数 ====================

func (c *ConfiguratorController) session(ctx *gin.Context) (*service.Session, bool) {
	s, err := c.mgr.Get(ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return nil, false
	}
	return s, true
}

func (c *ConfiguratorController) sessionProduct(ctx *gin.Context) (*service.Session, int64, bool) {
	tmplID, err := strconv.ParseInt(ctx.Param("tmpl_id"), 10, 64)
	if err != nil {
		badRequest(ctx, "无效的商品模板ID")
		return nil, 0, false
	}
	s, ok := c.session(ctx)
	return s, tmplID, ok
}

func (c *ConfiguratorController) sessionLine(ctx *gin.Context) (*service.Session, int64, int64, bool) {
	lineID, err := strconv.ParseInt(ctx.Param("line_id"), 10, 64)
	if err != nil {
		badRequest(ctx, "无效的属性行ID")
		return nil, 0, 0, false
	}
	s, tmplID, ok := c.sessionProduct(ctx)
	return s, tmplID, lineID, ok
}

// respond 变更类接口的统一响应
// oracle 不可用不算失败：本地变更已生效，返回快照与 warning
func (c *ConfiguratorController) respond(ctx *gin.Context, s *service.Session, err error, notice *model.ValidationNotice) {
	if err != nil && !errors.Is(err, service.ErrOracleUnavailable) {
		writeError(ctx, err)
		return
	}
	extra := gin.H{}
	if err != nil {
		extra["warning"] = err.Error()
	}
	if notice != nil {
		extra["notice"] = notice
	}
	ok200(ctx, s.Snapshot(), extra)
}

func ok200(ctx *gin.Context, data interface{}, extra gin.H) {
	body := gin.H{"code": 0, "message": "success", "data": data}
	for k, v := range extra {
		body[k] = v
	}
	ctx.JSON(http.StatusOK, body)
}

func badRequest(ctx *gin.Context, msg string) {
	ctx.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": msg})
}

// writeError 领域错误 -> HTTP 状态码
func writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, model.ErrLineNotFound),
		errors.Is(err, model.ErrValueNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSessionClosed):
		status = http.StatusConflict
	case errors.Is(err, service.ErrSubmitRefused),
		errors.Is(err, model.ErrCustomValueNotAllowed),
		errors.Is(err, service.ErrLineKindMismatch),
		errors.Is(err, service.ErrMainNotRemovable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSubmitFailed),
		errors.Is(err, service.ErrOracleUnavailable),
		errors.Is(err, service.ErrMainProductMissing):
		status = http.StatusBadGateway
	}
	ctx.JSON(status, gin.H{"code": status, "message": err.Error()})
}
