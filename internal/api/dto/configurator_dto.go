package dto

// ==================== 请求 DTO ====================

// OpenSessionReq 打开配置会话
type OpenSessionReq struct {
	ProductTmplID int64              `json:"product_template_id" binding:"required,gt=0"`
	ValueIDs      []int64            `json:"ptav_ids"`                           // 预选的属性值
	CustomValues  []InitialCustomReq `json:"custom_values" binding:"omitempty,dive"` // 预填的自定义文本
	Quantity      float64            `json:"quantity" binding:"omitempty,gte=0"`
	Edit          bool               `json:"edit"` // 编辑已有明细：只加载主商品

	// 定价上下文
	CurrencyID  int64  `json:"currency_id"`
	CompanyID   int64  `json:"company_id"`
	PricelistID int64  `json:"pricelist_id"`
	UOMID       int64  `json:"product_uom_id"`
	Date        string `json:"so_date" binding:"omitempty,datetime=2006-01-02"`
}

// InitialCustomReq 预填自定义文本
type InitialCustomReq struct {
	ValueID int64  `json:"ptav_id" binding:"required"`
	Value   string `json:"value"`
}

// SelectValueReq 切换属性值
type SelectValueReq struct {
	ValueID int64 `json:"ptav_id" binding:"required"`
	Multi   bool  `json:"multi"` // 多选行是否按切换处理
}

// QuantityReq 修改数量（<= 0：主商品归一为 1，其他商品移除）
type QuantityReq struct {
	Quantity *float64 `json:"quantity" binding:"required"`
}

// CustomTextReq 自定义文本
type CustomTextReq struct {
	Value string `json:"value"`
}

// FileReq 文件上传（base64）
type FileReq struct {
	FileName string `json:"file_name" binding:"required,max=255"`
	FileData string `json:"file_data" binding:"required,base64"`
}

// ReferenceReq 引用选择
type ReferenceReq struct {
	ResID       int64  `json:"res_id" binding:"required,gt=0"`
	DisplayName string `json:"display_name"`
}

// ConfirmReq 确认提交，缺少 crm_lead_id 时由服务端拒绝
type ConfirmReq struct {
	CorrelationID int64 `json:"crm_lead_id"`
}

// SubmissionListReq 提交记录查询
type SubmissionListReq struct {
	CorrelationID int64 `form:"correlation_id" binding:"required,gt=0"`
	Limit         int   `form:"limit" binding:"omitempty,gte=1,lte=200"`
}

// PreviewReq 载荷预览
type PreviewReq struct {
	CorrelationID int64 `form:"correlation_id" binding:"omitempty,gte=0"`
}

// SubmissionStatsReq 提交统计
type SubmissionStatsReq struct {
	CorrelationID int64 `form:"correlation_id" binding:"required,gt=0"`
}
