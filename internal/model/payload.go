package model

import (
	"github.com/shopspring/decimal"
)

// ==================== 保存载荷 ====================

// SavePayload 提交给 oracle 的最终载荷
type SavePayload struct {
	MainProduct      PayloadLine   `json:"main_product"`
	OptionalProducts []PayloadLine `json:"optional_products"`
	CorrelationID    int64         `json:"crm_lead_id"`
}

// PayloadLine 单个商品的保存行
type PayloadLine struct {
	ProductID             int64              `json:"product_id"`
	ProductTmplID         int64              `json:"product_template_id"`
	Quantity              float64            `json:"quantity"`
	Price                 decimal.Decimal    `json:"price"`
	ValueIDs              []int64            `json:"ptav_ids"`
	CustomAttributeValues []CustomValueEntry `json:"custom_attribute_values"`
	FileUpload            *FilePayload       `json:"file_upload"`
	ReferenceValues       []ReferenceEntry   `json:"m2o_values"`
	AttributesDescription string             `json:"attributes_description"`
	AttributesJSON        map[string]string  `json:"attributes_json"`
}

// CustomValueEntry 自定义值
type CustomValueEntry struct {
	ValueID     int64  `json:"ptav_id"`
	CustomValue string `json:"custom_value"`
}

// FilePayload 待上传文件（base64 编码）
type FilePayload struct {
	FileName string `json:"file_name"`
	FileData string `json:"file_data"`
}

// ReferencePick 引用类型属性的选择结果
type ReferencePick struct {
	ResID       int64  `json:"res_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// ReferenceEntry 载荷中的引用选择
type ReferenceEntry struct {
	LineID int64 `json:"ptal_id"`
	ResID  int64 `json:"res_id"`
}

// SubmitResult oracle 提交结果
type SubmitResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
