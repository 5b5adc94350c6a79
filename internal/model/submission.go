package model

import (
	"gorm.io/datatypes"
)

// ==================== 状态常量 ====================

const (
	SubmissionStatusSubmitted = "submitted" // oracle 已接收
	SubmissionStatusRefused   = "refused"   // 本地校验拒绝，未联系 oracle
	SubmissionStatusFailed    = "failed"    // 变体创建或提交调用失败
)

// Submission 一次确认提交的记录
type Submission struct {
	BaseModel
	SessionID     string         `gorm:"size:64;index" json:"session_id"`
	CorrelationID int64          `gorm:"index" json:"correlation_id"` // 如 CRM 线索 ID
	MainTmplID    int64          `gorm:"index" json:"main_product_tmpl_id"`
	Status        string         `gorm:"size:20;index" json:"status"`
	Error         string         `gorm:"type:text" json:"error,omitempty"`
	LineCount     int            `gorm:"default:0" json:"line_count"`
	Payload       datatypes.JSON `json:"payload,omitempty"`
}

func (Submission) TableName() string {
	return "configurator_submissions"
}
