package service

import "errors"

// ==================== 错误定义 ====================

var (
	// ErrOracleUnavailable oracle 往返失败：本地变更保留，价格/变体字段维持原值
	ErrOracleUnavailable = errors.New("configurator oracle unavailable")

	// ErrSubmitRefused 本地校验不通过，未联系 oracle
	ErrSubmitRefused        = errors.New("submit refused")
	ErrMissingCorrelationID = errors.New("missing correlation id")
	ErrInvalidConfiguration = errors.New("configuration contains excluded values")

	// ErrSubmitFailed 变体创建或提交调用失败，状态未变更，可重试
	ErrSubmitFailed = errors.New("submit failed")

	ErrProductNotFound     = errors.New("product not found in session")
	ErrMainProductMissing  = errors.New("main product missing from oracle response")
	ErrMainNotRemovable    = errors.New("main product cannot be removed")
	ErrLineKindMismatch    = errors.New("attribute line does not accept this payload")
	ErrSessionNotFound     = errors.New("configuration session not found")
	ErrSessionClosed       = errors.New("configuration session is closed")
	ErrSessionAlreadyReady = errors.New("configuration session already loaded")
)
