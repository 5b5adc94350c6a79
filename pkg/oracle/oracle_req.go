package oracle

import (
	"time"
)

// ==========================================
// 请求 DTO: 发往配置器后端的 JSON-RPC params
// ==========================================

// Pricing 会话级定价上下文（每次往返都会带上）
type Pricing struct {
	CurrencyID  int64
	CompanyID   int64
	PricelistID int64
	UOMID       int64
	Date        time.Time
}

func (p Pricing) dateString() string {
	if p.Date.IsZero() {
		return ""
	}
	return p.Date.Format("2006-01-02")
}

// LoadRequest 初始加载
// POST /crm_product_configurator/get_values
type LoadRequest struct {
	ProductTmplID   int64   `json:"product_template_id"`
	CurrencyID      int64   `json:"currency_id,omitempty"`
	Quantity        float64 `json:"quantity"`
	UOMID           int64   `json:"product_uom_id,omitempty"`
	CompanyID       int64   `json:"company_id,omitempty"`
	ValueIDs        []int64 `json:"ptav_ids"`
	OnlyMainProduct bool    `json:"only_main_product"`
}

// createProductReq 变体创建
// POST /crm_product_configurator/create_product
type createProductReq struct {
	ProductTmplID int64   `json:"product_template_id"`
	Combination   []int64 `json:"combination"`
}

// RefreshRequest 组合刷新（价格/变体）
// POST /crm_product_configurator/update_combination
type RefreshRequest struct {
	ProductTmplID int64
	Combination   []int64
	Quantity      float64
	Pricing       Pricing
}

type updateCombinationReq struct {
	ProductTmplID int64   `json:"product_template_id"`
	Combination   []int64 `json:"combination"`
	CurrencyID    int64   `json:"currency_id,omitempty"`
	SoDate        string  `json:"so_date,omitempty"`
	Quantity      float64 `json:"quantity"`
	UOMID         int64   `json:"product_uom_id,omitempty"`
	CompanyID     int64   `json:"company_id,omitempty"`
	PricelistID   int64   `json:"pricelist_id,omitempty"`
}

// RevealRequest 查询可选商品
// POST /crm_product_configurator/get_optional_products
type RevealRequest struct {
	ProductTmplID     int64
	Combination       []int64
	ParentCombination []int64
	Pricing           Pricing
}

type optionalProductsReq struct {
	ProductTmplID     int64   `json:"product_template_id"`
	Combination       []int64 `json:"combination"`
	ParentCombination []int64 `json:"parent_combination"`
	CurrencyID        int64   `json:"currency_id,omitempty"`
	SoDate            string  `json:"so_date,omitempty"`
	CompanyID         int64   `json:"company_id,omitempty"`
	PricelistID       int64   `json:"pricelist_id,omitempty"`
}

// callKwReq 通用模型方法调用
// POST /web/dataset/call_kw/{model}/{method}
type callKwReq struct {
	Model  string         `json:"model"`
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// rpcEnvelope JSON-RPC 2.0 请求包
type rpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int64  `json:"id"`
	Params  any    `json:"params"`
}
