package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ==========================================
// 响应 DTO: 后端返回的原始 JSON（Odoo 风格，空值常以 false 表示）
// ==========================================

// rpcResponse JSON-RPC 2.0 响应包
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError 后端返回的业务错误
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Data.Message, e.Data.Name)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// LooseString 兼容 false/null 的字符串
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("false")) || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = LooseString(v)
	return nil
}

// LooseID 兼容 false/null/字符串 的 ID
type LooseID int64

func (id *LooseID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("false")) || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	raw := string(bytes.Trim(b, `"`))
	if raw == "" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", raw, err)
	}
	*id = LooseID(v)
	return nil
}

// ProductDTO 商品数据
type ProductDTO struct {
	ProductTmplID        LooseID            `json:"product_tmpl_id"`
	ID                   LooseID            `json:"id"`
	DisplayName          LooseString        `json:"display_name"`
	Quantity             float64            `json:"quantity"`
	Price                decimal.Decimal    `json:"price"`
	AttributeLines       []AttributeLineDTO `json:"attribute_lines"`
	Exclusions           map[int64][]int64  `json:"exclusions"`
	ParentExclusions     map[int64][]int64  `json:"parent_exclusions"`
	ArchivedCombinations [][]int64          `json:"archived_combinations"`
	ParentProductTmplIDs []int64            `json:"parent_product_tmpl_ids"`
}

// AttributeLineDTO 属性行
type AttributeLineDTO struct {
	ID               int64               `json:"id"`
	Attribute        AttributeDTO        `json:"attribute"`
	AttributeValues  []AttributeValueDTO `json:"attribute_values"`
	SelectedValueIDs []int64             `json:"selected_attribute_value_ids"`
	CreateVariant    string              `json:"create_variant"`
	CustomValue      LooseString         `json:"customValue"`
}

// AttributeDTO 属性
type AttributeDTO struct {
	ID                    int64       `json:"id"`
	Name                  string      `json:"name"`
	DisplayType           string      `json:"display_type"`
	M2OModelTechnicalName LooseString `json:"m2o_model_technical_name"`
	PairWithPrevious      bool        `json:"pair_with_previous"`
}

// AttributeValueDTO 属性值
type AttributeValueDTO struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	HTMLColor LooseString `json:"html_color"`
	Image     LooseString `json:"image"`
	IsCustom  bool        `json:"is_custom"`
	M2OResID  LooseID     `json:"m2o_res_id"`
}

// loadResp get_values 响应
type loadResp struct {
	Products         []ProductDTO `json:"products"`
	OptionalProducts []ProductDTO `json:"optional_products"`
}

// RefreshResult update_combination 响应中会话关心的字段
type RefreshResult struct {
	Price       decimal.Decimal `json:"price"`
	ProductID   LooseID         `json:"id"`
	DisplayName LooseString     `json:"display_name"`
}
