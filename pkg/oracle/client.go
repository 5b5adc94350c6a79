package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"crm_configurator_v1/internal/model"
)

// ==================== 配置 ====================

// Config 配置器后端连接配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Debug      bool
	// Headers 额外请求头（如 Cookie / X-Api-Key）
	Headers map[string]string
}

const (
	pathGetValues        = "/crm_product_configurator/get_values"
	pathCreateProduct    = "/crm_product_configurator/create_product"
	pathUpdateCombo      = "/crm_product_configurator/update_combination"
	pathOptionalProducts = "/crm_product_configurator/get_optional_products"
	pathSaveToCRM        = "/crm_product_configurator/save_to_crm"
	pathCallKw           = "/web/dataset/call_kw/%s/%s"
)

var ErrEmptyResult = errors.New("oracle returned empty result")

// ==================== 客户端 ====================

// Client JSON-RPC 客户端
// 只读调用走带重试的 reader，创建/提交走不重试的 writer，避免重复提交
type Client struct {
	reader *resty.Client
	writer *resty.Client
	seq    atomic.Int64
}

// NewClient 创建客户端
func NewClient(cfg *Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	build := func(retries int) *resty.Client {
		rc := resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetDebug(cfg.Debug).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "CRM-Configurator-Go/1.0")
		for k, v := range cfg.Headers {
			rc.SetHeader(k, v)
		}
		if retries > 0 {
			rc.SetRetryCount(retries).
				SetRetryWaitTime(200 * time.Millisecond).
				SetRetryMaxWaitTime(2 * time.Second).
				AddRetryCondition(func(r *resty.Response, err error) bool {
					return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
				})
		}
		return rc
	}

	return &Client{
		reader: build(cfg.RetryCount),
		writer: build(0),
	}
}

// ==================== 接口实现 ====================

// LoadInitial 批量加载主商品与可选商品
func (c *Client) LoadInitial(ctx context.Context, req LoadRequest) ([]*model.ProductConfiguration, []*model.ProductConfiguration, error) {
	if req.ValueIDs == nil {
		req.ValueIDs = []int64{}
	}
	var resp loadResp
	if err := c.call(ctx, c.reader, pathGetValues, req, &resp); err != nil {
		return nil, nil, err
	}
	products, err := ToProductConfigurations(resp.Products)
	if err != nil {
		return nil, nil, err
	}
	optional, err := ToProductConfigurations(resp.OptionalProducts)
	if err != nil {
		return nil, nil, err
	}
	return products, optional, nil
}

// CreateIdentity 为组合创建（或查找）变体，返回变体 ID
func (c *Client) CreateIdentity(ctx context.Context, tmplID int64, combination []int64) (int64, error) {
	var id LooseID
	err := c.call(ctx, c.writer, pathCreateProduct, createProductReq{
		ProductTmplID: tmplID,
		Combination:   nonNil(combination),
	}, &id)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrEmptyResult
	}
	return int64(id), nil
}

// RefreshCombination 刷新组合的价格/变体信息
func (c *Client) RefreshCombination(ctx context.Context, req RefreshRequest) (*RefreshResult, error) {
	var res RefreshResult
	err := c.call(ctx, c.reader, pathUpdateCombo, updateCombinationReq{
		ProductTmplID: req.ProductTmplID,
		Combination:   nonNil(req.Combination),
		CurrencyID:    req.Pricing.CurrencyID,
		SoDate:        req.Pricing.dateString(),
		Quantity:      req.Quantity,
		UOMID:         req.Pricing.UOMID,
		CompanyID:     req.Pricing.CompanyID,
		PricelistID:   req.Pricing.PricelistID,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RevealOptional 查询某商品（在当前组合下）的可选商品
func (c *Client) RevealOptional(ctx context.Context, req RevealRequest) ([]*model.ProductConfiguration, error) {
	var dtos []ProductDTO
	err := c.call(ctx, c.reader, pathOptionalProducts, optionalProductsReq{
		ProductTmplID:     req.ProductTmplID,
		Combination:       nonNil(req.Combination),
		ParentCombination: nonNil(req.ParentCombination),
		CurrencyID:        req.Pricing.CurrencyID,
		SoDate:            req.Pricing.dateString(),
		CompanyID:         req.Pricing.CompanyID,
		PricelistID:       req.Pricing.PricelistID,
	}, &dtos)
	if err != nil {
		return nil, err
	}
	return ToProductConfigurations(dtos)
}

// ResolveReference 读取引用记录的字段
func (c *Client) ResolveReference(ctx context.Context, modelName string, ids []int64, fields []string) ([]map[string]any, error) {
	var rows []map[string]any
	err := c.call(ctx, c.reader, fmt.Sprintf(pathCallKw, modelName, "read"), callKwReq{
		Model:  modelName,
		Method: "read",
		Args:   []any{nonNil(ids), fields},
		Kwargs: map[string]any{},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Submit 提交保存载荷
func (c *Client) Submit(ctx context.Context, payload *model.SavePayload) (*model.SubmitResult, error) {
	var res model.SubmitResult
	if err := c.call(ctx, c.writer, pathSaveToCRM, payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ==================== 内部方法 ====================

// call 发送 JSON-RPC 请求并把 result 解析到 out
func (c *Client) call(ctx context.Context, rc *resty.Client, path string, params any, out any) error {
	env := rpcEnvelope{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      c.seq.Add(1),
		Params:  params,
	}

	var rpcResp rpcResponse
	resp, err := rc.R().
		SetContext(ctx).
		SetBody(env).
		SetResult(&rpcResp).
		Post(path)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("请求 %s 异常 [%d]: %s", path, resp.StatusCode(), resp.String())
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return ErrEmptyResult
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", path, err)
	}
	return nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
