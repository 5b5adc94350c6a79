package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm_configurator_v1/internal/controller"
	"crm_configurator_v1/internal/middleware"
	"crm_configurator_v1/internal/model"
	"crm_configurator_v1/internal/router"
	"crm_configurator_v1/internal/service"
	"crm_configurator_v1/pkg/oracle"
)

// ==================== 测试替身 ====================

// fakeOracle 主商品 1：Color {101 A, 102 B} × Size {201 X, 202 Y}，A 与 X 互斥；
// Finish 行带自定义值 301。可选商品 2。
type fakeOracle struct {
	refreshErr  error
	submitCalls atomic.Int32
}

func (f *fakeOracle) LoadInitial(_ context.Context, req oracle.LoadRequest) ([]*model.ProductConfiguration, []*model.ProductConfiguration, error) {
	if req.ProductTmplID != 1 {
		return nil, nil, errors.New("unknown template")
	}
	line := func(id int64, name string, kind model.DisplayType, values ...*model.AttributeValue) *model.AttributeLine {
		return &model.AttributeLine{
			ID:            id,
			Attribute:     model.Attribute{ID: id, Name: name, DisplayType: kind},
			Values:        values,
			CreateVariant: model.CreateVariantAlways,
		}
	}
	main := &model.ProductConfiguration{
		TmplID:      1,
		DisplayName: "Sofa",
		Quantity:    req.Quantity,
		Price:       decimal.NewFromInt(100),
		Lines: []*model.AttributeLine{
			line(10, "Color", model.DisplayRadio, &model.AttributeValue{ID: 101, Name: "A"}, &model.AttributeValue{ID: 102, Name: "B"}),
			line(20, "Size", model.DisplaySelect, &model.AttributeValue{ID: 201, Name: "X"}, &model.AttributeValue{ID: 202, Name: "Y"}),
			line(30, "Finish", model.DisplayRadio, &model.AttributeValue{ID: 301, Name: "Custom", IsCustom: true}),
		},
		Exclusions:       map[int64][]int64{101: {201}},
		ParentExclusions: map[int64][]int64{},
	}
	opt := &model.ProductConfiguration{
		TmplID:           2,
		DisplayName:      "Cushion",
		Quantity:         1,
		Price:            decimal.NewFromInt(10),
		ParentTmplIDs:    []int64{1},
		Exclusions:       map[int64][]int64{},
		ParentExclusions: map[int64][]int64{},
	}
	return []*model.ProductConfiguration{main}, []*model.ProductConfiguration{opt}, nil
}

func (f *fakeOracle) CreateIdentity(context.Context, int64, []int64) (int64, error) {
	return 0, errors.New("not expected")
}

func (f *fakeOracle) RefreshCombination(_ context.Context, req oracle.RefreshRequest) (*oracle.RefreshResult, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &oracle.RefreshResult{Price: decimal.NewFromInt(120), ProductID: oracle.LooseID(req.ProductTmplID * 10)}, nil
}

func (f *fakeOracle) RevealOptional(context.Context, oracle.RevealRequest) ([]*model.ProductConfiguration, error) {
	return nil, nil
}

func (f *fakeOracle) ResolveReference(context.Context, string, []int64, []string) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeOracle) Submit(context.Context, *model.SavePayload) (*model.SubmitResult, error) {
	f.submitCalls.Add(1)
	return &model.SubmitResult{Success: true}, nil
}

// ==================== 测试辅助 ====================

type testEnv struct {
	router *gin.Engine
	oracle *fakeOracle
	mgr    *service.SessionManager
	closed []string
}

func setupTest(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	env := &testEnv{oracle: &fakeOracle{}}
	env.mgr = service.NewSessionManager(env.oracle, nil, service.Rules{PreselectSingleValues: true}, nil)
	ctl := controller.NewConfiguratorController(env.mgr, func(id string) { env.closed = append(env.closed, id) })
	env.router = router.SetupRouter(router.Options{
		Configurator: ctl,
		Throttle:     middleware.NewThrottle(time.Minute),
	})
	return env
}

type apiResp struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Warning string          `json:"warning"`
	Notice  *struct {
		Rejected string `json:"rejected"`
	} `json:"notice"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, apiResp) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (e *testEnv) open(t *testing.T) (string, service.Snapshot) {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/api/configurator/sessions", gin.H{"product_template_id": 1, "quantity": 2})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	return snap.SessionID, snap
}

func linePath(id string, tmplID, lineID int64, action string) string {
	return fmt.Sprintf("/api/configurator/sessions/%s/products/%d/lines/%d/%s", id, tmplID, lineID, action)
}

// ==================== 测试用例 ====================

func TestOpenSession(t *testing.T) {
	env := setupTest(t)
	id, snap := env.open(t)

	assert.NotEmpty(t, id)
	assert.Equal(t, service.SessionOpen, snap.Status)
	require.Len(t, snap.Included, 1)
	assert.Equal(t, float64(2), snap.Included[0].Quantity)
	assert.Equal(t, []int64{301}, snap.Included[0].Lines[2].SelectedValueIDs, "单值行预选")
	require.Len(t, snap.Optional, 1)

	code, _ := env.do(t, http.MethodPost, "/api/configurator/sessions", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/configurator/sessions", gin.H{"product_template_id": 9})
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestSelectAndValidity(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)

	code, resp := env.do(t, http.MethodPost, linePath(id, 1, 10, "select"), gin.H{"ptav_id": 101})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = env.do(t, http.MethodPost, linePath(id, 1, 20, "select"), gin.H{"ptav_id": 201})
	require.Equal(t, http.StatusOK, code)
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.False(t, snap.Valid)

	code, resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/configurator/sessions/%s/confirm", id), gin.H{"crm_lead_id": 42})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, resp.Message, "excluded")
	assert.Zero(t, env.oracle.submitCalls.Load())

	code, _ = env.do(t, http.MethodPost, linePath(id, 1, 99, "select"), gin.H{"ptav_id": 101})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodPost, linePath(id, 1, 10, "select"), gin.H{"ptav_id": 999})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodPost, linePath("missing", 1, 10, "select"), gin.H{"ptav_id": 101})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOracleFailureReturnsWarning(t *testing.T) {
	env := setupTest(t)
	env.oracle.refreshErr = errors.New("connection refused")
	id, _ := env.open(t)

	code, resp := env.do(t, http.MethodPost, linePath(id, 1, 10, "select"), gin.H{"ptav_id": 102})
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp.Warning, "unavailable")
}

func TestCustomValueNotice(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)

	code, resp := env.do(t, http.MethodPut, linePath(id, 1, 30, "custom"), gin.H{"value": "walnut"})
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, resp.Notice)

	code, _ = env.do(t, http.MethodPut, linePath(id, 1, 10, "custom"), gin.H{"value": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, "未选中自定义值")

	code, _ = env.do(t, http.MethodPut, linePath(id, 1, 10, "file"), gin.H{"file_name": "a.pdf", "file_data": "QUJD"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, "非文件行")

	code, _ = env.do(t, http.MethodPut, linePath(id, 1, 10, "file"), gin.H{"file_name": "a.pdf", "file_data": "%%%"})
	assert.Equal(t, http.StatusBadRequest, code, "非 base64")
}

func TestProductsAndQuantity(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)
	base := "/api/configurator/sessions/" + id + "/products/"

	code, resp := env.do(t, http.MethodPost, base+"2/add", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.Len(t, snap.Included, 2)

	code, _ = env.do(t, http.MethodPut, base+"2/quantity", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, code)
	code, resp = env.do(t, http.MethodGet, "/api/configurator/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.Len(t, snap.Included, 1, "数量为 0 的可选商品被移除")

	code, _ = env.do(t, http.MethodPut, base+"1/quantity", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code, "quantity 必填")

	code, _ = env.do(t, http.MethodPost, base+"1/remove", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = env.do(t, http.MethodPost, base+"abc/add", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConfirm(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)
	confirm := fmt.Sprintf("/api/configurator/sessions/%s/confirm", id)

	code, resp := env.do(t, http.MethodPost, confirm, gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, resp.Message, "correlation")
	assert.Zero(t, env.oracle.submitCalls.Load())

	// 冷却期内再次提交被限流
	code, _ = env.do(t, http.MethodPost, confirm, gin.H{"crm_lead_id": 42})
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestConfirmSuccessClosesSession(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)

	code, resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/configurator/sessions/%s/confirm", id), gin.H{"crm_lead_id": 42})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var payload model.SavePayload
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, int64(42), payload.CorrelationID)
	assert.Equal(t, int64(1), payload.MainProduct.ProductTmplID)
	assert.Equal(t, int32(1), env.oracle.submitCalls.Load())
	assert.Equal(t, []string{id}, env.closed)

	code, _ = env.do(t, http.MethodGet, "/api/configurator/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCloseSession(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)

	code, _ := env.do(t, http.MethodDelete, "/api/configurator/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{id}, env.closed)

	code, _ = env.do(t, http.MethodDelete, "/api/configurator/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListSubmissions(t *testing.T) {
	env := setupTest(t)

	code, _ := env.do(t, http.MethodGet, "/api/configurator/submissions", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := env.do(t, http.MethodGet, "/api/configurator/submissions?correlation_id=42", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestPreviewPayload(t *testing.T) {
	env := setupTest(t)
	id, _ := env.open(t)
	path := fmt.Sprintf("/api/configurator/sessions/%s/payload", id)

	code, resp := env.do(t, http.MethodGet, path+"?correlation_id=5", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var payload model.SavePayload
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, int64(5), payload.CorrelationID)
	assert.Equal(t, int64(1), payload.MainProduct.ProductTmplID)
	assert.Zero(t, env.oracle.submitCalls.Load(), "预览不提交")

	code, _ = env.do(t, http.MethodGet, path+"?correlation_id=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/api/configurator/sessions/missing/payload", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSubmissionStats(t *testing.T) {
	env := setupTest(t)

	code, _ := env.do(t, http.MethodGet, "/api/configurator/submissions/stats", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := env.do(t, http.MethodGet, "/api/configurator/submissions/stats?correlation_id=42", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{}`, string(resp.Data))
}
