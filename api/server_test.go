package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	"github.com/xraph/credits/store/memory"
)

type harness struct {
	t       *testing.T
	engine  *credits.Engine
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine := credits.New(memory.New())
	require.NoError(t, engine.SeedPricing(context.Background(), nil))
	return &harness{t: t, engine: engine, handler: api.NewServer(engine).Handler()}
}

func (h *harness) do(method, path string, body interface{}) (int, map[string]interface{}) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (h *harness) fund(userID string, amount int64) {
	h.t.Helper()
	code, _ := h.do(http.MethodPost, "/accounts/"+userID+"/", nil)
	require.Equal(h.t, http.StatusCreated, code)
	code, _ = h.do(http.MethodPost, "/grant", map[string]interface{}{"user_id": userID, "amount": amount})
	require.Equal(h.t, http.StatusCreated, code)
}

func (h *harness) completedOperation(userID, kind string) string {
	h.t.Helper()
	code, op := h.do(http.MethodPost, "/operations/", map[string]interface{}{
		"user_id": userID, "kind": kind, "status": "completed",
	})
	require.Equal(h.t, http.StatusCreated, code)
	return op["id"].(string)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestCheckReturnsPaymentRequired(t *testing.T) {
	h := newHarness(t)
	h.fund("u1", 1)

	code, body := h.do(http.MethodPost, "/check", map[string]interface{}{"user_id": "u1", "operation_kind": "business"})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, false, body["can_proceed"])
	assert.InDelta(t, 1, body["current_balance"], 0)
	assert.InDelta(t, 2, body["required_credits"], 0)

	code, body = h.do(http.MethodPost, "/check", map[string]interface{}{"user_id": "u1", "operation_kind": "research"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["can_proceed"])
}

func TestCheckRejectsMissingUser(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(http.MethodPost, "/check", map[string]interface{}{"operation_kind": "research"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSettleOnce(t *testing.T) {
	h := newHarness(t)
	h.fund("u1", 10)
	opID := h.completedOperation("u1", "business")

	code, body := h.do(http.MethodPost, "/operations/"+opID+"/settle", map[string]interface{}{"user_id": "u1"})
	require.Equal(t, http.StatusOK, code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, true, result["deducted"])
	assert.InDelta(t, 8, result["new_balance"], 0)

	code, body = h.do(http.MethodPost, "/operations/"+opID+"/settle", map[string]interface{}{"user_id": "u1"})
	require.Equal(t, http.StatusOK, code)
	result = body["result"].(map[string]interface{})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, false, result["deducted"])

	code, body = h.do(http.MethodGet, "/accounts/u1/transactions", nil)
	require.Equal(t, http.StatusOK, code)
	// one grant and one debit
	assert.Len(t, body["transactions"], 2)
}

func TestSettleWithCostOverride(t *testing.T) {
	h := newHarness(t)
	h.fund("u1", 10)
	opID := h.completedOperation("u1", "business")

	code, body := h.do(http.MethodPost, "/operations/"+opID+"/settle", map[string]interface{}{
		"user_id": "u1", "operation_kind": "research", "cost": 7,
	})
	require.Equal(t, http.StatusOK, code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, true, result["deducted"])
	assert.InDelta(t, 7, result["amount"], 0)
	assert.InDelta(t, 3, result["new_balance"], 0)

	code, body = h.do(http.MethodGet, "/accounts/u1/transactions?type=debit", nil)
	require.Equal(t, http.StatusOK, code)
	txns := body["transactions"].([]interface{})
	require.Len(t, txns, 1)
	assert.Equal(t, "research", txns[0].(map[string]interface{})["operation_kind"])
}

func TestSettleErrors(t *testing.T) {
	h := newHarness(t)
	h.fund("u1", 10)
	h.fund("u2", 1)

	code, op := h.do(http.MethodPost, "/operations/", map[string]interface{}{"user_id": "u1", "kind": "research"})
	require.Equal(t, http.StatusCreated, code)
	pendingID := op["id"].(string)

	code, _ = h.do(http.MethodPost, "/operations/"+pendingID+"/status", map[string]interface{}{"status": "processing"})
	require.Equal(t, http.StatusOK, code)

	code, body := h.do(http.MethodPost, "/operations/"+pendingID+"/settle", map[string]interface{}{"user_id": "u1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["error"].(map[string]interface{})["type"])

	code, _ = h.do(http.MethodPost, "/operations/op_missing/settle", map[string]interface{}{"user_id": "u1"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(http.MethodPost, "/operations/"+pendingID+"/settle", map[string]interface{}{"user_id": "u2"})
	assert.Equal(t, http.StatusForbidden, code)

	poorID := h.completedOperation("u2", "business")
	code, _ = h.do(http.MethodPost, "/operations/"+poorID+"/settle", map[string]interface{}{"user_id": "u2"})
	assert.Equal(t, http.StatusPaymentRequired, code)
}

func TestTestAccountBypass(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(http.MethodPut, "/accounts/qa/test-account", map[string]interface{}{"is_test_account": true})
	require.Equal(t, http.StatusOK, code)

	code, body := h.do(http.MethodPost, "/deduct", map[string]interface{}{
		"user_id": "qa", "operation_kind": "research", "operation_id": "op_qa", "cost": 5,
	})
	require.Equal(t, http.StatusOK, code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, true, result["is_test_account"])
	assert.InDelta(t, 0, result["new_balance"], 0)
}

func TestPricingRoutes(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(http.MethodGet, "/pricing/business", nil)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 2, body["credits_cost"], 0)

	code, _ = h.do(http.MethodPut, "/pricing/business", map[string]interface{}{"credits_cost": 3})
	require.Equal(t, http.StatusOK, code)

	code, body = h.do(http.MethodGet, "/pricing/business", nil)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 3, body["credits_cost"], 0)

	code, _ = h.do(http.MethodGet, "/pricing/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(http.MethodPut, "/pricing/business", map[string]interface{}{"credits_cost": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(http.MethodGet, "/pricing/", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["pricing"], 4)
}

func TestVerifyAndReconcile(t *testing.T) {
	h := newHarness(t)
	h.fund("u1", 5)

	code, body := h.do(http.MethodGet, "/accounts/u1/verify", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["consistent"])
	assert.InDelta(t, 5, body["ledger_balance"], 0)

	h.completedOperation("u1", "research")
	code, body = h.do(http.MethodPost, "/reconcile", nil)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 1, body["scanned"], 0)
	assert.Len(t, body["pending_billing"], 1)
}

func TestBalanceOfUnknownAccount(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(http.MethodGet, "/accounts/ghost/balance", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
