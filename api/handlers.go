package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/credits"
	"github.com/xraph/credits/operation"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/transaction"
)

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Pricing ────────────────────────────────────────────────────────────────

func (s *Server) handleListPricing(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	entries, err := s.engine.ListPricing(r.Context(), activeOnly)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pricing": entries})
}

func (s *Server) handleGetCost(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	cost, err := s.engine.Cost(r.Context(), kind)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "credits_cost": cost})
}

type setPricingBody struct {
	CreditsCost int64  `json:"credits_cost"`
	IsActive    *bool  `json:"is_active,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleSetPricing(w http.ResponseWriter, r *http.Request) {
	var body setPricingBody
	if err := decode(r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	entry := &pricing.Entry{
		Kind:        chi.URLParam(r, "kind"),
		CreditsCost: body.CreditsCost,
		IsActive:    body.IsActive == nil || *body.IsActive,
		Description: body.Description,
	}
	if err := s.engine.SetPricing(r.Context(), entry); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.OpenAccount(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.engine.Balance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := transaction.ListOpts{
		Type:   transaction.Type(q.Get("type")),
		Source: transaction.Source(q.Get("source")),
	}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		s.writeEngineError(w, r, credits.ValidationError{Field: "limit", Message: err.Error()})
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		s.writeEngineError(w, r, credits.ValidationError{Field: "offset", Message: err.Error()})
		return
	}

	txns, err := s.engine.Transactions(r.Context(), chi.URLParam(r, "userID"), opts)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txns})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.VerifyBalance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSetTestAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsTestAccount bool `json:"is_test_account"`
	}
	if err := decode(r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := s.engine.SetTestAccount(r.Context(), userID, body.IsTestAccount); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "is_test_account": body.IsTestAccount})
}

// ─── Billing ────────────────────────────────────────────────────────────────

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req credits.CheckRequest
	if err := decode(r, &req); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	d := s.engine.CheckCredits(r.Context(), req)
	status := http.StatusOK
	if !d.CanProceed {
		status = statusFor(d.Err)
	}
	writeJSON(w, status, d)
}

func (s *Server) handleDeduct(w http.ResponseWriter, r *http.Request) {
	var req credits.DebitRequest
	if err := decode(r, &req); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeDebitResult(w, r, s.engine.DeductCredits(r.Context(), req))
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req credits.GrantRequest
	if err := decode(r, &req); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	res := s.engine.GrantCredits(r.Context(), req)
	if !res.Success {
		s.writeEngineError(w, r, res.Err)
		return
	}
	status := http.StatusCreated
	if !res.Credited {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// writeDebitResult writes successful results as 200 and carries a flag
// update warning in the body.
func (s *Server) writeDebitResult(w http.ResponseWriter, r *http.Request, res *credits.DebitResult) {
	if !res.Success {
		s.writeEngineError(w, r, res.Err)
		return
	}
	body := map[string]interface{}{"result": res}
	if res.Err != nil {
		body["warning"] = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// ─── Operations ─────────────────────────────────────────────────────────────

type registerOperationBody struct {
	ID     string           `json:"id,omitempty"`
	UserID string           `json:"user_id"`
	Kind   string           `json:"kind"`
	Status operation.Status `json:"status,omitempty"`
}

func (s *Server) handleRegisterOperation(w http.ResponseWriter, r *http.Request) {
	var body registerOperationBody
	if err := decode(r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	op := &operation.Operation{ID: body.ID, UserID: body.UserID, Kind: body.Kind, Status: body.Status}
	if err := s.engine.RegisterOperation(r.Context(), op); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := s.engine.Operation(r.Context(), chi.URLParam(r, "operationID"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleOperationStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status operation.Status `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	operationID := chi.URLParam(r, "operationID")
	var err error
	switch body.Status {
	case operation.StatusProcessing:
		err = s.engine.StartOperation(r.Context(), operationID)
	case operation.StatusCompleted:
		err = s.engine.CompleteOperation(r.Context(), operationID)
	case operation.StatusFailed:
		err = s.engine.FailOperation(r.Context(), operationID)
	default:
		err = credits.ValidationError{Field: "status", Message: "must be processing, completed or failed"}
	}
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": operationID, "status": body.Status})
}

// settleBody overrides the operation's kind and the priced cost when set.
type settleBody struct {
	UserID        string            `json:"user_id"`
	OperationKind string            `json:"operation_kind,omitempty"`
	Cost          int64             `json:"cost,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var body settleBody
	if err := decode(r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	res := s.engine.SafeDeductCredits(r.Context(), credits.DebitRequest{
		UserID:        body.UserID,
		OperationKind: body.OperationKind,
		OperationID:   chi.URLParam(r, "operationID"),
		Description:   body.Description,
		Cost:          body.Cost,
		Metadata:      body.Metadata,
	})
	s.writeDebitResult(w, r, res)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeEngineError(w, r, credits.ValidationError{Field: "limit", Message: err.Error()})
		return
	}
	report, err := s.engine.ReconcileSettlements(r.Context(), limit)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
